// Package model defines data structure.
package model

import "encoding/json"

// Error codes carried by socket error frames.
const (
	CodeRateLimited  = "rate_limited"
	CodeEmptyContent = "empty_content"
	CodeInternal     = "internal_error"
)

// SendRequest is the body of a chat send, over REST or as a socket frame.
// RoomID is only present on the REST path.
type SendRequest struct {
	Content string `json:"content"`
	RoomID  int64  `json:"room_id,omitempty"`
}

// ErrorResponse is the JSON error body returned by the REST API.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// FrameError describes a rejected socket send.
type FrameError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// ServerFrame is what the server writes on a room socket: either a chat
// message or, when Error is set, a rejection of the client's last send.
type ServerFrame struct {
	ChatMessage
	Error *FrameError `json:"error,omitempty"`
}

// MarshalJSON writes error frames as {"error": {...}} without the empty
// message fields.
func (f ServerFrame) MarshalJSON() ([]byte, error) {
	if f.Error != nil {
		return json.Marshal(struct {
			Error *FrameError `json:"error"`
		}{f.Error})
	}
	return json.Marshal(f.ChatMessage)
}
