package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	viewChat "github.com/johndosdos/synapse/components/chat"
	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/chat"
	"github.com/johndosdos/synapse/internal/model"
)

const maxSendBody = 64 << 10

// ServeHistory returns the recent messages of a room. htmx requests get the
// rendered bubbles instead of JSON.
func ServeHistory(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		roomID, ok := roomIDParam(r)
		if !ok {
			writeDetail(w, http.StatusBadRequest, "Invalid room id")
			return
		}

		msgs, err := svc.History(ctx, roomID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "failed to load messages", "error", err, "room_id", roomID)
			writeDetail(w, http.StatusInternalServerError, "Failed to load messages")
			return
		}

		if r.Header.Get("HX-Request") == "true" {
			id, _ := auth.GetUserFromContext(ctx)
			w.Header().Set("Content-Type", "text/html")
			if err := viewChat.History(msgs, id.UserID).Render(ctx, w); err != nil {
				slog.WarnContext(ctx, "failed to render history", "error", err)
			}
			return
		}

		writeJSON(w, http.StatusOK, msgs)
	}
}

// ServeSend accepts a message for a room from the authenticated user.
func ServeSend(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		roomID, ok := roomIDParam(r)
		if !ok {
			writeDetail(w, http.StatusBadRequest, "Invalid room id")
			return
		}

		id, err := auth.GetUserFromContext(ctx)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		var req model.SendRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSendBody)).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed request body")
			return
		}

		msg, err := svc.Send(ctx, id, roomID, req.Content)

		var rl *chat.RateLimitError
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, msg)
		case errors.As(err, &rl):
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.Wait.Seconds()))))
			writeDetail(w, http.StatusTooManyRequests, rl.Error())
		case errors.Is(err, chat.ErrEmptyContent):
			writeDetail(w, http.StatusBadRequest, "Message cannot be empty")
		case errors.Is(err, chat.ErrAccessDenied):
			writeDetail(w, http.StatusForbidden, "Access Denied")
		default:
			slog.ErrorContext(ctx, "failed to send message",
				"error", err,
				"room_id", roomID,
				"user_id", id.UserID.String())
			writeDetail(w, http.StatusInternalServerError, "Failed to send message")
		}
	}
}
