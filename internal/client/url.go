package client

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/johndosdos/synapse/internal/config"
)

// BaseURL returns raw, or the local development origin when raw is unset.
func BaseURL(raw string) string {
	if raw == "" || raw == "undefined" {
		return config.DefaultAPIBaseURL
	}
	return raw
}

// PushURL derives the socket address of a room from the REST origin: wss
// for https origins, ws otherwise, on the same host.
func PushURL(base string, roomID int64, token string) string {
	scheme := "ws"
	if strings.HasPrefix(base, "https") {
		scheme = "wss"
	}

	host := base
	switch {
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	}
	host = strings.TrimSuffix(host, "/")

	return scheme + "://" + host + "/rooms/" + strconv.FormatInt(roomID, 10) +
		"/ws?token=" + url.QueryEscape(token)
}
