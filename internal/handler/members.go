package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/chat"
)

// ServeJoin adds the caller to a room.
func ServeJoin(svc *chat.Service) http.HandlerFunc {
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

		switch err := svc.Join(ctx, id, roomID); {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, chat.ErrRoomNotFound):
			writeDetail(w, http.StatusNotFound, "Room not found")
		default:
			slog.ErrorContext(ctx, "failed to join room", "error", err, "room_id", roomID)
			writeDetail(w, http.StatusInternalServerError, "Failed to join room")
		}
	}
}

// ServeLeave removes the caller from a room and closes their sockets to it.
func ServeLeave(svc *chat.Service) http.HandlerFunc {
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

		if err := svc.Leave(ctx, id, roomID); err != nil {
			slog.ErrorContext(ctx, "failed to leave room", "error", err, "room_id", roomID)
			writeDetail(w, http.StatusInternalServerError, "Failed to leave room")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
