package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/chat"
	"github.com/johndosdos/synapse/internal/model"
	ws "github.com/johndosdos/synapse/internal/websocket"
)

// ServeWs handles the client's websocket connection upgrade for one room.
// The token travels in the query string, so the check happens here rather
// than in the auth middleware; a rejected client sees close status 1008.
func ServeWs(h *ws.Hub, svc *chat.Service, jwtSecret, issuer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to accept websocket", "error", err)
			return
		}

		roomID, ok := roomIDParam(r)
		if !ok {
			conn.Close(websocket.StatusPolicyViolation, "Access Denied")
			return
		}

		id, err := identityFromRequest(r, jwtSecret, issuer)
		if err != nil {
			slog.DebugContext(ctx, "rejected websocket credential", "error", err, "room_id", roomID)
			conn.Close(websocket.StatusPolicyViolation, "Access Denied")
			return
		}

		member, err := svc.CanWrite(ctx, id, roomID)
		if err != nil {
			slog.ErrorContext(ctx, "membership check failed", "error", err, "room_id", roomID)
			conn.Close(websocket.StatusInternalError, "membership check failed")
			return
		}
		if !member {
			conn.Close(websocket.StatusPolicyViolation, "Access Denied")
			return
		}

		slog.InfoContext(ctx, "upgraded connection",
			"user_id", id.UserID.String(),
			"room_id", roomID)

		// We'll register our new client to the central hub.
		c := ws.NewClient(conn, id.UserID, id.Username, roomID)
		reg := ws.Registration{
			Client: c,
			Done:   make(chan struct{}),
		}

		select {
		case h.Register <- reg:
		case <-h.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ctx.Done():
			conn.CloseNow()
			return
		}

		// Wait for registration to complete
		<-reg.Done

		// We block on c.ReadMessage() because the request context will be canceled as soon
		// we return from the ServeWs() handler.
		go c.WriteMessage(ctx)
		c.ReadMessage(ctx, func(ctx context.Context, roomID int64, content string) (model.ChatMessage, error) {
			return svc.Send(ctx, id, roomID, content)
		})
	}
}

func identityFromRequest(r *http.Request, jwtSecret, issuer string) (auth.Identity, error) {
	token, err := auth.TokenFromRequest(r)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.ValidateJWT(token, jwtSecret, issuer)
}
