package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/broker"
	"github.com/johndosdos/synapse/internal/chat"
	"github.com/johndosdos/synapse/internal/handler"
	"github.com/johndosdos/synapse/internal/model"
	ratelimiter "github.com/johndosdos/synapse/internal/rate_limiter"
	"github.com/johndosdos/synapse/internal/testutil"
	ws "github.com/johndosdos/synapse/internal/websocket"
)

const secret = "handler-test-secret"

type server struct {
	*httptest.Server
	svc *chat.Service
}

func newServer(t *testing.T) server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	store := testutil.NewMemoryStore(1, 2)
	b := broker.NewLocal()
	cooldown := ratelimiter.NewMemoryCooldown(4*time.Second, ratelimiter.CleanupOpts{})

	hub := ws.NewHub()
	svc := chat.NewService(store, store, cooldown, b, nil, 100)
	svc.SetEvictor(hub)

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx, b)
	}()

	srv := httptest.NewServer(handler.NewRouter(handler.Deps{
		Service:   svc,
		Hub:       hub,
		JWTSecret: secret,
		JWTIssuer: "synapse",
	}))

	t.Cleanup(func() {
		cancel()
		<-hubDone
		srv.Close()
		cooldown.Cancel()
	})

	return server{Server: srv, svc: svc}
}

func newUser(t *testing.T, name string) (auth.Identity, string) {
	t.Helper()
	id := auth.Identity{UserID: uuid.New(), Username: name}
	token, err := auth.MakeJWT(id, "synapse", secret, time.Hour)
	require.NoError(t, err)
	return id, token
}

func (s server) do(t *testing.T, method, path, token, body string, header ...string) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func detailOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body model.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}

func TestRESTStatuses(t *testing.T) {
	s := newServer(t)
	_, token := newUser(t, "ann")

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"history_without_token", http.MethodGet, "/rooms/1/messages", "", "", http.StatusUnauthorized, "Could not validate credentials"},
		{"history_bad_room", http.MethodGet, "/rooms/abc/messages", token, "", http.StatusBadRequest, "Invalid room id"},
		{"send_as_non_member", http.MethodPost, "/rooms/1/messages", token, `{"content":"hi","room_id":1}`, http.StatusForbidden, "Access Denied"},
		{"send_malformed", http.MethodPost, "/rooms/1/messages", token, `{`, http.StatusBadRequest, "Malformed request body"},
		{"join_unknown_room", http.MethodPost, "/rooms/99/join", token, "", http.StatusNotFound, "Room not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantDetail, detailOf(t, resp))
		})
	}
}

func TestSendAndHistory(t *testing.T) {
	s := newServer(t)
	ann, token := newUser(t, "ann")

	resp := s.do(t, http.MethodPost, "/rooms/1/join", token, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	t.Run("empty_content", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/rooms/1/messages", token, `{"content":"   "}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Message cannot be empty", detailOf(t, resp))
	})

	var sent model.ChatMessage
	t.Run("created", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/rooms/1/messages", token, `{"content":"hello","room_id":1}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
		assert.Equal(t, "hello", sent.Content)
		assert.Equal(t, ann.UserID, sent.UserID)
		assert.Equal(t, "ann", sent.Owner.Username)
	})

	t.Run("rate_limited", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/rooms/1/messages", token, `{"content":"again"}`)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "4", resp.Header.Get("Retry-After"))
		assert.Equal(t, "Please wait 4 seconds", detailOf(t, resp))
	})

	t.Run("history_json", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/rooms/1/messages", token, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var msgs []model.ChatMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
		require.Len(t, msgs, 1)
		assert.Equal(t, sent.ID, msgs[0].ID)
	})

	t.Run("history_of_empty_room_is_empty_array", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/rooms/2/messages", token, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(body))
	})

	t.Run("history_html", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/rooms/1/messages", token, "", "HX-Request", "true")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "hello")
	})
}

func (s server) dial(t *testing.T, roomID, token string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/rooms/" + roomID + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (model.ServerFrame, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frame model.ServerFrame
	err := wsjson.Read(ctx, conn, &frame)
	return frame, err
}

func assertClosed(t *testing.T, err error, status websocket.StatusCode, reason string) {
	t.Helper()
	var ce websocket.CloseError
	require.True(t, errors.As(err, &ce), "want close error, got %v", err)
	assert.Equal(t, status, ce.Code)
	assert.Equal(t, reason, ce.Reason)
}

func TestWebsocket(t *testing.T) {
	t.Run("invalid_token_is_denied", func(t *testing.T) {
		s := newServer(t)
		conn := s.dial(t, "1", "garbage")
		_, err := readFrame(t, conn)
		assertClosed(t, err, websocket.StatusPolicyViolation, "Access Denied")
	})

	t.Run("foreign_issuer_is_denied", func(t *testing.T) {
		s := newServer(t)
		token, err := auth.MakeJWT(auth.Identity{UserID: uuid.New(), Username: "mallory"}, "elsewhere", secret, time.Hour)
		require.NoError(t, err)
		conn := s.dial(t, "1", token)
		_, err = readFrame(t, conn)
		assertClosed(t, err, websocket.StatusPolicyViolation, "Access Denied")

		resp := s.do(t, http.MethodGet, "/rooms/1/messages", token, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non_member_is_denied", func(t *testing.T) {
		s := newServer(t)
		_, token := newUser(t, "ann")
		conn := s.dial(t, "1", token)
		_, err := readFrame(t, conn)
		assertClosed(t, err, websocket.StatusPolicyViolation, "Access Denied")
	})

	t.Run("member_receives_own_and_others_messages", func(t *testing.T) {
		s := newServer(t)
		ann, annToken := newUser(t, "ann")
		bob, bobToken := newUser(t, "bob")
		ctx := context.Background()
		require.NoError(t, s.svc.Join(ctx, ann, 1))
		require.NoError(t, s.svc.Join(ctx, bob, 1))

		annConn := s.dial(t, "1", annToken)
		bobConn := s.dial(t, "1", bobToken)

		// A frame sent on the socket is only read after registration, so
		// each echo proves the sender is subscribed.
		require.NoError(t, wsjson.Write(ctx, annConn, model.SendRequest{Content: "from ann", RoomID: 1}))
		frame, err := readFrame(t, annConn)
		require.NoError(t, err)
		assert.Equal(t, "from ann", frame.Content)

		require.NoError(t, wsjson.Write(ctx, bobConn, model.SendRequest{Content: "from bob"}))
		frame, err = readFrame(t, bobConn)
		require.NoError(t, err)
		// bob registered after ann's message went out
		if frame.Content == "from ann" {
			frame, err = readFrame(t, bobConn)
			require.NoError(t, err)
		}
		assert.Equal(t, "from bob", frame.Content)

		frame, err = readFrame(t, annConn)
		require.NoError(t, err)
		assert.Equal(t, "from bob", frame.Content)
		assert.Equal(t, bob.UserID, frame.UserID)
		assert.Nil(t, frame.Error)
	})

	t.Run("second_send_gets_rate_limited_frame", func(t *testing.T) {
		s := newServer(t)
		ann, token := newUser(t, "ann")
		ctx := context.Background()
		require.NoError(t, s.svc.Join(ctx, ann, 1))

		conn := s.dial(t, "1", token)
		require.NoError(t, wsjson.Write(ctx, conn, model.SendRequest{Content: "one"}))
		require.NoError(t, wsjson.Write(ctx, conn, model.SendRequest{Content: "two"}))

		var got []model.ServerFrame
		for range 2 {
			frame, err := readFrame(t, conn)
			require.NoError(t, err)
			got = append(got, frame)
		}

		var errFrame, msgFrame model.ServerFrame
		for _, f := range got {
			if f.Error != nil {
				errFrame = f
			} else {
				msgFrame = f
			}
		}
		require.NotNil(t, errFrame.Error)
		assert.Equal(t, model.CodeRateLimited, errFrame.Error.Code)
		assert.Equal(t, "Please wait 4 seconds", errFrame.Error.Detail)
		assert.Equal(t, "one", msgFrame.Content)
	})

	t.Run("leaving_evicts_open_socket", func(t *testing.T) {
		s := newServer(t)
		ann, token := newUser(t, "ann")
		ctx := context.Background()
		require.NoError(t, s.svc.Join(ctx, ann, 1))

		conn := s.dial(t, "1", token)
		require.NoError(t, wsjson.Write(ctx, conn, model.SendRequest{Content: "here"}))
		_, err := readFrame(t, conn)
		require.NoError(t, err)

		resp := s.do(t, http.MethodDelete, "/rooms/1/join", token, "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		_, err = readFrame(t, conn)
		assertClosed(t, err, websocket.StatusPolicyViolation, "membership revoked")
	})
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	resp := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
