package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/johndosdos/synapse/internal/client"
	"github.com/johndosdos/synapse/internal/model"
)

const deniedDetail = "Access Denied"

// Push receives messages over a socket the server writes to.
type Push struct {
	baseURL        string
	connectTimeout time.Duration

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
	stop   chan struct{}
	closed bool
	done   chan struct{}
}

func NewPush(baseURL string, connectTimeout time.Duration) *Push {
	return &Push{
		baseURL:        client.BaseURL(baseURL),
		connectTimeout: connectTimeout,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (p *Push) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Push) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Open dials in the background; the outcome arrives as EventOpen or
// EventClosed.
func (p *Push) Open(ctx context.Context, roomID int64, creds client.CredentialProvider) (<-chan Event, error) {
	token, err := creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("internal/channel: credentials: %w", err)
	}

	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	p.state = StateConnecting
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	events := make(chan Event, 64)
	go p.run(ctx, client.PushURL(p.baseURL, roomID, token), emitter{ch: events, stop: p.stop})

	return events, nil
}

func (p *Push) run(ctx context.Context, url string, out emitter) {
	defer close(p.done)

	dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	cancel()
	if err != nil {
		p.setState(StateClosed)
		if ctx.Err() != nil {
			out.finish(Event{Kind: EventClosed, Reason: CloseNormal})
			return
		}
		slog.Warn("failed to connect chat socket", "error", err)
		out.finish(Event{Kind: EventClosed, Reason: CloseError, Err: fmt.Errorf("internal/channel: dial: %w", err)})
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		out.finish(Event{Kind: EventClosed, Reason: CloseNormal})
		return
	}
	p.conn = conn
	p.state = StateOpen
	p.mu.Unlock()

	out.emit(Event{Kind: EventOpen})

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			p.setState(StateClosed)
			out.finish(p.closeEvent(err))
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		// A frame we cannot decode costs that frame, not the session.
		var frame model.ServerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("dropping malformed chat frame", "error", err, "size", len(data))
			out.emit(Event{Kind: EventError, Err: fmt.Errorf("internal/channel: decode frame: %w", err)})
			continue
		}

		switch {
		case frame.Error == nil:
			out.emit(Event{Kind: EventMessage, Message: frame.ChatMessage})
		case frame.Error.Code == model.CodeRateLimited:
			out.emit(Event{Kind: EventRateLimited, Detail: frame.Error.Detail})
		default:
			out.emit(Event{Kind: EventError, Detail: frame.Error.Detail})
		}
	}
}

// closeEvent maps the error that ended the read loop to the terminal event.
func (p *Push) closeEvent(err error) Event {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return Event{Kind: EventClosed, Reason: CloseNormal}
	}

	var ce websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.StatusPolicyViolation:
			detail := ce.Reason
			if detail == "" {
				detail = deniedDetail
			}
			return Event{Kind: EventClosed, Reason: CloseDenied, Detail: detail, Err: client.ErrAccessDenied}
		case websocket.StatusNormalClosure:
			return Event{Kind: EventClosed, Reason: CloseNormal}
		}
		return Event{Kind: EventClosed, Reason: CloseError, Detail: ce.Reason, Err: err}
	}

	slog.Warn("chat socket failed", "error", err)
	return Event{Kind: EventClosed, Reason: CloseError, Err: err}
}

// Send writes content to the socket without waiting for the echo.
func (p *Push) Send(ctx context.Context, content string) error {
	p.mu.Lock()
	conn, state := p.conn, p.state
	p.mu.Unlock()

	if state != StateOpen || conn == nil {
		return ErrNotOpen
	}
	if err := wsjson.Write(ctx, conn, model.SendRequest{Content: content}); err != nil {
		return fmt.Errorf("internal/channel: write: %w", err)
	}
	return nil
}

// Close ends the session and waits for the reader to exit.
func (p *Push) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.state != StateIdle
	conn, cancel := p.conn, p.cancel
	p.state = StateClosed
	close(p.stop)
	p.mu.Unlock()

	if !started {
		return nil
	}

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "")
	}
	cancel()
	<-p.done

	// The peer may already have closed; there is nothing left to release.
	if err != nil {
		slog.Debug("chat socket close", "error", err)
	}
	return nil
}
