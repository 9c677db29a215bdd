package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/johndosdos/synapse/internal/client"
)

// Poll re-fetches the room history on a fixed interval.
type Poll struct {
	baseURL  string
	interval time.Duration
	opts     []client.Option

	mu      sync.Mutex
	state   State
	api     *client.Client
	roomID  int64
	cancel  context.CancelFunc
	refresh chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

func NewPoll(baseURL string, interval time.Duration, opts ...client.Option) *Poll {
	return &Poll{
		baseURL:  baseURL,
		interval: interval,
		opts:     opts,
		refresh:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poll) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Open starts the poll loop. There is no connection to establish, so the
// channel is open immediately.
func (p *Poll) Open(ctx context.Context, roomID int64, creds client.CredentialProvider) (<-chan Event, error) {
	if _, err := creds.Token(ctx); err != nil {
		return nil, fmt.Errorf("internal/channel: credentials: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return nil, ErrAlreadyOpen
	}

	p.api = client.New(p.baseURL, creds, p.opts...)
	p.roomID = roomID
	p.state = StateOpen
	ctx, p.cancel = context.WithCancel(ctx)

	events := make(chan Event, 16)
	out := emitter{ch: events, stop: p.stop}
	out.emit(Event{Kind: EventOpen})
	go p.run(ctx, out)

	return events, nil
}

func (p *Poll) run(ctx context.Context, out emitter) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			out.finish(Event{Kind: EventClosed, Reason: CloseNormal})
			return
		case <-ticker.C:
		case <-p.refresh:
		}

		msgs, err := p.api.History(ctx, p.roomID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			// Retried on the next tick.
			slog.Warn("poll failed", "error", err, "room_id", p.roomID)
			out.emit(Event{Kind: EventError, Err: err})
			continue
		}
		out.emit(Event{Kind: EventSnapshot, Messages: msgs})
	}
}

// Send posts content and waits for the server's verdict. A successful send
// triggers an immediate refetch.
func (p *Poll) Send(ctx context.Context, content string) error {
	p.mu.Lock()
	api, roomID, state := p.api, p.roomID, p.state
	p.mu.Unlock()

	if state != StateOpen {
		return ErrNotOpen
	}

	if _, err := api.Send(ctx, roomID, content); err != nil {
		return err
	}

	select {
	case p.refresh <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the poll loop and waits for it to exit.
func (p *Poll) Close() error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return nil
	}
	started := p.state == StateOpen
	p.state = StateClosed
	close(p.stop)
	cancel := p.cancel
	p.mu.Unlock()

	if started {
		cancel()
		<-p.done
	}
	return nil
}
