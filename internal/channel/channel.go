// Package channel delivers a room's live messages to a client, either over
// a server push socket or by polling the history endpoint.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/johndosdos/synapse/internal/client"
	"github.com/johndosdos/synapse/internal/config"
	"github.com/johndosdos/synapse/internal/model"
)

var (
	ErrNotOpen     = errors.New("channel is not open")
	ErrAlreadyOpen = errors.New("channel already opened")
)

// Channel is one room's delivery channel. A Channel is opened at most once;
// each room view builds a fresh one.
type Channel interface {
	// Open starts delivery for roomID. Events arrive on the returned channel
	// until an EventClosed, after which it is closed.
	Open(ctx context.Context, roomID int64, creds client.CredentialProvider) (<-chan Event, error)
	Send(ctx context.Context, content string) error
	Close() error
	State() State
}

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type CloseReason int

const (
	CloseNormal CloseReason = iota
	CloseDenied
	CloseError
)

func (r CloseReason) String() string {
	switch r {
	case CloseNormal:
		return "normal"
	case CloseDenied:
		return "denied"
	case CloseError:
		return "error"
	}
	return fmt.Sprintf("CloseReason(%d)", int(r))
}

type EventKind int

const (
	EventOpen EventKind = iota
	// EventMessage carries one pushed message.
	EventMessage
	// EventSnapshot carries a full history fetch.
	EventSnapshot
	// EventRateLimited is a server rejection of a send.
	EventRateLimited
	// EventError is a non-terminal failure.
	EventError
	EventClosed
)

type Event struct {
	Kind     EventKind
	Message  model.ChatMessage
	Messages []model.ChatMessage
	Reason   CloseReason
	Detail   string
	Err      error
}

// New builds the channel named by cfg.Transport.
func New(cfg config.Client) (Channel, error) {
	switch cfg.Transport {
	case config.TransportPush:
		return NewPush(cfg.APIBaseURL, cfg.ConnectTimeout), nil
	case config.TransportPoll:
		return NewPoll(cfg.APIBaseURL, cfg.PollInterval), nil
	}
	return nil, fmt.Errorf("internal/channel: unknown transport %q", cfg.Transport)
}

// emitter delivers events until stop is closed. Events raised after that
// have no reader that cares about them.
type emitter struct {
	ch   chan Event
	stop <-chan struct{}
}

func (e emitter) emit(ev Event) {
	select {
	case e.ch <- ev:
	case <-e.stop:
	}
}

// finish delivers the terminal event if there is room and closes ch.
func (e emitter) finish(ev Event) {
	select {
	case e.ch <- ev:
	case <-e.stop:
		select {
		case e.ch <- ev:
		default:
		}
	}
	close(e.ch)
}
