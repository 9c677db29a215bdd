// Package chatview holds the client state of one open room: the message
// list, the delivery channel and the send cooldown.
package chatview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/johndosdos/synapse/internal/channel"
	"github.com/johndosdos/synapse/internal/client"
	"github.com/johndosdos/synapse/internal/model"
)

const (
	textAccessDenied = "Access Denied"
	textSendFailed   = "Failed to send message"
	textLoadFailed   = "Failed to load messages"
	textDisconnected = "Disconnected from chat"
	textNotConnected = "Connection lost. Please re-enter the room."
)

// HistoryFetcher loads a room's recent messages.
type HistoryFetcher interface {
	History(ctx context.Context, roomID int64) ([]model.ChatMessage, error)
}

// View is a consistent snapshot of the view model for rendering.
type View struct {
	RoomID            int64
	Messages          []model.ChatMessage
	State             channel.State
	CloseReason       channel.CloseReason
	Error             string
	CooldownRemaining int
	CanSend           bool
	Sending           bool
	Placeholder       string
	// ScrollSeq increases whenever the view should scroll to the newest
	// message.
	ScrollSeq uint64
}

type Option func(*ViewModel)

// WithTick sets the cooldown tick length. One tick is one second of
// countdown.
func WithTick(d time.Duration) Option {
	return func(vm *ViewModel) { vm.tick = d }
}

// ViewModel is safe for concurrent use. Every asynchronous result carries
// the epoch of the room view that started it and is dropped once that view
// is gone.
type ViewModel struct {
	api        HistoryFetcher
	newChannel func() channel.Channel
	creds      client.CredentialProvider
	cooldown   time.Duration
	tick       time.Duration

	mu          sync.Mutex
	epoch       uint64
	roomID      int64
	member      bool
	list        MessageList
	state       channel.State
	closeReason channel.CloseReason
	denied      bool
	errText     string
	rateLimited bool
	rate        RateLimitState
	sending     bool
	scrollSeq   uint64
	ch          channel.Channel
	cancel      context.CancelFunc

	changed chan struct{}
}

func New(api HistoryFetcher, newChannel func() channel.Channel, creds client.CredentialProvider,
	cooldown time.Duration, opts ...Option) *ViewModel {
	vm := &ViewModel{
		api:        api,
		newChannel: newChannel,
		creds:      creds,
		cooldown:   cooldown,
		tick:       time.Second,
		changed:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Changes signals after every state change. Signals coalesce.
func (vm *ViewModel) Changes() <-chan struct{} {
	return vm.changed
}

func (vm *ViewModel) notify() {
	select {
	case vm.changed <- struct{}{}:
	default:
	}
}

// OpenRoom tears down the current room view and starts a new one. The
// channel is only opened for members holding a credential.
func (vm *ViewModel) OpenRoom(ctx context.Context, roomID int64, membership bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	defer vm.notify()

	vm.teardownLocked()

	vm.epoch++
	epoch := vm.epoch
	vm.roomID = roomID
	vm.member = membership

	ctx, vm.cancel = context.WithCancel(ctx)

	go vm.loadHistory(ctx, epoch, roomID)

	if !membership {
		return
	}
	if _, err := vm.creds.Token(ctx); err != nil {
		slog.Warn("not opening chat channel without a credential", "room_id", roomID, "error", err)
		return
	}

	ch := vm.newChannel()
	events, err := ch.Open(ctx, roomID, vm.creds)
	if err != nil {
		slog.Warn("failed to open chat channel", "room_id", roomID, "error", err)
		vm.state = channel.StateClosed
		vm.closeReason = channel.CloseError
		vm.errText = textDisconnected
		return
	}
	vm.ch = ch
	vm.state = channel.StateConnecting

	go vm.pump(epoch, events)
}

// CloseRoom discards the current room view.
func (vm *ViewModel) CloseRoom() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	defer vm.notify()

	vm.teardownLocked()
	vm.epoch++
	vm.roomID = 0
	vm.member = false
}

// teardownLocked cancels the current view and closes its channel. Pending
// callbacks are fenced off by the epoch bump that follows.
func (vm *ViewModel) teardownLocked() {
	if vm.cancel != nil {
		vm.cancel()
		vm.cancel = nil
	}
	if vm.ch != nil {
		if err := vm.ch.Close(); err != nil {
			slog.Debug("failed to close chat channel", "error", err)
		}
		vm.ch = nil
	}

	vm.list.Reset()
	vm.rate.Reset()
	vm.state = channel.StateIdle
	vm.closeReason = channel.CloseNormal
	vm.denied = false
	vm.errText = ""
	vm.rateLimited = false
	vm.sending = false
}

func (vm *ViewModel) loadHistory(ctx context.Context, epoch uint64, roomID int64) {
	msgs, err := vm.api.History(ctx, roomID)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if epoch != vm.epoch {
		return
	}
	defer vm.notify()

	if err != nil {
		var hfe *client.HistoryFetchError
		if !errors.As(err, &hfe) {
			err = &client.HistoryFetchError{RoomID: roomID, Err: err}
		}
		slog.Warn("failed to load chat history", "error", err)
		vm.errText = textLoadFailed
		return
	}

	// Pushed messages may have arrived first, so the load is merged rather
	// than replacing the list.
	vm.list.MergeAll(msgs)
	vm.scrollSeq++
}

func (vm *ViewModel) pump(epoch uint64, events <-chan channel.Event) {
	for ev := range events {
		vm.apply(epoch, ev)
	}
}

func (vm *ViewModel) apply(epoch uint64, ev channel.Event) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if epoch != vm.epoch {
		return
	}
	defer vm.notify()

	switch ev.Kind {
	case channel.EventOpen:
		vm.state = channel.StateOpen
		vm.errText = ""

	case channel.EventMessage:
		if ev.Message.RoomID != 0 && ev.Message.RoomID != vm.roomID {
			return
		}
		if vm.list.Merge(ev.Message) {
			vm.scrollSeq++
		}

	case channel.EventSnapshot:
		before := vm.list.LastSeenID()
		vm.list.Replace(ev.Messages)
		if vm.list.LastSeenID() > before {
			vm.scrollSeq++
		}

	case channel.EventRateLimited:
		vm.startCooldownLocked(epoch, ev.Detail)

	case channel.EventError:
		if ev.Detail != "" {
			vm.errText = ev.Detail
			return
		}
		// Poll failures keep the last known list and retry on the next tick.
		slog.Warn("chat channel error", "room_id", vm.roomID, "error", ev.Err)

	case channel.EventClosed:
		vm.state = channel.StateClosed
		vm.closeReason = ev.Reason
		switch ev.Reason {
		case channel.CloseDenied:
			vm.denied = true
			vm.errText = ev.Detail
			if vm.errText == "" {
				vm.errText = textAccessDenied
			}
		case channel.CloseError:
			slog.Warn("chat channel closed", "room_id", vm.roomID, "error", ev.Err, "detail", ev.Detail)
			vm.errText = textDisconnected
		}
	}
}

// Send submits content on the open channel. Gating happens before any
// network write.
func (vm *ViewModel) Send(ctx context.Context, content string) error {
	vm.mu.Lock()
	switch {
	case vm.roomID == 0:
		vm.mu.Unlock()
		return ErrNoRoom
	case strings.TrimSpace(content) == "":
		vm.mu.Unlock()
		return client.ErrEmptyContent
	case !vm.member:
		vm.mu.Unlock()
		return ErrNotMember
	case !vm.rate.CanSend():
		vm.mu.Unlock()
		return ErrCoolingDown
	case vm.sending:
		vm.mu.Unlock()
		return ErrSendBusy
	case vm.ch == nil || vm.state != channel.StateOpen:
		if !vm.denied {
			vm.errText = textNotConnected
			vm.notify()
		}
		vm.mu.Unlock()
		return channel.ErrNotOpen
	}

	epoch, ch := vm.epoch, vm.ch
	vm.sending = true
	vm.notify()
	vm.mu.Unlock()

	err := ch.Send(ctx, content)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if epoch != vm.epoch {
		return err
	}
	defer vm.notify()
	vm.sending = false

	var rl *client.RateLimitError
	switch {
	case err == nil:
		vm.errText = ""
		vm.startCooldownLocked(epoch, "")
	case errors.As(err, &rl):
		vm.startCooldownLocked(epoch, rl.Detail)
	case errors.Is(err, client.ErrAccessDenied):
		vm.errText = textAccessDenied
	case errors.Is(err, channel.ErrNotOpen):
		vm.errText = textNotConnected
	default:
		slog.Warn("failed to send chat message", "room_id", vm.roomID, "error", err)
		vm.errText = textSendFailed
	}
	return err
}

// startCooldownLocked starts the countdown with the configured cooldown.
// A server supplied detail is shown until the countdown ends, or until the
// next accepted send when there is no local countdown.
func (vm *ViewModel) startCooldownLocked(epoch uint64, detail string) {
	if detail != "" {
		vm.errText = detail
	}
	if vm.cooldown <= 0 {
		return
	}
	running := !vm.rate.CanSend()
	vm.rate.Start(vm.cooldown)
	if detail != "" {
		vm.rateLimited = true
	}
	if !running {
		go vm.countdown(epoch)
	}
}

func (vm *ViewModel) countdown(epoch uint64) {
	ticker := time.NewTicker(vm.tick)
	defer ticker.Stop()

	for range ticker.C {
		vm.mu.Lock()
		if epoch != vm.epoch {
			vm.mu.Unlock()
			return
		}
		done := vm.rate.Tick()
		if done && vm.rateLimited {
			vm.errText = ""
			vm.rateLimited = false
		}
		finished := vm.rate.CanSend()
		vm.notify()
		vm.mu.Unlock()

		if finished {
			return
		}
	}
}

// Snapshot returns the current view.
func (vm *ViewModel) Snapshot() View {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return View{
		RoomID:            vm.roomID,
		Messages:          vm.list.Messages(),
		State:             vm.state,
		CloseReason:       vm.closeReason,
		Error:             vm.errText,
		CooldownRemaining: vm.rate.Remaining(),
		CanSend: vm.member && !vm.denied && !vm.sending &&
			vm.state == channel.StateOpen && vm.rate.CanSend(),
		Sending:     vm.sending,
		Placeholder: vm.rate.Placeholder(),
		ScrollSeq:   vm.scrollSeq,
	}
}
