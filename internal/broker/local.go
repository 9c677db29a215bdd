package broker

import (
	"context"
	"sync"

	"github.com/johndosdos/synapse/internal/model"
)

// Local is an in-process Broker for single-instance deployments.
type Local struct {
	mu   sync.RWMutex
	subs map[chan<- model.ChatMessage]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[chan<- model.ChatMessage]struct{})}
}

// Publish hands payload to every subscriber, blocking until each accepted
// it so no subscriber observes a gap.
func (b *Local) Publish(ctx context.Context, payload model.ChatMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Local) Subscribe(ctx context.Context, receiveMsg chan<- model.ChatMessage) error {
	b.mu.Lock()
	b.subs[receiveMsg] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, receiveMsg)
		b.mu.Unlock()
	}()

	return nil
}
