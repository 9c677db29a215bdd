// Command loadtest opens many push channels to one room, sends from each
// and reports how many messages every channel received.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/channel"
	"github.com/johndosdos/synapse/internal/client"
	"github.com/johndosdos/synapse/internal/config"
)

func main() {
	config.LoadEnv()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	clients := flag.Int("clients", 20, "number of concurrent users")
	messages := flag.Int("messages", 3, "messages sent per user")
	roomID := flag.Int64("room", 1, "room id")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal(err)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var received atomic.Int64
	start := time.Now()

	// Every user waits here until all sockets are open so no one misses a
	// message sent before it subscribed.
	var ready sync.WaitGroup
	ready.Add(*clients)

	g, gctx := errgroup.WithContext(ctx)
	for i := range *clients {
		g.Go(func() error {
			n, err := runUser(gctx, cfg, secret, *roomID, i, *messages, *clients, &ready)
			received.Add(n)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("load test failed: %v", err)
	}

	want := int64(*clients) * int64(*clients) * int64(*messages)
	fmt.Printf("clients=%d messages/client=%d received=%d expected=%d elapsed=%s\n",
		*clients, *messages, received.Load(), want, time.Since(start).Round(time.Millisecond))
}

func runUser(ctx context.Context, cfg config.Client, secret string, roomID int64,
	n, messages, clients int, ready *sync.WaitGroup) (int64, error) {
	arrived := sync.OnceFunc(ready.Done)
	defer arrived()

	id := auth.Identity{UserID: uuid.New(), Username: fmt.Sprintf("load-%d", n)}
	token, err := auth.MakeJWT(id, os.Getenv("JWT_ISS"), secret, time.Hour)
	if err != nil {
		return 0, err
	}
	creds := client.StaticToken(token)

	if err := client.New(cfg.APIBaseURL, creds).Join(ctx, roomID); err != nil {
		return 0, fmt.Errorf("user %d join: %w", n, err)
	}

	ch := channel.NewPush(cfg.APIBaseURL, cfg.ConnectTimeout)
	defer ch.Close()

	events, err := ch.Open(ctx, roomID, creds)
	if err != nil {
		return 0, err
	}

	var got int64
	want := int64(messages * clients)
	timeout := time.After(time.Duration(messages+1)*cfg.Cooldown + 30*time.Second)

	for got < want {
		select {
		case ev, ok := <-events:
			if !ok {
				return got, fmt.Errorf("user %d: channel closed early", n)
			}
			switch ev.Kind {
			case channel.EventOpen:
				arrived()
				ready.Wait()
				go send(ctx, ch, n, messages, cfg.Cooldown)
			case channel.EventMessage:
				got++
			case channel.EventRateLimited:
				log.Printf("user %d rate limited: %s", n, ev.Detail)
			case channel.EventClosed:
				return got, fmt.Errorf("user %d: closed (%s): %s", n, ev.Reason, ev.Detail)
			}
		case <-timeout:
			return got, nil
		case <-ctx.Done():
			return got, ctx.Err()
		}
	}
	return got, nil
}

func send(ctx context.Context, ch channel.Channel, n, messages int, cooldown time.Duration) {
	for i := range messages {
		if err := ch.Send(ctx, fmt.Sprintf("user %d message %d", n, i)); err != nil {
			log.Printf("user %d send failed: %v", n, err)
			return
		}
		select {
		case <-time.After(cooldown + 100*time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}
