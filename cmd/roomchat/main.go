// Command roomchat is a terminal client for one chat room at a time.
//
// Lines typed are sent to the open room. Commands:
//
//	/room N   switch to room N
//	/leave    leave the open room
//	/quit     exit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/johndosdos/synapse/internal/channel"
	"github.com/johndosdos/synapse/internal/chatview"
	"github.com/johndosdos/synapse/internal/client"
	"github.com/johndosdos/synapse/internal/config"
)

func main() {
	config.LoadEnv()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	roomID := flag.Int64("room", 1, "room to open on start")
	join := flag.Bool("join", true, "join rooms before opening them")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Token == "" {
		log.Fatal("CHAT_TOKEN environment variable is not set")
	}
	if _, err := channel.New(cfg); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	creds := client.StaticToken(cfg.Token)
	api := client.New(cfg.APIBaseURL, creds)
	vm := chatview.New(api, func() channel.Channel {
		ch, _ := channel.New(cfg)
		return ch
	}, creds, cfg.Cooldown)
	defer vm.CloseRoom()

	open := func(id int64) {
		member := false
		if *join {
			if err := api.Join(ctx, id); err != nil {
				fmt.Printf("! could not join room %d: %v\n", id, err)
			} else {
				member = true
			}
		}
		vm.OpenRoom(ctx, id, member)
	}

	go render(ctx, vm)
	open(*roomID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch {
			case line == "/quit":
				return
			case line == "/leave":
				id := vm.Snapshot().RoomID
				vm.CloseRoom()
				if err := api.Leave(ctx, id); err != nil {
					fmt.Printf("! could not leave room %d: %v\n", id, err)
				}
			case strings.HasPrefix(line, "/room "):
				id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/room ")), 10, 64)
				if err != nil {
					fmt.Println("! usage: /room N")
					continue
				}
				open(id)
			default:
				if err := vm.Send(ctx, line); err != nil {
					reportSendError(err, vm.Snapshot())
				}
			}
		}
	}
}

func reportSendError(err error, view chatview.View) {
	var rl *client.RateLimitError
	switch {
	case errors.Is(err, chatview.ErrCoolingDown):
		fmt.Printf("! %s\n", view.Placeholder)
	case errors.As(err, &rl):
		fmt.Printf("! %s\n", rl.Detail)
	case errors.Is(err, chatview.ErrNotMember):
		fmt.Println("! join the room to chat")
	default:
		fmt.Printf("! %v\n", err)
	}
}

// render prints what changed since the last snapshot.
func render(ctx context.Context, vm *chatview.ViewModel) {
	var (
		room     int64
		lastID   int64
		lastErr  string
		lastSeen channel.State
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-vm.Changes():
		}

		view := vm.Snapshot()
		if view.RoomID != room {
			room, lastID, lastErr = view.RoomID, 0, ""
			if room != 0 {
				fmt.Printf("-- room %d --\n", room)
			}
		}
		if view.State != lastSeen {
			lastSeen = view.State
			fmt.Printf("-- %s --\n", view.State)
		}
		for _, m := range view.Messages {
			if m.ID <= lastID {
				continue
			}
			lastID = m.ID
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.AuthorName(), m.Content)
		}
		if view.Error != lastErr {
			lastErr = view.Error
			if lastErr != "" {
				fmt.Printf("! %s\n", lastErr)
			}
		}
	}
}
