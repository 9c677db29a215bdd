// Package main our entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/johndosdos/synapse/internal/broker"
	"github.com/johndosdos/synapse/internal/chat"
	"github.com/johndosdos/synapse/internal/config"
	"github.com/johndosdos/synapse/internal/database"
	"github.com/johndosdos/synapse/internal/handler"
	ratelimiter "github.com/johndosdos/synapse/internal/rate_limiter"
	ws "github.com/johndosdos/synapse/internal/websocket"
)

func main() {
	config.LoadEnv()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	if err := run(); err != nil {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	log.Println("Starting application...")

	// Init DB
	log.Println("Initializing Database connection...")
	dbConn, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("could not connect to the postgresql database: %w", err)
	}
	defer dbConn.Close()

	if err := database.Migrate(dbConn); err != nil {
		return err
	}
	store := chat.NewPostgresStore(database.New(dbConn))

	health := []handler.Pinger{dbConn}

	// Init broker
	var b broker.Broker = broker.NewLocal()
	if cfg.NATSURL != "" {
		log.Println("Initializing NATS connection...")
		conn, err := connectNATS(cfg)
		if err != nil {
			return err
		}
		defer func() {
			// Drain NATS connection.
			if err := conn.Drain(); err != nil {
				log.Printf("couldn't drain NATS conn: %+v", err)
			}
		}()

		js, err := jetstream.New(conn)
		if err != nil {
			return fmt.Errorf("failed to create jetstream instance: %w", err)
		}
		if b, err = broker.NewJetStream(ctx, js); err != nil {
			return err
		}
	}

	// Init cooldown
	var cooldown ratelimiter.Cooldown
	if cfg.RedisURL != "" {
		log.Println("Initializing Redis connection...")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		rc := ratelimiter.NewRedisCooldown(rdb, "synapse:cooldown", cfg.Cooldown)
		defer rc.Close()

		cooldown = rc
		health = append(health, handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	} else {
		mc := ratelimiter.NewMemoryCooldown(cfg.Cooldown, ratelimiter.CleanupOpts{
			TTL:      10 * time.Minute,
			Interval: time.Minute,
		})
		defer mc.Cancel()
		cooldown = mc
	}

	ipLimiter := ratelimiter.NewIPRateLimiter(cfg.IPRateRequests, cfg.IPRateWindow, ratelimiter.CleanupOpts{
		TTL:      3 * time.Minute,
		Interval: time.Minute,
	})
	defer ipLimiter.Cancel()

	// hub.Run is our central hub that is always listening for client related events.
	hub := ws.NewHub()
	svc := chat.NewService(store, store, cooldown, b, hub, cfg.HistoryLimit)

	server := &http.Server{
		Addr: "0.0.0.0:" + cfg.Port,
		Handler: handler.NewRouter(handler.Deps{
			Service:   svc,
			Hub:       hub,
			JWTSecret: cfg.JWTSecret,
			JWTIssuer: cfg.JWTIssuer,
			IPLimiter: ipLimiter,
			Health:    health,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx, b)
	})

	g.Go(func() error {
		log.Printf("Server starting at 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutdown signal received; shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectNATS(cfg config.Server) (*nats.Conn, error) {
	var natsCredentials []nats.Option

	if cfg.NATSCred != "" {
		natsCredentials = append(natsCredentials, nats.UserCredentials(cfg.NATSCred))
	} else if cfg.NATSUser != "" && cfg.NATSPassword != "" {
		natsCredentials = append(natsCredentials, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}

	natsCredentials = append(natsCredentials, nats.Timeout(5*time.Second))

	conn, err := nats.Connect(cfg.NATSURL, natsCredentials...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}
