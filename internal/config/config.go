// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is the local development origin used when API_BASE_URL
// is unset.
const DefaultAPIBaseURL = "http://localhost:8080"

// Transport names accepted by CHAT_TRANSPORT.
const (
	TransportPush = "push"
	TransportPoll = "poll"
)

// Server holds the settings of the chat server process.
type Server struct {
	Port         string
	DBURL        string
	JWTSecret    string
	JWTIssuer    string
	RedisURL     string
	NATSURL      string
	NATSCred     string
	NATSUser     string
	NATSPassword string

	Cooldown     time.Duration
	HistoryLimit int32

	IPRateRequests int
	IPRateWindow   time.Duration
}

// Client holds the settings of a chat client.
type Client struct {
	APIBaseURL     string
	Transport      string
	PollInterval   time.Duration
	ConnectTimeout time.Duration
	Cooldown       time.Duration
	Token          string
}

// LoadEnv reads a .env file into the process environment if one exists.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}
}

// LoadServer builds the server configuration from the environment.
func LoadServer() (Server, error) {
	var err error
	cfg := Server{
		Port:         getenv("PORT", "8080"),
		DBURL:        os.Getenv("DB_URL"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTIssuer:    os.Getenv("JWT_ISS"),
		RedisURL:     os.Getenv("REDIS_URL"),
		NATSURL:      os.Getenv("NATS_URL"),
		NATSCred:     os.Getenv("NATS_CRED"),
		NATSUser:     os.Getenv("NATS_USER"),
		NATSPassword: os.Getenv("NATS_PASSWORD"),
	}

	if cfg.Cooldown, err = duration("CHAT_COOLDOWN", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.HistoryLimit, err = integer32("CHAT_HISTORY_LIMIT", 100); err != nil {
		return Server{}, err
	}
	if cfg.IPRateRequests, err = integer("IP_RATE_REQUESTS", 120); err != nil {
		return Server{}, err
	}
	if cfg.IPRateWindow, err = duration("IP_RATE_WINDOW", time.Minute); err != nil {
		return Server{}, err
	}

	return cfg, cfg.Validate()
}

// Validate reports the first missing or out of range setting.
func (c Server) Validate() error {
	switch {
	case c.DBURL == "":
		return errors.New("DB_URL environment variable is not set")
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET environment variable is not set")
	case c.Cooldown < 0:
		return fmt.Errorf("CHAT_COOLDOWN must not be negative, got %s", c.Cooldown)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	case c.IPRateRequests <= 0 || c.IPRateWindow <= 0:
		return errors.New("IP_RATE_REQUESTS and IP_RATE_WINDOW must be positive")
	}
	return nil
}

// LoadClient builds the client configuration from the environment.
func LoadClient() (Client, error) {
	var err error
	cfg := Client{
		APIBaseURL: os.Getenv("API_BASE_URL"),
		Transport:  getenv("CHAT_TRANSPORT", TransportPush),
		Token:      os.Getenv("CHAT_TOKEN"),
	}
	if cfg.APIBaseURL == "" || cfg.APIBaseURL == "undefined" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}

	if cfg.PollInterval, err = duration("CHAT_POLL_INTERVAL", 3*time.Second); err != nil {
		return Client{}, err
	}
	if cfg.ConnectTimeout, err = duration("CHAT_CONNECT_TIMEOUT", 10*time.Second); err != nil {
		return Client{}, err
	}
	if cfg.Cooldown, err = duration("CHAT_COOLDOWN", 3*time.Second); err != nil {
		return Client{}, err
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid client setting.
func (c Client) Validate() error {
	if c.Transport != TransportPush && c.Transport != TransportPoll {
		return fmt.Errorf("CHAT_TRANSPORT must be %q or %q, got %q", TransportPush, TransportPoll, c.Transport)
	}
	if c.PollInterval <= 0 || c.ConnectTimeout <= 0 {
		return errors.New("CHAT_POLL_INTERVAL and CHAT_CONNECT_TIMEOUT must be positive")
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("CHAT_COOLDOWN must not be negative, got %s", c.Cooldown)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// integer32 rejects values that do not fit in an int32 instead of wrapping.
func integer32(key string, fallback int32) (int32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return int32(n), nil
}
