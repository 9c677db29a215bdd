// Command devtoken mints a signed bearer token for local development.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/config"
)

func main() {
	config.LoadEnv()
	log.SetFlags(0)

	sub := flag.String("sub", "", "user id (a new uuid when empty)")
	name := flag.String("name", "dev", "display name")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	userID := uuid.New()
	if *sub != "" {
		var err error
		if userID, err = uuid.Parse(*sub); err != nil {
			log.Fatalf("invalid -sub: %v", err)
		}
	}

	token, err := auth.MakeJWT(auth.Identity{UserID: userID, Username: *name}, os.Getenv("JWT_ISS"), secret, *ttl)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
