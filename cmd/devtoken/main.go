// Command devtoken prints an access token for local testing, signed
// with JWT_SECRET.
//
//	devtoken -user 10 -role participant
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/iliyamo/ticket-sales/internal/config"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: %v", err)
	}
	user := flag.Uint64("user", 1, "user id placed in the sub claim")
	role := flag.String("role", model.RoleParticipant, "PARTICIPANT or ORGANIZER")
	ttl := flag.Duration("ttl", config.AccessTokenTTL(), "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	r := strings.ToUpper(*role)
	if r != model.RoleParticipant && r != model.RoleOrganizer {
		log.Fatalf("unknown role %q", *role)
	}

	tok, err := utils.NewAccessToken(secret, *user, r, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tok.Token)
}
