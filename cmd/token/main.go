package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"go-factory-ops/pkg/jwt"

	"github.com/joho/godotenv"
)

// Mints an actor token for the audit trail, for operators calling the API
// directly (curl, scripts). The API itself never issues tokens.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	actorID := flag.String("actor", "", "actor id to embed in the token (required)")
	name := flag.String("name", "", "display name of the actor")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *actorID == "" {
		log.Fatal("usage: token -actor <id> [-name <name>] [-ttl <duration>]")
	}

	token, err := jwt.GenerateToken(*actorID, *name, *ttl)
	if err != nil {
		log.Fatal("Failed to generate token: ", err)
	}

	fmt.Println(token)
}
