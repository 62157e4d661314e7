package main

import (
	"flag"
	"fmt"
	"os"

	"slotswap/pkg/auth"
	"slotswap/pkg/config"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"

	"github.com/joho/godotenv"
)

const ServiceName = "issue-token"

// issue-token prints a bearer token signed with the secret, issuer and TTL of
// the current environment. Logs go to stderr so stdout holds only the token.
func main() {
	envFile := flag.String("env-file", config.DefaultEnvFile, "optional .env file")
	subject := flag.String("sub", "", "principal id (required)")
	email := flag.String("email", "", "principal email")
	role := flag.String("role", "", "principal role")
	flag.Parse()

	log := logger.New(logger.Config{Format: logger.TEXT, Output: os.Stderr, Service: ServiceName})
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: issue-token -sub <principal-id> [-email <email>] [-role <role>]")
		os.Exit(2)
	}

	_ = godotenv.Load(*envFile)
	cfg := config.FromEnv()
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("JWT_SECRET must be set and at least 32 characters")
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenIssuer, cfg.TokenTTL)
	token, err := tokens.Issue(model.Principal{ID: *subject, Email: *email, Role: *role})
	if err != nil {
		log.Fatal("Failed to issue token", "subject", *subject, "error", err)
	}
	fmt.Println(token)
}
