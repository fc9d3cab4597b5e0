// Package main provides a CLI for local development: it signs access tokens
// with the dev key and hashes passwords for ADMIN_PASSWORD_HASH.
// Tokens signed here will NOT work in production.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	jwttoken "admissions/internal/jwt_token"
	"admissions/pkg/requestcontext"
	"admissions/pkg/secrets"
)

const (
	// Matches config.go when JWT_SIGNING_KEY is not set.
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer   = "admissions"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresAt string            `json:"expires_at"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	accessUserID := accessCmd.String("user-id", "", "User ID. Generated if empty.")
	accessEmail := accessCmd.String("email", "applicant@example.edu", "Email claim")
	accessRole := accessCmd.String("role", "applicant", "Role claim (use \"admin\" for admin routes)")
	accessKey := accessCmd.String("key", devSigningKey, "HS256 signing key")
	accessTTL := accessCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	hashCmd := flag.NewFlagSet("hash", flag.ExitOnError)
	hashPassword := hashCmd.String("password", "", "Password to hash. Read from stdin if empty.")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "access":
		_ = accessCmd.Parse(os.Args[2:])
		generateAccessToken(*accessUserID, *accessEmail, *accessRole, *accessKey, *accessTTL, *accessJSON)
	case "hash":
		_ = hashCmd.Parse(os.Args[2:])
		hash(*hashPassword)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - development helpers for the admissions API

WARNING: access tokens are signed with the dev key by default and will NOT
         work in production.

Usage:
  tokengen <command> [flags]

Commands:
  access    Generate an access token (JWT)
  hash      Hash a password for ADMIN_PASSWORD_HASH

Examples:
  # Applicant token with a generated user id
  tokengen access

  # Admin token for /admin routes
  tokengen access -role admin -email admin@example.edu

  # Hash the admin password
  echo -n 'correct horse' | tokengen hash`)
}

func generateAccessToken(userID, email, role, key string, ttl time.Duration, jsonOutput bool) {
	if userID == "" {
		userID = uuid.NewString()
	}
	svc := jwttoken.NewJWTService(key, defaultIssuer, ttl)
	actor := requestcontext.Actor{UserID: userID, Email: email, Role: role}

	token, expiresAt, err := svc.GenerateAccessToken(context.Background(), actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "access_token",
			ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
			Claims: map[string]any{
				"sub":   userID,
				"email": email,
				"role":  role,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("User ID:    %s\n", userID)
	fmt.Printf("Email:      %s\n", email)
	fmt.Printf("Role:       %s\n", role)
	fmt.Printf("Expires At: %s\n", expiresAt.UTC().Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/me/data-export")
}

func hash(password string) {
	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	h, err := secrets.Hash(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(h)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
