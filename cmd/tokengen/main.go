// Package main provides a CLI tool for generating test tokens for the portal
// API. These tokens use the dev signing key and will NOT work in production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cynergists/internal/platform/middleware"
)

const (
	// Dev signing key, matches config.go when PORTAL_JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	// Default admin token for local/dev environments
	devAdminToken = "dev-admin-token-change-in-production"

	defaultTokenTTL = time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	bearerCmd := flag.NewFlagSet("bearer", flag.ExitOnError)
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)

	bearerUserID := bearerCmd.String("user-id", "", "User ID (UUID). Generated if empty.")
	bearerTenantID := bearerCmd.String("tenant-id", "", "Tenant ID (UUID, optional)")
	bearerTTL := bearerCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	bearerKey := bearerCmd.String("key", devSigningKey, "Signing key")
	bearerJSON := bearerCmd.Bool("json", false, "Output as JSON")

	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "bearer":
		bearerCmd.Parse(os.Args[2:])
		generateBearerToken(*bearerUserID, *bearerTenantID, *bearerTTL, *bearerKey, *bearerJSON)
	case "admin":
		adminCmd.Parse(os.Args[2:])
		showAdminToken(*adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate test tokens for the portal API

WARNING: These tokens use the dev signing key and will NOT work in production.
         Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  bearer    Generate a portal bearer token (JWT)
  admin     Show the admin API token

Examples:
  # Generate a bearer token with generated user and no tenant
  tokengen bearer

  # Generate a bearer token bound to a tenant
  tokengen bearer -tenant-id "550e8400-e29b-41d4-a716-446655440000"

  # Get admin token for the X-Admin-Token header
  tokengen admin

  # Output as JSON
  tokengen bearer -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateBearerToken(userID, tenantID string, ttl time.Duration, signingKey string, jsonOutput bool) {
	uid := parseOrGenerateUUID(userID, "user-id")
	if tenantID != "" {
		if _, err := uuid.Parse(tenantID); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid tenant-id UUID: %s\n", tenantID)
			os.Exit(1)
		}
	}

	now := time.Now()
	token, err := middleware.IssueToken(signingKey, middleware.PortalClaims{
		UserID:   uid.String(),
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "bearer_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"user_id":   uid.String(),
				"tenant_id": tenantID,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("Portal Bearer Token (JWT)")
	fmt.Println("=========================")
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Printf("User ID:    %s\n", uid)
	if tenantID != "" {
		fmt.Printf("Tenant ID:  %s\n", tenantID)
	}
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/agents")
}

func showAdminToken(jsonOutput bool) {
	if jsonOutput {
		printJSON(tokenOutput{
			Token: devAdminToken,
			Type:  "admin_token",
			Usage: map[string]string{
				"header": "X-Admin-Token: " + devAdminToken,
				"note":   "Works when PORTAL_ADMIN_TOKEN is not overridden",
			},
		})
		return
	}

	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", devAdminToken)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"X-Admin-Token: " + devAdminToken + "\" http://localhost:8080/admin/stats")
}

func parseOrGenerateUUID(input, fieldName string) uuid.UUID {
	if input == "" {
		return uuid.New()
	}
	parsed, err := uuid.Parse(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s UUID: %s\n", fieldName, input)
		os.Exit(1)
	}
	return parsed
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
