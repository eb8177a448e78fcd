// Quick check that an access token and user id actually work against the
// AccessLink API before wiring them into an MCP client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/xokvictor/polar-mcp/pkg/polar"
)

func main() {
	token := os.Getenv("POLAR_ACCESS_TOKEN")
	if token == "" {
		fmt.Println("❌ Error: POLAR_ACCESS_TOKEN is not set")
		fmt.Println("\nSet the token:")
		fmt.Println("export POLAR_ACCESS_TOKEN=\"your_token\"")
		os.Exit(1)
	}

	userID, err := strconv.ParseInt(os.Getenv("POLAR_USER_ID"), 10, 64)
	if err != nil || userID == 0 {
		fmt.Println("❌ Error: POLAR_USER_ID is not set or not a number")
		fmt.Println("\nSet the user id printed by cmd/auth:")
		fmt.Println("export POLAR_USER_ID=\"12345678\"")
		os.Exit(1)
	}

	fmt.Println("🔍 Verifying Polar token...")
	fmt.Println()
	if len(token) > 20 {
		fmt.Printf("Token: %s...%s\n\n", token[:10], token[len(token)-10:])
	}

	client := polar.New()
	ctx := context.Background()

	fmt.Println("📱 Fetching user info...")
	info, err := client.UserInfo(ctx, token, userID)
	if err != nil {
		fmt.Printf("❌ Error: %v\n", err)
		if apiErr, ok := err.(*polar.APIError); ok && apiErr.IsUnauthorized() {
			fmt.Println("\nThe token is invalid or revoked. Run cmd/auth to get a fresh one.")
		} else {
			fmt.Println("\nPossible reasons:")
			fmt.Println("- The user id does not match the token")
			fmt.Println("- The user has not been registered, run cmd/auth again")
		}
		os.Exit(1)
	}

	fmt.Println("✅ Token is valid!")
	fmt.Println()
	fmt.Println("👤 User info:")
	printJSON(info)

	fmt.Println("\n🏋️  Verifying exercises access...")
	verifyEndpoint(ctx, client, token, "/exercises")

	fmt.Println("\n😴 Verifying sleep data access...")
	verifyEndpoint(ctx, client, token, "/users/sleep")

	fmt.Println("\n💪 Verifying nightly recharge access...")
	verifyEndpoint(ctx, client, token, "/users/nightly-recharge")

	fmt.Println("\n✅ All verifications complete!")
	fmt.Println("\n💡 You can now add the token and user id to your MCP client configuration")
}

func verifyEndpoint(ctx context.Context, client *polar.Client, token, path string) {
	raw, err := client.Request(ctx, http.MethodGet, path, token)
	switch {
	case err != nil:
		fmt.Printf("⚠️  Failed to fetch %s: %v\n", path, err)
	case raw == nil:
		fmt.Printf("✅ %s reachable (no data yet)\n", path)
	default:
		fmt.Printf("✅ %s reachable (%d bytes)\n", path, len(raw))
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
