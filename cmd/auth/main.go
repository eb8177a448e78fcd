// A one-shot helper for the local deployment: walks the Polar OAuth2 flow
// in the browser and prints the access token and user id to paste into the
// MCP client configuration.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/xokvictor/polar-mcp/pkg/auth"
	"github.com/xokvictor/polar-mcp/pkg/polar"
)

const redirectURL = "http://localhost:8080/callback"

var (
	exchanger  *auth.Exchanger
	oauthState string
)

func main() {
	clientID := os.Getenv("POLAR_CLIENT_ID")
	clientSecret := os.Getenv("POLAR_CLIENT_SECRET")

	if clientID == "" || clientSecret == "" {
		fmt.Println("❌ Error: POLAR_CLIENT_ID and POLAR_CLIENT_SECRET are required")
		fmt.Println("\nHow to obtain:")
		fmt.Println("1. Register at https://admin.polaraccesslink.com")
		fmt.Println("2. Create a new client")
		fmt.Println("3. Set Authorization callback domain to: localhost")
		fmt.Println("4. Copy Client ID and Client Secret")
		fmt.Println("\nRun:")
		fmt.Println("POLAR_CLIENT_ID=your_id POLAR_CLIENT_SECRET=your_secret go run cmd/auth/main.go")
		os.Exit(1)
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("Failed to generate state: %v", err)
	}
	oauthState = base64.URLEncoding.EncodeToString(b)

	exchanger = auth.NewExchanger(clientID, clientSecret)

	http.HandleFunc("/", handleMain)
	http.HandleFunc("/callback", handleCallback)

	port := "8080"
	fmt.Println("\n🚀 OAuth helper running at http://localhost:" + port)
	fmt.Println("\n📋 Open your browser and navigate to http://localhost:" + port)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal("Server startup error:", err)
	}
}

func handleMain(w http.ResponseWriter, r *http.Request) {
	authURL := exchanger.AuthCodeURL(oauthState, redirectURL, []string{"accesslink.read_all"})

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Polar OAuth Authorization</title></head>
<body style="font-family: sans-serif; max-width: 600px; margin: 50px auto;">
    <h1>🏃 Polar OAuth Authorization</h1>
    <p>Click the link below to authorize with Polar Flow. Access will be granted to
    your training, activity, sleep and recovery data.</p>
    <p><a href="%s">🔐 Authorize with Polar</a></p>
    <p style="color: #666;">After authorization you will be redirected back and receive an access token.</p>
</body>
</html>
`, authURL)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func handleCallback(w http.ResponseWriter, r *http.Request) {
	if state := r.FormValue("state"); state != oauthState {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		http.Error(w, fmt.Sprintf("Authorization error: %s", r.FormValue("error")), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	grant, err := exchanger.Exchange(ctx, code, redirectURL)
	if err != nil {
		http.Error(w, fmt.Sprintf("Token exchange error: %v", err), http.StatusBadGateway)
		return
	}

	// Register the user mapping so the data endpoints start serving. A 409
	// just means a previous run already did this.
	if _, err := polar.New().RegisterUser(ctx, grant.AccessToken, grant.UserID); err != nil {
		fmt.Println("\n⚠️  User registration failed:", err)
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Success!</title></head>
<body style="font-family: sans-serif; max-width: 800px; margin: 50px auto;">
    <h1>✅ Authorization Successful!</h1>
    <h2>🔑 Access Token:</h2>
    <p><code style="word-break: break-all;">%s</code></p>
    <h2>🙂 User ID:</h2>
    <p><code>%d</code></p>
    <p>Add both to the MCP client configuration:</p>
    <pre style="background: #f4f4f4; padding: 15px;">
{
  "mcpServers": {
    "polar": {
      "command": "/path/to/polar-mcp",
      "env": {
        "POLAR_ACCESS_TOKEN": "%s",
        "POLAR_USER_ID": "%d"
      }
    }
  }
}</pre>
</body>
</html>
`, grant.AccessToken, grant.UserID, grant.AccessToken, grant.UserID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)

	fmt.Println("\n✅ Authorization successful!")
	fmt.Println("\n🔑 Access Token:")
	fmt.Println(grant.AccessToken)
	fmt.Println("\n🙂 User ID:", grant.UserID)
	fmt.Println("\n💾 Save both to your MCP client configuration.")
	fmt.Println("\nServer continues running. Press Ctrl+C to exit.")
}
