package main

import (
	"log"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/xokvictor/polar-mcp/pkg/auth"
	"github.com/xokvictor/polar-mcp/pkg/polar"
	"github.com/xokvictor/polar-mcp/pkg/tools"
)

const (
	serverName    = "polar-accesslink"
	serverVersion = "1.0.0"
)

// The local deployment: a stdio MCP server for a single user, configured
// entirely from the environment. The access token comes from a prior run of
// cmd/auth or from the AccessLink admin console.
func main() {
	// Logging goes to stderr; stdout carries the MCP protocol.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	grant := grantFromEnv()
	if grant.AccessToken == "" {
		log.Println("Warning: POLAR_ACCESS_TOKEN is not set. Tool calls will fail until it is.")
	}
	if grant.UserID == 0 {
		log.Println("Warning: POLAR_USER_ID is not set. User-scoped tools will fail until it is.")
	}

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	dispatcher := tools.NewDispatcher(polar.New(), logger)
	tools.Register(s, dispatcher, tools.StaticGrant(grant))

	log.Printf("Starting %s v%s", serverName, serverVersion)
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func grantFromEnv() auth.Grant {
	grant := auth.Grant{AccessToken: os.Getenv("POLAR_ACCESS_TOKEN")}
	if raw := os.Getenv("POLAR_USER_ID"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("Warning: POLAR_USER_ID is not a number: %v", err)
		} else {
			grant.UserID = userID
		}
	}
	return grant
}
