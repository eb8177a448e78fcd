package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/xokvictor/polar-mcp/pkg/auth"
)

// GrantSource resolves the access grant for the current invocation. The
// local deployment returns a fixed grant from the environment; the hosted
// deployment looks up the session carried on the request context.
type GrantSource func(ctx context.Context) (auth.Grant, error)

// StaticGrant returns a GrantSource that always yields the same grant.
func StaticGrant(grant auth.Grant) GrantSource {
	return func(context.Context) (auth.Grant, error) {
		return grant, nil
	}
}

// Register adds every tool in the table to the MCP server. All handlers
// share one shape: resolve the grant, dispatch, format.
func Register(s *server.MCPServer, d *Dispatcher, grants GrantSource) {
	for _, def := range Definitions() {
		s.AddTool(newTool(def), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			grant, err := grants(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Authorization required: %v", err)), nil
			}

			result := d.Execute(ctx, def.Name, request.GetArguments(), grant)
			if result.Err != nil {
				return mcp.NewToolResultError(formatError(def.Name, result.Err)), nil
			}
			return resultFromPayload(result.Payload)
		})
	}
}

func newTool(def Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}

	switch def.Kind {
	case KindDate:
		opts = append(opts, mcp.WithString("date",
			mcp.Description("Date in YYYY-MM-DD format. Omit to get all available data."),
		))
	case KindRange:
		opts = append(opts,
			mcp.WithString("from", mcp.Required(), mcp.Description("Start date in YYYY-MM-DD format.")),
			mcp.WithString("to", mcp.Required(), mcp.Description("End date in YYYY-MM-DD format.")),
		)
	case KindPeriod:
		opts = append(opts,
			mcp.WithString("unit", mcp.Required(), mcp.Description("Period unit, either \"days\" or \"months\"."), mcp.Enum("days", "months")),
			mcp.WithNumber("count", mcp.Required(), mcp.Description("Number of units to look back, e.g. 28 for the last 28 days.")),
		)
	case KindExercise, KindExerciseExport:
		opts = append(opts, mcp.WithString("exercise_id",
			mcp.Required(),
			mcp.Description("Exercise identifier from list_exercises."),
		))
	}

	for _, flag := range def.Flags {
		opts = append(opts, mcp.WithBoolean(flag,
			mcp.Description(fmt.Sprintf("Include %s data in the response.", flag)),
		))
	}

	return mcp.NewTool(def.Name, opts...)
}

func formatError(tool string, toolErr *Error) string {
	switch toolErr.Kind {
	case ErrBadArgument:
		return fmt.Sprintf("Invalid arguments for %s: %s", tool, toolErr.Message)
	case ErrConfiguration:
		return fmt.Sprintf("Configuration error: %s", toolErr.Message)
	case ErrUpstream:
		switch toolErr.Status {
		case 401, 403:
			return fmt.Sprintf("Authentication failed (%d): the access token is missing, expired or lacks the required scope. %s", toolErr.Status, toolErr.Message)
		case 404:
			return fmt.Sprintf("No data found: %s", toolErr.Message)
		case 429:
			return fmt.Sprintf("Rate limited by the Polar API, try again later: %s", toolErr.Message)
		default:
			return fmt.Sprintf("Polar API error: %s", toolErr.Message)
		}
	default:
		return fmt.Sprintf("Error executing %s: %s", tool, toolErr.Message)
	}
}

func resultFromPayload(payload any) (*mcp.CallToolResult, error) {
	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error formatting response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(pretty)), nil
}
