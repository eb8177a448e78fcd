package flow

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// SessionCompleter is the opaque-session terminal action: the caller gets a
// page with the session-bound MCP URL to paste into their client.
type SessionCompleter struct {
	publicURL string
	logger    zerolog.Logger
}

// NewSessionCompleter creates the completer for opaque-session mode.
func NewSessionCompleter(publicURL string, logger zerolog.Logger) *SessionCompleter {
	return &SessionCompleter{
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    logger.With().Str("component", "session-completer").Logger(),
	}
}

// Complete renders the success page carrying the new session identifier.
func (s *SessionCompleter) Complete(w http.ResponseWriter, r *http.Request, _ PendingRequest, session Session) {
	if err := successPage(w, s.publicURL+"/mcp", session.ID); err != nil {
		s.logger.Error().Err(err).Msg("rendering success page")
	}
}
