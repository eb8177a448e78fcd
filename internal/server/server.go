// Package server wires the hosted deployment: HTTP routes for the
// authorization flow, session-checked MCP transports and the shared
// key-value store.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/xokvictor/polar-mcp/internal/config"
	"github.com/xokvictor/polar-mcp/pkg/auth"
	"github.com/xokvictor/polar-mcp/pkg/flow"
	"github.com/xokvictor/polar-mcp/pkg/polar"
	"github.com/xokvictor/polar-mcp/pkg/tools"
)

const serverName = "polar-accesslink"

// Version is stamped at build time.
var Version = "dev"

type contextKey int

const grantKey contextKey = iota

// Server is the hosted MCP server plus its authorization flow.
type Server struct {
	cfg     config.Config
	logger  zerolog.Logger
	store   *flow.Store
	handler http.Handler
}

// New builds the full hosted server from configuration.
func New(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	client := polar.New()
	exchanger := auth.NewExchanger(cfg.ClientID, cfg.ClientSecret)

	var kv flow.KV
	if cfg.Redis.Addr != "" {
		kv = flow.NewRedisKV(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session store")
	} else {
		kv = flow.NewMemoryKV()
		logger.Warn().Msg("using in-memory session store, sessions are lost on restart")
	}
	store := flow.NewStore(kv)

	var (
		completer flow.Completer
		delegated *flow.DelegatedCompleter
	)
	switch cfg.Mode {
	case config.ModeDelegated:
		delegated = flow.NewDelegatedCompleter(store, logger)
		completer = delegated
	case config.ModeSession:
		completer = flow.NewSessionCompleter(cfg.PublicURL, logger)
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	controller := flow.NewController(flow.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		PublicURL:    cfg.PublicURL,
		Scopes:       cfg.Scopes,
	}, store, exchanger, client, completer, logger)

	s := &Server{cfg: cfg, logger: logger.With().Str("component", "server").Logger(), store: store}

	mcpServer := server.NewMCPServer(serverName, Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	tools.Register(mcpServer, tools.NewDispatcher(client, logger), grantFromContext)

	router := mux.NewRouter()
	controller.RegisterRoutes(router)
	if delegated != nil {
		router.HandleFunc("/oauth/token", delegated.TokenHandler).Methods(http.MethodPost)
	}

	streamable := server.NewStreamableHTTPServer(mcpServer)
	router.PathPrefix("/mcp").Handler(s.withSession(streamable))

	sse := server.NewSSEServer(mcpServer,
		server.WithBaseURL(cfg.PublicURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)
	router.PathPrefix("/sse").Handler(s.withSession(sse))
	router.PathPrefix("/message").Handler(s.withSession(sse))

	s.handler = router
	return s, nil
}

// Handler exposes the full route tree.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.Listen).Str("public_url", s.cfg.PublicURL).Str("mode", s.cfg.Mode).Msg("server started")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// withSession resolves the caller's session and attaches its grant to the
// request context. Requests without a resolvable session still reach the
// MCP transport; tool calls then fail with an authorization error instead
// of the transport rejecting the protocol handshake.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, ok, err := s.store.GetSession(r.Context(), sessionID)
		if err != nil {
			s.logger.Error().Err(err).Msg("loading session")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), grantKey, session.Grant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionIDFromRequest accepts the session either as a bearer token
// (delegated mode) or as a session query parameter (opaque-session mode).
func sessionIDFromRequest(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if header := r.Header.Get("Authorization"); len(header) > len(bearerPrefix) && header[:len(bearerPrefix)] == bearerPrefix {
		return header[len(bearerPrefix):]
	}
	return r.URL.Query().Get("session")
}

// grantFromContext is the GrantSource for the hosted deployment.
func grantFromContext(ctx context.Context) (auth.Grant, error) {
	grant, ok := ctx.Value(grantKey).(auth.Grant)
	if !ok {
		return auth.Grant{}, errors.New("no active session, visit /authorize to connect a Polar account")
	}
	return grant, nil
}
