package flow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xokvictor/polar-mcp/pkg/auth"
	"github.com/xokvictor/polar-mcp/pkg/polar"
)

// Failure reasons for an authorization attempt. Every attempt ends in
// exactly one of these or in a completed session; there are no retries,
// the caller restarts from /authorize.
const (
	ReasonVendorDenied       = "vendor_denied"
	ReasonBadRequest         = "bad_request"
	ReasonCSRFInvalid        = "csrf_invalid"
	ReasonRequestExpired     = "request_expired"
	ReasonTokenExchangeError = "token_exchange_error"
)

// FlowError is a failed authorization attempt.
type FlowError struct {
	Reason string
	Detail string
}

func (e *FlowError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Completer performs the terminal action of a completed authorization
// attempt. The CSRF/state handling is identical for every mode; only what
// happens with the finished session differs.
type Completer interface {
	Complete(w http.ResponseWriter, r *http.Request, req PendingRequest, session Session)
}

// Registrar creates the vendor-side user mapping after a token exchange.
// *polar.Client satisfies it.
type Registrar interface {
	RegisterUser(ctx context.Context, token string, userID int64) (*polar.RegisteredUser, error)
}

// Config carries the OAuth client settings for the vendor side of the flow.
type Config struct {
	ClientID     string
	ClientSecret string
	// PublicURL is the externally reachable base URL of this server. The
	// callback redirect URI is derived from it and must match the vendor
	// application registration.
	PublicURL string
	Scopes    []string
}

// Controller drives the redirect-based OAuth2 dance with the vendor:
// issuing CSRF state, parking the authorization request, validating the
// callback and turning a successful code exchange into a session.
type Controller struct {
	cfg       Config
	store     *Store
	exchanger *auth.Exchanger
	registrar Registrar
	completer Completer
	logger    zerolog.Logger

	nowFn func() time.Time
	newID func() string
}

// NewController wires a flow controller. The completer selects the
// deployment mode; everything up to the terminal action is shared.
func NewController(cfg Config, store *Store, exchanger *auth.Exchanger, registrar Registrar, completer Completer, logger zerolog.Logger) *Controller {
	return &Controller{
		cfg:       cfg,
		store:     store,
		exchanger: exchanger,
		registrar: registrar,
		completer: completer,
		logger:    logger.With().Str("component", "flow").Logger(),
		nowFn:     time.Now,
		newID:     uuid.NewString,
	}
}

func (c *Controller) redirectURI() string {
	return strings.TrimSuffix(c.cfg.PublicURL, "/") + "/callback"
}

// begin parks the authorization request, mints the linked CSRF state and
// redirects the caller to the vendor. PendingRequest and CsrfState are
// always created as a pair; if the second write fails the first is rolled
// back so neither outlives the other.
func (c *Controller) begin(w http.ResponseWriter, r *http.Request, req PendingRequest) {
	ctx := r.Context()

	req.ID = c.newID()
	req.CreatedAt = c.nowFn()

	state, err := generateState()
	if err != nil {
		c.internalError(w, err, "generating state")
		return
	}

	if err := c.store.PutPendingRequest(ctx, req); err != nil {
		c.internalError(w, err, "storing pending request")
		return
	}
	if err := c.store.PutState(ctx, state, req.ID); err != nil {
		if delErr := c.store.DeletePendingRequest(ctx, req.ID); delErr != nil {
			c.logger.Warn().Err(delErr).Str("request_id", req.ID).Msg("rollback of pending request failed")
		}
		c.internalError(w, err, "storing state")
		return
	}

	c.logger.Info().Str("request_id", req.ID).Str("client_id", req.ClientID).Msg("authorization started")

	authURL := c.exchanger.AuthCodeURL(state, c.redirectURI(), c.cfg.Scopes)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback validates a vendor redirect and, on success, issues a session.
// The stored CSRF state and pending request are both consumed exactly once;
// any missing piece fails the whole attempt closed.
func (c *Controller) callback(ctx context.Context, code, state, vendorErr string) (PendingRequest, Session, error) {
	if vendorErr != "" {
		return PendingRequest{}, Session{}, &FlowError{Reason: ReasonVendorDenied, Detail: vendorErr}
	}
	if code == "" || state == "" {
		return PendingRequest{}, Session{}, &FlowError{Reason: ReasonBadRequest, Detail: "missing code or state parameter"}
	}

	requestID, ok, err := c.store.GetState(ctx, state)
	if err != nil {
		return PendingRequest{}, Session{}, fmt.Errorf("loading state: %w", err)
	}
	if !ok {
		return PendingRequest{}, Session{}, &FlowError{Reason: ReasonCSRFInvalid, Detail: "unknown or expired state"}
	}
	if err := c.store.DeleteState(ctx, state); err != nil {
		return PendingRequest{}, Session{}, fmt.Errorf("consuming state: %w", err)
	}

	req, ok, err := c.store.GetPendingRequest(ctx, requestID)
	if err != nil {
		return PendingRequest{}, Session{}, fmt.Errorf("loading pending request: %w", err)
	}
	if !ok {
		return PendingRequest{}, Session{}, &FlowError{Reason: ReasonRequestExpired, Detail: "authorization request expired"}
	}
	if err := c.store.DeletePendingRequest(ctx, requestID); err != nil {
		return PendingRequest{}, Session{}, fmt.Errorf("consuming pending request: %w", err)
	}

	grant, err := c.exchanger.Exchange(ctx, code, c.redirectURI())
	if err != nil {
		return PendingRequest{}, Session{}, &FlowError{Reason: ReasonTokenExchangeError, Detail: err.Error()}
	}

	// Registration is idempotent housekeeping; a failure must not block
	// the flow.
	if _, err := c.registrar.RegisterUser(ctx, grant.AccessToken, grant.UserID); err != nil {
		c.logger.Warn().Err(err).Int64("user_id", grant.UserID).Msg("user registration failed")
	}

	session := Session{
		ID:        c.newID(),
		Grant:     grant,
		CreatedAt: c.nowFn(),
	}
	if err := c.store.PutSession(ctx, session); err != nil {
		return PendingRequest{}, Session{}, fmt.Errorf("storing session: %w", err)
	}

	c.logger.Info().Str("request_id", requestID).Str("session_id", session.ID).Int64("user_id", grant.UserID).Msg("authorization completed")

	return req, session, nil
}

func (c *Controller) internalError(w http.ResponseWriter, err error, msg string) {
	c.logger.Error().Err(err).Msg(msg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// generateState mints a single-use CSRF token.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
