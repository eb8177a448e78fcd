package flow

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DelegatedCompleter finalizes the downstream OAuth2 grant: instead of
// handing the caller a bespoke session link, it issues its own
// authorization code bound to the new session. The MCP client then redeems
// the code at the token endpoint and uses the resulting bearer token on
// every tool call.
type DelegatedCompleter struct {
	store   *Store
	logger  zerolog.Logger
	nowFn   func() time.Time
	newCode func() string
}

// NewDelegatedCompleter creates the completer for delegated-authorization mode.
func NewDelegatedCompleter(store *Store, logger zerolog.Logger) *DelegatedCompleter {
	return &DelegatedCompleter{
		store:   store,
		logger:  logger.With().Str("component", "delegated-completer").Logger(),
		nowFn:   time.Now,
		newCode: uuid.NewString,
	}
}

// Complete mints a downstream authorization code and redirects back to the
// client that parked the request.
func (d *DelegatedCompleter) Complete(w http.ResponseWriter, r *http.Request, req PendingRequest, session Session) {
	if req.RedirectURI == "" {
		http.Error(w, "authorization request has no redirect_uri", http.StatusBadRequest)
		return
	}
	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	code := d.newCode()
	record := DownstreamCode{
		SessionID:     session.ID,
		ClientID:      req.ClientID,
		RedirectURI:   req.RedirectURI,
		CodeChallenge: req.CodeChallenge,
		CreatedAt:     d.nowFn(),
	}
	if err := d.store.PutCode(r.Context(), code, record); err != nil {
		d.logger.Error().Err(err).Msg("storing downstream code")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	query := redirect.Query()
	query.Set("code", code)
	if req.ClientState != "" {
		query.Set("state", req.ClientState)
	}
	redirect.RawQuery = query.Encode()

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// TokenHandler is the downstream token endpoint (POST /oauth/token). It
// redeems a single-use authorization code for the session it is bound to;
// the session identifier doubles as the bearer token.
func (d *DelegatedCompleter) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	if grantType := r.PostForm.Get("grant_type"); grantType != "authorization_code" {
		tokenError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		return
	}
	code := r.PostForm.Get("code")
	if code == "" {
		tokenError(w, http.StatusBadRequest, "invalid_request", "missing code")
		return
	}

	record, ok, err := d.store.ConsumeCode(r.Context(), code)
	if err != nil {
		d.logger.Error().Err(err).Msg("consuming downstream code")
		tokenError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	if !ok {
		tokenError(w, http.StatusBadRequest, "invalid_grant", "unknown or expired code")
		return
	}

	if clientID := r.PostForm.Get("client_id"); record.ClientID != "" && clientID != record.ClientID {
		tokenError(w, http.StatusBadRequest, "invalid_grant", "client_id mismatch")
		return
	}
	if redirectURI := r.PostForm.Get("redirect_uri"); record.RedirectURI != "" && redirectURI != record.RedirectURI {
		tokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	}
	if record.CodeChallenge != "" {
		verifier := r.PostForm.Get("code_verifier")
		if verifier == "" || !verifyPKCE(record.CodeChallenge, verifier) {
			tokenError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": record.SessionID,
		"token_type":   "Bearer",
		"expires_in":   int(SessionTTL.Seconds()),
	})
}

// verifyPKCE checks an S256 code challenge against its verifier.
func verifyPKCE(challenge, verifier string) bool {
	sum := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

func tokenError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": code}
	if description != "" {
		resp["error_description"] = description
	}
	json.NewEncoder(w).Encode(resp)
}
