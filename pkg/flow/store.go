package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xokvictor/polar-mcp/pkg/auth"
)

const (
	statePrefix   = "state:"
	requestPrefix = "auth_request:"
	sessionPrefix = "session:"
	codePrefix    = "code:"

	// StateTTL bounds how long an authorization attempt may stay parked
	// between the vendor redirect and the callback.
	StateTTL = 10 * time.Minute
	// CodeTTL bounds the downstream authorization code in delegated mode.
	CodeTTL = 5 * time.Minute
	// SessionTTL is the lifetime of an issued session. There is no
	// revocation path; sessions disappear through store expiry.
	SessionTTL = 24 * time.Hour
)

// KV is the key-value store all flow state lives in. Expiry is enforced by
// the store itself; the adapter never garbage-collects.
type KV interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// PendingRequest is an in-flight authorization attempt parked while the
// vendor redirect completes. It is created together with its CSRF state and
// consumed exactly once at callback.
type PendingRequest struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id,omitempty"`
	RedirectURI   string    `json:"redirect_uri,omitempty"`
	Scopes        []string  `json:"scopes,omitempty"`
	CodeChallenge string    `json:"code_challenge,omitempty"`
	ClientState   string    `json:"client_state,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session binds an opaque identifier to a vendor access grant. Read-only
// after creation.
type Session struct {
	ID        string     `json:"id"`
	Grant     auth.Grant `json:"grant"`
	CreatedAt time.Time  `json:"created_at"`
}

// DownstreamCode is the single-use authorization code handed to the MCP
// client in delegated mode, redeemable for the session it is bound to.
type DownstreamCode struct {
	SessionID     string    `json:"session_id"`
	ClientID      string    `json:"client_id,omitempty"`
	RedirectURI   string    `json:"redirect_uri,omitempty"`
	CodeChallenge string    `json:"code_challenge,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store wraps the KV with typed, namespaced access to the flow records.
type Store struct {
	kv KV
}

// NewStore creates a Store on top of the given KV.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// PutState stores the CSRF token, linked to the pending request it was
// minted for.
func (s *Store) PutState(ctx context.Context, state, requestID string) error {
	return s.kv.Put(ctx, statePrefix+state, []byte(requestID), StateTTL)
}

// GetState resolves a CSRF token to its linked request id.
func (s *Store) GetState(ctx context.Context, state string) (string, bool, error) {
	value, ok, err := s.kv.Get(ctx, statePrefix+state)
	if err != nil || !ok {
		return "", false, err
	}
	return string(value), true, nil
}

// DeleteState removes a CSRF token. States are single use.
func (s *Store) DeleteState(ctx context.Context, state string) error {
	return s.kv.Delete(ctx, statePrefix+state)
}

// PutPendingRequest parks an authorization request.
func (s *Store) PutPendingRequest(ctx context.Context, req PendingRequest) error {
	return s.putJSON(ctx, requestPrefix+req.ID, req, StateTTL)
}

// GetPendingRequest loads a parked authorization request.
func (s *Store) GetPendingRequest(ctx context.Context, requestID string) (PendingRequest, bool, error) {
	req := PendingRequest{}
	ok, err := s.getJSON(ctx, requestPrefix+requestID, &req)
	return req, ok, err
}

// DeletePendingRequest removes a parked request. Requests are single use.
func (s *Store) DeletePendingRequest(ctx context.Context, requestID string) error {
	return s.kv.Delete(ctx, requestPrefix+requestID)
}

// PutSession stores a freshly issued session.
func (s *Store) PutSession(ctx context.Context, session Session) error {
	return s.putJSON(ctx, sessionPrefix+session.ID, session, SessionTTL)
}

// GetSession loads a session by its opaque identifier.
func (s *Store) GetSession(ctx context.Context, sessionID string) (Session, bool, error) {
	session := Session{}
	ok, err := s.getJSON(ctx, sessionPrefix+sessionID, &session)
	return session, ok, err
}

// PutCode stores a downstream authorization code.
func (s *Store) PutCode(ctx context.Context, code string, record DownstreamCode) error {
	return s.putJSON(ctx, codePrefix+code, record, CodeTTL)
}

// ConsumeCode loads and deletes a downstream authorization code in one
// step; codes are single use.
func (s *Store) ConsumeCode(ctx context.Context, code string) (DownstreamCode, bool, error) {
	record := DownstreamCode{}
	ok, err := s.getJSON(ctx, codePrefix+code, &record)
	if err != nil || !ok {
		return DownstreamCode{}, false, err
	}
	if err := s.kv.Delete(ctx, codePrefix+code); err != nil {
		return DownstreamCode{}, false, err
	}
	return record, true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.kv.Put(ctx, key, data, ttl)
}

func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}
