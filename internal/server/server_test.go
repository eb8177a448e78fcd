package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xokvictor/polar-mcp/internal/config"
	"github.com/xokvictor/polar-mcp/pkg/auth"
	"github.com/xokvictor/polar-mcp/pkg/flow"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.PublicURL = "http://localhost:8080"
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	return cfg
}

func TestNewServesIndexAndAuthorize(t *testing.T) {
	s, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Polar")

	// /authorize without a prior-consent cookie renders the approval page
	// instead of redirecting.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Approve")
}

func TestTokenEndpointOnlyInDelegatedMode(t *testing.T) {
	sessionSrv, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	sessionSrv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/oauth/token", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cfg := testConfig()
	cfg.Mode = config.ModeDelegated
	delegatedSrv, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	delegatedSrv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/oauth/token", nil))
	// The endpoint exists; an empty request is a protocol error, not a 404.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithSessionAttachesGrant(t *testing.T) {
	store := flow.NewStore(flow.NewMemoryKV())
	session := flow.Session{
		ID:        "sess-1",
		Grant:     auth.Grant{AccessToken: "vendor-token", UserID: 42},
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.PutSession(context.Background(), session))

	s := &Server{store: store, logger: zerolog.Nop()}

	var got auth.Grant
	var gotErr error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = grantFromContext(r.Context())
	})

	cases := []struct {
		name    string
		mutate  func(*http.Request)
		wantOK  bool
		wantUID int64
	}{
		{
			name:    "bearer token",
			mutate:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer sess-1") },
			wantOK:  true,
			wantUID: 42,
		},
		{
			name:    "session query parameter",
			mutate:  func(r *http.Request) { r.URL.RawQuery = "session=sess-1" },
			wantOK:  true,
			wantUID: 42,
		},
		{
			name:   "unknown session",
			mutate: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantOK: false,
		},
		{
			name:   "no credentials",
			mutate: func(r *http.Request) {},
			wantOK: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, gotErr = auth.Grant{}, nil
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			tc.mutate(req)

			rec := httptest.NewRecorder()
			s.withSession(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, "the transport is always reached")
			if tc.wantOK {
				require.NoError(t, gotErr)
				assert.Equal(t, tc.wantUID, got.UserID)
			} else {
				assert.Error(t, gotErr)
			}
		})
	}
}
