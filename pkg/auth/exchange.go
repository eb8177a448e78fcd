package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/xokvictor/polar-mcp/pkg/polar"
)

// Grant binds a vendor access token to the Polar user it was issued for.
// It is produced once per successful code exchange and embedded in the
// session that carries it afterwards.
type Grant struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
}

// Endpoint returns the Polar OAuth2 endpoint configuration. Client
// credentials travel in the Basic authorization header, which is what
// polarremote.com expects.
func Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   polar.AuthURL,
		TokenURL:  polar.TokenURL,
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// Exchanger performs the authorization-code-for-token exchange against the
// Polar token endpoint.
type Exchanger struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
}

// NewExchanger creates an Exchanger against the production token endpoint.
func NewExchanger(clientID, clientSecret string) *Exchanger {
	return NewExchangerWithEndpoint(clientID, clientSecret, Endpoint())
}

// NewExchangerWithEndpoint creates an Exchanger against a custom endpoint.
// Used by tests.
func NewExchangerWithEndpoint(clientID, clientSecret string, endpoint oauth2.Endpoint) *Exchanger {
	return &Exchanger{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     endpoint,
	}
}

// AuthCodeURL builds the vendor authorization URL for the given CSRF state.
// The redirect URI passed here must be byte-identical to the one later
// passed to Exchange; OAuth2 requires both steps to use the same value.
func (e *Exchanger) AuthCodeURL(state, redirectURI string, scopes []string) string {
	cfg := e.config(redirectURI, scopes)
	return cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access grant. One POST with
// Basic client authentication, no retries. A non-success response becomes
// an *ExchangeError carrying the upstream status and body.
func (e *Exchanger) Exchange(ctx context.Context, code, redirectURI string) (Grant, error) {
	cfg := e.config(redirectURI, nil)

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return Grant{}, &ExchangeError{
				Status: retrieveErr.Response.StatusCode,
				Body:   string(retrieveErr.Body),
			}
		}
		return Grant{}, fmt.Errorf("token exchange: %w", err)
	}

	userID, err := userIDFromToken(token)
	if err != nil {
		return Grant{}, err
	}

	return Grant{AccessToken: token.AccessToken, UserID: userID}, nil
}

func (e *Exchanger) config(redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     e.endpoint,
	}
}

// userIDFromToken extracts the x_user_id extra the Polar token endpoint
// includes in its response.
func userIDFromToken(token *oauth2.Token) (int64, error) {
	switch v := token.Extra("x_user_id").(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		return v.Int64()
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing x_user_id %q: %w", v, err)
		}
		return id, nil
	case nil:
		return 0, errors.New("token response is missing x_user_id")
	default:
		return 0, fmt.Errorf("unexpected x_user_id type %T", v)
	}
}

// ExchangeError is a non-success response from the vendor token endpoint.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed (status %d): %s", e.Status, e.Body)
}
