package polar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// UserInfo returns the registered user's AccessLink profile.
func (c *Client) UserInfo(ctx context.Context, token string, userID int64) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), token)
}

// RegisterUser creates the vendor-side mapping between this application and
// a Polar user. Registration is idempotent housekeeping: a 409 means the
// user is already registered and is treated as success.
func (c *Client) RegisterUser(ctx context.Context, token string, userID int64) (*RegisteredUser, error) {
	memberID := fmt.Sprintf("polar-mcp-%d", userID)

	body, err := c.Request(ctx, http.MethodPost, "/users", token, WithJSONBody(registerRequest{MemberID: memberID}))
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.IsConflict() {
			return &RegisteredUser{PolarUserID: userID, MemberID: memberID}, nil
		}
		return nil, err
	}

	user := RegisteredUser{}
	if body != nil {
		if err := json.Unmarshal(body, &user); err != nil {
			return nil, fmt.Errorf("parsing registration response: %w", err)
		}
	}
	return &user, nil
}

// CreatePhysicalInfoTransaction opens a physical-information transaction.
// Returns nil without error when the API answers 204, meaning no new data.
func (c *Client) CreatePhysicalInfoTransaction(ctx context.Context, token string, userID int64) (*Transaction, error) {
	path := fmt.Sprintf("/users/%d/physical-information-transactions", userID)
	body, err := c.Request(ctx, http.MethodPost, path, token)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	tx := Transaction{}
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("parsing transaction response: %w", err)
	}
	return &tx, nil
}

// ListPhysicalInfoTransaction lists the resource URIs inside an open
// transaction. An empty transaction yields a result with no URIs.
func (c *Client) ListPhysicalInfoTransaction(ctx context.Context, token string, userID, transactionID int64) (*TransactionResources, error) {
	path := fmt.Sprintf("/users/%d/physical-information-transactions/%d", userID, transactionID)
	body, err := c.Request(ctx, http.MethodGet, path, token)
	if err != nil {
		return nil, err
	}

	resources := TransactionResources{}
	if body != nil {
		if err := json.Unmarshal(body, &resources); err != nil {
			return nil, fmt.Errorf("parsing transaction listing: %w", err)
		}
	}
	return &resources, nil
}

// CommitPhysicalInfoTransaction closes an open transaction. The API requires
// a commit even when the transaction held no resources; leaving it open
// blocks the next transaction for the same user.
func (c *Client) CommitPhysicalInfoTransaction(ctx context.Context, token string, userID, transactionID int64) error {
	path := fmt.Sprintf("/users/%d/physical-information-transactions/%d", userID, transactionID)
	_, err := c.Request(ctx, http.MethodPut, path, token)
	return err
}

// FetchResource retrieves a single document by the absolute URI the
// transaction listing returned.
func (c *Client) FetchResource(ctx context.Context, token, resourceURI string) (json.RawMessage, error) {
	path, err := resourcePath(resourceURI)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, http.MethodGet, path, token)
}

// resourcePath extracts the API-relative path from an absolute resource URI.
func resourcePath(resourceURI string) (string, error) {
	u, err := url.Parse(resourceURI)
	if err != nil {
		return "", fmt.Errorf("parsing resource uri %q: %w", resourceURI, err)
	}
	path := strings.TrimPrefix(u.Path, "/v3")
	if path == "" || !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("unexpected resource uri %q", resourceURI)
	}
	return path, nil
}
