// Package remote provides the remote store client lifecycle.
package remote

import (
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yhsiang/shopledger/internal/errors"
)

// Handle owns the process-wide remote client. The client is built
// lazily on first use and rebuilt whenever credentials change; the
// mutex makes initialization single-flight so concurrent callers never
// observe a half-updated client.
type Handle struct {
	mu     sync.Mutex
	config Config
	client *Client
}

// NewHandle creates a Handle from the initial configuration. No
// connection is attempted until the first Client call.
func NewHandle(config Config) *Handle {
	return &Handle{config: config}
}

// Client returns the shared client, building it on first use. Fails
// with SYNC_NOT_CONFIGURED when no credentials are present.
func (h *Handle) Client() (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.config.IsConfigured() {
		return nil, errors.New(errors.ErrNotConfigured, "remote store credentials missing")
	}
	if h.client == nil {
		h.client = NewClient(h.config)
	}
	return h.client, nil
}

// SetAccessToken swaps the per-user token and invalidates the client,
// forcing re-initialization on next use.
func (h *Handle) SetAccessToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.config.AccessToken = token
	h.client = nil
}

// Reset drops the current client so the next call rebuilds it.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.client = nil
}

// IsConfigured reports whether credentials are present.
func (h *Handle) IsConfigured() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.config.IsConfigured()
}

// OwnerID extracts the owner identifier from the access token's
// subject claim. The token is parsed without signature verification;
// the remote store verifies it on every request, locally it only
// names the tenant. Returns "" when signed out.
func (h *Handle) OwnerID() string {
	h.mu.Lock()
	token := h.config.AccessToken
	h.mu.Unlock()

	if token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
