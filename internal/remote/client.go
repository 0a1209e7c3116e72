// Package remote provides the HTTP client for the multi-tenant remote
// record store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/yhsiang/shopledger/internal/errors"
	"github.com/yhsiang/shopledger/internal/models"
)

// Config holds remote store connection configuration.
type Config struct {
	BaseURL     string
	APIKey      string        // project API key, sent on every request
	AccessToken string        // per-user JWT, carries the owner identity
	Timeout     time.Duration // per-request timeout
}

// IsConfigured reports whether the config is complete enough to build
// a client.
func (c Config) IsConfigured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// Client talks to the remote record store. All operations are scoped
// by owner; the server enforces row-level visibility, the client only
// passes the scope along.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Client.
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Upsert writes an envelope to a collection, keyed by the envelope id.
// The write is conditional: the server compares updated_at and answers
// 409 when its stored copy is strictly newer, which surfaces as
// SYNC_STALE_PUSH so the caller keeps the remote version instead of
// clobbering it. Repeating an accepted upsert with the same envelope
// leaves the remote store unchanged.
func (c *Client) Upsert(ctx context.Context, collection string, env models.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(errors.ErrValidation, "failed to encode envelope", err)
	}

	path := fmt.Sprintf("collections/%s/%s", url.PathEscape(collection), url.PathEscape(env.ID))
	req, err := c.newRequest(ctx, http.MethodPut, path, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, "upsert", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return classifyStatus("upsert", resp)
	}
	return nil
}

// Delete removes a record from a collection, filtered by both primary
// key and owner id. Deleting an already-absent record is a success.
func (c *Client) Delete(ctx context.Context, collection, id, ownerID string) error {
	path := fmt.Sprintf("collections/%s/%s", url.PathEscape(collection), url.PathEscape(id))
	query := url.Values{"owner_id": {ownerID}}

	req, err := c.newRequest(ctx, http.MethodDelete, path, query, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, "delete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classifyStatus("delete", resp)
	}
	return nil
}

// Select returns all envelopes of a collection visible to the owner,
// optionally restricted to those modified after the given watermark.
func (c *Client) Select(ctx context.Context, collection, ownerID string, since *time.Time) ([]models.Envelope, error) {
	query := url.Values{"owner_id": {ownerID}}
	if since != nil {
		query.Set("updated_after", since.UTC().Format(time.RFC3339))
	}

	path := "collections/" + url.PathEscape(collection)
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, "select", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("select", resp)
	}

	var envelopes []models.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelopes); err != nil {
		return nil, errors.Wrap(errors.ErrRemote, "failed to decode select response", err)
	}
	return envelopes, nil
}

// Ping checks reachability of the remote store.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "health", nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, "ping", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus("ping", resp)
	}
	return nil
}

// newRequest builds an authenticated request against the remote store.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNotConfigured, "invalid base URL", err)
	}

	u := base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.config.APIKey)
	if c.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	}
	return req, nil
}

// classifyTransport maps transport-level failures onto the sync error
// taxonomy: cancellation and timeouts count as timeouts, everything
// else as connectivity loss. Both are retryable.
func classifyTransport(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrTimeout, op+" cancelled or timed out", err)
	}
	return errors.Wrap(errors.ErrNetwork, op+" request failed", err)
}

// classifyStatus maps HTTP error responses: 5xx is transient, 409/412
// means the stored copy is newer, any other 4xx means the remote
// rejected the payload and a retry cannot help.
func classifyStatus(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, string(body))

	if resp.StatusCode >= 500 {
		return errors.Wrap(errors.ErrNetwork, "remote store unavailable", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Wrap(errors.ErrNotAuthenticated, "remote store rejected credentials", err)
	}
	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed {
		return errors.Wrap(errors.ErrStale, "remote copy is newer", err)
	}
	return errors.Wrap(errors.ErrRemote, "remote store rejected request", err)
}
