// Package remote provides the push-based change notification channel.
package remote

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yhsiang/shopledger/internal/errors"
	"github.com/yhsiang/shopledger/internal/logging"
	"github.com/yhsiang/shopledger/internal/models"
)

// ChangeEvent describes a remote mutation reported over the
// notification channel.
type ChangeEvent struct {
	Entity  string        `json:"entity"`
	Action  string        `json:"action"` // upsert, delete
	Payload models.Record `json:"payload,omitempty"`
}

// subscribeMessage opens an owner-scoped subscription.
type subscribeMessage struct {
	Action  string `json:"action"`
	OwnerID string `json:"owner_id"`
}

// Notifier maintains a long-lived websocket to the remote store and
// forwards change events. It is an acceleration only: the engine stays
// eventually consistent if the channel is never available or silently
// drops.
type Notifier struct {
	config Config
	dialer *websocket.Dialer
}

// NewNotifier creates a Notifier from the remote configuration.
func NewNotifier(config Config) *Notifier {
	return &Notifier{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Subscribe opens the change channel for an owner and invokes onChange
// for every reported mutation until the connection drops or the
// returned unsubscribe function runs. Unsubscribe is idempotent and
// safe to never call.
func (n *Notifier) Subscribe(ctx context.Context, ownerID string, onChange func(ChangeEvent)) (func(), error) {
	if !n.config.IsConfigured() {
		return nil, errors.New(errors.ErrNotConfigured, "remote store credentials missing")
	}
	if ownerID == "" {
		return nil, errors.New(errors.ErrNotAuthenticated, "no owner identity")
	}

	wsURL, err := changeFeedURL(n.config.BaseURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNotConfigured, "invalid base URL", err)
	}

	header := map[string][]string{"apikey": {n.config.APIKey}}
	if n.config.AccessToken != "" {
		header["Authorization"] = []string{"Bearer " + n.config.AccessToken}
	}

	conn, _, err := n.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, "change feed dial failed", err)
	}

	if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", OwnerID: ownerID}); err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrNetwork, "change feed subscribe failed", err)
	}

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
	}

	go n.readLoop(ctx, conn, done, unsubscribe, onChange)

	return unsubscribe, nil
}

// readLoop pumps change events until the connection ends. A dropped
// connection is logged and swallowed; the next full sync covers
// whatever the feed missed. The done channel releases the context
// watcher when the subscription ends before the context does.
func (n *Notifier) readLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}, unsubscribe func(), onChange func(ChangeEvent)) {
	defer unsubscribe()

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("Change feed disconnected",
					map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var event ChangeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			logging.Warn("Invalid change feed message",
				map[string]interface{}{"error": err.Error()})
			continue
		}

		if event.Entity == "" {
			continue
		}

		onChange(event)
	}
}

// changeFeedURL derives the websocket endpoint from the REST base URL.
func changeFeedURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath("changes").String(), nil
}
