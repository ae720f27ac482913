package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/nvbf/scoreboard-sync/repos/realtime"
)

// Handler receives the full replacement document for a path. A JSON null
// document is a valid value (no active match on liveMatch).
type Handler func(doc json.RawMessage)

// Backend is the strategy a Client publishes and receives documents
// through. It is chosen once at construction; call sites never branch on
// which backend is active.
type Backend interface {
	// Publish replaces the document at path. Best-effort: an error means
	// the write was dropped, not that it will be retried.
	Publish(ctx context.Context, path string, doc json.RawMessage) error

	// Watch ensures remote changes for path reach the client's dispatcher.
	Watch(path string)

	// Connected reports whether the backend currently has a live link.
	Connected() bool

	Close() error
}

// Config selects and tunes the sync backend. Exactly one of Realtime or
// RelayURL must be set; when the managed datastore is configured it wins.
type Config struct {
	OrganizationID string

	// Realtime routes all operations to the managed datastore (Backend A).
	Realtime *realtime.Service

	// RelayURL is the self-hosted relay websocket address (Backend B).
	RelayURL string

	// SendRetryDelay is the single-retry delay for sends issued while the
	// relay connection is still establishing. Default 1s.
	SendRetryDelay time.Duration

	// ReconnectDelay is the fixed interval between relay reconnect
	// attempts. There is no maximum attempt count. Default 3s.
	ReconnectDelay time.Duration

	// OnStatusChange is invoked with the new connectivity state. Consumers
	// show a badge; the transport keeps operating local-only regardless.
	OnStatusChange func(connected bool)

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// Client is the per-application-instance sync transport. It owns the
// per-path listener registry and hides which backend is active.
type Client struct {
	mu        sync.Mutex
	listeners map[string][]*Subscription
	backend   Backend
	log       zerolog.Logger
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.SendRetryDelay <= 0 {
		cfg.SendRetryDelay = time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}

	c := &Client{
		listeners: make(map[string][]*Subscription),
		log:       cfg.Logger,
	}

	switch {
	case cfg.Realtime != nil:
		c.backend = newRealtimeBackend(ctx, cfg, c.dispatch)
	case cfg.RelayURL != "":
		c.backend = newRelayBackend(cfg, c.dispatch)
	default:
		return nil, xerrors.New("no sync backend configured: need a realtime store or a relay URL")
	}
	return c, nil
}

// Publish replaces the document at path with value for every client.
// Values are round-tripped through JSON; a value that does not serialize
// is dropped with a warning, never surfaced to the caller. Delivery is
// at-least-once with no confirmation.
func (c *Client) Publish(ctx context.Context, path string, value any) {
	doc, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("dropping publish, value does not serialize")
		return
	}
	if err := c.backend.Publish(ctx, path, doc); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("publish dropped, local state stays ahead until next sync")
	}
}

// Subscribe registers fn for every remote change to path and returns a
// token that removes only this handler. Multiple independent subscribers
// per path are supported.
func (c *Client) Subscribe(path string, fn Handler) *Subscription {
	sub := &Subscription{client: c, path: path, fn: fn}
	c.mu.Lock()
	c.listeners[path] = append(c.listeners[path], sub)
	c.mu.Unlock()
	c.backend.Watch(path)
	return sub
}

// Connected reports whether the active backend currently has a live link.
func (c *Client) Connected() bool { return c.backend.Connected() }

func (c *Client) Close() error { return c.backend.Close() }

func (c *Client) dispatch(path string, doc json.RawMessage) {
	c.mu.Lock()
	subs := make([]*Subscription, len(c.listeners[path]))
	copy(subs, c.listeners[path])
	c.mu.Unlock()

	for _, sub := range subs {
		sub.fn(doc)
	}
}

// Subscription is the unsubscribe token returned by Subscribe.
type Subscription struct {
	client *Client
	path   string
	fn     Handler
	once   sync.Once
}

// Cancel removes this handler from the path's listener list. Other
// subscribers on the same path are unaffected. Safe to call repeatedly
// and on a zero-value token.
func (s *Subscription) Cancel() {
	if s == nil || s.client == nil {
		return
	}
	s.once.Do(func() {
		s.client.mu.Lock()
		defer s.client.mu.Unlock()
		subs := s.client.listeners[s.path]
		for i, sub := range subs {
			if sub == s {
				s.client.listeners[s.path] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	})
}
