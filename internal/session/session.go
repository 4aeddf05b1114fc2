// Package session ties the entity cache, the await registry, and the inbound
// event stream together for one running bot connection.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"kagami/internal/await"
	"kagami/internal/state"
	"kagami/pkg/kagami"

	"github.com/google/uuid"
)

// Session owns the client-side state for one authenticated bot connection.
type Session struct {
	cache    *state.Cache
	registry *await.Registry
	factory  *kagami.PredicateFactory
	logger   *slog.Logger
	selfID   kagami.Snowflake
}

// Option mutates session configuration.
type Option func(*Session)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(session *Session) {
		if logger != nil {
			session.logger = logger
		}
	}
}

// New creates a session bound to one transport and self identity.
func New(
	transport kagami.Transport,
	factory *kagami.PredicateFactory,
	selfID kagami.Snowflake,
	options ...Option,
) (*Session, error) {
	if factory == nil {
		return nil, fmt.Errorf("new session: nil predicate factory")
	}

	session := &Session{
		factory: factory,
		logger:  slog.Default(),
		selfID:  selfID,
	}
	for _, option := range options {
		option(session)
	}

	cache, err := state.NewCache(transport, selfID, state.WithLogger(session.logger))
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	session.cache = cache
	session.registry = await.NewRegistry(await.WithLogger(session.logger))

	return session, nil
}

// AwaitOption mutates one await registration.
type AwaitOption func(*awaitConfig)

type awaitConfig struct {
	key      any
	callback await.Callback
}

// WithKey sets the correlation key reported when the await fires.
func WithKey(key any) AwaitOption {
	return func(cfg *awaitConfig) {
		cfg.key = key
	}
}

// WithCallback sets the callback invoked when the await fires.
func WithCallback(callback await.Callback) AwaitOption {
	return func(cfg *awaitConfig) {
		cfg.callback = callback
	}
}

// WaitFor registers a one-shot wait condition against the inbound stream.
//
// When no key is provided a fresh opaque one is generated; the key is returned
// through the registered await for later correlation.
func (s *Session) WaitFor(kind kagami.EventKind, attrs kagami.Attributes, options ...AwaitOption) (*await.Await, error) {
	cfg := awaitConfig{}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.key == nil {
		cfg.key = uuid.NewString()
	}

	entry, err := await.New(s.factory, cfg.key, kind, attrs, cfg.callback)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", kind, err)
	}
	if err := s.registry.Add(entry); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", kind, err)
	}

	return entry, nil
}

// HandleEvent ingests one inbound event and dispatches it to live awaits.
//
// Events arrive one at a time in stream order; cache mutation stays safe
// under concurrent application lookups because the cache carries its own lock.
func (s *Session) HandleEvent(ctx context.Context, event *kagami.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("handle event: %w", err)
	}

	s.cache.RememberEvent(event)

	firedKeys, err := s.registry.Dispatch(ctx, event)
	if err != nil {
		return fmt.Errorf("handle event %s: %w", event.Kind, err)
	}
	if len(firedKeys) > 0 {
		s.logger.InfoContext(ctx,
			"awaits fired",
			"event_kind", string(event.Kind),
			"count", len(firedKeys),
		)
	}

	return nil
}

// PendingAwaits reports how many awaits are still registered.
func (s *Session) PendingAwaits() int {
	return s.registry.Len()
}

// Channel resolves a channel reference, fetching on miss.
func (s *Session) Channel(ctx context.Context, ref any) (*kagami.Channel, error) {
	return s.cache.Channel(ctx, ref)
}

// PrivateChannel resolves a direct conversation by peer user, creating on miss.
func (s *Session) PrivateChannel(ctx context.Context, peerRef any) (*kagami.Channel, error) {
	return s.cache.PrivateChannel(ctx, peerRef)
}

// Invite fetches invite metadata for an invite reference.
func (s *Session) Invite(ctx context.Context, invite any) (*kagami.Invite, error) {
	return s.cache.Invite(ctx, invite)
}

// User returns a cached user observed on the inbound stream.
func (s *Session) User(ref any) (*kagami.User, bool) {
	return s.cache.User(ref)
}

// Server returns a cached server observed on the inbound stream.
func (s *Session) Server(ref any) (*kagami.Server, bool) {
	return s.cache.Server(ref)
}

// FindChannel collects known channels by name with an optional server filter.
func (s *Session) FindChannel(name string, serverName ...string) []*kagami.Channel {
	return s.cache.FindChannel(name, serverName...)
}

// FindUser collects known users by username.
func (s *Session) FindUser(username string) []*kagami.User {
	return s.cache.FindUser(username)
}
