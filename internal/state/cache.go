package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"kagami/pkg/kagami"

	"golang.org/x/sync/singleflight"
)

// Cache is the single source of truth for locally mirrored remote entities.
//
// Users and servers are populated exclusively by the event-ingestion path and
// never trigger network activity. Channel, private-channel, and invite lookups
// fetch on miss through the transport. Concurrent misses on the same
// identifier are collapsed into one in-flight fetch.
type Cache struct {
	transport kagami.Transport
	selfID    kagami.Snowflake
	logger    *slog.Logger
	fetches   singleflight.Group

	mu              sync.RWMutex
	users           map[kagami.Snowflake]*kagami.User
	userOrder       []kagami.Snowflake
	servers         map[kagami.Snowflake]*kagami.Server
	serverOrder     []kagami.Snowflake
	channels        map[kagami.Snowflake]*kagami.Channel
	privateChannels map[kagami.Snowflake]*kagami.Channel
	restricted      map[kagami.Snowflake]struct{}
}

// Option mutates cache configuration.
type Option func(*Cache)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cache *Cache) {
		if logger != nil {
			cache.logger = logger
		}
	}
}

// NewCache creates an empty entity cache bound to one session.
func NewCache(transport kagami.Transport, selfID kagami.Snowflake, options ...Option) (*Cache, error) {
	if transport == nil {
		return nil, fmt.Errorf("new cache: nil transport")
	}
	if selfID == 0 {
		return nil, fmt.Errorf("new cache: missing self user id")
	}

	cache := &Cache{
		transport:       transport,
		selfID:          selfID,
		logger:          slog.Default(),
		users:           make(map[kagami.Snowflake]*kagami.User),
		servers:         make(map[kagami.Snowflake]*kagami.Server),
		channels:        make(map[kagami.Snowflake]*kagami.Channel),
		privateChannels: make(map[kagami.Snowflake]*kagami.Channel),
		restricted:      make(map[kagami.Snowflake]struct{}),
	}
	for _, option := range options {
		option(cache)
	}

	return cache, nil
}

// Channel resolves a channel reference to its cached entity, fetching on miss.
//
// Identifiers previously rejected with ErrNoPermission fail immediately
// without contacting the transport.
func (c *Cache) Channel(ctx context.Context, ref any) (*kagami.Channel, error) {
	channelID, err := kagami.ResolveID(ref)
	if err != nil {
		return nil, fmt.Errorf("cache channel: %w", err)
	}

	c.mu.RLock()
	_, blocked := c.restricted[channelID]
	cached, exists := c.channels[channelID]
	c.mu.RUnlock()

	if blocked {
		return nil, fmt.Errorf("cache channel %s: %w", channelID, kagami.ErrNoPermission)
	}
	if exists {
		return cached, nil
	}

	fetched, err, _ := c.fetches.Do("channel:"+channelID.String(), func() (any, error) {
		return c.fetchChannel(ctx, channelID)
	})
	if err != nil {
		return nil, err
	}

	channel, ok := fetched.(*kagami.Channel)
	if !ok {
		return nil, fmt.Errorf("cache channel %s: unexpected fetch result %T", channelID, fetched)
	}

	return channel, nil
}

// fetchChannel performs the network round-trip and memoizes the result.
// A permission failure blacklists the identifier before propagating.
func (c *Cache) fetchChannel(ctx context.Context, channelID kagami.Snowflake) (*kagami.Channel, error) {
	// A concurrent caller may have populated the entry, or blacklisted the
	// identifier, while this call waited for the singleflight slot.
	c.mu.RLock()
	_, blocked := c.restricted[channelID]
	cached, exists := c.channels[channelID]
	c.mu.RUnlock()
	if blocked {
		return nil, fmt.Errorf("fetch channel %s: %w", channelID, kagami.ErrNoPermission)
	}
	if exists {
		return cached, nil
	}

	raw, err := c.transport.FetchChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, kagami.ErrNoPermission) {
			c.mu.Lock()
			c.restricted[channelID] = struct{}{}
			delete(c.channels, channelID)
			c.mu.Unlock()
			c.logger.WarnContext(ctx,
				"channel restricted after permission failure",
				"channel_id", channelID.String(),
			)
		}

		return nil, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}

	channel, err := kagami.DecodeChannel(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}

	c.mu.Lock()
	c.channels[channelID] = channel
	c.attachToServerLocked(channel)
	c.mu.Unlock()

	return channel, nil
}

// PrivateChannel resolves a direct conversation by peer user, creating it on miss.
func (c *Cache) PrivateChannel(ctx context.Context, peerRef any) (*kagami.Channel, error) {
	peerID, err := kagami.ResolveID(peerRef)
	if err != nil {
		return nil, fmt.Errorf("cache private channel: %w", err)
	}

	c.mu.RLock()
	cached, exists := c.privateChannels[peerID]
	c.mu.RUnlock()
	if exists {
		return cached, nil
	}

	created, err, _ := c.fetches.Do("private:"+peerID.String(), func() (any, error) {
		return c.createPrivateChannel(ctx, peerID)
	})
	if err != nil {
		return nil, err
	}

	channel, ok := created.(*kagami.Channel)
	if !ok {
		return nil, fmt.Errorf("cache private channel %s: unexpected fetch result %T", peerID, created)
	}

	return channel, nil
}

// createPrivateChannel performs the creation round-trip and memoizes by peer id.
func (c *Cache) createPrivateChannel(ctx context.Context, peerID kagami.Snowflake) (*kagami.Channel, error) {
	c.mu.RLock()
	cached, exists := c.privateChannels[peerID]
	c.mu.RUnlock()
	if exists {
		return cached, nil
	}

	raw, err := c.transport.CreatePrivateChannel(ctx, c.selfID, peerID)
	if err != nil {
		return nil, fmt.Errorf("create private channel with %s: %w", peerID, err)
	}

	channel, err := kagami.DecodeChannel(raw)
	if err != nil {
		return nil, fmt.Errorf("create private channel with %s: %w", peerID, err)
	}
	channel.Type = kagami.ChannelTypePrivate

	c.mu.Lock()
	c.privateChannels[peerID] = channel
	c.mu.Unlock()

	return channel, nil
}

// ResolveInviteCode reduces an invite reference to its bare code.
//
// Invite-like values yield their known code; URL and discord.gg forms are
// stripped to the segment after the final slash; anything else passes through
// unchanged. No network activity, never fails.
func (c *Cache) ResolveInviteCode(invite any) string {
	if coder, ok := invite.(kagami.InviteCoder); ok {
		return coder.InviteCode()
	}

	code := fmt.Sprint(invite)
	if strings.HasPrefix(code, "http") || strings.HasPrefix(code, "discord.gg") {
		if slash := strings.LastIndex(code, "/"); slash >= 0 {
			return code[slash+1:]
		}
	}

	return code
}

// Invite fetches invite metadata for an invite reference. Results are never cached.
func (c *Cache) Invite(ctx context.Context, invite any) (*kagami.Invite, error) {
	code := c.ResolveInviteCode(invite)

	raw, err := c.transport.ResolveInvite(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve invite %s: %w", code, err)
	}

	decoded, err := kagami.DecodeInvite(raw)
	if err != nil {
		return nil, fmt.Errorf("resolve invite %s: %w", code, err)
	}

	return decoded, nil
}

// User returns a cached user. Lookups never fetch; absence is a normal outcome.
func (c *Cache) User(ref any) (*kagami.User, bool) {
	userID, err := kagami.ResolveID(ref)
	if err != nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	user, exists := c.users[userID]

	return user, exists
}

// Server returns a cached server. Lookups never fetch; absence is a normal outcome.
func (c *Cache) Server(ref any) (*kagami.Server, bool) {
	serverID, err := kagami.ResolveID(ref)
	if err != nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	server, exists := c.servers[serverID]
	if !exists {
		return nil, false
	}

	// The cached struct keeps growing as channels attach; hand out a snapshot
	// so callers never read a slice the cache is appending to.
	snapshot := *server
	snapshot.Channels = append([]*kagami.Channel(nil), server.Channels...)

	return &snapshot, true
}

// FindChannel collects every known channel named name, optionally restricted to
// servers named serverName. Results follow server observation order, then
// channel observation order within each server.
func (c *Cache) FindChannel(name string, serverName ...string) []*kagami.Channel {
	filterByServer := len(serverName) > 0

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []*kagami.Channel
	for _, serverID := range c.serverOrder {
		server, exists := c.servers[serverID]
		if !exists {
			continue
		}
		if filterByServer && server.Name != serverName[0] {
			continue
		}
		for _, channel := range server.Channels {
			if channel.Name == name {
				matches = append(matches, channel)
			}
		}
	}

	return matches
}

// FindUser collects every known user with the given username in observation order.
func (c *Cache) FindUser(username string) []*kagami.User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []*kagami.User
	for _, userID := range c.userOrder {
		user, exists := c.users[userID]
		if !exists {
			continue
		}
		if user.Username == username {
			matches = append(matches, user)
		}
	}

	return matches
}

// PutUser ingests one observed user, preserving first-observation order.
func (c *Cache) PutUser(user *kagami.User) {
	if user == nil || user.ID == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	existing, exists := c.users[user.ID]
	if !exists {
		c.userOrder = append(c.userOrder, user.ID)
		c.users[user.ID] = user
		return
	}

	// Stub observations (an id-only presence frame, say) must not erase state
	// observed earlier. The map entry is swapped, never mutated in place, so
	// pointers handed out by User remain stable.
	merged := *existing
	if user.Username != "" {
		merged.Username = user.Username
	}
	if user.Discriminator != "" {
		merged.Discriminator = user.Discriminator
	}
	merged.Bot = existing.Bot || user.Bot
	c.users[user.ID] = &merged
}

// PutServer ingests one observed server and its channels, merging into any
// earlier observation of the same server.
func (c *Cache) PutServer(server *kagami.Server) {
	if server == nil || server.ID == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	stored, exists := c.servers[server.ID]
	if !exists {
		// The cache owns its server structs; detaching from the ingested value
		// keeps later channel attachment from reaching into event envelopes
		// still held by callers.
		stored = &kagami.Server{ID: server.ID}
		c.servers[server.ID] = stored
		c.serverOrder = append(c.serverOrder, server.ID)
	}
	if server.Name != "" {
		stored.Name = server.Name
	}
	for _, channel := range server.Channels {
		if channel == nil || channel.ID == 0 {
			continue
		}
		if _, blocked := c.restricted[channel.ID]; blocked {
			continue
		}
		if channel.ServerID == 0 {
			channel.ServerID = server.ID
		}
		c.channels[channel.ID] = channel
		c.attachToServerLocked(channel)
	}
}

// PutChannel ingests one observed channel, attaching it to its server when known.
func (c *Cache) PutChannel(channel *kagami.Channel) {
	if channel == nil || channel.ID == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if channel.IsPrivate() {
		if channel.Recipient != nil && channel.Recipient.ID != 0 {
			c.privateChannels[channel.Recipient.ID] = channel
		}
		return
	}
	if _, blocked := c.restricted[channel.ID]; blocked {
		return
	}
	c.channels[channel.ID] = channel
	c.attachToServerLocked(channel)
}

// RememberEvent ingests entity data attached to one inbound event envelope.
func (c *Cache) RememberEvent(event *kagami.Event) {
	if event == nil {
		return
	}

	if event.Server != nil {
		c.PutServer(event.Server)
	}
	if event.Channel != nil {
		c.PutChannel(event.Channel)
	}
	if event.Actor != nil {
		c.PutUser(event.Actor)
	}
}

// attachToServerLocked links a channel into its owning server's ordered list.
func (c *Cache) attachToServerLocked(channel *kagami.Channel) {
	if channel.ServerID == 0 {
		return
	}
	server, exists := c.servers[channel.ServerID]
	if !exists {
		return
	}
	for idx, existing := range server.Channels {
		if existing.ID == channel.ID {
			server.Channels[idx] = channel
			return
		}
	}
	server.Channels = append(server.Channels, channel)
}
