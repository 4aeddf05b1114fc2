package kagami

import (
	"context"
	"encoding/json"
)

// Transport performs the authenticated network calls backing cache misses.
//
// Implementations own authentication, timeouts, and retry policy; the state
// layer surfaces their failures verbatim apart from the permission blacklist
// side effect. FetchChannel fails with ErrNoPermission when the bot cannot
// access the channel; ResolveInvite fails with ErrNotFound for unknown codes.
type Transport interface {
	// FetchChannel retrieves the raw payload for one channel.
	FetchChannel(ctx context.Context, channelID Snowflake) (json.RawMessage, error)
	// CreatePrivateChannel opens (or returns) a direct conversation with one peer.
	CreatePrivateChannel(ctx context.Context, selfID, peerID Snowflake) (json.RawMessage, error)
	// ResolveInvite retrieves invite metadata for one bare invite code.
	ResolveInvite(ctx context.Context, code string) (json.RawMessage, error)
}
