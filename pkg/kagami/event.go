package kagami

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindMessageCreated is emitted when a new message is posted.
	EventKindMessageCreated EventKind = "message.created"
	// EventKindMemberJoined is emitted when a user joins a server.
	EventKindMemberJoined EventKind = "member.joined"
	// EventKindReactionAdded is emitted when a reaction is added to a message.
	EventKindReactionAdded EventKind = "reaction.added"
	// EventKindChannelCreated is emitted when a channel becomes visible.
	EventKindChannelCreated EventKind = "channel.created"
	// EventKindServerAvailable is emitted when a server and its channels become visible.
	EventKindServerAvailable EventKind = "server.available"
	// EventKindPresenceUpdated is emitted when a member presence changes.
	EventKindPresenceUpdated EventKind = "presence.updated"
)

// Event is the neutral envelope delivered by the ingestion stream.
//
// Payload branches are optional and selected by Kind; entity pointers reference
// cache-owned values once the event has been ingested.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Server identifies the server scope when the event has one.
	Server *Server
	// Channel identifies the conversation scope when the event has one.
	Channel *Channel
	// Actor identifies who initiated the event when available.
	Actor *User
	// Message carries message content for message events.
	Message *Message
	// Reaction carries reaction metadata for reaction events.
	Reaction *Reaction
}

// Message holds neutral message content.
type Message struct {
	ID        Snowflake
	ChannelID Snowflake
	AuthorID  Snowflake
	Content   string
}

// Reaction holds neutral reaction metadata.
type Reaction struct {
	MessageID Snowflake
	ChannelID Snowflake
	Emoji     string
}

// Validate checks envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}

	switch e.Kind {
	case EventKindMessageCreated:
		if e.Message == nil {
			return fmt.Errorf("%w: %s requires message payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindReactionAdded:
		if e.Reaction == nil {
			return fmt.Errorf("%w: %s requires reaction payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindMemberJoined, EventKindPresenceUpdated:
		if e.Actor == nil {
			return fmt.Errorf("%w: %s requires actor payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindChannelCreated:
		if e.Channel == nil {
			return fmt.Errorf("%w: %s requires channel payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindServerAvailable:
		if e.Server == nil {
			return fmt.Errorf("%w: %s requires server payload", ErrInvalidEvent, e.Kind)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
