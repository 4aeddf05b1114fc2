package await

import (
	"fmt"
	"strings"

	"kagami/pkg/kagami"
)

// Attribute keys understood by the built-in predicate constructors.
const (
	// AttrChannelID restricts matching to one channel.
	AttrChannelID = "channel_id"
	// AttrAuthorID restricts message matching to one author.
	AttrAuthorID = "author_id"
	// AttrContent requires exact message content.
	AttrContent = "content"
	// AttrContentPrefix requires a message content prefix.
	AttrContentPrefix = "content_prefix"
	// AttrServerID restricts member matching to one server.
	AttrServerID = "server_id"
	// AttrUsername restricts member matching to one username.
	AttrUsername = "username"
	// AttrEmoji restricts reaction matching to one emoji.
	AttrEmoji = "emoji"
	// AttrMessageID restricts reaction matching to one message.
	AttrMessageID = "message_id"
)

// DefaultPredicateFactory returns a factory with every built-in constructor registered.
func DefaultPredicateFactory() (*kagami.PredicateFactory, error) {
	factory := kagami.NewPredicateFactory()

	builtins := map[kagami.EventKind]kagami.PredicateConstructor{
		kagami.EventKindMessageCreated: newMessagePredicate,
		kagami.EventKindMemberJoined:   newMemberJoinedPredicate,
		kagami.EventKindReactionAdded:  newReactionPredicate,
	}
	for kind, constructor := range builtins {
		if err := factory.Register(kind, constructor); err != nil {
			return nil, fmt.Errorf("default predicate factory: %w", err)
		}
	}

	return factory, nil
}

// newMessagePredicate matches message.created events by channel, author, and content.
func newMessagePredicate(attrs kagami.Attributes) (kagami.Predicate, error) {
	channelID, hasChannel, err := attrs.ID(AttrChannelID)
	if err != nil {
		return nil, fmt.Errorf("message predicate: %w", err)
	}
	authorID, hasAuthor, err := attrs.ID(AttrAuthorID)
	if err != nil {
		return nil, fmt.Errorf("message predicate: %w", err)
	}
	content, hasContent, err := attrs.String(AttrContent)
	if err != nil {
		return nil, fmt.Errorf("message predicate: %w", err)
	}
	prefix, hasPrefix, err := attrs.String(AttrContentPrefix)
	if err != nil {
		return nil, fmt.Errorf("message predicate: %w", err)
	}

	return kagami.PredicateFunc(func(event *kagami.Event) bool {
		if event == nil || event.Kind != kagami.EventKindMessageCreated || event.Message == nil {
			return false
		}
		if hasChannel && event.Message.ChannelID != channelID {
			return false
		}
		if hasAuthor && event.Message.AuthorID != authorID {
			return false
		}
		if hasContent && event.Message.Content != content {
			return false
		}
		if hasPrefix && !strings.HasPrefix(event.Message.Content, prefix) {
			return false
		}

		return true
	}), nil
}

// newMemberJoinedPredicate matches member.joined events by server and username.
func newMemberJoinedPredicate(attrs kagami.Attributes) (kagami.Predicate, error) {
	serverID, hasServer, err := attrs.ID(AttrServerID)
	if err != nil {
		return nil, fmt.Errorf("member joined predicate: %w", err)
	}
	username, hasUsername, err := attrs.String(AttrUsername)
	if err != nil {
		return nil, fmt.Errorf("member joined predicate: %w", err)
	}

	return kagami.PredicateFunc(func(event *kagami.Event) bool {
		if event == nil || event.Kind != kagami.EventKindMemberJoined || event.Actor == nil {
			return false
		}
		if hasServer && (event.Server == nil || event.Server.ID != serverID) {
			return false
		}
		if hasUsername && event.Actor.Username != username {
			return false
		}

		return true
	}), nil
}

// newReactionPredicate matches reaction.added events by channel, message, and emoji.
func newReactionPredicate(attrs kagami.Attributes) (kagami.Predicate, error) {
	channelID, hasChannel, err := attrs.ID(AttrChannelID)
	if err != nil {
		return nil, fmt.Errorf("reaction predicate: %w", err)
	}
	messageID, hasMessage, err := attrs.ID(AttrMessageID)
	if err != nil {
		return nil, fmt.Errorf("reaction predicate: %w", err)
	}
	emoji, hasEmoji, err := attrs.String(AttrEmoji)
	if err != nil {
		return nil, fmt.Errorf("reaction predicate: %w", err)
	}

	return kagami.PredicateFunc(func(event *kagami.Event) bool {
		if event == nil || event.Kind != kagami.EventKindReactionAdded || event.Reaction == nil {
			return false
		}
		if hasChannel && event.Reaction.ChannelID != channelID {
			return false
		}
		if hasMessage && event.Reaction.MessageID != messageID {
			return false
		}
		if hasEmoji && event.Reaction.Emoji != emoji {
			return false
		}

		return true
	}), nil
}
