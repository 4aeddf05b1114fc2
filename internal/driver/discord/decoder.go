package discord

import (
	"encoding/json"
	"fmt"
	"time"

	"kagami/pkg/kagami"

	"github.com/google/uuid"
)

// Frame is one raw gateway payload.
type Frame struct {
	Op       int             `json:"op"`
	Type     string          `json:"t"`
	Sequence int64           `json:"s"`
	Data     json.RawMessage `json:"d"`
}

// Gateway frame type names understood by the decoder.
const (
	frameTypeMessageCreate  = "MESSAGE_CREATE"
	frameTypeMemberAdd      = "GUILD_MEMBER_ADD"
	frameTypeReactionAdd    = "MESSAGE_REACTION_ADD"
	frameTypeChannelCreate  = "CHANNEL_CREATE"
	frameTypeServerCreate   = "GUILD_CREATE"
	frameTypePresenceUpdate = "PRESENCE_UPDATE"

	opDispatch = 0
)

// Decoder converts raw gateway frames into neutral events.
type Decoder struct{}

// NewDecoder creates a gateway frame decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode converts one frame into a neutral event.
//
// Non-dispatch frames and unrecognized dispatch types decode to a nil event
// with no error; callers skip them.
func (d *Decoder) Decode(frame Frame) (*kagami.Event, error) {
	if frame.Op != opDispatch {
		return nil, nil
	}

	switch frame.Type {
	case frameTypeMessageCreate:
		return decodeMessageCreate(frame.Data)
	case frameTypeMemberAdd:
		return decodeMemberAdd(frame.Data)
	case frameTypeReactionAdd:
		return decodeReactionAdd(frame.Data)
	case frameTypeChannelCreate:
		return decodeChannelCreate(frame.Data)
	case frameTypeServerCreate:
		return decodeServerCreate(frame.Data)
	case frameTypePresenceUpdate:
		return decodePresenceUpdate(frame.Data)
	default:
		return nil, nil
	}
}

type messageCreatePayload struct {
	ID        kagami.Snowflake `json:"id,string"`
	ChannelID kagami.Snowflake `json:"channel_id,string"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Author    *kagami.User     `json:"author"`
}

func decodeMessageCreate(data json.RawMessage) (*kagami.Event, error) {
	var payload messageCreatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", frameTypeMessageCreate, err)
	}
	if payload.ID == 0 || payload.ChannelID == 0 {
		return nil, fmt.Errorf("decode %s: missing message or channel id", frameTypeMessageCreate)
	}

	event := &kagami.Event{
		ID:         newEventID(),
		Kind:       kagami.EventKindMessageCreated,
		OccurredAt: payload.Timestamp,
		Actor:      payload.Author,
		Message: &kagami.Message{
			ID:        payload.ID,
			ChannelID: payload.ChannelID,
			Content:   payload.Content,
		},
	}
	if payload.Author != nil {
		event.Message.AuthorID = payload.Author.ID
	}

	return event, nil
}

type memberAddPayload struct {
	ServerID kagami.Snowflake `json:"guild_id,string"`
	JoinedAt time.Time        `json:"joined_at"`
	User     *kagami.User     `json:"user"`
}

func decodeMemberAdd(data json.RawMessage) (*kagami.Event, error) {
	var payload memberAddPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", frameTypeMemberAdd, err)
	}
	if payload.User == nil || payload.User.ID == 0 {
		return nil, fmt.Errorf("decode %s: missing user", frameTypeMemberAdd)
	}

	event := &kagami.Event{
		ID:         newEventID(),
		Kind:       kagami.EventKindMemberJoined,
		OccurredAt: payload.JoinedAt,
		Actor:      payload.User,
	}
	if payload.ServerID != 0 {
		event.Server = &kagami.Server{ID: payload.ServerID}
	}

	return event, nil
}

type reactionAddPayload struct {
	MessageID kagami.Snowflake `json:"message_id,string"`
	ChannelID kagami.Snowflake `json:"channel_id,string"`
	UserID    kagami.Snowflake `json:"user_id,string"`
	Emoji     struct {
		Name string `json:"name"`
	} `json:"emoji"`
}

func decodeReactionAdd(data json.RawMessage) (*kagami.Event, error) {
	var payload reactionAddPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", frameTypeReactionAdd, err)
	}
	if payload.MessageID == 0 {
		return nil, fmt.Errorf("decode %s: missing message id", frameTypeReactionAdd)
	}

	return &kagami.Event{
		ID:   newEventID(),
		Kind: kagami.EventKindReactionAdded,
		Reaction: &kagami.Reaction{
			MessageID: payload.MessageID,
			ChannelID: payload.ChannelID,
			Emoji:     payload.Emoji.Name,
		},
	}, nil
}

func decodeChannelCreate(data json.RawMessage) (*kagami.Event, error) {
	channel, err := kagami.DecodeChannel(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", frameTypeChannelCreate, err)
	}

	return &kagami.Event{
		ID:      newEventID(),
		Kind:    kagami.EventKindChannelCreated,
		Channel: channel,
	}, nil
}

type serverCreatePayload struct {
	ID       kagami.Snowflake  `json:"id,string"`
	Name     string            `json:"name"`
	Channels []*kagami.Channel `json:"channels"`
	Members  []struct {
		User *kagami.User `json:"user"`
	} `json:"members"`
}

func decodeServerCreate(data json.RawMessage) (*kagami.Event, error) {
	var payload serverCreatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", frameTypeServerCreate, err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("decode %s: missing server id", frameTypeServerCreate)
	}

	server := &kagami.Server{
		ID:       payload.ID,
		Name:     payload.Name,
		Channels: payload.Channels,
	}
	for _, channel := range server.Channels {
		if channel != nil && channel.ServerID == 0 {
			channel.ServerID = server.ID
		}
	}

	return &kagami.Event{
		ID:     newEventID(),
		Kind:   kagami.EventKindServerAvailable,
		Server: server,
	}, nil
}

type presenceUpdatePayload struct {
	User *kagami.User `json:"user"`
}

func decodePresenceUpdate(data json.RawMessage) (*kagami.Event, error) {
	var payload presenceUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", frameTypePresenceUpdate, err)
	}
	if payload.User == nil || payload.User.ID == 0 {
		// Partial presence frames without user identity carry nothing to mirror.
		return nil, nil
	}

	return &kagami.Event{
		ID:    newEventID(),
		Kind:  kagami.EventKindPresenceUpdated,
		Actor: payload.User,
	}, nil
}

// newEventID assigns a stable per-instance identifier to decoded events.
func newEventID() string {
	return uuid.NewString()
}
