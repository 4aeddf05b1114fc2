package kagami

import (
	"encoding/json"
	"fmt"
)

// ChannelType identifies the conversation scope of a channel.
type ChannelType string

const (
	// ChannelTypeText is a server text channel.
	ChannelTypeText ChannelType = "text"
	// ChannelTypeVoice is a server voice channel.
	ChannelTypeVoice ChannelType = "voice"
	// ChannelTypePrivate is a direct conversation with one peer user.
	ChannelTypePrivate ChannelType = "private"
)

// User is a locally mirrored platform account.
type User struct {
	ID            Snowflake `json:"id,string"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	Bot           bool      `json:"bot"`
}

// SnowflakeID returns the user identifier.
func (u *User) SnowflakeID() Snowflake {
	return u.ID
}

// Server is a locally mirrored guild/server together with its known channels.
//
// Channels preserve observation order; FindChannel-style scans rely on it.
type Server struct {
	ID       Snowflake  `json:"id,string"`
	Name     string     `json:"name"`
	Channels []*Channel `json:"channels"`
}

// SnowflakeID returns the server identifier.
func (s *Server) SnowflakeID() Snowflake {
	return s.ID
}

// Channel is a locally mirrored conversation.
//
// Private channels carry the peer user in Recipient and a zero ServerID.
type Channel struct {
	ID        Snowflake   `json:"id,string"`
	ServerID  Snowflake   `json:"server_id,string"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type"`
	Recipient *User       `json:"recipient,omitempty"`
}

// SnowflakeID returns the channel identifier.
func (c *Channel) SnowflakeID() Snowflake {
	return c.ID
}

// IsPrivate reports whether the channel is a direct conversation.
func (c *Channel) IsPrivate() bool {
	return c.Type == ChannelTypePrivate
}

// Invite is decoded invite metadata. Invites are never cached.
type Invite struct {
	Code       string    `json:"code"`
	ServerID   Snowflake `json:"server_id,string"`
	ServerName string    `json:"server_name"`
	ChannelID  Snowflake `json:"channel_id,string"`
}

// InviteCode returns the bare invite code.
func (i *Invite) InviteCode() string {
	return i.Code
}

// InviteCoder is anything that already carries a known invite code.
type InviteCoder interface {
	InviteCode() string
}

// DecodeChannel constructs a channel entity from a raw transport payload.
func DecodeChannel(raw json.RawMessage) (*Channel, error) {
	var channel Channel
	if err := json.Unmarshal(raw, &channel); err != nil {
		return nil, fmt.Errorf("decode channel payload: %w", err)
	}
	if channel.ID == 0 {
		return nil, fmt.Errorf("decode channel payload: missing id")
	}
	if channel.Type == "" {
		channel.Type = ChannelTypeText
	}

	return &channel, nil
}

// DecodeInvite constructs an invite entity from a raw transport payload.
func DecodeInvite(raw json.RawMessage) (*Invite, error) {
	var invite Invite
	if err := json.Unmarshal(raw, &invite); err != nil {
		return nil, fmt.Errorf("decode invite payload: %w", err)
	}
	if invite.Code == "" {
		return nil, fmt.Errorf("decode invite payload: missing code")
	}

	return &invite, nil
}

var (
	_ Resolvable  = (*User)(nil)
	_ Resolvable  = (*Server)(nil)
	_ Resolvable  = (*Channel)(nil)
	_ InviteCoder = (*Invite)(nil)
)
