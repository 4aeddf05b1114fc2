package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"kagami/internal/await"
	"kagami/pkg/kagami"
)

// stubTransport serves minimal canned payloads.
type stubTransport struct{}

func (stubTransport) FetchChannel(_ context.Context, channelID kagami.Snowflake) (json.RawMessage, error) {
	return []byte(fmt.Sprintf(`{"id":"%s","name":"fetched"}`, channelID)), nil
}

func (stubTransport) CreatePrivateChannel(_ context.Context, _, peerID kagami.Snowflake) (json.RawMessage, error) {
	return []byte(fmt.Sprintf(`{"id":"9%s","type":"private"}`, peerID)), nil
}

func (stubTransport) ResolveInvite(_ context.Context, code string) (json.RawMessage, error) {
	return []byte(fmt.Sprintf(`{"code":%q}`, code)), nil
}

func newTestSession(t *testing.T) *Session {
	t.Helper()

	factory, err := await.DefaultPredicateFactory()
	if err != nil {
		t.Fatalf("DefaultPredicateFactory failed: %v", err)
	}
	botSession, err := New(stubTransport{}, factory, 1)
	if err != nil {
		t.Fatalf("New session failed: %v", err)
	}

	return botSession
}

func newMessageEvent(id string, content string) *kagami.Event {
	return &kagami.Event{
		ID:   id,
		Kind: kagami.EventKindMessageCreated,
		Message: &kagami.Message{
			ID:        1,
			ChannelID: 100,
			AuthorID:  9,
			Content:   content,
		},
		Actor: &kagami.User{ID: 9, Username: "alice"},
	}
}

func TestSessionWaitForAndHandleEvent(t *testing.T) {
	t.Parallel()

	botSession := newTestSession(t)

	var firedContent string
	entry, err := botSession.WaitFor(
		kagami.EventKindMessageCreated,
		kagami.Attributes{await.AttrContent: "confirm"},
		WithKey("confirmation"),
		WithCallback(func(_ context.Context, event *kagami.Event) error {
			firedContent = event.Message.Content
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("WaitFor failed: %v", err)
	}
	if entry.Key() != "confirmation" {
		t.Fatalf("key = %v", entry.Key())
	}
	if botSession.PendingAwaits() != 1 {
		t.Fatalf("pending awaits = %d, want 1", botSession.PendingAwaits())
	}

	if err := botSession.HandleEvent(context.Background(), newMessageEvent("evt-1", "unrelated")); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if botSession.PendingAwaits() != 1 {
		t.Fatal("non-matching event must not deregister the await")
	}

	if err := botSession.HandleEvent(context.Background(), newMessageEvent("evt-2", "confirm")); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if firedContent != "confirm" {
		t.Fatalf("callback saw content %q", firedContent)
	}
	if botSession.PendingAwaits() != 0 {
		t.Fatal("fired await should be deregistered")
	}
}

func TestSessionWaitForGeneratesKey(t *testing.T) {
	t.Parallel()

	botSession := newTestSession(t)

	entry, err := botSession.WaitFor(kagami.EventKindMessageCreated, nil)
	if err != nil {
		t.Fatalf("WaitFor failed: %v", err)
	}
	key, ok := entry.Key().(string)
	if !ok || key == "" {
		t.Fatalf("generated key = %v, want non-empty string", entry.Key())
	}
}

func TestSessionHandleEventIngestsEntities(t *testing.T) {
	t.Parallel()

	botSession := newTestSession(t)

	if err := botSession.HandleEvent(context.Background(), newMessageEvent("evt-1", "hello")); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	user, found := botSession.User(kagami.Snowflake(9))
	if !found || user.Username != "alice" {
		t.Fatalf("actor should be cached, got %v %v", user, found)
	}
	if users := botSession.FindUser("alice"); len(users) != 1 {
		t.Fatalf("FindUser(alice) = %v", users)
	}
}

func TestSessionHandleEventRejectsInvalid(t *testing.T) {
	t.Parallel()

	botSession := newTestSession(t)

	err := botSession.HandleEvent(context.Background(), &kagami.Event{ID: "evt-1", Kind: kagami.EventKindMessageCreated})
	if !errors.Is(err, kagami.ErrInvalidEvent) {
		t.Fatalf("error = %v, want ErrInvalidEvent", err)
	}
}

func TestSessionCacheAccessors(t *testing.T) {
	t.Parallel()

	botSession := newTestSession(t)

	channel, err := botSession.Channel(context.Background(), kagami.Snowflake(100))
	if err != nil {
		t.Fatalf("Channel failed: %v", err)
	}
	if channel.ID != 100 {
		t.Fatalf("channel id = %s", channel.ID)
	}

	private, err := botSession.PrivateChannel(context.Background(), kagami.Snowflake(7))
	if err != nil {
		t.Fatalf("PrivateChannel failed: %v", err)
	}
	if !private.IsPrivate() {
		t.Fatal("expected private channel")
	}

	invite, err := botSession.Invite(context.Background(), "discord.gg/abc123")
	if err != nil {
		t.Fatalf("Invite failed: %v", err)
	}
	if invite.Code != "abc123" {
		t.Fatalf("invite code = %q", invite.Code)
	}
}
