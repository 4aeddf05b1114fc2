package discord

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"kagami/pkg/kagami"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedSource replays a fixed frame sequence, then blocks until cancellation.
type scriptedSource struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (s *scriptedSource) ReadFrame(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if len(s.frames) > 0 {
		next := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return next, nil
	}
	s.mu.Unlock()

	<-ctx.Done()
	return Frame{}, ctx.Err()
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	return nil
}

// collectSink records every dispatched event.
type collectSink struct {
	mu     sync.Mutex
	events []*kagami.Event
	err    error
}

func (c *collectSink) HandleEvent(_ context.Context, event *kagami.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)

	return c.err
}

func (c *collectSink) kinds() []kagami.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()

	kinds := make([]kagami.EventKind, 0, len(c.events))
	for _, event := range c.events {
		kinds = append(kinds, event.Kind)
	}

	return kinds
}

func TestDriverStartDispatchesDecodedFrames(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{frames: []Frame{
		{
			Op:   opDispatch,
			Type: frameTypeMessageCreate,
			Data: json.RawMessage(`{"id":"1","channel_id":"100","content":"hi","author":{"id":"9"}}`),
		},
		{Op: 10, Type: ""},
		{
			Op:   opDispatch,
			Type: frameTypeReactionAdd,
			Data: json.RawMessage(`{"message_id":"1","channel_id":"100","emoji":{"name":"x"}}`),
		},
	}}
	sink := &collectSink{}

	driver, err := NewDriver(source)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- driver.Start(ctx, sink)
	}()

	waitFor(t, func() bool { return len(sink.kinds()) == 2 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v, want nil on cancellation", err)
	}

	kinds := sink.kinds()
	if kinds[0] != kagami.EventKindMessageCreated || kinds[1] != kagami.EventKindReactionAdded {
		t.Fatalf("dispatched kinds = %v", kinds)
	}
}

func TestDriverStartSurvivesFrameFailures(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{frames: []Frame{
		{Op: opDispatch, Type: frameTypeMessageCreate, Data: json.RawMessage(`{"bad":`)},
		{
			Op:   opDispatch,
			Type: frameTypeMessageCreate,
			Data: json.RawMessage(`{"id":"1","channel_id":"100","content":"hi","author":{"id":"9"}}`),
		},
	}}
	sink := &collectSink{}

	driver, err := NewDriver(source)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- driver.Start(ctx, sink)
	}()

	waitFor(t, func() bool { return len(sink.kinds()) == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v, want nil", err)
	}
}

func TestDriverStartFatalSourceError(t *testing.T) {
	t.Parallel()

	fatal := errors.New("socket torn down")
	source := &failingSource{err: fatal}

	driver, err := NewDriver(source)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	if err := driver.Start(context.Background(), &collectSink{}); !errors.Is(err, fatal) {
		t.Fatalf("Start error = %v, want wrapped source error", err)
	}
}

func TestDriverShutdownClosesSource(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{}
	driver, err := NewDriver(source)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	if err := driver.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if !source.closed {
		t.Fatal("source should be closed after Shutdown")
	}
}

type failingSource struct {
	err error
}

func (f *failingSource) ReadFrame(context.Context) (Frame, error) {
	return Frame{}, f.err
}

func (f *failingSource) Close() error {
	return nil
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
