// Package discord adapts the platform gateway stream into neutral kagami events.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kagami/pkg/kagami"

	"github.com/coder/websocket"
)

// EventSink accepts decoded events for downstream dispatch.
type EventSink interface {
	// HandleEvent ingests and dispatches one inbound event.
	HandleEvent(ctx context.Context, event *kagami.Event) error
}

// FrameSource delivers raw gateway frames in arrival order.
type FrameSource interface {
	// ReadFrame blocks until the next frame arrives or the context is done.
	ReadFrame(ctx context.Context) (Frame, error)
	// Close releases the underlying connection.
	Close() error
}

// Driver consumes gateway frames, decodes them, and forwards events to a sink.
type Driver struct {
	source  FrameSource
	decoder *Decoder
	logger  *slog.Logger
}

// DriverOption mutates driver configuration.
type DriverOption func(*Driver)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(driver *Driver) {
		if logger != nil {
			driver.logger = logger
		}
	}
}

// NewDriver creates a gateway driver over one frame source.
func NewDriver(source FrameSource, options ...DriverOption) (*Driver, error) {
	if source == nil {
		return nil, fmt.Errorf("new discord driver: nil frame source")
	}

	driver := &Driver{
		source:  source,
		decoder: NewDecoder(),
		logger:  slog.Default(),
	}
	for _, option := range options {
		option(driver)
	}

	return driver, nil
}

// Start consumes frames until context cancellation or a fatal source error.
//
// Per-frame decode and sink failures are logged and do not stop consumption;
// only the source terminates the loop.
func (d *Driver) Start(ctx context.Context, sink EventSink) error {
	if sink == nil {
		return fmt.Errorf("start discord driver: nil sink")
	}

	for {
		frame, err := d.source.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}

			return fmt.Errorf("start discord driver: read frame: %w", err)
		}

		if err := d.handleFrame(ctx, frame, sink); err != nil {
			d.logger.WarnContext(ctx,
				"gateway frame handling failed",
				"frame_type", frame.Type,
				"error", err,
			)
		}
	}
}

// handleFrame decodes and dispatches one frame with panic containment.
func (d *Driver) handleFrame(ctx context.Context, frame Frame, sink EventSink) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("handle frame %s: panic recovered: %v", frame.Type, recovered)
	}()

	event, err := d.decoder.Decode(frame)
	if err != nil {
		return fmt.Errorf("handle frame %s: %w", frame.Type, err)
	}
	if event == nil {
		return nil
	}

	if err := sink.HandleEvent(ctx, event); err != nil {
		return fmt.Errorf("handle frame %s dispatch: %w", frame.Type, err)
	}

	return nil
}

// Shutdown closes the frame source.
func (d *Driver) Shutdown(_ context.Context) error {
	if err := d.source.Close(); err != nil {
		return fmt.Errorf("shutdown discord driver: %w", err)
	}

	return nil
}

// SocketSource reads gateway frames from a websocket connection.
type SocketSource struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialGateway connects to the platform gateway and identifies with the bot token.
func DialGateway(ctx context.Context, gatewayURL, token string) (*SocketSource, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("dial gateway: missing url")
	}
	if token == "" {
		return nil, fmt.Errorf("dial gateway: missing token")
	}

	conn, _, err := websocket.Dial(ctx, gatewayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", gatewayURL, err)
	}

	identify := map[string]any{
		"op": 2,
		"d":  map[string]any{"token": token},
	}
	payload, err := json.Marshal(identify)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "identify encode failed")
		return nil, fmt.Errorf("encode identify payload: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "identify write failed")
		return nil, fmt.Errorf("send identify payload: %w", err)
	}

	return &SocketSource{conn: conn}, nil
}

// ReadFrame reads and parses the next gateway frame.
func (s *SocketSource) ReadFrame(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return Frame{}, fmt.Errorf("read gateway frame: connection closed")
	}

	_, payload, err := conn.Read(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("read gateway frame: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Frame{}, fmt.Errorf("parse gateway frame: %w", err)
	}

	return frame, nil
}

// Close closes the websocket connection.
func (s *SocketSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil

	if err := conn.Close(websocket.StatusNormalClosure, "shutdown"); err != nil {
		return fmt.Errorf("close gateway connection: %w", err)
	}

	return nil
}

var _ FrameSource = (*SocketSource)(nil)
