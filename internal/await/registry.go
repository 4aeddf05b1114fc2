package await

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"kagami/pkg/kagami"
)

// Registry holds live awaits and drives their evaluation on every inbound event.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	awaits []*Await
}

// RegistryOption mutates registry configuration.
type RegistryOption func(*Registry)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(registry *Registry) {
		if logger != nil {
			registry.logger = logger
		}
	}
}

// NewRegistry creates an empty await registry.
func NewRegistry(options ...RegistryOption) *Registry {
	registry := &Registry{
		logger: slog.Default(),
	}
	for _, option := range options {
		option(registry)
	}

	return registry
}

// Add registers one await. Registration order is evaluation order.
func (r *Registry) Add(entry *Await) error {
	if entry == nil {
		return fmt.Errorf("add await: nil await")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.awaits = append(r.awaits, entry)

	return nil
}

// Len reports how many awaits are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.awaits)
}

// Dispatch evaluates every live await against one event in registration order.
//
// Each await that fires is deregistered and its correlation key collected;
// multiple awaits may fire on the same event. A matcher failure aborts the
// dispatch and surfaces to the caller; the failing await stays registered.
func (r *Registry) Dispatch(ctx context.Context, event *kagami.Event) ([]any, error) {
	r.mu.Lock()
	pending := make([]*Await, len(r.awaits))
	copy(pending, r.awaits)
	r.mu.Unlock()

	var firedKeys []any
	fired := make(map[*Await]struct{})
	for _, entry := range pending {
		key, matched, err := entry.Match(ctx, event)
		if err != nil {
			r.removeFired(fired)
			return firedKeys, fmt.Errorf("dispatch event %s: %w", event.Kind, err)
		}
		if !matched {
			continue
		}
		firedKeys = append(firedKeys, key)
		fired[entry] = struct{}{}
		r.logger.DebugContext(ctx,
			"await fired",
			"event_kind", string(event.Kind),
			"key", key,
		)
	}

	r.removeFired(fired)

	return firedKeys, nil
}

// removeFired deregisters every await that reported a firing.
func (r *Registry) removeFired(fired map[*Await]struct{}) {
	if len(fired) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := r.awaits[:0]
	for _, entry := range r.awaits {
		if _, done := fired[entry]; done {
			continue
		}
		remaining = append(remaining, entry)
	}
	r.awaits = remaining
}
