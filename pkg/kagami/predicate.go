package kagami

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Predicate tests one event against conditions fixed at construction time.
//
// Predicates are disposable: a fresh instance is built for every evaluation
// and must hold no state that outlives a single Matches call.
type Predicate interface {
	// Matches reports whether the event satisfies the configured conditions.
	Matches(event *Event) bool
}

// PredicateFunc adapts a plain function to the Predicate contract.
type PredicateFunc func(event *Event) bool

// Matches calls the underlying function.
func (f PredicateFunc) Matches(event *Event) bool {
	return f(event)
}

// Attributes is the opaque condition bag interpreted by a predicate constructor.
type Attributes map[string]any

// ID returns an identifier attribute coerced through ResolveID.
//
// Absent keys report found=false with no error; present keys that cannot be
// coerced fail with ErrUnresolvableID.
func (a Attributes) ID(key string) (Snowflake, bool, error) {
	value, exists := a[key]
	if !exists {
		return 0, false, nil
	}

	id, err := ResolveID(value)
	if err != nil {
		return 0, false, fmt.Errorf("attribute %s: %w", key, err)
	}

	return id, true, nil
}

// String returns a string attribute. Absent keys report found=false.
func (a Attributes) String(key string) (string, bool, error) {
	value, exists := a[key]
	if !exists {
		return "", false, nil
	}

	text, ok := value.(string)
	if !ok {
		return "", false, fmt.Errorf("attribute %s: expected string, got %T", key, value)
	}

	return text, true, nil
}

// PredicateConstructor builds a disposable predicate from one attribute bag.
type PredicateConstructor func(attrs Attributes) (Predicate, error)

// PredicateFactory maps event kinds to predicate constructors.
//
// Registration happens during process bootstrap; lookups are concurrency-safe.
type PredicateFactory struct {
	mu           sync.RWMutex
	constructors map[EventKind]PredicateConstructor
}

// NewPredicateFactory creates an empty predicate factory.
func NewPredicateFactory() *PredicateFactory {
	return &PredicateFactory{
		constructors: make(map[EventKind]PredicateConstructor),
	}
}

// Register binds a constructor to an event kind, replacing any previous binding.
func (f *PredicateFactory) Register(kind EventKind, constructor PredicateConstructor) error {
	if kind == "" {
		return fmt.Errorf("register predicate constructor: empty kind")
	}
	if constructor == nil {
		return fmt.Errorf("register predicate constructor %s: nil constructor", kind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = constructor

	return nil
}

// Build constructs a fresh predicate for one evaluation.
//
// An unregistered kind is a registration mistake, not a runtime miss, and
// fails with ErrUnknownPredicateKind.
func (f *PredicateFactory) Build(kind EventKind, attrs Attributes) (Predicate, error) {
	f.mu.RLock()
	constructor, exists := f.constructors[kind]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("build predicate %s (known: %s): %w", kind, f.knownKinds(), ErrUnknownPredicateKind)
	}

	predicate, err := constructor(attrs)
	if err != nil {
		return nil, fmt.Errorf("build predicate %s: %w", kind, err)
	}

	return predicate, nil
}

// knownKinds renders registered kinds for error messages.
func (f *PredicateFactory) knownKinds() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]string, 0, len(f.constructors))
	for kind := range f.constructors {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	return strings.Join(kinds, ", ")
}

var _ Predicate = (PredicateFunc)(nil)
