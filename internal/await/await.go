// Package await implements one-shot wait conditions evaluated against the
// inbound event stream.
package await

import (
	"context"
	"fmt"

	"kagami/pkg/kagami"
)

// Callback runs when an await's condition is satisfied.
type Callback func(ctx context.Context, event *kagami.Event) error

// Await is one registered wait condition.
//
// The registration tuple is immutable; an await holds no state across Match
// calls and never removes itself. Its owning registry treats a fired result
// as the signal to deregister.
type Await struct {
	factory  *kagami.PredicateFactory
	key      any
	kind     kagami.EventKind
	attrs    kagami.Attributes
	callback Callback
}

// New creates an await registration.
//
// key is the opaque correlation value reported back when the await fires;
// callback may be nil.
func New(
	factory *kagami.PredicateFactory,
	key any,
	kind kagami.EventKind,
	attrs kagami.Attributes,
	callback Callback,
) (*Await, error) {
	if factory == nil {
		return nil, fmt.Errorf("new await: nil predicate factory")
	}
	if kind == "" {
		return nil, fmt.Errorf("new await: empty event kind")
	}

	return &Await{
		factory:  factory,
		key:      key,
		kind:     kind,
		attrs:    attrs,
		callback: callback,
	}, nil
}

// Key returns the opaque correlation key chosen at registration.
func (a *Await) Key() any {
	return a.key
}

// Kind returns the event kind tag this await evaluates.
func (a *Await) Kind() kagami.EventKind {
	return a.kind
}

// Match evaluates one inbound event against this await's condition.
//
// A fresh disposable predicate is built per call. When the event satisfies
// it, the stored callback runs (its failure propagates verbatim) and the
// correlation key is reported with fired=true. An unregistered kind is a
// configuration error and surfaces as a hard failure, never as a non-match.
func (a *Await) Match(ctx context.Context, event *kagami.Event) (key any, fired bool, err error) {
	predicate, err := a.factory.Build(a.kind, a.attrs)
	if err != nil {
		return nil, false, fmt.Errorf("await match: %w", err)
	}

	if !predicate.Matches(event) {
		return nil, false, nil
	}

	if a.callback != nil {
		if err := a.callback(ctx, event); err != nil {
			return nil, false, fmt.Errorf("await callback for key %v: %w", a.key, err)
		}
	}

	return a.key, true, nil
}
