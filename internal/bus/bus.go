// Package bus is the synchronous event bus every editor component talks through.
//
// Two kinds of registrations exist per event type:
//   - notifications: any number of handlers, invoked in registration order by Publish
//   - queries: exactly one provider, invoked by Request; the query value carries a reply
//     continuation the provider calls while handling it
//
// Dispatch is keyed by the dynamic type of the published value. The bus is not safe for
// concurrent use: everything runs on the editor loop goroutine, and nested Publish/Request
// calls from inside a handler complete before the outer call returns.
package bus

import (
	"errors"
	"fmt"
	"log"
	"reflect"
)

var (
	ErrProviderExists = errors.New("bus: query already has a provider")
	ErrKindConflict   = errors.New("bus: event type registered as both notification and query")
)

// NoProviderError is the panic value of Request when nobody answers a query type.
type NoProviderError struct {
	Type reflect.Type
}

func (e *NoProviderError) Error() string {
	return fmt.Sprintf("bus: no provider for query %v", e.Type)
}

type kind int

const (
	kindNotification kind = iota + 1
	kindQuery
)

type entry struct {
	id      uint64
	fn      func(any)
	removed bool
}

type Subscription struct {
	typ reflect.Type
	id  uint64
}

// Valid reports whether the subscription refers to a registration.
func (s Subscription) Valid() bool { return s.id != 0 }

type Bus struct {
	log *log.Logger

	kinds     map[reflect.Type]kind
	handlers  map[reflect.Type][]*entry
	providers map[reflect.Type]*entry
	nextID    uint64
}

// New creates an empty bus. logger may be nil.
func New(logger *log.Logger) *Bus {
	return &Bus{
		log:       logger,
		kinds:     make(map[reflect.Type]kind),
		handlers:  make(map[reflect.Type][]*entry),
		providers: make(map[reflect.Type]*entry),
	}
}

func typeOf[E any]() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}

func (b *Bus) claim(t reflect.Type, k kind) error {
	if cur, ok := b.kinds[t]; ok && cur != k {
		return fmt.Errorf("%w: %v", ErrKindConflict, t)
	}
	b.kinds[t] = k
	return nil
}

// Subscribe registers fn for every published E. It panics if E is already a query type.
func Subscribe[E any](b *Bus, fn func(E)) Subscription {
	t := typeOf[E]()
	if err := b.claim(t, kindNotification); err != nil {
		panic(err)
	}
	b.nextID++
	e := &entry{id: b.nextID, fn: func(v any) { fn(v.(E)) }}
	b.handlers[t] = append(b.handlers[t], e)
	return Subscription{typ: t, id: e.id}
}

// Provide registers fn as the only answerer of query type Q.
func Provide[Q any](b *Bus, fn func(Q)) (Subscription, error) {
	t := typeOf[Q]()
	if _, ok := b.providers[t]; ok {
		return Subscription{}, fmt.Errorf("%w: %v", ErrProviderExists, t)
	}
	if err := b.claim(t, kindQuery); err != nil {
		return Subscription{}, err
	}
	b.nextID++
	e := &entry{id: b.nextID, fn: func(v any) { fn(v.(Q)) }}
	b.providers[t] = e
	return Subscription{typ: t, id: e.id}, nil
}

// MustProvide is Provide for composition roots, where a duplicate provider is a wiring bug.
func MustProvide[Q any](b *Bus, fn func(Q)) Subscription {
	s, err := Provide(b, fn)
	if err != nil {
		panic(err)
	}
	return s
}

// Publish delivers ev to every handler registered for its exact type.
func (b *Bus) Publish(ev any) {
	t := reflect.TypeOf(ev)
	hs := b.handlers[t]
	if len(hs) == 0 {
		return
	}
	// Handlers may (un)subscribe while we dispatch; iterate a stable copy.
	snapshot := make([]*entry, len(hs))
	copy(snapshot, hs)
	for _, h := range snapshot {
		if h.removed {
			continue
		}
		h.fn(ev)
	}
}

// Request hands q to its provider. A query nobody provides is a programming error.
func (b *Bus) Request(q any) {
	t := reflect.TypeOf(q)
	p, ok := b.providers[t]
	if !ok {
		if b.log != nil {
			b.log.Printf("request without provider: %v", t)
		}
		panic(&NoProviderError{Type: t})
	}
	p.fn(q)
}

// Ask issues the query built around reply and returns what the provider answered.
// ok is false when the provider chose not to reply (e.g. no map is open).
func Ask[R any](b *Bus, build func(reply func(R)) any) (R, bool) {
	var (
		out     R
		replied bool
	)
	b.Request(build(func(r R) {
		out = r
		replied = true
	}))
	return out, replied
}

// Unsubscribe removes a registration. Unknown or already removed subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	if !s.Valid() {
		return
	}
	if p, ok := b.providers[s.typ]; ok && p.id == s.id {
		p.removed = true
		delete(b.providers, s.typ)
		delete(b.kinds, s.typ)
		return
	}
	hs := b.handlers[s.typ]
	for i, h := range hs {
		if h.id != s.id {
			continue
		}
		h.removed = true
		next := make([]*entry, 0, len(hs)-1)
		next = append(next, hs[:i]...)
		next = append(next, hs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, s.typ)
			delete(b.kinds, s.typ)
		} else {
			b.handlers[s.typ] = next
		}
		return
	}
}

// HandlerCount returns the number of notification handlers for E.
func HandlerCount[E any](b *Bus) int {
	return len(b.handlers[typeOf[E]()])
}

// HasProvider reports whether query type Q has a provider.
func HasProvider[Q any](b *Bus) bool {
	_, ok := b.providers[typeOf[Q]()]
	return ok
}

// Group collects subscriptions so a component can tear all of them down at once.
type Group struct {
	b    *Bus
	subs []Subscription
}

func NewGroup(b *Bus) *Group { return &Group{b: b} }

func (g *Group) Add(s Subscription) { g.subs = append(g.subs, s) }

func (g *Group) Close() {
	for i := len(g.subs) - 1; i >= 0; i-- {
		g.b.Unsubscribe(g.subs[i])
	}
	g.subs = nil
}
