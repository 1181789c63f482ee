// Package cache holds the client-side view of remote collections. Each List
// is owned by one reducer goroutine that applies loads, realtime changes and
// confirmed mutations in the order they arrive on a single inbox.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/templui/campus/internal/realtime"
)

var ErrClosed = errors.New("cache closed")

// Entity is anything with a stable identity.
type Entity interface {
	Key() string
}

type State int

const (
	Idle State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// InsertPolicy decides what a remote INSERT of an unknown id does.
type InsertPolicy int

const (
	// InsertReload reloads the whole collection, for rows that need joined
	// fields the change payload does not carry.
	InsertReload InsertPolicy = iota
	// InsertShadow prepends the row decoded from the payload.
	InsertShadow
)

// Feed is a realtime change stream; *realtime.Subscription satisfies it.
type Feed interface {
	C() <-chan realtime.Change
	Close() error
}

type Options[T Entity] struct {
	Name   string
	Load   func(ctx context.Context) ([]T, error)
	Feed   Feed // optional
	Insert InsertPolicy
	// History bounds the number of mutations kept; defaults to 50.
	History int
}

// Snapshot is an immutable view handed to readers and listeners.
type Snapshot[T Entity] struct {
	State State
	Items []T
	Err   error
}

type List[T Entity] struct {
	name    string
	load    func(ctx context.Context) ([]T, error)
	feed    Feed
	insert  InsertPolicy
	history int

	inbox   chan any
	done    chan struct{}
	stopped chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	close   sync.Once
	seq     atomic.Int64

	// reducer-owned
	state      State
	items      []T
	err        error
	gen        uint64
	waiters    []chan error
	replay     []func()
	needReload bool
	mutations  []Mutation
	version    uint64
	published  uint64
	acks       []func()

	mu        sync.RWMutex
	snap      Snapshot[T]
	muts      []Mutation
	listeners map[int]func(Snapshot[T])
	nextID    int
}

type reloadMsg struct {
	ack chan error
}

type loadResult[T Entity] struct {
	gen   uint64
	items []T
	err   error
}

type changeMsg struct {
	change realtime.Change
}

type beginMsg struct {
	m Mutation
}

type settleMsg[T Entity] struct {
	id    int64
	kind  MutationKind
	key   string
	value T
	err   error
	ack   chan struct{}
}

// NewList starts the reducer. The list stays Idle until the first Refresh.
func NewList[T Entity](opts Options[T]) *List[T] {
	ctx, cancel := context.WithCancel(context.Background())
	l := &List[T]{
		name:      opts.Name,
		load:      opts.Load,
		feed:      opts.Feed,
		insert:    opts.Insert,
		history:   opts.History,
		inbox:     make(chan any, 64),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]func(Snapshot[T])),
	}
	if l.history <= 0 {
		l.history = 50
	}

	go l.run()
	if l.feed != nil {
		go l.forward()
	}
	return l
}

func (l *List[T]) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case m := <-l.inbox:
			l.handle(m)
		}
	}
}

// forward moves realtime changes into the inbox so they are ordered with
// everything else the reducer sees.
func (l *List[T]) forward() {
	for {
		select {
		case <-l.done:
			return
		case c, ok := <-l.feed.C():
			if !ok {
				return
			}
			select {
			case l.inbox <- changeMsg{change: c}:
			case <-l.done:
				return
			}
		}
	}
}

func (l *List[T]) send(ctx context.Context, m any) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *List[T]) handle(m any) {
	switch m := m.(type) {
	case reloadMsg:
		l.waiters = append(l.waiters, m.ack)
		if l.state != Loading {
			l.startLoad()
		}
	case loadResult[T]:
		l.applyLoad(m)
	case changeMsg:
		l.applyChange(m.change)
		if l.state == Loading {
			c := m.change
			l.replay = append(l.replay, func() { l.applyChange(c) })
		}
	case beginMsg:
		l.version++
		l.mutations = append(l.mutations, m.m)
		if len(l.mutations) > l.history {
			l.mutations = slices.Delete(l.mutations, 0, len(l.mutations)-l.history)
		}
	case settleMsg[T]:
		l.applySettle(m)
		l.acks = append(l.acks, func() { close(m.ack) })
	}
	l.publish()

	// callers resume only once their result is visible
	for _, ack := range l.acks {
		ack()
	}
	l.acks = l.acks[:0]
}

func (l *List[T]) startLoad() {
	l.gen++
	l.version++
	gen := l.gen
	l.state = Loading
	l.replay = nil
	l.needReload = false

	go func() {
		items, err := l.load(l.ctx)
		select {
		case l.inbox <- loadResult[T]{gen: gen, items: items, err: err}:
		case <-l.done:
		}
	}()
}

func (l *List[T]) applyLoad(r loadResult[T]) {
	if r.gen != l.gen {
		return
	}
	l.version++

	if r.err != nil {
		// keep the last good collection
		l.state = Error
		l.err = r.err
		slog.Warn("cache load failed", "cache", l.name, "error", r.err)
	} else {
		l.items = slices.Clone(r.items)
		l.state = Ready
		l.err = nil
		for _, fn := range l.replay {
			fn()
		}
	}
	l.replay = nil

	for _, ack := range l.waiters {
		l.acks = append(l.acks, func() { ack <- r.err })
	}
	l.waiters = nil

	if l.needReload && r.err == nil {
		l.startLoad()
	}
}

func (l *List[T]) index(key string) int {
	return slices.IndexFunc(l.items, func(item T) bool { return item.Key() == key })
}

func (l *List[T]) reload() {
	if l.state == Loading {
		l.needReload = true
		return
	}
	l.startLoad()
}

// applyChange merges one remote change by id.
func (l *List[T]) applyChange(c realtime.Change) {
	idx := l.index(c.ID)

	switch c.Type {
	case realtime.Insert:
		if idx >= 0 {
			return
		}
		if l.insert == InsertReload || c.Truncated || len(c.New) == 0 {
			l.reload()
			return
		}
		var item T
		if err := json.Unmarshal(c.New, &item); err != nil {
			slog.Warn("undecodable insert, reloading", "cache", l.name, "id", c.ID, "error", err)
			l.reload()
			return
		}
		l.items = slices.Insert(l.items, 0, item)
		l.version++

	case realtime.Update:
		if idx < 0 {
			return
		}
		if c.Truncated || len(c.New) == 0 {
			l.reload()
			return
		}
		// shallow merge: fields absent from the payload keep their value
		merged := l.items[idx]
		if err := json.Unmarshal(c.New, &merged); err != nil {
			slog.Warn("undecodable update, reloading", "cache", l.name, "id", c.ID, "error", err)
			l.reload()
			return
		}
		l.items[idx] = merged
		l.version++

	case realtime.Delete:
		if idx < 0 {
			return
		}
		l.items = slices.Delete(l.items, idx, idx+1)
		l.version++
	}
}

func (l *List[T]) publish() {
	if l.version == l.published {
		return
	}
	l.published = l.version

	snap := Snapshot[T]{State: l.state, Items: slices.Clone(l.items), Err: l.err}

	l.mu.Lock()
	l.snap = snap
	l.muts = slices.Clone(l.mutations)
	listeners := make([]func(Snapshot[T]), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// Snapshot returns the current view.
func (l *List[T]) Snapshot() Snapshot[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := l.snap
	snap.Items = slices.Clone(snap.Items)
	return snap
}

func (l *List[T]) Items() []T {
	return l.Snapshot().Items
}

func (l *List[T]) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap.State
}

// OnChange registers fn for every applied change and returns its
// deregistration. fn runs on the reducer goroutine and must not call the
// list's blocking methods.
func (l *List[T]) OnChange(fn func(Snapshot[T])) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners, id)
			l.mu.Unlock()
		})
	}
}

// Refresh reloads the collection and waits for the result to be applied.
// Concurrent refreshes share one load.
func (l *List[T]) Refresh(ctx context.Context) error {
	ack := make(chan error, 1)
	if err := l.send(ctx, reloadMsg{ack: ack}); err != nil {
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the reducer and the feed. Results that arrive later are dropped.
func (l *List[T]) Close() error {
	var err error
	l.close.Do(func() {
		close(l.done)
		l.cancel()
		<-l.stopped
		if l.feed != nil {
			err = l.feed.Close()
		}
		l.mu.Lock()
		clear(l.listeners)
		l.mu.Unlock()
	})
	return err
}
