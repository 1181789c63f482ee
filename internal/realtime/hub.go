package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrAlreadySubscribed = errors.New("subscription already open for this table and filter")
	ErrHubClosed         = errors.New("realtime hub closed")
)

// Hub fans changes out to open subscriptions. Publish never blocks on a slow
// consumer; each subscription buffers its backlog and delivers in publish order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscription)}
}

func topic(table string, filter Filter) string {
	return table + "|" + filter.String()
}

// Subscribe opens the change feed for table, optionally narrowed by filter.
// Only one subscription per (table, filter) may be open at a time.
func (h *Hub) Subscribe(table string, filter Filter) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	key := topic(table, filter)
	if _, ok := h.subs[key]; ok {
		return nil, ErrAlreadySubscribed
	}

	sub := &Subscription{
		hub:    h,
		key:    key,
		table:  table,
		filter: filter,
		signal: make(chan struct{}, 1),
		out:    make(chan Change),
		done:   make(chan struct{}),
	}
	h.subs[key] = sub
	go sub.pump()

	slog.Debug("realtime subscription opened", "table", table, "filter", filter.String())
	return sub, nil
}

func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	for _, sub := range h.subs {
		if sub.table == c.Table && sub.filter.Match(c) {
			sub.enqueue(c)
		}
	}
	return nil
}

// Open returns the number of open subscriptions.
func (h *Hub) Open() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every open subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sub.key] == sub {
		delete(h.subs, sub.key)
	}
}

type Subscription struct {
	hub    *Hub
	key    string
	table  string
	filter Filter

	mu     sync.Mutex
	queue  []Change
	signal chan struct{}
	out    chan Change
	done   chan struct{}
	once   sync.Once
}

// C delivers matching changes in publish order. It is closed after Close.
func (s *Subscription) C() <-chan Change {
	return s.out
}

func (s *Subscription) Table() string {
	return s.table
}

func (s *Subscription) Filter() Filter {
	return s.filter
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.hub.remove(s)
	s.stop()
	return nil
}

func (s *Subscription) stop() {
	s.once.Do(func() {
		close(s.done)
		slog.Debug("realtime subscription closed", "table", s.table, "filter", s.filter.String())
	})
}

func (s *Subscription) enqueue(c Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			c := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- c:
			case <-s.done:
				return
			}
		}
	}
}
