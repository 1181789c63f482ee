package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
	"github.com/templui/campus/internal/repository"
)

// Subscriber opens realtime feeds; *gateway.Gateway satisfies it.
type Subscriber interface {
	Subscribe(table string, filter realtime.Filter) (*realtime.Subscription, error)
}

type StatsLoader func(ctx context.Context, userID string) (*model.Stats, error)

// StatsStore is the session-wide stats cache shared by every screen. It is
// created once, initialized at sign-in and disposed at sign-out. Every write
// goes through set, which notifies all listeners with the same value.
//
// The store follows the user's own downloads and attendances itself. Global
// tables are already followed by the session lists, which report through
// Changed or Watch.
type StatsStore struct {
	load       StatsLoader
	subscriber Subscriber
	kick       chan struct{}

	mu        sync.Mutex
	stats     model.Stats
	userID    string
	gen       uint64
	seq       uint64
	applied   uint64
	listeners map[int]func(model.Stats)
	nextID    int
	subs      []*realtime.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewStatsStore(load StatsLoader, subscriber Subscriber) *StatsStore {
	return &StatsStore{
		load:       load,
		subscriber: subscriber,
		kick:       make(chan struct{}, 1),
		listeners:  make(map[int]func(model.Stats)),
	}
}

// Init loads the user's stats and reloads them whenever a relevant row changes.
func (s *StatsStore) Init(ctx context.Context, userID string) error {
	s.closeFeeds()

	s.mu.Lock()
	s.userID = userID
	s.gen++
	s.mu.Unlock()

	err := s.Reload(ctx)
	if err != nil {
		return err
	}
	return s.bind(userID)
}

func (s *StatsStore) bind(userID string) error {
	topics := []struct {
		table  string
		filter realtime.Filter
	}{
		{repository.TableDownloads, realtime.Eq("user_id", userID)},
		{repository.TableEventAttendances, realtime.Eq("user_id", userID)},
	}

	var subs []*realtime.Subscription
	if s.subscriber != nil {
		for _, t := range topics {
			sub, err := s.subscriber.Subscribe(t.table, t.filter)
			if err != nil {
				for _, open := range subs {
					open.Close()
				}
				return err
			}
			subs = append(subs, sub)
		}
	}

	// a kick left over from the previous user is not ours
	select {
	case <-s.kick:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.subs = subs
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker(ctx)
	for _, sub := range subs {
		s.wg.Add(1)
		go s.follow(ctx, sub)
	}
	return nil
}

// worker runs one reload at a time. Changes that arrive while a reload is in
// flight collapse into a single follow-up reload.
func (s *StatsStore) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}
		err := s.Reload(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Warn("stats reload failed", "error", err)
		}
	}
}

func (s *StatsStore) follow(ctx context.Context, sub *realtime.Subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C():
			if !ok {
				return
			}
			s.Changed()
		}
	}
}

// Changed schedules a reload. It never blocks.
func (s *StatsStore) Changed() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Watch reloads the stats whenever l settles on new contents. The returned
// func stops watching.
func Watch[T Entity](s *StatsStore, l *List[T]) func() {
	return l.OnChange(func(snap Snapshot[T]) {
		if snap.State == Ready {
			s.Changed()
		}
	})
}

// Reload replaces the counters wholesale. A result that arrives after Reset,
// after a new Init, or after a result of a later reload is dropped.
func (s *StatsStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	userID, gen, seq := s.userID, s.gen, s.seq
	s.mu.Unlock()

	if userID == "" {
		return errors.New("stats store not initialized")
	}

	stats, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	s.set(gen, seq, *stats)
	return nil
}

func (s *StatsStore) set(gen, seq uint64, stats model.Stats) {
	s.mu.Lock()
	if gen != s.gen || seq < s.applied {
		s.mu.Unlock()
		return
	}
	s.applied = seq
	s.stats = stats
	listeners := make([]func(model.Stats), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(stats)
	}
}

func (s *StatsStore) Current() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Subscribe registers fn and returns its deregistration, which callers must
// invoke when they go away.
func (s *StatsStore) Subscribe(fn func(model.Stats)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Reset clears the counters and drops every listener.
func (s *StatsStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = model.Stats{}
	s.userID = ""
	s.gen++
	clear(s.listeners)
}

// Dispose resets the store and closes its realtime feeds.
func (s *StatsStore) Dispose() {
	s.Reset()
	s.closeFeeds()
}

func (s *StatsStore) closeFeeds() {
	s.mu.Lock()
	subs, cancel := s.subs, s.cancel
	s.subs, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		sub.Close()
	}
	s.wg.Wait()
}
