package cache

import (
	"context"
	"slices"
	"time"
)

type MutationKind int

const (
	MutationCreate MutationKind = iota
	MutationUpdate
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	default:
		return "create"
	}
}

// MutationState moves pending → confirmed | failed exactly once.
type MutationState int

const (
	Pending MutationState = iota
	Confirmed
	Failed
)

func (s MutationState) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

type Mutation struct {
	ID        int64
	Kind      MutationKind
	Key       string // empty for a create until it is confirmed
	State     MutationState
	Err       error
	StartedAt time.Time
	SettledAt time.Time
}

// Mutations returns the recent mutation history, oldest first.
func (l *List[T]) Mutations() []Mutation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.muts)
}

// Create runs call and, once it succeeds, puts the returned entity at the head
// of the list, or replaces it if a remote insert already delivered it.
func (l *List[T]) Create(ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	return l.mutate(ctx, MutationCreate, "", call)
}

// Update runs call and replaces the entry in place once it succeeds.
func (l *List[T]) Update(ctx context.Context, key string, call func(context.Context) (T, error)) (T, error) {
	return l.mutate(ctx, MutationUpdate, key, call)
}

// Delete runs call and removes the entry once it succeeds.
func (l *List[T]) Delete(ctx context.Context, key string, call func(context.Context) error) error {
	_, err := l.mutate(ctx, MutationDelete, key, func(ctx context.Context) (T, error) {
		var zero T
		return zero, call(ctx)
	})
	return err
}

// mutate never changes local state before the remote call returns. The
// outcome goes through the inbox, so it is ordered against realtime changes
// for the same id.
func (l *List[T]) mutate(ctx context.Context, kind MutationKind, key string, call func(context.Context) (T, error)) (T, error) {
	var zero T

	id := l.seq.Add(1)
	err := l.send(ctx, beginMsg{m: Mutation{ID: id, Kind: kind, Key: key, State: Pending, StartedAt: time.Now()}})
	if err != nil {
		return zero, err
	}

	value, callErr := call(ctx)

	ack := make(chan struct{})
	select {
	case l.inbox <- settleMsg[T]{id: id, kind: kind, key: key, value: value, err: callErr, ack: ack}:
	case <-l.done:
		// torn down while the call was in flight
		return value, callErr
	}

	select {
	case <-ack:
	case <-l.done:
	}
	return value, callErr
}

func (l *List[T]) applySettle(m settleMsg[T]) {
	l.version++

	i := slices.IndexFunc(l.mutations, func(mut Mutation) bool { return mut.ID == m.id })
	if i >= 0 {
		mut := &l.mutations[i]
		mut.SettledAt = time.Now()
		if m.err != nil {
			mut.State = Failed
			mut.Err = m.err
		} else {
			mut.State = Confirmed
			if mut.Kind == MutationCreate {
				mut.Key = m.value.Key()
			}
		}
	}
	if m.err != nil {
		return
	}

	apply := func() { l.applyConfirmed(m.kind, m.key, m.value) }
	apply()
	if l.state == Loading {
		l.replay = append(l.replay, apply)
	}
}

func (l *List[T]) applyConfirmed(kind MutationKind, key string, value T) {
	switch kind {
	case MutationCreate:
		if idx := l.index(value.Key()); idx >= 0 {
			l.items[idx] = value
			return
		}
		l.items = slices.Insert(l.items, 0, value)
	case MutationUpdate:
		if idx := l.index(key); idx >= 0 {
			l.items[idx] = value
		}
	case MutationDelete:
		if idx := l.index(key); idx >= 0 {
			l.items = slices.Delete(l.items, idx, idx+1)
		}
	}
}
