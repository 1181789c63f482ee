package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
	"github.com/templui/campus/internal/repository"
)

type countingLoader struct {
	calls atomic.Int32
	mu    sync.Mutex
	next  model.Stats
	gate  chan struct{}
}

func (c *countingLoader) set(s model.Stats) {
	c.mu.Lock()
	c.next = s
	c.mu.Unlock()
}

func (c *countingLoader) load(ctx context.Context, userID string) (*model.Stats, error) {
	c.calls.Add(1)
	c.mu.Lock()
	gate := c.gate
	s := c.next
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if userID == "" {
		return nil, errors.New("no user")
	}
	s.Loaded = true
	return &s, nil
}

func publish(t *testing.T, hub *realtime.Hub, table, id string, row any) {
	t.Helper()
	c, err := realtime.NewChange(table, realtime.Insert, id, row, nil)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), c))
}

func TestStatsStoreFollowsUserChanges(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	loader := &countingLoader{next: model.Stats{PostsCreated: 1}}
	store := NewStatsStore(loader.load, hub)
	defer store.Dispose()

	require.NoError(t, store.Init(context.Background(), "U"))
	assert.Equal(t, 1, store.Current().PostsCreated)
	assert.True(t, store.Current().Loaded)

	got := make(chan model.Stats, 8)
	off := store.Subscribe(func(s model.Stats) { got <- s })
	defer off()

	loader.set(model.Stats{PostsCreated: 1, FilesDownloaded: 1})
	publish(t, hub, repository.TableDownloads, "d1", map[string]string{"id": "d1", "user_id": "U"})

	eventually(t, func() bool { return store.Current().FilesDownloaded == 1 }, "reloaded after download")
	s := <-got
	assert.Equal(t, 1, s.FilesDownloaded)
}

func TestStatsStoreIgnoresOtherUsersRows(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	loader := &countingLoader{}
	store := NewStatsStore(loader.load, hub)
	defer store.Dispose()

	require.NoError(t, store.Init(context.Background(), "U"))
	before := loader.calls.Load()

	publish(t, hub, repository.TableDownloads, "d1", map[string]string{"id": "d1", "user_id": "someone-else"})
	publish(t, hub, repository.TableEventAttendances, "a1", map[string]string{"id": "a1", "user_id": "someone-else"})
	// the user's own row marks the end of the stream
	publish(t, hub, repository.TableDownloads, "d2", map[string]string{"id": "d2", "user_id": "U"})

	eventually(t, func() bool { return loader.calls.Load() == before+1 }, "own download reloads")
	assert.Equal(t, before+1, loader.calls.Load())
}

func TestStatsStoreLeavesGlobalTablesToLists(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	loader := &countingLoader{}
	store := NewStatsStore(loader.load, hub)
	defer store.Dispose()

	require.NoError(t, store.Init(context.Background(), "U"))

	// the session lists own these feeds
	posts, err := hub.Subscribe(repository.TablePosts, realtime.Filter{})
	require.NoError(t, err)
	defer posts.Close()
	files, err := hub.Subscribe(repository.TableFiles, realtime.Filter{})
	require.NoError(t, err)
	defer files.Close()

	feed := newFakeFeed()
	list := NewList(Options[item]{Name: "posts", Load: staticLoad[item](), Feed: feed})
	defer list.Close()
	stop := Watch(store, list)
	defer stop()

	before := loader.calls.Load()
	require.NoError(t, list.Refresh(context.Background()))
	eventually(t, func() bool { return loader.calls.Load() > before }, "list change reloads stats")
}

func TestStatsStoreCoalescesReloads(t *testing.T) {
	loader := &countingLoader{}
	store := NewStatsStore(loader.load, nil)
	defer store.Dispose()
	require.NoError(t, store.Init(context.Background(), "U"))

	gate := make(chan struct{})
	loader.mu.Lock()
	loader.gate = gate
	loader.mu.Unlock()

	store.Changed()
	eventually(t, func() bool { return loader.calls.Load() == 2 }, "first reload in flight")
	for range 10 {
		store.Changed()
	}
	loader.set(model.Stats{TotalPosts: 3})
	close(gate)

	eventually(t, func() bool { return store.Current().TotalPosts == 3 }, "follow-up reload applied")
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestStatsStoreDropsStaleResults(t *testing.T) {
	var slow atomic.Bool
	release := make(chan struct{})
	var n atomic.Int32
	load := func(ctx context.Context, userID string) (*model.Stats, error) {
		v := int(n.Add(1))
		if slow.Load() && v == 2 {
			<-release
		}
		return &model.Stats{TotalPosts: v, Loaded: true}, nil
	}
	store := NewStatsStore(load, nil)
	defer store.Dispose()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx, "U"))

	slow.Store(true)
	older := make(chan error, 1)
	go func() { older <- store.Reload(ctx) }()
	eventually(t, func() bool { return n.Load() == 2 }, "older reload in flight")

	require.NoError(t, store.Reload(ctx))
	assert.Equal(t, 3, store.Current().TotalPosts)

	close(release)
	require.NoError(t, <-older)
	assert.Equal(t, 3, store.Current().TotalPosts, "older count does not overwrite newer")
}

func TestStatsStoreResetDropsListenersAndLateLoads(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	loader := &countingLoader{next: model.Stats{TotalPosts: 5}}
	store := NewStatsStore(loader.load, hub)

	ctx := context.Background()
	require.NoError(t, store.Init(ctx, "U"))

	var calls atomic.Int32
	store.Subscribe(func(model.Stats) { calls.Add(1) })

	gate := make(chan struct{})
	loader.mu.Lock()
	loader.gate = gate
	loader.mu.Unlock()

	reloaded := make(chan error, 1)
	go func() { reloaded <- store.Reload(ctx) }()
	eventually(t, func() bool { return loader.calls.Load() == 2 }, "reload in flight")

	store.Reset()
	assert.Equal(t, model.Stats{}, store.Current())

	close(gate)
	require.NoError(t, <-reloaded)
	assert.Equal(t, model.Stats{}, store.Current(), "late result dropped")
	assert.Equal(t, int32(0), calls.Load())

	store.Dispose()
	assert.Zero(t, hub.Open())
	assert.Error(t, store.Reload(ctx))
}

func TestStatsStoreDeregistration(t *testing.T) {
	loader := &countingLoader{}
	store := NewStatsStore(loader.load, nil)
	defer store.Dispose()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx, "U"))

	var a, b atomic.Int32
	offA := store.Subscribe(func(model.Stats) { a.Add(1) })
	store.Subscribe(func(model.Stats) { b.Add(1) })

	require.NoError(t, store.Reload(ctx))
	offA()
	offA()
	require.NoError(t, store.Reload(ctx))

	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(2), b.Load())
}
