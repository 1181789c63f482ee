package realtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
	Title    string `json:"title"`
}

func mustChange(t *testing.T, typ EventType, r row) Change {
	t.Helper()
	var c Change
	var err error
	if typ == Delete {
		c, err = NewChange("posts", typ, r.ID, nil, r)
	} else {
		c, err = NewChange("posts", typ, r.ID, r, nil)
	}
	require.NoError(t, err)
	return c
}

func receive(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case c, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestHubDeliversInPublishOrder(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub, err := hub.Subscribe("posts", Filter{})
	require.NoError(t, err)
	defer sub.Close()

	ctx := context.Background()
	for i, title := range []string{"a", "b", "c", "d"} {
		c := mustChange(t, Update, row{ID: "p1", Title: title})
		c.CommitTime = c.CommitTime.Add(time.Duration(i))
		require.NoError(t, hub.Publish(ctx, c))
	}

	var got []string
	for range 4 {
		c := receive(t, sub)
		assert.Contains(t, string(c.New), `"id":"p1"`)
		got = append(got, string(c.New))
	}
	for i, title := range []string{"a", "b", "c", "d"} {
		assert.Contains(t, got[i], `"title":"`+title+`"`)
	}
}

func TestHubFiltersByColumn(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	mine, err := hub.Subscribe("posts", Eq("author_id", "u1"))
	require.NoError(t, err)
	defer mine.Close()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, mustChange(t, Insert, row{ID: "p1", AuthorID: "u2"})))
	require.NoError(t, hub.Publish(ctx, mustChange(t, Insert, row{ID: "p2", AuthorID: "u1"})))
	require.NoError(t, hub.Publish(ctx, mustChange(t, Delete, row{ID: "p2", AuthorID: "u1"})))

	first := receive(t, mine)
	assert.Equal(t, "p2", first.ID)
	assert.Equal(t, Insert, first.Type)

	second := receive(t, mine)
	assert.Equal(t, "p2", second.ID)
	assert.Equal(t, Delete, second.Type)
}

func TestHubIgnoresOtherTables(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	files, err := hub.Subscribe("files", Filter{})
	require.NoError(t, err)
	defer files.Close()

	require.NoError(t, hub.Publish(context.Background(), mustChange(t, Insert, row{ID: "p1"})))

	select {
	case c := <-files.C():
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubOneSubscriptionPerTopic(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub, err := hub.Subscribe("posts", Eq("author_id", "u1"))
	require.NoError(t, err)

	_, err = hub.Subscribe("posts", Eq("author_id", "u1"))
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	other, err := hub.Subscribe("posts", Eq("author_id", "u2"))
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 1, hub.Open())

	again, err := hub.Subscribe("posts", Eq("author_id", "u1"))
	require.NoError(t, err)
	defer again.Close()
}

func TestSubscriptionChannelClosesOnClose(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe("posts", Filter{})
	require.NoError(t, err)

	hub.Close()

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}

	_, err = hub.Subscribe("posts", Filter{})
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("author_id=eq.abc")
	require.NoError(t, err)
	assert.Equal(t, Eq("author_id", "abc"), f)
	assert.Equal(t, "author_id=eq.abc", f.String())

	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.True(t, f.IsZero())

	_, err = ParseFilter("author_id=neq.abc")
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = ParseFilter("nonsense")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestEncodeNotifyTruncatesLargeRows(t *testing.T) {
	c := mustChange(t, Insert, row{ID: "p1", Title: strings.Repeat("x", maxNotifyPayload)})

	payload, err := encodeNotify(c)
	require.NoError(t, err)
	assert.Less(t, len(payload), maxNotifyPayload)
	assert.Contains(t, payload, `"truncated":true`)
	assert.Contains(t, payload, `"id":"p1"`)

	// a truncated change still reaches filtered subscribers
	c.New, c.Truncated = nil, true
	assert.True(t, Eq("author_id", "u1").Match(c))
}

func TestDeliverDecodesBridgedChanges(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe("posts", Eq("author_id", "U"))
	require.NoError(t, err)
	defer sub.Close()

	ctx := context.Background()
	c := mustChange(t, Insert, row{ID: "p1", AuthorID: "U", Title: "hello"})
	payload, err := encodeNotify(c)
	require.NoError(t, err)

	require.NoError(t, deliver(ctx, hub, []byte("not json")), "malformed payloads are dropped")
	require.NoError(t, deliver(ctx, hub, []byte(payload)))

	got := receive(t, sub)
	assert.Equal(t, "p1", got.ID)
	assert.JSONEq(t, string(c.New), string(got.New))

	hub.Close()
	assert.ErrorIs(t, deliver(ctx, hub, []byte(payload)), ErrHubClosed)
}
