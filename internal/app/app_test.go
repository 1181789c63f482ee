package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/campus/internal/cache"
	"github.com/templui/campus/internal/config"
	"github.com/templui/campus/internal/db"
	"github.com/templui/campus/internal/gateway"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/offline"
	"github.com/templui/campus/internal/service"
	"github.com/templui/campus/internal/storage"
)

func setupTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()

	var objects http.Handler = http.NotFoundHandler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		objects.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := storage.NewLocalStorage(filepath.Join(dir, "objects"), srv.URL)
	require.NoError(t, err)
	objects = store.Handler()

	cfg := &config.Config{
		AppName:                "Campus Connect",
		AppEnv:                 "development",
		DataDir:                dir,
		DBDriver:               db.DriverSQLite,
		DBConnection:           filepath.Join(dir, "campus.db") + "?_pragma=foreign_keys(1)",
		JWTSecret:              "test-secret",
		JWTExpiry:              time.Hour,
		TokenEmailVerifyExpiry: time.Hour,
		AuthAutoConfirm:        true,
		DeepLinkScheme:         "campusconnect",
		EmailFrom:              "noreply@campus.test",
		RefreshInterval:        time.Hour,
	}

	gw, err := gateway.Open(context.Background(), gateway.Options{
		Driver:     cfg.DBDriver,
		Connection: cfg.DBConnection,
		Storage:    store,
	})
	require.NoError(t, err)

	a := build(cfg, gw)
	a.Offline = offline.New(offline.Options{
		Dir:      cfg.DownloadDir(),
		Locator:  a.FileService,
		Recorder: offline.RecorderFunc(a.recordDownload),
	})
	t.Cleanup(func() { a.Close() })
	return a
}

func signUp(t *testing.T, a *App, email, name string) *Session {
	t.Helper()
	result, s, err := a.SignUp(context.Background(), service.SignUpInput{
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            name,
		Role:            model.RoleStudent,
	})
	require.NoError(t, err)
	require.False(t, result.NeedsEmailConfirmation)
	require.NotNil(t, s)
	return s
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func TestSessionBindingsFollowWrites(t *testing.T) {
	a := setupTestApp(t)
	ctx := context.Background()

	s := signUp(t, a, "ada@x.com", "Ada")
	require.NoError(t, s.Load(ctx))

	me, ok := s.Me()
	require.True(t, ok)
	assert.Equal(t, "Ada", me.Name)
	assert.Equal(t, cache.Ready, s.Posts.State())
	assert.Empty(t, s.Posts.Items())

	post, err := s.Posts.Create(ctx, func(ctx context.Context) (model.Post, error) {
		p, err := a.PostService.Create(ctx, service.PostInput{Title: "T", Content: "C", Type: model.PostTypeDiscussion}, s.UserID)
		if err != nil {
			return model.Post{}, err
		}
		return *p, nil
	})
	require.NoError(t, err)

	items := s.Posts.Items()
	require.Len(t, items, 1)
	assert.Equal(t, post.ID, items[0].ID)
	require.NotNil(t, items[0].Author)
	assert.Equal(t, "Ada", items[0].Author.Name)

	// edits from elsewhere arrive through the feed
	title := "T2"
	_, err = a.PostService.Update(ctx, post.ID, service.PostPatch{Title: &title}, s.UserID)
	require.NoError(t, err)
	eventually(t, func() bool { return s.Posts.Items()[0].Title == "T2" }, "update merged")
	assert.Equal(t, "C", s.Posts.Items()[0].Content)

	eventually(t, func() bool { return a.Stats.Current().PostsCreated == 1 }, "stats follow posts")

	bio := "Maths, second year"
	_, err = a.ProfileService.Update(ctx, s.UserID, service.ProfilePatch{Bio: &bio}, s.UserID)
	require.NoError(t, err)
	eventually(t, func() bool {
		me, _ := s.Me()
		return me.Bio != nil && *me.Bio == bio
	}, "profile merged")
}

func TestOfflineDownloadRecordsAndReconciles(t *testing.T) {
	a := setupTestApp(t)
	ctx := context.Background()

	s := signUp(t, a, "ada@x.com", "Ada")
	require.NoError(t, s.Load(ctx))

	content := []byte("%PDF-1.7\nlecture notes")
	file, err := a.FileService.Upload(ctx, s.UserID, service.UploadInput{
		Name: "Week 1.pdf",
		Size: int64(len(content)),
		Body: bytes.NewReader(content),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", file.UploaderName)
	assert.True(t, strings.HasSuffix(file.URL, "/"+file.StoragePath), "stable object reference")
	eventually(t, func() bool { return len(s.Files.Items()) == 1 }, "insert reloaded")
	assert.Equal(t, "Ada", s.Files.Items()[0].UploaderName)

	out, err := a.Offline.Download(ctx, *file)
	require.NoError(t, err)
	assert.Equal(t, offline.Downloaded, out)

	out, err = a.Offline.Download(ctx, *file)
	require.NoError(t, err)
	assert.Equal(t, offline.AlreadyDownloaded, out)

	eventually(t, func() bool { return a.Stats.Current().FilesDownloaded == 1 }, "one recorded download")

	local, err := a.Offline.ListLocal(s.Files.Items())
	require.NoError(t, err)
	entry, ok := local[offline.Key(*file)]
	require.True(t, ok)
	require.NotNil(t, entry.File)
	assert.Equal(t, file.ID, entry.File.ID)

	require.NoError(t, a.Offline.DeleteLocal(entry))
	require.NoError(t, s.Files.Refresh(ctx))
	assert.False(t, a.Offline.Downloaded(file.ID), "reconciled after refresh")
}

func TestSignOutDisposesBindings(t *testing.T) {
	a := setupTestApp(t)
	ctx := context.Background()

	s := signUp(t, a, "ada@x.com", "Ada")
	require.NoError(t, s.Load(ctx))
	s.Refresh.Foreground()

	var notified atomic.Int32
	a.Stats.Subscribe(func(model.Stats) { notified.Add(1) })
	require.NotZero(t, a.Gateway.Hub.Open())

	require.NoError(t, a.SignOut(ctx))
	heard := notified.Load()

	assert.Nil(t, a.Session())
	assert.Equal(t, model.Stats{}, a.Stats.Current())
	assert.Zero(t, a.Gateway.Hub.Open(), "every feed closed")
	assert.False(t, s.Refresh.Running())
	assert.ErrorIs(t, s.Posts.Refresh(ctx), cache.ErrClosed)

	_, err := a.Restore(ctx)
	assert.Error(t, err)

	s2, err := a.SignIn(ctx, "ada@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, s.UserID, s2.UserID)
	require.NoError(t, s2.Load(ctx))

	var fresh atomic.Int32
	off := a.Stats.Subscribe(func(model.Stats) { fresh.Add(1) })
	defer off()

	_, err = a.PostService.Create(ctx, service.PostInput{Title: "After", Content: "C", Type: model.PostTypeDiscussion}, s2.UserID)
	require.NoError(t, err)
	eventually(t, func() bool { return a.Stats.Current().PostsCreated == 1 }, "stats follow the new session")
	assert.NotZero(t, fresh.Load())
	assert.Equal(t, heard, notified.Load(), "listener from before sign-out never hears again")
}

func TestSignInAgainAfterSignOut(t *testing.T) {
	a := setupTestApp(t)
	ctx := context.Background()

	s := signUp(t, a, "ada@x.com", "Ada")
	require.NoError(t, s.Load(ctx))
	open := a.Gateway.Hub.Open()

	for range 2 {
		require.NoError(t, a.SignOut(ctx))
		require.Zero(t, a.Gateway.Hub.Open())

		next, err := a.SignIn(ctx, "ada@x.com", "secret1")
		require.NoError(t, err)
		require.NoError(t, next.Load(ctx))
		assert.Equal(t, open, a.Gateway.Hub.Open(), "same feeds reopened")
		assert.Equal(t, cache.Ready, next.Files.State())
		assert.True(t, a.Stats.Current().Loaded)
	}

	// signing in while signed in replaces the session instead of clashing
	again, err := a.SignIn(ctx, "ada@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, again.Load(ctx))
	assert.Equal(t, open, a.Gateway.Hub.Open())
}
