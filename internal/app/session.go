package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/templui/campus/internal/cache"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
	"github.com/templui/campus/internal/repository"
	"github.com/templui/campus/internal/service"
	"golang.org/x/sync/errgroup"
)

// Session holds the bound collections of one signed-in user. Every list has
// its own realtime feed and is closed on sign-out. The posts and files feeds
// also drive the stats store, which cannot open them a second time.
type Session struct {
	Auth   *model.Session
	UserID string

	Posts   *cache.List[model.Post]
	Files   *cache.List[model.File]
	Profile *cache.List[model.Profile]

	Refresh *cache.AutoRefresh

	stops   []func()
	closers []func() error
}

func newSession(a *App, auth *model.Session) (*Session, error) {
	s := &Session{Auth: auth, UserID: auth.UserID}

	fail := func(err error) (*Session, error) {
		s.close()
		return nil, err
	}

	postFeed, err := a.Gateway.Subscribe(repository.TablePosts, realtime.Filter{})
	if err != nil {
		return fail(fmt.Errorf("subscribe posts: %w", err))
	}
	s.Posts = cache.NewList(cache.Options[model.Post]{
		Name: "posts",
		Load: func(ctx context.Context) ([]model.Post, error) {
			return values(a.PostService.List(ctx, service.PostFilter{}))
		},
		Feed: postFeed,
		// inserts lack the joined author
		Insert: cache.InsertReload,
	})
	s.closers = append(s.closers, s.Posts.Close)

	fileFeed, err := a.Gateway.Subscribe(repository.TableFiles, realtime.Filter{})
	if err != nil {
		return fail(fmt.Errorf("subscribe files: %w", err))
	}
	s.Files = cache.NewList(cache.Options[model.File]{
		Name: "files",
		Load: func(ctx context.Context) ([]model.File, error) {
			return values(a.FileService.List(ctx, service.FileFilter{}))
		},
		Feed: fileFeed,
		// inserts from other writers may lack the uploader name
		Insert: cache.InsertReload,
	})
	s.closers = append(s.closers, s.Files.Close)

	// keep "available offline" in step with the catalog
	s.stops = append(s.stops, s.Files.OnChange(func(snap cache.Snapshot[model.File]) {
		if snap.State != cache.Ready {
			return
		}
		if err := a.Offline.Reconcile(snap.Items); err != nil {
			slog.Warn("offline reconcile failed", "error", err)
		}
	}))
	s.stops = append(s.stops, cache.Watch(a.Stats, s.Posts), cache.Watch(a.Stats, s.Files))

	profileFeed, err := a.Gateway.Subscribe(repository.TableProfiles, realtime.Eq("id", auth.UserID))
	if err != nil {
		return fail(fmt.Errorf("subscribe profile: %w", err))
	}
	s.Profile = cache.NewList(cache.Options[model.Profile]{
		Name: "profile",
		Load: func(ctx context.Context) ([]model.Profile, error) {
			p, err := a.ProfileService.ByID(ctx, auth.UserID)
			if err != nil {
				return nil, err
			}
			return []model.Profile{*p}, nil
		},
		Feed:   profileFeed,
		Insert: cache.InsertShadow,
	})
	s.closers = append(s.closers, s.Profile.Close)

	s.Refresh = cache.NewAutoRefresh(a.Cfg.RefreshInterval, s.Posts, s.Files)
	return s, nil
}

// Load fetches every bound collection.
func (s *Session) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Posts.Refresh(ctx) })
	g.Go(func() error { return s.Files.Refresh(ctx) })
	g.Go(func() error { return s.Profile.Refresh(ctx) })
	return g.Wait()
}

// Me is the signed-in user's profile, once loaded.
func (s *Session) Me() (model.Profile, bool) {
	items := s.Profile.Items()
	if len(items) == 0 {
		return model.Profile{}, false
	}
	return items[0], true
}

func (s *Session) close() {
	if s.Refresh != nil {
		s.Refresh.Stop()
	}
	for _, stop := range s.stops {
		stop()
	}
	for _, c := range s.closers {
		if err := c(); err != nil {
			slog.Warn("failed to close binding", "error", err)
		}
	}
}

func values[T any](items []*T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, *it)
	}
	return out, nil
}
