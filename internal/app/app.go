package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/templui/campus/internal/cache"
	"github.com/templui/campus/internal/config"
	"github.com/templui/campus/internal/gateway"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/offline"
	"github.com/templui/campus/internal/service"
	"github.com/templui/campus/internal/session"
	"github.com/templui/campus/internal/storage"
)

var ErrSignedOut = errors.New("not signed in")

type App struct {
	Cfg      *config.Config
	Gateway  *gateway.Gateway
	Sessions *session.FileStore

	AuthService    *service.AuthService
	EmailService   *service.EmailService
	ProfileService *service.ProfileService
	PostService    *service.PostService
	FileService    *service.FileService
	EventService   *service.EventService
	StatsService   *service.StatsService

	Stats   *cache.StatsStore
	Offline *offline.Store

	mu      sync.Mutex
	current *Session
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Storage
	fileStorage, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Database, repositories and realtime feed
	gw, err := gateway.Open(ctx, gateway.Options{
		Driver:     cfg.DBDriver,
		Connection: cfg.DBConnection,
		Storage:    fileStorage,
		RedisURL:   cfg.RedisURL,
	})
	if err != nil {
		return nil, err
	}

	return build(cfg, gw), nil
}

func build(cfg *config.Config, gw *gateway.Gateway) *App {
	sessions := session.NewFileStore(cfg.SessionFile())

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	authService := service.NewAuthService(
		gw.Users,
		gw.Profiles,
		gw.Tokens,
		emailService,
		sessions,
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.TokenEmailVerifyExpiry,
		cfg.DeepLinkScheme,
		cfg.AuthAutoConfirm,
	)
	statsService := service.NewStatsService(gw.Stats)

	a := &App{
		Cfg:            cfg,
		Gateway:        gw,
		Sessions:       sessions,
		AuthService:    authService,
		EmailService:   emailService,
		ProfileService: service.NewProfileService(gw.Profiles),
		PostService:    service.NewPostService(gw.Posts),
		FileService:    service.NewFileService(gw.Files, gw.Downloads, gw.Storage),
		EventService:   service.NewEventService(gw.EventAttendances),
		StatsService:   statsService,
		Stats:          cache.NewStatsStore(statsService.ForUser, gw),
	}
	a.Offline = offline.New(offline.Options{
		Dir:      cfg.DownloadDir(),
		Locator:  a.FileService,
		Recorder: offline.RecorderFunc(a.recordDownload),
		Opener:   offline.SystemOpener{},
	})
	return a
}

func (a *App) recordDownload(ctx context.Context, fileID string) error {
	s := a.Session()
	if s == nil {
		return ErrSignedOut
	}
	return a.FileService.RecordDownload(ctx, s.UserID, fileID)
}

// Session returns the signed-in session's bindings, or nil.
func (a *App) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Restore resumes the persisted session, if any.
func (a *App) Restore(ctx context.Context) (*Session, error) {
	auth, err := a.AuthService.Restore(ctx)
	if err != nil {
		return nil, err
	}
	return a.begin(ctx, auth)
}

func (a *App) SignIn(ctx context.Context, email, password string) (*Session, error) {
	auth, err := a.AuthService.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.begin(ctx, auth)
}

// SignUp registers an account. The result has no session until the emailed
// link is confirmed, unless auto-confirm is on.
func (a *App) SignUp(ctx context.Context, in service.SignUpInput) (*service.SignUpResult, *Session, error) {
	result, err := a.AuthService.SignUp(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	if result.Session == nil {
		return result, nil, nil
	}
	s, err := a.begin(ctx, result.Session)
	return result, s, err
}

// Confirm handles the auth callback deep link.
func (a *App) Confirm(ctx context.Context, callbackURL string) (*Session, error) {
	auth, err := a.AuthService.ExchangeCode(ctx, callbackURL)
	if err != nil {
		return nil, err
	}
	return a.begin(ctx, auth)
}

// SignOut tears down every session binding, clears the stats cache and
// forgets the persisted session.
func (a *App) SignOut(ctx context.Context) error {
	a.end()
	return a.AuthService.SignOut(ctx)
}

func (a *App) begin(ctx context.Context, auth *model.Session) (*Session, error) {
	a.end()

	err := a.Stats.Init(ctx, auth.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	err = a.Offline.EnsureDirectory()
	if err != nil {
		a.Stats.Dispose()
		return nil, err
	}

	s, err := newSession(a, auth)
	if err != nil {
		a.Stats.Dispose()
		return nil, err
	}

	a.mu.Lock()
	a.current = s
	a.mu.Unlock()

	slog.Info("session started", "user_id", auth.UserID)
	return s, nil
}

func (a *App) end() {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.mu.Unlock()

	if s != nil {
		s.close()
		slog.Info("session ended", "user_id", s.UserID)
	}
	a.Stats.Dispose()
}

func (a *App) Close() error {
	a.end()
	if a.Gateway != nil {
		return a.Gateway.Close()
	}
	return nil
}
