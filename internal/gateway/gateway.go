package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/templui/campus/internal/db"
	"github.com/templui/campus/internal/realtime"
	"github.com/templui/campus/internal/repository"
	"github.com/templui/campus/internal/storage"
)

// Options configures the connection to the backend.
type Options struct {
	Driver     string
	Connection string
	Storage    storage.Storage
	// RedisURL, when set, carries realtime changes through Redis pub/sub
	// instead of PostgreSQL LISTEN/NOTIFY.
	RedisURL string
}

type bridge interface {
	realtime.Publisher
	Run(ctx context.Context)
}

// Gateway is the single configured handle to the backend: relational
// storage, object storage and the realtime change feed.
type Gateway struct {
	DB        *sqlx.DB
	Storage   storage.Storage
	Hub       *realtime.Hub
	Publisher realtime.Publisher

	Users            repository.UserRepository
	Profiles         repository.ProfileRepository
	Tokens           repository.TokenRepository
	Posts            repository.PostRepository
	Files            repository.FileRepository
	Downloads        repository.DownloadRepository
	EventAttendances repository.EventAttendanceRepository
	Stats            repository.StatsRepository

	stop    context.CancelFunc
	done    chan struct{}
	cleanup func() error
}

// Open connects the database, applies migrations and starts the realtime feed.
// With Redis or PostgreSQL, changes travel between processes so other clients
// see them too.
func Open(ctx context.Context, opts Options) (*Gateway, error) {
	database, err := db.Init(opts.Driver, opts.Connection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(ctx, database.DB, opts.Driver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	g := New(database, opts.Storage)

	switch {
	case opts.RedisURL != "":
		rb, err := realtime.NewRedisBridge(opts.RedisURL, g.Hub)
		if err != nil {
			database.Close()
			return nil, err
		}
		g.cleanup = rb.Close
		g.start(rb)
	case opts.Driver == db.DriverPostgres:
		g.start(realtime.NewPGBridge(database, opts.Connection, g.Hub))
	}

	return g, nil
}

// start publishes through b and runs its listener until Close.
func (g *Gateway) start(b bridge) {
	g.setPublisher(b)

	ctx, cancel := context.WithCancel(context.Background())
	g.stop = cancel
	g.done = make(chan struct{})
	go func() {
		defer close(g.done)
		b.Run(ctx)
	}()
}

// New wires repositories over an already migrated database, publishing
// changes straight into an in-process hub.
func New(database *sqlx.DB, store storage.Storage) *Gateway {
	g := &Gateway{
		DB:      database,
		Storage: store,
		Hub:     realtime.NewHub(),
	}
	g.setPublisher(g.Hub)
	return g
}

func (g *Gateway) setPublisher(pub realtime.Publisher) {
	g.Publisher = pub
	g.Users = repository.NewUserRepository(g.DB)
	g.Profiles = repository.NewProfileRepository(g.DB, pub)
	g.Tokens = repository.NewTokenRepository(g.DB)
	g.Posts = repository.NewPostRepository(g.DB, pub)
	g.Files = repository.NewFileRepository(g.DB, pub)
	g.Downloads = repository.NewDownloadRepository(g.DB, pub)
	g.EventAttendances = repository.NewEventAttendanceRepository(g.DB, pub)
	g.Stats = repository.NewStatsRepository(g.DB)
}

// Subscribe opens a change feed for one table and optional row filter.
// The caller must Close the subscription.
func (g *Gateway) Subscribe(table string, filter realtime.Filter) (*realtime.Subscription, error) {
	sub, err := g.Hub.Subscribe(table, filter)
	if err != nil {
		return nil, err
	}
	slog.Debug("realtime subscription opened", "table", table, "filter", filter.String())
	return sub, nil
}

func (g *Gateway) Close() error {
	if g.stop != nil {
		g.stop()
		<-g.done
	}
	if g.cleanup != nil {
		if err := g.cleanup(); err != nil {
			slog.Warn("failed to close realtime bridge", "error", err)
		}
	}
	g.Hub.Close()
	return db.Close(g.DB)
}
