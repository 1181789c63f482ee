package service

import (
	"context"
	"fmt"
	"time"

	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/repository"
	"golang.org/x/sync/errgroup"
)

type StatsService struct {
	statsRepo repository.StatsRepository
}

func NewStatsService(statsRepo repository.StatsRepository) *StatsService {
	return &StatsService{statsRepo: statsRepo}
}

// ForUser runs the count-only queries concurrently.
func (s *StatsService) ForUser(ctx context.Context, userID string) (*model.Stats, error) {
	var stats model.Stats

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			*dst = n
			return err
		})
	}

	count(&stats.PostsCreated, func(ctx context.Context) (int, error) { return s.statsRepo.PostsByAuthor(ctx, userID) })
	count(&stats.FilesUploaded, func(ctx context.Context) (int, error) { return s.statsRepo.FilesByUploader(ctx, userID) })
	count(&stats.FilesDownloaded, func(ctx context.Context) (int, error) { return s.statsRepo.DownloadsByUser(ctx, userID) })
	count(&stats.EventsAttended, func(ctx context.Context) (int, error) { return s.statsRepo.AttendancesByUser(ctx, userID) })
	count(&stats.TotalPosts, s.statsRepo.Posts)
	count(&stats.TotalFiles, s.statsRepo.Files)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	stats.Loaded = true
	stats.UpdatedAt = time.Now().UTC()
	return &stats, nil
}
