package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/app"
	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/config"
	"github.com/templui/campus/internal/logger"
)

var application *app.App

// Setup loads config, starts logging and connects the backend.
func Setup(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	logger.Init(logger.Options{
		IsDev:     cfg.IsDevelopment(),
		SentryDSN: cfg.SentryDSN,
		LogFile:   cfg.LogFile,
	})

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return err
	}
	application = a
	return nil
}

func Teardown(cmd *cobra.Command, args []string) {
	if application != nil {
		if err := application.Close(); err != nil {
			slog.Error("failed to close app", "error", err)
		}
	}
	logger.Flush()
}

// Fail prints the user-facing form of err.
func Fail(err error) {
	if apperrors.KindOf(err) == apperrors.Internal {
		slog.Error("command failed", "error", err)
	}
	fmt.Fprintln(os.Stderr, "Error:", apperrors.UserMessage(err))
}

// session restores the persisted session and loads its bindings.
func session(ctx context.Context) (*app.Session, error) {
	s, err := application.Restore(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Rejected, "Not signed in. Run `campus signin` first.")
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func table(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
