package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/config"
	"github.com/templui/campus/internal/middleware"
	"github.com/templui/campus/internal/storage"
)

// ServeObjectsCmd serves the local object store so file URLs resolve during
// development.
func ServeObjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-objects",
		Short: "Serve locally stored files at LOCAL_STORAGE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := application.Cfg
			if cfg.StorageDriver != config.StorageDriverLocal {
				return fmt.Errorf("serve-objects needs STORAGE_DRIVER=%s", config.StorageDriverLocal)
			}
			local, ok := application.Gateway.Storage.(*storage.LocalStorage)
			if !ok {
				return errors.New("object store is not local")
			}

			u, err := url.Parse(cfg.LocalStorageURL)
			if err != nil {
				return fmt.Errorf("invalid LOCAL_STORAGE_URL: %w", err)
			}
			prefix := strings.TrimRight(u.Path, "/")

			mux := http.NewServeMux()
			metrics := middleware.NewMetrics()
			mux.Handle(prefix+"/", http.StripPrefix(prefix, local.Handler()))
			mux.Handle("/metrics", metrics.Handler())

			handler := middleware.Chain(mux,
				middleware.RequestLogging,
				metrics.Middleware,
				middleware.RateLimit(middleware.NewRateLimiter(cfg.ObjectsRateLimit)),
			)

			srv := &http.Server{
				Addr:              u.Host,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			slog.Info("object server starting", "addr", u.Host, "path", prefix+"/")
			err = srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
