package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/menuscan/backend/internal/capture"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API, background sync and capture inbox",
	Long: `Run menuscan in the foreground.

This starts:
  1. The sync scheduler (startup drain, connectivity probe, periodic drain)
  2. The capture inbox watcher, when capture.inbox_dir is set
  3. The local REST API and websocket on api.addr`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		hub := NewWSHub()
		defer hub.Close()
		a.engine.SetEventHandler(hub)

		a.scheduler.Start(ctx)

		if cfg.Capture.InboxDir != "" {
			if w, err := startCapture(ctx, a); err != nil {
				logging.Get().WarnWithCode("capture inbox disabled", "CAPTURE_FAILED", err)
			} else {
				defer w.Stop()
			}
		}

		srv := &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           a.router(hub),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logging.Info("API listening", map[string]interface{}{"addr": cfg.API.Addr})
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("API shutdown failed", err)
		}
		logging.Info("menuscan stopped")
		return nil
	},
}

func startCapture(ctx context.Context, a *app) (*capture.Watcher, error) {
	ex, err := a.extractor()
	if err != nil {
		return nil, err
	}
	w, err := capture.NewWatcher(capture.Config{
		Dir:     cfg.Capture.InboxDir,
		Pattern: cfg.Capture.Pattern,
	}, a.menus, ex)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
