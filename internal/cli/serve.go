package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the local API for the launcher window",
		Long: `Serve the loopback HTTP API the launcher window talks to. The chat session,
history and settings are shared by every client of the API. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e.logFile = true
			return runServe(cmd.Context(), e)
		},
	}
}

func runServe(ctx context.Context, e *env) error {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	log := a.Logger
	defer log.Sync()

	server := &http.Server{
		Addr:        a.Config.Addr,
		Handler:     a.Handler(),
		ReadTimeout: a.Config.ServerReadTimeout,
		// Zero keeps the SSE feed open.
		WriteTimeout: a.Config.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
		// Open event feeds end when ctx does, so Shutdown is not held up by them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := a.WatchSettings(watchCtx); err != nil {
			log.Warn("settings watcher stopped", zap.Error(err))
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("local API listening", zap.String("addr", a.Config.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
		stopWatch()
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Close(closeCtx)
		return err
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	stopWatch()

	if err := a.Close(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}
