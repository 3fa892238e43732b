package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/jacentio/roster/httpapi"
	"github.com/jacentio/roster/student"
)

const shutdownTimeout = 10 * time.Second

func runServe(c *cli.Context) error {
	opts := getOptions(c)
	logger := opts.logger(c.App.ErrWriter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := opts.openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	srv := &http.Server{
		Addr:              c.String("listen"),
		Handler:           newHTTPServer(c, storage, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", srv.Addr,
			"backend", opts.backend,
			"version", version,
		)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newHTTPServer(c *cli.Context, storage student.Storage, logger *slog.Logger) *httpapi.Server {
	return httpapi.New(student.NewService(storage, logger), httpapi.Config{
		Logger:    logger,
		RateLimit: c.Float64("rate-limit"),
		Burst:     c.Int("rate-burst"),
	})
}
