package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/repositories"
	"github.com/ketchalegend/vibeflow/internal/server"
	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
	"github.com/ketchalegend/vibeflow/internal/tasks"
	"github.com/urfave/cli/v3"
)

// shutdownGrace bounds how long in-flight requests get to finish.
const shutdownGrace = 10 * time.Second

// Serve wires the full service and runs the HTTP server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	config := r.loadConfig(cmd)
	if err := config.Validate(); err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify, r.httpClient, r.logger)
	if err != nil {
		return err
	}

	completer, err := services.NewCompletionService(config.Credentials.OpenAI, r.httpClient, r.logger)
	if err != nil {
		return err
	}

	store := repositories.NewSuggestionRepository(db)
	sessions := server.NewSessionStore()
	cache := tasks.NewStatsCache(time.Duration(config.Cache.StatsTTLMinutes) * time.Minute)

	api := server.NewAPI(
		spotify,
		sessions,
		tasks.NewStatsEngine(r.logger),
		tasks.NewSuggestEngine(completer, store, r.logger),
		tasks.NewPlaylistEngine(r.logger),
		cache,
		r.logger,
	)

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.Server.Addr()
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: server.BuildRouter(api, config.Server),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		r.logger.Info("server listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
