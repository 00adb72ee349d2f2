package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/showinghive/internal/config"
	"github.com/evcraddock/showinghive/internal/jobs"
	"github.com/evcraddock/showinghive/internal/lock"
	"github.com/evcraddock/showinghive/internal/logging"
	"github.com/evcraddock/showinghive/internal/notify"
	"github.com/evcraddock/showinghive/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port    int
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  "Run the JSON API, the web pages, the notification worker and the background jobs. Settings come from HIVE_* environment variables, optionally loaded from an env file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides HIVE_PORT)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "file of HIVE_* variables to load if present")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Setup(cfg.DevMode)
	loc := cfg.Location()

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		rl, err := lock.NewRedis(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() {
			if err := rl.Close(); err != nil {
				slog.Warn("closing redis", "err", err)
			}
		}()
		locker = rl
	}

	dispatcher := notify.NewDispatcher(notify.NewStore(database), notify.Options{
		Queue:    cfg.NotifyQueue,
		Rate:     cfg.NotifyRate,
		Location: loc,
	})

	srv, err := web.NewServer(database, web.Config{
		Auth:     cfg.Auth(),
		Location: loc,
		Locker:   locker,
		Notifier: dispatcher,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	scheduler, err := jobs.New(jobs.Specs{
		Cleanup:     cfg.CleanupSpec,
		Reminders:   cfg.ReminderSpec,
		ExpireCodes: cfg.ExpireSpec,
	}, loc, srv.Showings(), srv.Sessions(), srv.Tokens())
	if err != nil {
		return err
	}

	httpServer := srv.NewHTTPServer(cfg.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Addr(), "base_url", cfg.BaseURL, "timezone", loc.String(), "dev_mode", cfg.DevMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error { return scheduler.Run(ctx) })

	return g.Wait()
}
