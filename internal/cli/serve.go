package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/DelicateHug/DMaker-sub000/internal/config"
	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/executor"
	"github.com/DelicateHug/DMaker-sub000/internal/executor/db"
	"github.com/DelicateHug/DMaker-sub000/internal/web"
)

const (
	// shutdownTimeout bounds graceful HTTP shutdown
	shutdownTimeout = 5 * time.Second

	eventBusSize = 1000
)

// newEventBus creates the executor's event bus. Every event is logged,
// progress events only at V(1).
func newEventBus(log logr.Logger) *events.Bus {
	bus := events.NewBus(eventBusSize)
	bus.Subscribe(events.LogHandler(events.LogConfig{Logger: log.WithName("events")}))
	return bus
}

// NewServeCmd creates the serve command, which runs the local executor
// and exposes it over HTTP and WebSocket
func NewServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the feature executor",
		Long: `Run the feature executor in the foreground. Features are stored in a
SQLite database; commands are served over HTTP and run events are pushed
to WebSocket subscribers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return app.serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")

	return cmd
}

// serve runs the executor stack until ctx is cancelled
func (a *App) serve(ctx context.Context, cfg *config.Config) error {
	log := a.logger(cfg).WithName("serve")

	if err := config.EnsureDataDir(cfg); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	store, err := db.Open(cfg.Executor.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	bus := newEventBus(log)
	x := executor.New(executor.Deps{DB: store, Bus: bus, Logger: log}, executorConfig(cfg))

	interrupted, err := x.Recover()
	if err != nil {
		err = fmt.Errorf("recover runs: %w", err)
		return errors.Join(err, x.Close(), bus.Close(), store.Close())
	}
	if len(interrupted) > 0 {
		log.Info("reset interrupted features", "features", interrupted)
	}

	srv := web.New(web.Config{Addr: cfg.ListenAddr}, web.Deps{
		Gateway: x,
		Bus:     bus,
		History: x,
		Logger:  log,
	})
	if err := srv.Start(); err != nil {
		err = fmt.Errorf("start server: %w", err)
		return errors.Join(err, x.Close(), bus.Close(), store.Close())
	}
	log.Info("executor listening", "addr", srv.Addr(), "db", cfg.Executor.DBPath)
	fmt.Fprintf(a.rootCmd.OutOrStdout(), "listening on http://%s\n", srv.Addr())

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		srv.Stop(shutdownCtx),
		x.Close(),
		bus.Close(),
		store.Close(),
	)
}
