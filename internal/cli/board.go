package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/DelicateHug/DMaker-sub000/internal/board"
	"github.com/DelicateHug/DMaker-sub000/internal/config"
	"github.com/DelicateHug/DMaker-sub000/internal/notify"
)

// BoardOptions holds flags for the board command
type BoardOptions struct {
	Auto    bool
	Branch  string
	Once    bool
	Backlog bool
	Details bool
}

// NewBoardCmd creates the board command
func NewBoardCmd(app *App) *cobra.Command {
	opts := BoardOptions{}

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Watch the feature board",
		Long: `Load the configured projects and keep the board current from push
events and periodic reloads. With --auto, backlog features are started as
concurrency allows; the scheduler settings follow edits to the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return app.runBoard(ctx, cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Auto, "auto", false, "Start backlog features automatically")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "Isolation context for auto mode (overrides branch)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "Print the board once and exit")
	cmd.Flags().BoolVar(&opts.Backlog, "backlog", false, "Show the backlog in dependency order")
	cmd.Flags().BoolVar(&opts.Details, "details", false, "Show dependencies and errors")

	return cmd
}

// runBoard loads the board and renders it until ctx is cancelled
func (a *App) runBoard(ctx context.Context, cfg *config.Config, opts BoardOptions, out io.Writer) error {
	log := a.logger(cfg)

	c, err := a.newClient(cfg, log)
	if err != nil {
		return err
	}

	b := board.New(boardConfig(cfg), board.Dependencies{
		Gateway: c,
		Events:  c,
		Logger:  log,
	})
	defer b.Close()

	if !b.SwitchScope(ctx, scope(cfg)) {
		return fmt.Errorf("load %s: no project could be fetched from %s", scope(cfg), cfg.ServerURL)
	}
	branch := opts.Branch
	if branch == "" {
		branch = cfg.Branch
	}
	b.SelectContext(branch)

	d := NewDisplay(DisplayConfig{UseColor: DetectColor(out), Details: opts.Details})
	out = &lockedWriter{w: out}
	render := func() {
		body := d.RenderFeatures(b.Features())
		if opts.Backlog {
			body = d.RenderBacklog(b.Backlog())
		}
		fmt.Fprint(out, d.RenderStatus(b.Status())+body)
	}

	if opts.Once {
		render()
		return nil
	}

	if err := a.watchSchedulerOptions(ctx, b, log); err != nil {
		log.Error(err, "config changes will not be applied")
	}

	sender, err := notify.FromConfig(cfg.Notify, out, d.RenderNotification)
	if err != nil {
		return err
	}
	go notify.Forward(ctx, b.Notifications(), sender, log)

	if opts.Auto {
		b.EnableAutoMode(ctx)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx) }()

	render()
	for {
		select {
		case <-ctx.Done():
			b.DisableAutoMode()
			if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-b.Changes():
			render()
		}
	}
}

// watchSchedulerOptions applies config file edits to the running scheduler
func (a *App) watchSchedulerOptions(ctx context.Context, b *board.Board, log logr.Logger) error {
	path, err := a.watchPath()
	if err != nil {
		return err
	}
	return config.Watch(ctx, path, log, func(cfg *config.Config) {
		b.SetSchedulerOptions(schedulerOptions(cfg))
	})
}

// lockedWriter serializes board renders with notification output
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
