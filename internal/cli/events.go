package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/DelicateHug/DMaker-sub000/internal/client"
	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

// EventsOptions holds flags for the events command
type EventsOptions struct {
	JSON     bool
	History  bool
	After    int
	Limit    int
	Progress bool
}

// NewEventsCmd creates the events command
func NewEventsCmd(app *App) *cobra.Command {
	opts := EventsOptions{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail run events for the configured projects",
		Long: `Stream push events from the executor. Output is JSON lines when
--json is set or stdout is not a terminal. With --history, the journal
of past structural events is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			log := app.logger(cfg)
			c, err := app.newClient(cfg, log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.History {
				return printHistory(cmd.Context(), c, scope(cfg), opts, out)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			err = tailEvents(ctx, c, scope(cfg), opts, out, log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Emit JSON lines")
	cmd.Flags().BoolVar(&opts.History, "history", false, "Print journaled events and exit")
	cmd.Flags().IntVar(&opts.After, "after", 0, "With --history, only events after this sequence")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "With --history, maximum events per project")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Include progress events")

	return cmd
}

// tailEvents prints events for projects in scope until ctx is cancelled
func tailEvents(ctx context.Context, c *client.Client, s gateway.Scope, opts EventsOptions, out io.Writer, log logr.Logger) error {
	var handler events.Handler
	if events.IsJSONMode(opts.JSON) {
		handler = events.JSONEmitterHandler(events.NewJSONEmitter(out), log)
	} else {
		d := NewDisplay(DisplayConfig{UseColor: DetectColor(out)})
		handler = func(e events.Event) {
			fmt.Fprintln(out, d.RenderEvent(e))
		}
	}

	return c.SubscribeWithReconnect(ctx, eventFilter(s, opts.Progress, handler), nil)
}

// eventFilter drops events outside the scope and, unless wanted, progress
func eventFilter(s gateway.Scope, progress bool, next events.Handler) events.Handler {
	return func(e events.Event) {
		if e.Project != "" && !s.Contains(e.Project) {
			return
		}
		if e.IsProgressOnly() && !progress {
			return
		}
		next(e)
	}
}

func printHistory(ctx context.Context, c *client.Client, s gateway.Scope, opts EventsOptions, out io.Writer) error {
	jsonMode := events.IsJSONMode(opts.JSON)
	emitter := events.NewJSONEmitter(out)
	d := NewDisplay(DisplayConfig{UseColor: DetectColor(out)})

	for _, project := range s.Projects {
		entries, err := c.History(ctx, project, opts.After, opts.Limit)
		if err != nil {
			return fmt.Errorf("history %s: %w", project, err)
		}
		for _, entry := range entries {
			if entry.Event == nil {
				continue
			}
			e := entry.Event.ToEvent()
			if jsonMode {
				if err := emitter.Emit(e); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(out, "%6d %s\n", entry.Sequence, d.RenderEvent(e))
		}
	}
	return nil
}
