package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DelicateHug/DMaker-sub000/internal/client"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

// NewFeatureCmd creates the feature parent command
func NewFeatureCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Manage features on the executor",
		Long: `Create, list, edit, delete, start and stop features. Commands go to
the executor named by server_url in the first configured project unless
--project is given.`,
	}

	cmd.AddCommand(
		newFeatureListCmd(app),
		newFeatureAddCmd(app),
		newFeatureUpdateCmd(app),
		newFeatureDeleteCmd(app),
		newFeatureStartCmd(app),
		newFeatureStopCmd(app),
	)

	return cmd
}

// featureEnv is the client and project a feature subcommand acts on
type featureEnv struct {
	client  *client.Client
	scope   gateway.Scope
	project string
	display *Display
}

func (a *App) featureEnv(cmd *cobra.Command) (*featureEnv, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := a.newClient(cfg, a.logger(cfg))
	if err != nil {
		return nil, err
	}
	s := scope(cfg)
	return &featureEnv{
		client:  c,
		scope:   s,
		project: s.Primary(),
		display: NewDisplay(DisplayConfig{UseColor: DetectColor(cmd.OutOrStdout()), Details: true}),
	}, nil
}

func newFeatureListCmd(app *App) *cobra.Command {
	var (
		summary          bool
		excludeCompleted bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List features in every configured project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.featureEnv(cmd)
			if err != nil {
				return err
			}

			filter := gateway.StatusFilter{ExcludeCompleted: excludeCompleted}
			var all []feature.Feature
			for _, project := range env.scope.Projects {
				list, err := listFeatures(cmd.Context(), env.client, project, filter, summary)
				if err != nil {
					return fmt.Errorf("list %s: %w", project, err)
				}
				all = append(all, list...)
			}

			fmt.Fprint(cmd.OutOrStdout(), env.display.RenderFeatures(all))
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Fetch the summary view only")
	cmd.Flags().BoolVar(&excludeCompleted, "exclude-completed", false, "Hide completed features")

	return cmd
}

func listFeatures(ctx context.Context, c *client.Client, project string, filter gateway.StatusFilter, summary bool) ([]feature.Feature, error) {
	if summary {
		return c.ListSummaries(ctx, project, filter)
	}
	return c.ListFull(ctx, project, filter)
}

func newFeatureAddCmd(app *App) *cobra.Command {
	var (
		draft    feature.Draft
		priority int
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.featureEnv(cmd)
			if err != nil {
				return err
			}

			draft.Title = args[0]
			if cmd.Flags().Changed("priority") {
				draft.Priority = &priority
			}

			f, err := env.client.Create(cmd.Context(), env.project, draft)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), env.display.RenderFeature(f))
			return nil
		},
	}

	cmd.Flags().StringVarP(&draft.Description, "description", "d", "", "Feature description")
	cmd.Flags().IntVar(&priority, "priority", feature.DefaultPriority, "Priority (lower runs first)")
	cmd.Flags().StringSliceVar(&draft.DependsOn, "depends-on", nil, "IDs of features that must complete first")
	cmd.Flags().StringVar(&draft.BranchRef, "branch", "", "Isolation context (default: primary)")

	return cmd
}

func newFeatureUpdateCmd(app *App) *cobra.Command {
	var (
		title       string
		description string
		status      string
		priority    int
		dependsOn   []string
		branch      string
		favorite    bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch feature.Patch
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("status") {
				s := feature.ParseStatus(status)
				patch.Status = &s
			}
			if flags.Changed("priority") {
				patch.Priority = &priority
			}
			if flags.Changed("depends-on") {
				patch.DependsOn = &dependsOn
			}
			if flags.Changed("branch") {
				patch.BranchRef = &branch
			}
			if flags.Changed("favorite") {
				patch.IsFavorite = &favorite
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update")
			}

			env, err := app.featureEnv(cmd)
			if err != nil {
				return err
			}
			f, err := env.client.Update(cmd.Context(), env.project, args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), env.display.RenderFeature(f))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "New status (backlog, in_progress, waiting_approval, completed, pipeline_<step>)")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "Replace dependencies")
	cmd.Flags().StringVar(&branch, "branch", "", "New isolation context")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "Mark as favorite")

	return cmd
}

func newFeatureDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a feature, stopping its run first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.featureEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.client.Delete(cmd.Context(), env.project, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newFeatureStartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start a run for a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.featureEnv(cmd)
			if err != nil {
				return err
			}
			res, err := env.client.Start(cmd.Context(), env.project, args[0])
			if err != nil {
				return err
			}
			if !res.Accepted {
				return fmt.Errorf("start %s refused: %s", args[0], res.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", args[0])
			return nil
		},
	}
}

func newFeatureStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.featureEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.client.Stop(cmd.Context(), env.project, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
			return nil
		},
	}
}
