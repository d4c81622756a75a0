package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/DelicateHug/DMaker-sub000/internal/client"
	"github.com/DelicateHug/DMaker-sub000/internal/config"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

// App represents the CLI application with all wired dependencies
type App struct {
	// Root command
	rootCmd *cobra.Command

	// Global flags
	configPath string
	workdir    string
	serverURL  string
	projects   []string
	verbose    bool

	// Version information
	versionInfo VersionInfo
}

// VersionInfo is set at build time
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// New creates a new CLI application
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion sets the version string for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

// setupRootCmd configures the root Cobra command
func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "dmaker",
		Short: "Feature board with dependency-aware auto mode",
		Long: `dmaker keeps a live board of features for one or more projects and
starts backlog features automatically, honoring dependencies and a
concurrency budget.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := a.rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default: ./"+config.FileName+")")
	flags.StringVarP(&a.workdir, "dir", "C", "", "Workspace directory (default: current directory)")
	flags.StringVar(&a.serverURL, "server", "", "Executor API URL (overrides server_url)")
	flags.StringSliceVarP(&a.projects, "project", "p", nil, "Project scope; repeat to aggregate (overrides projects)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	a.rootCmd.AddCommand(
		NewServeCmd(a),
		NewBoardCmd(a),
		NewFeatureCmd(a),
		NewEventsCmd(a),
		NewVersionCmd(a),
	)
}

// root returns the workspace directory
func (a *App) root() (string, error) {
	if a.workdir != "" {
		return a.workdir, nil
	}
	return os.Getwd()
}

// watchPath returns the config file to watch for changes
func (a *App) watchPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	root, err := a.root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, config.FileName), nil
}

// loadConfig loads configuration and applies command-line overrides
func (a *App) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadConfigFile(a.configPath)
	} else {
		var root string
		root, err = a.root()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		cfg, err = config.LoadConfig(root)
	}
	if err != nil {
		return nil, err
	}

	if a.serverURL != "" {
		cfg.ServerURL = a.serverURL
	}
	if len(a.projects) > 0 {
		cfg.Projects = a.projects
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// logger builds a logr.Logger backed by log/slog writing to stderr
func (a *App) logger(cfg *config.Config) logr.Logger {
	h := slog.NewTextHandler(a.rootCmd.ErrOrStderr(), &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)})
	return logr.FromSlogHandler(h)
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// scope returns the configured project scope
func scope(cfg *config.Config) gateway.Scope {
	return gateway.Aggregate(cfg.Projects...)
}

// newClient creates an API client for the configured server
func (a *App) newClient(cfg *config.Config, log logr.Logger) (*client.Client, error) {
	c, err := client.New(client.Config{BaseURL: cfg.ServerURL}, log)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}
