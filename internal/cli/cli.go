// Package cli implements the govend command-line interface.
//
// The commands resolve the dependencies a project declares, vendor them
// into the project's vendor directory and inspect the snapshot that makes
// repeated runs cheap:
//   - resolve: resolve dependencies and print the graph
//   - install (alias vendor): resolve and install into the vendor directory
//   - snapshot: show, locate or clear the vendor snapshot
//   - cache: locate or clear the module proxy response cache
//
// All commands support --verbose (-v) for debug-level logging. The logger
// is attached to the command context and reaches the libraries explicitly.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/govend/pkg/buildinfo"
	"github.com/matzehuels/govend/pkg/observability"
)

// appName is the application name used for directories and display.
const appName = "govend"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	flags globalFlags
}

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	project     string
	config      string
	vendorDir   string
	concurrency int
	noCache     bool
	verbose     bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "govend vendors Go dependencies from version control",
		Long:         `govend resolves the dependencies of a Go project to pinned revisions, following their go.mod requirements transitively, and installs them into a vendor directory. A snapshot of the last run keeps unchanged dependencies from being fetched again.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.SetLogLevel(levelFor(c.flags.verbose))
			observability.SetVendorHooks(newLogHooks(c.Logger))
			observability.SetHTTPHooks(newHTTPLogHooks(c.Logger))
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.project, "project", "C", ".", "project directory")
	pf.StringVar(&c.flags.config, "config", "", "project file (default: govend.toml or govend.yaml in the project directory)")
	pf.StringVar(&c.flags.vendorDir, "vendor", "", "vendor directory (overrides the project file)")
	pf.IntVar(&c.flags.concurrency, "concurrency", 0, "parallel installs (default: project file, then number of CPUs)")
	pf.BoolVar(&c.flags.noCache, "no-cache", false, "disable the module proxy response cache")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
