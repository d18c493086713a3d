package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/installer"
)

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var noTest bool

	cmd := &cobra.Command{
		Use:     "install",
		Aliases: []string{"vendor"},
		Short:   "Resolve dependencies and install them into the vendor directory",
		Long: `Resolve the build and test dependencies of the project and install them
into the vendor directory.

Dependencies whose revision matches the snapshot of the previous run are
kept as they are. Everything in the vendor directory that no dependency
claims is removed, as are vendor directories nested inside dependencies.`,
		Example: `  # Vendor into ./vendor
  govend install

  # Vendor another project into a custom directory
  govend install -C ../service --vendor third_party`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.runInstall(cmd.Context(), !noTest)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noTest, "no-test", false, "skip test dependencies")
	return cmd
}

func (c *CLI) runInstall(ctx context.Context, withTest bool) (*installer.Report, error) {
	p, err := c.openProject(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Close(ctx)

	spinner := newSpinner(ctx, os.Stderr, "Resolving dependencies...")
	spinner.Start()
	defer spinner.Stop()

	build, test, err := p.resolveSets(ctx)
	if err != nil {
		spinner.StopWithError("Resolution failed")
		return nil, err
	}

	set := build.set
	if withTest {
		// A dependency declared for both keeps the test declaration.
		set = dependency.Merge(build.set, test.set)
	}

	snap, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	spinner.Update(fmt.Sprintf("Installing %d dependencies...", set.Len()))
	inst := installer.New(snap,
		installer.WithConcurrency(p.cfg.Vendor.Concurrency),
		installer.WithLogger(p.logger),
	)
	report, err := inst.Install(ctx, set, p.vendorDir())
	spinner.Stop()
	return report, err
}

func printReport(r *installer.Report) {
	printSuccess("Vendored %d dependencies in %s", len(r.Installed)+len(r.Skipped), r.Duration.Round(time.Millisecond))
	printStats(len(r.Installed), len(r.Skipped), len(r.Removed))
	for _, name := range r.Installed {
		printDetail("%s %s", iconArrow, name)
	}
	if len(r.Removed) > 0 {
		printWarning("removed %d stale vendor entries", len(r.Removed))
	}
	printNewline()
}
