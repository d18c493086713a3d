package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/govend/pkg/dependency"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var flat bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve dependencies and print the graph",
		Long: `Resolve the build and test dependencies of the project to pinned revisions
and print the dependency graph. Nothing is written to the vendor directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), os.Stdout, flat)
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "print the flattened set instead of the graph")
	return cmd
}

func (c *CLI) runResolve(ctx context.Context, w io.Writer, flat bool) error {
	p, err := c.openProject(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	prog := newProgress(p.logger)
	build, test, err := p.resolveSets(ctx)
	if err != nil {
		return err
	}
	merged := dependency.Merge(build.set, test.set)
	prog.done("resolved dependencies", "count", merged.Len())

	for _, s := range []struct {
		title string
		set   *installSet
	}{{"build", build}, {"test", test}} {
		if len(s.set.roots) == 0 {
			continue
		}
		fmt.Fprintln(w, StyleTitle.Render(s.title))
		if flat {
			s.set.set.ForEach(func(d *dependency.Resolved) { printResolved(w, d, 1, "") })
			continue
		}
		seen := make(map[string]bool)
		for _, root := range s.set.roots {
			printTree(w, root, 1, seen)
		}
	}
	printNextStep("Vendor them", appName+" install")
	return nil
}

// printTree prints d and its children. Dependencies printed before are
// marked and not expanded again, which also cuts cycles.
func printTree(w io.Writer, d *dependency.Resolved, depth int, seen map[string]bool) {
	if seen[d.Name()] {
		printResolved(w, d, depth, " (*)")
		return
	}
	seen[d.Name()] = true
	printResolved(w, d, depth, "")
	for _, child := range d.Children() {
		printTree(w, child, depth+1, seen)
	}
}

func printResolved(w io.Writer, d *dependency.Resolved, depth int, suffix string) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintln(w, indent+StyleValue.Render(d.Name())+" "+
		StyleHighlight.Render(d.Version().String())+" "+
		StyleDim.Render(d.Package().Location()+suffix))
}
