package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

// snapshotCommand creates the snapshot management command.
func (c *CLI) snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect the vendor snapshot",
		Long: `The snapshot records which revision of every dependency is installed in the
vendor directory. Clearing it makes the next install fetch everything again.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List the recorded dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSnapshotShow(cmd.Context(), os.Stdout)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print where the snapshot is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSnapshot(cmd.Context(), func(ctx context.Context, s snapshotView) error {
				fmt.Println(s.Location())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the recorded dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSnapshot(cmd.Context(), func(ctx context.Context, s snapshotView) error {
				if err := s.Clear(ctx); err != nil {
					return err
				}
				printSuccess("Cleared snapshot")
				printDetail("Location: %s", s.Location())
				return nil
			})
		},
	})

	return cmd
}

// snapshotView is the part of the snapshot cache the commands use.
type snapshotView interface {
	Location() string
	Clear(ctx context.Context) error
}

func (c *CLI) withSnapshot(ctx context.Context, fn func(context.Context, snapshotView) error) error {
	p, err := c.openProject(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	snap, err := p.snapshot(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, snap)
}

func (c *CLI) runSnapshotShow(ctx context.Context, w io.Writer) error {
	p, err := c.openProject(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	snap, err := p.snapshot(ctx)
	if err != nil {
		return err
	}
	snap.Load(ctx)
	entries := snap.Entries()
	if len(entries) == 0 {
		printInfo("Snapshot is empty")
		return nil
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := entries[name]
		fmt.Fprintln(w, StyleValue.Render(name)+" "+StyleHighlight.Render(e.Revision))
		fmt.Fprintln(w, "  "+StyleDim.Render(e.Origin+"  "+e.InstalledAt.Format("2006-01-02 15:04:05")))
	}
	return nil
}
