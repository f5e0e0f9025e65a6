package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/meigma/lump"
	lumpcore "github.com/meigma/lump/core"
	"github.com/meigma/lump/internal/config"
)

func (c *CLI) list(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("list")
	types := fs.Bool("types", false, "classify entries (reads every body)")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	a, err := c.open(ctx, cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	header := "#\tNAME\tSIZE\tOFFSET"
	if *types {
		header += "\tTYPE"
	}
	fmt.Fprintln(tw, header)
	for i, e := range a.All() {
		offset := "-"
		if off, ok := e.Offset(); ok {
			offset = fmt.Sprint(off)
		}
		line := fmt.Sprintf("%d\t%s\t%d\t%s", i, e.Name(), e.Size(), offset)
		if *types {
			typ, err := a.Classify(e)
			if err != nil {
				return err
			}
			line += "\t" + typ
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func (c *CLI) info(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("info")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	a, err := c.open(ctx, cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	var total int64
	var markers int
	for _, e := range a.All() {
		total += e.Size()
		if e.Size() == 0 {
			markers++
		}
	}
	fmt.Fprintf(c.Out, "%s %s\n", c.cyan("Archive:"), fs.Arg(0))
	fmt.Fprintf(c.Out, "%s %s\n", c.cyan("Format: "), formatLabel(a))
	fmt.Fprintf(c.Out, "%s %d (%d empty)\n", c.cyan("Entries:"), a.EntryCount(), markers)
	fmt.Fprintf(c.Out, "%s %d bytes\n", c.cyan("Data:   "), total)
	return nil
}

// formatLabel names the archive's format and its variant, if any.
func formatLabel(a *lump.Archive) string {
	type variant interface{ Variant() string }
	if v, ok := a.Format().(variant); ok {
		return a.Format().Name() + " (" + v.Variant() + ")"
	}
	return a.Format().Name()
}

func (c *CLI) check(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("check")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	a, err := c.open(ctx, cfg, fs.Arg(0))
	if errors.Is(err, lump.ErrUnknownFormat) {
		if diag := diagnose(fs.Arg(0)); diag != nil {
			return diag
		}
	}
	if err != nil {
		return err
	}
	defer a.Close()

	var failed int
	for _, e := range a.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.LoadEntryData(e); err != nil {
			failed++
			fmt.Fprintf(c.Out, "%s %s: %v\n", c.red("FAIL"), e.Name(), err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d entries unreadable", failed, a.EntryCount())
	}
	fmt.Fprintf(c.Out, "%s %d entries readable\n", c.green("OK"), a.EntryCount())
	return nil
}

// diagnose parses path as the format its extension names. Detection
// rejects a damaged file outright; parsing it as the expected format
// reports what is wrong with it instead.
func diagnose(path string) error {
	f, err := lumpcore.FormatForPath(path)
	if err != nil {
		return nil
	}
	file, err := os.Open(path) //nolint:gosec // user-supplied archive path
	if err != nil {
		return nil
	}
	defer file.Close()
	src, err := lumpcore.NewReadSeekerSource(file)
	if err != nil {
		return nil
	}
	a, err := lumpcore.OpenFormat(src, f)
	if err != nil {
		return fmt.Errorf("%s as %s: %w", path, f.Name(), err)
	}
	_ = a.Close()
	return nil
}
