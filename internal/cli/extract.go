package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/meigma/lump"
	lumpcore "github.com/meigma/lump/core"
	"github.com/meigma/lump/convert"
	"github.com/meigma/lump/internal/config"
)

// dmxToWAV converts DMX sound entries to WAV files.
var dmxToWAV = lumpcore.Converter{
	Type:    "dmx_sound",
	Suffix:  ".wav",
	Convert: convert.DMXToWAV,
}

func (c *CLI) extract(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("extract")
	convertSounds := fs.Bool("convert", false, "write DMX sounds as WAV")
	force := fs.Bool("force", false, "overwrite existing files")
	empty := fs.Bool("empty", false, "write zero-size entries as empty files")
	workers := fs.Int("workers", 0, "parallel writers (0: one per CPU)")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	a, err := c.open(ctx, cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := selectEntries(a, fs.Args()[2:])
	if err != nil {
		return err
	}
	opts := []lumpcore.CopyOption{
		lumpcore.CopyWithOverwrite(*force),
		lumpcore.CopyWithEmpty(*empty),
		lumpcore.CopyWithWorkers(*workers),
	}
	if *convertSounds {
		opts = append(opts, lumpcore.CopyWithConverter(dmxToWAV))
	}

	dest := fs.Arg(1)
	stats, err := a.CopyTo(ctx, dest, entries, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s %d entries to %s", c.green("Extracted"), stats.Written+stats.Converted, dest)
	if stats.Converted > 0 {
		fmt.Fprintf(c.Out, " (%d converted)", stats.Converted)
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(c.Out, " %s", c.gray(fmt.Sprintf("(%d existing skipped)", stats.Skipped)))
	}
	fmt.Fprintln(c.Out)
	return nil
}

// selectEntries returns every entry matching one of names, or all entries
// when names is empty.
func selectEntries(a *lump.Archive, names []string) ([]*lump.Entry, error) {
	if len(names) == 0 {
		return a.Entries(), nil
	}
	var out []*lump.Entry
	for _, name := range names {
		found := false
		for _, e := range a.All() {
			if strings.EqualFold(e.Name(), name) {
				out = append(out, e)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("no entry %q", name)
		}
	}
	return out, nil
}
