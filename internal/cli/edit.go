package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/meigma/lump"
	"github.com/meigma/lump/internal/config"
)

func (c *CLI) add(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("add")
	name := fs.String("name", "", "entry name (single file only)")
	at := fs.Int("at", -1, "insert position (default: append)")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	files := fs.Args()[1:]
	if *name != "" && len(files) > 1 {
		return fmt.Errorf("%w: add -name takes a single file", errUsage)
	}

	return c.edit(ctx, cfg, fs.Arg(0), func(a *lump.Archive) error {
		index := *at
		for _, file := range files {
			data, err := os.ReadFile(file) //nolint:gosec // user-supplied input file
			if err != nil {
				return err
			}
			entryName := *name
			if entryName == "" {
				entryName = filepath.Base(file)
			}
			c.warnTruncation(a, entryName)
			if _, err := a.AddEntry(entryName, data, index); err != nil {
				return err
			}
			if index >= 0 {
				index++
			}
		}
		return nil
	})
}

func (c *CLI) remove(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("remove")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	return c.edit(ctx, cfg, fs.Arg(0), func(a *lump.Archive) error {
		for _, name := range fs.Args()[1:] {
			e, err := findEntry(a, name)
			if err != nil {
				return err
			}
			if err := a.RemoveEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *CLI) rename(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("rename")
	if err := parse(fs, args, 3); err != nil {
		return err
	}
	return c.edit(ctx, cfg, fs.Arg(0), func(a *lump.Archive) error {
		e, err := findEntry(a, fs.Arg(1))
		if err != nil {
			return err
		}
		c.warnTruncation(a, fs.Arg(2))
		return a.RenameEntry(e, fs.Arg(2))
	})
}

func (c *CLI) move(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("move")
	if err := parse(fs, args, 3); err != nil {
		return err
	}
	index, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		return fmt.Errorf("%w: move index %q", errUsage, fs.Arg(2))
	}
	return c.edit(ctx, cfg, fs.Arg(0), func(a *lump.Archive) error {
		e, err := findEntry(a, fs.Arg(1))
		if err != nil {
			return err
		}
		return a.MoveEntry(e, index)
	})
}

func (c *CLI) pack(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("pack")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	client, err := c.client(cfg)
	if err != nil {
		return err
	}
	a, err := client.Create(fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	for _, file := range fs.Args()[2:] {
		data, err := os.ReadFile(file) //nolint:gosec // user-supplied input file
		if err != nil {
			return err
		}
		name := filepath.Base(file)
		c.warnTruncation(a, name)
		if _, err := a.AddEntry(name, data, -1); err != nil {
			return err
		}
	}
	return c.saveAs(ctx, a, fs.Arg(1))
}

func (c *CLI) convertFormat(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("convert-format")
	if err := parse(fs, args, 3); err != nil {
		return err
	}
	src, err := c.open(ctx, cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	defer src.Close()

	client, err := c.client(cfg)
	if err != nil {
		return err
	}
	dst, err := client.Create(fs.Arg(1))
	if err != nil {
		return err
	}
	defer dst.Close()

	for _, e := range src.All() {
		data, err := src.ReadEntry(e)
		if err != nil {
			return err
		}
		c.warnTruncation(dst, e.Name())
		if _, err := dst.AddEntry(e.Name(), data, -1); err != nil {
			return err
		}
	}
	return c.saveAs(ctx, dst, fs.Arg(2))
}

// edit opens path, applies fn and saves the result in place.
func (c *CLI) edit(ctx context.Context, cfg *config.Config, path string, fn func(*lump.Archive) error) error {
	client, err := c.client(cfg)
	if err != nil {
		return err
	}
	a, err := client.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(a); err != nil {
		return err
	}
	if err := a.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s %s (%d entries)\n", c.green("Saved"), path, a.EntryCount())
	return nil
}

func (c *CLI) saveAs(ctx context.Context, a *lump.Archive, path string) error {
	if err := a.SaveAs(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s %s (%d entries)\n", c.green("Wrote"), path, a.EntryCount())
	return nil
}

func (c *CLI) warnTruncation(a *lump.Archive, name string) {
	if limit := a.Format().MaxNameLen(); len(name) > limit {
		fmt.Fprintf(c.Err, "%s %q is longer than %d bytes and will be truncated to %q\n",
			c.yellow("warning:"), name, limit, name[:limit])
	}
}

func findEntry(a *lump.Archive, name string) (*lump.Entry, error) {
	e := a.Entry(name)
	if e == nil {
		return nil, fmt.Errorf("no entry %q", name)
	}
	return e, nil
}
