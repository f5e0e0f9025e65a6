package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/meigma/lump/backup"
	"github.com/meigma/lump/internal/config"
)

func (c *CLI) store(cfg *config.Config) (*backup.Store, error) {
	if cfg.Backup.Dir == "" {
		return nil, errors.New("backups are not configured (backup.dir is empty)")
	}
	return backup.New(config.ExpandPath(cfg.Backup.Dir), backup.WithLogger(c.logger))
}

func (c *CLI) backups(cfg *config.Config, args []string) error {
	fs := newFlags("backups")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	store, err := c.store(cfg)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 {
		names, err := store.Archives()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(c.Out, c.gray("No backups."))
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(c.Out, name)
		}
		return nil
	}

	snaps, err := store.List(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintf(c.Out, "%s\n", c.gray("No snapshots of "+fs.Arg(0)+"."))
		return nil
	}
	tw := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSIZE\tCOMPRESSION\tDIGEST")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Size, s.Compression, s.Digest.Encoded()[:12])
	}
	return tw.Flush()
}

func (c *CLI) restore(cfg *config.Config, args []string) error {
	fs := newFlags("restore")
	id := fs.String("id", "", "snapshot id (default: newest)")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	store, err := c.store(cfg)
	if err != nil {
		return err
	}
	if err := store.Restore(fs.Arg(0), *id, fs.Arg(1)); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s %s to %s\n", c.green("Restored"), fs.Arg(0), fs.Arg(1))
	return nil
}
