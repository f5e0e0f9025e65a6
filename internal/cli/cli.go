// Package cli implements the lump command line with injectable writers for
// testing.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/meigma/lump"
	coredisk "github.com/meigma/lump/core/cache/disk"
	"github.com/meigma/lump/backup"
	"github.com/meigma/lump/internal/config"
)

// errUsage marks errors caused by bad arguments; Run prints usage for them.
var errUsage = errors.New("usage")

// CLI is the lump command line.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error and logs
	Version string
	Args    []string // Command arguments (like os.Args)

	// Exit is called with a non-zero code on failure (defaults to os.Exit).
	Exit func(code int)

	// Config overrides the config file when set.
	Config *config.Config

	logger *slog.Logger

	green  func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	gray   func(a ...any) string
	red    func(a ...any) string
}

// New creates a CLI writing to the process's stdout and stderr.
func New(version string) *CLI {
	return &CLI{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Version: version,
		Args:    os.Args,
		Exit:    os.Exit,
		green:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		gray:    color.New(color.FgHiBlack).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI without colors that records its exit code
// instead of exiting.
func NewForTesting(out, errOut io.Writer, args []string, code *int) *CLI {
	noColor := func(a ...any) string { return fmt.Sprint(a...) }
	return &CLI{
		Out:     out,
		Err:     errOut,
		Version: "test",
		Args:    args,
		Exit:    func(c int) { *code = c },
		green:   noColor,
		yellow:  noColor,
		cyan:    noColor,
		gray:    noColor,
		red:     noColor,
	}
}

// Run executes the command named by Args.
func (c *CLI) Run(ctx context.Context) {
	err := c.run(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(c.Err, "%s %v\n\n", c.red("error:"), err)
		c.usage(c.Err)
		c.Exit(2)
		return
	}
	fmt.Fprintf(c.Err, "%s %v\n", c.red("error:"), err)
	c.Exit(1)
}

func (c *CLI) run(ctx context.Context) error {
	global := flag.NewFlagSet("lump", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	verbose := global.Bool("v", false, "debug logging")
	configPath := global.String("config", "", "config file")
	var args []string
	if len(c.Args) > 1 {
		args = c.Args[1:]
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.usage(c.Out)
			return nil
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(c.Err, &slog.HandlerOptions{Level: level}))

	if global.NArg() == 0 {
		c.usage(c.Out)
		return nil
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	switch cmd {
	case "help":
		c.usage(c.Out)
		return nil
	case "version":
		fmt.Fprintf(c.Out, "lump %s\n", c.Version)
		return nil
	}

	cfg, err := c.loadConfig(*configPath)
	if err != nil {
		return err
	}

	switch cmd {
	case "list", "ls":
		return c.list(ctx, cfg, rest)
	case "info":
		return c.info(ctx, cfg, rest)
	case "check":
		return c.check(ctx, cfg, rest)
	case "extract":
		return c.extract(ctx, cfg, rest)
	case "add":
		return c.add(ctx, cfg, rest)
	case "remove", "rm":
		return c.remove(ctx, cfg, rest)
	case "rename":
		return c.rename(ctx, cfg, rest)
	case "move":
		return c.move(ctx, cfg, rest)
	case "pack":
		return c.pack(ctx, cfg, rest)
	case "convert-format":
		return c.convertFormat(ctx, cfg, rest)
	case "backups":
		return c.backups(cfg, rest)
	case "restore":
		return c.restore(cfg, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (c *CLI) usage(w io.Writer) {
	fmt.Fprintf(w, `%s - Build GRP, Doom WAD and Quake PAK archive tool

%s
  lump [-v] [-config FILE] <command> [flags] [args]

%s
  list [-types] ARCHIVE             List entries (ARCHIVE may be an http(s) URL)
  info ARCHIVE                      Show format and totals
  check ARCHIVE                     Read every entry body
  extract [-convert] [-force] [-empty] [-workers N] ARCHIVE DIR [NAME...]
                                    Write entries to DIR
  add [-name N] [-at I] ARCHIVE FILE...
                                    Add files as entries
  remove ARCHIVE NAME...            Remove entries
  rename ARCHIVE OLD NEW            Rename an entry
  move ARCHIVE NAME INDEX           Move an entry
  pack FORMAT OUT FILE...           Create an archive (grp, wad, iwad, pak)
  convert-format IN FORMAT OUT      Copy every entry into a new format
  backups [ARCHIVE]                 List backed-up archives or snapshots
  restore [-id ID] ARCHIVE DEST     Restore a snapshot
  version                           Show version
  help                              Show this help
`, c.cyan("lump"), c.yellow("Usage:"), c.yellow("Commands:"))
}

func (c *CLI) loadConfig(path string) (*config.Config, error) {
	if c.Config != nil {
		return c.Config, nil
	}
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// client builds a lump client from cfg.
func (c *CLI) client(cfg *config.Config) (*lump.Client, error) {
	opts := []lump.Option{
		lump.WithLogger(c.logger),
		lump.WithLoadConcurrency(max(cfg.LoadConcurrency, 1)),
	}
	if cfg.LoadPolicy == "eager" {
		opts = append(opts, lump.WithLoadPolicy(lump.LoadEager))
	}
	if cfg.RulesFile != "" {
		opts = append(opts, lump.WithRulesFile(config.ExpandPath(cfg.RulesFile)))
	}
	if cfg.CacheDir != "" {
		cache, err := coredisk.New(config.ExpandPath(cfg.CacheDir),
			coredisk.WithMaxBytes(cfg.CacheMaxBytes),
			coredisk.WithCompression(true),
		)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		opts = append(opts, lump.WithCache(cache))
	}
	if cfg.Backup.Enabled && cfg.Backup.Dir != "" {
		compression, err := backup.ParseCompression(cfg.Backup.Compression)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lump.WithBackupDir(config.ExpandPath(cfg.Backup.Dir),
			backup.WithKeepLast(cfg.Backup.KeepLast),
			backup.WithCompression(compression),
		))
	}
	return lump.NewClient(opts...)
}

// open opens a local path or an http(s) URL.
func (c *CLI) open(ctx context.Context, cfg *config.Config, target string) (*lump.Archive, error) {
	client, err := c.client(cfg)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return client.OpenURL(ctx, target)
	}
	return client.Open(target)
}

// newFlags returns a flag set for a subcommand that reports parse errors
// as usage errors.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, minArgs int) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %w", errUsage, fs.Name(), err)
	}
	if fs.NArg() < minArgs {
		return fmt.Errorf("%w: %s needs at least %d argument(s)", errUsage, fs.Name(), minArgs)
	}
	return nil
}
