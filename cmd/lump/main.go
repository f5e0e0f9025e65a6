// Command lump lists, extracts and edits GRP, WAD and PAK archives.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/meigma/lump/internal/cli"
)

// version is set via ldflags at build time: -ldflags "-X main.version=x.y.z"
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli.New(version).Run(ctx)
}
