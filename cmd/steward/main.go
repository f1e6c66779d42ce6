// Package main provides the entry point for the steward CLI.
package main

import (
	"context"
	"os"

	"github.com/stewardhq/steward/internal/cli"
)

// Build information set via ldflags.
var (
	version = "" //nolint:gochecknoglobals // Set at build time
	commit  = "" //nolint:gochecknoglobals // Set at build time
	date    = "" //nolint:gochecknoglobals // Set at build time
)

func main() {
	ctx := context.Background()
	info := cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
	if err := cli.Execute(ctx, info); err != nil {
		os.Exit(1)
	}
}
