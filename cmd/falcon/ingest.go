package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/falconwiki/falcon/internal/config"
	"github.com/falconwiki/falcon/internal/ingest"
	"github.com/falconwiki/falcon/internal/store"
)

// runIngest is component 2's standalone CLI entrypoint (spec §4.6):
// clone, walk, filter, and bulk-load one repository, independent of
// the wiki generation pipeline. Grounded on the teacher's index.go:
// a progress bar driven by a callback, humanized byte/duration
// summaries on completion.
func runIngest(args []string) int {
	fs := newFlagSet("ingest")
	dbPath := fs.String("database", "", "Override FALCON_DATABASE_PATH for this run")
	quiet := fs.Bool("quiet", false, "Suppress the progress bar")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: falcon ingest [--database path] [--quiet] <repository-url>")
		return 1
	}
	url := rest[0]

	cfg := config.Load()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "falcon ingest: open store: %v\n", err)
		return 1
	}
	defer st.Close()

	ig := ingest.New(st, cfg.MaxFileSize, nil)

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("cloning + ingesting"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					_ = bar.Add(1)
				}
			}
		}()
	}

	started := time.Now()
	result, err := ig.Ingest(ctx, url)
	elapsed := time.Since(started)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		color.Red("falcon ingest: %v\n", err)
		return 1
	}

	if result.AlreadyExists {
		color.Yellow("repo already ingested: %s (%d files)\n", result.RepoID, result.FileCount)
		return 0
	}

	color.Green("ingested %s: %s files in %s\n",
		result.RepoID,
		humanize.Comma(int64(result.FileCount)),
		elapsed.Round(time.Millisecond))
	return 0
}
