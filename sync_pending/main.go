package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/janneta/canvass/config"
	"github.com/janneta/canvass/docstore"
	"github.com/janneta/canvass/localcache"
	"github.com/janneta/canvass/pendingwrites"
	"go.uber.org/zap"
)

func main() {
	list := flag.Bool("list", false, "only list the pending writes")
	storeCfg := config.StoreFlags(flag.CommandLine)
	flag.Parse()
	if err := config.LoadEnvFile(config.EnvFile); err != nil {
		log.Fatal(err)
	}
	if err := storeCfg.Resolve(); err != nil {
		log.Fatal(err)
	}
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %q", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	ctx := context.Background()
	cache, err := localcache.Open(storeCfg.CachePath)
	if err != nil {
		logger.Fatalf("failed to open local cache: %q", err)
	}
	defer cache.Close()
	store, closeStore, err := docstore.Open(ctx, storeCfg.Options())
	if err != nil {
		logger.Fatalf("failed to open %s store: %q", storeCfg.Driver, err)
	}
	defer closeStore()
	queue := pendingwrites.New(cache.DB(), store, logger)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	code := run(ctx, queue, *list, os.Stdout, s)
	if code != 0 {
		zl.Sync()
		cache.Close()
		closeStore()
		os.Exit(code)
	}
}

type indicator interface {
	Start()
	Stop()
}

// run prints the pending writes and, unless listOnly, syncs them. It
// returns the process exit code: 1 when some writes are still pending.
func run(ctx context.Context, queue *pendingwrites.Queue, listOnly bool, out io.Writer, ind indicator) int {
	entries, err := queue.List(ctx)
	if err != nil {
		fmt.Fprintf(out, "failed to list pending writes: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%d pending writes\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "  %s/%s  queued %s\n", e.Collection, e.DocID, humanize.Time(time.UnixMilli(e.LastUpdated)))
	}
	if listOnly || len(entries) == 0 {
		return 0
	}
	ind.Start()
	res, err := queue.SyncAll(ctx)
	ind.Stop()
	fmt.Fprintf(out, "synced %d, failed %d\n", res.Synced, len(res.Failed))
	if err != nil {
		fmt.Fprintf(out, "%v\n", err)
		return 1
	}
	return 0
}
