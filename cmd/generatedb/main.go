// SPDX-License-Identifier: GPL-3.0-only

// Command generatedb imports the ARCEP extracts into the lookup snapshot.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whoistel/commons"
	"whoistel/db"
	"whoistel/importer"
)

func main() {
	opts := importer.Options{}
	flag.StringVar(&opts.Dir, "dir", commons.GetEnv("ARCEP_DIR", "arcep"), "Directory holding the ARCEP and INSEE CSV extracts")
	flag.StringVar(&opts.Out, "out", db.SnapshotPath(), "Snapshot database to write")
	flag.IntVar(&opts.BatchSize, "batch-size", 500, "Rows per insert batch")
	flag.String("env-file", "", "Environment file")
	flag.Parse()
	commons.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := importer.Run(ctx, opts)
	if err != nil {
		commons.Logger.Errorf("Import failed: %v", err)
		stop()
		os.Exit(1)
	}
	commons.Logger.Infof("Snapshot written to %s in %s: %d operators, %d geographic ranges, %d non-geographic ranges, %d communes, %d rows skipped",
		opts.Out, time.Since(start).Round(time.Millisecond),
		stats.Operators, stats.GeographicRanges, stats.NonGeographicRanges, stats.Communes, stats.Skipped)
}
