// Package main is the offline filter builder. It scans every handle in
// the authoritative store, builds a Bloom filter at the configured
// false positive rate, and writes the snapshot the serving process
// loads at startup.
package main

import (
	"context"
	"flag"
	"time"

	"AvailGate/internal/biz"
	"AvailGate/internal/conf"
	"AvailGate/internal/data"
	zapLogger "AvailGate/pkg/log"

	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

var (
	flagconf    string
	flagTimeout time.Duration
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.DurationVar(&flagTimeout, "timeout", 30*time.Minute, "maximum build duration")
}

func main() {
	flag.Parse()

	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	logger := zapLogger.NewKratosAdapter(zapLog)
	helper := log.NewHelper(logger)

	db, cleanup, err := data.NewPostgresClient(bc.Data, logger)
	if err != nil {
		helper.Fatalw("failed to connect to the authoritative store", "error", err)
	}
	defer cleanup()

	repo := data.NewHandleRepo(db, logger)
	store := data.NewFilterStore(bc.Filter, logger)
	task := biz.NewRebuildTask(bc.Filter, repo, store, logger)

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	meta, err := task.Rebuild(ctx)
	if err != nil {
		helper.Fatalw("filter build failed", "error", err)
	}

	helper.Infow("filter snapshot written",
		"path", bc.Filter.SnapshotPath,
		"keys", meta.Keys,
		"bits", meta.Bits,
		"hashes", meta.Hashes,
		"target_rate", meta.TargetRate)
}
