// Command importer ingests FIT activity files from the command line, for
// backfills and local use. The schema under db/postgres/migrations must be
// applied first.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitingest/internal/config"
	"example.com/fitingest/internal/decoder/fitfile"
	"example.com/fitingest/internal/ingest"
	"example.com/fitingest/internal/persistence/postgres"
)

func main() {
	flag.Parse()
	paths := flag.Args()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(paths) == 0 {
		logger.Error("usage: importer <file.fit> [file.fit ...]")
		os.Exit(2)
	}

	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.New(pool,
		postgres.WithLogger(logger),
		postgres.WithMaxRetries(uint64(cfg.UpsertMaxRetries)))
	ingestor := ingest.NewIngestor(store, store, store, ingest.WithLogger(logger))

	failed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read failed", "path", path, "error", err)
			failed++
			continue
		}
		file, err := fitfile.Decode(path, data)
		if err != nil {
			logger.Error("decode failed", "path", path, "error", err)
			failed++
			continue
		}
		res, err := ingestor.IngestFile(ctx, file)
		if err != nil {
			logger.Error("ingest failed", "path", path, "error", err)
			failed++
			continue
		}
		logger.Info("ingested",
			"path", path,
			"activity_id", res.ActivityID,
			"messages", res.Messages,
			"warnings", len(res.Warnings))
	}

	if failed > 0 {
		logger.Error("some files failed", "failed", failed, "total", len(paths))
		os.Exit(1)
	}
}
