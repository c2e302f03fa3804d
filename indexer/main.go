package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/deidaraiorek/deindex/internal/config"
	"github.com/deidaraiorek/deindex/internal/spider"
	"github.com/deidaraiorek/deindex/internal/storage"
	"github.com/deidaraiorek/deindex/search"
	"github.com/go-co-op/gocron/v2"
	slogctx "github.com/veqryn/slog-context"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	level, _ := cfg.LogLevel()
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(slogctx.NewHandler(handler, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slogctx.Error(ctx, "Indexer failed", "error", err)
		logFile.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slogctx.Info(ctx, "Starting indexer",
		"spiderDb", cfg.Spider.Path, "indexDb", cfg.Database.Path, "batchSize", cfg.Spider.BatchSize)

	db, err := storage.NewIndexDB(cfg.Database.Path, cfg.Database.Prefix)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := search.New(db, cfg.Index)
	if err != nil {
		return err
	}

	pages, err := spider.Open(cfg.Spider.Path)
	if err != nil {
		return err
	}
	defer pages.Close()

	ix := &indexer{
		db:        db,
		engine:    engine,
		pages:     pages,
		batchSize: cfg.Spider.BatchSize,
		format:    cfg.Spider.Format,
	}

	indexed, err := ix.Pass(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	slogctx.Info(ctx, "Indexing completed", "indexed", indexed)

	if !cfg.Schedule.Enabled {
		return engine.Optimize(ctx)
	}
	return watch(ctx, cfg, ix, engine)
}

// watch runs index and optimize passes on their intervals until ctx is done.
func watch(ctx context.Context, cfg *config.Config, ix *indexer, engine *search.Engine) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	_, err = scheduler.NewJob(gocron.DurationJob(cfg.Schedule.IndexInterval), gocron.NewTask(func() {
		ctx := slogctx.Append(ctx, "job", "index")
		indexed, err := ix.Pass(ctx)
		if err != nil {
			slogctx.Error(ctx, "Error indexing pages", "error", err)
			return
		}
		if indexed > 0 {
			slogctx.Info(ctx, "Indexed new pages", "indexed", indexed)
		}
	}))
	if err != nil {
		return fmt.Errorf("failed to create gocron job: %w", err)
	}

	_, err = scheduler.NewJob(gocron.DurationJob(cfg.Schedule.OptimizeInterval), gocron.NewTask(func() {
		ctx := slogctx.Append(ctx, "job", "optimize")
		if err := engine.Optimize(ctx); err != nil {
			slogctx.Error(ctx, "Error optimizing index", "error", err)
		}
	}))
	if err != nil {
		return fmt.Errorf("failed to create gocron job: %w", err)
	}

	scheduler.Start()
	slogctx.Info(ctx, "Watching for new pages",
		"indexInterval", cfg.Schedule.IndexInterval, "optimizeInterval", cfg.Schedule.OptimizeInterval)

	<-ctx.Done()
	slogctx.Info(ctx, "Shutting down")
	return scheduler.Shutdown()
}
