package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jvlax/motord/internal/catalog"
	"github.com/jvlax/motord/internal/config"
	"github.com/jvlax/motord/internal/fanout"
	"github.com/jvlax/motord/internal/httpapi"
	"github.com/jvlax/motord/internal/hub"
	"github.com/jvlax/motord/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	words, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	langs := words.Languages()
	logger.Info("catalog loaded",
		zap.Int("words", words.Len()),
		zap.Strings("languages", langs[:]),
	)
	if !catalog.KnownDifficulty(cfg.Game.Difficulty) {
		logger.Warn("default difficulty draws from the full range", zap.String("difficulty", cfg.Game.Difficulty))
	}

	registry := fanout.NewRegistry(logger.Named("fanout"))
	h := hub.NewHub(ctx, hub.Config{
		Words:     words,
		Publisher: registry,
		Settings:  cfg.Game,
		Logger:    logger.Named("lobby"),
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:    h,
		Logger: logger.Named("http"),
		WS: ws.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			ReadTimeout:    cfg.HeartbeatTimeout,
			RatePerSec:     cfg.WSRatePerSec,
			Burst:          cfg.WSBurst,
		},
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return h.RunSweeper(gctx, cfg.SweepInterval, cfg.HeartbeatTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadCatalog prefers the database when CATALOG_DSN is set.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	var (
		entries []catalog.WordEntry
		err     error
	)
	if cfg.CatalogDSN != "" {
		entries, err = catalog.LoadPostgres(ctx, cfg.CatalogDSN)
	} else {
		entries, err = catalog.LoadJSONLFile(cfg.WordlistPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return catalog.New(entries, cfg.Languages)
}
