package app

import (
	"context"
	"fmt"
	"net/http"

	"fame/internal/config"
	"fame/internal/database"
	"fame/internal/diet"
	"fame/internal/llm"
	"fame/internal/metrics"
	"fame/internal/notify"
	"fame/internal/planner"
	"fame/internal/profile"
	"fame/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Bootstrap opens the database and archive and wires every collaborator
// from cfg. Provider metrics go to reg when it is not nil. The returned
// function releases the database.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, func(), error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}

	archive, err := storage.NewPlanArchive(cfg.ArchivePath)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to initialize plan archive: %w", err)
	}

	mailer, err := notify.New(ctx, cfg, logger)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to initialize mail sender: %w", err)
	}

	client := llm.NewClient(llm.DefaultProviders(&http.Client{Timeout: cfg.ProviderTimeout}), cfg.ProviderTimeout, logger)
	var collector *metrics.ProviderCollector
	if reg != nil {
		collector = metrics.NewProviderCollector(reg)
		client.SetObserver(collector)
	}

	composer := planner.NewPromptComposer(cfg.PromptTemplatePath)
	if composer.UsesDefault() {
		logger.Info("using the built-in prompt template", zap.String("path", cfg.PromptTemplatePath))
	}

	plans := planner.NewPlanRepository(db.SQL)
	a := NewApp(Dependencies{
		Profiles:  profile.NewRepository(db.SQL),
		Plans:     plans,
		Planner:   planner.NewPlanner(composer, client, plans, logger),
		Importer:  diet.NewImporter(nil),
		Archive:   archive,
		Metrics:   metrics.NewStore(db.SQL),
		Collector: collector,
		Mailer:    mailer,
		Config:    cfg,
		Logger:    logger,
	})
	return a, closeDB, nil
}
