package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/config"
	"github.com/lexiworks/lexisurvey/internal/discriminator"
	"github.com/lexiworks/lexisurvey/internal/embedding"
	"github.com/lexiworks/lexisurvey/internal/itembank"
	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/scoring"
	"github.com/lexiworks/lexisurvey/internal/store"
	"github.com/lexiworks/lexisurvey/internal/survey"
	"github.com/lexiworks/lexisurvey/internal/telemetry"
)

// engine is a fully wired assessment service and the resources it holds.
type engine struct {
	svc     *assessment.Service
	backend store.Backend
	closers []func() error
}

func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// buildEngine opens the item bank and session store described by cfg and
// wires the assessment service over them. reg may be nil.
func buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*engine, error) {
	e := &engine{}
	fail := func(err error) (*engine, error) {
		e.Close()
		return nil, err
	}

	var metrics *telemetry.Metrics
	if reg != nil {
		metrics = telemetry.New(reg)
	}

	repo, closeRepo, err := openRepository(ctx, cfg.ItemBank)
	if err != nil {
		return fail(err)
	}
	if closeRepo != nil {
		e.closers = append(e.closers, closeRepo)
	}

	repo, err = withEmbeddings(ctx, repo, cfg.Embedding, logger)
	if err != nil {
		return fail(err)
	}

	checker := discriminator.New(repo, discriminator.Options{
		Logger:     logger,
		OnFallback: metrics.Fallback,
	})
	controller, err := survey.NewController(repo, survey.Options{
		Schedule:     cfg.Survey.Schedule,
		StartRank:    cfg.Survey.StartRank,
		Window:       cfg.Survey.Window,
		Logger:       logger,
		OnSubstitute: metrics.Substituted,
	})
	if err != nil {
		return fail(err)
	}
	genCfg := cfg.Generator
	genCfg.Window = controller.Window()
	generator := questiongen.New(repo, checker, genCfg,
		questiongen.WithLogger(logger),
		questiongen.WithHooks(metrics.Degraded, metrics.Rejected),
	)
	fitter, err := scoring.NewFitter(cfg.Scoring)
	if err != nil {
		return fail(err)
	}

	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fail(fmt.Errorf("open session store: %w", err))
	}
	e.backend = backend
	e.closers = append(e.closers, backend.Close)

	e.svc, err = assessment.New(assessment.Deps{
		Repo:       repo,
		Store:      backend,
		Events:     backend,
		Controller: controller,
		Generator:  generator,
		Scoring:    []scoring.Option{scoring.WithFitter(fitter)},
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return fail(err)
	}
	logger.Debug("engine ready",
		"item_source", cfg.ItemBank.Source,
		"store", cfg.Store.Driver,
		"checker", checker.Name(),
		"scoring", fitter.Name(),
	)
	return e, nil
}

// openRepository returns the configured item bank and, for networked
// sources, a function releasing its connection.
func openRepository(ctx context.Context, cfg config.ItemBankConfig) (itembank.Repository, func() error, error) {
	switch cfg.Source {
	case config.SourceFile:
		repo, err := itembank.LoadFile(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	case config.SourceMongo:
		coll, disconnect, err := connectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		repo, err := itembank.NewMongoRepository(ctx, coll)
		if err != nil {
			disconnect()
			return nil, nil, err
		}
		return repo, disconnect, nil
	default:
		return itembank.Seed(), nil, nil
	}
}

func connectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Collection, func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	disconnect := func() error { return client.Disconnect(context.Background()) }
	if err := client.Ping(ctx, nil); err != nil {
		disconnect()
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = itembank.DefaultMongoCollection
	}
	return client.Database(cfg.Database).Collection(collection), disconnect, nil
}

// withEmbeddings decorates repo with computed vectors when an embedding
// provider is configured and the bank carries none of its own.
func withEmbeddings(ctx context.Context, repo itembank.Repository, cfg embedding.Config, logger *slog.Logger) (itembank.Repository, error) {
	if es, ok := repo.(itembank.EmbeddingStore); ok && es.HasEmbeddings() {
		return repo, nil
	}
	embedder, err := embedding.NewEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return repo, nil
	}
	computed, err := itembank.WithComputedEmbeddings(repo, embedder, logger)
	if err != nil {
		warn("%v; distractors will be checked lexically", err)
		return repo, nil
	}
	return computed, nil
}
