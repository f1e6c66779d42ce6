package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stewardhq/steward/internal/agent"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/llm"
	"github.com/stewardhq/steward/internal/queue"
	"github.com/stewardhq/steward/internal/store"
	"github.com/stewardhq/steward/internal/tools"
	"github.com/stewardhq/steward/internal/worker"
)

// engine bundles the wired subsystems a command needs.
type engine struct {
	store  *store.Store
	queue  *queue.Queue
	worker *worker.Worker
	nc     *nats.Conn
}

// close releases broker and database resources.
func (e *engine) close() {
	if e.queue != nil {
		e.queue.Close()
	}
	if e.nc != nil {
		_ = e.nc.Drain()
		e.nc.Close()
	}
	if e.store != nil {
		if db, err := e.store.DB().DB(); err == nil {
			_ = db.Close()
		}
	}
}

// newEngine wires the task store, job queue, model client, tool registry,
// decision engine, and worker from config. The caller owns close().
func newEngine(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*engine, error) {
	e := &engine{}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	e.store = store.New(db, logger)

	if cfg.Database.AutoMigrate {
		if err := e.store.AutoMigrate(ctx); err != nil {
			e.close()
			return nil, err
		}
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("steward"))
	if err != nil {
		e.close()
		return nil, errors.Wrap(err, "connect to NATS")
	}
	e.nc = nc

	q, err := queue.New(ctx, nc, logger,
		queue.WithMaxDeliver(cfg.NATS.MaxDeliver),
		queue.WithConcurrency(cfg.Worker.Concurrency),
	)
	if err != nil {
		e.close()
		return nil, err
	}
	e.queue = q

	client, err := newModelClient(cfg, logger)
	if err != nil {
		e.close()
		return nil, err
	}

	registry, err := newToolRegistry(cfg, logger)
	if err != nil {
		e.close()
		return nil, err
	}

	a := agent.New(e.store, client, registry, logger,
		agent.WithMaxSteps(cfg.Worker.MaxSteps),
		agent.WithModelTimeout(cfg.Model.Timeout),
	)
	e.worker = worker.New(e.store, a, q, logger,
		worker.WithStepDelay(cfg.Worker.StepDelay),
	)

	return e, nil
}

// newModelClient builds the Anthropic client with the key from the
// configured environment variable.
func newModelClient(cfg *config.Config, logger zerolog.Logger) (llm.Client, error) {
	apiKey := os.Getenv(cfg.Model.APIKeyEnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: environment variable %s is not set",
			errors.ErrConfigInvalid, cfg.Model.APIKeyEnvVar)
	}

	return llm.NewAnthropicClient(apiKey, cfg.Model.Name, logger,
		llm.WithTimeout(cfg.Model.Timeout),
	), nil
}

// newToolRegistry builds the registry with built-in tools, extended by the
// configured catalog. Catalog entries without a registered handler are
// rejected: offering the model a tool nothing implements guarantees failed
// steps.
func newToolRegistry(cfg *config.Config, logger zerolog.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry(logger, tools.WithToolTimeout(cfg.Worker.ToolTimeout))
	tools.RegisterBuiltins(registry)

	if cfg.Tools.CatalogPath == "" {
		return registry, nil
	}

	specs, err := tools.LoadCatalog(cfg.Tools.CatalogPath)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		// The catalog refines descriptions and schemas of registered tools.
		if !registry.UpdateSpec(spec) {
			return nil, fmt.Errorf("%w: catalog tool %q has no registered handler",
				errors.ErrCatalogInvalid, spec.Name)
		}
	}

	return registry, nil
}
