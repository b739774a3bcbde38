package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"forecast/internal/amqp"
	"forecast/internal/cache"
	"forecast/internal/core"
	"forecast/internal/metrics"
	"forecast/internal/services"
	"forecast/internal/sheets"
	gsheet "forecast/internal/sheets/google"
	"forecast/internal/sheets/memory"
	"forecast/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the repository and builds the services on top of
// it. Resources acquired before a failure are released.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	b := &Backend{Repo: repo, Caches: cache.NewManager()}
	if config.MetricsEnabled {
		b.Metrics = metrics.New(prometheus.NewRegistry())
	}

	b.Exporter, err = f.createExporter(ctx, config)
	if err != nil {
		repo.Close()
		return nil, err
	}

	b.Queue, err = f.createQueue(config, b.Metrics)
	if err != nil {
		repo.Close()
		return nil, err
	}

	size, ttl := config.LedgerCacheSize, config.LedgerCacheTTL
	if size < 1 {
		size = defaultLedgerCacheSize
	}
	if ttl <= 0 {
		ttl = defaultLedgerCacheTTL
	}
	ledgerCache := cache.NewLRUCache[[]core.ProjectionEntry](size, ttl)
	b.Caches.Register(ledgerCache)

	projOpts := []services.ProjectionOption{
		services.WithLedgerCache(ledgerCache),
		services.WithConcurrency(config.Concurrency),
		services.WithBatchSize(config.BatchSize),
	}
	stmtOpts := []services.StatementOption{}
	if b.Metrics != nil {
		projOpts = append(projOpts, services.WithMetrics(b.Metrics))
		stmtOpts = append(stmtOpts, services.WithStatementMetrics(b.Metrics))
	}
	if b.Exporter != nil {
		stmtOpts = append(stmtOpts, services.WithExporter(b.Exporter))
	}

	b.Projections = services.NewProjectionService(repo, repo, config.Business.Policy, projOpts...)
	b.Statements = services.NewStatementService(repo, repo, repo, config.Business, stmtOpts...)
	b.Budgets = services.NewBudgetService(repo, repo)

	// A nil *amqp.Client must not reach the publisher as a non-nil
	// interface.
	var queue services.RecalcPublisher
	if b.Queue != nil {
		queue = b.Queue
	}
	b.Publisher = services.NewPublisher(queue, b.Projections)

	b.Cleanup = func() error {
		var errs []error
		if b.Queue != nil {
			if err := b.Queue.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close AMQP client: %w", err))
			}
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close repository: %w", err))
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", b.Queue != nil,
		"export", config.Export.String(),
		"metrics_enabled", b.Metrics != nil)

	return b, nil
}

func (f *DefaultFactory) createExporter(ctx context.Context, config Config) (*sheets.Exporter, error) {
	switch config.Export {
	case ExportSheets:
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsFile: config.GoogleCredentialsFile,
			CredentialsJSON: config.GoogleCredentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets statement export",
			"sheet", config.GoogleStatementsSheet)
		return sheets.NewExporter(cli, config.GoogleStatementsSheet), nil
	case ExportMemory:
		return sheets.NewExporter(memory.New(), config.GoogleStatementsSheet), nil
	default:
		return nil, nil
	}
}

// createQueue connects to AMQP. An unreachable broker is fatal only when
// the queue is required; the server falls back to inline recalculation.
func (f *DefaultFactory) createQueue(config Config, m *metrics.Metrics) (*amqp.Client, error) {
	if config.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		if config.RequireQueue {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Warn("Failed to initialize AMQP client, recalculations will run inline", "error", err)
		return nil, nil
	}
	if m != nil {
		client.Observe = func(result string) {
			m.MessagesConsumed.WithLabelValues(result).Inc()
		}
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, nil
}
