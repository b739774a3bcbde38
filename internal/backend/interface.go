package backend

import (
	"context"
	"time"

	"forecast/internal/amqp"
	"forecast/internal/cache"
	"forecast/internal/config"
	"forecast/internal/metrics"
	"forecast/internal/services"
	"forecast/internal/sheets"
	"forecast/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Backend is everything a binary needs: the repository, the services on
// top of it and the optional queue and statement exporter.
type Backend struct {
	Repo        *storage.SQLiteRepository
	Metrics     *metrics.Metrics
	Caches      *cache.Manager
	Projections *services.ProjectionService
	Statements  *services.StatementService
	Budgets     *services.BudgetService
	Publisher   *services.Publisher

	// Queue is nil when AMQP is not configured or unreachable.
	Queue *amqp.Client
	// Exporter is nil when statements are not mirrored.
	Exporter *sheets.Exporter

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	SQLiteDBPath string

	// AMQP is optional unless RequireQueue is set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	RequireQueue bool

	// Statement export
	Export                ExportType
	GoogleSpreadsheetID   string
	GoogleStatementsSheet string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	Concurrency     int
	BatchSize       int
	LedgerCacheSize int
	LedgerCacheTTL  time.Duration
	MetricsEnabled  bool

	Business config.Business
}

// ExportType selects where computed statements are mirrored.
type ExportType string

const (
	ExportNone   ExportType = "none"
	ExportSheets ExportType = "sheets"
	ExportMemory ExportType = "memory"
)

// String implements fmt.Stringer
func (et ExportType) String() string {
	return string(et)
}

// IsValid returns true if the export type is valid
func (et ExportType) IsValid() bool {
	switch et {
	case ExportNone, ExportSheets, ExportMemory:
		return true
	default:
		return false
	}
}
