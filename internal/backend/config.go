package backend

import (
	"fmt"
	"time"

	"forecast/internal/config"
)

const (
	defaultLedgerCacheSize = 64
	defaultLedgerCacheTTL  = 5 * time.Minute
)

// FromAppConfig converts the application config to backend config. A
// spreadsheet ID turns on the Sheets export.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	business, err := appConfig.Business()
	if err != nil {
		return Config{}, fmt.Errorf("resolve business policy: %w", err)
	}

	export := ExportNone
	if appConfig.GoogleSpreadsheetID != "" {
		export = ExportSheets
	}

	return Config{
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Export:                export,
		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleStatementsSheet: appConfig.GoogleStatementsSheet,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,

		Concurrency:     appConfig.ProjectionConcurrency,
		BatchSize:       appConfig.ProjectionBatchSize,
		LedgerCacheSize: defaultLedgerCacheSize,
		LedgerCacheTTL:  defaultLedgerCacheTTL,
		MetricsEnabled:  appConfig.MetricsEnabled,

		Business: business,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if !c.Export.IsValid() {
		return fmt.Errorf("invalid export type: %s", c.Export)
	}
	if c.RequireQueue && c.AMQPURL == "" {
		return fmt.Errorf("AMQP URL is required")
	}

	if c.Export == ExportSheets {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets export")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			return fmt.Errorf("either GoogleCredentialsFile or GoogleCredentialsJSON must be provided for sheets export")
		}
	}
	return nil
}

// GetExportTypes returns all valid export types
func GetExportTypes() []ExportType {
	return []ExportType{ExportNone, ExportSheets, ExportMemory}
}
