package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"forecast/internal/projection"
	"forecast/internal/statements"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets statement export
	GoogleSpreadsheetID   string
	GoogleStatementsSheet string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Worker
	ProjectionBatchSize     int
	ProjectionConcurrency   int
	ProjectionHorizonMonths int
	RecalcSchedule          string

	// Business policy. Empty strings fall back to the policy file, then
	// to the built-in defaults.
	PolicyFile               string
	SocialSecurityRate       string
	EmployerContributionRate string
	NetPaymentDay            int
	TaxesPaymentDay          int
	IncomeTaxRate            string
	BalanceMode              string

	LogLevel       string
	MetricsEnabled bool
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/forecast.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "forecast"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "recalculate_projections"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleStatementsSheet: getEnv("GOOGLE_STATEMENTS_SHEET", "Statements"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		ProjectionBatchSize:     getEnvInt("PROJECTION_BATCH_SIZE", 100),
		ProjectionConcurrency:   getEnvInt("PROJECTION_CONCURRENCY", 4),
		ProjectionHorizonMonths: getEnvInt("PROJECTION_HORIZON_MONTHS", 12),
		RecalcSchedule:          getEnv("RECALC_SCHEDULE", "0 3 * * *"),

		PolicyFile:               getEnv("POLICY_FILE", ""),
		SocialSecurityRate:       getEnv("SOCIAL_SECURITY_RATE", ""),
		EmployerContributionRate: getEnv("EMPLOYER_CONTRIBUTION_RATE", ""),
		NetPaymentDay:            getEnvInt("NET_PAYMENT_DAY", 0),
		TaxesPaymentDay:          getEnvInt("TAXES_PAYMENT_DAY", 0),
		IncomeTaxRate:            getEnv("INCOME_TAX_RATE", ""),
		BalanceMode:              getEnv("BALANCE_MODE", ""),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleStatementsSheet == "" {
			errors = append(errors, "Google statements sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided for statement export")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	if c.ProjectionBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid projection batch size %d: must be at least 1", c.ProjectionBatchSize))
	} else if c.ProjectionBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid projection batch size %d: must be at most 1000", c.ProjectionBatchSize))
	}
	if c.ProjectionConcurrency < 1 || c.ProjectionConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid projection concurrency %d: must be between 1 and 64", c.ProjectionConcurrency))
	}
	if c.ProjectionHorizonMonths < 1 || c.ProjectionHorizonMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid projection horizon %d: must be between 1 and 120 months", c.ProjectionHorizonMonths))
	}
	if _, err := cron.ParseStandard(c.RecalcSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid recalculation schedule '%s': %v", c.RecalcSchedule, err))
	}

	if _, err := statements.ParseBalanceMode(c.BalanceMode); err != nil {
		errors = append(errors, fmt.Sprintf("invalid balance mode '%s': must be 'surface' or 'strict'", c.BalanceMode))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if _, err := c.Business(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Business is the resolved business policy.
type Business struct {
	Policy projection.Policy
	// IncomeTaxRate is a percentage of revenue.
	IncomeTaxRate decimal.Decimal
	BalanceMode   statements.BalanceMode
}

type policyFile struct {
	SocialSecurityRate       string `yaml:"social_security_rate"`
	EmployerContributionRate string `yaml:"employer_contribution_rate"`
	NetPaymentDay            int    `yaml:"net_payment_day"`
	TaxesPaymentDay          int    `yaml:"taxes_payment_day"`
	IncomeTaxRate            string `yaml:"income_tax_rate"`
	BalanceMode              string `yaml:"balance_mode"`
}

// Business resolves the policy: built-in defaults, overlaid by the YAML
// policy file, overlaid by environment values.
func (c *Config) Business() (Business, error) {
	b := Business{
		Policy:        projection.DefaultPolicy(),
		IncomeTaxRate: decimal.Zero,
		BalanceMode:   statements.BalanceSurface,
	}

	var file policyFile
	if c.PolicyFile != "" {
		raw, err := os.ReadFile(c.PolicyFile)
		if err != nil {
			return Business{}, fmt.Errorf("read policy file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Business{}, fmt.Errorf("parse policy file %s: %w", c.PolicyFile, err)
		}
	}

	var err error
	if b.Policy.SocialSecurityRate, err = overlayRate(b.Policy.SocialSecurityRate, file.SocialSecurityRate, c.SocialSecurityRate); err != nil {
		return Business{}, fmt.Errorf("invalid social security rate: %w", err)
	}
	if b.Policy.EmployerContributionRate, err = overlayRate(b.Policy.EmployerContributionRate, file.EmployerContributionRate, c.EmployerContributionRate); err != nil {
		return Business{}, fmt.Errorf("invalid employer contribution rate: %w", err)
	}
	if b.IncomeTaxRate, err = overlayRate(b.IncomeTaxRate, file.IncomeTaxRate, c.IncomeTaxRate); err != nil {
		return Business{}, fmt.Errorf("invalid income tax rate: %w", err)
	}
	b.Policy.NetPaymentDay = overlayInt(b.Policy.NetPaymentDay, file.NetPaymentDay, c.NetPaymentDay)
	b.Policy.TaxesPaymentDay = overlayInt(b.Policy.TaxesPaymentDay, file.TaxesPaymentDay, c.TaxesPaymentDay)

	mode := file.BalanceMode
	if c.BalanceMode != "" {
		mode = c.BalanceMode
	}
	if b.BalanceMode, err = statements.ParseBalanceMode(mode); err != nil {
		return Business{}, err
	}
	if b.IncomeTaxRate.IsNegative() || b.IncomeTaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return Business{}, fmt.Errorf("invalid income tax rate %s: must be a percentage between 0 and 100", b.IncomeTaxRate)
	}
	if err := b.Policy.Validate(); err != nil {
		return Business{}, fmt.Errorf("invalid payroll policy: %w", err)
	}
	return b, nil
}

func overlayRate(base decimal.Decimal, values ...string) (decimal.Decimal, error) {
	out := base
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, err
		}
		out = d
	}
	return out, nil
}

func overlayInt(base int, values ...int) int {
	out := base
	for _, v := range values {
		if v != 0 {
			out = v
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
