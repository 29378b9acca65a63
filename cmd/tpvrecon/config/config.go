// Package config translates CLI flags into component configurations.
package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tpv-reconciliation-service/internal/dues"
	"tpv-reconciliation-service/internal/matcher"
	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/internal/reporter"
	"tpv-reconciliation-service/internal/statement"
)

// StatementOptions carries the statement-format overrides accepted on the
// command line.
type StatementOptions struct {
	ReferenceMinDigits int
	ReferenceMaxDigits int
	LookaheadLines     int
	Plain              bool
}

// CreateStatementFormat builds the statement format for a run. The Redsys
// format is the default; Plain drops headers and the outcome vocabulary for
// pre-cleaned text.
func CreateStatementFormat(opts StatementOptions) (*statement.StatementFormat, error) {
	format := statement.DefaultRedsysFormat()
	if opts.Plain {
		format = statement.PlainFormat()
	}

	if opts.ReferenceMinDigits > 0 {
		format.ReferenceMinDigits = opts.ReferenceMinDigits
	}
	if opts.ReferenceMaxDigits > 0 {
		format.ReferenceMaxDigits = opts.ReferenceMaxDigits
	}
	if opts.LookaheadLines > 0 {
		format.LookaheadLines = opts.LookaheadLines
	}

	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statement format: %w", err)
	}
	return format, nil
}

// CreateMatchingConfig builds the matching configuration. A positive epsilon
// overrides the tolerance; loose selects the wider preset instead.
func CreateMatchingConfig(epsilon float64, loose bool, similarityThreshold float64) (*matcher.MatchingConfig, error) {
	config := matcher.DefaultMatchingConfig()
	if loose {
		config = matcher.LooseMatchingConfig()
	}

	if epsilon > 0 {
		config.Tolerance = decimal.NewFromFloat(epsilon)
	}
	if similarityThreshold > 0 {
		config.SimilarityThreshold = similarityThreshold
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}
	return config, nil
}

// LoaderOptions carries the dues-source overrides accepted on the command
// line.
type LoaderOptions struct {
	SheetName      string
	CustomerColumn string
	AmountColumn   string
	Convention     string
	Delimiter      rune
}

// CreateLoaderConfig builds the dues loader configuration.
func CreateLoaderConfig(opts LoaderOptions) (*dues.LoaderConfig, error) {
	config := dues.DefaultLoaderConfig()
	config.SheetName = opts.SheetName

	if opts.CustomerColumn != "" {
		config.CustomerColumn = opts.CustomerColumn
	}
	if opts.AmountColumn != "" {
		config.AmountColumn = opts.AmountColumn
	}
	if opts.Delimiter != 0 {
		config.Delimiter = opts.Delimiter
	}
	if opts.Convention != "" {
		convention, err := ParseConvention(opts.Convention)
		if err != nil {
			return nil, err
		}
		config.Convention = convention
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dues loader config: %w", err)
	}
	return config, nil
}

// ParseConvention resolves a decimal-convention flag value.
func ParseConvention(value string) (models.DecimalConvention, error) {
	convention, err := models.ParseDecimalConvention(value)
	if err != nil {
		return "", fmt.Errorf("invalid decimal convention '%s'. Valid values: dot, comma, auto", value)
	}
	return convention, nil
}

// CreateReportConfig builds the reporter configuration for the specified
// output format.
func CreateReportConfig(format, outputPath string, onlyProblems bool) *reporter.Config {
	config := reporter.DefaultConfig()
	config.OutputPath = outputPath
	config.OnlyProblems = onlyProblems

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
	default:
		config.Format = reporter.FormatConsole
	}

	return config
}
