package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hellojin97/copilot-ci-automation/internal/analysis"
	"github.com/hellojin97/copilot-ci-automation/internal/cleaning"
	"github.com/hellojin97/copilot-ci-automation/internal/config"
	"github.com/hellojin97/copilot-ci-automation/internal/dataset"
	"github.com/hellojin97/copilot-ci-automation/internal/report"
	"github.com/rs/zerolog"
)

// Options configures one run.
type Options struct {
	Cleaning cleaning.Options
	Analysis analysis.Options
	Report   report.Options
	// Sheet selects the worksheet of an .xlsx input.
	Sheet string
	// OutputPath overrides the derived document path.
	OutputPath string
}

// DefaultOptions returns the standard run settings.
func DefaultOptions() Options {
	return Options{
		Cleaning: cleaning.DefaultOptions(),
		Analysis: analysis.DefaultOptions(),
		Report:   report.DefaultOptions(),
	}
}

// OptionsFromConfig maps the persisted configuration onto run options.
func OptionsFromConfig(c *config.Global) (Options, error) {
	opt := DefaultOptions()
	if c == nil {
		return opt, nil
	}
	fb, err := c.Fallback()
	if err != nil {
		return opt, err
	}
	policy, err := cleaning.ParseImputePolicy(c.ImputePolicy)
	if err != nil {
		return opt, err
	}
	opt.Cleaning.FallbackDate = fb
	opt.Cleaning.ImputePolicy = policy
	if c.PlaceholderProductID != "" {
		opt.Cleaning.PlaceholderProductID = c.PlaceholderProductID
	}
	if c.UnknownSalesperson != "" {
		opt.Cleaning.UnknownSalesperson = c.UnknownSalesperson
	}
	if c.TopProducts > 0 {
		opt.Analysis.TopProducts = c.TopProducts
	}
	if c.CurrencySymbol != "" {
		opt.Report.CurrencySymbol = c.CurrencySymbol
	}
	opt.Report.StaticQualityNotes = !c.ConditionalQualityNotes
	opt.Report.FontPath = c.ReportFont
	return opt, nil
}

// Result is the outcome of a successful run.
type Result struct {
	RunID        uuid.UUID
	DocumentPath string
	Analysis     *analysis.Result
	Cleaning     *cleaning.Result
}

// Run loads, cleans, aggregates and renders input. Any failure before the
// document is written is returned and nothing is written.
func Run(ctx context.Context, input string, opt Options) (*Result, error) {
	runID := uuid.New()
	logger := zerolog.Ctx(ctx).With().Str("run", runID.String()).Str("input", input).Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()

	table, err := dataset.Load(input, dataset.Options{Sheet: opt.Sheet})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", input, err)
	}
	logger.Debug().Int("rows", len(table.Records)).Strs("columns", table.Columns).Msg("input loaded")

	cleaned, err := cleaning.Clean(ctx, table, opt.Cleaning)
	if err != nil {
		return nil, fmt.Errorf("clean %s: %w", table.Name, err)
	}

	res, err := analysis.Analyze(ctx, table.Name, cleaned.Transactions, opt.Analysis)
	if err != nil {
		return nil, err
	}
	res.Notes = cleaned.Notes
	res.Warnings = cleaned.Warnings

	path := opt.OutputPath
	if path == "" {
		path = report.OutputPath(input)
	}
	if err := report.New(opt.Report).Render(ctx, res, path); err != nil {
		return nil, err
	}

	logger.Info().
		Int("transactions", len(cleaned.Transactions)).
		Str("revenue", res.Summary.TotalRevenue.StringFixed(2)).
		Dur("elapsed", time.Since(start)).
		Str("document", path).
		Msg("run complete")
	return &Result{RunID: runID, DocumentPath: path, Analysis: res, Cleaning: cleaned}, nil
}
