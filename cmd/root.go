package cmd

import (
	"context"
	"fmt"
	"os"

	cfgpkg "github.com/hellojin97/copilot-ci-automation/internal/config"
	"github.com/hellojin97/copilot-ci-automation/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
	// logger is rebuilt by loadConfig before every command.
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "salesreport",
	Short: "Turn a sales CSV export into a cleaned, aggregated PDF report",
	Long: `salesreport loads a sales transaction export (CSV or XLSX), repairs known
data-quality defects, aggregates revenue by category, region, salesperson and
product, renders a PDF report next to the input and optionally emails it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.salesreport/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log output: console | json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = nil
	}
	cfg = c

	level, format := "info", logging.FormatConsole
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	if debug {
		level = "debug"
	}
	if logFormat != "" {
		format = logFormat
	}
	l, err := logging.New(level, format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; using console logging\n", err)
		l, _ = logging.New("info", logging.FormatConsole, os.Stderr)
	}
	logger = l
}

// commandContext returns the command's context carrying the logger.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithContext(ctx)
}
