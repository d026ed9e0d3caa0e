package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	sched       reportOptions
	schedSpec   string
	schedRunNow bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <file>",
	Short: "Regenerate (and email) the report on a cron schedule",
	Long: `Regenerate the report on a cron schedule until interrupted.

Each run behaves like 'report --no-prompt': email settings come only from the
environment or the dotenv file. A run that is still going when the next one
is due causes that tick to be skipped.`,
	Example: `  salesreport schedule sales_data.csv --cron "0 7 * * MON"
  salesreport schedule sales_data.csv --cron "@daily" --run-now`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSchedule(ctx, args[0], schedSpec, sched, schedRunNow, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	addReportFlags(scheduleCmd, &sched)
	scheduleCmd.Flags().StringVar(&schedSpec, "cron", "", "cron expression (5 fields or descriptors like @daily)")
	scheduleCmd.Flags().BoolVar(&schedRunNow, "run-now", false, "also run once immediately")
	_ = scheduleCmd.MarkFlagRequired("cron")
}

// runSchedule blocks until ctx is done, then waits for a running job.
func runSchedule(ctx context.Context, input, spec string, o reportOptions, runNow bool, out io.Writer) error {
	log := zerolog.Ctx(ctx)
	o.NoPrompt = true
	job := func() {
		if err := runReport(ctx, input, o, false, nil, out); err != nil {
			log.Error().Err(err).Str("input", input).Msg("scheduled run failed")
			fmt.Fprintln(out, "✗ Error:", err)
		}
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("invalid --cron %q: %w", spec, err)
	}
	if runNow {
		job()
	}
	c.Start()
	fmt.Fprintf(out, "✓ Scheduled %s with %q; next run at %s\n", input, spec, c.Entry(id).Next.Format(time.RFC3339))

	<-ctx.Done()
	<-c.Stop().Done()
	fmt.Fprintln(out, "✓ Scheduler stopped")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
