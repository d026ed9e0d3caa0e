package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	cfgpkg "github.com/hellojin97/copilot-ci-automation/internal/config"
	"github.com/hellojin97/copilot-ci-automation/internal/delivery"
	"github.com/hellojin97/copilot-ci-automation/internal/notify"
	"github.com/hellojin97/copilot-ci-automation/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// reportOptions holds the flags shared by report and schedule.
type reportOptions struct {
	Sheet        string
	Output       string
	EnvFile      string
	Subject      string
	SMTPHost     string
	SMTPPort     int
	NoEmail      bool
	NoPrompt     bool
	PrintSummary bool
}

var rpt reportOptions

// Swapped in tests.
var (
	stdinIsTerminal = func() bool { return delivery.IsInteractive(os.Stdin) }
	readSecret      = func() (string, error) { return delivery.TerminalSecret(os.Stdin)() }
	newSender       = defaultSender
	now             = time.Now
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Clean, aggregate and render a sales export as a PDF report",
	Long: `Clean, aggregate and render a sales export as a PDF report.

The document is written next to the input as <name>_sales_report.pdf. It is
then emailed when SENDER_EMAIL, EMAIL_PASSWORD and RECIPIENT_EMAIL are set
(directly or in a .env file), or when the user agrees at the interactive
prompt. A delivery failure never fails the command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		interactive := !rpt.NoPrompt && stdinIsTerminal()
		return runReport(commandContext(cmd), args[0], rpt, interactive, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	addReportFlags(reportCmd, &rpt)
	reportCmd.Flags().BoolVar(&rpt.NoPrompt, "no-prompt", false, "never ask for email settings on the terminal")
	reportCmd.Flags().BoolVar(&rpt.PrintSummary, "print-summary", false, "print the text summary to stdout")
}

func addReportFlags(cmd *cobra.Command, o *reportOptions) {
	cmd.Flags().StringVar(&o.Sheet, "sheet", "", "XLSX: sheet name to read (default first sheet)")
	cmd.Flags().StringVarP(&o.Output, "output", "o", "", "write the PDF here instead of next to the input")
	cmd.Flags().StringVar(&o.EnvFile, "env-file", ".env", "dotenv file with delivery settings (ignored if missing)")
	cmd.Flags().BoolVar(&o.NoEmail, "no-email", false, "skip email delivery")
	cmd.Flags().StringVar(&o.Subject, "subject", "", "email subject (overrides EMAIL_SUBJECT)")
	cmd.Flags().StringVar(&o.SMTPHost, "smtp-host", "", "SMTP host (overrides SMTP_HOST and config)")
	cmd.Flags().IntVar(&o.SMTPPort, "smtp-port", 0, "SMTP port (overrides SMTP_PORT and config)")
}

func defaultSender(c *cfgpkg.Global) notify.Sender {
	var timeout time.Duration
	policy := notify.DefaultPolicy()
	if c != nil {
		timeout = c.SMTPTimeout()
		policy = notify.Policy{
			MaxAttempts: c.RetryMaxAttempts,
			BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		}
	}
	return notify.WithRetry(notify.NewSMTPSender(timeout), policy)
}

// runReport produces the document and then attempts delivery. Only failures
// up to and including rendering are returned.
func runReport(ctx context.Context, input string, o reportOptions, interactive bool, in io.Reader, out io.Writer) error {
	log := zerolog.Ctx(ctx)
	opt, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opt.Sheet = o.Sheet
	opt.OutputPath = o.Output

	res, err := pipeline.Run(ctx, input, opt)
	if err != nil {
		return err
	}
	for _, w := range res.Cleaning.Warnings {
		fmt.Fprintf(out, "⚠ Warning: %s\n", w)
	}
	if o.PrintSummary {
		fmt.Fprintln(out, res.Analysis.Text())
	}

	dc, err := resolveDelivery(res, o, interactive, in, out)
	if err == nil && dc != nil {
		err = delivery.Validate(dc)
	}
	if err != nil {
		log.Error().Err(err).Msg("email settings rejected")
		fmt.Fprintf(out, "⚠ Warning: report saved to %s but email was not sent: %v\n", res.DocumentPath, err)
		return nil
	}
	if dc == nil {
		fmt.Fprintf(out, "✓ Report saved to %s (email not sent)\n", res.DocumentPath)
		return nil
	}

	log.Debug().Stringer("delivery", dc).Msg("sending report")
	req := dc.Request(res.DocumentPath)
	req.Analysis = res.Analysis
	req.CurrencySymbol = opt.Report.CurrencySymbol
	if notify.New(newSender(cfg)).Send(ctx, req) {
		fmt.Fprintf(out, "✓ Report saved to %s and emailed to %d recipient(s)\n", res.DocumentPath, len(dc.Recipients))
	} else {
		fmt.Fprintf(out, "⚠ Warning: report saved to %s but email delivery failed (see log for details)\n", res.DocumentPath)
	}
	return nil
}

// resolveDelivery returns nil when the report should not be emailed.
// Environment settings win over the prompt; flags override both.
func resolveDelivery(res *pipeline.Result, o reportOptions, interactive bool, in io.Reader, out io.Writer) (*delivery.Config, error) {
	if o.NoEmail {
		return nil, nil
	}
	var def delivery.Defaults
	if cfg != nil {
		def = delivery.Defaults{Host: cfg.SMTPHost, Port: cfg.SMTPPort}
	}
	dc, ok, err := delivery.FromEnv(o.EnvFile, def)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !interactive {
			return nil, nil
		}
		subject := notify.DefaultSubject(res.Analysis, now())
		dc, ok, err = delivery.NewPrompter(in, out, readSecret).Prompt(subject, def)
		if err != nil || !ok {
			return nil, err
		}
	}
	if o.Subject != "" {
		dc.Subject = o.Subject
	}
	if o.SMTPHost != "" {
		dc.Host = o.SMTPHost
	}
	if o.SMTPPort > 0 {
		dc.Port = o.SMTPPort
	}
	return dc, nil
}
