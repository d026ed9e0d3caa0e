package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hellojin97/copilot-ci-automation/internal/analysis"
	cfgpkg "github.com/hellojin97/copilot-ci-automation/internal/config"
	"github.com/hellojin97/copilot-ci-automation/internal/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "Date,ProductID,ProductName,Category,Region,Salesperson,Quantity,UnitPrice,TotalPrice\n" +
	"2025-09-15,P1001,Laptop Pro,Electronics,North,Alice Kim,4,100.00,400.00\n" +
	"2.00E+05,P1001,Laptop Pro,Electronics,South,Bob Lee,6,100.00,600.00\n" +
	"2025-09-16,P1001,Laptop Pro,Electronics,North,,,100.00,\n" +
	"2025-09-17,P0000,Broken,Misc,East,Carol,1,1.00,1.00\n" +
	"2025-09-18,P2002,Desk Lamp,Home,West,Carol Park,3,20.00,60.00\n"

type recordingSender struct {
	reqs []notify.Request
	err  error
}

func (s *recordingSender) Deliver(_ context.Context, req notify.Request) error {
	s.reqs = append(s.reqs, req)
	return s.err
}

// resetFlags restores every flag to its default so state does not leak
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setup isolates HOME and the delivery environment and stubs the terminal
// and the SMTP sender.
func setup(t *testing.T) (string, *recordingSender) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"SENDER_EMAIL", "EMAIL_PASSWORD", "RECIPIENT_EMAIL", "EMAIL_SUBJECT", "SMTP_HOST", "SMTP_PORT"} {
		t.Setenv(k, "")
	}

	sender := &recordingSender{}
	oldTerm, oldSender := stdinIsTerminal, newSender
	stdinIsTerminal = func() bool { return false }
	newSender = func(*cfgpkg.Global) notify.Sender { return sender }
	t.Cleanup(func() {
		stdinIsTerminal, newSender = oldTerm, oldSender
		cfg = nil
	})

	input := filepath.Join(home, "sales_data.csv")
	require.NoError(t, os.WriteFile(input, []byte(salesCSV), 0o644))
	return input, sender
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_ReportWithoutEmail(t *testing.T) {
	input, sender := setup(t)

	out, err := runCmd(t, "report", input, "--env-file", filepath.Join(t.TempDir(), "none.env"), "--print-summary")
	require.NoError(t, err)

	doc := filepath.Join(filepath.Dir(input), "sales_data_sales_report.pdf")
	raw, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))
	assert.Contains(t, out, "✓ Report saved to "+doc+" (email not sent)")
	assert.Contains(t, out, "[SALES SUMMARY]")
	assert.Empty(t, sender.reqs)
}

func TestCLI_ReportEmailsFromEnvironment(t *testing.T) {
	input, sender := setup(t)
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("EMAIL_PASSWORD", "app-password")
	t.Setenv("RECIPIENT_EMAIL", "a@example.com, , b@example.com")

	out, err := runCmd(t, "report", input, "--subject", "Weekly sales", "--smtp-port", "2525")
	require.NoError(t, err)
	assert.Contains(t, out, "emailed to 2 recipient(s)")
	assert.NotContains(t, out, "app-password")

	require.Len(t, sender.reqs, 1)
	req := sender.reqs[0]
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, req.Recipients)
	assert.Equal(t, "Weekly sales", req.Subject)
	assert.Equal(t, "smtp.gmail.com", req.Host)
	assert.Equal(t, 2525, req.Port)
	assert.Equal(t, "$", req.CurrencySymbol)
	require.NotNil(t, req.Analysis)
	top, ok := req.Analysis.Top(analysis.ByCategory)
	require.True(t, ok)
	assert.Equal(t, "Electronics", top.Key)
	assert.FileExists(t, req.DocumentPath)
}

func TestCLI_ReportDeliveryFailureStillSucceeds(t *testing.T) {
	input, sender := setup(t)
	sender.err = &notify.DeliveryError{Stage: "auth", Host: "smtp.gmail.com", Err: errors.New("535 bad credentials")}
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("EMAIL_PASSWORD", "wrong")
	t.Setenv("RECIPIENT_EMAIL", "a@example.com")

	out, err := runCmd(t, "report", input)
	require.NoError(t, err)
	assert.Contains(t, out, "email delivery failed")
	assert.Len(t, sender.reqs, 1)
}

func TestCLI_ReportInvalidRecipientNeverSends(t *testing.T) {
	input, sender := setup(t)
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("EMAIL_PASSWORD", "pw")
	t.Setenv("RECIPIENT_EMAIL", "not-an-address")

	out, err := runCmd(t, "report", input)
	require.NoError(t, err)
	assert.Contains(t, out, "email was not sent")
	assert.Empty(t, sender.reqs)
}

func TestCLI_ReportInvalidSenderKeepsReport(t *testing.T) {
	input, sender := setup(t)
	t.Setenv("SENDER_EMAIL", "reports.example.com")
	t.Setenv("EMAIL_PASSWORD", "pw")
	t.Setenv("RECIPIENT_EMAIL", "a@example.com")

	out, err := runCmd(t, "report", input)
	require.NoError(t, err)
	assert.Contains(t, out, "email was not sent")
	assert.Contains(t, out, `invalid sender address: "reports.example.com"`)
	assert.Empty(t, sender.reqs)
	assert.FileExists(t, filepath.Join(filepath.Dir(input), "sales_data_sales_report.pdf"))
}

func TestCLI_ReportNoEmailFlag(t *testing.T) {
	input, sender := setup(t)
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("EMAIL_PASSWORD", "pw")
	t.Setenv("RECIPIENT_EMAIL", "a@example.com")

	out, err := runCmd(t, "report", input, "--no-email")
	require.NoError(t, err)
	assert.Contains(t, out, "(email not sent)")
	assert.Empty(t, sender.reqs)
}

func TestCLI_ReportBadInputFails(t *testing.T) {
	_, _ = setup(t)
	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Date,ProductID\n2025-09-15,P1\n"), 0o644))

	_, err := runCmd(t, "report", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(bad), "bad_sales_report.pdf"))
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	_, _ = setup(t)

	out, err := runCmd(t, "config", "set", "top_products", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved config")

	out, err = runCmd(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "top_products: 5")
	assert.Contains(t, out, "impute_policy: exclude")

	_, err = runCmd(t, "config", "set", "email_password", "secret")
	assert.ErrorContains(t, err, "unknown key")
	_, err = runCmd(t, "config", "set", "impute_policy", "median")
	assert.Error(t, err)
}

func TestRunScheduleRunsNowAndStops(t *testing.T) {
	input, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runSchedule(ctx, input, "@every 1h", reportOptions{NoEmail: true}, true, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ Report saved to")
	assert.Contains(t, out.String(), "✓ Scheduler stopped")
}

func TestRunScheduleRejectsBadCronExpression(t *testing.T) {
	input, _ := setup(t)
	err := runSchedule(context.Background(), input, "every tuesday", reportOptions{}, false, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid --cron")
}
