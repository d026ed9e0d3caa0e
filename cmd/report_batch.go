package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

var (
	rbOpts  reportOptions
	rbQuiet bool
)

var reportBatchCmd = &cobra.Command{
	Use:   "report-batch <files...>",
	Short: "Render a report for each matching CSV/XLSX file",
	Long: `Render a report for each matching CSV/XLSX file, in sorted order.

Arguments may be glob patterns. Each file is processed like 'report
--no-prompt'; the first file that cannot be reported stops the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return errors.New("no input files matched")
		}
		out := cmd.OutOrStdout()
		ctx := commandContext(cmd)
		o := rbOpts
		o.NoPrompt = true
		total := len(files)
		for i, path := range files {
			if !rbQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			if err := runReport(ctx, path, o, false, nil, out); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		if !rbQuiet {
			fmt.Fprintf(out, "✓ %d report(s) written\n", total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportBatchCmd)
	f := reportBatchCmd.Flags()
	f.StringVar(&rbOpts.Sheet, "sheet", "", "XLSX: sheet name to read (default first sheet)")
	f.StringVar(&rbOpts.EnvFile, "env-file", ".env", "dotenv file with delivery settings (ignored if missing)")
	f.BoolVar(&rbOpts.NoEmail, "no-email", false, "skip email delivery")
	f.StringVar(&rbOpts.Subject, "subject", "", "email subject (overrides EMAIL_SUBJECT)")
	f.StringVar(&rbOpts.SMTPHost, "smtp-host", "", "SMTP host (overrides SMTP_HOST and config)")
	f.IntVar(&rbOpts.SMTPPort, "smtp-port", 0, "SMTP port (overrides SMTP_PORT and config)")
	f.BoolVar(&rbQuiet, "quiet", false, "suppress progress output")
}

// expandInputs resolves globs, keeps literal paths that exist and returns
// the unique files in sorted order.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}
