package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportBatch_GlobAcrossDirectories(t *testing.T) {
	input, sender := setup(t)
	home := filepath.Dir(input)

	// Same base name in two directories, plus a duplicate literal argument.
	var inputs []string
	for _, d := range []string{"d1", "d2"} {
		dir := filepath.Join(home, d)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		p := filepath.Join(dir, "sales.csv")
		require.NoError(t, os.WriteFile(p, []byte(salesCSV), 0o644))
		inputs = append(inputs, p)
	}

	out, err := runCmd(t, "report-batch", filepath.Join(home, "d*", "sales.csv"), inputs[0], "--no-email")
	require.NoError(t, err)

	assert.Contains(t, out, "[1/2] Processing sales.csv...")
	assert.Contains(t, out, "[2/2] Processing sales.csv...")
	assert.Contains(t, out, "✓ 2 report(s) written")
	for _, p := range inputs {
		assert.FileExists(t, filepath.Join(filepath.Dir(p), "sales_sales_report.pdf"))
	}
	assert.Empty(t, sender.reqs)
}

func TestReportBatch_NoMatches(t *testing.T) {
	_, _ = setup(t)
	_, err := runCmd(t, "report-batch", filepath.Join(t.TempDir(), "*.csv"))
	assert.ErrorContains(t, err, "no input files matched")
}

func TestReportBatch_StopsOnFirstFailure(t *testing.T) {
	input, _ := setup(t)
	dir := filepath.Dir(input)
	bad := filepath.Join(dir, "a_bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Date\n2025-09-15\n"), 0o644))

	_, err := runCmd(t, "report-batch", filepath.Join(dir, "*.csv"), "--quiet", "--no-email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a_bad.csv")
	assert.NoFileExists(t, filepath.Join(dir, "sales_data_sales_report.pdf"))
}
