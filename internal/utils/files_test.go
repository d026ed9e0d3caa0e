package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeWriteFileReplaces(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.pdf")

	require.NoError(t, SafeWriteFile(p, []byte("first")))
	require.NoError(t, SafeWriteFile(p, []byte("second")))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
	_, err = os.Stat(p + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestTrimExt(t *testing.T) {
	assert.Equal(t, "sales_data", TrimExt("/data/sales_data.csv"))
	assert.Equal(t, "archive.tar", TrimExt("archive.tar.gz"))
	assert.Equal(t, "README", TrimExt("README"))
}
