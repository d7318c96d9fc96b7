package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "matchbook.log")
	l, err := New("info", path)
	require.NoError(t, err)

	l.Info("order_placed")
	l.Debug("not_written")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"order_placed"`)
	assert.Contains(t, string(b), `"level":"INFO"`)
	assert.NotContains(t, string(b), "not_written")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "")
	assert.Error(t, err)
}
