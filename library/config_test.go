package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "library.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.LoanDays)
	assert.Equal(t, 2, cfg.MaxRenewals)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "dbPath: /tmp/other.db\nloanDays: 14\nmaxRenewals: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, 14, cfg.LoanDays)
	assert.Equal(t, 1, cfg.MaxRenewals)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LIBRARYDESK_DB", "env.db")
	t.Setenv("LIBRARYDESK_LOAN_DAYS", "7")
	t.Setenv("LIBRARYDESK_MAX_RENEWALS", "0")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.LoanDays)
	assert.Equal(t, 0, cfg.MaxRenewals)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("LIBRARYDESK_LOAN_DAYS", "-3")
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrValidation)

	t.Setenv("LIBRARYDESK_LOAN_DAYS", "not-a-number")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
