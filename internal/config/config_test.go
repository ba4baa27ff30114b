package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Mr. Auditor", cfg.Audit.DefaultActor)
	assert.Equal(t, time.Microsecond, cfg.Audit.Precision)
	assert.Equal(t, "data/audit.db", cfg.Database.Path)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
	assert.Equal(t, 2, cfg.Export.MaxConcurrent)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AUDIT_AUDIT_DEFAULTACTOR", "Other Auditor")
	t.Setenv("AUDIT_AUDIT_PRECISION", "1ms")
	t.Setenv("AUDIT_EXPORT_BUCKET", "audit-bucket")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Other Auditor", cfg.Audit.DefaultActor)
	assert.Equal(t, time.Millisecond, cfg.Audit.Precision)
	assert.Equal(t, "audit-bucket", cfg.Export.Bucket)
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.Audit.DefaultActor = "Mr. Auditor"
	cfg.Audit.Precision = time.Second
	cfg.Auth.TokenTTLMinutes = 1
	require.NoError(t, cfg.Validate())

	cfg.Audit.DefaultActor = " "
	require.Error(t, cfg.Validate())

	cfg.Audit.DefaultActor = "Mr. Auditor"
	cfg.Audit.Precision = 0
	require.Error(t, cfg.Validate())
}
