package config

import (
	"os"
	"path/filepath"
	"testing"

	"godex/domain/detest"
	"godex/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GODEX_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fdr_bh", cfg.Engine.CorrectionMethod)
	assert.Equal(t, detest.CorrectGlobal, cfg.Policy())
	assert.Equal(t, -30.0, cfg.Engine.Log10Threshold)
	assert.Equal(t, 1, cfg.Engine.Workers)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("GODEX_CONFIG", "")
	t.Setenv("GODEX_CORRECTION_METHOD", "holm")
	t.Setenv("GODEX_CORRECTION_POLICY", "by_test")
	t.Setenv("GODEX_WORKERS", "4")
	t.Setenv("GODEX_KEEP_TESTS", "true")
	t.Setenv("GODEX_LOG10_THRESHOLD", "-10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "holm", cfg.Engine.CorrectionMethod)
	assert.Equal(t, detest.CorrectByTest, cfg.Policy())
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.True(t, cfg.Engine.KeepTests)
	assert.Equal(t, -10.0, cfg.Engine.Log10Threshold)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "godex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  correction_method: bonferroni\n  workers: 2\nserver:\n  addr: \":9090\"\n"), 0o600))
	t.Setenv("GODEX_CONFIG", path)
	t.Setenv("GODEX_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bonferroni", cfg.Engine.CorrectionMethod)
	assert.Equal(t, 2, cfg.Engine.Workers, "file values win over the environment")
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "global", cfg.Engine.CorrectionPolicy)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("GODEX_CONFIG", "")
	t.Setenv("GODEX_CORRECTION_METHOD", "storey")
	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	t.Setenv("GODEX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"policy":    func(c *Config) { c.Engine.CorrectionPolicy = "per_gene" },
		"workers":   func(c *Config) { c.Engine.Workers = 0 },
		"threshold": func(c *Config) { c.Engine.Log10Threshold = 1 },
		"addr":      func(c *Config) { c.Server.Addr = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
	assert.NoError(t, Default().Validate())
}
