package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FairForge/intelvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("writes to the per-run log file", func(t *testing.T) {
		cfg := config.Default()
		cfg.DownloadDir = t.TempDir()

		log := New(cfg)
		log.Info("hello")
		_ = log.Sync()

		data, err := os.ReadFile(filepath.Join(cfg.DownloadDir, cfg.LogFile))
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	})

	t.Run("verbosity enables debug output", func(t *testing.T) {
		cfg := config.Default()
		cfg.DownloadDir = t.TempDir()
		cfg.Report.Verbose = 1

		log := New(cfg)
		log.Debug("noisy detail")
		_ = log.Sync()

		data, err := os.ReadFile(filepath.Join(cfg.DownloadDir, cfg.LogFile))
		require.NoError(t, err)
		assert.Contains(t, string(data), "noisy detail")
	})

	t.Run("debug is off by default", func(t *testing.T) {
		cfg := config.Default()
		cfg.DownloadDir = t.TempDir()

		log := New(cfg)
		log.Debug("hidden")
		_ = log.Sync()

		data, err := os.ReadFile(filepath.Join(cfg.DownloadDir, cfg.LogFile))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "hidden")
	})
}
