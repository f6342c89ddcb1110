// internal/logger/logger.go
package logger

import (
	"path/filepath"

	"github.com/FairForge/intelvault/internal/config"
	"go.uber.org/zap"
)

// New builds the run logger, writing to stderr and to the per-run log file
// inside the download directory. Any verbosity above zero enables debug
// output; the on-screen report detail is handled separately by the renderer.
func New(cfg *config.Config) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stderr", filepath.Join(cfg.DownloadDir, cfg.LogFile)}
	if cfg.Report.Verbose > 0 {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	log, err := zapCfg.Build()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Warn("falling back to stderr-only logging", zap.Error(err))
		return fallback
	}
	return log
}
