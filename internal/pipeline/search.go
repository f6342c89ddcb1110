// internal/pipeline/search.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FairForge/intelvault/internal/catalog"
	"github.com/FairForge/intelvault/internal/queue"
	"go.uber.org/zap"
)

// Search runs an intelligence query, streams every visited artifact to the
// artifact log, feeds file artifacts into the download queues per
// configuration, and then runs the worker pools. An API failure mid-iteration
// aborts before any pool is started; queued work is discarded.
func (p *Pipeline) Search(ctx context.Context) error {
	p.logger.Info("running intelligence query", zap.String("query", p.cfg.Query))

	it := p.catalog.Search(ctx, p.cfg.Query, p.cfg.Limit)

	logPath := filepath.Join(p.cfg.DownloadDir, p.cfg.ArtifactLog)
	artifactLog, err := os.Create(logPath) // #nosec G304 - config-driven path
	if err != nil {
		return fmt.Errorf("pipeline: creating artifact log: %w", err)
	}
	defer func() { _ = artifactLog.Close() }()

	seen := make(map[string]bool)
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, catalog.ErrDone) {
			break
		}
		if err != nil {
			p.logSearchFailure(err)
			// results already enqueued are deliberately discarded; no pool
			// has started, so nothing would ever mark them done
			p.queues.Samples.Drain()
			p.queues.Behavior.Drain()
			return err
		}

		if !obj.Kind.Known() {
			p.logger.Warn("unknown artifact type detected",
				zap.String("type", string(obj.Kind)), zap.String("id", obj.ID))
			continue
		}

		// one line per artifact, written immediately so partial progress
		// survives a crash
		if obj.Kind == catalog.KindURL && obj.URL != nil {
			fmt.Fprintf(artifactLog, "%s => %s\n", obj.ID, obj.URL.URL)
		} else {
			fmt.Fprintf(artifactLog, "%s\n", obj.ID)
		}

		if obj.Kind == catalog.KindFile && !seen[obj.ID] {
			seen[obj.ID] = true
			if p.cfg.DownloadSamples {
				p.queues.Samples.Put(queue.TaskFor(obj))
			}
			if p.cfg.DownloadBehavior {
				p.queues.Behavior.Put(queue.TaskFor(obj))
			}
		}

		// the summary is emitted for every visited artifact, independent of
		// download flags
		p.renderer.Render(obj, filepath.Join(p.cfg.InfoDir, obj.ID))
	}

	p.processQueues(ctx)
	return nil
}

// logSearchFailure logs a failed search iteration with the operator-facing
// message for its class.
func (p *Pipeline) logSearchFailure(err error) {
	switch catalog.Classify(err) {
	case catalog.SeverityFatal:
		p.logger.Error(catalog.FatalMessage(err), zap.Error(err))
	default:
		p.logger.Error("there was an error while processing the request", zap.Error(err))
	}
}
