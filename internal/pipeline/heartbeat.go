// internal/pipeline/heartbeat.go
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// heartbeatInterval is how often queue depths are reported.
const heartbeatInterval = time.Second

// heartbeat periodically reports the depth of all three queues until its
// context is cancelled. Progress reporting is independent of actual work
// completion; cancellation happens after the owning stage has joined.
func (p *Pipeline) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			info := p.queues.Info.Len()
			samples := p.queues.Samples.Len()
			behavior := p.queues.Behavior.Len()

			queueDepth.WithLabelValues(p.queues.Info.Name()).Set(float64(info))
			queueDepth.WithLabelValues(p.queues.Samples.Name()).Set(float64(samples))
			queueDepth.WithLabelValues(p.queues.Behavior.Name()).Set(float64(behavior))

			p.logger.Info("queue status",
				zap.Int("info", info),
				zap.Int("samples", samples),
				zap.Int("behavior", behavior))
		case <-ctx.Done():
			return
		}
	}
}
