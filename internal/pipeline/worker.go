// internal/pipeline/worker.go
package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/FairForge/intelvault/internal/catalog"
	"github.com/FairForge/intelvault/internal/queue"
	"go.uber.org/zap"
)

// sampleWorker downloads raw file content. It claims tasks until the samples
// queue is exhausted; every claimed task is marked done regardless of cache
// hit, fetch success, or fetch failure. A fatal catalog error stops the pool
// after draining what remains.
func (p *Pipeline) sampleWorker(ctx context.Context) {
	for {
		task, ok := p.queues.Samples.Claim()
		if !ok {
			return
		}

		fatal := p.fetchSample(ctx, task)
		p.queues.Samples.Done()

		if fatal {
			p.queues.Samples.Drain()
			return
		}
	}
}

// fetchSample retrieves one sample, consulting the disk cache first. It
// reports whether the failure was fatal for the whole pool.
func (p *Pipeline) fetchSample(ctx context.Context, task queue.Task) bool {
	id := task.Identifier()

	if p.cache.Has(p.cfg.SamplesDir, id) {
		p.logger.Debug("sample already exists on disk and is not downloaded again",
			zap.String("id", id))
		cacheHitsTotal.WithLabelValues("samples").Inc()
		return false
	}

	f, err := p.cache.Create(p.cfg.SamplesDir, id)
	if err != nil {
		p.logger.Error("error while saving sample", zap.String("id", id), zap.Error(err))
		fetchesTotal.WithLabelValues("samples", "error").Inc()
		return false
	}

	if err := p.catalog.DownloadTo(ctx, id, f); err != nil {
		_ = f.Close()
		// a partial file must not count as a cache hit on the next run
		_ = p.cache.Remove(p.cfg.SamplesDir, id)
		return p.logFetchFailure("samples", "error while downloading sample", id, err)
	}

	if err := f.Close(); err != nil {
		_ = p.cache.Remove(p.cfg.SamplesDir, id)
		p.logger.Error("error while saving sample", zap.String("id", id), zap.Error(err))
		fetchesTotal.WithLabelValues("samples", "error").Inc()
		return false
	}

	p.logger.Debug("successfully downloaded sample", zap.String("id", id))
	fetchesTotal.WithLabelValues("samples", "success").Inc()
	return false
}

// behaviorWorker retrieves behavior reports and hands them to the sandbox
// parser. Cached reports are read back from disk so parsing happens even when
// no network call does.
func (p *Pipeline) behaviorWorker(ctx context.Context) {
	for {
		task, ok := p.queues.Behavior.Claim()
		if !ok {
			return
		}

		fatal := p.fetchBehavior(ctx, task)
		p.queues.Behavior.Done()

		if fatal {
			p.queues.Behavior.Drain()
			return
		}
	}
}

func (p *Pipeline) fetchBehavior(ctx context.Context, task queue.Task) bool {
	id := task.Identifier()

	var rep catalog.Report

	if p.cache.Has(p.cfg.ReportsDir, id) {
		p.logger.Debug("behavior report already exists on disk and is not downloaded again",
			zap.String("id", id))
		cacheHitsTotal.WithLabelValues("behavior").Inc()

		data, err := p.cache.Read(p.cfg.ReportsDir, id)
		if err != nil {
			p.logger.Error("error while reading behavior report", zap.String("id", id), zap.Error(err))
			return false
		}
		if !json.Valid(data) {
			// treated as not retrieved for this run; no re-fetch fallback
			p.logger.Error("cached behavior report is not valid JSON", zap.String("id", id))
			return false
		}
		rep = catalog.Report(data)
	} else {
		fetched, err := p.catalog.GetBehavior(ctx, id)
		if err != nil {
			return p.logFetchFailure("behavior",
				"sample does not have a behavior report, or the report could not be retrieved", id, err)
		}

		if err := p.cache.Write(p.cfg.ReportsDir, id, fetched); err != nil {
			p.logger.Error("error while saving behavior report", zap.String("id", id), zap.Error(err))
			fetchesTotal.WithLabelValues("behavior", "error").Inc()
			return false
		}
		p.logger.Debug("saved behavior report", zap.String("id", id))
		fetchesTotal.WithLabelValues("behavior", "success").Inc()
		rep = fetched
	}

	if err := p.parser.Parse(rep, task.Object); err != nil {
		p.logger.Error("error while parsing behavior report", zap.String("id", id), zap.Error(err))
	}
	return false
}

// resolvedSink collects the objects resolved by the info pool. Callers need
// the full resolved set before feeding the download queues.
type resolvedSink struct {
	mu      sync.Mutex
	objects []*catalog.Object
}

func (s *resolvedSink) add(obj *catalog.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, obj)
}

func (s *resolvedSink) all() []*catalog.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects
}

// infoWorker resolves bare identifiers into full objects via per-object
// lookups, rendering a summary for each. On a fatal failure the remaining
// queue contents are drained and marked done so Join is not left blocked.
func (p *Pipeline) infoWorker(ctx context.Context, sink *resolvedSink) {
	for {
		task, ok := p.queues.Info.Claim()
		if !ok {
			return
		}

		id := task.Identifier()
		obj, err := p.catalog.GetObject(ctx, id)
		if err != nil {
			switch catalog.Classify(err) {
			case catalog.SeveritySkip:
				p.logger.Warn("sample was not found", zap.String("id", id))
				fetchesTotal.WithLabelValues("info", "not_found").Inc()
			case catalog.SeverityFatal:
				p.logger.Error(catalog.FatalMessage(err), zap.String("id", id), zap.Error(err))
				fetchesTotal.WithLabelValues("info", "fatal").Inc()
				p.queues.Info.Done()
				p.queues.Info.Drain()
				return
			default:
				p.logger.Error("there was an error while processing the request",
					zap.String("id", id), zap.Error(err))
				fetchesTotal.WithLabelValues("info", "error").Inc()
			}
			p.queues.Info.Done()
			continue
		}

		p.renderer.Render(obj, filepath.Join(p.cfg.InfoDir, obj.ID))
		fetchesTotal.WithLabelValues("info", "success").Inc()
		sink.add(obj)
		p.queues.Info.Done()
	}
}

// logFetchFailure logs a per-item failure with the severity mandated by its
// classification and reports whether the pool should stop.
func (p *Pipeline) logFetchFailure(role, msg, id string, err error) bool {
	switch catalog.Classify(err) {
	case catalog.SeveritySkip:
		p.logger.Warn(msg, zap.String("id", id), zap.Error(err))
		fetchesTotal.WithLabelValues(role, "not_found").Inc()
		return false
	case catalog.SeverityFatal:
		p.logger.Error(catalog.FatalMessage(err), zap.String("id", id), zap.Error(err))
		fetchesTotal.WithLabelValues(role, "fatal").Inc()
		return true
	default:
		p.logger.Error(msg, zap.String("id", id), zap.Error(err))
		fetchesTotal.WithLabelValues(role, "error").Inc()
		return false
	}
}

// processQueues runs the download stage: heartbeat, N workers per active
// role, join both queues, then cancel the monitor.
func (p *Pipeline) processQueues(ctx context.Context) {
	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.heartbeat(hbCtx)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		if p.cfg.DownloadBehavior {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.behaviorWorker(ctx)
			}()
		}
		if p.cfg.DownloadSamples {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.sampleWorker(ctx)
			}()
		}
	}

	p.queues.Behavior.Join()
	p.queues.Samples.Join()
	wg.Wait()
}
