// internal/pipeline/batch.go
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/FairForge/intelvault/internal/queue"
	"go.uber.org/zap"
)

// hashShapes accepts MD5, SHA-1 and SHA-256 identifiers and nothing else.
var hashShapes = regexp.MustCompile(`^(?:[a-fA-F0-9]{32}|[a-fA-F0-9]{40}|[a-fA-F0-9]{64})$`)

// LoadFromFile reads artifact identifiers from a text file, resolves each
// through the info pool, and downloads samples and behavior reports for
// everything that resolved. Non-hash lines are silently ignored; duplicates
// are enqueued once, in file order.
func (p *Pipeline) LoadFromFile(ctx context.Context, filename string) error {
	f, err := os.Open(filename) // #nosec G304 - operator-supplied path
	if err != nil {
		return fmt.Errorf("pipeline: opening sample file: %w", err)
	}
	defer func() { _ = f.Close() }()

	hbCtx, cancel := context.WithCancel(ctx)
	go p.heartbeat(hbCtx)

	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !hashShapes.MatchString(line) {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		p.queues.Info.Put(queue.TaskForID(line))
	}
	if err := scanner.Err(); err != nil {
		cancel()
		return fmt.Errorf("pipeline: reading sample file: %w", err)
	}

	p.logger.Info("resolving identifiers",
		zap.Int("count", p.queues.Info.Len()), zap.String("file", filename))

	sink := &resolvedSink{}
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.infoWorker(ctx, sink)
		}()
	}

	p.queues.Info.Join()
	wg.Wait()
	cancel()

	for _, obj := range sink.all() {
		if obj == nil {
			continue
		}
		if p.cfg.DownloadSamples {
			p.queues.Samples.Put(queue.TaskFor(obj))
		}
		if p.cfg.DownloadBehavior {
			p.queues.Behavior.Put(queue.TaskFor(obj))
		}
	}

	p.processQueues(ctx)
	return nil
}
