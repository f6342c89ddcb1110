// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"io"

	"github.com/FairForge/intelvault/internal/cache"
	"github.com/FairForge/intelvault/internal/catalog"
	"github.com/FairForge/intelvault/internal/config"
	"github.com/FairForge/intelvault/internal/queue"
	"github.com/FairForge/intelvault/internal/report"
	"github.com/FairForge/intelvault/internal/sandbox"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Catalog is the remote intelligence service the pipeline retrieves from.
// Every operation is a single attempt; failures are classified by the caller.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) catalog.Iterator
	GetObject(ctx context.Context, id string) (*catalog.Object, error)
	GetBehavior(ctx context.Context, id string) (catalog.Report, error)
	DownloadTo(ctx context.Context, id string, sink io.Writer) error
}

// Pipeline owns one retrieval run: the three work queues, the disk cache
// discipline, the worker pools and the heartbeat monitor. A Pipeline is used
// for a single invocation and not reused.
type Pipeline struct {
	cfg      *config.Config
	catalog  Catalog
	cache    *cache.DiskCache
	queues   *queue.Set
	renderer *report.Renderer
	parser   *sandbox.Parser
	logger   *zap.Logger
}

// New creates a pipeline for one run. The run ID ties all log lines of an
// invocation together.
func New(cfg *config.Config, cat Catalog, renderer *report.Renderer, parser *sandbox.Parser, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		catalog:  cat,
		cache:    cache.New(logger),
		queues:   queue.NewSet(),
		renderer: renderer,
		parser:   parser,
		logger:   logger.With(zap.String("run_id", uuid.New().String())),
	}
}

// Queues exposes the queue set, primarily for tests asserting completion.
func (p *Pipeline) Queues() *queue.Set {
	return p.queues
}
