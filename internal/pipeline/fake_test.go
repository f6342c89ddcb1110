package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/FairForge/intelvault/internal/catalog"
	"github.com/FairForge/intelvault/internal/config"
	"github.com/FairForge/intelvault/internal/report"
	"github.com/FairForge/intelvault/internal/sandbox"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeIterator replays a fixed result list, optionally failing at an index.
type fakeIterator struct {
	objs   []*catalog.Object
	err    error
	failAt int
	pos    int
}

func (it *fakeIterator) Next(_ context.Context) (*catalog.Object, error) {
	if it.err != nil && it.pos == it.failAt {
		return nil, it.err
	}
	if it.pos >= len(it.objs) {
		return nil, catalog.ErrDone
	}
	obj := it.objs[it.pos]
	it.pos++
	return obj, nil
}

// fakeCatalog is an in-memory Catalog recording every network-equivalent call.
type fakeCatalog struct {
	mu sync.Mutex

	searchResults []*catalog.Object
	searchErr     error
	searchFailAt  int

	objects      map[string]*catalog.Object
	objectErrs   map[string]error
	behaviors    map[string]catalog.Report
	downloadErrs map[string]error

	objectCalls   []string
	behaviorCalls int
	downloads     int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		objects:      make(map[string]*catalog.Object),
		objectErrs:   make(map[string]error),
		behaviors:    make(map[string]catalog.Report),
		downloadErrs: make(map[string]error),
	}
}

func (f *fakeCatalog) Search(_ context.Context, _ string, limit int) catalog.Iterator {
	objs := f.searchResults
	if len(objs) > limit {
		objs = objs[:limit]
	}
	return &fakeIterator{objs: objs, err: f.searchErr, failAt: f.searchFailAt}
}

func (f *fakeCatalog) GetObject(_ context.Context, id string) (*catalog.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objectCalls = append(f.objectCalls, id)

	if err, ok := f.objectErrs[id]; ok {
		return nil, err
	}
	if obj, ok := f.objects[id]; ok {
		return obj, nil
	}
	return nil, &catalog.APIError{Code: catalog.CodeNotFound, Status: 404}
}

func (f *fakeCatalog) GetBehavior(_ context.Context, id string) (catalog.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behaviorCalls++

	if rep, ok := f.behaviors[id]; ok {
		return rep, nil
	}
	return nil, &catalog.APIError{Code: catalog.CodeNotFound, Status: 404}
}

func (f *fakeCatalog) DownloadTo(_ context.Context, id string, sink io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++

	if err, ok := f.downloadErrs[id]; ok {
		return err
	}
	_, err := sink.Write([]byte("content-" + id))
	return err
}

func (f *fakeCatalog) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

func (f *fakeCatalog) behaviorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.behaviorCalls
}

func (f *fakeCatalog) objectCallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.objectCalls...)
}

func fileResult(id string) *catalog.Object {
	return &catalog.Object{Kind: catalog.KindFile, ID: id,
		File: &catalog.FileAttributes{SHA256: id}}
}

// testConfig creates a run configuration rooted in a temp directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Query = "tag:testing"
	cfg.Workers = 2
	cfg.DownloadDir = t.TempDir()
	cfg.Catalog.APIKey = "test"
	cfg.ApplyDefaults()
	require.NoError(t, cfg.EnsureDirectories())
	return cfg
}

func testPipeline(t *testing.T, cfg *config.Config, cat Catalog) *Pipeline {
	t.Helper()
	logger := zap.NewNop()
	renderer := report.NewRenderer(report.Options{Stdout: io.Discard}, logger)
	parser := sandbox.NewParser(renderer, logger)
	return New(cfg, cat, renderer, parser, logger)
}

// requireJoined asserts the invariant that every queue ends a run with a
// pending count of zero.
func requireJoined(t *testing.T, p *Pipeline) {
	t.Helper()
	require.Zero(t, p.Queues().Info.Pending(), "info queue left pending work")
	require.Zero(t, p.Queues().Samples.Pending(), "samples queue left pending work")
	require.Zero(t, p.Queues().Behavior.Pending(), "behavior queue left pending work")
}
