// internal/report/renderer.go
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FairForge/intelvault/internal/catalog"
	"go.uber.org/zap"
)

// Options configures the renderer.
type Options struct {
	Verbose   int
	CSV       bool
	Separator string
	Stdout    io.Writer
}

// ApplyDefaults fills in default values.
func (o *Options) ApplyDefaults() {
	if o.Separator == "" {
		o.Separator = ";"
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
}

// field is one summary line; each artifact kind declares its own field list.
type field struct {
	label string
	value string
	level int // minimum verbosity for on-screen display
}

// Renderer emits human-readable summaries and optional CSV exports for
// visited artifacts. Render is safe for concurrent use by pipeline workers.
type Renderer struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	searchCSV   *csv.Writer
	searchFile  io.Closer
	networkCSV  *csv.Writer
	networkFile io.Closer
}

// NewRenderer creates a renderer.
func NewRenderer(opts Options, logger *zap.Logger) *Renderer {
	opts.ApplyDefaults()
	return &Renderer{opts: opts, logger: logger}
}

// OpenCSV creates the CSV export files under dir. The network file is only
// created when behavior reports are being collected.
func (r *Renderer) OpenCSV(dir string, includeNetwork bool) error {
	if !r.opts.CSV {
		return nil
	}

	sep := []rune(r.opts.Separator)[0]

	f, err := os.Create(filepath.Join(dir, "search.csv")) // #nosec G304 - config-driven dir
	if err != nil {
		return fmt.Errorf("report: creating search.csv: %w", err)
	}
	r.searchFile = f
	r.searchCSV = csv.NewWriter(f)
	r.searchCSV.Comma = sep

	// at the highest verbosity the export switches to one row per engine
	header := []string{"#SHA256", "MD5", "SHA1", "VHash", "Size", "Type", "Tags",
		"First submitted", "Last submitted", "Times submitted",
		"Harmless", "Malicious", "Suspicious", "Undetected"}
	if r.opts.Verbose >= 3 {
		header = []string{"#SHA256", "MD5", "SHA1", "VHash", "Size", "Type", "Tags",
			"Vendor", "Signature", "Result", "Signature Database"}
	}
	if err := r.searchCSV.Write(header); err != nil {
		return fmt.Errorf("report: writing search.csv header: %w", err)
	}

	if includeNetwork {
		nf, err := os.Create(filepath.Join(dir, "network.csv")) // #nosec G304
		if err != nil {
			return fmt.Errorf("report: creating network.csv: %w", err)
		}
		r.networkFile = nf
		r.networkCSV = csv.NewWriter(nf)
		r.networkCSV.Comma = sep
		if err := r.networkCSV.Write([]string{"#SHA256", "MD5", "SHA1", "VHash", "Size", "Type",
			"Host", "Port", "URL"}); err != nil {
			return fmt.Errorf("report: writing network.csv header: %w", err)
		}
	}

	return nil
}

// Close flushes and closes the CSV exports.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.searchCSV != nil {
		r.searchCSV.Flush()
		if err := r.searchFile.Close(); err != nil {
			return err
		}
		r.searchCSV = nil
	}
	if r.networkCSV != nil {
		r.networkCSV.Flush()
		if err := r.networkFile.Close(); err != nil {
			return err
		}
		r.networkCSV = nil
	}
	return nil
}

// displayIdentifier is what a human sees for the artifact: URLs show the URL
// text rather than the opaque object ID.
func displayIdentifier(obj *catalog.Object) string {
	if obj.Kind == catalog.KindURL && obj.URL != nil && obj.URL.URL != "" {
		return obj.URL.URL
	}
	return obj.ID
}

// Render prints the artifact identifier, writes a summary report to path if
// one does not exist yet, and appends the CSV export row. An empty path skips
// the summary file.
func (r *Renderer) Render(obj *catalog.Object, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identifier := displayIdentifier(obj)
	fmt.Fprintf(r.opts.Stdout, "%-80s\n", identifier)

	var sink io.WriteCloser
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			r.logger.Debug("summary report already exists on disk and is not written again",
				zap.String("id", obj.ID))
		} else {
			f, err := os.Create(path) // #nosec G304 - config-driven dir
			if err != nil {
				r.logger.Error("creating summary report", zap.String("path", path), zap.Error(err))
			} else {
				sink = f
				fmt.Fprintf(f, "%s\n", identifier)
			}
		}
	}

	for _, fl := range fieldsFor(obj) {
		line := fmt.Sprintf("  %-28s%s", fl.label+":", fl.value)
		if r.opts.Verbose >= fl.level {
			fmt.Fprintln(r.opts.Stdout, line)
		}
		if sink != nil {
			fmt.Fprintln(sink, line)
		}
	}

	// per-engine verdicts are always part of the summary file but only reach
	// the screen at the highest verbosity
	for _, line := range scanResultLines(obj) {
		if r.opts.Verbose >= 3 {
			fmt.Fprintln(r.opts.Stdout, line)
		}
		if sink != nil {
			fmt.Fprintln(sink, line)
		}
	}

	if sink != nil {
		if err := sink.Close(); err != nil {
			r.logger.Error("closing summary report", zap.String("path", path), zap.Error(err))
		} else {
			r.logger.Debug("saved summary report", zap.String("path", path))
		}
	}

	r.writeSearchRow(obj)
}

// fieldsFor returns the statically declared summary fields for the artifact
// kind, omitting values the catalog did not populate.
func fieldsFor(obj *catalog.Object) []field {
	var out []field

	add := func(label, value string, level int) {
		if value != "" {
			out = append(out, field{label: label, value: value, level: level})
		}
	}

	switch obj.Kind {
	case catalog.KindFile:
		if a := obj.File; a != nil {
			add("MD5", a.MD5, 1)
			add("Sha1", a.SHA1, 1)
			add("VHash", a.VHash, 1)
			add("File description", a.Magic, 1)
			add("Type", a.TypeTag, 1)
			add("Tag(s)", strings.Join(a.Tags, ", "), 1)
			if a.Size > 0 {
				add("Size", strconv.FormatInt(a.Size, 10), 1)
			}
			add("First submission", formatTimestamp(a.FirstSubmission), 2)
			add("Last submission", formatTimestamp(a.LastSubmission), 2)
			if a.TimesSubmitted > 0 {
				add("Number of submissions", strconv.Itoa(a.TimesSubmitted), 2)
			}
			if a.UniqueSources > 0 {
				add("Unique sources", strconv.Itoa(a.UniqueSources), 2)
			}
		}
	case catalog.KindDomain:
		if a := obj.Domain; a != nil {
			add("Creation date", formatTimestamp(a.CreationDate), 1)
			add("Last modified", formatTimestamp(a.LastModification), 1)
			add("Last updated", formatTimestamp(a.LastUpdate), 1)
			add("Tag(s)", strings.Join(a.Tags, ", "), 1)
			add("Registrar", a.Registrar, 2)
		}
	case catalog.KindURL:
		if a := obj.URL; a != nil {
			add("Final URL", a.FinalURL, 1)
			add("Title", a.Title, 1)
			add("Tag(s)", strings.Join(a.Tags, ", "), 1)
			add("First submission", formatTimestamp(a.FirstSubmission), 2)
			add("Last submission", formatTimestamp(a.LastSubmission), 2)
			if a.TimesSubmitted > 0 {
				add("Number of submissions", strconv.Itoa(a.TimesSubmitted), 2)
			}
		}
	}

	if s := obj.Stats; s != nil {
		add("Benign", strconv.Itoa(s.Harmless), 1)
		add("Malicious", strconv.Itoa(s.Malicious), 1)
		add("Suspicious", strconv.Itoa(s.Suspicious), 1)
		add("Undetected", strconv.Itoa(s.Undetected), 1)
	}

	return out
}

// scanResultLines renders one line per antivirus engine verdict, in engine
// order. Long signatures are truncated for display.
func scanResultLines(obj *catalog.Object) []string {
	if obj.Kind != catalog.KindFile || obj.File == nil || len(obj.File.Results) == 0 {
		return nil
	}

	var out []string
	for _, name := range sortedEngines(obj.File.Results) {
		engine := obj.File.Results[name]

		signature := engine.Result
		if signature == "" {
			signature = "--"
		}
		if len(signature) > 40 {
			signature = fmt.Sprintf("%s (...)", signature[:40])
		}

		database := engine.EngineUpdate
		if database == "" {
			database = "--"
		}

		out = append(out, fmt.Sprintf("  %-28s%-47s%-25s(Signature Database: %s)",
			engine.EngineName, signature, engine.Category, database))
	}
	return out
}

func sortedEngines(results map[string]catalog.EngineResult) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatTimestamp(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

// writeSearchRow appends one artifact to the search CSV export. Caller holds
// the renderer lock.
func (r *Renderer) writeSearchRow(obj *catalog.Object) {
	if r.searchCSV == nil {
		return
	}

	if r.opts.Verbose >= 3 {
		r.writeEngineRows(obj)
		return
	}

	row := fileColumns(obj)

	var stats catalog.AnalysisStats
	if obj.Stats != nil {
		stats = *obj.Stats
	}
	row = append(row,
		strconv.Itoa(stats.Harmless), strconv.Itoa(stats.Malicious),
		strconv.Itoa(stats.Suspicious), strconv.Itoa(stats.Undetected))

	if err := r.searchCSV.Write(row); err != nil {
		r.logger.Error("writing search CSV row", zap.String("id", obj.ID), zap.Error(err))
	}
	r.searchCSV.Flush()
}

// writeEngineRows appends one row per antivirus engine verdict: the artifact
// identity columns followed by the engine's name, signature, category and
// signature-database date. Artifacts without engine results produce no rows.
// Caller holds the renderer lock.
func (r *Renderer) writeEngineRows(obj *catalog.Object) {
	if obj.Kind != catalog.KindFile || obj.File == nil {
		return
	}

	identity := fileColumns(obj)[:7]
	for _, name := range sortedEngines(obj.File.Results) {
		engine := obj.File.Results[name]
		row := append(append([]string{}, identity...),
			engine.EngineName, engine.Result, engine.Category, engine.EngineUpdate)
		if err := r.searchCSV.Write(row); err != nil {
			r.logger.Error("writing search CSV row", zap.String("id", obj.ID), zap.Error(err))
		}
	}
	r.searchCSV.Flush()
}

// fileColumns renders the identifying columns of a CSV row. List values are
// joined with "|" inside a single column.
func fileColumns(obj *catalog.Object) []string {
	switch obj.Kind {
	case catalog.KindFile:
		a := obj.File
		if a == nil {
			a = &catalog.FileAttributes{}
		}
		sha := a.SHA256
		if sha == "" {
			sha = obj.ID
		}
		return []string{sha, a.MD5, a.SHA1, a.VHash, strconv.FormatInt(a.Size, 10),
			a.TypeTag, strings.Join(a.Tags, "|"),
			formatTimestamp(a.FirstSubmission), formatTimestamp(a.LastSubmission),
			strconv.Itoa(a.TimesSubmitted)}
	case catalog.KindDomain:
		a := obj.Domain
		if a == nil {
			a = &catalog.DomainAttributes{}
		}
		return []string{obj.ID, "", "", "", "", "domain", strings.Join(a.Tags, "|"),
			formatTimestamp(a.CreationDate), formatTimestamp(a.LastModification), ""}
	case catalog.KindURL:
		a := obj.URL
		if a == nil {
			a = &catalog.URLAttributes{}
		}
		return []string{a.URL, "", "", "", "", "url", strings.Join(a.Tags, "|"),
			formatTimestamp(a.FirstSubmission), formatTimestamp(a.LastSubmission),
			strconv.Itoa(a.TimesSubmitted)}
	}
	return []string{obj.ID, "", "", "", "", string(obj.Kind), "", "", "", ""}
}

// WriteNetworkRow appends one network indicator extracted from a behavior
// report. Invoked by the sandbox parser; a no-op when CSV export is off.
func (r *Renderer) WriteNetworkRow(obj *catalog.Object, host, port, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.networkCSV == nil {
		return
	}

	var a catalog.FileAttributes
	if obj != nil && obj.File != nil {
		a = *obj.File
	}
	sha := a.SHA256
	if sha == "" && obj != nil {
		sha = obj.ID
	}

	row := []string{sha, a.MD5, a.SHA1, a.VHash, strconv.FormatInt(a.Size, 10), a.TypeTag,
		host, port, url}
	if err := r.networkCSV.Write(row); err != nil {
		r.logger.Error("writing network CSV row", zap.Error(err))
	}
	r.networkCSV.Flush()
}
