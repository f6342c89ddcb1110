// cmd/intelvault/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/FairForge/intelvault/internal/catalog"
	"github.com/FairForge/intelvault/internal/config"
	"github.com/FairForge/intelvault/internal/logger"
	"github.com/FairForge/intelvault/internal/pipeline"
	"github.com/FairForge/intelvault/internal/report"
	"github.com/FairForge/intelvault/internal/sandbox"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Default()

	flag.StringVar(&cfg.Query, "q", "", "intelligence search query")
	flag.StringVar(&cfg.Query, "query", "", "intelligence search query")
	flag.IntVar(&cfg.Limit, "l", cfg.Limit, "limit the number of artifacts to return")
	flag.IntVar(&cfg.Limit, "limit", cfg.Limit, "limit the number of artifacts to return")
	flag.StringVar(&cfg.SampleFile, "f", "", "file with artifact identifiers to download")
	flag.StringVar(&cfg.SampleFile, "file", "", "file with artifact identifiers to download")
	flag.BoolVar(&cfg.DownloadSamples, "d", false, "also download samples referenced in the search")
	flag.BoolVar(&cfg.DownloadSamples, "download", false, "also download samples referenced in the search")
	noBehavior := flag.Bool("no-behavior", false, "do not download behavior reports for samples")
	flag.IntVar(&cfg.Workers, "w", cfg.Workers, "number of concurrent workers per role")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent workers per role")
	flag.StringVar(&cfg.DownloadDir, "download-dir", "", "directory where retrieved information is stored")
	flag.StringVar(&cfg.LogFile, "logfile", cfg.LogFile, "name of the log file")
	flag.IntVar(&cfg.Report.Verbose, "v", 0, "verbosity level for report output (0-3)")
	flag.BoolVar(&cfg.Report.CSV, "csv", false, "export results as comma-separated values")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	cfg.DownloadBehavior = !*noBehavior
	config.LoadFromEnv(cfg)

	boot, _ := zap.NewProduction()

	if cfg.Query == "" && cfg.SampleFile == "" {
		fmt.Fprintln(os.Stderr, "please specify either an intelligence search query (-q) or a file with sample hashes (-f)")
		os.Exit(1)
	}

	// every run gets its own directory unless one was chosen explicitly
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join("downloads", time.Now().Format("20060102_1504"))
	}
	cfg.ApplyDefaults()

	if cfg.SampleFile != "" {
		if !cfg.DownloadSamples {
			cfg.DownloadSamples = true
			boot.Warn("sample download is automatically enabled in file mode")
		}
		if cfg.Report.CSV && cfg.Query == "" {
			cfg.Report.CSV = false
			boot.Warn("CSV export is only supported in search mode")
		}
	}

	if err := cfg.Validate(); err != nil {
		boot.Fatal("invalid configuration", zap.Error(err))
	}
	if err := cfg.EnsureDirectories(); err != nil {
		boot.Fatal("creating directories", zap.Error(err))
	}

	log := logger.New(cfg)
	defer func() { _ = log.Sync() }()

	client, err := catalog.NewClient(catalog.ClientConfig{
		BaseURL:           cfg.Catalog.BaseURL,
		APIKey:            cfg.Catalog.APIKey,
		RequestsPerMinute: cfg.Catalog.RequestsPerMinute,
	}, log)
	if err != nil {
		log.Fatal("creating catalog client", zap.Error(err))
	}

	renderer := report.NewRenderer(report.Options{
		Verbose:   cfg.Report.Verbose,
		CSV:       cfg.Report.CSV,
		Separator: cfg.Report.Separator,
	}, log)
	if err := renderer.OpenCSV(cfg.DownloadDir, cfg.DownloadBehavior); err != nil {
		log.Fatal("creating CSV exports", zap.Error(err))
	}
	defer func() { _ = renderer.Close() }()

	parser := sandbox.NewParser(renderer, log)

	if *metricsAddr != "" {
		go pipeline.ServeMetrics(*metricsAddr, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Query != "" {
		p := pipeline.New(cfg, client, renderer, parser, log)
		if err := p.Search(ctx); err != nil {
			log.Error("search did not complete", zap.Error(err))
		}
	}

	if cfg.SampleFile != "" {
		p := pipeline.New(cfg, client, renderer, parser, log)
		if err := p.LoadFromFile(ctx, cfg.SampleFile); err != nil {
			log.Error("file download did not complete", zap.Error(err))
		}
	}

	log.Info("information saved", zap.String("dir", cfg.DownloadDir))
}
