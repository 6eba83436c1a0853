package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/docshub/docsearch/internal/merger"
	"github.com/docshub/docsearch/pkg/config"
	"github.com/docshub/docsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	docsDir := flag.String("docs", "", "override docs root directory")
	out := flag.String("out", "", "override snapshot output path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *docsDir != "" {
		cfg.Merger.DocsDir = *docsDir
	}
	if *out != "" {
		cfg.Merger.SnapshotPath = *out
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index merge",
		"docs_dir", cfg.Merger.DocsDir,
		"snapshot", cfg.Merger.SnapshotPath,
		"parallelism", cfg.Merger.Parallelism,
	)

	result, err := merger.New(cfg.Merger).Run(context.Background())
	if err != nil {
		slog.Error("merge failed", "error", err)
		os.Exit(1)
	}
	if !result.WroteSnapshot {
		// Nothing to build is a legitimate state, not an error.
		slog.Info("no snapshot written", "skipped", result.Skipped)
		return
	}
	slog.Info("snapshot written",
		"path", result.SnapshotPath,
		"projects", result.Projects,
		"documents", result.Documents,
		"terms", result.Terms,
		"title_terms", result.TitleTerms,
		"sections", result.Sections,
		"skipped", result.Skipped,
	)
}
