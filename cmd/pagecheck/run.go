package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/pagecheck/internal/analyzer"
	"github.com/steveyegge/pagecheck/internal/batch"
	"github.com/steveyegge/pagecheck/internal/cache"
	"github.com/steveyegge/pagecheck/internal/config"
	"github.com/steveyegge/pagecheck/internal/expand"
	"github.com/steveyegge/pagecheck/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run [document-id ...]",
	Short: "Validate documents and emit a batch report",
	Long: `Run one validation batch over the given documents.

Each document is a directory of page rasters under the documents root
(--root). Every page is analyzed at most once per validator version;
repeated content is served from the cache.

Exit codes: 0 all units succeeded, 1 batch completed with failures,
2 fatal configuration error.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root, _ := cmd.Flags().GetString("root")
		outPath, _ := cmd.Flags().GetString("out")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		failFast, _ := cmd.Flags().GetBool("fail-fast")
		quiet, _ := cmd.Flags().GetBool("quiet")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfigError)
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Concurrency = concurrency
		}
		if cmd.Flags().Changed("fail-fast") {
			cfg.FailFast = failFast
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfigError)
		}

		source, err := expand.NewDirSource(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfigError)
		}

		store, err := cache.NewSQLite(cfg.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfigError)
		}
		defer store.Close()

		pages, err := analyzer.NewAI(&analyzer.Config{
			Model:             cfg.Analyzer.Model,
			RequestsPerSecond: cfg.Analyzer.RequestsPerSecond,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfigError)
		}

		orchCfg := batch.Config{
			Cache:             store,
			Source:            source,
			Analyzer:          pages,
			Concurrency:       cfg.Concurrency,
			TTL:               cfg.TTL,
			UnitTimeout:       cfg.UnitTimeout,
			FailFast:          cfg.FailFast,
			RollingWindowSize: cfg.RollingWindowSize,
			ValidatorVersion:  cfg.ValidatorVersion,
		}
		if !quiet {
			orchCfg.RenderInterval = 500 * time.Millisecond
			orchCfg.RenderTo = os.Stderr
		}

		orchestrator, err := batch.New(orchCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfigError)
		}

		// Ctrl+C stops admitting new pages; in-flight analyses finish and
		// the partial report is still emitted.
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		batchReport, err := orchestrator.Run(ctx, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfigError)
		}

		report.PrintSummary(os.Stdout, batchReport)

		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to create report file: %v\n", err)
				os.Exit(exitPartial)
			}
			writeErr := report.WriteJSON(f, batchReport)
			closeErr := f.Close()
			if writeErr != nil || closeErr != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to write report file: %v\n", writeErr)
				os.Exit(exitPartial)
			}
			fmt.Printf("Report written to %s\n", outPath)
		}

		if batchReport.Partial() {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Println(yellow("Batch completed with failures."))
			os.Exit(exitPartial)
		}
		os.Exit(exitOK)
	},
}

func init() {
	runCmd.Flags().String("root", ".", "documents root directory")
	runCmd.Flags().String("out", "", "write the full JSON report to this file")
	runCmd.Flags().Int("concurrency", 0, "override configured concurrency")
	runCmd.Flags().Bool("fail-fast", false, "stop admitting new pages after the first failure")
	runCmd.Flags().Bool("quiet", false, "disable live progress rendering")
	rootCmd.AddCommand(runCmd)
}
