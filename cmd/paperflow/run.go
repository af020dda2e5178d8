package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/paperflow/internal/audit"
	"github.com/Veraticus/paperflow/internal/cli"
	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/dispatch"
	"github.com/Veraticus/paperflow/internal/metrics"
	"github.com/Veraticus/paperflow/internal/pipeline"
	"github.com/Veraticus/paperflow/internal/resolver"
)

func (a *app) runCmd() *cobra.Command {
	var (
		jsonOutput bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "run [inputs...]",
		Short: "Classify and file documents",
		Long: `Process files and directories (default: the configured inbox). Every document
gets an audit record. The command exits non-zero when any document failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfgFile == "" {
				return common.NewConfigError("", fmt.Errorf("%w: --config is required for run", common.ErrMissingConfig))
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger := slog.Default()

			// Everything that can fail on configuration is built before any
			// document is touched.
			engine, err := newRuleEngine(cfg)
			if err != nil {
				return err
			}
			cls, err := newClassifier(cfg.Classifier, logger)
			if err != nil {
				return err
			}
			source, err := newSource(cfg.OCR)
			if err != nil {
				return err
			}
			extractor, err := newExtractor(cfg, logger)
			if err != nil {
				return err
			}
			actions, err := cfg.ActionPolicy()
			if err != nil {
				return err
			}

			inputs := args
			if len(inputs) == 0 {
				inputs = []string{cfg.Inbox}
			}
			paths, err := pipeline.ExpandInputs(inputs)
			if err != nil {
				return err
			}

			store, err := audit.OpenSQLite(cmd.Context(), cfg.Audit.Database)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			logWriter, closeLog, err := openAuditLog(cfg.Audit.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			runID := pipeline.NewRunID()
			pm := metrics.New()
			p, err := pipeline.New(pipeline.Options{
				Source:     source,
				Rules:      engine,
				Classifier: cls,
				Resolver:   resolver.New(cfg.Classifier.Threshold),
				Extractor:  extractor,
				Dispatcher: dispatch.New(dispatch.Options{Root: cfg.OutputRoot, RunID: runID, Logger: logger}),
				Sink:       audit.MultiSink{store, audit.NewLogSink(logWriter)},
				Metrics:    pm,
				Logger:     logger,
				Actions:    actions,
				RunID:      runID,
				Workers:    cfg.WorkerCount(),
			})
			if err != nil {
				return err
			}

			logger.Info("Starting run",
				"run_id", runID,
				"documents", len(paths),
				"rules", engine.Len(),
				"workers", cfg.WorkerCount(),
				"output_root", cfg.OutputRoot)

			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx, stop := interrupts.HandleInterrupts(cmd.Context())
			defer stop()

			var progress *cli.Progress
			if !noProgress && !jsonOutput && len(paths) > 0 {
				progress = cli.NewProgress(cmd.ErrOrStderr(), len(paths))
			}
			summary := p.Run(ctx, paths, func(r pipeline.Result) {
				if progress != nil && r.Err == nil {
					progress.Done(r.Record)
				}
			})
			if progress != nil {
				progress.Finish()
			}

			if cfg.Metrics.Textfile != "" {
				if err := pm.WriteTextfile(cfg.Metrics.Textfile); err != nil {
					logger.Warn("Failed to write metrics", "path", cfg.Metrics.Textfile, "error", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				fmt.Fprintln(out, summary.JSON())
			} else {
				fmt.Fprintln(out, cli.RenderSummary(summary))
				if summary.Failed > 0 {
					fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("See failures with: paperflow audit list --run %s --outcome failed", runID)))
				}
			}

			if code := summary.ExitCode(); code != 0 {
				return &exitCodeError{code: code}
			}
			slog.Debug("Run complete", "elapsed", summary.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}
