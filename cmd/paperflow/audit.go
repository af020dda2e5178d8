package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/paperflow/internal/audit"
	"github.com/Veraticus/paperflow/internal/cli"
	"github.com/Veraticus/paperflow/internal/model"
)

type auditFilterFlags struct {
	runID   string
	outcome string
	limit   int
	last    bool
}

func (f *auditFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.runID, "run", "", "only records of this run")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "only records with this outcome (success, skipped, failed)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of records")
	cmd.Flags().BoolVar(&f.last, "last", false, "only records of the most recent run")
}

func (f *auditFilterFlags) filter(cmd *cobra.Command, store *audit.SQLiteStore) (audit.Filter, error) {
	filter := audit.Filter{RunID: f.runID, Outcome: model.Outcome(f.outcome), Limit: f.limit}
	switch filter.Outcome {
	case "", model.OutcomeSuccess, model.OutcomeSkipped, model.OutcomeFailed:
	default:
		return filter, fmt.Errorf("unknown outcome %q", f.outcome)
	}
	if f.last && filter.RunID == "" {
		runID, err := store.LastRunID(cmd.Context())
		if err != nil {
			return filter, err
		}
		filter.RunID = runID
	}
	return filter, nil
}

func (a *app) openStore(cmd *cobra.Command) (*audit.SQLiteStore, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return audit.OpenSQLite(cmd.Context(), cfg.Audit.Database)
}

func (a *app) auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit trail",
	}
	cmd.AddCommand(a.auditListCmd())
	cmd.AddCommand(a.auditExportCmd())
	return cmd
}

func (a *app) auditListCmd() *cobra.Command {
	var flags auditFilterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter, err := flags.filter(cmd, store)
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No audit records"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderAuditRecords(records))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) auditExportCmd() *cobra.Command {
	var (
		flags auditFilterFlags
		xlsx  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit records to a spreadsheet for manual review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter, err := flags.filter(cmd, store)
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			f, err := os.Create(xlsx)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", xlsx, err)
			}
			if err := audit.ExportXLSX(f, records); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", xlsx, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d records to %s", len(records), xlsx)))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "output spreadsheet path")
	_ = cmd.MarkFlagRequired("xlsx")
	return cmd
}
