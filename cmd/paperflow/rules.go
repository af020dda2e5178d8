package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/paperflow/internal/cli"
	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/ocr"
	"github.com/Veraticus/paperflow/internal/rules"
)

func (a *app) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and check classification rules",
	}
	cmd.AddCommand(a.rulesValidateCmd())
	cmd.AddCommand(a.rulesListCmd())
	cmd.AddCommand(a.rulesTestCmd())
	return cmd
}

func (a *app) loadEngine() (*rules.Engine, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return newRuleEngine(cfg)
}

func (a *app) rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and compile every rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.loadEngine()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%d rules valid", engine.Len())))
			return nil
		},
	}
}

func (a *app) rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.loadEngine()
			if err != nil {
				return err
			}
			if engine.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No rules configured"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRules(engine.Rules()))
			return nil
		},
	}
}

func (a *app) rulesTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <document>",
		Short: "Show which rule criteria match a document, without filing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			engine, err := newRuleEngine(cfg)
			if err != nil {
				return err
			}
			source, err := newSource(cfg.OCR)
			if err != nil {
				return err
			}

			path := args[0]
			doc := model.Document{SourcePath: path, Metadata: map[string]string{}}
			result, err := source.Recognize(cmd.Context(), path)
			if err != nil {
				return err
			}
			for k, v := range result.Metadata {
				doc.Metadata[k] = v
			}
			text, err := ocr.Aggregate(result.Pages)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			subject := rules.NewSubject(doc, text)
			fmt.Fprintln(out, cli.RenderExplain(engine.Explain(subject)))
			if rule, ok := engine.Match(subject); ok {
				fmt.Fprintln(out, cli.FormatSuccess("First match: "+rule.Name))
			} else {
				fmt.Fprintln(out, cli.FormatWarning("No rule matches; the model decides"))
			}
			return nil
		},
	}
}
