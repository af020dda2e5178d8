package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/paperflow/internal/classifier"
	"github.com/Veraticus/paperflow/internal/cli"
)

func (a *app) trainCmd() *cobra.Command {
	var (
		name      string
		alpha     float64
		testRatio float64
		seed      int64
	)

	cmd := &cobra.Command{
		Use:   "train <dataset.jsonl> <model.json>",
		Short: "Train the document classifier",
		Long: `Train a naive Bayes model from a JSONL dataset with one {"text", "label"}
object per line. A stratified share of the examples is held out to report
per-label precision, recall and F1.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			examples, err := classifier.LoadDataset(args[0])
			if err != nil {
				return err
			}

			trainSet, testSet := classifier.Split(examples, testRatio, seed)
			m, err := classifier.Train(trainSet, classifier.TrainOptions{Name: name, Alpha: alpha})
			if err != nil {
				return err
			}
			if err := m.Save(args[1]); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Trained on %d examples, %d labels → %s", len(trainSet), len(m.Labels), args[1])))
			if len(testSet) == 0 {
				fmt.Fprintln(out, cli.FormatWarning("No held-out examples; skipping evaluation"))
				return nil
			}

			adapter, err := classifier.NewAdapter(m)
			if err != nil {
				return err
			}
			report, err := classifier.Evaluate(cmd.Context(), adapter, testSet)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderReport(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "model name recorded in predictions")
	cmd.Flags().Float64Var(&alpha, "alpha", 1, "Laplace smoothing")
	cmd.Flags().Float64Var(&testRatio, "test-ratio", 0.2, "share of examples held out for evaluation")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed of the train/test split")
	return cmd
}

func renderReport(r classifier.Report) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	rows := make([][]string, 0, len(r.Labels))
	for _, lm := range r.Labels {
		rows = append(rows, []string{lm.Label, f(lm.Precision), f(lm.Recall), f(lm.F1), strconv.Itoa(lm.Support)})
	}
	table := cli.RenderTable([]string{"Label", "Precision", "Recall", "F1", "Support"}, rows)
	return fmt.Sprintf("%s\n\nAccuracy %s, macro F1 %s over %d held-out examples", table, f(r.Accuracy), f(r.MacroF1), r.Total)
}
