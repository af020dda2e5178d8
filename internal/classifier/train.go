package classifier

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/paperflow/internal/textnorm"
)

// Example is one line of the training dataset.
type Example struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// ReadDataset parses a JSONL stream of {"text", "label"} objects. Blank
// lines are ignored.
func ReadDataset(r io.Reader) ([]Example, error) {
	var examples []Example
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var ex Example
		if err := json.Unmarshal([]byte(raw), &ex); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ex.Label = strings.TrimSpace(ex.Label)
		if ex.Label == "" {
			return nil, fmt.Errorf("line %d: missing label", line)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return examples, nil
}

// LoadDataset reads the JSONL dataset at path.
func LoadDataset(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadDataset(f)
}

// TrainOptions configures Train.
type TrainOptions struct {
	Name  string
	Alpha float64 // Laplace smoothing; defaults to 1
}

// Train fits a naive Bayes model on examples.
func Train(examples []Example, opts TrainOptions) (*Model, error) {
	if len(examples) == 0 {
		return nil, errors.New("empty training set")
	}
	if opts.Alpha <= 0 {
		opts.Alpha = 1
	}

	m := &Model{
		Version:     ModelVersion,
		Name:        opts.Name,
		Alpha:       opts.Alpha,
		TrainedAt:   time.Now().UTC(),
		TokenCounts: make(map[string]map[string]float64),
		TotalTokens: make(map[string]float64),
		DocCounts:   make(map[string]int),
	}

	vocab := make(map[string]struct{})
	for _, ex := range examples {
		if _, ok := m.TokenCounts[ex.Label]; !ok {
			m.TokenCounts[ex.Label] = make(map[string]float64)
			m.Labels = append(m.Labels, ex.Label)
		}
		m.DocCounts[ex.Label]++
		for _, tok := range textnorm.Tokens(ex.Text) {
			m.TokenCounts[ex.Label][tok]++
			m.TotalTokens[ex.Label]++
			vocab[tok] = struct{}{}
		}
	}
	sort.Strings(m.Labels)
	m.Vocabulary = len(vocab)

	return m, nil
}

// Split holds out ratio of each label's examples for evaluation. The split
// is stratified and deterministic for a given seed; a label with a single
// example stays in the training set.
func Split(examples []Example, ratio float64, seed int64) (train, test []Example) {
	byLabel := make(map[string][]Example)
	var labels []string
	for _, ex := range examples {
		if _, ok := byLabel[ex.Label]; !ok {
			labels = append(labels, ex.Label)
		}
		byLabel[ex.Label] = append(byLabel[ex.Label], ex)
	}
	sort.Strings(labels)

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible split, not security sensitive
	for _, label := range labels {
		group := append([]Example(nil), byLabel[label]...)
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })

		n := int(math.Round(float64(len(group)) * ratio))
		if n >= len(group) {
			n = len(group) - 1
		}
		if n < 0 {
			n = 0
		}
		test = append(test, group[:n]...)
		train = append(train, group[n:]...)
	}
	return train, test
}

// LabelMetrics are the evaluation scores of a single label.
type LabelMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarizes an evaluation run.
type Report struct {
	Labels   []LabelMetrics
	Accuracy float64
	MacroF1  float64
	Total    int
}

// Evaluate scores adapter on examples with per-label precision, recall and F1.
func Evaluate(ctx context.Context, adapter Adapter, examples []Example) (Report, error) {
	tp := make(map[string]int)
	fp := make(map[string]int)
	fn := make(map[string]int)
	seen := make(map[string]bool)
	correct := 0

	for _, ex := range examples {
		pred, err := adapter.Predict(ctx, ex.Text)
		if err != nil {
			return Report{}, err
		}
		seen[ex.Label] = true
		seen[pred.Label] = true
		if pred.Label == ex.Label {
			tp[ex.Label]++
			correct++
		} else {
			fp[pred.Label]++
			fn[ex.Label]++
		}
	}

	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	report := Report{Total: len(examples)}
	for _, label := range labels {
		lm := LabelMetrics{
			Label:     label,
			Precision: ratio(tp[label], tp[label]+fp[label]),
			Recall:    ratio(tp[label], tp[label]+fn[label]),
			Support:   tp[label] + fn[label],
		}
		if lm.Precision+lm.Recall > 0 {
			lm.F1 = 2 * lm.Precision * lm.Recall / (lm.Precision + lm.Recall)
		}
		report.Labels = append(report.Labels, lm)
		report.MacroF1 += lm.F1
	}
	if len(report.Labels) > 0 {
		report.MacroF1 /= float64(len(report.Labels))
	}
	report.Accuracy = ratio(correct, len(examples))
	return report, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
