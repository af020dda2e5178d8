package classifier

import (
	"context"
	"math"
	"sort"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/textnorm"
)

// Adapter turns document text into a prediction. Implementations must be
// pure with respect to the text and safe for concurrent use.
type Adapter interface {
	Predict(ctx context.Context, text string) (model.Prediction, error)
	Identity() string
}

// NaiveBayes serves predictions from a loaded Model.
type NaiveBayes struct {
	model     *Model
	logPriors map[string]float64
	vocab     map[string]struct{}
	identity  string
}

// NewAdapter wraps a loaded model. A missing or unusable model is reported
// as a ClassifierUnavailableError.
func NewAdapter(m *Model) (*NaiveBayes, error) {
	if err := m.Validate(); err != nil {
		return nil, common.NewClassifierUnavailableError("naive-bayes", err)
	}

	labels := append([]string(nil), m.Labels...)
	sort.Strings(labels)

	total := 0
	for _, label := range labels {
		total += m.DocCounts[label]
	}
	priors := make(map[string]float64, len(labels))
	for _, label := range labels {
		priors[label] = math.Log(float64(m.DocCounts[label]) / float64(total))
	}

	vocab := make(map[string]struct{})
	for _, counts := range m.TokenCounts {
		for tok := range counts {
			vocab[tok] = struct{}{}
		}
	}

	loaded := *m
	loaded.Labels = labels
	identity := "naive-bayes"
	if m.Name != "" {
		identity += ":" + m.Name
	}

	return &NaiveBayes{model: &loaded, logPriors: priors, vocab: vocab, identity: identity}, nil
}

// Load reads the model at path and wraps it.
func Load(path string) (*NaiveBayes, error) {
	m, err := LoadModel(path)
	if err != nil {
		return nil, common.NewClassifierUnavailableError("naive-bayes", err)
	}
	return NewAdapter(m)
}

// Identity implements Adapter.
func (nb *NaiveBayes) Identity() string {
	return nb.identity
}

// Labels returns the labels known to the model, sorted.
func (nb *NaiveBayes) Labels() []string {
	return append([]string(nil), nb.model.Labels...)
}

// Predict implements Adapter. The score is the softmax-normalized posterior
// of the best label; ties go to the lexically smallest label.
func (nb *NaiveBayes) Predict(ctx context.Context, text string) (model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return model.Prediction{}, err
	}

	scores := nb.posteriors(textnorm.Tokens(text))
	best := nb.model.Labels[0]
	for _, label := range nb.model.Labels[1:] {
		if scores[label] > scores[best] {
			best = label
		}
	}

	return model.Prediction{Label: best, Score: scores[best], Source: nb.identity}, nil
}

// posteriors returns normalized label probabilities for tokens.
func (nb *NaiveBayes) posteriors(tokens []string) map[string]float64 {
	m := nb.model
	logs := make(map[string]float64, len(m.Labels))
	maxLog := math.Inf(-1)

	for _, label := range m.Labels {
		counts := m.TokenCounts[label]
		denom := math.Log(m.TotalTokens[label] + m.Alpha*float64(m.Vocabulary))
		lp := nb.logPriors[label]
		for _, tok := range tokens {
			if !nb.known(tok) {
				continue
			}
			lp += math.Log(counts[tok]+m.Alpha) - denom
		}
		logs[label] = lp
		if lp > maxLog {
			maxLog = lp
		}
	}

	var sum float64
	probs := make(map[string]float64, len(logs))
	for label, lp := range logs {
		p := math.Exp(lp - maxLog)
		probs[label] = p
		sum += p
	}
	for label := range probs {
		probs[label] /= sum
	}
	return probs
}

func (nb *NaiveBayes) known(token string) bool {
	_, ok := nb.vocab[token]
	return ok
}
