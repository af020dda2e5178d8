// Package classifier provides the statistical document classifier: a
// multinomial naive Bayes model over folded word tokens.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ModelVersion is the on-disk format version written by Save.
const ModelVersion = 1

// Model is a trained naive Bayes model. It is never mutated after loading.
type Model struct {
	TrainedAt   time.Time                     `json:"trained_at"`
	TokenCounts map[string]map[string]float64 `json:"token_counts"` // label -> token -> count
	TotalTokens map[string]float64            `json:"total_tokens"` // label -> sum of counts
	DocCounts   map[string]int                `json:"doc_counts"`   // label -> training documents
	Name        string                        `json:"name"`
	Labels      []string                      `json:"labels"`
	Vocabulary  int                           `json:"vocabulary"`
	Alpha       float64                       `json:"alpha"`
	Version     int                           `json:"version"`
}

// Validate reports whether the model can serve predictions.
func (m *Model) Validate() error {
	if m == nil {
		return errors.New("no model")
	}
	if m.Version != ModelVersion {
		return fmt.Errorf("unsupported model version %d", m.Version)
	}
	if len(m.Labels) == 0 {
		return errors.New("model has no labels")
	}
	if m.Alpha <= 0 {
		return errors.New("model smoothing must be positive")
	}
	for _, label := range m.Labels {
		if m.DocCounts[label] <= 0 {
			return fmt.Errorf("label %q has no training documents", label)
		}
	}
	return nil
}

// LoadModel reads a model written by Save.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	sort.Strings(m.Labels)
	if m.Name == "" {
		m.Name = filepath.Base(path)
	}
	return &m, nil
}

// Save writes the model as JSON, replacing path atomically.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to install model: %w", err)
	}
	return nil
}
