package classifier

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

func trainingSet() []Example {
	return []Example{
		{Label: "facture", Text: "Facture n° 2024-001 montant total TTC à payer SIRET"},
		{Label: "facture", Text: "FACTURE électricité EDF total à payer"},
		{Label: "facture", Text: "facture gaz montant TTC échéance"},
		{Label: "note", Text: "note de réunion compte rendu équipe projet"},
		{Label: "note", Text: "compte rendu réunion hebdomadaire notes"},
		{Label: "note", Text: "notes projet idées réunion"},
	}
}

func trainedAdapter(t *testing.T) *NaiveBayes {
	t.Helper()
	m, err := Train(trainingSet(), TrainOptions{Name: "test"})
	require.NoError(t, err)
	nb, err := NewAdapter(m)
	require.NoError(t, err)
	return nb
}

func TestNaiveBayes_Predict(t *testing.T) {
	nb := trainedAdapter(t)
	ctx := context.Background()

	pred, err := nb.Predict(ctx, "Votre facture EDF : total à payer 54,20 €")
	require.NoError(t, err)
	assert.Equal(t, "facture", pred.Label)
	assert.Greater(t, pred.Score, 0.5)
	assert.LessOrEqual(t, pred.Score, 1.0)
	assert.Equal(t, "naive-bayes:test", pred.Source)

	pred, err = nb.Predict(ctx, "compte rendu de la réunion projet")
	require.NoError(t, err)
	assert.Equal(t, "note", pred.Label)
}

func TestNaiveBayes_UnknownTextFallsBackToPriors(t *testing.T) {
	nb := trainedAdapter(t)

	pred, err := nb.Predict(context.Background(), "zzz qqq")
	require.NoError(t, err)
	// Equal priors: tie goes to the lexically smallest label.
	assert.Equal(t, "facture", pred.Label)
	assert.InDelta(t, 0.5, pred.Score, 1e-9)
}

func TestNaiveBayes_IsPureUnderConcurrency(t *testing.T) {
	nb := trainedAdapter(t)
	ctx := context.Background()
	want, err := nb.Predict(ctx, "facture gaz")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = nb.Predict(ctx, "réunion notes")
			}
			got, err := nb.Predict(ctx, "facture gaz")
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}(i)
	}
	wg.Wait()
}

func TestNewAdapter_Unavailable(t *testing.T) {
	tests := map[string]*Model{
		"nil model": nil,
		"no labels": {Version: ModelVersion, Alpha: 1},
		"bad version": {
			Version: 99, Alpha: 1, Labels: []string{"a"}, DocCounts: map[string]int{"a": 1},
		},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewAdapter(m)
			var unavailable *common.ClassifierUnavailableError
			require.True(t, errors.As(err, &unavailable))
			assert.True(t, common.IsFatal(err))
		})
	}
}

func TestModel_SaveLoad(t *testing.T) {
	m, err := Train(trainingSet(), TrainOptions{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "model.json")
	require.NoError(t, m.Save(path))

	nb, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"facture", "note"}, nb.Labels())
	assert.Equal(t, "naive-bayes:model.json", nb.Identity())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	var unavailable *common.ClassifierUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

type countingAdapter struct {
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (c *countingAdapter) Identity() string { return "counting" }

func (c *countingAdapter) Predict(_ context.Context, text string) (model.Prediction, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return model.Prediction{}, c.err
	}
	return model.Prediction{Label: strings.ToLower(text), Score: 0.9, Source: "counting"}, nil
}

func TestCached(t *testing.T) {
	inner := &countingAdapter{}
	cached := NewCached(inner, time.Minute, nil)
	ctx := context.Background()

	first, err := cached.Predict(ctx, "Note")
	require.NoError(t, err)
	second, err := cached.Predict(ctx, "Note")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, cached.Len())
	assert.Equal(t, "counting", cached.Identity())

	_, err = cached.Predict(ctx, "Other")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	inner := &countingAdapter{err: errors.New("boom")}
	cached := NewCached(inner, time.Minute, nil)

	_, err := cached.Predict(context.Background(), "x")
	require.Error(t, err)
	_, err = cached.Predict(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 0, cached.Len())
}

func TestWithTimeout(t *testing.T) {
	fast := &countingAdapter{}
	assert.Same(t, Adapter(fast), WithTimeout(fast, 0))

	pred, err := WithTimeout(fast, time.Second).Predict(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", pred.Label)

	slow := &countingAdapter{delay: 200 * time.Millisecond}
	_, err = WithTimeout(slow, 10*time.Millisecond).Predict(context.Background(), "slow")
	var unavailable *common.ClassifierUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WithTimeout(slow, time.Second).Predict(ctx, "slow")
	assert.ErrorIs(t, err, context.Canceled)
}
