package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

// Bounded limits each prediction to a fixed duration. A call that runs out
// of time fails with a ClassifierUnavailableError and is not retried.
type Bounded struct {
	inner   Adapter
	timeout time.Duration
}

// WithTimeout wraps inner. A zero timeout returns inner unchanged.
func WithTimeout(inner Adapter, timeout time.Duration) Adapter {
	if timeout <= 0 {
		return inner
	}
	return &Bounded{inner: inner, timeout: timeout}
}

// Identity implements Adapter.
func (b *Bounded) Identity() string {
	return b.inner.Identity()
}

// Predict implements Adapter.
func (b *Bounded) Predict(ctx context.Context, text string) (model.Prediction, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		err  error
		pred model.Prediction
	}
	done := make(chan outcome, 1)
	go func() {
		pred, err := b.inner.Predict(callCtx, text)
		done <- outcome{pred: pred, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return model.Prediction{}, b.timedOut(o.err)
		}
		return o.pred, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return model.Prediction{}, ctx.Err()
		}
		return model.Prediction{}, b.timedOut(callCtx.Err())
	}
}

func (b *Bounded) timedOut(err error) error {
	return common.NewClassifierUnavailableError(b.inner.Identity(), fmt.Errorf("prediction exceeded %s: %w", b.timeout, err))
}
