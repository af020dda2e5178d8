package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Veraticus/paperflow/internal/common"
)

// GuardOptions bounds calls to an engine.
type GuardOptions struct {
	Timeout          time.Duration // per document; zero disables
	OpenTimeout      time.Duration // how long the breaker stays open
	FailureThreshold uint32        // consecutive engine failures before opening
}

// GuardedSource bounds each recognition by a timeout and stops calling an
// engine that keeps failing. Every failure surfaces as an OCRDataError so the
// document is routed to review instead of aborting the run. Failures are
// never retried here.
type GuardedSource struct {
	inner   Source
	breaker *gobreaker.CircuitBreaker[Result]
	timeout time.Duration
}

// NewGuardedSource wraps inner.
func NewGuardedSource(inner Source, opts GuardOptions) *GuardedSource {
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Bad input files do not say anything about the engine's health.
			var dataErr *common.OCRDataError
			return err == nil || errors.As(err, &dataErr) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("OCR engine circuit state changed", "engine", name, "from", from.String(), "to", to.String())
		},
	}

	return &GuardedSource{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[Result](settings),
		timeout: opts.Timeout,
	}
}

// Name implements Source.
func (g *GuardedSource) Name() string { return g.inner.Name() }

// Recognize implements Source.
func (g *GuardedSource) Recognize(ctx context.Context, path string) (Result, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.breaker.Execute(func() (Result, error) {
		return g.call(callCtx, path)
	})
	if err == nil {
		return result, nil
	}

	// Cancellation of the run is not a data problem.
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	var dataErr *common.OCRDataError
	if errors.As(err, &dataErr) {
		return Result{}, err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Result{}, common.NewOCRDataError(path, fmt.Errorf("engine %s unavailable: %w", g.inner.Name(), err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{}, common.NewOCRDataError(path, fmt.Errorf("engine %s timed out after %s: %w", g.inner.Name(), g.timeout, err))
	}
	return Result{}, common.NewOCRDataError(path, err)
}

// call returns as soon as ctx is done, even if the engine ignores it.
func (g *GuardedSource) call(ctx context.Context, path string) (Result, error) {
	type outcome struct {
		err    error
		result Result
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := g.inner.Recognize(ctx, path)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
