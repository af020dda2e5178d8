package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Veraticus/paperflow/internal/model"
)

// ProcessFunc handles one input path.
type ProcessFunc func(ctx context.Context, path string) Result

// Result pairs an input with what happened to it. Err is set only when the
// document was abandoned without a record; AuditErr when its record could
// not be written.
type Result struct {
	Err      error
	AuditErr error
	Path     string
	Record   model.AuditRecord
}

// Pool runs a ProcessFunc over inputs with a bounded number of workers.
type Pool struct {
	process ProcessFunc
	workers int
}

// NewPool creates a pool of workers goroutines; values below one mean one.
func NewPool(workers int, process ProcessFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{process: process, workers: workers}
}

// Run processes every path and calls onResult from the collecting goroutine
// as results arrive. Paths not yet started when ctx is cancelled are
// reported with ctx's error. Results are returned in input order.
func (p *Pool) Run(ctx context.Context, paths []string, onResult func(Result)) []Result {
	type job struct {
		path  string
		index int
	}
	type indexed struct {
		result Result
		index  int
	}

	workChan := make(chan job, len(paths))
	for i, path := range paths {
		workChan <- job{index: i, path: path}
	}
	close(workChan)

	resultsChan := make(chan indexed, len(paths))

	workers := p.workers
	if workers > len(paths) {
		workers = len(paths)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			for j := range workChan {
				if err := ctx.Err(); err != nil {
					resultsChan <- indexed{index: j.index, result: Result{Path: j.path, Err: err}}
					continue
				}
				slog.Debug("Worker picked up document", "worker_id", workerID, "path", j.path)
				result := p.process(ctx, j.path)
				result.Path = j.path
				resultsChan <- indexed{index: j.index, result: result}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]Result, len(paths))
	for r := range resultsChan {
		results[r.index] = r.result
		if onResult != nil {
			onResult(r.result)
		}
	}
	return results
}
