package converter

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-midi/logging"
)

// Job is one file of a batch conversion.
type Job struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// BatchResult is the outcome of one Job.
type BatchResult struct {
	Job    Job     `json:"job"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// ProgressFunc is called once per finished job, from the worker that ran
// it. Implementations must be safe for concurrent use.
type ProgressFunc func(BatchResult)

// ConvertBatch converts jobs on a bounded worker pool. Results are returned
// in job order. A failing job does not stop the others; cancelling ctx
// makes the remaining jobs fail with the context error.
func (c *Converter) ConvertBatch(ctx context.Context, jobs []Job, progress ProgressFunc) []BatchResult {
	results := make([]BatchResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	numWorkers := c.options.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(jobs)))

	logger := c.logger.WithFields(logging.Fields{
		"function": "ConvertBatch",
		"jobs":     len(jobs),
		"workers":  numWorkers,
	})
	logger.Info("Starting batch conversion")
	start := time.Now()

	indices := make(chan int, len(jobs))
	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				job := jobs[i]
				res := BatchResult{Job: job}
				if err := ctx.Err(); err != nil {
					res.Err = err
				} else {
					res.Result, res.Err = c.ConvertFileToPath(ctx, job.Input, job.Output)
				}
				results[i] = res
				if progress != nil {
					progress(res)
				}
			}
		}()
	}

	for i := range jobs {
		indices <- i
	}
	close(indices)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("Batch conversion finished", logging.Fields{
		"failed":  failed,
		"elapsed": time.Since(start).Seconds(),
	})

	return results
}
