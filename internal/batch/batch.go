// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch dispatches fixed-size batches of items through a bounded
// worker pool and merges per-batch results into one pass/fail view.
//
// Retry is never performed at this layer; it belongs to the per-batch
// operation. The merge guarantees total coverage: every input item ends in
// exactly one of the success map or the failure list.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Failure records one item a batch operation could not handle.
type Failure struct {
	Item   string
	Reason string
}

// Op processes one batch of items. It returns a success map keyed by item
// and failures for items it could not handle. A non-nil error marks the
// whole batch failed; items already covered by the returned map or failures
// keep their outcome.
type Op[V any] func(ctx context.Context, items []string) (map[string]V, []Failure, error)

// Config controls batch partitioning and dispatch.
type Config struct {
	// BatchSize is the maximum number of items per batch (default 1).
	BatchSize int

	// Workers is the number of concurrent batch workers (default 1).
	Workers int

	// Delay is the politeness pause each worker takes after a batch
	// completes, before it accepts the next one.
	Delay time.Duration

	// OnBatch, when set, is invoked once per completed batch. Observability
	// only; it never affects control flow.
	OnBatch func(done, total int)
}

// Run partitions items into consecutive batches of at most cfg.BatchSize and
// dispatches them to cfg.Workers concurrent workers. Results are merged in
// completion order: success maps are disjoint by key and failures append, so
// any interleaving is correct. Cancelling ctx stops dispatching new batches;
// in-flight batches complete and undispatched items are reported as failures.
func Run[V any](ctx context.Context, items []string, cfg Config, op Op[V]) (map[string]V, []Failure) {
	merged := make(map[string]V)
	var failures []Failure
	if len(items) == 0 {
		return merged, failures
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var batches [][]string
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}

	type result struct {
		batch    []string
		m        map[string]V
		failures []Failure
		err      error
	}

	jobs := make(chan []string)
	results := make(chan result)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				m, fails, err := op(ctx, b)
				results <- result{batch: b, m: m, failures: fails, err: err}
				if cfg.Delay > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(cfg.Delay):
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, b := range batches {
			if ctx.Err() != nil {
				// Undispatched batches surface as failures below.
				results <- result{batch: b, err: ctx.Err()}
				continue
			}
			select {
			case <-ctx.Done():
				results <- result{batch: b, err: ctx.Err()}
			case jobs <- b:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		done++
		covered := make(map[string]bool, len(r.batch))
		for k, v := range r.m {
			merged[k] = v
			covered[k] = true
		}
		for _, f := range r.failures {
			failures = append(failures, f)
			covered[f.Item] = true
		}
		if r.err != nil {
			for _, item := range r.batch {
				if !covered[item] {
					failures = append(failures, Failure{
						Item:   item,
						Reason: fmt.Sprintf("batch operation error: %v", r.err),
					})
					covered[item] = true
				}
			}
		}
		// Sweep: an op that silently drops items still yields total coverage.
		for _, item := range r.batch {
			if !covered[item] {
				failures = append(failures, Failure{Item: item, Reason: "unaccounted for in batch result"})
			}
		}
		if cfg.OnBatch != nil {
			cfg.OnBatch(done, len(batches))
		}
	}
	return merged, failures
}
