package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dclabs/mailadmin-api/internal/models"
)

// RunnerState tracks the lifecycle of a bulk run.
type RunnerState string

const (
	RunnerIdle    RunnerState = "idle"
	RunnerRunning RunnerState = "running"
	RunnerDone    RunnerState = "done"
	RunnerFailed  RunnerState = "failed"
)

// bulkExecutor is the slice of Client the runner needs.
type bulkExecutor interface {
	Bulk(ctx context.Context, req models.BulkRequest) (*models.BulkResult, error)
}

// Progress reports per-chunk advancement to the caller.
type Progress struct {
	Processed int
	Remaining int
	Total     int
}

// RunnerOptions configures a bulk run.
type RunnerOptions struct {
	ChunkSize  int
	OnProgress func(Progress)
	// OnComplete fires once after a successful run; mutating actions use it
	// to refresh the table and clear the selection.
	OnComplete func(models.BulkResult)
}

// BulkRunner drives one chunked bulk job to completion: it re-posts with
// offset = last Processed until the server reports nothing remaining. Only
// one run may be active at a time.
type BulkRunner struct {
	client bulkExecutor

	mu    sync.Mutex
	state RunnerState
}

// NewBulkRunner constructs a runner over the given client.
func NewBulkRunner(c bulkExecutor) *BulkRunner {
	return &BulkRunner{client: c, state: RunnerIdle}
}

// State returns the current lifecycle state.
func (r *BulkRunner) State() RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run executes the full job synchronously and returns the final result. The
// download URL of an export run is the one issued on the first chunk.
func (r *BulkRunner) Run(ctx context.Context, action string, ids []int64, tagIDs, listIDs []int64, opts RunnerOptions) (*models.BulkResult, error) {
	r.mu.Lock()
	if r.state == RunnerRunning {
		r.mu.Unlock()
		return nil, fmt.Errorf("bulk run already in progress")
	}
	r.state = RunnerRunning
	r.mu.Unlock()

	final, err := r.loop(ctx, action, ids, tagIDs, listIDs, opts)

	r.mu.Lock()
	if err != nil || final == nil || !final.OK {
		r.state = RunnerFailed
	} else {
		r.state = RunnerDone
	}
	r.mu.Unlock()

	if err == nil && final != nil && final.OK && opts.OnComplete != nil {
		opts.OnComplete(*final)
	}
	return final, err
}

func (r *BulkRunner) loop(ctx context.Context, action string, ids, tagIDs, listIDs []int64, opts RunnerOptions) (*models.BulkResult, error) {
	var downloadURL string
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := r.client.Bulk(ctx, models.BulkRequest{
			Action:  action,
			IDs:     ids,
			TagIDs:  tagIDs,
			ListIDs: listIDs,
			Offset:  offset,
			Limit:   opts.ChunkSize,
		})
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return resp, nil
		}
		if resp.DownloadURL != "" {
			downloadURL = resp.DownloadURL
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Processed: resp.Processed, Remaining: resp.Remaining, Total: len(ids)})
		}
		if resp.Remaining <= 0 {
			resp.DownloadURL = downloadURL
			return resp, nil
		}
		if resp.Processed <= offset {
			// A stalled cursor would loop forever.
			return nil, fmt.Errorf("bulk run made no progress at offset %d", offset)
		}
		offset = resp.Processed
	}
}
