package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"xhsdl/pkg/logger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/ratelimit"
)

// AssetJob is one media file to fetch
type AssetJob struct {
	// Index is the position of the asset in the post, starting at 0
	Index int
	Asset models.MediaAsset
	Name  string
}

// AssetResult is the outcome of one job. Data is nil on failure.
type AssetResult struct {
	Job      AssetJob
	Data     []byte
	Error    error
	Duration time.Duration
}

// Success reports whether the asset was fetched
func (r AssetResult) Success() bool { return r.Error == nil }

// AssetFetcher retrieves asset bytes
type AssetFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// WorkerPool fetches assets concurrently. Image jobs wait on the pacer;
// video jobs do not.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan AssetJob
	resultQueue chan AssetResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      AssetFetcher
	pacer       ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	client AssetFetcher,
	pacer ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if pacer == nil {
		pacer = ratelimit.NewPacer(0, 1)
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan AssetJob, numWorkers*2),
		resultQueue: make(chan AssetResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		pacer:       pacer,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for the workers and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job AssetJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan AssetResult {
	return wp.resultQueue
}

// Run fetches every job and returns the results ordered by Index
func (wp *WorkerPool) Run(jobs []AssetJob) []AssetResult {
	wp.Start()
	go func() {
		for _, job := range jobs {
			if err := wp.Submit(job); err != nil {
				break
			}
		}
		wp.Stop()
	}()

	results := make([]AssetResult, len(jobs))
	seen := make([]bool, len(jobs))
	for r := range wp.Results() {
		for i, job := range jobs {
			if job.Index == r.Job.Index && !seen[i] {
				results[i] = r
				seen[i] = true
				break
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			results[i] = AssetResult{Job: jobs[i], Error: fmt.Errorf("not fetched: %w", context.Cause(wp.ctx))}
		}
	}
	return results
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob handles a single download job
func (wp *WorkerPool) processJob(job AssetJob, workerID int) AssetResult {
	start := time.Now()
	result := AssetResult{Job: job}

	if job.Asset.Kind == models.MediaImage {
		if err := wp.pacer.Wait(wp.ctx); err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			return result
		}
	}

	data, err := wp.client.Fetch(wp.ctx, job.Asset.URL)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		wp.logger.WarnWithFields("Asset skipped", map[string]interface{}{
			"worker_id": workerID,
			"file":      job.Name,
			"url":       job.Asset.URL,
			"error":     err.Error(),
		})
		return result
	}

	result.Data = data
	wp.logger.DebugWithFields("Asset fetched", map[string]interface{}{
		"worker_id": workerID,
		"file":      job.Name,
		"size":      len(data),
		"duration":  result.Duration,
	})
	return result
}
