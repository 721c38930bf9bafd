package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"xhsdl/pkg/models"
	"xhsdl/pkg/ratelimit"
)

// MockClient is a mock asset fetcher
type MockClient struct {
	downloadDelay   time.Duration
	downloadError   error
	failURL         string
	downloadCounter int32
}

func (m *MockClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&m.downloadCounter, 1)
	if m.downloadDelay > 0 {
		time.Sleep(m.downloadDelay)
	}
	if m.downloadError != nil {
		return nil, m.downloadError
	}
	if m.failURL != "" && url == m.failURL {
		return nil, fmt.Errorf("status 404")
	}
	return []byte("data:" + url), nil
}

func (m *MockClient) GetDownloadCount() int {
	return int(atomic.LoadInt32(&m.downloadCounter))
}

// MockLimiter counts Wait calls
type MockLimiter struct {
	waits int32
}

func (m *MockLimiter) Allow() bool { return true }

func (m *MockLimiter) Wait(ctx context.Context) error {
	atomic.AddInt32(&m.waits, 1)
	return ctx.Err()
}

func (m *MockLimiter) Reset() {}

func imageJobs(n int) []AssetJob {
	jobs := make([]AssetJob, n)
	for i := range jobs {
		jobs[i] = AssetJob{
			Index: i,
			Asset: models.MediaAsset{Kind: models.MediaImage, URL: fmt.Sprintf("https://example.com/img%d.jpg", i)},
			Name:  fmt.Sprintf("img_%d.jpg", i+1),
		}
	}
	return jobs
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	mockClient := &MockClient{downloadDelay: 10 * time.Millisecond}

	pool := NewWorkerPool(context.Background(), 3, mockClient, ratelimit.NewPacer(0, 1), nil)
	pool.Start()

	var results []AssetResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	numJobs := 10
	for _, job := range imageJobs(numJobs) {
		if err := pool.Submit(job); err != nil {
			t.Errorf("Failed to submit job %d: %v", job.Index, err)
		}
	}

	pool.Stop()
	wg.Wait()

	if len(results) != numJobs {
		t.Errorf("Expected %d results, got %d", numJobs, len(results))
	}

	successCount := 0
	for _, result := range results {
		if result.Success() {
			successCount++
		}
	}
	if successCount != numJobs {
		t.Errorf("Expected %d successful downloads, got %d", numJobs, successCount)
	}
	if mockClient.GetDownloadCount() != numJobs {
		t.Errorf("Expected %d download calls, got %d", numJobs, mockClient.GetDownloadCount())
	}
}

func TestWorkerPoolWithErrors(t *testing.T) {
	mockClient := &MockClient{downloadError: fmt.Errorf("download error")}

	pool := NewWorkerPool(context.Background(), 2, mockClient, nil, nil)
	results := pool.Run(imageJobs(5))

	if len(results) != 5 {
		t.Errorf("Expected 5 results, got %d", len(results))
	}
	for _, result := range results {
		if result.Success() {
			t.Error("Expected all downloads to fail")
		}
		if result.Data != nil {
			t.Error("Expected no data on failure")
		}
	}
}

func TestWorkerPoolRunKeepsOrder(t *testing.T) {
	mockClient := &MockClient{failURL: "https://example.com/img2.jpg"}
	jobs := imageJobs(6)

	pool := NewWorkerPool(context.Background(), 4, mockClient, nil, nil)
	results := pool.Run(jobs)

	for i, result := range results {
		if result.Job.Index != i {
			t.Errorf("result %d has index %d", i, result.Job.Index)
		}
		if i == 2 {
			if result.Success() {
				t.Error("Expected job 2 to fail")
			}
			continue
		}
		if string(result.Data) != "data:"+jobs[i].Asset.URL {
			t.Errorf("result %d has data %q", i, result.Data)
		}
	}
}

func TestWorkerPoolPacesImagesOnly(t *testing.T) {
	limiter := &MockLimiter{}
	jobs := imageJobs(3)
	jobs = append(jobs,
		AssetJob{Index: 3, Asset: models.MediaAsset{Kind: models.MediaVideo, URL: "https://example.com/v.mp4"}, Name: "video_1.mp4"},
		AssetJob{Index: 4, Asset: models.MediaAsset{Kind: models.MediaVideo, URL: "https://example.com/w.mp4"}, Name: "video_2.mp4"},
	)

	pool := NewWorkerPool(context.Background(), 2, &MockClient{}, limiter, nil)
	results := pool.Run(jobs)

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	if got := atomic.LoadInt32(&limiter.waits); got != 3 {
		t.Errorf("Expected 3 paced jobs, got %d", got)
	}
}

func TestWorkerPoolConcurrency(t *testing.T) {
	mockClient := &MockClient{downloadDelay: 100 * time.Millisecond}

	pool := NewWorkerPool(context.Background(), 5, mockClient, nil, nil)

	startTime := time.Now()
	results := pool.Run(imageJobs(10))
	elapsed := time.Since(startTime)

	// 5 workers and 10 jobs of 100ms each take about 200ms
	expectedTime := 400 * time.Millisecond
	if elapsed > expectedTime {
		t.Errorf("Downloads took too long: %v (expected < %v)", elapsed, expectedTime)
	}
	if len(results) != 10 {
		t.Errorf("Expected 10 results, got %d", len(results))
	}
}

func TestWorkerPoolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockClient := &MockClient{}
	pool := NewWorkerPool(ctx, 2, mockClient, nil, nil)
	results := pool.Run(imageJobs(4))

	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for i, result := range results {
		if result.Success() {
			t.Errorf("Expected job %d to fail after cancellation", i)
		}
	}
}
