package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/extract"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/view"
	"xhsdl/pkg/view/viewtest"
)

var commentTarget = CommentFeed

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newEngine(t *testing.T, lim Limits, rec *sleepRecorder) *Engine[models.Comment] {
	t.Helper()
	return New[models.Comment](commentTarget, extract.Comments{Ref: time.Now()}, Config{
		Limits:      lim,
		ScrollDelay: Range{Min: 2 * time.Second, Max: 4 * time.Second},
		ExpandDelay: Range{Min: 1500 * time.Millisecond, Max: 2500 * time.Millisecond},
		Sleep:       rec.Sleep,
		Logger:      logger.NewTestLogger(),
	})
}

func page(frames ...string) *viewtest.Page {
	return viewtest.NewPage(&viewtest.Screen{
		Location: "https://www.xiaohongshu.com/explore/abc",
		Frames:   frames,
	})
}

func TestNext(t *testing.T) {
	lim := Limits{Threshold: 5, Ceiling: 200}
	tests := []struct {
		name string
		obs  Observation
		want State
	}{
		{"keeps running", Observation{Records: 10, EmptyCycles: 4}, Running},
		{"converged", Observation{Records: 10, EmptyCycles: 5}, Converged},
		{"capped", Observation{Records: 200}, Capped},
		{"exhausted", Observation{EndMarker: true}, Exhausted},
		{"stopped", Observation{Cancelled: true}, Stopped},
		{"stopped beats everything", Observation{Cancelled: true, EndMarker: true, Records: 300, EmptyCycles: 9}, Stopped},
		{"exhausted beats capped", Observation{EndMarker: true, Records: 300, EmptyCycles: 9}, Exhausted},
		{"capped beats converged", Observation{Records: 300, EmptyCycles: 9}, Capped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.obs, lim))
		})
	}

	assert.Equal(t, Running, Next(Observation{Records: 1000}, Limits{Threshold: 5}), "no ceiling")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.False(t, Running.Terminal())
	assert.True(t, Stopped.Terminal())
}

func TestRunConvergesOnFixedList(t *testing.T) {
	rec := &sleepRecorder{}
	p := page(viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 3)}))

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, rec).Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, Converged, res.State)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 6, res.Cycles, "one productive cycle then exactly five empty ones")
	assert.Equal(t, 5, res.EmptyCycles)
	assert.Equal(t, 5, p.Scrolls())
	assert.NotEmpty(t, res.RunID)
}

func TestRunEmptyCounterResetsOnGrowth(t *testing.T) {
	rec := &sleepRecorder{}
	base := viewtest.Detail{}
	var frames []string
	// grows, stalls twice, grows again, then stays fixed
	for _, n := range []int{2, 4, 4, 4, 6} {
		d := base
		d.Comments = viewtest.Comments(0, n)
		frames = append(frames, viewtest.DetailHTML(d))
	}

	res, err := newEngine(t, Limits{Threshold: 3, Ceiling: 200}, rec).Run(context.Background(), page(frames...))
	require.NoError(t, err)

	assert.Equal(t, Converged, res.State)
	assert.Len(t, res.Records, 6)
	assert.Equal(t, 8, res.Cycles)
}

func TestRunExhaustedOnEndMarker(t *testing.T) {
	rec := &sleepRecorder{}
	p := page(
		viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 5)}),
		viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 10)}),
		viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 12), End: true}),
	)

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, rec).Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, Exhausted, res.State)
	assert.Len(t, res.Records, 12)
	assert.Equal(t, 3, res.Cycles)
	assert.Equal(t, 0, res.EmptyCycles)
}

func TestRunExhaustedBeforeThreshold(t *testing.T) {
	rec := &sleepRecorder{}
	p := page(viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 2), End: true}))

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, rec).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.State)
	assert.Equal(t, 1, res.Cycles)
	assert.Equal(t, 0, p.Scrolls())
}

func TestRunCappedNeverExceedsCeiling(t *testing.T) {
	rec := &sleepRecorder{}
	p := page(viewtest.GrowingFeed(viewtest.Detail{}, 10, 10, 10)...)

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 25}, rec).Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, Capped, res.State)
	assert.Len(t, res.Records, 25)
	assert.Equal(t, 3, res.Cycles)
}

func TestRunStoppedWhileSuspended(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := page(viewtest.GrowingFeed(viewtest.Detail{}, 3, 3, 10)...)

	eng := New[models.Comment](commentTarget, extract.Comments{Ref: time.Now()}, Config{
		Limits: Limits{Threshold: 5, Ceiling: 200},
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
		Logger: logger.NewNopLogger(),
	})

	res, err := eng.Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Stopped, res.State)
	assert.Equal(t, 1, res.Cycles)
	assert.Len(t, res.Records, 3, "records gathered before cancellation are kept")
}

// cancellingPage cancels the run while answering the nth items query and
// then fails that query, as a live page does once its context is gone
type cancellingPage struct {
	*viewtest.Page
	cancel  context.CancelFunc
	items   string
	failAt  int
	queries int
}

func (p *cancellingPage) QueryAll(ctx context.Context, selector string) ([]view.Node, error) {
	if selector == p.items {
		p.queries++
		if p.queries == p.failAt {
			p.cancel()
			return nil, context.Canceled
		}
	}
	return p.Page.QueryAll(ctx, selector)
}

func TestRunStoppedDuringItemsQuery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &cancellingPage{
		Page:   page(viewtest.GrowingFeed(viewtest.Detail{}, 3, 3, 10)...),
		cancel: cancel,
		items:  commentTarget.Items,
		failAt: 2,
	}

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, &sleepRecorder{}).Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Stopped, res.State)
	assert.Equal(t, 2, res.Cycles)
	assert.Len(t, res.Records, 3, "records of earlier cycles survive a cancelled query")
}

func TestRunQueryErrorWithoutCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &cancellingPage{
		Page:   page(viewtest.GrowingFeed(viewtest.Detail{}, 3, 3, 10)...),
		cancel: func() {},
		items:  commentTarget.Items,
		failAt: 1,
	}

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, &sleepRecorder{}).Run(ctx, p)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunStoppedWhenAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &sleepRecorder{}
	p := page(viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 4), End: true}))

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, rec).Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Stopped, res.State, "cancellation outranks the end marker")
	assert.Equal(t, 1, res.Cycles)
	assert.Empty(t, rec.delays)
}

func TestRunContainerNotFound(t *testing.T) {
	rec := &sleepRecorder{}
	p := page(viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 4), NoScroller: true}))

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, rec).Run(context.Background(), p)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errors.ErrorTypeContainerNotFound))
	assert.Equal(t, 0, p.Scrolls())
	assert.Empty(t, rec.delays)
}

func TestRunDelaysAndExpandClicks(t *testing.T) {
	rec := &sleepRecorder{}
	p := page(viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(0, 2), Expand: 2}))

	res, err := newEngine(t, Limits{Threshold: 2, Ceiling: 200}, rec).Run(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, 3, res.Cycles)

	assert.Equal(t, 4, p.Clicks(), "both affordances clicked after each of two scrolls")
	require.Len(t, rec.delays, 4)
	for i, d := range rec.delays {
		if i%2 == 0 {
			assert.GreaterOrEqual(t, d, 2*time.Second)
			assert.LessOrEqual(t, d, 4*time.Second)
		} else {
			assert.GreaterOrEqual(t, d, 1500*time.Millisecond)
			assert.LessOrEqual(t, d, 2500*time.Millisecond)
		}
	}
}

func TestRunNeverEmitsDuplicates(t *testing.T) {
	// a virtualized window that slides forward and re-renders old items
	var frames []string
	for i := 0; i < 8; i++ {
		frames = append(frames, viewtest.DetailHTML(viewtest.Detail{Comments: viewtest.Comments(i*3, 6)}))
	}
	rec := &sleepRecorder{}

	res, err := newEngine(t, Limits{Threshold: 2, Ceiling: 200}, rec).Run(context.Background(), page(frames...))
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, c := range res.Records {
		assert.False(t, seen[c.Key()], "duplicate %s", c.Key())
		seen[c.Key()] = true
		for _, r := range c.Replies {
			assert.False(t, seen[r.Key()], "duplicate reply %s", r.Key())
			seen[r.Key()] = true
		}
	}
	assert.Len(t, res.Records, 7*3+6)
}

func TestRunRepliesShareLedger(t *testing.T) {
	comments := []viewtest.Comment{
		{Author: "a", Content: "top", Replies: []viewtest.Comment{{Author: "b", Content: "answer"}}},
		{Author: "b", Content: "answer"},
	}
	rec := &sleepRecorder{}
	p := page(viewtest.DetailHTML(viewtest.Detail{Comments: comments, End: true}))

	res, err := newEngine(t, Limits{Threshold: 5, Ceiling: 200}, rec).Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Len(t, res.Records[0].Replies, 1)
}

func TestRangePick(t *testing.T) {
	r := Range{Min: time.Second, Max: 2 * time.Second}
	assert.Equal(t, time.Second, r.Pick(func(int64) int64 { return 0 }))
	assert.Equal(t, 2*time.Second, r.Pick(func(n int64) int64 { return n - 1 }))
	assert.Equal(t, time.Second, Range{Min: time.Second}.Pick(nil))
}

func TestSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, Sleep(ctx, time.Hour))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func ExampleNext() {
	fmt.Println(Next(Observation{Records: 3, EmptyCycles: 5}, Limits{Threshold: 5, Ceiling: 200}))
	// Output: converged
}
