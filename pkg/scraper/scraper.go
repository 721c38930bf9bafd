package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"xhsdl/pkg/batch"
	"xhsdl/pkg/checkpoint"
	"xhsdl/pkg/collector"
	"xhsdl/pkg/config"
	"xhsdl/pkg/errors"
	"xhsdl/pkg/export"
	"xhsdl/pkg/extract"
	"xhsdl/pkg/ledger"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/media"
	"xhsdl/pkg/models"
	"xhsdl/pkg/storage"
	"xhsdl/pkg/view"
)

// Page kinds reported by PageKind
const (
	KindDetail = "detail"
	KindSearch = "search"
	KindOther  = "other"
)

// PageKind classifies a page location
func PageKind(location string) string {
	switch {
	case strings.Contains(location, "/explore/"), strings.Contains(location, "/discovery/item/"):
		return KindDetail
	case strings.Contains(location, "/search_result"):
		return KindSearch
	default:
		return KindOther
	}
}

// MediaDownloader archives the media of a post
type MediaDownloader interface {
	Download(ctx context.Context, post *models.Post) (*media.Result, error)
}

// Session drives one page. It accumulates the current post with its
// comments and the search results seen so far, and allows one run at a time.
type Session struct {
	page   view.Page
	store  storage.Store
	config *config.Config
	media  MediaDownloader
	out    *storage.Manager
	logger logger.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	running string
	cancel  context.CancelFunc
	current *models.Post
	results []models.SearchResultItem
	seen    *ledger.Ledger
}

// Option configures a Session
type Option func(*Session)

// WithMedia enables media downloads
func WithMedia(d MediaDownloader) Option {
	return func(s *Session) { s.media = d }
}

// WithOutput sets where exports are written
func WithOutput(m *storage.Manager) Option {
	return func(s *Session) { s.out = m }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock sets the source of extraction instants
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithSleep replaces every suspension of the session's runs
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) { s.sleep = sleep }
}

// New creates a session over page persisting into store
func New(page view.Page, store storage.Store, cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		page:   page,
		store:  store,
		config: cfg,
		logger: logger.GetLogger(),
		now:    time.Now,
		sleep:  collector.Sleep,
		seen:   ledger.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin marks op as the active run. The returned context is cancelled by
// CancelActiveRun; done must be called when the run ends.
func (s *Session) begin(ctx context.Context, op string) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != "" {
		return nil, nil, errors.AlreadyRunning(s.running)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = op
	s.cancel = cancel
	return ctx, func() {
		cancel()
		s.mu.Lock()
		s.running = ""
		s.cancel = nil
		s.mu.Unlock()
	}, nil
}

// CancelActiveRun asks the active run to stop at its next suspension point.
// It reports whether a run was active.
func (s *Session) CancelActiveRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.logger.WithField("operation", s.running).Info("Cancelling active run")
	s.cancel()
	return true
}

func (s *Session) extractOptions() extract.Options {
	return extract.Options{AssetHosts: s.config.Download.AssetHosts}
}

func (s *Session) collectConfig() collector.Config {
	c := collector.FromConfig(s.config.Collect)
	c.Sleep = s.sleep
	c.Logger = s.logger
	return c
}

// extractPost reads the open detail view and makes it the current post.
// Comments already gathered for the same post are kept.
func (s *Session) extractPost(ctx context.Context) (*models.Post, error) {
	post, err := extract.Post(ctx, s.page, s.now(), s.extractOptions())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == post.ID {
		post.Comments = s.current.Comments
	}
	s.mu.Unlock()

	merged, err := s.store.Upsert(context.WithoutCancel(ctx), *post)
	if err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}

	s.mu.Lock()
	s.current = &merged
	s.mu.Unlock()

	s.logger.InfoWithFields("Post extracted", map[string]interface{}{
		"item_id":  merged.ID,
		"images":   len(merged.MediaURLs),
		"videos":   len(merged.VideoURLs),
		"comments": len(merged.Comments),
	})
	return &merged, nil
}

// currentFor returns the current post when it is the one open in the page,
// extracting it otherwise
func (s *Session) currentFor(ctx context.Context) (*models.Post, error) {
	location, err := s.page.Location(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil && cur.ID == extract.PostID(location) {
		p := *cur
		return &p, nil
	}
	return s.extractPost(ctx)
}

// ExtractCurrentItem extracts the detail view that is open and stores it
func (s *Session) ExtractCurrentItem(ctx context.Context) (*models.Post, error) {
	ctx, done, err := s.begin(ctx, "extract")
	if err != nil {
		return nil, err
	}
	defer done()
	return s.extractPost(ctx)
}

// CollectComments runs the collection engine over the comment feed of the
// open detail view and attaches the result to the current post
func (s *Session) CollectComments(ctx context.Context) (*collector.Result[models.Comment], error) {
	ctx, done, err := s.begin(ctx, "comments")
	if err != nil {
		return nil, err
	}
	defer done()

	post, err := s.currentFor(ctx)
	if err != nil {
		return nil, err
	}

	eng := collector.New[models.Comment](
		collector.CommentFeed.WithEndMarker(s.config.Collect.EndMarkerSelector),
		extract.Comments{Ref: s.now()},
		s.collectConfig(),
	)
	res, err := eng.Run(ctx, s.page)
	if err != nil {
		return nil, err
	}

	post.Comments = res.Records
	merged, err := s.store.Upsert(context.WithoutCancel(ctx), *post)
	if err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}

	s.mu.Lock()
	s.current = &merged
	s.mu.Unlock()
	return res, nil
}

// ListResult is the outcome of one list collection
type ListResult struct {
	New   []models.SearchResultItem `json:"new"`
	Total int                       `json:"total"`
	// State is the engine state in scroll mode
	State string `json:"state,omitempty"`
}

// CollectListItems adds the cards rendered on the open search page to the
// accumulated results. With scroll set it keeps scrolling the feed until
// the collection engine stops.
func (s *Session) CollectListItems(ctx context.Context, scroll bool) (*ListResult, error) {
	ctx, done, err := s.begin(ctx, "list")
	if err != nil {
		return nil, err
	}
	defer done()

	location, err := s.page.Location(ctx)
	if err != nil {
		return nil, err
	}
	if PageKind(location) != KindSearch {
		return nil, errors.New(errors.ErrorTypeNotFound, "not a search result page: "+location)
	}

	res := &ListResult{}
	var found []models.SearchResultItem
	if scroll {
		eng := collector.New[models.SearchResultItem](collector.SearchFeed, extract.SearchCards{}, s.collectConfig())
		run, err := eng.Run(ctx, s.page)
		if err != nil {
			return nil, err
		}
		found = run.Records
		res.State = run.State.String()
	} else {
		found, err = extract.SearchItems(ctx, s.page, ledger.New())
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	for _, item := range found {
		if s.seen.Admit(item.ID) {
			s.results = append(s.results, item)
			res.New = append(res.New, item)
		}
	}
	res.Total = len(s.results)
	s.mu.Unlock()

	s.logger.InfoWithFields("List items collected", map[string]interface{}{
		"new":   len(res.New),
		"total": res.Total,
	})
	return res, nil
}

// BatchRequest selects what RunBatch processes
type BatchRequest struct {
	// List names the batch for checkpointing. Empty uses the search keyword.
	List         string `json:"list"`
	Limit        int    `json:"limit"`
	SkipComments bool   `json:"skip_comments"`
	Resume       bool   `json:"resume"`
	ForceRestart bool   `json:"force_restart"`

	Progress func(batch.ItemResult) `json:"-"`
}

// RunBatch processes the accumulated list items one by one
func (s *Session) RunBatch(ctx context.Context, req BatchRequest) (*batch.Report, error) {
	ctx, done, err := s.begin(ctx, "batch")
	if err != nil {
		return nil, err
	}
	defer done()

	items := s.Results()
	if len(items) == 0 {
		return nil, errors.New(errors.ErrorTypeNotFound, "no list items collected")
	}
	if req.Limit > 0 && req.Limit < len(items) {
		items = items[:req.Limit]
	}

	list := req.List
	if list == "" {
		location, _ := s.page.Location(ctx)
		list = ListName(location)
	}

	opts := batch.FromConfig(s.config.Batch, s.config.Collect)
	opts.SkipComments = opts.SkipComments || req.SkipComments
	opts.Extract = s.extractOptions()
	opts.Sleep = s.sleep
	opts.Now = s.now
	opts.Logger = s.logger
	opts.Comments.Sleep = s.sleep
	opts.Comments.Logger = s.logger
	opts.ForceRestart = req.ForceRestart
	opts.Progress = req.Progress
	if req.Resume {
		mgr, err := checkpoint.NewManager(list)
		if err != nil {
			return nil, err
		}
		opts.Checkpoint = mgr
	}

	return batch.New(s.store, opts).Run(ctx, s.page, list, items)
}

// ListName derives a batch name from a search page location
func ListName(location string) string {
	u, err := url.Parse(location)
	if err == nil {
		if kw := u.Query().Get("keyword"); kw != "" {
			return kw
		}
	}
	return "list"
}

// DownloadMedia archives the media of the open detail view
func (s *Session) DownloadMedia(ctx context.Context) (*media.Result, error) {
	if s.media == nil {
		return nil, errors.New(errors.ErrorTypeUnknown, "media downloads are not configured")
	}
	ctx, done, err := s.begin(ctx, "media")
	if err != nil {
		return nil, err
	}
	defer done()

	post, err := s.currentFor(ctx)
	if err != nil {
		return nil, err
	}
	return s.media.Download(ctx, post)
}

// Export is a rendered CSV export
type Export struct {
	Name    string
	Content string
}

// ExportAccumulatedData renders the current post, its comments and the
// accumulated search results as CSV
func (s *Session) ExportAccumulatedData() (*Export, error) {
	s.mu.Lock()
	d := export.Data{Results: append([]models.SearchResultItem(nil), s.results...)}
	if s.current != nil {
		p := *s.current
		d.Post = &p
		d.Comments = p.Comments
	}
	s.mu.Unlock()

	now := s.now()
	content, err := export.CSV(d, now)
	if err != nil {
		return nil, err
	}
	return &Export{Name: export.FileName(d, now), Content: content}, nil
}

// SaveExport writes ExportAccumulatedData to the output directory
func (s *Session) SaveExport() (string, error) {
	if s.out == nil {
		return "", errors.New(errors.ErrorTypeUnknown, "no output directory configured")
	}
	exp, err := s.ExportAccumulatedData()
	if err != nil {
		return "", err
	}
	return s.out.Save(exp.Name, strings.NewReader(exp.Content))
}

// Results returns a copy of the accumulated search results
func (s *Session) Results() []models.SearchResultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SearchResultItem(nil), s.results...)
}

// Current returns a copy of the current post, or nil
func (s *Session) Current() *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

// Reset drops the accumulated post and results
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.results = nil
	s.seen = ledger.New()
}

// Store returns the post store
func (s *Session) Store() storage.Store {
	return s.store
}

// Status describes the session
type Status struct {
	Running  string `json:"running,omitempty"`
	Location string `json:"location"`
	PageKind string `json:"page_kind"`
	PostID   string `json:"post_id,omitempty"`
	Comments int    `json:"comments"`
	Results  int    `json:"results"`
}

// Status reports the active run and what has been accumulated
func (s *Session) Status(ctx context.Context) Status {
	location, err := s.page.Location(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Location unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:  s.running,
		Location: location,
		PageKind: PageKind(location),
		Results:  len(s.results),
	}
	if s.current != nil {
		st.PostID = s.current.ID
		st.Comments = len(s.current.Comments)
	}
	return st
}
