// Package api serves the scraping operations of one browser session over a
// local HTTP API.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/scraper"
)

// Server exposes a scraper session
type Server struct {
	session *scraper.Session
	router  chi.Router
	logger  logger.Logger
}

// New builds the router for session
func New(session *scraper.Session, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{session: session, logger: log.WithField("component", "api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/status", s.handleStatus)
	r.Post("/note", s.handleNote)
	r.Post("/comments", s.handleComments)
	r.Post("/search", s.handleSearch)
	r.Post("/batch", s.handleBatch)
	r.Post("/cancel", s.handleCancel)
	r.Get("/export", s.handleExport)
	r.Post("/media", s.handleMedia)
	r.Get("/posts", s.handleListPosts)
	r.Delete("/posts", s.handleClearPosts)

	s.router = r
	return s
}

// Handler returns the traced root handler
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "xhsdl-api")
}

// ListenAndServe serves on addr until ctx is done, then shuts down and
// cancels the active run
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(s.logger, "api", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.session.CancelActiveRun()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	logger.LogComponentStop(s.logger, "api", "shutdown")
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugWithFields("Request served", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

// runContext detaches a run from the request; runs end through /cancel
func runContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status(r.Context()))
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	post, err := s.session.ExtractCurrentItem(runContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// CommentsResponse reports a comment collection run
type CommentsResponse struct {
	RunID    string           `json:"run_id"`
	State    string           `json:"state"`
	Cycles   int              `json:"cycles"`
	New      int              `json:"new"`
	Comments []models.Comment `json:"comments"`
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.CollectComments(runContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := CommentsResponse{
		RunID:  res.RunID,
		State:  res.State.String(),
		Cycles: res.Cycles,
		New:    len(res.Records),
	}
	if cur := s.session.Current(); cur != nil {
		resp.Comments = cur.Comments
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	scroll := false
	if v := r.URL.Query().Get("scroll"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid scroll parameter", http.StatusBadRequest)
			return
		}
		scroll = b
	}
	res, err := s.session.CollectListItems(runContext(r), scroll)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req scraper.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	report, err := s.session.RunBatch(runContext(r), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.session.CancelActiveRun()})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	exp, err := s.session.ExportAccumulatedData()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(exp.Name)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, exp.Content)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.DownloadMedia(runContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.session.Store().LoadAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleClearPosts(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Store().Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusCode maps an operation error to an HTTP status
func StatusCode(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeAlreadyRunning:
		return http.StatusConflict
	case errors.ErrorTypeContainerNotFound:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeNetwork:
		return http.StatusBadGateway
	case errors.ErrorTypeNavigationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}
	writeJSON(w, code, errorBody{Error: err.Error(), Type: string(errors.TypeOf(err))})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
