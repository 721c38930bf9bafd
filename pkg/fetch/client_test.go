package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xhsdl/pkg/errors"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/retry"
)

func TestFetchSuccess(t *testing.T) {
	var gotReferer, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotCustom = r.Header.Get("X-Test")
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	c := NewClient(time.Second, log)
	c.SetHeader("X-Test", "1")

	data, err := c.Fetch(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Equal(t, "https://www.xiaohongshu.com/", gotReferer)
	assert.Equal(t, "1", gotCustom)
	assert.NotEmpty(t, log.GetMessages())
}

func TestFetchClassifiesFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		case "/empty":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	c := NewClient(50*time.Millisecond, logger.NewNopLogger())

	tests := []struct {
		name string
		url  string
		kind errs.NetworkKind
		code int
	}{
		{"status", server.URL + "/missing", errs.KindStatus, 404},
		{"timeout", server.URL + "/slow", errs.KindTimeout, 0},
		{"transport", closedURL + "/x", errs.KindTransport, 0},
		{"empty body", server.URL + "/empty", errs.KindTransport, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Fetch(context.Background(), tt.url)
			require.Error(t, err)

			var typed *errs.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, errs.ErrorTypeNetwork, typed.Type)
			assert.Equal(t, tt.kind, typed.Kind)
			assert.Equal(t, tt.code, typed.Code)
		})
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := NewClient(time.Second, logger.NewNopLogger())
	c.SetRetry(2, &retry.ConstantBackoff{Delay: time.Millisecond})

	data, err := c.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
