package webfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/achievements/internal/errs"
)

func TestHTTPFetcherReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		_, _ = w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	html, err := f.Fetch(context.Background(), srv.URL, "ul.achievement")

	require.NoError(t, err)
	assert.Contains(t, html, "hi")
}

func TestHTTPFetcherNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, "")

	require.Error(t, err)
	assert.True(t, errs.IsProviderUnavailable(err))
}

type stubFetcher struct {
	html string
	err  error
}

func (s *stubFetcher) Fetch(context.Context, string, string) (string, error) {
	return s.html, s.err
}

func TestChainFetcherFirstSuccessWins(t *testing.T) {
	chain := NewChainFetcher(
		&stubFetcher{err: errors.New("browser down")},
		&stubFetcher{html: "<html>ok</html>"},
	)

	html, err := chain.Fetch(context.Background(), "http://x", "")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", html)
}

func TestChainFetcherAllFail(t *testing.T) {
	want := errors.New("http down")
	chain := NewChainFetcher(
		&stubFetcher{err: errors.New("browser down")},
		&stubFetcher{err: want},
	)

	_, err := chain.Fetch(context.Background(), "http://x", "")
	assert.ErrorIs(t, err, want)
}

func TestChainFetcherStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	counting := fetcherFunc(func(context.Context, string, string) (string, error) {
		calls++
		return "", errors.New("down")
	})
	chain := NewChainFetcher(counting, counting)

	_, err := chain.Fetch(ctx, "http://x", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type fetcherFunc func(context.Context, string, string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, url, sel string) (string, error) {
	return f(ctx, url, sel)
}
