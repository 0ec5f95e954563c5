// Package webfetch retrieves HTML documents for the scraping providers.
// Some sites serve their achievement lists fully server-side, others only
// populate them from script, so a plain HTTP fetcher and a headless-browser
// fetcher share one interface and are usually chained.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/questlog/achievements/internal/errs"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Fetcher returns the HTML document behind a URL. waitSelector, when
// non-empty, names an element that must be present before the document is
// considered complete; fetchers that cannot run script may ignore it.
type Fetcher interface {
	Fetch(ctx context.Context, url, waitSelector string) (string, error)
}

// HTTPFetcher fetches pages with a plain HTTP client. It ignores the wait
// selector since nothing is rendered.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, _ string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", errs.NewProviderUnavailable("http", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errs.NewProviderUnavailable("http", url,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.NewProviderUnavailable("http", url, err)
	}
	return string(body), nil
}

// Seams for tests that exercise the browser path without a real Chrome.
var (
	chromedpExecAllocator = chromedp.NewExecAllocator
	chromedpContext       = chromedp.NewContext
	chromedpRunner        = chromedp.Run
)

// ChromeFetcher renders pages in headless Chrome so script-populated
// markup is present in the returned document.
type ChromeFetcher struct {
	Headless bool
	Timeout  time.Duration
}

// NewChromeFetcher returns a headless browser fetcher with the given
// per-page timeout.
func NewChromeFetcher(timeout time.Duration) *ChromeFetcher {
	return &ChromeFetcher{Headless: true, Timeout: timeout}
}

func (f *ChromeFetcher) Fetch(parentCtx context.Context, url, waitSelector string) (string, error) {
	ctx := parentCtx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parentCtx, f.Timeout)
		defer cancel()
	}

	allocCtx, cancelAllocator := chromedpExecAllocator(ctx, f.allocatorOptions()...)
	defer cancelAllocator()

	browserCtx, cancelBrowser := chromedpContext(allocCtx)
	defer cancelBrowser()

	if waitSelector == "" {
		waitSelector = "body"
	}

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedpRunner(browserCtx, tasks...); err != nil {
		return "", errs.NewProviderUnavailable("chrome", url, err)
	}
	return html, nil
}

func (f *ChromeFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.UserAgent(userAgent),
		chromedp.Flag("headless", f.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
	}
}

// ChainFetcher tries each fetcher in order and returns the first document
// retrieved. The last error is returned when every fetcher fails.
type ChainFetcher struct {
	fetchers []Fetcher
}

// NewChainFetcher builds a chain over the given fetchers, first preferred.
func NewChainFetcher(fetchers ...Fetcher) *ChainFetcher {
	return &ChainFetcher{fetchers: fetchers}
}

func (c *ChainFetcher) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	var lastErr error
	for _, f := range c.fetchers {
		html, err := f.Fetch(ctx, url, waitSelector)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no fetchers configured")
	}
	return "", lastErr
}
