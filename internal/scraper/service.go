// Package scraper fetches marketplace search-result pages through a
// controlled browser session and extracts attributed listings.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/StevenVC-P/autographreader/internal/config"
	"github.com/StevenVC-P/autographreader/internal/pkg/metrics"
	"github.com/StevenVC-P/autographreader/internal/pkg/retry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Pauses of the scripted scroll sequence that triggers lazy-loaded results.
const (
	scrollBottomPause = 5 * time.Second
	scrollStepPause   = 1 * time.Second
)

// Attributor attaches a signer name and confidence to a listing title.
// *attribution.Resolver satisfies it.
type Attributor interface {
	Resolve(ctx context.Context, title string) (string, float64)
}

// Fetcher renders search-result pages one at a time.
//
// Every attempt runs in a fresh browser session with a randomized user-agent
// (and the configured proxy, if enabled); the session is never reused and is
// released on every exit path.
type Fetcher struct {
	cfg        config.BrowserConfig
	policy     retry.Policy
	attributor Attributor
	logger     *slog.Logger
}

// NewFetcher builds a Fetcher. policy governs per-page attempts; its backoff
// should exceed the orchestrator's inter-page pacing so transient blocks can
// clear.
func NewFetcher(cfg config.BrowserConfig, policy retry.Policy, attributor Attributor, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		cfg:        cfg,
		policy:     policy,
		attributor: attributor,
		logger:     logger,
	}
}

// FetchPage fetches one search-results page and returns its attributed
// listings. Exhausting all attempts returns an empty slice and the last
// error; the orchestrator reads that as a possible end-of-results signal.
func (f *Fetcher) FetchPage(ctx context.Context, query, categoryName, categoryID string, page int) ([]Listing, error) {
	pageURL := BuildSearchURL(query, categoryID, page)
	f.logger.Info("scraping page",
		slog.String("category", categoryName),
		slog.Int("page", page),
		slog.String("url", pageURL))

	var listings []Listing
	err := f.policy.Do(ctx, func(attempt int) error {
		start := time.Now()
		result, err := f.fetchOnce(ctx, pageURL, categoryName)
		metrics.FetchDuration.WithLabelValues(categoryName).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.FetchAttemptsTotal.WithLabelValues(classifyFetchError(err)).Inc()
			f.logger.Warn("fetch attempt failed",
				slog.Int("attempt", attempt),
				slog.String("category", categoryName),
				slog.Int("page", page),
				slog.String("error", err.Error()))
			return err
		}
		metrics.FetchAttemptsTotal.WithLabelValues("ok").Inc()
		listings = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// fetchOnce is a single attempt: fresh session, navigate, scroll, parse.
func (f *Fetcher) fetchOnce(ctx context.Context, pageURL, category string) ([]Listing, error) {
	browser, release, err := f.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		return nil, fmt.Errorf("apply stealth script: %w", err)
	}

	ua := randomUserAgent()
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		f.logger.Warn("set user agent failed", slog.String("error", err.Error()))
	}
	f.logger.Debug("session prepared", slog.String("user_agent", ua))

	page = page.Timeout(f.cfg.PageTimeout)
	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		f.logger.Debug("wait load failed, continuing anyway", slog.String("error", err.Error()))
	}

	f.scrollSequence(ctx, page)

	// Bounded wait for the results container; a skeleton page times out here.
	if _, err := page.Element(itemSelector); err != nil {
		return nil, fmt.Errorf("wait for results: %w", err)
	}

	elements, err := page.Elements(itemSelector)
	if err != nil {
		return nil, fmt.Errorf("get result nodes: %w", err)
	}

	listings := make([]Listing, 0, len(elements))
	skipped := 0
	for i, el := range elements {
		raw, err := extractListing(el)
		if err != nil {
			skipped++
			if skipped <= 3 {
				f.logger.Debug("extract listing failed",
					slog.Int("index", i),
					slog.String("error", err.Error()))
			}
			continue
		}
		if reason := discardReason(raw.Title, raw.ImgURL, raw.ListingURL); reason != "" {
			skipped++
			f.logger.Debug("discarding result node", slog.String("reason", reason))
			continue
		}

		raw.Category = category
		raw.Signer, raw.Confidence = f.attributor.Resolve(ctx, raw.Title)
		listings = append(listings, raw)
	}

	f.logger.Info("page parsed",
		slog.String("category", category),
		slog.Int("listings", len(listings)),
		slog.Int("skipped", skipped))
	return listings, nil
}

// scrollSequence nudges lazy loading: bottom, back to top, then halfway.
// Pauses are interruptible; scroll errors are ignored.
func (f *Fetcher) scrollSequence(ctx context.Context, page *rod.Page) {
	steps := []struct {
		js    string
		pause time.Duration
	}{
		{`window.scrollTo(0, document.body.scrollHeight)`, scrollBottomPause},
		{`window.scrollTo(0, 0)`, scrollStepPause},
		{`window.scrollTo(0, document.body.scrollHeight / 2)`, scrollStepPause},
	}
	for _, step := range steps {
		_, _ = page.Eval(step.js)
		select {
		case <-time.After(step.pause):
		case <-ctx.Done():
			return
		}
	}
}

// openSession launches a fresh browser and returns it with its release
// function. The release function is safe on every exit path.
func (f *Fetcher) openSession(ctx context.Context) (*rod.Browser, func(), error) {
	bin := f.cfg.BinPath
	if bin == "" {
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(f.cfg.Headless).
		Bin(bin).
		NoSandbox(true).
		Set("disable-dev-shm-usage", "true").
		Set("disable-gpu", "true").
		Set("disable-blink-features", "AutomationControlled")

	proxyUser, proxyPass := "", ""
	if f.cfg.UseProxy && f.cfg.ProxyURL != "" {
		parsed, err := url.Parse(f.cfg.ProxyURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, nil, fmt.Errorf("invalid proxy url: %s", f.cfg.ProxyURL)
		}
		server := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
		if parsed.User != nil {
			proxyUser = parsed.User.Username()
			if pass, ok := parsed.User.Password(); ok {
				proxyPass = pass
			}
		}
		l = l.Proxy(server)
		f.logger.Info("using http proxy", slog.String("server", server))
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect browser: %w", err)
	}
	if proxyUser != "" {
		go browser.MustHandleAuth(proxyUser, proxyPass)()
	}

	release := func() {
		if err := browser.Close(); err != nil {
			f.logger.Warn("close browser failed", slog.String("error", err.Error()))
		}
	}
	return browser, release, nil
}

// classifyFetchError buckets an attempt error for metrics.
func classifyFetchError(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "net::") || strings.Contains(msg, "connection") || strings.Contains(msg, "navigate"):
		return "network"
	case strings.Contains(msg, "launch") || strings.Contains(msg, "browser"):
		return "browser"
	default:
		return "unknown"
	}
}
