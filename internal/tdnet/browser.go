package tdnet

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned when using a closed [Browser].
var ErrClosed = errors.New("tdnet: browser is closed")

// Browser loads the listing in headless Chrome, so the listing frame is
// read after its scripts have run.
//
// A Browser reuses one browser process across loads and is safe for
// concurrent use. Call [Browser.Close] to release it.
type Browser struct {
	cfg           browserConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewBrowser starts a headless browser with the given options.
func NewBrowser(opts ...BrowserOption) (*Browser, error) {
	cfg := defaultBrowserConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.chromePath == "" && cfg.autoDownload {
		path, err := resolveBrowser()
		if err != nil {
			return nil, err
		}
		cfg.chromePath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("tdnet: starting browser: %w", err)
	}

	return &Browser{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases the browser process. Close is idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.browserCancel()
	b.allocCancel()
	return nil
}

func (b *Browser) checkClosed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Load navigates to pageURL and returns the HTML of its main_list frame,
// or of the page itself when it has no such frame.
func (b *Browser) Load(ctx context.Context, pageURL string) (*Listing, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return nil, fmt.Errorf("tdnet: invalid URL %q: %w", pageURL, err)
	}

	if b.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	// The tab follows the caller's deadline.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var frameURL string
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			frameURL = listingFrameURL(tree)
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("tdnet: loading %s: %w", pageURL, err)
	}

	target := pageURL
	if frameURL != "" {
		target = frameURL
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(frameURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		); err != nil {
			return nil, fmt.Errorf("tdnet: loading frame %s: %w", frameURL, err)
		}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("tdnet: reading %s: %w", target, err)
	}
	return &Listing{URL: target, HTML: html}, nil
}

// listingFrameURL returns the URL of the child frame named main_list.
func listingFrameURL(tree *page.FrameTree) string {
	if tree == nil {
		return ""
	}
	for _, child := range tree.ChildFrames {
		if child.Frame != nil && child.Frame.Name == "main_list" {
			return child.Frame.URL
		}
		if u := listingFrameURL(child); u != "" {
			return u
		}
	}
	return ""
}

// resolveBrowser downloads a compatible Chromium binary if one is not
// already cached and returns the path to the executable.
func resolveBrowser() (string, error) {
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("tdnet: downloading browser: %w", err)
	}
	return path, nil
}
