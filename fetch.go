package digest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

// DefaultOrigin is the TDnet listing origin that relative PDF links are
// resolved against.
const DefaultOrigin = "https://www.release.tdnet.info/inbs/"

// defaultMaxPDFSize bounds a single download.
const defaultMaxPDFSize = 64 << 20

// Fetcher downloads disclosure PDFs.
type Fetcher struct {
	client  *http.Client
	origin  *url.URL
	maxSize int64
	log     *logrus.Logger
}

// FetcherOption configures a [Fetcher].
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithOrigin sets the base URL for relative links. Invalid values are
// ignored.
func WithOrigin(origin string) FetcherOption {
	return func(f *Fetcher) {
		if u, err := url.Parse(origin); err == nil && u.IsAbs() {
			f.origin = u
		}
	}
}

// WithMaxSize caps the size of a downloaded PDF.
func WithMaxSize(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxSize = n
	}
}

// WithFetchLogger sets the fetcher's logger.
func WithFetchLogger(l *logrus.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.log = l
	}
}

// NewFetcher returns a Fetcher resolving against [DefaultOrigin].
func NewFetcher(opts ...FetcherOption) *Fetcher {
	origin, _ := url.Parse(DefaultOrigin)
	f := &Fetcher{
		client:  http.DefaultClient,
		origin:  origin,
		maxSize: defaultMaxPDFSize,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Resolve returns the absolute form of a PDF link.
func (f *Fetcher) Resolve(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid PDF URL %q: %w", link, err)
	}
	return f.origin.ResolveReference(u).String(), nil
}

// Fetch downloads the PDF at link. Failures are returned as *[FetchError].
func (f *Fetcher) Fetch(ctx context.Context, link string) (*Document, error) {
	target, err := f.Resolve(link)
	if err != nil {
		return nil, &FetchError{URL: link, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(data)) > f.maxSize {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("PDF exceeds %d bytes", f.maxSize)}
	}

	f.log.WithFields(logrus.Fields{"url": target, "bytes": len(data)}).Debug("fetched PDF")
	return NewDocument(target, data), nil
}
