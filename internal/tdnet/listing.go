package tdnet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SiteOrigin is the origin TDnet pages are served from.
const SiteOrigin = "https://www.release.tdnet.info"

// DefaultListingURL is the TDnet page that frames today's listing.
const DefaultListingURL = "https://www.release.tdnet.info/inbs/I_main_00.html"

// mainFrameSelector locates the listing frame on the TDnet main page.
const mainFrameSelector = "iframe#main_list"

// maxPageSize bounds a fetched listing page.
const maxPageSize = 16 << 20

// Listing is the HTML of a listing frame and the URL it was loaded from.
type Listing struct {
	URL  string
	HTML string
}

// Loader loads the listing frame reachable from a page URL.
type Loader interface {
	Load(ctx context.Context, pageURL string) (*Listing, error)
}

// HTTPLoader loads the listing with plain HTTP requests. If the page
// frames the listing in iframe#main_list, the frame is fetched instead.
type HTTPLoader struct {
	Client *http.Client
}

func (l HTTPLoader) Load(ctx context.Context, pageURL string) (*Listing, error) {
	body, err := l.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tdnet: parsing %s: %w", pageURL, err)
	}

	src, ok := doc.Find(mainFrameSelector).Attr("src")
	if !ok || src == "" {
		return &Listing{URL: pageURL, HTML: body}, nil
	}
	frameURL, err := resolve(pageURL, src)
	if err != nil {
		return nil, err
	}
	frame, err := l.get(ctx, frameURL)
	if err != nil {
		return nil, err
	}
	return &Listing{URL: frameURL, HTML: frame}, nil
}

func (l HTTPLoader) get(ctx context.Context, target string) (string, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("tdnet: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tdnet: loading %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("tdnet: loading %s: status %d", target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("tdnet: reading %s: %w", target, err)
	}
	return string(data), nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("tdnet: invalid URL %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("tdnet: invalid frame src %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
