package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoText is returned when a document yields no text at all, which
// usually means the PDF is a scanned image.
var ErrNoText = errors.New("no extractable text (likely an image-only PDF)")

// Error wraps every failure returned by [Extractor.Extract].
type Error struct {
	Err error
}

func (e *Error) Error() string { return "pdf: " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// pageSeparator joins page texts; cleaning keeps it as a paragraph break.
const pageSeparator = "\n\n"

// Placeholder is the text substituted for a page that failed to render.
func Placeholder(page int) string {
	return fmt.Sprintf("[page %d could not be extracted]", page)
}

// Extractor turns PDF bytes into cleaned plain text.
type Extractor struct {
	load Loader
	log  *logrus.Logger
}

// Option configures an [Extractor].
type Option func(*Extractor)

// WithLoader selects the engine used to open documents. Defaults to [Load].
func WithLoader(l Loader) Option {
	return func(e *Extractor) {
		e.load = l
	}
}

// WithLogger sets the logger used for per-page diagnostics.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Extractor) {
		e.log = l
	}
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{load: Load, log: logrus.StandardLogger()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract loads data, renders every page in order and returns the cleaned
// text. A failing page is replaced by [Placeholder] and does not abort the
// document; the document fails only if every page fails or no text is
// found.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := e.load(data)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("loading document: %w", err)}
	}

	n := doc.NumPages()
	if n == 0 {
		return "", &Error{Err: ErrNoText}
	}
	e.log.WithField("pages", n).Debug("extracting PDF text")

	texts, failed, err := e.extract(ctx, doc, allPages(n))
	if err != nil {
		return "", &Error{Err: err}
	}
	if failed == n {
		return "", &Error{Err: fmt.Errorf("all %d pages failed to render", n)}
	}

	joined := strings.Join(texts, pageSeparator)
	if strings.TrimSpace(joined) == "" {
		return "", &Error{Err: ErrNoText}
	}

	cleaned := Clean(joined)
	if cleaned == "" {
		return "", &Error{Err: ErrNoText}
	}
	e.log.WithFields(logrus.Fields{
		"raw_chars":     len([]rune(joined)),
		"cleaned_chars": len([]rune(cleaned)),
	}).Debug("PDF text extracted")
	return cleaned, nil
}

// ExtractPages returns the raw, uncleaned text of the given 1-indexed
// pages, one element per page, with placeholders for pages that failed.
func (e *Extractor) ExtractPages(ctx context.Context, doc Document, pages []int) ([]string, error) {
	texts, _, err := e.extract(ctx, doc, pages)
	return texts, err
}

// extract renders pages strictly one after another so that only one
// page's content is held at a time.
func (e *Extractor) extract(ctx context.Context, doc Document, pages []int) ([]string, int, error) {
	texts := make([]string, 0, len(pages))
	failed := 0
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, failed, err
		}
		text, err := doc.PageText(p)
		if err != nil {
			e.log.WithFields(logrus.Fields{"page": p, "error": err}).Warn("page extraction failed")
			texts = append(texts, Placeholder(p))
			failed++
			continue
		}
		texts = append(texts, text)
	}
	return texts, failed, nil
}

func allPages(n int) []int {
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
