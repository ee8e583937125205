package digest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/porticus-lab/tdnet-digest/llm"
	"github.com/porticus-lab/tdnet-digest/settings"
)

// Pipeline summarizes disclosure PDFs: settings, fetch, extract, summarize.
// The first failing stage ends the request. A Pipeline is safe for
// concurrent use.
type Pipeline struct {
	store     settings.Store
	extractor Extractor
	cfg       pipelineConfig

	mu     sync.Mutex
	closed bool
}

// NewPipeline returns a Pipeline reading its settings from store and
// extracting text with ext.
func NewPipeline(store settings.Store, ext Extractor, opts ...Option) *Pipeline {
	cfg := pipelineConfig{log: logrus.StandardLogger()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.source == nil {
		cfg.source = NewFetcher(WithFetchLogger(cfg.log))
	}
	if cfg.summarizer == nil {
		cfg.summarizer = llm.NewClient(llm.WithLogger(cfg.log))
	}
	return &Pipeline{store: store, extractor: ext, cfg: cfg}
}

// Close closes the extractor if it holds resources. Close is idempotent.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if c, ok := p.extractor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Pipeline) checkClosed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

// Summarize returns the summary for the PDF linked by req, unchanged from
// the completion endpoint.
func (p *Pipeline) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	if err := p.checkClosed(); err != nil {
		return "", err
	}

	entry := p.cfg.log.WithField("pdf_url", req.PDFURL)
	if row := req.RowData; row != nil {
		entry = entry.WithFields(logrus.Fields{
			"code":    row.Code,
			"company": row.CompanyName,
			"title":   row.Title,
		})
	}

	s, err := settings.Load(ctx, p.store)
	if err != nil {
		err = &ConfigurationError{Err: err}
		entry.WithError(err).Error("loading settings")
		return "", err
	}
	if err := checkSettings(s); err != nil {
		entry.Warn("summarize requested without API settings")
		return "", err
	}

	doc, err := p.cfg.source.Fetch(ctx, req.PDFURL)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{URL: req.PDFURL, Err: err}
		}
		entry.WithError(err).Warn("fetch failed")
		return "", err
	}
	entry = entry.WithField("bytes", doc.Len())

	text, err := p.extractor.Extract(ctx, doc.Bytes())
	if err != nil {
		err = &ExtractionError{Err: err}
		entry.WithError(err).Warn("extraction failed")
		return "", err
	}
	entry = entry.WithField("chars", len([]rune(text)))
	entry.Debug("extracted text")

	summary, err := p.cfg.summarizer.Summarize(ctx, text, s)
	if err != nil {
		err = &SummarizationError{Err: err}
		entry.WithError(err).Warn("summarization failed")
		return "", err
	}

	entry.Info("summarized disclosure")
	return summary, nil
}

// Handle runs [Pipeline.Summarize] and maps the outcome to a
// [SummaryResult].
func (p *Pipeline) Handle(ctx context.Context, req SummarizeRequest) SummaryResult {
	summary, err := p.Summarize(ctx, req)
	if err != nil {
		return SummaryResult{Error: err.Error()}
	}
	return SummaryResult{Summary: summary}
}

func checkSettings(s settings.Settings) error {
	var missing []string
	if s.APIURL == "" {
		missing = append(missing, settings.KeyAPIURL)
	}
	if s.APIKey == "" {
		missing = append(missing, settings.KeyAPIKey)
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}
