package digest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/porticus-lab/tdnet-digest/settings"
)

// Source downloads a disclosure PDF.
type Source interface {
	Fetch(ctx context.Context, link string) (*Document, error)
}

// Extractor turns PDF bytes into cleaned text. A [relay.Relay] is the
// usual implementation.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Summarizer produces a summary of text using the given settings.
type Summarizer interface {
	Summarize(ctx context.Context, text string, s settings.Settings) (string, error)
}

// pipelineConfig holds internal configuration for a Pipeline.
type pipelineConfig struct {
	source     Source
	summarizer Summarizer
	log        *logrus.Logger
}

// Option configures a [Pipeline].
type Option func(*pipelineConfig)

// WithSource replaces the default [Fetcher].
func WithSource(s Source) Option {
	return func(c *pipelineConfig) {
		c.source = s
	}
}

// WithSummarizer replaces the default [llm.Client].
func WithSummarizer(s Summarizer) Option {
	return func(c *pipelineConfig) {
		c.summarizer = s
	}
}

// WithLogger sets the pipeline's logger. Defaults to the logrus standard
// logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *pipelineConfig) {
		c.log = l
	}
}
