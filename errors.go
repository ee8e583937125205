package digest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/porticus-lab/tdnet-digest/relay"
)

// ErrClosed is returned when using a closed [Pipeline].
var ErrClosed = errors.New("digest: pipeline is closed")

// ConfigurationError reports missing summarization settings, or settings
// that could not be read. It is raised before any network access.
type ConfigurationError struct {
	Missing []string
	Err     error // set when the settings store failed
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return "reading API settings failed: " + e.Err.Error()
	}
	return "API settings are incomplete (missing " + strings.Join(e.Missing, ", ") +
		"); set them on the settings page"
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FetchError reports a failure to download the disclosure PDF.
type FetchError struct {
	URL        string
	StatusCode int // zero for network failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching PDF failed: %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching PDF failed: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError reports that no text could be obtained from the PDF,
// whether the relay failed or the worker did.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	var we *relay.WorkerError
	if errors.As(e.Err, &we) {
		return "extraction failed: " + we.Message
	}
	return "extraction failed: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SummarizationError reports a failed completion call.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return "summarization failed: " + e.Err.Error() }

func (e *SummarizationError) Unwrap() error { return e.Err }
