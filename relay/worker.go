package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// maxMessageSize bounds a single request line (a 50 MB PDF encodes to
// roughly four bytes per input byte).
const maxMessageSize = 256 * 1024 * 1024

// Extractor is the work performed inside the worker context.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Serve runs the worker side of the relay on rw until the peer closes it.
// Each request line gets exactly one reply line. Serve returns nil when
// the input reaches EOF.
func Serve(ctx context.Context, rw io.ReadWriter, ext Extractor, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sc := bufio.NewScanner(rw)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	enc := json.NewEncoder(rw)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		reply := handle(ctx, line, ext, log)
		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("relay: writing reply: %w", err)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("relay: reading request: %w", err)
	}
	return nil
}

func handle(ctx context.Context, line []byte, ext Extractor, log *logrus.Logger) ExtractReply {
	var req ExtractRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return ExtractReply{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	entry := log.WithFields(logrus.Fields{"id": req.ID, "action": req.Action})

	if req.Action != ActionExtractPDFText {
		entry.Warn("unknown relay action")
		return ExtractReply{ID: req.ID, Error: fmt.Sprintf("unknown action %q", req.Action)}
	}

	data, err := DecodeBytes(req.PDFData)
	if err != nil {
		return ExtractReply{ID: req.ID, Error: err.Error()}
	}
	// The request no longer needs its copy of the payload.
	req.PDFData = nil

	entry.WithField("bytes", len(data)).Debug("extracting")
	text, err := ext.Extract(ctx, data)
	if err != nil {
		entry.WithError(err).Warn("extraction failed")
		return ExtractReply{ID: req.ID, Error: err.Error()}
	}
	return ExtractReply{ID: req.ID, Success: true, Text: text}
}
