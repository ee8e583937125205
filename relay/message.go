// Package relay carries PDF bytes from the orchestrating process to a
// separate worker context that performs text extraction, and carries the
// result back.
//
// Messages are newline-delimited JSON. Binary payloads are never sent as
// raw bytes: they travel as a plain array of integers in 0..255
// (see [EncodeBytes] and [DecodeBytes]).
//
//	→ {"id":"…","action":"extractPdfText","pdfData":[37,80,68,70,…]}
//	← {"id":"…","success":true,"text":"…"}
//	← {"id":"…","success":false,"error":"…"}
package relay

import "fmt"

// Actions understood by the worker and by the HTTP message endpoint.
const (
	ActionExtractPDFText  = "extractPdfText"
	ActionSummarize       = "summarize"
	ActionToggleExtension = "toggleExtension"
)

// ExtractRequest asks the worker to extract text from a PDF.
type ExtractRequest struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	PDFData []int  `json:"pdfData"`
}

// ExtractReply is the worker's answer to an [ExtractRequest].
type ExtractReply struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EncodeBytes converts b into its transport form, one integer per byte.
func EncodeBytes(b []byte) []int {
	out := make([]int, len(b))
	for i, c := range b {
		out[i] = int(c)
	}
	return out
}

// DecodeBytes reverses [EncodeBytes]. Values outside 0..255 are rejected.
func DecodeBytes(v []int) ([]byte, error) {
	out := make([]byte, len(v))
	for i, n := range v {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("relay: pdfData[%d] = %d is not a byte", i, n)
		}
		out[i] = byte(n)
	}
	return out, nil
}
