package digest

import (
	"bytes"
	"io"
	"os"
)

// DisclosureRow is one entry of the TDnet listing.
type DisclosureRow struct {
	Time        string `json:"time"`
	Code        string `json:"code"`
	CompanyName string `json:"companyName"`
	Title       string `json:"title"`
	PDFURL      string `json:"pdfUrl"`
}

// SummarizeRequest asks for a summary of the PDF at PDFURL. RowData is
// informational.
type SummarizeRequest struct {
	Action  string         `json:"action,omitempty"`
	PDFURL  string         `json:"pdfUrl"`
	RowData *DisclosureRow `json:"rowData,omitempty"`
}

// SummaryResult is the reply to a [SummarizeRequest]: exactly one of
// Summary and Error is set.
type SummaryResult struct {
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the result carries a summary.
func (r SummaryResult) OK() bool { return r.Error == "" }

// Document holds a downloaded disclosure PDF.
//
// Its methods never modify the underlying data.
type Document struct {
	URL  string
	data []byte
}

// NewDocument wraps data fetched from url.
func NewDocument(url string, data []byte) *Document {
	return &Document{URL: url, data: data}
}

// Bytes returns the raw PDF content.
func (d *Document) Bytes() []byte {
	return d.data
}

// Reader returns an [*bytes.Reader] over the PDF content.
func (d *Document) Reader() *bytes.Reader {
	return bytes.NewReader(d.data)
}

// WriteTo writes the full PDF content to w. It implements [io.WriterTo].
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data)
	return int64(n), err
}

// WriteToFile writes the PDF to the file at path, creating it if needed.
func (d *Document) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, d.data, perm)
}

// Len returns the size of the PDF in bytes.
func (d *Document) Len() int {
	return len(d.data)
}
