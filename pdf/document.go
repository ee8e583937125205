package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	lpdf "github.com/ledongthuc/pdf"
)

// Document is a loaded PDF whose pages can be rendered to text one at a
// time.
type Document interface {
	// NumPages returns the number of pages in the document.
	NumPages() int
	// PageText returns the text of page n (1-indexed).
	PageText(n int) (string, error)
}

// Loader turns raw PDF bytes into a Document.
type Loader func(data []byte) (Document, error)

// ErrNotPDF is returned when the input does not start with a PDF header.
var ErrNotPDF = errors.New("not a PDF file")

// Load parses a PDF from raw bytes with the native engine. The whole
// document is read from memory; nothing is fetched.
func Load(data []byte) (Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading xref: %w", err)
	}
	return &nativeDocument{r: r}, nil
}

type nativeDocument struct {
	r *lpdf.Reader
}

func (d *nativeDocument) NumPages() int {
	return d.r.NumPage()
}

// PageText joins the page's text fragments with single spaces, in the
// order the engine reports them.
func (d *nativeDocument) PageText(n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()

	page := d.r.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", n)
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", fmt.Errorf("page %d: %w", n, err)
	}

	var frags []string
	for _, row := range rows {
		for _, t := range row.Content {
			frags = append(frags, t.S)
		}
	}
	return strings.Join(frags, " "), nil
}

// LoadPoppler converts the PDF with pdftotext (via docconv) and splits the
// output into pages on form feeds. pdftotext must be installed.
func LoadPoppler(data []byte) (Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	body, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	pages := strings.Split(body, "\f")
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return &popplerDocument{pages: pages}, nil
}

type popplerDocument struct {
	pages []string
}

func (d *popplerDocument) NumPages() int {
	return len(d.pages)
}

func (d *popplerDocument) PageText(n int) (string, error) {
	if n < 1 || n > len(d.pages) {
		return "", fmt.Errorf("page %d out of range (1-%d)", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// LoaderByName maps an engine name to its Loader. The empty name selects
// the native engine.
func LoaderByName(name string) (Loader, error) {
	switch name {
	case "", "native":
		return Load, nil
	case "poppler", "pdftotext":
		return LoadPoppler, nil
	}
	return nil, fmt.Errorf("pdf: unknown engine %q", name)
}
