package pdf

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/porticus-lab/tdnet-digest/internal/pdftest"
)

// fakeDocument serves canned page texts; a non-nil error fails that page.
type fakeDocument struct {
	pages []string
	errs  map[int]error
	calls []int
}

func (d *fakeDocument) NumPages() int { return len(d.pages) }

func (d *fakeDocument) PageText(n int) (string, error) {
	d.calls = append(d.calls, n)
	if err := d.errs[n]; err != nil {
		return "", err
	}
	return d.pages[n-1], nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFakeExtractor(doc Document) *Extractor {
	return NewExtractor(
		WithLogger(quietLogger()),
		WithLoader(func([]byte) (Document, error) { return doc, nil }),
	)
}

func TestExtractSimpleText(t *testing.T) {
	data := pdftest.Text("Hello, World!")

	text, err := NewExtractor(WithLogger(quietLogger())).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Hello") {
		t.Errorf("expected 'Hello' in output, got: %q", text)
	}
}

func TestMultiplePages(t *testing.T) {
	data := pdftest.Text("Page one", "Page two")

	doc, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := doc.NumPages(); n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}

	ext := NewExtractor(WithLogger(quietLogger()))
	texts, err := ext.ExtractPages(context.Background(), doc, []int{1, 2})
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if !strings.Contains(texts[0], "one") {
		t.Errorf("page 1: expected 'one', got %q", texts[0])
	}
	if !strings.Contains(texts[1], "two") {
		t.Errorf("page 2: expected 'two', got %q", texts[1])
	}

	all, err := ext.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Index(all, "one") > strings.Index(all, "two") {
		t.Errorf("pages out of order: %q", all)
	}
}

func TestExtractPageFailureUsesPlaceholder(t *testing.T) {
	doc := &fakeDocument{
		pages: []string{"first page", "", "third page"},
		errs:  map[int]error{2: errors.New("bad content stream")},
	}
	ext := newFakeExtractor(doc)

	texts, err := ext.ExtractPages(context.Background(), doc, []int{1, 2, 3})
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if len(texts) != 3 {
		t.Fatalf("expected 3 page texts, got %d", len(texts))
	}
	if texts[1] != Placeholder(2) || !strings.Contains(texts[1], "2") {
		t.Errorf("page 2 = %q, want placeholder mentioning 2", texts[1])
	}

	text, err := ext.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "first page") || !strings.Contains(text, "third page") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestExtractPagesInOrder(t *testing.T) {
	doc := &fakeDocument{pages: []string{"a", "b", "c", "d"}}
	if _, err := newFakeExtractor(doc).Extract(context.Background(), nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i, p := range doc.calls {
		if p != i+1 {
			t.Fatalf("page calls = %v, want 1..4 in order", doc.calls)
		}
	}
}

func TestExtractJoinsBeforeCleaning(t *testing.T) {
	// Each page ends in whitespace that only collapses once pages are joined.
	doc := &fakeDocument{pages: []string{"alpha  \n\n", "\n\nbeta"}}
	text, err := newFakeExtractor(doc).Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "alpha\n\nbeta" {
		t.Errorf("Extract = %q, want %q", text, "alpha\n\nbeta")
	}
}

func TestExtractAllPagesEmpty(t *testing.T) {
	doc := &fakeDocument{pages: []string{"", "  ", "\n"}}
	_, err := newFakeExtractor(doc).Extract(context.Background(), nil)
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %T", err)
	}
}

func TestExtractOnlyArtifacts(t *testing.T) {
	doc := &fakeDocument{pages: []string{"- 1 -", "- 2 -"}}
	_, err := newFakeExtractor(doc).Extract(context.Background(), nil)
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestExtractAllPagesFail(t *testing.T) {
	boom := errors.New("boom")
	doc := &fakeDocument{
		pages: []string{"x", "y"},
		errs:  map[int]error{1: boom, 2: boom},
	}
	_, err := newFakeExtractor(doc).Extract(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "all 2 pages") {
		t.Fatalf("expected all-pages failure, got %v", err)
	}
}

func TestExtractNotPDF(t *testing.T) {
	_, err := NewExtractor(WithLogger(quietLogger())).Extract(context.Background(), []byte("<html></html>"))
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := &fakeDocument{pages: []string{"a"}}
	_, err := newFakeExtractor(doc).Extract(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReadInfo(t *testing.T) {
	info, err := ReadInfo(pdftest.Text("a", "b"))
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Version != "1.4" {
		t.Errorf("version = %q, want 1.4", info.Version)
	}
	if len(info.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(info.Pages))
	}
	if info.Pages[0].Width != 612 || info.Pages[0].Height != 792 {
		t.Errorf("expected 612x792, got %.0fx%.0f", info.Pages[0].Width, info.Pages[0].Height)
	}
}

func TestReadInfoInheritsFromPageTree(t *testing.T) {
	data := pdftest.BuildNested(pdftest.TextPage("one"), pdftest.TextPage("two"))
	info, err := ReadInfo(data)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if len(info.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(info.Pages))
	}
	for i, p := range info.Pages {
		if p.Width != 595 || p.Height != 842 {
			t.Errorf("page %d: expected 595x842 from the root node, got %.0fx%.0f", i+1, p.Width, p.Height)
		}
		if p.Rotation != 90 {
			t.Errorf("page %d: rotation = %d, want 90", i+1, p.Rotation)
		}
	}
}

func TestLoaderByName(t *testing.T) {
	for _, name := range []string{"", "native", "poppler"} {
		if _, err := LoaderByName(name); err != nil {
			t.Errorf("LoaderByName(%q): %v", name, err)
		}
	}
	if _, err := LoaderByName("mupdf"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestPopplerEngine(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("skipping: pdftotext not found in PATH")
	}
	doc, err := LoadPoppler(pdftest.Text("Page one", "Page two"))
	if err != nil {
		t.Fatalf("LoadPoppler: %v", err)
	}
	if n := doc.NumPages(); n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}
	text, err := doc.PageText(2)
	if err != nil {
		t.Fatalf("PageText: %v", err)
	}
	if !strings.Contains(text, "two") {
		t.Errorf("page 2: expected 'two', got %q", text)
	}
}
