// Package pdftest builds small, valid PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build creates a minimal PDF with one page per content stream. Every page
// uses a single Helvetica font resource named /F1.
func Build(contentStreams ...[]byte) []byte {
	return build(false, contentStreams)
}

// BuildNested is like Build, but the pages hang off an intermediate Pages
// node and inherit /MediaBox [0 0 595 842] and /Rotate 90 from the root.
func BuildNested(contentStreams ...[]byte) []byte {
	return build(true, contentStreams)
}

func build(nested bool, contentStreams [][]byte) []byte {
	numPages := len(contentStreams)
	first := 3 // first page object
	if nested {
		first = 4
	}
	fontObjID := first + numPages*2

	kids := make([]string, numPages)
	for i := range contentStreams {
		kids[i] = fmt.Sprintf("%d 0 R", first+i*2)
	}

	objs := []string{"<< /Type /Catalog /Pages 2 0 R >>"}
	pageBox := " /MediaBox [0 0 612 792]"
	parent := 2
	if nested {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Pages /Kids [3 0 R] /Count %d /MediaBox [0 0 595 842] /Rotate 90 >>", numPages),
			fmt.Sprintf("<< /Type /Pages /Parent 2 0 R /Kids [%s] /Count %d >>", strings.Join(kids, " "), numPages))
		pageBox = ""
		parent = 3
	} else {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), numPages))
	}
	for i, cs := range contentStreams {
		csObjID := first + i*2 + 1
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent %d 0 R%s /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>",
				parent, pageBox, csObjID, fontObjID),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(cs), cs))
	}
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	size := len(objs) + 1

	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\n", size)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

// TextPage returns a content stream that shows each line with Tj, moving
// down 14 points between lines.
func TextPage(lines ...string) []byte {
	var b strings.Builder
	b.WriteString("BT /F1 12 Tf 72 720 Td")
	for i, l := range lines {
		if i > 0 {
			b.WriteString(" 0 -14 Td")
		}
		fmt.Fprintf(&b, " (%s) Tj", escape(l))
	}
	b.WriteString(" ET")
	return []byte(b.String())
}

// Text builds a document with one page per argument, each page showing
// that single line.
func Text(pages ...string) []byte {
	streams := make([][]byte, len(pages))
	for i, p := range pages {
		if p == "" {
			streams[i] = []byte("BT ET")
			continue
		}
		streams[i] = TextPage(p)
	}
	return Build(streams...)
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
