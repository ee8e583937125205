package pdf

import (
	"bytes"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// PageInfo holds metadata about a single page.
type PageInfo struct {
	Width    float64
	Height   float64
	Rotation int
}

// Info describes a document without extracting its text.
type Info struct {
	Version string
	Pages   []PageInfo
}

// ReadInfo returns the header version and per-page dimensions of a PDF.
func ReadInfo(data []byte) (*Info, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf: reading xref: %w", err)
	}

	info := &Info{Version: version(data)}
	for i := 1; i <= r.NumPage(); i++ {
		info.Pages = append(info.Pages, pageInfo(r.Page(i)))
	}
	return info, nil
}

// version returns the version from the %PDF-n.n header (e.g. "1.7").
func version(data []byte) string {
	head := data[5:]
	if len(head) > 15 {
		head = head[:15]
	}
	if end := bytes.IndexAny(head, "\r\n"); end >= 0 {
		head = head[:end]
	}
	v := strings.TrimSpace(string(head))
	if v == "" {
		return "?"
	}
	return v
}

// maxTreeDepth bounds the walk up the page tree.
const maxTreeDepth = 64

func pageInfo(p lpdf.Page) PageInfo {
	var info PageInfo

	mb := inherited(p.V, "MediaBox")
	if mb.Len() >= 4 {
		info.Width = mb.Index(2).Float64() - mb.Index(0).Float64()
		info.Height = mb.Index(3).Float64() - mb.Index(1).Float64()
	}
	info.Rotation = int(inherited(p.V, "Rotate").Int64())
	return info
}

// inherited returns key from v or from the nearest Pages ancestor that
// sets it.
func inherited(v lpdf.Value, key string) lpdf.Value {
	for i := 0; i < maxTreeDepth; i++ {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
		v = v.Key("Parent")
		if v.IsNull() {
			break
		}
	}
	return v.Key(key)
}
