// Package tdnet reads the TDnet disclosure listing and annotates it with
// summary buttons.
package tdnet

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	digest "github.com/porticus-lab/tdnet-digest"
)

// Selectors of the listing frame.
const (
	headerRowSelector = "#list-head tr"
	rowSelector       = "#main-list-table tbody > tr"
)

// ParseHTML parses a listing frame.
func ParseHTML(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("tdnet: parsing listing: %w", err)
	}
	return doc, nil
}

// Rows returns the disclosure rows of a listing frame, in page order.
// Rows added by this package and incomplete rows are skipped.
func Rows(doc *goquery.Document) []digest.DisclosureRow {
	var out []digest.DisclosureRow
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass(summaryRowClass) {
			return
		}
		if row, ok := parseRow(tr); ok {
			out = append(out, row)
		}
	})
	return out
}

// parseRow reads one listing row. It reports false when any of the
// time, code, name, title or link cells is missing.
func parseRow(tr *goquery.Selection) (digest.DisclosureRow, bool) {
	timeCell := tr.Find(".kjTime")
	codeCell := tr.Find(".kjCode")
	nameCell := tr.Find(".kjName")
	link := tr.Find(".kjTitle a").First()
	if timeCell.Length() == 0 || codeCell.Length() == 0 || nameCell.Length() == 0 || link.Length() == 0 {
		return digest.DisclosureRow{}, false
	}
	href, _ := link.Attr("href")
	return digest.DisclosureRow{
		Time:        strings.TrimSpace(timeCell.First().Text()),
		Code:        strings.TrimSpace(codeCell.First().Text()),
		CompanyName: strings.TrimSpace(nameCell.First().Text()),
		Title:       strings.TrimSpace(link.Text()),
		PDFURL:      strings.TrimSpace(href),
	}, true
}
