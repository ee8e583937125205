package tdnet

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	digest "github.com/porticus-lab/tdnet-digest"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts a summary to HTML. Raw HTML in the input is
// not passed through.
func RenderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("tdnet: rendering summary: %w", err)
	}
	return template.HTML(buf.String()), nil
}

var summaryRowTemplate = template.Must(template.New("summary-row").Parse(
	`<tr class="` + summaryRowClass + `"><td colspan="8" style="padding:12px;background-color:#f9fafb;border-top:2px solid #e5e7eb;border-bottom:2px solid #e5e7eb">` +
		`{{if .Error}}` +
		`<div style="padding:12px;background-color:#fef2f2;border:1px solid #fecaca;border-radius:6px">` +
		`<p style="margin:0;font-size:13px;color:#991b1b">{{.Error}}</p></div>` +
		`{{else}}` +
		`<div style="padding:12px;background-color:#ffffff;border:1px solid #e5e7eb;border-radius:6px">` +
		`<div style="display:flex;justify-content:space-between;align-items:center;margin-bottom:8px">` +
		`<h4 style="margin:0;font-size:14px;font-weight:bold;color:#1f2937">AI要約: {{.Row.CompanyName}} - {{.Row.Title}}</h4>` +
		`<button type="button" class="` + closeClass + `" style="padding:4px 8px;font-size:12px;background-color:#f3f4f6;border:1px solid #d1d5db;border-radius:4px;cursor:pointer;color:#4b5563">閉じる</button>` +
		`</div>` +
		`<div style="font-size:13px;color:#374151;line-height:1.6">{{.Body}}</div></div>` +
		`{{end}}</td></tr>`))

// SummaryRowHTML builds the listing row that shows res below row: the
// rendered summary with a close button, or an error box.
func SummaryRowHTML(row digest.DisclosureRow, res digest.SummaryResult) (string, error) {
	data := struct {
		Row   digest.DisclosureRow
		Error string
		Body  template.HTML
	}{Row: row, Error: res.Error}

	if res.OK() {
		body, err := RenderMarkdown(res.Summary)
		if err != nil {
			return "", err
		}
		data.Body = body
	}

	var buf bytes.Buffer
	if err := summaryRowTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("tdnet: building summary row: %w", err)
	}
	return buf.String(), nil
}
