package tdnet

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Classes and ids owned by this package.
const (
	headerClass     = "tdnet-digest-header"
	buttonCellClass = "tdnet-digest-button-cell"
	buttonClass     = "tdnet-digest-button"
	summaryRowClass = "tdnet-digest-summary-row"
	closeClass      = "tdnet-digest-close"
	// cappedClass marks end cells whose -R class was moved to -M.
	cappedClass = "tdnet-digest-capped"
	scriptID    = "tdnet-digest-script"
)

// Pass is the annotation pass implied by a toggle.
type Pass int

const (
	PassNone Pass = iota
	PassInject
	PassTeardown
)

func (p Pass) String() string {
	switch p {
	case PassInject:
		return "inject"
	case PassTeardown:
		return "teardown"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pass) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// State is the enabled/disabled toggle of the summary buttons. It is safe
// for concurrent use.
type State struct {
	mu      sync.RWMutex
	enabled bool
}

// NewState returns a State with the given initial value.
func NewState(enabled bool) *State {
	return &State{enabled: enabled}
}

// Enabled reports the current value.
func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Set records enabled and returns the pass that brings a listing in line
// with it.
func (s *State) Set(enabled bool) Pass {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	return passFor(enabled)
}

// Apply runs the pass for the current value on doc.
func (s *State) Apply(doc *goquery.Document, endpoint string) Pass {
	p := passFor(s.Enabled())
	switch p {
	case PassInject:
		Inject(doc, endpoint)
	case PassTeardown:
		Teardown(doc)
	}
	return p
}

func passFor(enabled bool) Pass {
	if enabled {
		return PassInject
	}
	return PassTeardown
}

// Inject adds the AI要約 header cell and a summary button to every listing
// row that has none, plus the script that posts clicks to endpoint. It
// returns the number of rows that gained a button. Inject is idempotent.
func Inject(doc *goquery.Document, endpoint string) int {
	header := doc.Find(headerRowSelector).First()
	if header.Length() > 0 && header.Find("."+headerClass).Length() == 0 {
		last := header.Children().Last()
		if swapClass(last, "header-R", "header-M") {
			last.AddClass(cappedClass)
		}
		header.AppendHtml(`<td nowrap align="center" style="width:80px">AI要約</td>`)
		header.Children().Last().SetAttr("class", "header-R "+headerClass)
	}

	n := 0
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass(summaryRowClass) || tr.Find("."+buttonCellClass).Length() > 0 {
			return
		}
		row, ok := parseRow(tr)
		if !ok {
			return
		}

		cells := tr.Children()
		last := cells.Last()
		for _, kind := range []string{"oddnew", "evennew"} {
			if swapClass(last, kind+"-R", kind+"-M") {
				last.AddClass(cappedClass)
				break
			}
		}

		cellClass := buttonCellClass
		first, _ := cells.First().Attr("class")
		switch {
		case strings.Contains(first, "oddnew"):
			cellClass = "oddnew-R " + cellClass
		case strings.Contains(first, "evennew"):
			cellClass = "evennew-R " + cellClass
		}

		rowJSON, _ := json.Marshal(row)
		tr.AppendHtml(`<td nowrap align="center" style="width:80px"><button type="button">要約</button></td>`)
		cell := tr.Children().Last()
		cell.SetAttr("class", cellClass)
		cell.Find("button").
			SetAttr("class", buttonClass).
			SetAttr("data-pdf-url", row.PDFURL).
			SetAttr("data-row", string(rowJSON))
		n++
	})

	if doc.Find("#"+scriptID).Length() == 0 {
		target := doc.Find("body")
		if target.Length() == 0 {
			target = doc.Selection
		}
		target.AppendHtml(`<script></script>`)
		script := target.Children().Last()
		script.SetAttr("id", scriptID)
		script.SetAttr("data-endpoint", endpoint)
		script.SetText(clientScript)
	}
	return n
}

// Teardown removes everything [Inject] added and restores the end-cap
// classes it moved.
func Teardown(doc *goquery.Document) {
	doc.Find("." + headerClass).Remove()
	doc.Find("." + buttonCellClass).Remove()
	doc.Find("." + summaryRowClass).Remove()
	doc.Find("#" + scriptID).Remove()

	doc.Find("." + cappedClass).Each(func(_ int, cell *goquery.Selection) {
		cell.RemoveClass(cappedClass)
		for _, kind := range []string{"header", "oddnew", "evennew"} {
			if swapClass(cell, kind+"-M", kind+"-R") {
				break
			}
		}
	})
}

// swapClass replaces class from with to in place, keeping the order of
// the other classes.
func swapClass(sel *goquery.Selection, from, to string) bool {
	class, _ := sel.Attr("class")
	fields := strings.Fields(class)
	for i, f := range fields {
		if f == from {
			fields[i] = to
			sel.SetAttr("class", strings.Join(fields, " "))
			return true
		}
	}
	return false
}

// InsertSummary places rowHTML, as built by [SummaryRowHTML], directly
// after the row whose button links pdfURL, replacing any summary already
// shown there. It reports whether the row was found.
func InsertSummary(doc *goquery.Document, pdfURL, rowHTML string) bool {
	var tr *goquery.Selection
	doc.Find("." + buttonClass).EachWithBreak(func(_ int, btn *goquery.Selection) bool {
		if v, _ := btn.Attr("data-pdf-url"); v == pdfURL {
			tr = btn.Closest("tr")
			return false
		}
		return true
	})
	if tr == nil || tr.Length() == 0 {
		return false
	}
	if next := tr.Next(); next.HasClass(summaryRowClass) {
		next.Remove()
	}
	tr.AfterHtml(rowHTML)
	return true
}

// clientScript posts button clicks to the message endpoint and shows the
// reply below the clicked row.
const clientScript = `(function () {
  var endpoint = document.getElementById('` + scriptID + `').dataset.endpoint;
  function errorRow(msg) {
    var tr = document.createElement('tr');
    tr.className = '` + summaryRowClass + `';
    var td = document.createElement('td');
    td.colSpan = 8;
    td.textContent = msg;
    tr.appendChild(td);
    return tr;
  }
  document.addEventListener('click', function (e) {
    var close = e.target.closest('.` + closeClass + `');
    if (close) { close.closest('tr').remove(); return; }
    var btn = e.target.closest('.` + buttonClass + `');
    if (!btn) return;
    var tr = btn.closest('tr');
    var next = tr.nextElementSibling;
    if (next && next.classList.contains('` + summaryRowClass + `')) next.remove();
    btn.disabled = true;
    btn.textContent = '...';
    fetch(endpoint, {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({action: 'summarize', pdfUrl: btn.dataset.pdfUrl, rowData: JSON.parse(btn.dataset.row)})
    }).then(function (res) { return res.json(); }).then(function (data) {
      if (data.summaryHtml) {
        tr.insertAdjacentHTML('afterend', data.summaryHtml);
      } else {
        tr.after(errorRow(data.error || data.summary || 'empty reply'));
      }
    }).catch(function (err) {
      tr.after(errorRow(String(err)));
    }).finally(function () {
      btn.disabled = false;
      btn.textContent = '要約';
    });
  });
})();`
