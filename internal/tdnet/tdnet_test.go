package tdnet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	digest "github.com/porticus-lab/tdnet-digest"
)

const listingHTML = `<html><head><title>listing</title></head><body>
<table id="list-head"><tr>
<td class="header-L">時刻</td><td class="header-M">コード</td><td class="header-M">会社名</td>
<td class="header-M">表題</td><td class="header-R">更新履歴</td>
</tr></table>
<table id="main-list-table"><tbody>
<tr>
<td class="oddnew-L kjTime" nowrap>15:00</td>
<td class="oddnew-M kjCode">12340</td>
<td class="oddnew-M kjName">テスト株式会社</td>
<td class="oddnew-M kjTitle"><a href="140120240101000001.pdf" target="_blank"> 配当予想の修正に関するお知らせ </a></td>
<td class="oddnew-R kjHistroy"></td>
</tr>
<tr>
<td class="evennew-L kjTime" nowrap>14:30</td>
<td class="evennew-M kjCode">56780</td>
<td class="evennew-M kjName">サンプル工業</td>
<td class="evennew-M kjTitle"><a href="140120240101000002.pdf">決算短信</a></td>
<td class="evennew-R kjHistroy"></td>
</tr>
<tr><td colspan="5">no disclosures</td></tr>
</tbody></table>
</body></html>`

func parseListing(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := ParseHTML(strings.NewReader(listingHTML))
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc *goquery.Document) string {
	t.Helper()
	html, err := doc.Html()
	require.NoError(t, err)
	return html
}

func TestRows(t *testing.T) {
	rows := Rows(parseListing(t))
	require.Len(t, rows, 2)
	assert.Equal(t, digest.DisclosureRow{
		Time:        "15:00",
		Code:        "12340",
		CompanyName: "テスト株式会社",
		Title:       "配当予想の修正に関するお知らせ",
		PDFURL:      "140120240101000001.pdf",
	}, rows[0])
	assert.Equal(t, "56780", rows[1].Code)
}

func TestInject(t *testing.T) {
	doc := parseListing(t)
	n := Inject(doc, "/api/message")
	assert.Equal(t, 2, n)

	header := doc.Find("." + headerClass)
	require.Equal(t, 1, header.Length())
	assert.Equal(t, "AI要約", header.Text())
	assert.True(t, header.HasClass("header-R"))
	assert.True(t, header.Prev().HasClass("header-M"))
	assert.False(t, header.Prev().HasClass("header-R"))

	cells := doc.Find("." + buttonCellClass)
	require.Equal(t, 2, cells.Length())
	assert.True(t, cells.Eq(0).HasClass("oddnew-R"))
	assert.True(t, cells.Eq(1).HasClass("evennew-R"))
	assert.True(t, cells.Eq(0).Prev().HasClass("oddnew-M"))

	btn := cells.Eq(0).Find("button")
	url, _ := btn.Attr("data-pdf-url")
	assert.Equal(t, "140120240101000001.pdf", url)
	rowJSON, _ := btn.Attr("data-row")
	assert.Contains(t, rowJSON, `"companyName":"テスト株式会社"`)

	script := doc.Find("#" + scriptID)
	require.Equal(t, 1, script.Length())
	endpoint, _ := script.Attr("data-endpoint")
	assert.Equal(t, "/api/message", endpoint)
	// Error replies carry no summaryHtml and are shown as an error row.
	assert.Contains(t, script.Text(), "if (data.summaryHtml)")
	assert.Contains(t, script.Text(), "errorRow(data.error")

	// Rows added by Inject are not listing rows.
	assert.Len(t, Rows(doc), 2)
}

func TestInjectIdempotent(t *testing.T) {
	doc := parseListing(t)
	Inject(doc, "/api/message")
	once := render(t, doc)

	assert.Zero(t, Inject(doc, "/api/message"))
	assert.Equal(t, once, render(t, doc))
}

func TestTeardownRestoresListing(t *testing.T) {
	pristine := parseListing(t)
	doc := parseListing(t)

	Inject(doc, "/api/message")
	html, err := SummaryRowHTML(Rows(doc)[0], digest.SummaryResult{Summary: "- 増配"})
	require.NoError(t, err)
	require.True(t, InsertSummary(doc, "140120240101000001.pdf", html))

	Teardown(doc)
	assert.Zero(t, doc.Find("."+headerClass).Length())
	assert.Zero(t, doc.Find("."+buttonCellClass).Length())
	assert.Zero(t, doc.Find("."+summaryRowClass).Length())
	assert.Zero(t, doc.Find("#"+scriptID).Length())
	assert.Zero(t, doc.Find("."+cappedClass).Length())
	assert.Equal(t, render(t, pristine), render(t, doc))
}

func TestStateSetAndApply(t *testing.T) {
	s := NewState(true)
	assert.True(t, s.Enabled())

	doc := parseListing(t)
	assert.Equal(t, PassInject, s.Apply(doc, "/api/message"))
	assert.Equal(t, 2, doc.Find("."+buttonCellClass).Length())

	assert.Equal(t, PassTeardown, s.Set(false))
	assert.False(t, s.Enabled())
	assert.Equal(t, PassTeardown, s.Apply(doc, "/api/message"))
	assert.Zero(t, doc.Find("."+buttonCellClass).Length())

	assert.Equal(t, PassInject, s.Set(true))

	text, err := PassTeardown.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "teardown", string(text))
}

func TestSummaryRowHTML(t *testing.T) {
	row := digest.DisclosureRow{CompanyName: "A&B", Title: "<title>"}

	html, err := SummaryRowHTML(row, digest.SummaryResult{Summary: "- 増配\n- <b>raw</b>"})
	require.NoError(t, err)
	assert.Contains(t, html, "AI要約: A&amp;B - &lt;title&gt;")
	assert.Contains(t, html, "<li>増配</li>")
	assert.NotContains(t, html, "<b>raw</b>")
	assert.Contains(t, html, closeClass)

	html, err = SummaryRowHTML(row, digest.SummaryResult{Error: "fetching PDF failed"})
	require.NoError(t, err)
	assert.Contains(t, html, "fetching PDF failed")
	assert.NotContains(t, html, closeClass)
}

func TestInsertSummaryReplacesPrevious(t *testing.T) {
	doc := parseListing(t)
	Inject(doc, "/api/message")
	row := Rows(doc)[1]

	first, err := SummaryRowHTML(row, digest.SummaryResult{Summary: "first"})
	require.NoError(t, err)
	second, err := SummaryRowHTML(row, digest.SummaryResult{Summary: "second"})
	require.NoError(t, err)

	require.True(t, InsertSummary(doc, row.PDFURL, first))
	require.True(t, InsertSummary(doc, row.PDFURL, second))

	summaries := doc.Find("." + summaryRowClass)
	require.Equal(t, 1, summaries.Length())
	assert.Contains(t, summaries.Text(), "second")
	assert.True(t, summaries.Prev().Find("."+buttonClass).Length() == 1)

	assert.False(t, InsertSummary(doc, "unknown.pdf", first))
}

func TestHTTPLoaderFollowsFrame(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/inbs/I_main_00.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><iframe id="main_list" name="main_list" src="I_list_001_20240101.html"></iframe></body></html>`))
	})
	mux.HandleFunc("/inbs/I_list_001_20240101.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	listing, err := HTTPLoader{}.Load(context.Background(), srv.URL+"/inbs/I_main_00.html")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/inbs/I_list_001_20240101.html", listing.URL)

	doc, err := ParseHTML(strings.NewReader(listing.HTML))
	require.NoError(t, err)
	assert.Len(t, Rows(doc), 2)

	// A page without the frame is returned as is.
	listing, err = HTTPLoader{}.Load(context.Background(), srv.URL+"/inbs/I_list_001_20240101.html")
	require.NoError(t, err)
	assert.Contains(t, listing.HTML, "main-list-table")

	_, err = HTTPLoader{}.Load(context.Background(), srv.URL+"/missing.html")
	assert.ErrorContains(t, err, "404")
}

// chromeAvailable reports whether a Chrome/Chromium executable is in PATH.
func chromeAvailable() bool {
	for _, name := range []string{
		"chromium-browser", "chromium", "google-chrome",
		"google-chrome-stable", "chrome",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func skipIfNoChrome(t *testing.T) {
	t.Helper()
	if !chromeAvailable() {
		t.Skip("skipping: Chrome/Chromium not found in PATH")
	}
}

func newTestBrowser(t *testing.T) *Browser {
	t.Helper()
	skipIfNoChrome(t)
	b, err := NewBrowser(WithNoSandbox())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBrowserLoadsListingFrame(t *testing.T) {
	b := newTestBrowser(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/inbs/I_main_00.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><iframe id="main_list" name="main_list" src="I_list_001_20240101.html"></iframe></body></html>`))
	})
	mux.HandleFunc("/inbs/I_list_001_20240101.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(listingHTML))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	listing, err := b.Load(context.Background(), srv.URL+"/inbs/I_main_00.html")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/inbs/I_list_001_20240101.html", listing.URL)

	doc, err := ParseHTML(strings.NewReader(listing.HTML))
	require.NoError(t, err)
	assert.Len(t, Rows(doc), 2)
}

func TestBrowserClosed(t *testing.T) {
	b := newTestBrowser(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Load(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBrowserInvalidURL(t *testing.T) {
	b := newTestBrowser(t)
	_, err := b.Load(context.Background(), "not a url")
	assert.Error(t, err)
}
