package digest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4 fake content for testing")

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inbs/a.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Write(samplePDF)
	}))
	defer srv.Close()

	f := NewFetcher(WithOrigin(srv.URL + "/inbs/"))
	doc, err := f.Fetch(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/inbs/a.pdf", doc.URL)
	assert.Equal(t, samplePDF, doc.Bytes())

	// Absolute links are used as is.
	doc, err = f.Fetch(context.Background(), srv.URL+"/inbs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, len(samplePDF), doc.Len())

	_, err = f.Fetch(context.Background(), "missing.pdf")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewFetcher(WithOrigin(base+"/")).Fetch(context.Background(), "a.pdf")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.StatusCode)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	defer srv.Close()

	_, err := NewFetcher(WithMaxSize(10)).Fetch(context.Background(), srv.URL)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestResolveDefaultOrigin(t *testing.T) {
	got, err := NewFetcher().Resolve("140120240101000000.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://www.release.tdnet.info/inbs/140120240101000000.pdf", got)
}

func TestDocument(t *testing.T) {
	d := NewDocument("u", samplePDF)

	var buf bytes.Buffer
	n, err := d.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, len(samplePDF), n)
	assert.Equal(t, samplePDF, buf.Bytes())
	assert.Equal(t, len(samplePDF), d.Reader().Len())

	path := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, d.WriteToFile(path, 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)
}
