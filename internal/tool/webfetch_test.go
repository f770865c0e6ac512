package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFetch(t *testing.T, url, format string) (*Result, error) {
	t.Helper()
	input := fmt.Sprintf(`{"url": %q, "format": %q}`, url, format)
	return NewWebFetchTool(t.TempDir()).Execute(context.Background(), json.RawMessage(input), testContext())
}

func TestWebFetch_PlainTextPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "release notes v1.2")
	}))
	defer srv.Close()

	result, err := runFetch(t, srv.URL, "text")
	require.NoError(t, err)
	assert.Equal(t, "release notes v1.2", result.Output)
	assert.Equal(t, "text", result.Metadata["format"])
}

func TestWebFetch_HTMLToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Changelog</h1><p>Fixed <strong>races</strong>.</p><script>evil()</script></body></html>`)
	}))
	defer srv.Close()

	result, err := runFetch(t, srv.URL, "markdown")
	require.NoError(t, err)
	assert.Contains(t, result.Output, "# Changelog")
	assert.Contains(t, result.Output, "**races**")
	assert.NotContains(t, result.Output, "evil()")
}

func TestWebFetch_HTMLToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>visible words</p><style>p{color:red}</style></body></html>`)
	}))
	defer srv.Close()

	result, err := runFetch(t, srv.URL, "text")
	require.NoError(t, err)
	assert.Contains(t, result.Output, "visible words")
	assert.NotContains(t, result.Output, "color:red")
}

func TestWebFetch_RawHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<div>raw</div>")
	}))
	defer srv.Close()

	result, err := runFetch(t, srv.URL, "html")
	require.NoError(t, err)
	assert.Equal(t, "<div>raw</div>", result.Output)
}

func TestWebFetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := runFetch(t, srv.URL, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestWebFetch_RejectsNonHTTPURL(t *testing.T) {
	_, err := runFetch(t, "ftp://example.com/file", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http://")
}

func TestWebFetch_RejectsUnknownFormat(t *testing.T) {
	_, err := runFetch(t, "https://example.com", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format must be")
}

func TestWebFetch_BodySizeCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("a", fetchMaxBody+1))
	}))
	defer srv.Close()

	_, err := runFetch(t, srv.URL, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5MB")
}

func TestWebFetch_SendsNegotiationHeaders(t *testing.T) {
	var gotAccept, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	_, err := runFetch(t, srv.URL, "markdown")
	require.NoError(t, err)
	assert.Contains(t, gotAccept, "text/markdown")
	assert.NotEmpty(t, gotUA)
}
