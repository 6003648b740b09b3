package testutil

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// ZipBytes builds an in-memory zip archive from name/content pairs.
func ZipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Hits counts requests per URL path.
type Hits struct {
	mu sync.Mutex
	m  map[string]int
}

// Get returns the number of requests seen for path.
func (h *Hits) Get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m[path]
}

// ServeFiles starts a server answering each path with its bytes and 404
// for everything else.
func ServeFiles(t *testing.T, files map[string][]byte) (*httptest.Server, *Hits) {
	t.Helper()
	hits := &Hits{m: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.mu.Lock()
		hits.m[r.URL.Path]++
		hits.mu.Unlock()

		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}
