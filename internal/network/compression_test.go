package network

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brotliBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestClient_FetchDecodesCompressedBodies(t *testing.T) {
	const version = "114.0.5735.90"
	var seenAccept atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAccept.Store(r.Header.Get("Accept-Encoding"))
		switch r.URL.Path {
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(brotliBytes(t, version))
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gzipBytes(t, version))
		case "/layered":
			// gzip applied first, then brotli.
			w.Header().Set("Content-Encoding", "gzip, br")
			_, _ = w.Write(brotliBytes(t, string(gzipBytes(t, version))))
		case "/unknown":
			w.Header().Set("Content-Encoding", "zstd")
			_, _ = w.Write([]byte("opaque"))
		default:
			_, _ = w.Write([]byte(version))
		}
	}))
	defer server.Close()

	client := NewClient(nil)
	for _, path := range []string{"/br", "/gzip", "/layered", "/plain"} {
		t.Run(strings.TrimPrefix(path, "/"), func(t *testing.T) {
			body, err := client.Fetch(context.Background(), server.URL+path)
			require.NoError(t, err)
			assert.Equal(t, version, string(body))
			assert.Equal(t, acceptEncoding, seenAccept.Load())
		})
	}

	t.Run("unsupported encoding", func(t *testing.T) {
		_, err := client.Fetch(context.Background(), server.URL+"/unknown")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zstd")
	})
}

func TestDecodeResponse_Identity(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"identity"}},
		Body:   io.NopCloser(strings.NewReader("raw")),
	}
	require.NoError(t, DecodeResponse(resp))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestDecodingTransport_KeepsCallerHeader(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Accept-Encoding"))
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := NewDecodingTransport(nil).RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "identity", seen.Load())
}
