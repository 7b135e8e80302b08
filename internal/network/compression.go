// File: internal/network/compression.go
package network

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised on every request that does not set its own.
const acceptEncoding = "br, gzip"

// DecodingTransport asks for compressed responses and decodes them, so
// callers always read the identity body. Mirrors and CDNs in front of the
// release bucket commonly serve the text index brotli or gzip encoded.
type DecodingTransport struct {
	// Transport is the underlying round tripper. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// NewDecodingTransport wraps rt.
func NewDecodingTransport(rt http.RoundTripper) *DecodingTransport {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &DecodingTransport{Transport: rt}
}

// RoundTrip implements http.RoundTripper.
func (t *DecodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		// RoundTrip must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecodeResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return resp, nil
}

// decodedBody closes the decoder and the wire body together.
type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (b *decodedBody) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// DecodeResponse replaces resp.Body with a reader that undoes every layer of
// Content-Encoding, last applied first.
func DecodeResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		for _, layer := range reversed(strings.Split(encodings[i], ",")) {
			encoding := strings.ToLower(strings.TrimSpace(layer))
			wire := resp.Body

			switch encoding {
			case "gzip", "x-gzip":
				zr, err := gzip.NewReader(wire)
				if err != nil {
					return fmt.Errorf("gzip: %w", err)
				}
				resp.Body = &decodedBody{Reader: zr, closers: []io.Closer{zr, wire}}
			case "br":
				resp.Body = &decodedBody{Reader: brotli.NewReader(wire), closers: []io.Closer{wire}}
			case "identity", "":
				continue
			default:
				return fmt.Errorf("unsupported Content-Encoding %q", encoding)
			}
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
