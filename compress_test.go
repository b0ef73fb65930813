package http1conn

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

func compressedResponse(t *testing.T, encoding string, compress func(w io.Writer) io.WriteCloser, payload string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := compress(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatalf("unexpected compression error: %s", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("unexpected compression error: %s", err)
	}
	var raw strings.Builder
	raw.WriteString("HTTP/1.1 200 OK\r\nContent-Encoding: ")
	raw.WriteString(encoding)
	raw.WriteString("\r\nContent-Length: ")
	raw.WriteString(strconv.Itoa(buf.Len()))
	raw.WriteString("\r\n\r\n")
	raw.Write(buf.Bytes())
	return raw.String()
}

func TestBodyUncompressedGzip(t *testing.T) {
	const payload = "gzipped payload body"
	raw := compressedResponse(t, "gzip", func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	}, payload)

	pool := &testPool{}
	c, resp, err := parseResponseString(pool, raw)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	zr, err := resp.BodyUncompressed()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(body) != payload {
		t.Fatalf("unexpected decompressed body %q", body)
	}
	zr.Close()
	c.Release()
	if pool.returnedCount() != 1 {
		t.Fatalf("decompression must not break connection reuse")
	}
}

func TestBodyUncompressedBrotli(t *testing.T) {
	const payload = "brotli payload body"
	raw := compressedResponse(t, "br", func(w io.Writer) io.WriteCloser {
		return brotli.NewWriter(w)
	}, payload)

	_, resp, err := parseResponseString(&testPool{}, raw)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	zr, err := resp.BodyUncompressed()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(body) != payload {
		t.Fatalf("unexpected decompressed body %q", body)
	}
	zr.Close()
}

func TestBodyUncompressedIdentityPassthrough(t *testing.T) {
	_, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nplain")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	r, err := resp.BodyUncompressed()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if r != resp.Body() {
		t.Fatalf("identity encoding must return the body stream itself")
	}
	body, _ := io.ReadAll(r)
	if string(body) != "plain" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestBodyUncompressedUnknownEncoding(t *testing.T) {
	_, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 200 OK\r\nContent-Encoding: lzma\r\nContent-Length: 1\r\n\r\nx")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := resp.BodyUncompressed(); err == nil {
		t.Fatalf("expecting error for unsupported Content-Encoding")
	}
}
