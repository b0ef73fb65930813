package http1conn

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Body decompression sits strictly above body framing: the wrapped
// reader still drives connection completion, these helpers only decode
// the payload.

var gzipReaderPool sync.Pool

func acquireGzipReader(r io.Reader) (*gzip.Reader, error) {
	v := gzipReaderPool.Get()
	if v == nil {
		return gzip.NewReader(r)
	}
	zr := v.(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

func releaseGzipReader(zr *gzip.Reader) {
	zr.Close()
	gzipReaderPool.Put(zr)
}

var flateReaderPool sync.Pool

func acquireFlateReader(r io.Reader) (io.ReadCloser, error) {
	v := flateReaderPool.Get()
	if v == nil {
		return flate.NewReader(r), nil
	}
	fr := v.(io.ReadCloser)
	if err := fr.(flate.Resetter).Reset(r, nil); err != nil {
		return nil, err
	}
	return fr, nil
}

func releaseFlateReader(fr io.ReadCloser) {
	fr.Close()
	flateReaderPool.Put(fr)
}

var zstdDecoderPool sync.Pool

func acquireZstdReader(r io.Reader) (*zstd.Decoder, error) {
	v := zstdDecoderPool.Get()
	if v == nil {
		return zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	}
	zr := v.(*zstd.Decoder)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

func releaseZstdReader(zr *zstd.Decoder) {
	zstdDecoderPool.Put(zr)
}

var brotliReaderPool sync.Pool

func acquireBrotliReader(r io.Reader) (*brotli.Reader, error) {
	v := brotliReaderPool.Get()
	if v == nil {
		return brotli.NewReader(r), nil
	}
	br := v.(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		return nil, err
	}
	return br, nil
}

func releaseBrotliReader(br *brotli.Reader) {
	brotliReaderPool.Put(br)
}

// BodyUncompressed returns a reader that decodes the response body
// according to its Content-Encoding header. For identity (or absent)
// encodings the body stream itself is returned. Closing the returned
// reader closes the underlying body and returns the decoder to its
// pool.
func (resp *Response) BodyUncompressed() (io.ReadCloser, error) {
	ce := resp.ContentHeader("Content-Encoding")
	if len(ce) == 0 {
		ce = resp.Header("Content-Encoding")
	}
	switch {
	case len(ce) == 0, bytes.Equal(ce, []byte("identity")):
		return resp.body, nil
	case bytes.Equal(ce, strGzip):
		zr, err := acquireGzipReader(resp.body)
		if err != nil {
			return nil, err
		}
		return &decodedBody{r: zr, body: resp.body, release: func() { releaseGzipReader(zr) }}, nil
	case bytes.Equal(ce, strDeflate):
		fr, err := acquireFlateReader(resp.body)
		if err != nil {
			return nil, err
		}
		return &decodedBody{r: fr, body: resp.body, release: func() { releaseFlateReader(fr) }}, nil
	case bytes.Equal(ce, strZstd):
		zr, err := acquireZstdReader(resp.body)
		if err != nil {
			return nil, err
		}
		return &decodedBody{r: zr.IOReadCloser(), body: resp.body, release: func() { releaseZstdReader(zr) }}, nil
	case bytes.Equal(ce, strBrotli):
		br, err := acquireBrotliReader(resp.body)
		if err != nil {
			return nil, err
		}
		return &decodedBody{r: br, body: resp.body, release: func() { releaseBrotliReader(br) }}, nil
	}
	return nil, fmt.Errorf("unsupported Content-Encoding: %q", ce)
}

type decodedBody struct {
	r       io.Reader
	body    io.ReadCloser
	release func()
}

func (d *decodedBody) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *decodedBody) Close() error {
	if d.release != nil {
		d.release()
		d.release = nil
	}
	return d.body.Close()
}
