package http1conn

import (
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// emptyBody never touches the wire; its completion is immediate.
type emptyBody struct{}

func (emptyBody) Read(p []byte) (int, error) { return 0, io.EOF }
func (emptyBody) Close() error               { return nil }

func (c *Conn) newEmptyBody() io.ReadCloser {
	c.completeResponse()
	return emptyBody{}
}

// fixedBody reads exactly n bytes; a short read is a protocol failure.
type fixedBody struct {
	c         *Conn
	remaining int
	done      bool
}

func (c *Conn) newFixedBody(n int) io.ReadCloser {
	if n == 0 {
		return c.newEmptyBody()
	}
	return &fixedBody{c: c, remaining: n}
}

func (b *fixedBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.c.br.readInto(b.c.t, p)
	b.remaining -= n
	if b.remaining == 0 {
		b.done = true
		b.c.completeResponse()
		return n, io.EOF
	}
	if err != nil || n == 0 {
		if err == nil || err == io.EOF {
			err = ErrPrematureEOF
		}
		b.c.dispose()
		return n, err
	}
	return n, nil
}

// WriteTo copies the remaining body. For payloads larger than the read
// buffer it temporarily swaps the buffer for one rented from
// bytebufferpool, so every fill lands in the larger buffer; the
// original buffer is re-installed on an unconditional cleanup path
// before the connection can complete or be disposed.
func (b *fixedBody) WriteTo(w io.Writer) (int64, error) {
	if b.done {
		return 0, nil
	}
	var total int64

	// Flush whatever is already buffered first.
	for b.c.br.pending() > 0 && b.remaining > 0 {
		chunk := b.c.br.unread()
		if len(chunk) > b.remaining {
			chunk = chunk[:b.remaining]
		}
		n, err := w.Write(chunk)
		b.c.br.off += n
		b.remaining -= n
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	var bb *bytebufferpool.ByteBuffer
	orig := b.c.br.buf
	swapped := false
	if b.remaining > len(orig) {
		bb = bytebufferpool.Get()
		if cap(bb.B) < largeCopyBufferSize {
			bb.B = make([]byte, largeCopyBufferSize)
		}
		b.c.br.buf = bb.B[:cap(bb.B)]
		b.c.br.reset()
		swapped = true
	}
	restore := func() {
		if !swapped {
			return
		}
		// Carry unread overrun bytes back into the original buffer so
		// post-response data is still detected. Anything beyond its
		// capacity already condemns the connection.
		leftover := b.c.br.unread()
		if len(leftover) > len(orig) {
			leftover = leftover[:len(orig)]
		}
		n := copy(orig, leftover)
		b.c.br.buf = orig
		b.c.br.off = 0
		b.c.br.end = n
		bytebufferpool.Put(bb)
		swapped = false
	}
	defer restore()

	var copyErr error
	for b.remaining > 0 {
		if b.c.br.empty() {
			if err := b.c.br.fill(b.c.t); err != nil {
				copyErr = err
				break
			}
		}
		chunk := b.c.br.unread()
		if len(chunk) > b.remaining {
			chunk = chunk[:b.remaining]
		}
		n, err := w.Write(chunk)
		b.c.br.off += n
		b.remaining -= n
		total += int64(n)
		if err != nil {
			copyErr = err
			break
		}
	}

	restore()
	if copyErr != nil {
		b.done = true
		b.c.dispose()
		return total, copyErr
	}
	b.done = true
	b.c.completeResponse()
	return total, nil
}

func (b *fixedBody) Close() error {
	if b.done {
		return nil
	}
	b.done = true
	// The caller abandoned the body before its end; the connection
	// cannot be reused with unread payload on the wire.
	b.c.dispose()
	return nil
}

// chunkedBody decodes "hex-len [;ext] CRLF data CRLF" framing. A zero
// chunk switches to trailer parsing and completes the response.
type chunkedBody struct {
	c         *Conn
	resp      *Response
	remaining int
	started   bool
	done      bool
}

func (c *Conn) newChunkedBody(resp *Response) io.ReadCloser {
	return &chunkedBody{c: c, resp: resp}
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	for b.remaining == 0 {
		if b.started {
			if err := b.readChunkTerminator(); err != nil {
				b.c.dispose()
				return 0, err
			}
		}
		n, err := b.readChunkHeader()
		if err != nil {
			b.c.dispose()
			return 0, err
		}
		b.started = true
		if n == 0 {
			if err := b.readTrailers(); err != nil {
				b.c.dispose()
				return 0, err
			}
			b.done = true
			b.c.completeResponse()
			return 0, io.EOF
		}
		b.remaining = n
	}

	if len(p) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.c.br.readInto(b.c.t, p)
	b.remaining -= n
	if n == 0 || (err != nil && err != io.EOF) {
		if err == nil || err == io.EOF {
			err = ErrPrematureEOF
		}
		b.c.dispose()
		return n, err
	}
	return n, nil
}

// readChunkHeader parses the chunk size line, discarding extensions.
func (b *chunkedBody) readChunkHeader() (int, error) {
	line, _, err := b.c.br.readLine(b.c.t, maxChunkLineLen, false, ErrChunkTooLarge)
	if err != nil {
		return 0, err
	}
	n, consumed, err := parseHexUintBuf(line)
	if err != nil {
		return 0, fmt.Errorf("%w: bad chunk size %q", ErrInvalidHeaderLine, line)
	}
	rest := line[consumed:]
	if len(rest) > 0 && rest[0] != ';' {
		return 0, fmt.Errorf("%w: unexpected char after chunk size in %q", ErrInvalidHeaderLine, line)
	}
	return n, nil
}

// readChunkTerminator consumes the CRLF that follows chunk data.
func (b *chunkedBody) readChunkTerminator() error {
	line, _, err := b.c.br.readLine(b.c.t, maxChunkLineLen, false, ErrChunkTooLarge)
	if err != nil {
		return err
	}
	if len(line) != 0 {
		return fmt.Errorf("%w: missing CRLF after chunk data, got %q", ErrInvalidHeaderLine, line)
	}
	return nil
}

func (b *chunkedBody) readTrailers() error {
	budget := b.c.settings().maxResponseHeadersLen()
	return b.c.readHeaderBlock(b.resp, &budget, true)
}

func (b *chunkedBody) Close() error {
	if b.done {
		return nil
	}
	b.done = true
	b.c.dispose()
	return nil
}

// untilCloseBody reads until the transport reports EOF; EOF is the
// successful terminal state. Connections carrying such bodies are
// never reusable, which the state machine records up front.
type untilCloseBody struct {
	c    *Conn
	done bool
}

func (c *Conn) newUntilCloseBody() io.ReadCloser {
	c.mu.Lock()
	c.connClose = true
	c.mu.Unlock()
	return &untilCloseBody{c: c}
}

func (b *untilCloseBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	n, err := b.c.br.readInto(b.c.t, p)
	if err == io.EOF {
		b.done = true
		b.c.completeResponse()
		return n, io.EOF
	}
	if err != nil {
		b.c.dispose()
		return n, fmt.Errorf("transport read failed: %w", err)
	}
	return n, nil
}

func (b *untilCloseBody) Close() error {
	if b.done {
		return nil
	}
	b.done = true
	b.c.dispose()
	return nil
}

// rawTunnelBody is the opaque bidirectional stream behind CONNECT and
// 101 responses. It terminates only when either side closes.
type rawTunnelBody struct {
	c      *Conn
	closed bool
}

func (c *Conn) newRawTunnelBody() io.ReadCloser {
	// Detach also marks the connection non-reusable.
	c.Detach()
	return &rawTunnelBody{c: c}
}

func (b *rawTunnelBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, io.EOF
	}
	return b.c.br.readInto(b.c.t, p)
}

func (b *rawTunnelBody) Write(p []byte) (int, error) {
	if b.closed {
		return 0, fmt.Errorf("tunnel is closed")
	}
	return b.c.t.Write(p)
}

func (b *rawTunnelBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.c.dispose()
	return nil
}

// RequestBodyWriter is handed to callers that stream request bodies
// manually. Finish must be called once after the last Write.
type RequestBodyWriter interface {
	io.Writer
	Finish() error
}

// fixedBodyWriter counts written bytes against the declared
// Content-Length; Write rejects an overrun and Finish an underrun.
type fixedBodyWriter struct {
	c       *Conn
	n       int
	written int
}

func (w *fixedBodyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.c.markBodyByteOffered()
	if w.written+len(p) > w.n {
		return 0, fmt.Errorf("%w: writing %d bytes over the declared %d", ErrBodyLengthMismatch, w.written+len(p)-w.n, w.n)
	}
	if err := w.c.bw.writeBytes(w.c.t, p); err != nil {
		return 0, err
	}
	w.written += len(p)
	return len(p), nil
}

func (w *fixedBodyWriter) Finish() error {
	if w.written != w.n {
		return fmt.Errorf("%w: wrote %d of %d declared bytes", ErrBodyLengthMismatch, w.written, w.n)
	}
	return nil
}

// chunkedBodyWriter frames every Write as one chunk; Finish emits the
// terminal zero chunk.
type chunkedBodyWriter struct {
	c *Conn
}

func (w *chunkedBodyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.c.markBodyByteOffered()
	bw := &w.c.bw
	if err := bw.writeHexInt(w.c.t, len(p)); err != nil {
		return 0, err
	}
	if err := bw.writeCRLF(w.c.t); err != nil {
		return 0, err
	}
	if err := bw.writeBytes(w.c.t, p); err != nil {
		return 0, err
	}
	if err := bw.writeCRLF(w.c.t); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *chunkedBodyWriter) Finish() error {
	w.c.markBodyByteOffered()
	bw := &w.c.bw
	if err := bw.writeByte(w.c.t, '0'); err != nil {
		return err
	}
	if err := bw.writeCRLF(w.c.t); err != nil {
		return err
	}
	return bw.writeCRLF(w.c.t)
}

// sendBodyStream pumps req.bodyStream through the right write variant.
func (c *Conn) sendBodyStream(req *Request) error {
	var w RequestBodyWriter
	if req.bodySize >= 0 {
		w = &fixedBodyWriter{c: c, n: req.bodySize}
	} else {
		w = &chunkedBodyWriter{c: c}
	}

	buf := bytebufferpool.Get()
	if cap(buf.B) < defaultBufferSize {
		buf.B = make([]byte, defaultBufferSize)
	}
	p := buf.B[:cap(buf.B)]
	var copyErr error
	for {
		n, err := req.bodyStream.Read(p)
		if n > 0 {
			if _, werr := w.Write(p[:n]); werr != nil {
				copyErr = werr
				break
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			copyErr = fmt.Errorf("request body read failed: %w", err)
			break
		}
	}
	bytebufferpool.Put(buf)
	if copyErr != nil {
		return copyErr
	}
	return w.Finish()
}

// drainBody consumes up to maxDrain leftover bytes of body so the
// connection can be reused. It reports whether the body reached its
// terminal state within the cap.
func drainBody(body io.Reader, maxDrain int) (bool, error) {
	bb := bytebufferpool.Get()
	if cap(bb.B) < defaultBufferSize {
		bb.B = make([]byte, defaultBufferSize)
	}
	p := bb.B[:cap(bb.B)]
	defer bytebufferpool.Put(bb)

	total := 0
	for total <= maxDrain {
		room := maxDrain - total + 1
		if room > len(p) {
			room = len(p)
		}
		n, err := body.Read(p[:room])
		total += n
		if err == io.EOF {
			return total <= maxDrain, nil
		}
		if err != nil {
			return false, err
		}
	}
	return false, nil
}
