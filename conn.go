package http1conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Transport is the opaque byte stream a connection runs over. Partial
// reads and writes are permitted; closure is observable as a zero-byte
// read. Transports that additionally implement syscall.Conn get the
// fast-path readability probe during liveness checks.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// PoolKind tells the serializer which request-target form to use.
type PoolKind int

const (
	// PoolKindHost connects directly to the origin; origin-form
	// targets are used.
	PoolKindHost PoolKind = iota

	// PoolKindProxy connects through an HTTP proxy; absolute-form
	// targets are used.
	PoolKindProxy
)

// Pool is the connection pool collaborator. It creates connections,
// hands them out and takes them back; the core only calls these five
// methods.
type Pool interface {
	// Invalidate removes the connection from the pool's bookkeeping;
	// the connection will never be handed out again.
	Invalidate(c *Conn)

	// ReturnConn accepts a reusable idle connection back.
	ReturnConn(c *Conn)

	// Settings returns the pool configuration; nil means defaults.
	Settings() *Settings

	// HostHeaderBytes returns the pre-rendered Host header value for
	// this pool's origin, or nil.
	HostHeaderBytes() []byte

	// Kind reports whether connections go to an origin or a proxy.
	Kind() PoolKind
}

// Conn is a single HTTP/1.x client connection: one transport, two byte
// buffers and a small product of state flags. At most one request may
// be in flight at any instant.
type Conn struct {
	pool Pool
	t    Transport

	br readBuffer
	bw writeBuffer

	mu         sync.Mutex
	inUse      bool
	disposed   bool
	detached   bool
	currentReq *Request

	// connClose is sticky: once set the connection can never return
	// to the pool.
	connClose bool

	// startedSendingBody is set when the first request body byte is
	// offered to the transport; canRetry is its complement reported
	// to callers on failure.
	startedSendingBody bool

	idleSince time.Time

	// Read-ahead slot, see readahead.go.
	readAheadLock int32
	readAhead     *pendingRead

	// Expect: 100-continue state for the in-flight request.
	gate         *expectGate
	bodySendDone chan error
}

// NewConn binds a transport to a pool. The connection starts idle and
// must be acquired before use.
func NewConn(pool Pool, t Transport) *Conn {
	return newConnSize(pool, t, defaultBufferSize)
}

// newConnSize exists so tests can force tiny buffers (e.g. 10 bytes)
// and exercise every buffer-split path.
func newConnSize(pool Pool, t Transport, bufSize int) *Conn {
	return &Conn{
		pool:      pool,
		t:         t,
		br:        newReadBuffer(bufSize),
		bw:        newWriteBuffer(bufSize),
		idleSince: time.Now(),
	}
}

func (c *Conn) settings() *Settings {
	if c.pool == nil {
		return &zeroSettings
	}
	if s := c.pool.Settings(); s != nil {
		return s
	}
	return &zeroSettings
}

func (c *Conn) requestHost() []byte {
	if c.currentReq != nil {
		return c.currentReq.host
	}
	return nil
}

// Acquire claims exclusive ownership of an idle connection. It returns
// false when the connection is disposed or already owned.
func (c *Conn) Acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.inUse || c.connClose {
		return false
	}
	if c.currentReq != nil {
		panic("BUG: idle connection carries a request")
	}
	c.inUse = true
	return true
}

// Release gives up ownership. If the response already completed the
// connection goes back to the pool (or is disposed when marked
// non-reusable).
func (c *Conn) Release() {
	c.mu.Lock()
	c.inUse = false
	done := c.currentReq == nil
	c.mu.Unlock()
	if done {
		c.finishLifecycle()
	}
}

// Detach removes the connection from pool control without closing the
// transport; used for raw tunnels whose lifetime the caller owns.
func (c *Conn) Detach() {
	c.mu.Lock()
	already := c.detached
	c.detached = true
	c.connClose = true
	c.mu.Unlock()
	if !already && c.pool != nil {
		c.pool.Invalidate(c)
	}
}

// dispose tears the connection down: the transport is closed first so
// pending reads and writes fail, then any read-ahead result is
// consumed and ignored.
func (c *Conn) dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.connClose = true
	c.currentReq = nil
	detached := c.detached
	c.mu.Unlock()

	c.t.Close()
	if p := c.consumeReadAhead(); p != nil {
		<-p.done
		if p.err != nil {
			c.settings().logf("http1conn: read-ahead failed during dispose: %v", p.err)
		}
	}
	if !detached && c.pool != nil {
		c.pool.Invalidate(c)
	}
}

// Close disposes the connection. It implements io.Closer for callers
// that own detached connections.
func (c *Conn) Close() error {
	c.dispose()
	return nil
}

// completeResponse is invoked by a body stream when it reaches its
// terminal state.
func (c *Conn) completeResponse() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	if !c.br.empty() {
		// The server sent bytes past the response end; do not trust
		// the framing of anything that follows.
		c.connClose = true
	}
	c.currentReq = nil
	release := !c.inUse
	c.mu.Unlock()
	if release {
		c.finishLifecycle()
	}
}

// finishLifecycle returns the connection to the pool, or disposes it
// when reuse is forbidden.
func (c *Conn) finishLifecycle() {
	c.mu.Lock()
	if c.disposed || c.detached {
		c.mu.Unlock()
		return
	}
	if c.connClose {
		c.mu.Unlock()
		c.dispose()
		return
	}
	if c.currentReq != nil {
		panic("BUG: returning connection with a request in flight")
	}
	if !c.br.empty() {
		panic("BUG: returning connection with unread response bytes")
	}
	if c.bw.off != 0 {
		panic("BUG: returning connection with unflushed request bytes")
	}
	c.idleSince = time.Now()
	c.mu.Unlock()
	if c.pool != nil {
		c.pool.ReturnConn(c)
	}
}

// IdleDuration reports how long the connection has been idle at now.
func (c *Conn) IdleDuration(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.idleSince)
}

func (c *Conn) markBodyByteOffered() {
	if !c.startedSendingBody {
		c.mu.Lock()
		c.startedSendingBody = true
		c.mu.Unlock()
	}
}

// expectGate is the one-shot signal that authorizes the request body
// sender: the receiver resolves it after the final status (or on
// 100 Continue), the timer resolves it to "send" on expiry. All
// resolvers route through the same idempotent set-once primitive.
type expectGate struct {
	ch   chan struct{}
	once sync.Once
	send bool
}

func newExpectGate() *expectGate {
	return &expectGate{ch: make(chan struct{})}
}

func (g *expectGate) resolve(send bool) {
	g.once.Do(func() {
		g.send = send
		close(g.ch)
	})
}

// wait blocks until the gate resolves and reports whether to send.
func (g *expectGate) wait() bool {
	<-g.ch
	return g.send
}

func (g *expectGate) resolved() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// SendRequest performs one request-response exchange. The connection
// must be acquired first. On success the returned response carries a
// body stream whose completion hands the connection back to the pool;
// on failure the connection is disposed and CanRetry reports whether
// the request may be replayed elsewhere.
func (c *Conn) SendRequest(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	if !c.inUse || c.disposed || c.currentReq != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w", ErrConnBusy)
	}
	if !c.br.empty() {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: unread bytes before request", ErrConnBusy)
	}
	c.currentReq = req
	c.startedSendingBody = false
	c.gate = nil
	c.bodySendDone = nil
	c.mu.Unlock()

	// The cancellation registration spans header send to final status
	// receipt; it is stopped once the body stream takes over.
	stop := context.AfterFunc(ctx, func() {
		c.dispose()
	})

	resp, err := c.exchange(req)
	if err != nil {
		stop()
		c.dispose()
		err = remapCancellation(ctx, err)
		if !c.startedSendingBody {
			err = retryable(err)
		}
		return nil, err
	}
	stop()
	return resp, nil
}

func (c *Conn) exchange(req *Request) (*Response, error) {
	s := c.settings()

	if err := c.writeRequestHead(req); err != nil {
		return nil, err
	}

	var timer *time.Timer
	switch {
	case !req.hasBody():
		if err := c.bw.flush(c.t); err != nil {
			return nil, err
		}
	case !req.expectContinue:
		if err := c.sendBodyStream(req); err != nil {
			return nil, err
		}
		if err := c.bw.flush(c.t); err != nil {
			return nil, err
		}
	default:
		// Flush the head, then launch the body sender gated on the
		// one-shot. The timer's only role is flipping the gate to
		// "send".
		if err := c.bw.flush(c.t); err != nil {
			return nil, err
		}
		c.gate = newExpectGate()
		c.bodySendDone = make(chan error, 1)
		timer = time.AfterFunc(s.expect100Timeout(), func() {
			c.gate.resolve(true)
		})
		go func(gate *expectGate, done chan error) {
			if !gate.wait() {
				done <- nil
				return
			}
			if err := c.sendBodyStream(req); err != nil {
				done <- err
				return
			}
			done <- c.bw.flush(c.t)
		}(c.gate, c.bodySendDone)
	}
	if timer != nil {
		defer timer.Stop()
	}

	resp, err := c.receiveResponse(req)
	if err != nil {
		if c.gate != nil {
			// Unblock the sender and tear the transport down so an
			// in-flight body send cannot stall; its failure is
			// observed and swallowed, the receive error wins.
			c.gate.resolve(false)
			c.dispose()
			if serr := <-c.bodySendDone; serr != nil {
				s.logf("http1conn: request body send failed after receive error: %v", serr)
			}
		}
		return nil, err
	}
	return resp, nil
}

// receiveResponse runs AwaitingResponse and Receiving: status line,
// informational loop, Expect gate finalization, header block and body
// stream selection.
func (c *Conn) receiveResponse(req *Request) (*Response, error) {
	s := c.settings()
	budget := s.maxResponseHeadersLen()

	// Consume a pending read-ahead; its bytes already sit at offset 0
	// of the read buffer.
	if p := c.consumeReadAhead(); p != nil {
		<-p.done
		if p.err != nil && p.n == 0 {
			return nil, c.prematureResponseEOF(p.err)
		}
	}
	if c.br.empty() {
		n, err := c.br.initialFill(c.t)
		if n == 0 {
			return nil, c.prematureResponseEOF(err)
		}
	}

	resp := newResponse()

	statusCode, minor, reason, err := c.readStatusLine(&budget)
	if err != nil {
		return nil, err
	}

	// Informational loop: 100 releases the Expect gate, 101 is a
	// terminal response with a raw body, everything else is consumed
	// together with its header block.
	for isInformational(statusCode) {
		if statusCode == StatusSwitchingProtocols {
			break
		}
		if statusCode == StatusContinue && c.gate != nil {
			c.gate.resolve(true)
		}
		// Interim header blocks are consumed but never merged into the
		// final response.
		if err := c.readHeaderBlock(newResponse(), &budget, false); err != nil {
			return nil, err
		}
		statusCode, minor, reason, err = c.readStatusLine(&budget)
		if err != nil {
			return nil, err
		}
	}

	resp.statusCode = statusCode
	resp.minorVersion = minor
	resp.reason = reason

	// Finalize the Expect gate after the final status: error statuses
	// suppress large or unknown bodies unless the server is running a
	// session-auth challenge (which needs the body to proceed).
	if c.gate != nil {
		bodyLargeOrUnknown := req.bodySize < 0 || req.bodySize > expect100ErrorSendThreshold
		if statusCode >= 300 && bodyLargeOrUnknown && !isSessionAuthChallenge(statusCode) {
			c.gate.resolve(false)
			if !c.gate.send {
				// The body was withheld for good; the server still
				// expects one, so the connection cannot be reused.
				c.mu.Lock()
				c.connClose = true
				c.mu.Unlock()
			}
		} else {
			c.gate.resolve(true)
		}
	}

	// The final response (101 included) carries a header block before
	// its body.
	if err := c.readHeaderBlock(resp, &budget, false); err != nil {
		return nil, err
	}

	// The send-completion await that follows final-status processing.
	if c.bodySendDone != nil {
		if serr := <-c.bodySendDone; serr != nil {
			// The server produced a final response regardless; keep it,
			// observe the failure and forbid reuse.
			s.logf("http1conn: request body send failed after final response: %v", serr)
			c.mu.Lock()
			c.connClose = true
			c.mu.Unlock()
		}
	}

	c.applyResponseFraming(req, resp)
	resp.body = c.selectBodyReader(req, resp)
	return resp, nil
}

func (c *Conn) prematureResponseEOF(cause error) error {
	if cause == nil || cause == io.EOF {
		return ErrPrematureEOF
	}
	if errors.Is(cause, ErrPrematureEOF) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrPrematureEOF, cause)
}

// applyResponseFraming folds protocol-version and header knowledge
// into the connection-close flag before the body framing is selected.
func (c *Conn) applyResponseFraming(req *Request, resp *Response) {
	if resp.minorVersion == 0 && !resp.connectionClose {
		// HTTP/1.0 keeps the connection only on explicit keep-alive.
		v := peekArg(resp.headers, strConnection)
		resp.connectionClose = !caseInsensitiveCompare(trimOWS(v), strKeepAlive)
	}
	if resp.connectionClose {
		c.mu.Lock()
		c.connClose = true
		c.mu.Unlock()
	}
}

// selectBodyReader picks the body framing for the response.
func (c *Conn) selectBodyReader(req *Request, resp *Response) io.ReadCloser {
	switch {
	case req.isHead(),
		resp.statusCode == StatusNoContent,
		resp.statusCode == StatusNotModified:
		return c.newEmptyBody()
	case req.isConnect() && resp.statusCode >= 200 && resp.statusCode <= 299:
		return c.newRawTunnelBody()
	case resp.statusCode == StatusSwitchingProtocols:
		return c.newRawTunnelBody()
	case resp.contentLength == -1:
		return c.newChunkedBody(resp)
	case resp.contentLength >= 0:
		return c.newFixedBody(resp.contentLength)
	default:
		return c.newUntilCloseBody()
	}
}

// DrainResponse consumes the rest of resp's body, up to the configured
// drain cap, to salvage the connection for reuse. Exceeding the cap or
// failing marks the connection non-reusable; for session-auth
// challenge responses that failure is reported as ErrAuthConnFailure.
func (c *Conn) DrainResponse(resp *Response) error {
	s := c.settings()
	ok, err := drainBody(resp.body, s.maxResponseDrainSize())
	if ok && err == nil {
		return nil
	}
	c.mu.Lock()
	c.connClose = true
	c.mu.Unlock()
	// The body never reached its terminal state within the cap; close
	// it so the connection is torn down instead of lingering.
	resp.body.Close()
	if isSessionAuthChallenge(resp.statusCode) {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAuthConnFailure, err)
		}
		return ErrAuthConnFailure
	}
	if err != nil {
		return err
	}
	return nil
}

// PrepareForReuse verifies an idle connection immediately before it is
// handed to a new request. Pollable transports are probed with a zero
// timeout; others get a read-ahead whose immediate completion (data or
// EOF while idle) condemns the connection.
func (c *Conn) PrepareForReuse(syncMode bool) error {
	c.mu.Lock()
	if c.disposed || c.connClose {
		c.mu.Unlock()
		return ErrConnUnusable
	}
	c.mu.Unlock()

	if readableOrClosed, ok := pollReadable(c.t); ok {
		if readableOrClosed {
			return ErrConnUnusable
		}
		return nil
	}
	if syncMode {
		// A blocking transport without poll support cannot be probed
		// without consuming from it; accept it as-is.
		return nil
	}
	c.startReadAhead()
	if p := c.peekReadAhead(); p != nil && p.completed() {
		return ErrConnUnusable
	}
	return nil
}

// CheckUsabilityOnScavenge is the pool's periodic liveness check for
// idle connections: a zero-timeout readability probe where supported,
// a one-byte read-ahead otherwise. An immediate zero-byte result or
// error means the peer went away.
func (c *Conn) CheckUsabilityOnScavenge() bool {
	c.mu.Lock()
	if c.disposed || c.connClose || c.inUse {
		usable := !c.disposed && !c.connClose
		c.mu.Unlock()
		return usable
	}
	c.mu.Unlock()

	if readableOrClosed, ok := pollReadable(c.t); ok {
		return !readableOrClosed
	}
	c.startReadAhead()
	if p := c.peekReadAhead(); p != nil && p.completed() {
		return false
	}
	return true
}
