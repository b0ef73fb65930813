// Package http1connutil provides transport utilities for testing and
// embedding http1conn: an in-process bidirectional pipe with buffered
// writes and half-close support.
package http1connutil

import (
	"errors"
	"io"
	"sync"
)

// ErrPipeClosed is returned from writes on a closed pipe end.
var ErrPipeClosed = errors.New("pipe connection closed")

// NewPipeConns returns a new bidirectional in-memory connection pipe.
//
// Unlike net.Pipe, writes are buffered, so a writer never blocks
// waiting for a concurrent reader, and each end supports CloseWrite
// for half-close (needed to exercise read-until-close framing).
func NewPipeConns() *PipeConns {
	pc := &PipeConns{}
	d1 := newPipeDir()
	d2 := newPipeDir()
	pc.c1 = PipeConn{r: d1, w: d2}
	pc.c2 = PipeConn{r: d2, w: d1}
	return pc
}

// PipeConns is a pair of connected in-memory transports. Data written
// to Conn1 is readable from Conn2 and vice versa.
type PipeConns struct {
	c1 PipeConn
	c2 PipeConn
}

// Conn1 returns the first end of the pipe.
func (pc *PipeConns) Conn1() *PipeConn { return &pc.c1 }

// Conn2 returns the second end of the pipe.
func (pc *PipeConns) Conn2() *PipeConn { return &pc.c2 }

// Close closes both ends.
func (pc *PipeConns) Close() error {
	pc.c1.Close()
	pc.c2.Close()
	return nil
}

// PipeConn is one end of an in-memory duplex byte stream.
type PipeConn struct {
	r *pipeDir
	w *pipeDir
}

// Read reads whatever the peer has written so far, blocking while the
// stream is empty and still open. A closed empty stream returns io.EOF.
func (c *PipeConn) Read(p []byte) (int, error) {
	return c.r.read(p)
}

// Write buffers p for the peer to read.
func (c *PipeConn) Write(p []byte) (int, error) {
	return c.w.write(p)
}

// CloseWrite half-closes the connection: the peer drains the buffered
// bytes and then observes io.EOF, while reads on this end keep working.
func (c *PipeConn) CloseWrite() error {
	c.w.close()
	return nil
}

// Close closes both directions.
func (c *PipeConn) Close() error {
	c.w.close()
	c.r.close()
	return nil
}

type pipeDir struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newPipeDir() *pipeDir {
	d := &pipeDir{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *pipeDir) write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrPipeClosed
	}
	d.buf = append(d.buf, p...)
	d.cond.Broadcast()
	return len(p), nil
}

func (d *pipeDir) read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.buf) == 0 && !d.closed {
		d.cond.Wait()
	}
	if len(d.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return n, nil
}

func (d *pipeDir) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
}
