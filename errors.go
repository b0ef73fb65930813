package http1conn

import (
	"context"
	"errors"
	"fmt"
)

// Protocol error kinds. Protocol failures returned by the connection
// core wrap one of these sentinels (or an io error from the transport),
// so callers can classify failures with errors.Is. A cancelled request
// wraps ErrCancelled together with the error it outranks.
var (
	// ErrPrematureEOF is returned when the transport is closed in the
	// middle of an exchange. Check CanRetry to find out whether the
	// request may be replayed on a fresh connection.
	ErrPrematureEOF = errors.New("premature end of stream")

	ErrInvalidStatusLine   = errors.New("invalid response status line")
	ErrInvalidStatusCode   = errors.New("invalid response status code")
	ErrInvalidStatusReason = errors.New("invalid response reason phrase")

	ErrInvalidHeaderName   = errors.New("invalid header name")
	ErrInvalidHeaderLine   = errors.New("invalid header line")
	ErrInvalidHeaderFolder = errors.New("invalid folded header continuation")

	// ErrHeadersTooLarge is returned when the total status line plus
	// header block size exceeds Settings.MaxResponseHeadersKB.
	ErrHeadersTooLarge = errors.New("response headers too large")

	// ErrChunkTooLarge is returned when a chunk size line exceeds
	// maxChunkLineLen bytes.
	ErrChunkTooLarge = errors.New("chunk size line too large")

	// ErrInvalidRequestChar is returned when a non-ASCII byte is found
	// in a header name or in a header value with no configured encoder.
	ErrInvalidRequestChar = errors.New("invalid non-ascii char in request")

	// ErrMissingHost is returned for CONNECT requests without a Host
	// header and for requests whose target host cannot be derived.
	ErrMissingHost = errors.New("missing required Host header")

	// ErrCancelled is returned when the request context was cancelled.
	// It outranks the io error produced by tearing down the transport.
	ErrCancelled = errors.New("request cancelled")

	// ErrAuthConnFailure is returned by DrainResponse when leftover
	// bytes of an auth-challenge response cannot be drained and the
	// authenticated connection has to be dropped.
	ErrAuthConnFailure = errors.New("cannot drain auth challenge response for connection reuse")

	// ErrBodyLengthMismatch is returned by RequestBodyWriter.Finish
	// when the number of written bytes differs from the declared
	// Content-Length.
	ErrBodyLengthMismatch = errors.New("request body length mismatch")

	// ErrConnBusy is returned when SendRequest is called on a
	// connection that is not acquired or already carries a request.
	ErrConnBusy = errors.New("connection is busy or not acquired")

	// ErrConnUnusable is returned by PrepareForReuse when an idle
	// connection received unexpected data or a server-initiated close.
	ErrConnUnusable = errors.New("connection is no longer usable")
)

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	return &retryableError{err: err}
}

// CanRetry reports whether err happened before any request body byte
// was offered to the transport, i.e. whether the request may be safely
// replayed on another connection.
func CanRetry(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// remapCancellation gives cancellation priority over the io error that
// closing the transport provoked.
func remapCancellation(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return err
}
