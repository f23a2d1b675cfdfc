package server

import (
	"net/http"
)

// Request is the parsed request record the connection layer hands to the
// serving core: a method, the raw request URL (path plus optional query
// string, still percent-encoded), and a case-insensitive header map. Header
// values are opaque strings; no folding or repetition handling happens here.
type Request struct {
	Method     string
	URL        string
	Header     http.Header
	RemoteAddr string
}

// HeaderField represents a single HTTP header field (name-value pair).
type HeaderField struct {
	Name  string
	Value string
}

// ResponseWriter is the abstract writable channel a handler produces its
// response into. Writes are enqueued, not transmitted synchronously;
// Buffered reports the queued-but-unflushed byte count so that body
// producers can respect backpressure.
type ResponseWriter interface {
	// SendHeaders writes the status line and header block. If endStream is
	// true the response has no body.
	SendHeaders(status int, headers []HeaderField, endStream bool) error

	// WriteData enqueues a chunk of the response body. If endStream is true
	// this is the final chunk.
	WriteData(p []byte, endStream bool) (n int, err error)

	// Buffered returns the number of enqueued bytes not yet flushed to the
	// client.
	Buffered() int

	// StartTransfer attaches a Transfer that will produce the remainder of
	// the response body across write-readiness notifications.
	StartTransfer(t Transfer)
}

// Transfer drives an in-flight response body incrementally. The connection
// layer invokes OnWritable every time the output channel drains; the
// transfer enqueues more data while the channel's queued byte count is below
// its low-water mark.
type Transfer interface {
	// OnWritable pumps more body data into rw. It returns false once the
	// transfer has completed (or failed) and no further notifications are
	// wanted.
	OnWritable(rw ResponseWriter) bool

	// Close releases the transfer's resources. It must be safe to call on
	// every exit path; the underlying file handle is closed exactly once.
	Close() error
}

// RouterInterface dispatches one parsed request to a handler. Implemented by
// the dispatch registry; injected into the Server so the connection layer
// does not depend on routing internals.
type RouterInterface interface {
	HandleRequest(rw ResponseWriter, req *Request)
}
