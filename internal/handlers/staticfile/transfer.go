package staticfile

import (
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/dustin/go-humanize"

	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/metrics"
	"example.com/microhttpd/internal/server"
)

const (
	// lowWaterMark is the queued-output-byte threshold below which the
	// transfer may enqueue more data. Writing stops as soon as the channel
	// holds this much, keeping per-connection memory bounded when the
	// client reads slowly.
	lowWaterMark = 256
	// chunkSize is how much is read from the file per enqueue.
	chunkSize = 4096
)

type transferState int

const (
	stateIdle transferState = iota
	stateStreaming
	stateDone
)

// FileTransfer streams an open file's contents through a ResponseWriter
// across repeated write-readiness notifications. It is used by a single
// connection goroutine; no locking. The file handle is closed exactly once
// on every exit path: normal completion, read failure, or cancellation via
// Close.
type FileTransfer struct {
	file      *os.File
	name      string
	state     transferState
	remaining int64
	closed    bool
	buf       []byte
	log       *logger.Logger
}

// NewFileTransfer creates a transfer for an already-open file whose headers
// (including Content-Length of size) have been sent. The transfer starts in
// the streaming state and owns the file handle from here on.
func NewFileTransfer(f *os.File, name string, size int64, lg *logger.Logger) *FileTransfer {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	metrics.TransfersInFlight.Inc()
	return &FileTransfer{
		file:      f,
		name:      name,
		state:     stateStreaming,
		remaining: size,
		buf:       make([]byte, chunkSize),
		log:       lg,
	}
}

// OnWritable enqueues file data while the output channel is below its
// low-water mark. It returns false once the transfer is finished.
//
// A zero-byte read is end-of-file. A read interrupted by a signal is
// retried immediately. Any other read error is treated as end-of-stream:
// the headers already promised a Content-Length that may now under-deliver,
// which is accepted as unrecoverable once the head is flushed.
func (t *FileTransfer) OnWritable(rw server.ResponseWriter) bool {
	if t.state != stateStreaming {
		return false
	}

	for rw.Buffered() < lowWaterMark {
		n, err := t.file.Read(t.buf)
		if err != nil && errors.Is(err, syscall.EINTR) {
			continue
		}
		if n > 0 {
			t.remaining -= int64(n)
			if _, werr := rw.WriteData(t.buf[:n], false); werr != nil {
				t.abort()
				return false
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.log.Warn("Read failed mid-transfer, terminating response", logger.LogFields{
					"file":        t.name,
					"undelivered": humanize.IBytes(uint64(t.remaining)),
					"error":       err.Error(),
				})
			}
			t.finish(rw)
			return false
		}
		if n == 0 {
			t.finish(rw)
			return false
		}
	}
	return true
}

// finish marks end-of-body, completes the response, and releases the file.
func (t *FileTransfer) finish(rw server.ResponseWriter) {
	if t.state == stateDone {
		return
	}
	t.state = stateDone
	if _, err := rw.WriteData(nil, true); err != nil {
		t.log.Debug("Failed to finalize response body", logger.LogFields{
			"file":  t.name,
			"error": err.Error(),
		})
	}
	t.Close()
}

// abort stops the transfer without finalizing the response, for write-side
// failures where the client is already gone.
func (t *FileTransfer) abort() {
	t.state = stateDone
	t.Close()
}

// Close releases the file handle. Safe to call from any state and multiple
// times; the handle is closed exactly once.
func (t *FileTransfer) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.state = stateDone
	metrics.TransfersInFlight.Dec()
	return t.file.Close()
}
