package progress

import (
	"io"
	"net/http"
	"sync"

	"github.com/gin-contrib/sse"
	"github.com/pkg/errors"
)

// Sentinel is the payload of the last event of every stream.
const Sentinel = "[DONE]"

// SetHeaders prepares a response for streaming frames.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Writer encodes frames onto w, flushing after each one when w supports it.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func NewWriter(w io.Writer) *Writer {
	fw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

func (w *Writer) Emit(f Frame) error {
	return w.write(f)
}

// Close writes the sentinel. Further Emit calls fail.
func (w *Writer) Close() error {
	if err := w.write(Sentinel); err != nil {
		return err
	}
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *Writer) write(data any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("progress stream already closed")
	}
	if err := sse.Encode(w.w, sse.Event{Data: data}); err != nil {
		return errors.Wrap(err, "encode frame")
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
