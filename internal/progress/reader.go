package progress

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxFrameBytes = 1 << 20

// Reader decodes frames from a stream produced by Writer.
type Reader struct {
	sc   *bufio.Scanner
	log  logrus.FieldLogger
	done bool
}

func NewReader(r io.Reader, log logrus.FieldLogger) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reader{sc: sc, log: log}
}

// Next returns the next decodable frame. It returns io.EOF after the sentinel and
// io.ErrUnexpectedEOF if the stream ends without one. Undecodable lines are
// logged and skipped.
func (r *Reader) Next() (Frame, error) {
	if r.done {
		return Frame{}, io.EOF
	}
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			r.log.WithField("line", truncate(line)).Warn("skipping non-data line in progress stream")
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == Sentinel {
			r.done = true
			return Frame{}, io.EOF
		}

		var f Frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			r.log.WithError(err).WithField("payload", truncate(payload)).Warn("skipping malformed progress frame")
			continue
		}
		return f, nil
	}
	if err := r.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.ErrUnexpectedEOF
}

// Frames iterates until the sentinel. A stream error is yielded once, last.
func (r *Reader) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for {
			f, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
