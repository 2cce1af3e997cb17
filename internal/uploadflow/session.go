package uploadflow

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"company-directory-backend/internal/progress"
	"company-directory-backend/internal/services/companyimport"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Session holds the workflow state of one operator and performs the requests
// behind each step. A completed upload returns to Idle after the reset delay.
type Session struct {
	mu         sync.Mutex
	state      State
	gen        uint64
	timer      *time.Timer
	idle       chan struct{} // closed on the next return to Idle
	onChange   func(State)
	client     *Client
	resetDelay time.Duration
	log        logrus.FieldLogger
}

func NewSession(client *Client, resetDelay time.Duration, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{state: Idle{}, client: client, resetDelay: resetDelay, log: log}
}

// OnChange registers fn to be called after every accepted transition.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies e to the current state.
func (s *Session) Dispatch(e Event) (State, error) {
	return s.dispatch(e, 0)
}

// dispatch applies e if the state generation is still gen; 0 matches any.
func (s *Session) dispatch(e Event, gen uint64) (State, error) {
	s.mu.Lock()
	if gen != 0 && s.gen != gen {
		cur := s.state
		s.mu.Unlock()
		return cur, errors.Wrap(ErrInvalidTransition, "state changed before auto reset")
	}
	next, err := Reduce(s.state, e)
	if err != nil {
		cur := s.state
		s.mu.Unlock()
		return cur, err
	}
	s.transition(next)
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(next)
	}
	return next, nil
}

// transition must be called with mu held.
func (s *Session) transition(next State) {
	s.state = next
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if _, idle := next.(Idle); idle && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
	if _, done := next.(Completed); done && s.resetDelay > 0 {
		gen := s.gen
		s.timer = time.AfterFunc(s.resetDelay, func() { s.autoReset(gen) })
	}
}

func (s *Session) autoReset(gen uint64) {
	if _, err := s.dispatch(Reset{}, gen); err != nil {
		s.log.WithError(err).Debug("auto reset skipped")
	}
}

// WaitIdle blocks until the session is back in Idle, normally through the auto
// reset of a completed upload, or until ctx is done.
func (s *Session) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	if _, idle := s.state.(Idle); idle {
		s.mu.Unlock()
		return nil
	}
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	ch := s.idle
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectFile sniffs the file at path and selects it if its type is accepted.
func (s *Session) SelectFile(path string) (State, error) {
	info, err := os.Stat(path)
	if err != nil {
		return s.State(), errors.Wrap(err, "stat upload file")
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return s.State(), errors.Wrap(err, "detect upload file type")
	}
	return s.Dispatch(SelectFile{File: File{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
		MIME: mt.String(),
	}})
}

// Validate asks the server for a validation report of the selected file.
func (s *Session) Validate(ctx context.Context) (State, error) {
	st, err := s.Dispatch(StartValidation{})
	if err != nil {
		return st, err
	}
	file := st.(Validating).File

	report, err := withFile(file, func(f *os.File) (*companyimport.ValidationReport, error) {
		return s.client.Validate(ctx, file.Name, f)
	})
	if err != nil {
		s.log.WithError(err).WithField("filename", file.Name).Warn("validation request failed")
		return s.Dispatch(ValidationFailed{Err: err})
	}
	return s.Dispatch(ValidationReported{Report: *report})
}

// Upload sends the validated file and follows its progress to the end.
func (s *Session) Upload(ctx context.Context) (State, error) {
	st, err := s.Dispatch(StartUpload{})
	if err != nil {
		return st, err
	}
	file := st.(Uploading).File

	last := st
	_, err = withFile(file, func(f *os.File) (progress.Frame, error) {
		return s.client.Upload(ctx, file.Name, f, func(frame progress.Frame) {
			next, err := s.Dispatch(FrameReceived{Frame: frame})
			if err != nil {
				s.log.WithError(err).Debug("progress frame ignored")
				return
			}
			last = next
		})
	})
	if _, uploading := last.(Uploading); uploading && err != nil {
		s.log.WithError(err).WithField("filename", file.Name).Warn("upload interrupted")
		return s.Dispatch(UploadFailed{Err: err})
	}
	return last, nil
}

// Close stops a pending auto reset.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func withFile[T any](file File, fn func(*os.File) (T, error)) (T, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		var zero T
		return zero, errors.Wrap(err, "open upload file")
	}
	defer f.Close()
	return fn(f)
}
