// Package uploadflow drives one operator's upload of a company file: pick a
// file, validate it, upload it while following progress, then start over.
package uploadflow

import (
	"fmt"

	"company-directory-backend/internal/progress"
	"company-directory-backend/internal/services/companyimport"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// AcceptedMIME lists the file types the server can parse.
var AcceptedMIME = []string{
	"text/csv",
	"text/plain",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var (
	ErrInvalidTransition = errors.New("invalid upload transition")
	ErrNothingToUpload   = errors.New("no valid rows to upload")
)

type File struct {
	Path string
	Name string
	Size int64
	MIME string
}

// State is one of Idle, FileSelected, Validating, Validated, Uploading,
// Completed or Failed.
type State interface {
	Name() string
	sealed()
}

type Idle struct {
	Notice string // why the last selection was rejected, if it was
}

type FileSelected struct {
	File File
}

type Validating struct {
	File File
}

type Validated struct {
	File   File
	Report companyimport.ValidationReport
}

// CanUpload reports whether the file has anything worth sending.
func (v Validated) CanUpload() bool {
	return v.Report.ValidRows > 0
}

type Uploading struct {
	File     File
	Progress progress.Frame
}

type Completed struct {
	File     File
	ImportID string
	Stats    progress.Stats
	Message  string
	Errors   []string
}

type Failed struct {
	File     File
	ImportID string // set when the server recorded the failed run
	Err      string
}

func (Idle) Name() string         { return "idle" }
func (FileSelected) Name() string { return "file_selected" }
func (Validating) Name() string   { return "validating" }
func (Validated) Name() string    { return "validated" }
func (Uploading) Name() string    { return "uploading" }
func (Completed) Name() string    { return "completed" }
func (Failed) Name() string       { return "failed" }

func (Idle) sealed()         {}
func (FileSelected) sealed() {}
func (Validating) sealed()   {}
func (Validated) sealed()    {}
func (Uploading) sealed()    {}
func (Completed) sealed()    {}
func (Failed) sealed()       {}

type Event interface {
	event()
}

type SelectFile struct{ File File }

type StartValidation struct{}

// ValidationReported carries any report the server answered with, including a
// report of a file it could not read.
type ValidationReported struct {
	Report companyimport.ValidationReport
}

// ValidationFailed means the validate request itself failed.
type ValidationFailed struct{ Err error }

type StartUpload struct{}

type FrameReceived struct{ Frame progress.Frame }

// UploadFailed means the stream broke before a final frame arrived.
type UploadFailed struct{ Err error }

type Reset struct{}

func (SelectFile) event()         {}
func (StartValidation) event()    {}
func (ValidationReported) event() {}
func (ValidationFailed) event()   {}
func (StartUpload) event()        {}
func (FrameReceived) event()      {}
func (UploadFailed) event()       {}
func (Reset) event()              {}

// Reduce applies e to s. A rejected event returns s unchanged with an error.
func Reduce(s State, e Event) (State, error) {
	switch e := e.(type) {
	case SelectFile:
		switch s.(type) {
		case Validating, Uploading:
			return s, invalid(s, e)
		}
		if !mimetype.EqualsAny(e.File.MIME, AcceptedMIME...) {
			return Idle{Notice: fmt.Sprintf("%s is not a CSV or Excel file (detected %s)", e.File.Name, e.File.MIME)}, nil
		}
		return FileSelected{File: e.File}, nil

	case StartValidation:
		if cur, ok := s.(FileSelected); ok {
			return Validating(cur), nil
		}
		return s, invalid(s, e)

	case ValidationReported:
		if cur, ok := s.(Validating); ok {
			return Validated{File: cur.File, Report: e.Report}, nil
		}
		return s, invalid(s, e)

	case ValidationFailed:
		if cur, ok := s.(Validating); ok {
			return Failed{File: cur.File, Err: fmt.Sprintf("Validation failed: %v", e.Err)}, nil
		}
		return s, invalid(s, e)

	case StartUpload:
		cur, ok := s.(Validated)
		if !ok {
			return s, invalid(s, e)
		}
		if !cur.CanUpload() {
			return s, ErrNothingToUpload
		}
		return Uploading{File: cur.File, Progress: progress.Frame{Stage: progress.StageInitializing}}, nil

	case FrameReceived:
		cur, ok := s.(Uploading)
		if !ok {
			return s, invalid(s, e)
		}
		shown := progress.Apply(cur.Progress, e.Frame)
		if !shown.IsFinal() {
			return Uploading{File: cur.File, Progress: shown}, nil
		}
		if !shown.Succeeded() {
			return Failed{File: cur.File, ImportID: shown.ImportID, Err: shown.Message}, nil
		}
		return Completed{
			File:     cur.File,
			ImportID: shown.ImportID,
			Stats:    *shown.FinalStats,
			Message:  shown.Message,
			Errors:   shown.Errors,
		}, nil

	case UploadFailed:
		if cur, ok := s.(Uploading); ok {
			return Failed{File: cur.File, Err: fmt.Sprintf("Upload interrupted: %v", e.Err)}, nil
		}
		return s, invalid(s, e)

	case Reset:
		switch s.(type) {
		case Validating, Uploading:
			return s, invalid(s, e)
		}
		return Idle{}, nil
	}
	return s, errors.Errorf("unknown upload event %T", e)
}

func invalid(s State, e Event) error {
	return errors.Wrapf(ErrInvalidTransition, "%T while %s", e, s.Name())
}
