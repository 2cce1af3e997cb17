package companyimport

import (
	"context"
	"io"

	"company-directory-backend/internal/models"
	"company-directory-backend/internal/progress"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// KeyLookup reads which of keys already exist in the record store.
type KeyLookup interface {
	ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
}

// Store is the record store as seen by the pipeline: key lookups and batch inserts.
// InsertBatch must be atomic per call and skip rows whose key already exists,
// returning how many rows were actually inserted.
type Store interface {
	KeyLookup
	InsertBatch(ctx context.Context, batch []models.Company) (int, error)
}

// SlugIndex is implemented by stores that can report slugs already in use, so
// a new run continues numbering after earlier ones. It is optional.
type SlugIndex interface {
	// TakenSlugs returns stored slugs equal to one of bases or to a base with a
	// numeric suffix. Extra slugs in the result are harmless.
	TakenSlugs(ctx context.Context, bases []string) (map[string]struct{}, error)
}

type RunSummary struct {
	TotalRows int
	ValidRows int
	Stats     progress.Stats
	Success   bool
	Message   string
	Errors    []string
}

// RunRecorder keeps an audit trail of bulk uploads. It is optional.
type RunRecorder interface {
	StartRun(ctx context.Context, filename string) (uuid.UUID, error)
	FinishRun(ctx context.Context, id uuid.UUID, summary RunSummary) error
}

// Emitter receives progress frames in commit order.
type Emitter interface {
	Emit(progress.Frame) error
}

type Options struct {
	BatchSize         int
	MaxRows           int
	ErrorPreviewLimit int
	RowPreviewLimit   int
	CommitRetries     int
	KeyLookupChunk    int
}

func DefaultOptions() Options {
	return Options{
		BatchSize:         100,
		MaxRows:           100000,
		ErrorPreviewLimit: 5,
		RowPreviewLimit:   5,
		CommitRetries:     0,
		KeyLookupChunk:    1000,
	}
}

type ImportService struct {
	store   Store
	runs    RunRecorder
	opts    Options
	log     logrus.FieldLogger
	metrics *metrics
}

func NewImportService(store Store, runs RunRecorder, opts Options, log logrus.FieldLogger) *ImportService {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.KeyLookupChunk <= 0 {
		opts.KeyLookupChunk = def.KeyLookupChunk
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ImportService{
		store:   store,
		runs:    runs,
		opts:    opts,
		log:     log,
		metrics: getMetrics(),
	}
}

func (s *ImportService) Options() Options {
	return s.opts
}

type analysis struct {
	total      int
	records    []CompanyRecord
	rowErrors  []string
	resolution Resolution
}

// analyze parses, validates and de-duplicates the upload without writing anything.
// afterParse, when set, runs once parsing finished and before the store is read.
func (s *ImportService) analyze(ctx context.Context, r io.Reader, afterParse func(*analysis)) (*analysis, error) {
	a := &analysis{}
	parser := Parser{MaxRows: s.opts.MaxRows}

	_, err := parser.Each(r, func(raw RawRow) error {
		a.total++
		rec, errs := ValidateRow(raw)
		if len(errs) > 0 {
			a.rowErrors = append(a.rowErrors, errs.Summary())
			return nil
		}
		a.records = append(a.records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if afterParse != nil {
		afterParse(a)
	}

	snapshot, err := s.snapshotKeys(ctx, a.records)
	if err != nil {
		return nil, err
	}
	a.resolution = Resolve(a.records, snapshot)
	return a, nil
}

// snapshotKeys reads the existing keys for records in chunks.
func (s *ImportService) snapshotKeys(ctx context.Context, records []CompanyRecord) (KeySnapshot, error) {
	snapshot := make(KeySnapshot)
	if len(records) == 0 {
		return snapshot, nil
	}

	keys := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.CIN]; ok {
			continue
		}
		seen[rec.CIN] = struct{}{}
		keys = append(keys, rec.CIN)
	}

	for start := 0; start < len(keys); start += s.opts.KeyLookupChunk {
		end := min(start+s.opts.KeyLookupChunk, len(keys))
		found, err := s.store.ExistingKeys(ctx, keys[start:end])
		if err != nil {
			return nil, errors.Wrap(err, "look up existing registration numbers")
		}
		for k := range found {
			snapshot[k] = struct{}{}
		}
	}
	return snapshot, nil
}

func bound[T any](items []T, limit int) []T {
	if limit < 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}
