package companyimport

import (
	"context"
	"fmt"
	"io"
	"time"

	"company-directory-backend/internal/models"
	"company-directory-backend/internal/progress"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const retryBackoff = 200 * time.Millisecond

// Ingest parses, validates and commits r in batches, streaming progress to emit,
// and returns the final frame (also emitted). It is self-contained: nothing from a
// previous Validate call is reused. Cancellation of ctx does not stop the commit loop.
func (s *ImportService) Ingest(ctx context.Context, filename string, r io.Reader, emit Emitter) progress.Frame {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	log := s.log.WithField("filename", filename)
	sink := &frameSink{emit: emit, log: log}

	var runID uuid.UUID
	if s.runs != nil {
		id, err := s.runs.StartRun(ctx, filename)
		if err != nil {
			log.WithError(err).Warn("could not record import run")
		} else {
			runID = id
			log = log.WithField("import_id", runID)
			sink.log = log
		}
	}

	sink.send(progress.Frame{
		ImportID: importRef(runID),
		Stage:    progress.StageInitializing,
		Message:  fmt.Sprintf("Starting import of %s", filename),
	})

	sink.send(progress.Frame{
		Stage:      progress.StageParsing,
		Percentage: 5,
		Message:    "Reading file",
	})

	a, err := s.analyze(ctx, r, func(a *analysis) {
		sink.send(progress.Frame{
			Stage:      progress.StageValidating,
			Current:    len(a.records),
			Total:      a.total,
			Percentage: 10,
			Message:    fmt.Sprintf("%d of %d rows passed validation, checking duplicates", len(a.records), a.total),
			Errors:     bound(a.rowErrors, s.opts.ErrorPreviewLimit),
		})
	})
	if err != nil {
		log.WithError(err).Error("company import aborted before commit")
		final := progress.Final(false, progress.Stats{}, fmt.Sprintf("Import failed: %v", err), []string{err.Error()})
		final.ImportID = importRef(runID)
		s.finish(ctx, runID, RunSummary{Success: false, Message: final.Message, Errors: final.Errors}, log)
		s.metrics.runsTotal.WithLabelValues("ingest", "failed").Inc()
		sink.send(final)
		return final
	}

	stats := progress.Stats{
		Skipped: a.resolution.Duplicates(),
		Failed:  len(a.rowErrors),
	}
	s.metrics.rowsTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	s.metrics.rowsTotal.WithLabelValues("invalid").Add(float64(stats.Failed))

	var importID *uuid.UUID
	if runID != uuid.Nil {
		importID = &runID
	}

	unique := a.resolution.Unique
	slugs := newRunSlugs(s.store, log)
	var batchErrs []string
	batchCount := (len(unique) + s.opts.BatchSize - 1) / s.opts.BatchSize

	for n, lo := 1, 0; lo < len(unique); n, lo = n+1, lo+s.opts.BatchSize {
		hi := min(lo+s.opts.BatchSize, len(unique))
		batch := make([]models.Company, 0, hi-lo)
		now := time.Now()
		slugs.seed(ctx, unique[lo:hi])
		for _, rec := range unique[lo:hi] {
			batch = append(batch, toCompany(rec, slugs.gen.Next(rec.Name, rec.StateCode), importID, now))
		}

		inserted, err := s.commitBatch(ctx, batch, log)
		if err != nil {
			stats.Failed += len(batch)
			msg := fmt.Sprintf("Batch %d (rows %d-%d): %v", n, unique[lo].Row, unique[hi-1].Row, err)
			batchErrs = append(batchErrs, msg)
			s.metrics.rowsTotal.WithLabelValues("failed").Add(float64(len(batch)))
			log.WithError(err).WithField("batch", n).Error("company batch commit failed")
		} else {
			stats.Created += inserted
			stats.Skipped += len(batch) - inserted
			s.metrics.rowsTotal.WithLabelValues("created").Add(float64(inserted))
			s.metrics.rowsTotal.WithLabelValues("skipped").Add(float64(len(batch) - inserted))
		}

		sink.send(progress.Frame{
			Stage:      progress.StageCommitting,
			Current:    hi,
			Total:      len(unique),
			Percentage: 10 + 85*float64(hi)/float64(len(unique)),
			Message:    fmt.Sprintf("Committed batch %d of %d", n, batchCount),
			Errors:     s.frameErrors(batchErrs, a.rowErrors),
		})
	}

	sink.send(progress.Frame{
		Stage:      progress.StageFinalizing,
		Current:    stats.Total(),
		Total:      a.total,
		Percentage: 95,
		Message:    "Finalizing import",
		Errors:     s.frameErrors(batchErrs, a.rowErrors),
	})

	message := fmt.Sprintf("Import finished: %d created, %d skipped, %d failed", stats.Created, stats.Skipped, stats.Failed)
	final := progress.Final(true, stats, message, s.frameErrors(batchErrs, a.rowErrors))
	final.ImportID = importRef(runID)

	s.finish(ctx, runID, RunSummary{
		TotalRows: a.total,
		ValidRows: len(a.records),
		Stats:     stats,
		Success:   true,
		Message:   message,
		Errors:    append(append([]string{}, batchErrs...), a.rowErrors...),
	}, log)
	s.metrics.runsTotal.WithLabelValues("ingest", "completed").Inc()

	log.WithFields(logrus.Fields{
		"total_rows": a.total,
		"created":    stats.Created,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
		"duration":   time.Since(start).String(),
	}).Info("company import completed")

	sink.send(final)
	return final
}

// commitBatch inserts one batch, retrying up to CommitRetries times.
func (s *ImportService) commitBatch(ctx context.Context, batch []models.Company, log logrus.FieldLogger) (int, error) {
	var err error
	for attempt := 0; attempt <= s.opts.CommitRetries; attempt++ {
		if attempt > 0 {
			log.WithError(err).WithField("attempt", attempt+1).Warn("retrying company batch commit")
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}

		began := time.Now()
		var inserted int
		inserted, err = s.store.InsertBatch(ctx, batch)
		if err == nil {
			s.metrics.batchDuration.WithLabelValues("ok").Observe(time.Since(began).Seconds())
			return inserted, nil
		}
		s.metrics.batchDuration.WithLabelValues("error").Observe(time.Since(began).Seconds())
	}
	return 0, err
}

// frameErrors puts commit failures ahead of row errors so they stay visible
// after truncation.
func (s *ImportService) frameErrors(batchErrs, rowErrs []string) []string {
	if len(batchErrs) == 0 && len(rowErrs) == 0 {
		return nil
	}
	all := make([]string, 0, len(batchErrs)+len(rowErrs))
	all = append(all, batchErrs...)
	all = append(all, rowErrs...)
	return bound(all, s.opts.ErrorPreviewLimit)
}

func (s *ImportService) finish(ctx context.Context, runID uuid.UUID, summary RunSummary, log logrus.FieldLogger) {
	if s.runs == nil || runID == uuid.Nil {
		return
	}
	if err := s.runs.FinishRun(ctx, runID, summary); err != nil {
		log.WithError(err).Warn("could not record import result")
	}
}

// runSlugs numbers slugs across runs when the store has a SlugIndex. A failed
// lookup falls back to numbering within the run.
type runSlugs struct {
	gen    *SlugGenerator
	index  SlugIndex
	seeded map[string]struct{}
	log    logrus.FieldLogger
}

func newRunSlugs(store Store, log logrus.FieldLogger) *runSlugs {
	index, _ := store.(SlugIndex)
	return &runSlugs{gen: NewSlugGenerator(), index: index, seeded: make(map[string]struct{}), log: log}
}

// seed reserves the stored slugs sharing a base with recs, once per base.
func (r *runSlugs) seed(ctx context.Context, recs []CompanyRecord) {
	if r.index == nil {
		return
	}
	var bases []string
	for _, rec := range recs {
		base := SlugBase(rec.Name, rec.StateCode)
		if _, done := r.seeded[base]; done {
			continue
		}
		r.seeded[base] = struct{}{}
		bases = append(bases, base)
	}
	if len(bases) == 0 {
		return
	}

	taken, err := r.index.TakenSlugs(ctx, bases)
	if err != nil {
		r.log.WithError(err).Warn("could not read stored slugs, numbering within this run")
		return
	}
	for slug := range taken {
		r.gen.Reserve(slug)
	}
}

// importRef is the id reported to the client, empty when the run was not recorded.
func importRef(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func toCompany(rec CompanyRecord, slug string, importID *uuid.UUID, now time.Time) models.Company {
	return models.Company{
		ID:                uuid.New(),
		CIN:               rec.CIN,
		Name:              rec.Name,
		Slug:              slug,
		Category:          rec.Category,
		SubCategory:       rec.SubCategory,
		Class:             rec.Class,
		AuthorizedCapital: rec.AuthorizedCapital,
		PaidUpCapital:     rec.PaidUpCapital,
		RegisteredOn:      rec.RegisteredOn,
		Address:           rec.Address,
		Status:            string(rec.Status),
		StateCode:         rec.StateCode,
		NICCode:           rec.NICCode,
		ImportID:          importID,
		CreatedAt:         now,
	}
}

// frameSink stops emitting after the first failed write. The import keeps going.
type frameSink struct {
	emit   Emitter
	log    logrus.FieldLogger
	broken bool
}

func (f *frameSink) send(frame progress.Frame) {
	if f.emit == nil || f.broken {
		return
	}
	if err := f.emit.Emit(frame); err != nil {
		f.broken = true
		f.log.WithError(err).Warn("progress stream lost, import continues")
	}
}
