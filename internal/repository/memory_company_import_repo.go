package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"company-directory-backend/internal/models"
	"company-directory-backend/internal/services/companyimport"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
)

// MemoryCompanyImportRepository is the in-process counterpart of CompanyImportRepository.
type MemoryCompanyImportRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]models.CompanyImport
}

func NewMemoryCompanyImportRepository() *MemoryCompanyImportRepository {
	return &MemoryCompanyImportRepository{runs: make(map[uuid.UUID]models.CompanyImport)}
}

func (r *MemoryCompanyImportRepository) StartRun(_ context.Context, filename string) (uuid.UUID, error) {
	now := time.Now()
	run := models.CompanyImport{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    models.ImportStatusProcessing,
		Errors:    datatypes.JSON("[]"),
		StartedAt: now,
		CreatedAt: now,
	}

	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()
	return run.ID, nil
}

func (r *MemoryCompanyImportRepository) FinishRun(_ context.Context, id uuid.UUID, summary companyimport.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return ErrImportNotFound
	}
	errs := summary.Errors
	if len(errs) > maxStoredErrors {
		errs = errs[:maxStoredErrors]
	}
	if errs == nil {
		errs = []string{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return errors.Wrap(err, "encode import errors")
	}

	completed := time.Now()
	run.TotalRows = summary.TotalRows
	run.ValidRows = summary.ValidRows
	run.CreatedCount = summary.Stats.Created
	run.SkippedCount = summary.Stats.Skipped
	run.FailedCount = summary.Stats.Failed
	run.Status = models.ImportStatusCompleted
	if !summary.Success {
		run.Status = models.ImportStatusFailed
	}
	run.Message = summary.Message
	run.Errors = datatypes.JSON(encoded)
	run.CompletedAt = &completed
	r.runs[id] = run
	return nil
}

func (r *MemoryCompanyImportRepository) GetByID(_ context.Context, id uuid.UUID) (*models.CompanyImport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrImportNotFound
	}
	return &run, nil
}
