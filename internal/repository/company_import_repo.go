package repository

import (
	"context"
	"encoding/json"
	"time"

	"company-directory-backend/internal/models"
	"company-directory-backend/internal/services/companyimport"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxStoredErrors bounds the error list kept on an import row.
const maxStoredErrors = 100

var ErrImportNotFound = errors.New("import not found")

type CompanyImportRepository struct {
	db *gorm.DB
}

func NewCompanyImportRepository(db *gorm.DB) *CompanyImportRepository {
	return &CompanyImportRepository{db: db}
}

// StartRun creates the audit row of a bulk upload in processing state.
func (r *CompanyImportRepository) StartRun(ctx context.Context, filename string) (uuid.UUID, error) {
	now := time.Now()
	run := &models.CompanyImport{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    models.ImportStatusProcessing,
		Errors:    datatypes.JSON("[]"),
		StartedAt: now,
		CreatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return uuid.Nil, errors.Wrap(err, "create import run")
	}
	return run.ID, nil
}

// FinishRun stores the final tallies of a run
func (r *CompanyImportRepository) FinishRun(ctx context.Context, id uuid.UUID, summary companyimport.RunSummary) error {
	errs := summary.Errors
	if len(errs) > maxStoredErrors {
		errs = errs[:maxStoredErrors]
	}
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return errors.Wrap(err, "encode import errors")
	}

	status := models.ImportStatusCompleted
	if !summary.Success {
		status = models.ImportStatusFailed
	}

	return errors.Wrap(r.db.WithContext(ctx).
		Model(&models.CompanyImport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_rows":    summary.TotalRows,
			"valid_rows":    summary.ValidRows,
			"created_count": summary.Stats.Created,
			"skipped_count": summary.Stats.Skipped,
			"failed_count":  summary.Stats.Failed,
			"status":        status,
			"message":       summary.Message,
			"errors":        datatypes.JSON(errsJSON),
			"completed_at":  time.Now(),
		}).Error, "update import run")
}

func (r *CompanyImportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CompanyImport, error) {
	var run models.CompanyImport
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select import run")
	}
	return &run, nil
}
