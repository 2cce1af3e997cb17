package repository

import (
	"context"

	"company-directory-backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCompanyNotFound = errors.New("company not found")

type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// ExistingKeys returns the subset of cins already stored.
func (r *CompanyRepository) ExistingKeys(ctx context.Context, cins []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(cins))
	if len(cins) == 0 {
		return found, nil
	}

	var existing []string
	err := r.db.WithContext(ctx).
		Model(&models.Company{}).
		Where("cin IN ?", cins).
		Pluck("cin", &existing).Error
	if err != nil {
		return nil, errors.Wrap(err, "select existing cins")
	}
	for _, cin := range existing {
		found[cin] = struct{}{}
	}
	return found, nil
}

// InsertBatch inserts companies in one transaction. Rows whose CIN already exists
// are skipped by the unique index; the count of rows actually written is returned.
func (r *CompanyRepository) InsertBatch(ctx context.Context, companies []models.Company) (int, error) {
	if len(companies) == 0 {
		return 0, nil
	}

	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cin"}},
			DoNothing: true,
		}).Create(&companies)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "insert company batch")
	}
	return int(inserted), nil
}

// TakenSlugs returns stored slugs equal to a base or to a base plus a numeric suffix.
func (r *CompanyRepository) TakenSlugs(ctx context.Context, bases []string) (map[string]struct{}, error) {
	taken := make(map[string]struct{})
	if len(bases) == 0 {
		return taken, nil
	}

	var slugs []string
	err := r.db.WithContext(ctx).
		Model(&models.Company{}).
		Where("slug IN ? OR regexp_replace(slug, '-[0-9]+$', '') IN ?", bases, bases).
		Distinct().
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, errors.Wrap(err, "select taken slugs")
	}
	for _, s := range slugs {
		taken[s] = struct{}{}
	}
	return taken, nil
}

// FindBySlug fetches a single company by its generated slug
func (r *CompanyRepository) FindBySlug(ctx context.Context, slug string) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).First(&company, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select company by slug")
	}
	return &company, nil
}
