package repository

import (
	"context"
	"regexp"
	"sync"

	"company-directory-backend/internal/models"
)

var numberedSlug = regexp.MustCompile(`-[0-9]+$`)

// MemoryCompanyRepository keeps companies in process memory. It enforces the
// same CIN uniqueness as the postgres index and is used for local runs and tests.
type MemoryCompanyRepository struct {
	mu        sync.RWMutex
	companies []models.Company
	byCIN     map[string]int
}

func NewMemoryCompanyRepository() *MemoryCompanyRepository {
	return &MemoryCompanyRepository{byCIN: make(map[string]int)}
}

func (r *MemoryCompanyRepository) ExistingKeys(_ context.Context, cins []string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make(map[string]struct{})
	for _, cin := range cins {
		if _, ok := r.byCIN[cin]; ok {
			found[cin] = struct{}{}
		}
	}
	return found, nil
}

func (r *MemoryCompanyRepository) InsertBatch(_ context.Context, companies []models.Company) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, c := range companies {
		if _, ok := r.byCIN[c.CIN]; ok {
			continue
		}
		r.byCIN[c.CIN] = len(r.companies)
		r.companies = append(r.companies, c)
		inserted++
	}
	return inserted, nil
}

func (r *MemoryCompanyRepository) TakenSlugs(_ context.Context, bases []string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]struct{}, len(bases))
	for _, b := range bases {
		want[b] = struct{}{}
	}
	taken := make(map[string]struct{})
	for _, c := range r.companies {
		if _, ok := want[c.Slug]; ok {
			taken[c.Slug] = struct{}{}
			continue
		}
		if _, ok := want[numberedSlug.ReplaceAllString(c.Slug, "")]; ok {
			taken[c.Slug] = struct{}{}
		}
	}
	return taken, nil
}

func (r *MemoryCompanyRepository) FindBySlug(_ context.Context, slug string) (*models.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.companies {
		if r.companies[i].Slug == slug {
			c := r.companies[i]
			return &c, nil
		}
	}
	return nil, ErrCompanyNotFound
}

// All returns a copy of the stored companies in insertion order.
func (r *MemoryCompanyRepository) All() []models.Company {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Company(nil), r.companies...)
}
