package repository

import (
	"context"
	"testing"

	"company-directory-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func TestMemoryCompanyRepository_SkipsExistingCIN(t *testing.T) {
	repo := NewMemoryCompanyRepository()
	ctx := context.Background()

	n, err := repo.InsertBatch(ctx, []models.Company{
		{CIN: "U72200KA2010PTC054321", Slug: "acme-ka"},
		{CIN: "L17110MH1973PLC019786", Slug: "beta-mh"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.InsertBatch(ctx, []models.Company{
		{CIN: "U72200KA2010PTC054321", Slug: "acme-ka-2"},
		{CIN: "U74999DL2015PTC281234", Slug: "gamma-dl"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, repo.All(), 3)

	found, err := repo.ExistingKeys(ctx, []string{"U72200KA2010PTC054321", "U00000XX0000XXX000000"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	c, err := repo.FindBySlug(ctx, "gamma-dl")
	require.NoError(t, err)
	require.Equal(t, "U74999DL2015PTC281234", c.CIN)

	_, err = repo.FindBySlug(ctx, "acme-ka-2")
	require.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestMemoryCompanyRepository_TakenSlugs(t *testing.T) {
	repo := NewMemoryCompanyRepository()
	ctx := context.Background()

	_, err := repo.InsertBatch(ctx, []models.Company{
		{CIN: "U72200KA2010PTC054321", Slug: "acme-ka"},
		{CIN: "U72200KA2010PTC054322", Slug: "acme-ka-2"},
		{CIN: "U72200KA2010PTC054323", Slug: "acme-kanpur"},
		{CIN: "U72200KA2010PTC054324", Slug: "route-66"},
	})
	require.NoError(t, err)

	taken, err := repo.TakenSlugs(ctx, []string{"acme-ka", "route-66"})
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"acme-ka": {}, "acme-ka-2": {}, "route-66": {}}, taken)
}
