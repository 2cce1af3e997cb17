package companyimport

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// ValidationReport is the advisory answer to a validate request.
// Errors and Preview are truncated; ErrorCount is the true number of failed rows.
type ValidationReport struct {
	TotalRows  int             `json:"totalRows"`
	ValidRows  int             `json:"validRows"`
	Errors     []string        `json:"errors"`
	ErrorCount int             `json:"errorCount"`
	Duplicates int             `json:"duplicates"`
	Preview    []CompanyRecord `json:"preview"`
	IsValid    bool            `json:"isValid"`
}

// Validate reports what an upload of r would do without committing anything.
// On a structural failure it returns both an invalid report and the error.
func (s *ImportService) Validate(ctx context.Context, r io.Reader) (*ValidationReport, error) {
	a, err := s.analyze(ctx, r, nil)
	if err != nil {
		s.metrics.runsTotal.WithLabelValues("validate", "error").Inc()
		if IsStructural(err) {
			return &ValidationReport{
				Errors:     []string{err.Error()},
				ErrorCount: 1,
				Preview:    []CompanyRecord{},
			}, err
		}
		return nil, err
	}

	report := &ValidationReport{
		TotalRows:  a.total,
		ValidRows:  len(a.records),
		Errors:     bound(a.rowErrors, s.opts.ErrorPreviewLimit),
		ErrorCount: len(a.rowErrors),
		Duplicates: a.resolution.Duplicates(),
		Preview:    bound(a.resolution.Unique, s.opts.RowPreviewLimit),
		IsValid:    len(a.records) > 0,
	}
	if report.Errors == nil {
		report.Errors = []string{}
	}
	if report.Preview == nil {
		report.Preview = []CompanyRecord{}
	}

	result := "valid"
	if !report.IsValid {
		result = "invalid"
	}
	s.metrics.runsTotal.WithLabelValues("validate", result).Inc()
	s.log.WithFields(logrus.Fields{
		"total_rows": report.TotalRows,
		"valid_rows": report.ValidRows,
		"errors":     report.ErrorCount,
		"duplicates": report.Duplicates,
	}).Info("company upload validated")
	return report, nil
}
