package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"company-directory-backend/internal/models"
	"company-directory-backend/internal/progress"
	"company-directory-backend/internal/repository"
	"company-directory-backend/internal/services/companyimport"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type ImportReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.CompanyImport, error)
}

type CompanyReader interface {
	FindBySlug(ctx context.Context, slug string) (*models.Company, error)
}

type CompanyImportHandler struct {
	service        *companyimport.ImportService
	imports        ImportReader
	companies      CompanyReader
	maxUploadBytes int64
	log            logrus.FieldLogger
}

func NewCompanyImportHandler(
	s *companyimport.ImportService,
	imports ImportReader,
	companies CompanyReader,
	maxUploadBytes int64,
	log logrus.FieldLogger,
) *CompanyImportHandler {
	return &CompanyImportHandler{
		service:        s,
		imports:        imports,
		companies:      companies,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// validationFailure is the 422 body: the report fields plus the structural error.
type validationFailure struct {
	*companyimport.ValidationReport
	Error string `json:"error"`
}

// Validate dry-runs an upload and answers with a ValidationReport.
func (h *CompanyImportHandler) Validate(c *gin.Context) {
	file, header, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	report, err := h.service.Validate(c.Request.Context(), file)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case companyimport.IsStructural(err):
		h.log.WithError(err).WithField("filename", header.Filename).Warn("rejected unreadable company file")
		c.JSON(http.StatusUnprocessableEntity, validationFailure{ValidationReport: report, Error: err.Error()})
	default:
		h.log.WithError(err).WithField("filename", header.Filename).Error("company file validation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
	}
}

// BulkUpload ingests the file and streams progress frames until the final result.
// Once streaming starts the status is always 200; failures travel in the final frame.
func (h *CompanyImportHandler) BulkUpload(c *gin.Context) {
	file, header, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	progress.SetHeaders(c.Writer.Header())
	c.Status(http.StatusOK)

	stream := progress.NewWriter(c.Writer)
	h.service.Ingest(c.Request.Context(), header.Filename, file, stream)
	if err := stream.Close(); err != nil {
		h.log.WithError(err).WithField("filename", header.Filename).Debug("client left before end of stream")
	}
}

func (h *CompanyImportHandler) Template(c *gin.Context) {
	if c.Query("format") == "xlsx" {
		data, err := companyimport.TemplateXLSX()
		if err != nil {
			h.log.WithError(err).Error("render xlsx template")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "template unavailable"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="company_template.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="company_template.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", companyimport.TemplateCSV())
}

func (h *CompanyImportHandler) GetImport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import ID"})
		return
	}

	run, err := h.imports.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrImportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "import not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("import_id", id).Error("load import run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *CompanyImportHandler) GetCompany(c *gin.Context) {
	company, err := h.companies.FindBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, repository.ErrCompanyNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("slug", c.Param("slug")).Error("load company")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, company)
}

// formFile reads the "file" part, answering 413 or 400 itself when it can't.
func (h *CompanyImportHandler) formFile(c *gin.Context) (multipart.File, *multipart.FileHeader, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return nil, nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return nil, nil, false
	}

	h.log.WithFields(logrus.Fields{
		"filename": header.Filename,
		"size":     header.Size,
	}).Info("received company file")
	return file, header, true
}
