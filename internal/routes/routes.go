package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	handler "company-directory-backend/internal/handlers"
	"company-directory-backend/internal/services/companyimport"
)

// Dependencies are the stores and settings the routes are built from.
type Dependencies struct {
	Store          companyimport.Store
	Runs           companyimport.RunRecorder
	Imports        handler.ImportReader
	Companies      handler.CompanyReader
	Options        companyimport.Options
	MaxUploadBytes int64
	Log            logrus.FieldLogger
}

func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	importService := companyimport.NewImportService(deps.Store, deps.Runs, deps.Options, deps.Log)
	importHandler := handler.NewCompanyImportHandler(
		importService,
		deps.Imports,
		deps.Companies,
		deps.MaxUploadBytes,
		deps.Log,
	)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Bulk company import
	imports := api.Group("/company-imports")
	imports.POST("/validate", importHandler.Validate)
	imports.POST("/bulk-upload", importHandler.BulkUpload)
	imports.GET("/template", importHandler.Template)
	imports.GET("/runs/:id", importHandler.GetImport)

	companies := api.Group("/companies")
	{
		companies.GET("/:slug", importHandler.GetCompany)
	}
}
