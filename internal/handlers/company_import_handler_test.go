package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"company-directory-backend/internal/models"
	"company-directory-backend/internal/progress"
	"company-directory-backend/internal/repository"
	"company-directory-backend/internal/services/companyimport"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router    *gin.Engine
	companies *repository.MemoryCompanyRepository
	runs      *repository.MemoryCompanyImportRepository
}

func newTestEnv(t *testing.T, maxUploadBytes int64) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, _ := test.NewNullLogger()
	companies := repository.NewMemoryCompanyRepository()
	runs := repository.NewMemoryCompanyImportRepository()
	opts := companyimport.DefaultOptions()
	opts.BatchSize = 10

	svc := companyimport.NewImportService(companies, runs, opts, log)
	h := NewCompanyImportHandler(svc, runs, companies, maxUploadBytes, log)

	r := gin.New()
	r.POST("/validate", h.Validate)
	r.POST("/bulk-upload", h.BulkUpload)
	r.GET("/template", h.Template)
	r.GET("/runs/:id", h.GetImport)
	r.GET("/companies/:slug", h.GetCompany)
	return &testEnv{router: r, companies: companies, runs: runs}
}

func (e *testEnv) upload(t *testing.T, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func companiesCSV(n int) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(companyimport.TemplateHeader, ",") + "\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "U%05dMH2001PLC%06d,Company %d Limited,Company limited by Shares,Non-govt company,Public,\"1,000,000\",500000,2001-04-12,Mumbai,Active,MH,64190\n", i, i, i)
	}
	return []byte(b.String())
}

func TestValidate_ReportsRows(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.upload(t, "/validate", "companies.csv", companiesCSV(3))
	require.Equal(t, http.StatusOK, rec.Code)

	var report companyimport.ValidationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 3, report.TotalRows)
	require.Equal(t, 3, report.ValidRows)
	require.True(t, report.IsValid)
	require.Len(t, report.Preview, 3)
	require.Empty(t, env.companies.All())
}

func TestValidate_UnparseableFile(t *testing.T) {
	env := newTestEnv(t, 0)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
	rec := env.upload(t, "/validate", "logo.png", png)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["isValid"])
	require.EqualValues(t, 0, body["validRows"])
	require.NotEmpty(t, body["error"])
}

func TestValidate_MissingFile(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/validate", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"file required"}`, rec.Body.String())
}

func TestValidate_FileTooLarge(t *testing.T) {
	env := newTestEnv(t, 512)

	rec := env.upload(t, "/validate", "companies.csv", companiesCSV(50))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBulkUpload_StreamsFramesAndCommits(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.upload(t, "/bulk-upload", "companies.csv", companiesCSV(25))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasSuffix(rec.Body.String(), "data:[DONE]\n\n"))

	log, _ := test.NewNullLogger()
	var frames []progress.Frame
	for f, err := range progress.NewReader(rec.Body, log).Frames() {
		require.NoError(t, err)
		frames = append(frames, f)
	}
	require.NotEmpty(t, frames)

	final := frames[len(frames)-1]
	require.True(t, final.IsFinal())
	require.True(t, final.Succeeded())
	require.Equal(t, progress.Stats{Created: 25}, *final.FinalStats)
	require.NotEmpty(t, final.ImportID)
	require.Equal(t, final.ImportID, frames[0].ImportID)

	var commits int
	for _, f := range frames {
		if f.Stage == progress.StageCommitting {
			commits++
		}
	}
	require.Equal(t, 3, commits)
	require.Len(t, env.companies.All(), 25)

	rec = env.get("/companies/company-1-limited-mh")
	require.Equal(t, http.StatusOK, rec.Code)
	var company models.Company
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &company))
	require.Equal(t, "U00001MH2001PLC000001", company.CIN)
	require.Equal(t, "1000000", company.AuthorizedCapital.String())
	require.NotNil(t, company.ImportID)
	require.Equal(t, final.ImportID, company.ImportID.String())

	rec = env.get("/runs/" + final.ImportID)
	require.Equal(t, http.StatusOK, rec.Code)
	var run models.CompanyImport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, models.ImportStatusCompleted, run.Status)
	require.Equal(t, 25, run.CreatedCount)
}

func TestBulkUpload_SlugsStayUniqueAcrossRuns(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.upload(t, "/bulk-upload", "first.csv", companiesCSV(1))
	require.Equal(t, http.StatusOK, rec.Code)

	renamed := strings.Replace(string(companiesCSV(2)), "Company 2 Limited", "Company 1 Limited", 1)
	rec = env.upload(t, "/bulk-upload", "second.csv", []byte(renamed))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.companies.All(), 2)

	for slug, cin := range map[string]string{
		"company-1-limited-mh":   "U00001MH2001PLC000001",
		"company-1-limited-mh-2": "U00002MH2001PLC000002",
	} {
		rec = env.get("/companies/" + slug)
		require.Equal(t, http.StatusOK, rec.Code, slug)
		var company models.Company
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &company))
		require.Equal(t, cin, company.CIN)
	}
}

func TestBulkUpload_UnparseableFile(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.upload(t, "/bulk-upload", "logo.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.Equal(t, http.StatusOK, rec.Code)

	r := progress.NewReader(rec.Body, nil)
	var last progress.Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		last = f
	}
	require.True(t, last.IsFinal())
	require.False(t, last.Succeeded())
	require.Zero(t, last.FinalStats.Created)
	require.Empty(t, env.companies.All())
}

func TestTemplate(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.get("/template")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "company_template.csv")
	require.Equal(t, string(companyimport.TemplateCSV()), rec.Body.String())

	rec = env.get("/template?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "company_template.xlsx")
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestGetImport_NotFound(t *testing.T) {
	env := newTestEnv(t, 0)

	require.Equal(t, http.StatusBadRequest, env.get("/runs/not-a-uuid").Code)
	require.Equal(t, http.StatusNotFound, env.get("/runs/"+uuid.NewString()).Code)
}

func TestGetCompany_NotFound(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.companies.InsertBatch(context.Background(), []models.Company{{CIN: "U72200KA2010PTC054321", Slug: "acme-ka"}})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, env.get("/companies/acme-ka").Code)
	require.Equal(t, http.StatusNotFound, env.get("/companies/missing").Code)
}
