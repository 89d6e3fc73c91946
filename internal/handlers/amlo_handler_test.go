package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/siamfx/backoffice/internal/catalog"
	"github.com/siamfx/backoffice/internal/database"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/services/report"
	"github.com/siamfx/backoffice/internal/services/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAMLORouter(t *testing.T) (*gin.Engine, *gorm.DB, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	dir := t.TempDir()
	registry := report.NewRegistry(db, dir)
	filler := report.NewPDFFiller(db, registry, report.NewFontSelector(filepath.Join(dir, "fonts")), filepath.Join(dir, "templates"))
	reservations := reservation.NewService(db, registry)
	handler := NewAMLOHandler(reservations, nil, catalog.NewCatalog(db), filler)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint(42))
		c.Set("branch_id", uint(1))
		c.Set("username", "teller01")
		c.Set("language", "en")
	})
	router.GET("/api/amlo/reports/:id/generate-pdf", handler.StreamPDF)
	return router, db, dir
}

func seedAMLOReservation(t *testing.T, db *gorm.DB, reportType models.ReportType) *models.Reservation {
	t.Helper()
	res := models.Reservation{
		ReservationNo: "007-001-26-000001",
		ReportType:    reportType,
		Status:        models.ReservationStatusApproved,
		CustomerName:  "Somchai Jaidee",
		BranchID:      1,
	}
	require.NoError(t, db.Create(&res).Error)
	return &res
}

func TestStreamPDFServesCachedArtifact(t *testing.T) {
	router, db, dir := setupAMLORouter(t)
	res := seedAMLOReservation(t, db, models.ReportTypeAMLO101)

	pdfPath := filepath.Join(dir, "amlo_1_01_007-001-26-000001.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 artifact"), 0o644))
	require.NoError(t, db.Create(&models.AMLOReport{
		ReportNo:      res.ReservationNo,
		ReportType:    res.ReportType,
		ReservationID: res.ID,
		PDFFilename:   filepath.Base(pdfPath),
		PDFPath:       pdfPath,
	}).Error)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/amlo/reports/1/generate-pdf", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "%PDF-1.4 artifact")
	assert.Contains(t, w.Header().Get("Content-Disposition"), filepath.Base(pdfPath))
}

func TestStreamPDFGeneratesWhenFlattenMismatch(t *testing.T) {
	router, db, dir := setupAMLORouter(t)
	res := seedAMLOReservation(t, db, models.ReportTypeAMLO101)

	// Only a non-flattened artifact exists; flatten=true must regenerate,
	// which fails with 503 because no template directory is configured.
	pdfPath := filepath.Join(dir, "amlo_1_01_007-001-26-000001.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, db.Create(&models.AMLOReport{
		ReportNo:      res.ReservationNo,
		ReportType:    res.ReportType,
		ReservationID: res.ID,
		PDFFilename:   filepath.Base(pdfPath),
		PDFPath:       pdfPath,
	}).Error)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/amlo/reports/1/generate-pdf?flatten=true", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "report template unavailable")
}

func TestStreamPDFRejectsBOTReservation(t *testing.T) {
	router, db, _ := setupAMLORouter(t)
	seedAMLOReservation(t, db, models.ReportTypeBOTBuyFX)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/amlo/reports/1/generate-pdf", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no PDF report form")
}
