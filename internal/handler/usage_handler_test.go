package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

type fakeUsageService struct {
	submitter  string
	filename   string
	fileBody   string
	logs       models.DailyLogsRequest
	decidedID  string
	decision   models.ApproveUsageRequest
	format     string
	hostelID   string
	importErr  error
	exportErr  error
	deletedID  string
	createdReq models.CreateHostelRequest
}

func (f *fakeUsageService) SubmitLogs(_ context.Context, submitterID string, req models.DailyLogsRequest) (*models.DailyLogsResult, error) {
	f.submitter, f.logs = submitterID, req
	return &models.DailyLogsResult{Saved: len(req.Logs), Insights: []string{"Aravali: Water usage is high"}}, nil
}

func (f *fakeUsageService) Pending(context.Context) ([]models.ResourceUsage, error) {
	return []models.ResourceUsage{{ID: "u-1", Status: models.UsagePending}}, nil
}

func (f *fakeUsageService) Decide(_ context.Context, id string, req models.ApproveUsageRequest) (*models.ResourceUsage, error) {
	f.decidedID, f.decision = id, req
	return &models.ResourceUsage{ID: id, Status: req.Status}, nil
}

func (f *fakeUsageService) Import(_ context.Context, submitterID, filename string, r io.Reader) (*models.ImportResult, error) {
	raw, _ := io.ReadAll(r)
	f.submitter, f.filename, f.fileBody = submitterID, filename, string(raw)
	if f.importErr != nil {
		return nil, f.importErr
	}
	return &models.ImportResult{Processed: 2, Skipped: 1, Alerts: 1}, nil
}

func (f *fakeUsageService) Export(_ context.Context, format string) ([]byte, string, string, error) {
	f.format = format
	if f.exportErr != nil {
		return nil, "", "", f.exportErr
	}
	return []byte("Date,Hostel\n"), "campus-resource-report." + format, "text/csv", nil
}

func (f *fakeUsageService) Analytics(_ context.Context, hostelID string) (*models.UsageAnalytics, error) {
	f.hostelID = hostelID
	return &models.UsageAnalytics{}, nil
}

func (f *fakeUsageService) Recent(context.Context) ([]models.ResourceUsage, error) {
	return nil, nil
}

func (f *fakeUsageService) Hostels(context.Context) ([]models.Hostel, error) {
	return []models.Hostel{{ID: "h-1", Name: "Aravali"}}, nil
}

func (f *fakeUsageService) CreateHostel(_ context.Context, req models.CreateHostelRequest) (*models.Hostel, error) {
	f.createdReq = req
	return &models.Hostel{ID: "h-2", Name: req.Name, Capacity: req.Capacity}, nil
}

func (f *fakeUsageService) DeleteHostel(_ context.Context, id string) error {
	f.deletedID = id
	return nil
}

func (f *fakeUsageService) Dashboard(context.Context) (*models.DashboardStats, error) {
	return &models.DashboardStats{}, nil
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/resources/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUsageHandlerUploadPassesFile(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewUsageHandler(svc, 1<<20)
	r := newTestRouter(asUser("emp-1", models.RoleEmployee))
	r.POST("/resources/upload", h.Upload)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "file", "march.csv", "Hostel Name,Date\n"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "emp-1", svc.submitter)
	assert.Equal(t, "march.csv", svc.filename)
	assert.Equal(t, "Hostel Name,Date\n", svc.fileBody)

	var result models.ImportResult
	decodeData(t, rec, &result)
	assert.Equal(t, models.ImportResult{Processed: 2, Skipped: 1, Alerts: 1}, result)
}

func TestUsageHandlerUploadRequiresFile(t *testing.T) {
	h := NewUsageHandler(&fakeUsageService{}, 0)
	r := newTestRouter(asUser("emp-1", models.RoleEmployee))
	r.POST("/resources/upload", h.Upload)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "attachment", "march.csv", "x"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload an Excel or CSV file", decodeEnvelope(t, rec).Error.Message)
}

func TestUsageHandlerUploadUnsupportedType(t *testing.T) {
	svc := &fakeUsageService{importErr: appErrors.Clone(appErrors.ErrUnsupportedFileType, "upload a .csv or .xlsx file")}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("emp-1", models.RoleEmployee))
	r.POST("/resources/upload", h.Upload)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "file", "notes.txt", "x"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FILE", decodeEnvelope(t, rec).Error.Code)
}

func TestUsageHandlerDailyLog(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("admin-1", models.RoleAdmin))
	r.POST("/resources/daily-log", h.DailyLog)

	rec := doJSON(r, http.MethodPost, "/resources/daily-log", map[string]interface{}{
		"logs": []map[string]interface{}{{"hostel_id": "h-1", "water": 1200, "electricity": 40, "food_waste": 3}},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.logs.Logs, 1)
	assert.Equal(t, 1200.0, svc.logs.Logs[0].Water)

	var result models.DailyLogsResult
	decodeData(t, rec, &result)
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, []string{"Aravali: Water usage is high"}, result.Insights)
}

func TestUsageHandlerDecide(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("admin-1", models.RoleAdmin))
	r.PUT("/resources/logs/:id/status", h.Decide)

	rec := doJSON(r, http.MethodPut, "/resources/logs/"+testUsageID+"/status", map[string]string{"status": "Approved"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUsageID, svc.decidedID)
	assert.Equal(t, models.UsageApproved, svc.decision.Status)
}

func TestUsageHandlerExportDefaultsToXLSX(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("admin-1", models.RoleAdmin))
	r.GET("/resources/export", h.Export)

	rec := doJSON(r, http.MethodGet, "/resources/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx", svc.format)
	assert.Equal(t, `attachment; filename="campus-resource-report.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Date,Hostel\n", rec.Body.String())
}

func TestUsageHandlerExportBadFormat(t *testing.T) {
	svc := &fakeUsageService{exportErr: appErrors.Clone(appErrors.ErrValidation, "format must be csv, xlsx or pdf")}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("admin-1", models.RoleAdmin))
	r.GET("/resources/export", h.Export)

	rec := doJSON(r, http.MethodGet, "/resources/export?format=doc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "doc", svc.format)
}

func TestUsageHandlerAnalyticsHostelFilter(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("admin-1", models.RoleAdmin))
	r.GET("/resources/analytics", h.Analytics)

	rec := doJSON(r, http.MethodGet, "/resources/analytics?hostelId="+testHostelID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testHostelID, svc.hostelID)
}

func TestUsageHandlerHostelAdmin(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("admin-1", models.RoleAdmin))
	r.POST("/resources/hostels", h.CreateHostel)
	r.DELETE("/resources/hostels/:id", h.DeleteHostel)

	rec := doJSON(r, http.MethodPost, "/resources/hostels", map[string]interface{}{"name": "Shivalik", "capacity": 120})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Shivalik", svc.createdReq.Name)

	rec = doJSON(r, http.MethodDelete, "/resources/hostels/"+testHostelID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testHostelID, svc.deletedID)
}

func TestUsageHandlerRejectsMalformedIDs(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewUsageHandler(svc, 0)
	r := newTestRouter(asUser("admin-1", models.RoleAdmin))
	r.GET("/resources/analytics", h.Analytics)
	r.PUT("/resources/logs/:id/status", h.Decide)
	r.DELETE("/resources/hostels/:id", h.DeleteHostel)

	rec := doJSON(r, http.MethodGet, "/resources/analytics?hostelId=h-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodPut, "/resources/logs/u-7/status", map[string]string{"status": "Approved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodDelete, "/resources/hostels/h-2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, svc.hostelID)
	assert.Empty(t, svc.decidedID)
	assert.Empty(t, svc.deletedID)
}
