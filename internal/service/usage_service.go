package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/internal/repository"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/export"
)

const (
	maxHostels       = 50
	recentUsageLimit = 20
	analyticsLimit   = 90

	importColumnHostel      = "HostelName"
	importColumnDate        = "Date"
	importColumnWater       = "Water"
	importColumnElectricity = "Electricity"
	importColumnFoodWaste   = "FoodWaste"
)

var exportHeaders = []string{"Date", "Hostel", "Water", "Electricity", "Food Waste", "Status", "Source"}

type usageRepository interface {
	ListHostels(ctx context.Context) ([]models.Hostel, error)
	FindHostel(ctx context.Context, id string) (*models.Hostel, error)
	CountHostels(ctx context.Context) (int, error)
	CreateHostel(ctx context.Context, hostel *models.Hostel) error
	DeleteHostel(ctx context.Context, id string) error
	CreateUsage(ctx context.Context, rows []models.ResourceUsage) error
	FindUsage(ctx context.Context, id string) (*models.ResourceUsage, error)
	ListPending(ctx context.Context) ([]models.ResourceUsage, error)
	ListRecent(ctx context.Context, limit int) ([]models.ResourceUsage, error)
	ListAll(ctx context.Context) ([]models.ResourceUsage, error)
	SetStatus(ctx context.Context, id string, status models.UsageStatus) error
	HostelHistory(ctx context.Context, hostelID string, limit int) ([]models.UsagePoint, error)
	CampusHistory(ctx context.Context, limit int) ([]models.UsagePoint, error)
	DashboardCounts(ctx context.Context) (*models.DashboardStats, error)
}

type alertRaiser interface {
	Raise(ctx context.Context, alert *models.Alert) error
}

// UsageService handles hostel resource readings: manual logs, approval,
// file imports, exports and analytics.
type UsageService struct {
	repo         usageRepository
	alerts       alertRaiser
	audit        auditRecorder
	cache        *CacheService
	validator    *validator.Validate
	logger       *zap.Logger
	loc          *time.Location
	dashboardTTL time.Duration
	now          func() time.Time
}

// NewUsageService constructs the service.
func NewUsageService(repo usageRepository, alerts alertRaiser, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger, loc *time.Location, dashboardTTL time.Duration) *UsageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &UsageService{
		repo:         repo,
		alerts:       alerts,
		audit:        audit,
		cache:        cache,
		validator:    validate,
		logger:       logger,
		loc:          loc,
		dashboardTTL: dashboardTTL,
		now:          time.Now,
	}
}

// SubmitLogs stores manual readings as Pending and returns immediate
// insights for readings well over their ceilings.
func (s *UsageService) SubmitLogs(ctx context.Context, submitterID string, req models.DailyLogsRequest) (*models.DailyLogsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid usage logs")
	}

	hostels := make(map[string]*models.Hostel)
	rows := make([]models.ResourceUsage, 0, len(req.Logs))
	for _, entry := range req.Logs {
		hostel, ok := hostels[entry.HostelID]
		if !ok {
			var err error
			if hostel, err = s.repo.FindHostel(ctx, entry.HostelID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown hostel %s", entry.HostelID))
				}
				return nil, appErrors.Internal(err, "failed to load hostel")
			}
			hostels[entry.HostelID] = hostel
		}

		date := CampusDay(s.now(), s.loc)
		if entry.Date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", entry.Date, s.loc)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
			}
			date = parsed
		}

		submitter := submitterID
		rows = append(rows, models.ResourceUsage{
			HostelID:    hostel.ID,
			HostelName:  hostel.Name,
			Date:        date,
			Water:       entry.Water,
			Electricity: entry.Electricity,
			FoodWaste:   entry.FoodWaste,
			Status:      models.UsagePending,
			Source:      models.UsageSourceManual,
			SubmittedBy: &submitter,
		})
	}

	if err := s.repo.CreateUsage(ctx, rows); err != nil {
		return nil, appErrors.Internal(err, "failed to save usage logs")
	}
	s.usageChanged(ctx)

	result := &models.DailyLogsResult{Saved: len(rows), Insights: make([]string, 0)}
	for _, row := range rows {
		if insight := UsageInsight(hostels[row.HostelID].Residents, row.Reading()); insight != "" {
			result.Insights = append(result.Insights, row.HostelName+": "+insight)
		}
	}
	return result, nil
}

// Pending lists readings awaiting approval.
func (s *UsageService) Pending(ctx context.Context) ([]models.ResourceUsage, error) {
	rows, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending logs")
	}
	return rows, nil
}

// Decide approves or rejects a pending reading. Approval runs the analyzer.
func (s *UsageService) Decide(ctx context.Context, id string, req models.ApproveUsageRequest) (*models.ResourceUsage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be Approved or Rejected")
	}
	usage, err := s.repo.FindUsage(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Usage log not found")
		}
		return nil, appErrors.Internal(err, "failed to load usage log")
	}
	if err := s.repo.SetStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "usage log already decided")
		}
		return nil, appErrors.Internal(err, "failed to update usage log")
	}
	usage.Status = req.Status
	s.usageChanged(ctx)

	if req.Status == models.UsageApproved {
		s.analyze(ctx, usage.HostelID, usage.Reading())
	}
	return usage, nil
}

// Import reads a CSV or XLSX file with HostelName, Date, Water, Electricity
// and FoodWaste columns. Rows naming an unknown hostel or carrying malformed
// values are skipped. Stored rows are Pending and analysed immediately.
func (s *UsageService) Import(ctx context.Context, submitterID, filename string, r io.Reader) (*models.ImportResult, error) {
	var (
		data export.Dataset
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		data, err = export.ReadCSV(r)
	case ".xlsx":
		data, err = export.ReadXLSX(r)
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFileType, "upload a .csv or .xlsx file")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read usage file")
	}

	hostels, err := s.repo.ListHostels(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list hostels")
	}
	byName := make(map[string]models.Hostel, len(hostels))
	for _, h := range hostels {
		byName[h.Name] = h
	}

	source := filepath.Base(filename)
	result := &models.ImportResult{}
	rows := make([]models.ResourceUsage, 0, len(data.Rows))
	for _, record := range data.Rows {
		hostel, ok := byName[strings.TrimSpace(record[importColumnHostel])]
		if !ok {
			result.Skipped++
			continue
		}
		row, err := s.parseImportRow(record)
		if err != nil {
			s.logger.Debug("skipping usage row", zap.String("file", source), zap.Error(err))
			result.Skipped++
			continue
		}
		row.HostelID, row.HostelName = hostel.ID, hostel.Name
		row.Status, row.Source, row.SubmittedBy = models.UsagePending, source, optionalID(submitterID)
		rows = append(rows, row)
	}

	if err := s.repo.CreateUsage(ctx, rows); err != nil {
		return nil, appErrors.Internal(err, "failed to save imported usage")
	}
	result.Processed = len(rows)
	if len(rows) > 0 {
		s.usageChanged(ctx)
	}

	for _, row := range rows {
		h := byName[row.HostelName]
		result.Alerts += s.raiseFindings(ctx, &h, row.Reading())
	}

	s.recordImport(ctx, submitterID, source, result)
	s.logger.Info("usage file imported", zap.String("file", source), zap.Int("processed", result.Processed), zap.Int("skipped", result.Skipped), zap.Int("alerts", result.Alerts))
	return result, nil
}

func (s *UsageService) parseImportRow(record map[string]string) (models.ResourceUsage, error) {
	date, err := export.ParseDate(record[importColumnDate], s.loc)
	if err != nil {
		return models.ResourceUsage{}, err
	}
	var values [3]float64
	for i, column := range []string{importColumnWater, importColumnElectricity, importColumnFoodWaste} {
		raw := strings.TrimSpace(record[column])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil || v < 0 {
			return models.ResourceUsage{}, fmt.Errorf("column %s: invalid value %q", column, raw)
		}
		values[i] = v
	}
	return models.ResourceUsage{Date: date, Water: values[0], Electricity: values[1], FoodWaste: values[2]}, nil
}

// Export renders every reading as CSV, XLSX or PDF.
func (s *UsageService) Export(ctx context.Context, format string) ([]byte, string, string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv, xlsx or pdf")
	}
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, "", "", appErrors.Internal(err, "failed to load usage")
	}

	data := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Date":        row.Date.Format("2006-01-02"),
			"Hostel":      row.HostelName,
			"Water":       formatQuantity(row.Water),
			"Electricity": formatQuantity(row.Electricity),
			"Food Waste":  formatQuantity(row.FoodWaste),
			"Status":      string(row.Status),
			"Source":      row.Source,
		})
	}

	var body []byte
	switch f {
	case export.FormatXLSX:
		body, err = export.NewXLSXExporter("Consumption Report").Render(data)
	case export.FormatPDF:
		body, err = export.NewPDFExporter().Render(data, "Campus Resource Report")
	default:
		body, err = export.NewCSVExporter().Render(data)
	}
	if err != nil {
		return nil, "", "", appErrors.Internal(err, "failed to render usage report")
	}
	return body, "campus-resource-report." + string(f), f.ContentType(), nil
}

// Analytics returns usage history newest first with the change between the
// two latest points. An empty hostelID aggregates the campus by date.
func (s *UsageService) Analytics(ctx context.Context, hostelID string) (*models.UsageAnalytics, error) {
	key := cacheKeyAnalyticsPrefix + "campus"
	if hostelID != "" {
		key = cacheKeyAnalyticsPrefix + hostelID
	}
	analytics, err := cached(ctx, s.cache, key, s.dashboardTTL, func(ctx context.Context) (*models.UsageAnalytics, error) {
		var (
			points []models.UsagePoint
			err    error
		)
		if hostelID != "" {
			points, err = s.repo.HostelHistory(ctx, hostelID, analyticsLimit)
		} else {
			points, err = s.repo.CampusHistory(ctx, analyticsLimit)
		}
		if err != nil {
			return nil, err
		}
		return &models.UsageAnalytics{History: points, Comparison: compareLatest(points)}, nil
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load usage analytics")
	}
	return analytics, nil
}

func compareLatest(points []models.UsagePoint) *models.UsageComparison {
	if len(points) < 2 {
		return nil
	}
	latest, previous := points[0], points[1]
	return &models.UsageComparison{
		WaterDiff: percentChange(latest.Water, previous.Water),
		ElecDiff:  percentChange(latest.Electricity, previous.Electricity),
		WasteDiff: percentChange(latest.FoodWaste, previous.FoodWaste),
	}
}

func percentChange(latest, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (latest - previous) / previous * 100
}

// Recent returns the newest readings.
func (s *UsageService) Recent(ctx context.Context) ([]models.ResourceUsage, error) {
	rows, err := s.repo.ListRecent(ctx, recentUsageLimit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list recent logs")
	}
	return rows, nil
}

// Hostels lists hostels with resident counts.
func (s *UsageService) Hostels(ctx context.Context) ([]models.Hostel, error) {
	hostels, err := s.repo.ListHostels(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list hostels")
	}
	return hostels, nil
}

// CreateHostel registers a hostel, up to maxHostels.
func (s *UsageService) CreateHostel(ctx context.Context, req models.CreateHostelRequest) (*models.Hostel, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Warden = strings.TrimSpace(req.Warden)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Hostel name and capacity are required")
	}
	count, err := s.repo.CountHostels(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count hostels")
	}
	if count >= maxHostels {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Hostel limit (%d) reached.", maxHostels))
	}

	hostel := &models.Hostel{Name: req.Name, Capacity: req.Capacity}
	if req.Warden != "" {
		hostel.Warden = &req.Warden
	}
	if err := s.repo.CreateHostel(ctx, hostel); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Hostel already exists")
		}
		return nil, appErrors.Internal(err, "failed to create hostel")
	}
	return hostel, nil
}

// DeleteHostel removes a hostel together with its readings.
func (s *UsageService) DeleteHostel(ctx context.Context, id string) error {
	if err := s.repo.DeleteHostel(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Hostel not found")
		}
		return appErrors.Internal(err, "failed to delete hostel")
	}
	s.usageChanged(ctx)
	return nil
}

// Dashboard returns the operations overview.
func (s *UsageService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := cached(ctx, s.cache, cacheKeyDashboard, s.dashboardTTL, s.repo.DashboardCounts)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load dashboard stats")
	}
	return stats, nil
}

func (s *UsageService) analyze(ctx context.Context, hostelID string, reading models.UsageReading) {
	hostel, err := s.repo.FindHostel(ctx, hostelID)
	if err != nil {
		s.logger.Warn("usage analysis skipped", zap.String("hostel_id", hostelID), zap.Error(err))
		return
	}
	s.raiseFindings(ctx, hostel, reading)
}

func (s *UsageService) raiseFindings(ctx context.Context, hostel *models.Hostel, reading models.UsageReading) int {
	raised := 0
	for _, f := range AnalyzeUsage(hostel.Name, hostel.Residents, reading) {
		hostelID := hostel.ID
		alert := &models.Alert{HostelID: &hostelID, Type: f.AlertType(), Severity: f.Severity, Message: f.Message}
		if err := s.alerts.Raise(ctx, alert); err != nil {
			s.logger.Warn("failed to raise usage alert", zap.String("hostel_id", hostelID), zap.Error(err))
			continue
		}
		raised++
	}
	return raised
}

func (s *UsageService) usageChanged(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeyDashboard, cacheKeyInsights, cachePatternAnalytics)
}

func (s *UsageService) recordImport(ctx context.Context, userID, source string, result *models.ImportResult) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{UserID: optionalID(userID), Action: models.AuditActionUsageImport, Resource: "resource_usage", ResourceID: &source}
	entry.NewValues, _ = json.Marshal(result)
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

// optionalID maps an empty id to NULL. Imports run from the CLI have no
// submitting user.
func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
