package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

type fakeAuthService struct {
	profileFor string
}

func (f *fakeAuthService) Register(_ context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	return &models.UserInfo{Email: req.Email}, nil
}

func (f *fakeAuthService) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return nil, appErrors.ErrInvalidCredentials
}

func (f *fakeAuthService) Profile(_ context.Context, userID string) (*models.UserProfile, error) {
	f.profileFor = userID
	return &models.UserProfile{}, nil
}

type fakeUserService struct {
	listCaller string
	listRole   string
}

func (f *fakeUserService) Pending(context.Context) ([]models.User, error) { return nil, nil }

func (f *fakeUserService) List(_ context.Context, callerID, role string) ([]models.User, error) {
	f.listCaller, f.listRole = callerID, role
	return []models.User{}, nil
}

func (f *fakeUserService) Approve(_ context.Context, _, userID string, _ models.ApproveUserRequest) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (f *fakeUserService) Reject(_ context.Context, _, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (f *fakeUserService) ManageAccess(_ context.Context, _, userID string, _ models.AccessRequest) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (f *fakeUserService) Stats(context.Context) (*models.UserStats, error) {
	return &models.UserStats{}, nil
}

func (f *fakeUserService) AuditTrail(context.Context, string, int) ([]models.AuditLog, error) {
	return nil, nil
}

type fakeLibraryService struct {
	bookedBy string
	bookReq  models.BookSlotRequest
	bookErr  error
	deleted  string
}

func (f *fakeLibraryService) List(context.Context) ([]models.Library, error) {
	return []models.Library{{ID: "lib-1", Name: "Central", TotalSeats: 40, BookedSeats: 39}}, nil
}

func (f *fakeLibraryService) Create(_ context.Context, _ string, req models.CreateLibraryRequest) (*models.Library, error) {
	return &models.Library{ID: "lib-2", Name: req.Name, TotalSeats: req.TotalSeats}, nil
}

func (f *fakeLibraryService) Delete(_ context.Context, _, id string) error {
	f.deleted = id
	return nil
}

func (f *fakeLibraryService) MyBooking(context.Context, string) (*models.LibraryBooking, error) {
	return nil, nil
}

func (f *fakeLibraryService) Book(_ context.Context, userID string, req models.BookSlotRequest) (*models.LibraryBooking, error) {
	f.bookedBy, f.bookReq = userID, req
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &models.LibraryBooking{ID: "bk-1", UserID: userID, LibraryID: &req.LibraryID, Status: models.BookingActive}, nil
}

func (f *fakeLibraryService) Cancel(_ context.Context, userID string) (*models.LibraryBooking, error) {
	return &models.LibraryBooking{ID: "bk-1", UserID: userID, Status: models.BookingCancelled}, nil
}

type fakeAlertService struct {
	status   string
	resolved string
	testReq  models.TestAlertRequest
}

func (f *fakeAlertService) List(_ context.Context, status string) ([]models.Alert, error) {
	f.status = status
	return []models.Alert{}, nil
}

func (f *fakeAlertService) Resolve(_ context.Context, id string) error {
	if id == missingID {
		return appErrors.Clone(appErrors.ErrNotFound, "Alert not found")
	}
	f.resolved = id
	return nil
}

func (f *fakeAlertService) Test(_ context.Context, req models.TestAlertRequest) (int, error) {
	f.testReq = req
	return 3, nil
}

type fakeEventService struct {
	bookedBy string
	bookReq  models.BookEventRequest
	created  models.CreateEventRequest
}

func (f *fakeEventService) List(context.Context) ([]models.Event, error) {
	return []models.Event{{ID: "ev-1", Title: "Tech Fest"}}, nil
}

func (f *fakeEventService) Create(_ context.Context, req models.CreateEventRequest) (*models.Event, error) {
	f.created = req
	return &models.Event{ID: "ev-2", Title: req.Title}, nil
}

func (f *fakeEventService) Book(_ context.Context, userID string, req models.BookEventRequest) (*models.EventBooking, error) {
	f.bookedBy, f.bookReq = userID, req
	return &models.EventBooking{ID: "eb-1", EventID: req.EventID, UserID: userID, PassCode: "PASS-" + userID}, nil
}

func (f *fakeEventService) MyBookings(context.Context, string) ([]models.EventBooking, error) {
	return []models.EventBooking{}, nil
}

func (f *fakeEventService) Attendees(_ context.Context, eventID string) ([]models.EventBooking, error) {
	if eventID == missingID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Event not found")
	}
	return []models.EventBooking{}, nil
}

type fakeFoodService struct {
	submitted models.CreateFoodLogRequest
	actor     models.Actor
	actionID  string
	action    models.FoodAction
}

func (f *fakeFoodService) Submit(_ context.Context, actor models.Actor, req models.CreateFoodLogRequest) (*models.FoodLog, error) {
	f.actor, f.submitted = actor, req
	return &models.FoodLog{ID: testFoodLogID, HostelID: req.HostelID, MealType: req.MealType, SafetyStatus: models.FoodSafe, Action: models.FoodPending}, nil
}

func (f *fakeFoodService) List(context.Context) ([]models.FoodLog, error) {
	return []models.FoodLog{{ID: testFoodLogID, MealType: models.MealLunch}}, nil
}

func (f *fakeFoodService) UpdateAction(_ context.Context, _ models.Actor, id string, req models.FoodActionRequest) (*models.FoodLog, error) {
	switch {
	case id == missingID:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Log not found")
	case id == unsafeFoodLogID && req.Action == models.FoodDonated:
		return nil, appErrors.Clone(appErrors.ErrUnsafeDonation, "")
	}
	f.actionID, f.action = id, req.Action
	return &models.FoodLog{ID: id, Action: req.Action}, nil
}

type fakeInsightService struct {
	audience models.InsightAudience
	calls    int
}

func (f *fakeInsightService) Insights(_ context.Context, audience models.InsightAudience) ([]models.Insight, error) {
	f.audience = audience
	f.calls++
	return []models.Insight{{Resource: "Water", Status: models.InsightNormal}}, nil
}

type fakeRooms struct {
	room string
}

func (f *fakeRooms) Serve(w http.ResponseWriter, _ *http.Request, room string) error {
	f.room = room
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

func (f *fakeRooms) RoomSize(string) int { return 0 }

// staticTokens accepts "<role>-token" bearer values.
type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type recordingAudit struct {
	entries []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return nil
}
