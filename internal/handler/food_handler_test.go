package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

func newFoodRouter(svc *fakeFoodService) http.Handler {
	h := NewFoodHandler(svc)
	r := newTestRouter(asUser("emp-1", models.RoleEmployee))
	r.POST("/food", h.Submit)
	r.GET("/food", h.List)
	r.PUT("/food/:id/action", h.UpdateAction)
	return r
}

func TestFoodHandlerSubmit(t *testing.T) {
	svc := &fakeFoodService{}
	r := newFoodRouter(svc)

	rec := doJSON(r, http.MethodPost, "/food", map[string]interface{}{
		"hostel_id": testHostelID,
		"meal_type": "Dinner",
		"prepared":  50,
		"served":    45,
		"cooked_at": "2024-03-10T19:00:00Z",
		"stored_at": "2024-03-10T21:30:00Z",
		"edibility": "Edible",
		"items":     []map[string]interface{}{{"name": "Rice", "quantity": 20}},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "emp-1", svc.actor.ID)
	assert.Equal(t, models.MealDinner, svc.submitted.MealType)
	assert.Equal(t, 2, svc.submitted.StoredAt.Hour()-svc.submitted.CookedAt.Hour())
	require.Len(t, svc.submitted.Items, 1)
	var log models.FoodLog
	decodeData(t, rec, &log)
	assert.Equal(t, testFoodLogID, log.ID)
}

func TestFoodHandlerSubmitRejectsMalformedBody(t *testing.T) {
	svc := &fakeFoodService{}
	r := newFoodRouter(svc)

	rec := doJSON(r, http.MethodPost, "/food", `{"prepared": "lots"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.actor.ID)
}

func TestFoodHandlerList(t *testing.T) {
	r := newFoodRouter(&fakeFoodService{})

	rec := doJSON(r, http.MethodGet, "/food", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var logs []models.FoodLog
	decodeData(t, rec, &logs)
	assert.Len(t, logs, 1)
}

func TestFoodHandlerUpdateAction(t *testing.T) {
	cases := []struct {
		name   string
		id     string
		action string
		status int
		code   string
	}{
		{"composted", testFoodLogID, "Composted", http.StatusOK, ""},
		{"unsafe donation", unsafeFoodLogID, "Donated", http.StatusForbidden, "UNSAFE_DONATION"},
		{"missing log", missingID, "Discarded", http.StatusNotFound, appErrors.ErrNotFound.Code},
		{"malformed id", "log-9", "Discarded", http.StatusBadRequest, appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeFoodService{}
			r := newFoodRouter(svc)

			rec := doJSON(r, http.MethodPut, "/food/"+tc.id+"/action", map[string]string{"action": tc.action})

			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.code != "" {
				assert.Equal(t, tc.code, decodeEnvelope(t, rec).Error.Code)
				assert.Empty(t, svc.actionID)
			}
		})
	}
}
