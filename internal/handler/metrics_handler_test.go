package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/internal/service"
)

func TestMetricsHandlerReadyReportsFailingCheck(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	r := newTestRouter()
	r.GET("/ready", h.Ready)

	rec := doJSON(r, http.MethodGet, "/ready", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsHandlerReadyWithoutChecks(t *testing.T) {
	h := NewMetricsHandler(nil, nil)
	r := newTestRouter()
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(r, http.MethodGet, "/metrics", nil).Code)
}

func TestMetricsHandlerExposesDomainCounters(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.LibraryBooking("booked")
	metrics.UsageAlert(models.SeverityHigh)
	h := NewMetricsHandler(metrics, nil)
	r := newTestRouter()
	r.GET("/metrics", h.Prometheus)

	rec := doJSON(r, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "library_bookings_total"), rec.Body.String())
}
