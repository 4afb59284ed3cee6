package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/middleware"
	"github.com/noah-isme/campus-ops-api/internal/models"
)

const (
	testComplaintID = "5b0f8a1e-3c2d-4e6f-9a1b-2c3d4e5f6a7b"
	testUsageID     = "8d2e4f60-1a2b-4c3d-8e9f-0a1b2c3d4e5f"
	testHostelID    = "a3c5e7f9-2b4d-4f60-8a1c-3e5f7a9b1c2d"
	testAlertID     = "c7e9a1b3-5d7f-4a1c-9e3b-5d7f9a1b3c5e"
	testFoodLogID   = "e1f3a5b7-9c1d-4e3f-8a5b-7c9d1e3f5a7b"
	unsafeFoodLogID = "f2a4b6c8-0d2e-4f4a-9b6c-8d0e2f4a6b8c"
	missingID       = "00000000-0000-4000-8000-000000000000"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

// asUser stores claims the way the JWT middleware does.
func asUser(id string, role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role, Name: "Test " + string(role)})
		c.Next()
	}
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func newJSONRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = bytes.NewBufferString(v)
		default:
			raw, _ := json.Marshal(v)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, newJSONRequest(method, path, body))
	return rec
}
