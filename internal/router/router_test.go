package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	adminhandler "github.com/jwalitptl/care-api/internal/handler/admin"
	authhandler "github.com/jwalitptl/care-api/internal/handler/auth"
	filehandler "github.com/jwalitptl/care-api/internal/handler/file"
	"github.com/jwalitptl/care-api/internal/handler/health"
	medicinehandler "github.com/jwalitptl/care-api/internal/handler/medicine"
	patienthandler "github.com/jwalitptl/care-api/internal/handler/patient"
	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	"github.com/jwalitptl/care-api/internal/router"
	adminsvc "github.com/jwalitptl/care-api/internal/service/admin"
	authsvc "github.com/jwalitptl/care-api/internal/service/auth"
	filesvc "github.com/jwalitptl/care-api/internal/service/file"
	medicinesvc "github.com/jwalitptl/care-api/internal/service/medicine"
	patientsvc "github.com/jwalitptl/care-api/internal/service/patient"
	"github.com/jwalitptl/care-api/pkg/auth"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/security"
)

const ts = "Tue Apr 23 2024 01:53:24 GMT+0300 (GMT+03:00)"

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	outbox *memory.OutboxRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test adjust the router config before the
// engine is built.
func newTestServerWith(t *testing.T, configure func(*router.RouterConfig)) *testServer {
	t.Helper()

	registry := prometheus.NewRegistry()
	m := metrics.New("care_test", registry)

	users := memory.NewUserRepository()
	outbox := memory.NewOutboxRepository()
	patients := memory.NewPatientRepository(outbox)

	jwtSvc := auth.NewJWTService(auth.Config{Secret: "test-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour})
	authSvc := authsvc.NewService(users, jwtSvc, auth.NewMemoryRevocationStore(),
		security.NewBcryptHasher(bcrypt.MinCost), authsvc.LockoutPolicy{MaxAttempts: 5, Duration: time.Minute}, m)
	catalog := medicinesvc.NewService(memory.NewMedicineRepository(), time.Minute)
	patientSvc := patientsvc.NewService(patients, catalog, m)

	authMW := middleware.NewAuthMiddleware(authSvc)
	config := router.RouterConfig{
		Mode:          gin.TestMode,
		CORSConfig:    middleware.DefaultCORSConfig(nil),
		SizeLimit:     middleware.DefaultSizeLimitConfig(1 << 20),
		Security:      middleware.DefaultSecurityConfig(),
		MetricsPrefix: "care_test",
		Registry:      registry,
	}
	if configure != nil {
		configure(&config)
	}

	r := router.NewRouter(authMW, router.Handlers{
		Health:    health.NewHandler(nil),
		Auth:      authhandler.NewHandler(authSvc, authMW.Authenticate()),
		Patients:  patienthandler.NewHandler(patientSvc),
		Medicines: medicinehandler.NewHandler(catalog),
		Files:     filehandler.NewHandler(filesvc.NewService(memory.NewFileRepository(), patientSvc)),
		Admin:     adminhandler.NewHandler(adminsvc.NewService(users, patientSvc)),
	}, config)
	r.Setup()

	return &testServer{engine: r.Engine(), outbox: outbox}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

// signup registers and logs in a caregiver and returns the access token.
func (s *testServer) signup(t *testing.T, email string) string {
	t.Helper()

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":      email,
		"password":   "correct-horse",
		"first_name": "Elif",
		"last_name":  "Demir",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, code)

	var tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.NotEmpty(t, tokens.Access)
	return tokens.Access
}

func (s *testServer) createPatient(t *testing.T, token, citizenID string) {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{
		"patient_personal_info": map[string]interface{}{
			"section_1": map[string]string{"firstname": "Ayşe", "lastname": "Yılmaz", "citizenID": citizenID},
		},
	})
	require.Equal(t, http.StatusCreated, code, env)
}

func aspirin(patientID string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "add_scheduled_medicine",
		"patient_id": patientID,
		"medicine_data": map[string]interface{}{
			"name":             "Aspirin",
			"category":         "Analgesic",
			"selected_periods": map[string]bool{"morning": false, "noon": false, "evening": false},
		},
	}
}

func TestMedicationLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "nurse@example.com")
	s.createPatient(t, token, "10000000146")

	code, env := s.do(t, http.MethodPut, "/api/v1/patients", token, aspirin("10000000146"))
	require.Equal(t, http.StatusCreated, code, env)

	var entry struct {
		ID   string `json:"medicine_id"`
		Data struct {
			Periods       map[string]bool                       `json:"selected_periods"`
			PreparedDates map[string]bool                       `json:"prepared_dates"`
			GivenDates    map[string]map[string]json.RawMessage `json:"given_dates"`
		} `json:"medicine_data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Len(t, entry.ID, 64)
	assert.True(t, entry.Data.Periods["morning"])
	assert.Empty(t, entry.Data.PreparedDates)
	assert.Len(t, entry.Data.GivenDates, 3)

	code, env = s.do(t, http.MethodPut, "/api/v1/patients", token, aspirin("10000000146"))
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "duplicate", env.Error.Kind)

	given := map[string]interface{}{
		"type":        "add_given_medicine",
		"patient_id":  "10000000146",
		"medicine_id": entry.ID,
		"period":      "morning",
		"today_date":  ts,
	}
	code, env = s.do(t, http.MethodPut, "/api/v1/patients", token, given)
	require.Equal(t, http.StatusOK, code, env)

	var afterGiven struct {
		Data struct {
			GivenDates map[string]map[string]struct {
				Timestamp string `json:"timestamp"`
				Given     bool   `json:"given"`
			} `json:"given_dates"`
		} `json:"medicine_data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &afterGiven))
	assert.True(t, afterGiven.Data.GivenDates["morning"]["23-04-24"].Given)
	assert.Equal(t, ts, afterGiven.Data.GivenDates["morning"]["23-04-24"].Timestamp)

	given["today_date"] = "2024-04-23"
	code, env = s.do(t, http.MethodPut, "/api/v1/patients", token, given)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "malformed_timestamp", env.Error.Kind)

	code, env = s.do(t, http.MethodDelete, "/api/v1/patients", token, map[string]interface{}{
		"type":         "delete_medicines",
		"patient_id":   "10000000146",
		"medicine_ids": []string{entry.ID, "missing"},
	})
	require.Equal(t, http.StatusOK, code, env)
	var deleted struct {
		Deleted []string `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, []string{entry.ID}, deleted.Deleted)

	code, env = s.do(t, http.MethodGet, "/api/v1/medicines", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Aspirin")

	var types []string
	for _, e := range s.outbox.Events() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		"patient.create",
		"patient.add_scheduled_medicine",
		"patient.add_given_medicine",
		"patient.delete_medicines",
	}, types)
}

func TestPatientAccessIsScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	owner := s.signup(t, "owner@example.com")
	other := s.signup(t, "other@example.com")
	s.createPatient(t, owner, "20000000000")

	code, env := s.do(t, http.MethodGet, "/api/v1/patients?patient_id=20000000000", other, nil)
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "forbidden", env.Error.Kind)

	code, env = s.do(t, http.MethodGet, "/api/v1/patients", other, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))

	code, _ = s.do(t, http.MethodGet, "/api/v1/patients?patient_id=20000000000", owner, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestUnknownUpdateTypeIsRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "nurse@example.com")

	code, env := s.do(t, http.MethodPut, "/api/v1/patients", token, map[string]string{
		"type":       "rename_everything",
		"patient_id": "1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation", env.Error.Kind)
}

func TestAuthRequiredAndLogoutRevokes(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Kind)

	token := s.signup(t, "nurse@example.com")

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/verify", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/verify", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminRoutesRequireAccessAdmin(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "nurse@example.com")

	code, env := s.do(t, http.MethodGet, "/api/v1/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "forbidden", env.Error.Kind)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "care_test_http_requests_total")
}

func TestEndDateAcceptsJavaScriptDate(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "nurse@example.com")
	s.createPatient(t, token, "30000000000")

	body := aspirin("30000000000")
	body["medicine_data"].(map[string]interface{})["end_date"] = "Tue Apr 23 2024 01:53:24 GMT+0300"
	code, env := s.do(t, http.MethodPut, "/api/v1/patients", token, body)
	require.Equal(t, http.StatusCreated, code, env)

	var entry struct {
		Data struct {
			EndDate string `json:"end_date"`
		} `json:"medicine_data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, "2024-04-23", entry.Data.EndDate)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	s := newTestServerWith(t, func(c *router.RouterConfig) {
		c.SizeLimit = middleware.DefaultSizeLimitConfig(64)
	})

	body := map[string]string{
		"email":      "nurse@example.com",
		"password":   "correct-horse-battery-staple",
		"first_name": "Elif",
		"last_name":  "Demir",
	}

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "too_large", env.Error.Kind)

	// Without a declared length the body is cut off while binding.
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var streamed envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &streamed))
	require.NotNil(t, streamed.Error)
	assert.Equal(t, "too_large", streamed.Error.Kind)
}

func TestRateLimitPerClient(t *testing.T) {
	s := newTestServerWith(t, func(c *router.RouterConfig) {
		c.RateLimit = middleware.RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2}
	})

	for i := 0; i < 2; i++ {
		code, _ := s.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
		require.Equal(t, http.StatusOK, code)
	}

	code, env := s.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limited", env.Error.Kind)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDIsEchoedOrReplaced(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set(middleware.HeaderXRequestID, "ward-3.round-17")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, "ward-3.round-17", w.Header().Get(middleware.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set(middleware.HeaderXRequestID, "bad id\nwith newline")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	rid := w.Header().Get(middleware.HeaderXRequestID)
	assert.NotEqual(t, "bad id\nwith newline", rid)
	assert.Len(t, rid, 36)
}
