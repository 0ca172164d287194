package consultation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telemed-api/internal/email"
	"github.com/jwalitptl/telemed-api/internal/fallback"
	consultationHandler "github.com/jwalitptl/telemed-api/internal/handler/consultation"
	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/audit"
	"github.com/jwalitptl/telemed-api/internal/service/availability"
	"github.com/jwalitptl/telemed-api/internal/service/consultation"
	"github.com/jwalitptl/telemed-api/internal/service/user"
	"github.com/jwalitptl/telemed-api/internal/store/memory"
	"github.com/jwalitptl/telemed-api/pkg/messaging"
	"github.com/jwalitptl/telemed-api/pkg/metrics"
	"github.com/jwalitptl/telemed-api/pkg/security"
)

type testAPI struct {
	users  *user.Service
	ledger *availability.Service
	svc    *consultation.Service
}

// newRouter serves the consultation routes with the given session already
// authenticated, bypassing the JWT middleware.
func (a *testAPI) newRouter(session *model.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/api/v1")
	group.Use(func(c *gin.Context) {
		c.Set("session", session)
		c.Next()
	})
	consultationHandler.NewHandler(a.svc).RegisterRoutes(group)
	return r
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := memory.New()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	users := user.NewService(dir, security.NewBcryptHasher(4))
	auditor := audit.NewService(dir, zerolog.Nop())
	ledger := availability.NewService(dir, messaging.Noop{}, auditor, m, zerolog.Nop())
	spool := fallback.NewSpool(memory.New())
	svc := consultation.NewService(dir, users, ledger, messaging.Noop{}, email.Noop(), auditor, spool, m, zerolog.Nop())
	return &testAPI{users: users, ledger: ledger, svc: svc}
}

func (a *testAPI) register(t *testing.T, role, name, specialty string) *model.Session {
	t.Helper()
	u, err := a.users.Register(context.Background(), &model.RegisterRequest{
		Name:      name,
		Email:     name + "@example.test",
		Password:  "secret123",
		Role:      role,
		Specialty: specialty,
	})
	require.NoError(t, err)
	return &model.Session{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestBookConsultationEndpoint(t *testing.T) {
	api := newTestAPI(t)
	doctor := api.register(t, "doctor", "alice", "General Practice")
	patient := api.register(t, "patient", "pat", "")
	require.NoError(t, api.ledger.Publish(context.Background(), doctor.UserID, "2026-09-01", []string{"09:00"}))

	r := api.newRouter(patient)
	w, body := doJSON(t, r, http.MethodPost, "/api/v1/consultations", map[string]string{
		"scheduledDate": "2026-09-01",
		"scheduledTime": "09:00",
		"reason":        "checkup",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Consultation booked successfully", body["message"])
	assert.NotEmpty(t, body["consultationId"])

	cons, ok := body["consultation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Booked", cons["status"])
	assert.Equal(t, doctor.UserID, cons["doctorId"])
	assert.Equal(t, body["consultationId"], cons["id"])
}

func TestBookConsultationDoctorForbidden(t *testing.T) {
	api := newTestAPI(t)
	doctor := api.register(t, "doctor", "alice", "General Practice")

	r := api.newRouter(doctor)
	w, body := doJSON(t, r, http.MethodPost, "/api/v1/consultations", map[string]string{
		"scheduledDate": "2026-09-01",
		"scheduledTime": "09:00",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "only patients can book consultations", body["error"])
}

func TestBookConsultationValidation(t *testing.T) {
	api := newTestAPI(t)
	patient := api.register(t, "patient", "pat", "")
	r := api.newRouter(patient)

	// Malformed date: validation error, not a matcher run.
	w, body := doJSON(t, r, http.MethodPost, "/api/v1/consultations", map[string]string{
		"scheduledDate": "tomorrow",
		"scheduledTime": "09:00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, body["error"])
}

func TestBookConsultationNoAvailability(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "doctor", "alice", "General Practice")
	patient := api.register(t, "patient", "pat", "")

	r := api.newRouter(patient)
	w, body := doJSON(t, r, http.MethodPost, "/api/v1/consultations", map[string]string{
		"scheduledDate": "2026-09-01",
		"scheduledTime": "09:00",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no doctor available for the selected time slot", body["error"])
}

func TestListConsultationsRoleScoped(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	doctor := api.register(t, "doctor", "alice", "General Practice")
	patient := api.register(t, "patient", "pat", "")
	other := api.register(t, "patient", "quinn", "")
	require.NoError(t, api.ledger.Publish(ctx, doctor.UserID, "2026-09-01", []string{"09:00"}))

	_, err := api.svc.Book(ctx, patient, &model.BookConsultationRequest{
		ScheduledDate: "2026-09-01", ScheduledTime: "09:00",
	})
	require.NoError(t, err)

	w, body := doJSON(t, api.newRouter(patient), http.MethodGet, "/api/v1/consultations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["consultations"], 1)

	w, body = doJSON(t, api.newRouter(other), http.MethodGet, "/api/v1/consultations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["consultations"], 0)

	w, body = doJSON(t, api.newRouter(doctor), http.MethodGet, "/api/v1/consultations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["consultations"], 1)
}

func TestGetConsultationAccess(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	doctor := api.register(t, "doctor", "alice", "General Practice")
	patient := api.register(t, "patient", "pat", "")
	stranger := api.register(t, "patient", "quinn", "")
	require.NoError(t, api.ledger.Publish(ctx, doctor.UserID, "2026-09-01", []string{"09:00"}))

	result, err := api.svc.Book(ctx, patient, &model.BookConsultationRequest{
		ScheduledDate: "2026-09-01", ScheduledTime: "09:00",
	})
	require.NoError(t, err)
	id := result.Consultation.ID

	w, _ := doJSON(t, api.newRouter(patient), http.MethodGet, "/api/v1/consultations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, api.newRouter(doctor), http.MethodGet, "/api/v1/consultations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, api.newRouter(stranger), http.MethodGet, "/api/v1/consultations/"+id, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access denied", body["error"])

	w, _ = doJSON(t, api.newRouter(patient), http.MethodGet, "/api/v1/consultations/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	doctor := api.register(t, "doctor", "alice", "General Practice")
	patient := api.register(t, "patient", "pat", "")
	require.NoError(t, api.ledger.Publish(ctx, doctor.UserID, "2026-09-01", []string{"09:00"}))

	result, err := api.svc.Book(ctx, patient, &model.BookConsultationRequest{
		ScheduledDate: "2026-09-01", ScheduledTime: "09:00",
	})
	require.NoError(t, err)
	id := result.Consultation.ID

	// Unknown literal is a validation failure.
	w, body := doJSON(t, api.newRouter(doctor), http.MethodPut, "/api/v1/consultations/"+id+"/status",
		map[string]string{"status": "Cancelled"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, body["error"])

	// Skipping a step is a conflict.
	w, _ = doJSON(t, api.newRouter(doctor), http.MethodPut, "/api/v1/consultations/"+id+"/status",
		map[string]string{"status": "Completed"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = doJSON(t, api.newRouter(doctor), http.MethodPut, "/api/v1/consultations/"+id+"/status",
		map[string]string{"status": "In Progress"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Status updated successfully", body["message"])
	cons := body["consultation"].(map[string]interface{})
	assert.Equal(t, "In Progress", cons["status"])

	// Patients cannot drive the lifecycle at all.
	w, _ = doJSON(t, api.newRouter(patient), http.MethodPut, "/api/v1/consultations/"+id+"/status",
		map[string]string{"status": "Completed"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
