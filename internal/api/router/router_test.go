package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwell-health/practice-platform/internal/absence"
	"github.com/mindwell-health/practice-platform/internal/catalog"
	"github.com/mindwell-health/practice-platform/internal/collision"
	"github.com/mindwell-health/practice-platform/internal/directory"
	"github.com/mindwell-health/practice-platform/internal/schedule"
	"github.com/mindwell-health/practice-platform/internal/therapy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

const adminSecret = "router-test-secret"

type env struct {
	handler     http.Handler
	tenantID    uuid.UUID
	counselorID uuid.UUID
	clientID    uuid.UUID
	serviceID   uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := logging.Default()

	e := &env{
		tenantID:    uuid.New(),
		counselorID: uuid.New(),
		clientID:    uuid.New(),
		serviceID:   uuid.New(),
	}

	dir := directory.NewMemoryDirectory()
	dir.Put(&directory.Profile{ID: e.counselorID, TenantID: e.tenantID, Role: directory.RoleCounselor, Email: "c@x.test"})
	dir.Put(&directory.Profile{ID: e.clientID, TenantID: e.tenantID, Role: directory.RoleClient, Email: "p@x.test"})

	store := catalog.NewMemoryStore()
	store.PutService(&catalog.ServiceDefinition{
		ID: e.serviceID, TenantID: e.tenantID, Code: "CBT_STANDARD",
		TotalPrice: decimal.NewFromInt(100), SessionCount: 3,
		FormulaType: catalog.FormulaStandard, Gaps: []int{7},
	})
	store.PutService(&catalog.ServiceDefinition{
		ID: uuid.New(), TenantID: e.tenantID, Code: "DISCHARGE_SUMMARY",
		TotalPrice: decimal.NewFromInt(50), SessionCount: 1,
		FormulaType: catalog.FormulaStandard, Gaps: []int{7},
		IsReport: true, IsDischarge: true,
	})
	store.PutFeeReference(&catalog.FeeReference{TenantID: e.tenantID, TaxPercent: 10, SystemPercent: 40, CounselorPercent: 60})

	repo := therapy.NewInMemoryRepository()
	svc := therapy.NewService(therapy.ServiceParams{
		Repo:          repo,
		Catalog:       store,
		Directory:     dir,
		Generator:     schedule.NewGenerator(store, logger),
		Detector:      collision.NewDetector(repo, collision.DefaultConfig()),
		DischargeCode: "DISCHARGE_SUMMARY",
		Logger:        logger,
	})

	absSvc := absence.NewService(absence.ServiceParams{
		Store:       absence.NewMemoryStore(),
		Rescheduler: absence.NewRescheduler(repo, store, logger),
		MinDays:     21,
		Logger:      logger,
	})

	e.handler = New(&Config{
		Logger:          logger,
		TherapyHandler:  therapy.NewHandler(svc, logger),
		AbsenceHandler:  absence.NewHandler(absSvc, logger),
		AdminAuthSecret: adminSecret,
	})
	return e
}

func (e *env) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("X-Tenant-Id", e.tenantID.String())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(adminSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouterHealth(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouterRequiresTenantHeader(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/therapy-requests?counselor_id="+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req.Header.Set("X-Tenant-Id", "not-a-uuid")
	w = httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterBookingFlow(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(therapy.CreateRequestBody{
		CounselorID: e.counselorID,
		ClientID:    e.clientID,
		ServiceID:   e.serviceID,
		StartDate:   "2026-04-06",
		StartTime:   "10:00",
		Format:      "online",
	})
	w := e.do(t, http.MethodPost, "/therapy-requests", body, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp therapy.RequestResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Sessions, 4) // 3 regular + discharge

	w = e.do(t, http.MethodGet, "/therapy-requests/"+resp.Request.ID.String(), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPut, "/sessions/"+resp.Sessions[0].ID.String(), []byte(`{"start_time":"15:00"}`), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterAdminAuth(t *testing.T) {
	e := newEnv(t)

	payload := []byte(fmt.Sprintf(
		`{"counselor_id":%q,"start_date":"2026-04-01","end_date":"2026-04-21"}`, e.counselorID))

	w := e.do(t, http.MethodPost, "/admin/absences", payload, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/admin/absences", payload, map[string]string{"Authorization": adminToken(t)})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodGet, "/admin/counselors/"+e.counselorID.String()+"/absences", nil,
		map[string]string{"Authorization": adminToken(t)})
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, 1, list.Count)
}
