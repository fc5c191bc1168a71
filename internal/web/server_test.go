package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/obfuscator/internal/config"
	"github.com/JonMunkholm/obfuscator/internal/service"
	"github.com/JonMunkholm/obfuscator/internal/storage"
)

const peopleCSV = "student_id,name,email_address\n" +
	"1234,John Smith,j.smith@email.com\n" +
	"5678,Jane Doe,j.doe@email.com\n"

type memAuditor struct{ events []service.Event }

func (a *memAuditor) Record(_ context.Context, e service.Event) error {
	a.events = append(a.events, e)
	return nil
}

func (a *memAuditor) Recent(_ context.Context, limit int) ([]service.Event, error) {
	if limit > len(a.events) {
		limit = len(a.events)
	}
	return a.events[:limit], nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, MaxBodySize: 4096, ShutdownTimeout: time.Second},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, auditor service.Auditor) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	loc, err := storage.ParseLocation("mem://bucket/people.csv")
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), loc, []byte(peopleCSV), "text/csv"))

	mux := storage.NewMux()
	mux.Handle(storage.SchemeMemory, store)

	if auditor == nil {
		auditor = &memAuditor{}
	}
	srv := NewServer(service.New(mux, service.Options{Auditor: auditor}), cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func post(t *testing.T, srv *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/obfuscate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er), rec.Body.String())
	return er
}

func TestHandleObfuscate(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	rec := post(t, srv, `{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["name","email_address"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	want := "student_id,name,email_address\n1234,***,***\n5678,***,***\n"
	assert.Equal(t, want, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "csv", rec.Header().Get(headerFormat))
	assert.Equal(t, "2", rec.Header().Get(headerRows))
	assert.Equal(t, "email_address,name", rec.Header().Get(headerMasked))
	assert.NotEmpty(t, rec.Header().Get(headerJobID))
	assert.Len(t, rec.Header().Get(headerInputHash), 16)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHandleObfuscate_LegacyNamesAndDestination(t *testing.T) {
	srv, store := newTestServer(t, testConfig(), nil)

	rec := post(t, srv, `{"s3_path":"mem://bucket/people.csv","obfuscate_fields":["name"],"destination":"mem://out/people.csv"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "mem://out/people.csv", rec.Header().Get("Content-Location"))

	dst, _ := storage.ParseLocation("mem://out/people.csv")
	ct, ok := store.ContentType(dst)
	require.True(t, ok)
	assert.Equal(t, "text/csv; charset=utf-8", ct)
}

func TestHandleObfuscate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"file_to_obfuscate":`, http.StatusBadRequest, "SVC001"},
		{"missing path", `{"pii_fields":["name"]}`, http.StatusBadRequest, "SVC001"},
		{"bad format hint", `{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["name"],"format":"xlsx"}`, http.StatusBadRequest, "SVC001"},
		{"invalid location", `{"file_to_obfuscate":"mem://bucket","pii_fields":["name"]}`, http.StatusBadRequest, "STO004"},
		{"unsupported scheme", `{"file_to_obfuscate":"s3://bucket/people.csv","pii_fields":["name"]}`, http.StatusBadRequest, "STO004"},
		{"not found", `{"file_to_obfuscate":"mem://bucket/missing.csv","pii_fields":["name"]}`, http.StatusNotFound, "STO001"},
		{"unknown field", `{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["ssn"]}`, http.StatusUnprocessableEntity, "OBF001"},
		{"unknown field with hint", `{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["ssn"],"format":"csv"}`, http.StatusUnprocessableEntity, "OBF001"},
		{"body too large", `{"file_to_obfuscate":"` + strings.Repeat("a", 5000) + `"}`, http.StatusBadRequest, "SVC001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, testConfig(), nil)
			rec := post(t, srv, tt.body, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			er := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, er.Code)
			assert.NotEmpty(t, er.Message)
			assert.NotEmpty(t, er.Action)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrAccessDenied, http.StatusForbidden},
		{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{storage.ErrConnection, http.StatusBadGateway},
		{service.ErrTooManyJobs, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret-key"}}
	srv, _ := newTestServer(t, cfg, nil)

	body := `{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["name"]}`
	assert.Equal(t, http.StatusUnauthorized, post(t, srv, body, nil).Code)
	assert.Equal(t, http.StatusForbidden, post(t, srv, body, map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, post(t, srv, body, map[string]string{"X-API-Key": "secret-key"}).Code)

	// Health checks stay open
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRateLimitedObfuscate(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ObfuscateLimit: 1}
	srv, _ := newTestServer(t, cfg, nil)

	body := `{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["name"]}`
	assert.Equal(t, http.StatusOK, post(t, srv, body, nil).Code)

	rec := post(t, srv, body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)

	// Other endpoints use the general limit
	status := httptest.NewRecorder()
	srv.Router().ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, status.Code)
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)
	post(t, srv, `{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["name"]}`, nil)
	post(t, srv, `{"file_to_obfuscate":"mem://bucket/missing.csv","pii_fields":["name"]}`, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st service.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, uint64(1), st.Succeeded)
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, service.DefaultMaxConcurrentJobs, st.Jobs.MaxConcurrent)
}

func TestHandleAudit(t *testing.T) {
	auditor := &memAuditor{}
	srv, _ := newTestServer(t, testConfig(), auditor)

	req := httptest.NewRequest(http.MethodPost, "/api/obfuscate",
		strings.NewReader(`{"file_to_obfuscate":"mem://bucket/people.csv","pii_fields":["name"]}`))
	req.RemoteAddr = "192.0.2.10:5000"
	req.Header.Set("User-Agent", "audit-test")
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []service.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "192.0.2.10", events[0].IPAddress)
	assert.Equal(t, "audit-test", events[0].UserAgent)
	assert.Equal(t, service.JobSucceeded, events[0].Status)

	bad := httptest.NewRecorder()
	srv.Router().ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/api/audit?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestHandleAudit_NotAvailable(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), service.LogAuditor{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "SVC005", decodeError(t, rec).Code)
}
