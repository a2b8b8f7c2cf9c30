package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fueltracker/pkg/audit"
	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/passhash"
	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/generator"
	"fueltracker/services/fuel-svc/internal/importer"
	"fueltracker/services/fuel-svc/internal/middleware"
	"fueltracker/services/fuel-svc/internal/repository"
	"fueltracker/services/fuel-svc/internal/service"
)

func init() {
	logger.Discard()
}

type testAPI struct {
	handler http.Handler
	auth    *service.AuthService
}

// newAPI собирает mux с маршрутами поверх in-memory репозиториев.
// withAuth=false отключает проверку токенов, все запросы идут от "local".
func newAPI(t *testing.T, withAuth bool) *testAPI {
	t.Helper()

	repos := repository.NewMemoryRepositories()
	auditLog := audit.NewMemoryLogger(100)
	stats := service.NewStatisticsService(repos.Records,
		service.WithGoals(analysis.Goals{EfficiencyGoal: 15, MonthlyBudget: 10000}))
	records := service.NewRecordService(repos.Records, stats, auditLog)
	exchange := service.NewExchangeService(repos.Records, generator.NewRegistry(config.PDFConfig{}), stats, auditLog,
		config.ImportConfig{MaxFileBytes: 1 << 20, MaxRecords: 100})
	authSvc := service.NewAuthService(repos.Users, repos.Blacklist, passhash.NewJWTManager(&passhash.JWTConfig{
		SecretKey:          "handler-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "test",
	}), auditLog)

	mux := http.NewServeMux()
	routes := &Routes{
		Records:    NewRecordHandler(records, 0),
		Statistics: NewStatisticsHandler(stats),
		Exchange:   NewExchangeHandler(exchange, 1<<20),
		Auth:       NewAuthHandler(authSvc),
	}
	routes.Register(mux)

	authCfg := &middleware.AuthConfig{DefaultUserID: "local", PublicRoutes: middleware.PublicRoutes()}
	if withAuth {
		authCfg.Authenticator = authSvc
	}

	return &testAPI{
		handler: middleware.Chain(mux, middleware.RequestContext(mux), middleware.Auth(authCfg)),
		auth:    authSvc,
	}
}

func (a *testAPI) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRecords_CRUD(t *testing.T) {
	api := newAPI(t, false)

	// числа в JSON принимаются наравне со строками
	rec := api.do(t, http.MethodPost, "/api/v1/records", "", map[string]any{
		"date": "2024-05-01", "amount": 30, "cost": "4800", "mileage": 10000, "station": "ENEOS",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[service.WriteResult](t, rec)
	assert.Equal(t, "/api/v1/records/"+created.Record.ID, rec.Header().Get("Location"))
	assert.Equal(t, 30.0, created.Record.Amount)
	assert.Equal(t, int64(4800), created.Record.Cost)
	assert.Equal(t, "local", created.Record.UserID)

	rec = api.do(t, http.MethodGet, "/api/v1/records/"+created.Record.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ENEOS", decode[map[string]any](t, rec)["station"])

	rec = api.do(t, http.MethodPut, "/api/v1/records/"+created.Record.ID, "", map[string]any{
		"date": "2024-05-01", "amount": "32.5", "cost": "5200", "mileage": "10000", "station": "Shell",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Shell", decode[service.WriteResult](t, rec).Record.Station)

	rec = api.do(t, http.MethodGet, "/api/v1/records", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	assert.Equal(t, 1, list.Count)

	rec = api.do(t, http.MethodGet, "/api/v1/stations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Shell"}, decode[map[string]any](t, rec)["stations"])

	rec = api.do(t, http.MethodDelete, "/api/v1/records/"+created.Record.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/records/"+created.Record.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/records", "", nil)
	assert.JSONEq(t, `{"records":[],"count":0}`, rec.Body.String())
}

func TestRecords_ValidationErrors(t *testing.T) {
	api := newAPI(t, false)

	tests := []struct {
		name       string
		target     string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid form",
			target:     "/api/v1/records",
			body:       map[string]any{"date": "", "amount": "abc", "cost": -1, "mileage": "", "station": ""},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown field",
			target:     "/api/v1/records",
			body:       map[string]any{"date": "2024-05-01", "liters": 30},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
		},
		{
			name:       "malformed json",
			target:     "/api/v1/records",
			body:       `{"date":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
		},
		{
			name:       "empty body",
			target:     "/api/v1/records",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, tt.target, "", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode[middleware.ErrorBody](t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestRecords_InvalidPagination(t *testing.T) {
	api := newAPI(t, false)

	rec := api.do(t, http.MethodGet, "/api/v1/records?limit=ten", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[middleware.ErrorBody](t, rec)
	assert.Equal(t, "limit", body.Field)
}

func TestRecords_Validate(t *testing.T) {
	api := newAPI(t, false)

	rec := api.do(t, http.MethodPost, "/api/v1/records/validate", "", map[string]any{
		"date": "2024-05-01", "amount": 300, "cost": 4800, "mileage": 10000, "station": "ENEOS",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.CheckResult](t, rec)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	// проверка не сохраняет запись
	rec = api.do(t, http.MethodGet, "/api/v1/records", "", nil)
	assert.Equal(t, 0, decode[listResponse](t, rec).Count)
}

func seed(t *testing.T, api *testAPI, token string) {
	t.Helper()
	for _, body := range []map[string]any{
		{"date": "2024-05-01", "amount": 30, "cost": 4800, "mileage": 10000, "station": "ENEOS"},
		{"date": "2024-05-10", "amount": 30, "cost": 4800, "mileage": 10450, "station": "Shell"},
	} {
		rec := api.do(t, http.MethodPost, "/api/v1/records", token, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestStatistics_Endpoints(t *testing.T) {
	api := newAPI(t, false)
	seed(t, api, "")

	rec := api.do(t, http.MethodGet, "/api/v1/statistics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[analysis.StatisticsData](t, rec)
	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, int64(9600), stats.TotalCost)
	assert.InDelta(t, 15.0, stats.AverageFuelEfficiency, 0.001)

	rec = api.do(t, http.MethodGet, "/api/v1/statistics?station=Shell", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[analysis.StatisticsData](t, rec).TotalRecords)

	rec = api.do(t, http.MethodGet, "/api/v1/statistics/series", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	series := decode[analysis.Series](t, rec)
	assert.Len(t, series.Points, 2)

	rec = api.do(t, http.MethodGet, "/api/v1/statistics/insights?efficiency_goal=30", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	in := decode[analysis.Insights](t, rec)
	assert.Equal(t, 30.0, in.Goals.EfficiencyGoal)
	assert.InDelta(t, 0.5, in.EfficiencyAchievement, 0.001)
}

func TestStatistics_InsightsRejectsBadGoal(t *testing.T) {
	api := newAPI(t, false)

	for _, q := range []string{"efficiency_goal=fast", "monthly_budget=-5"} {
		rec := api.do(t, http.MethodGet, "/api/v1/statistics/insights?"+q, "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
		body := decode[middleware.ErrorBody](t, rec)
		assert.Equal(t, "INVALID_ARGUMENT", body.Code)
		assert.NotEmpty(t, body.Field)
	}
}

func TestExport_Attachment(t *testing.T) {
	api := newAPI(t, false)
	seed(t, api, "")

	rec := api.do(t, http.MethodGet, "/api/v1/export/csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))

	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.True(t, strings.HasPrefix(params["filename"], "燃費記録_"), params["filename"])
	assert.True(t, strings.HasSuffix(params["filename"], ".csv"))

	assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFF"))
	assert.Contains(t, rec.Body.String(), `"Shell"`)

	rec = api.do(t, http.MethodGet, "/api/v1/export/docx", "", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestExport_EmptyIsBadRequest(t *testing.T) {
	api := newAPI(t, false)

	rec := api.do(t, http.MethodGet, "/api/v1/export/json", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EXPORT_EMPTY", decode[middleware.ErrorBody](t, rec).Code)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImport_Multipart(t *testing.T) {
	api := newAPI(t, false)

	body, contentType := multipartUpload(t, "data.csv", importer.SampleCSV())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?dry_run=true", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[service.ImportReport](t, rec)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Records, 3)

	body, contentType = multipartUpload(t, "data.csv", importer.SampleCSV())
	req = httptest.NewRequest(http.MethodPost, "/api/v1/import", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[service.ImportReport](t, rec).Imported)

	rec = api.do(t, http.MethodGet, "/api/v1/records", "", nil)
	assert.Equal(t, 3, decode[listResponse](t, rec).Count)
}

func TestImport_RawBody(t *testing.T) {
	api := newAPI(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?filename=sample.csv&dry_run=1", bytes.NewReader(importer.SampleCSV()))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// без filename тип файла не определить
	req = httptest.NewRequest(http.MethodPost, "/api/v1/import", bytes.NewReader(importer.SampleCSV()))
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "filename", decode[middleware.ErrorBody](t, rec).Field)
}

func TestImport_MissingFileField(t *testing.T) {
	api := newAPI(t, false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "nothing here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file", decode[middleware.ErrorBody](t, rec).Field)
}

func TestSample_Download(t *testing.T) {
	api := newAPI(t, true)

	// шаблон доступен без токена
	rec := api.do(t, http.MethodGet, "/api/v1/import/sample", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, importer.SampleCSV(), rec.Body.Bytes())
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, importer.SampleFilename, params["filename"])
}

func TestAuth_Flow(t *testing.T) {
	api := newAPI(t, true)

	rec := api.do(t, http.MethodGet, "/api/v1/records", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = api.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "driver@example.com", "password": "password123", "name": "Driver",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[service.UserInfo](t, rec)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "driver@example.com", "password": "password123", "name": "Driver",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": " driver@example.com ", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decode[service.TokenPair](t, rec)

	seed(t, api, pair.AccessToken)
	rec = api.do(t, http.MethodGet, "/api/v1/records", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, user.ID, list.Records[0].UserID)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decode[service.TokenPair](t, rec)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/logout", rotated.AccessToken,
		map[string]any{"refresh_token": rotated.RefreshToken})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/records", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	api := newAPI(t, true)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "driver@example.com", "password": "password123", "name": "Driver",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "driver@example.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode[middleware.ErrorBody](t, rec).Code)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename=report.pdf`, contentDisposition("report.pdf"))

	v := contentDisposition("燃費記録.csv")
	assert.True(t, strings.HasPrefix(v, "attachment; filename*=utf-8''"), v)
	_, params, err := mime.ParseMediaType(v)
	require.NoError(t, err)
	assert.Equal(t, "燃費記録.csv", params["filename"])
}

func TestFormValue_Unmarshal(t *testing.T) {
	var f recordForm
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-05-01","amount":30.5,"cost":4800,"mileage":null,"station":"ENEOS"}`), &f))
	in := f.input()
	assert.Equal(t, "30.5", in.Amount)
	assert.Equal(t, "4800", in.Cost)
	assert.Empty(t, in.Mileage)

	assert.Error(t, json.Unmarshal([]byte(`{"amount":true}`), &f))
}
