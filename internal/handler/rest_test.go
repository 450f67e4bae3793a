package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/failures"
	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/internal/models"
	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/flybeeper/efb-backend/internal/settings"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSource мок источника METAR
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Name() string {
	return "MOCK"
}

func (m *MockSource) Fetch(ctx context.Context, icao string) (*metar.Record, error) {
	args := m.Called(ctx, icao)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metar.Record), args.Error(1)
}

// MockWriter мок записи переменных симулятора
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) SetSimVarValue(ctx context.Context, name, unit string, value float64) error {
	args := m.Called(ctx, name, unit, value)
	return args.Error(0)
}

// MockHistory мок истории расчетов
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Record(icao string, in performance.Input, r performance.Result) error {
	args := m.Called(icao, in, r)
	return args.Error(0)
}

func (m *MockHistory) RecentLandings(ctx context.Context, limit int) ([]*models.LandingCalculation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LandingCalculation), args.Error(1)
}

type testEnv struct {
	server   *Server
	store    *performance.Store
	source   *MockSource
	writer   *MockWriter
	history  *MockHistory
	settings *settings.MemoryStore
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Address:        ":0",
			RateLimit:      1000,
			RateLimitBurst: 1000,
			AllowedOrigins: []string{"*"},
		},
		Performance: config.PerformanceConfig{
			WebSocketPingInterval: time.Second,
			WebSocketPongTimeout:  2 * time.Second,
		},
		Monitoring: config.MonitoringConfig{MetricsEnabled: true},
	}
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := utils.NewLoggerWithOutput("error", "text", io.Discard)

	store, err := performance.NewStore(performance.NewCalculator(), logger)
	require.NoError(t, err)

	source := new(MockSource)
	autofill, err := performance.NewAutofiller(store, source, nil, logger)
	require.NoError(t, err)

	catalog, err := failures.NewCatalog(failures.DefaultCatalog())
	require.NoError(t, err)
	writer := new(MockWriter)
	orchestrator, err := failures.NewOrchestrator(catalog, writer, logger)
	require.NoError(t, err)

	history := new(MockHistory)
	settingsStore := settings.NewMemoryStore(nil)

	server, err := NewServer(testConfig(), Dependencies{
		Landing:  store,
		Autofill: autofill,
		Metar:    source,
		Settings: settingsStore,
		Failures: orchestrator,
		History:  history,
		Landings: history,
	}, map[string]HealthCheck{
		"settings": func(ctx context.Context) error { return nil },
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { server.Shutdown(context.Background()) })

	return &testEnv{
		server:   server,
		store:    store,
		source:   source,
		writer:   writer,
		history:  history,
		settings: settingsStore,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const exampleFields = `{
	"icao": "lfpg", "weight": "65000", "flaps": "1", "runwayCondition": "0",
	"approachSpeed": "140", "windDirection": "90", "windMagnitude": "10",
	"runwayHeading": "90", "reverseThrust": "true", "altitude": "0",
	"temperature": "15", "slope": "0", "overweightProcedure": "false",
	"pressure": "1013", "autoland": "false", "runwayLength": "3000"
}`

func TestRESTHandler_CalculateLanding(t *testing.T) {
	env := setupTestServer(t)
	env.history.On("Record", "LFPG", mock.Anything, mock.Anything).Return(nil).Once()

	w := env.do(http.MethodPost, "/api/v1/performance/landing/calculate", exampleFields)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result performance.Result `json:"result"`
		Input  performance.Input  `json:"input"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 1124, resp.Result.MaxAutobrakeLandingDist)
	assert.Equal(t, 1346, resp.Result.MediumAutobrakeLandingDist)
	assert.Equal(t, 1830, resp.Result.LowAutobrakeLandingDist)
	assert.False(t, resp.Result.MaxExceedsRunway)
	assert.False(t, resp.Result.LowExceedsRunway)
	assert.Equal(t, 65000.0, resp.Input.Weight)

	env.history.AssertExpectations(t)
}

func TestRESTHandler_CalculateLanding_Incomplete(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(http.MethodPost, "/api/v1/performance/landing/calculate", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "incomplete_input", decode(t, w)["code"])

	env.history.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestRESTHandler_CalculateLanding_OutOfRange(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(http.MethodPatch, "/api/v1/performance/landing", exampleFields)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/performance/landing/calculate", `{"weight": "20000"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "out_of_range", decode(t, w)["code"])
}

func TestRESTHandler_PatchAndClearLanding(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(http.MethodPatch, "/api/v1/performance/landing", `{"weight": "150000", "runwayLength": "9843"}`)
	require.Equal(t, http.StatusOK, w.Code)
	st := env.store.Snapshot()
	require.NotNil(t, st.Weight)
	assert.Equal(t, 150000.0, *st.Weight)

	// Имперские единицы из настроек
	require.NoError(t, env.settings.Set(context.Background(), settingMetricUnits, "0"))
	w = env.do(http.MethodPatch, "/api/v1/performance/landing", `{"weight": "143300"}`)
	require.Equal(t, http.StatusOK, w.Code)
	st = env.store.Snapshot()
	assert.InDelta(t, 65000, *st.Weight, 1)

	body := decode(t, w)
	display := body["display"].(map[string]interface{})
	assert.InDelta(t, 143300, display["weight"].(float64), 1)
	assert.Equal(t, "lb", display["units"].(map[string]interface{})["weight"])

	w = env.do(http.MethodPatch, "/api/v1/performance/landing", `{"fuel": "1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_field", decode(t, w)["code"])

	w = env.do(http.MethodPatch, "/api/v1/performance/landing", `{"weight": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/performance/landing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.store.Snapshot().Weight)
}

func TestRESTHandler_PreferredUnits(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	units := func() map[string]interface{} {
		w := env.do(http.MethodGet, "/api/v1/performance/landing", "")
		require.Equal(t, http.StatusOK, w.Code)
		return decode(t, w)["display"].(map[string]interface{})["units"].(map[string]interface{})
	}

	// Без выбора пользователя единицы следуют флагу метрической системы
	require.NoError(t, env.settings.Set(ctx, settingMetricUnits, "0"))
	got := units()
	assert.Equal(t, "F", got["temperature"])
	assert.Equal(t, "inHg", got["pressure"])

	require.NoError(t, env.settings.Set(ctx, settingMetricUnits, "1"))
	require.NoError(t, env.settings.Set(ctx, settingPressureUnit, "inHg"))
	require.NoError(t, env.settings.Set(ctx, settingTemperatureUnit, "F"))
	require.NoError(t, env.settings.Set(ctx, settingDistanceUnit, "yards"))
	got = units()
	assert.Equal(t, "kg", got["weight"])
	assert.Equal(t, "m", got["distance"])
	assert.Equal(t, "F", got["temperature"])
	assert.Equal(t, "inHg", got["pressure"])

	// Ввод разбирается в выбранных единицах
	w := env.do(http.MethodPatch, "/api/v1/performance/landing", `{"pressure": "29.92", "temperature": "59"}`)
	require.Equal(t, http.StatusOK, w.Code)
	st := env.store.Snapshot()
	require.NotNil(t, st.Pressure)
	assert.InDelta(t, 1013.2, *st.Pressure, 0.1)
	require.NotNil(t, st.Temperature)
	assert.InDelta(t, 15, *st.Temperature, 1e-6)
}

func TestRESTHandler_Autofill(t *testing.T) {
	env := setupTestServer(t)
	rec, err := metar.Parse("EGLL 191250Z 27015KT 9999 FEW030 12/06 Q1008")
	require.NoError(t, err)
	env.source.On("Fetch", mock.Anything, "EGLL").Return(rec, nil)

	w := env.do(http.MethodPost, "/api/v1/performance/landing/autofill", `{"source": "METAR", "icao": "egll"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	st := env.store.Snapshot()
	require.NotNil(t, st.WindDirection)
	assert.Equal(t, 270.0, *st.WindDirection)
	assert.Equal(t, 15.0, *st.WindMagnitude)
	assert.Equal(t, 12.0, *st.Temperature)
	assert.Equal(t, 1008.0, *st.Pressure)
}

func TestRESTHandler_Autofill_FlightPlanFallback(t *testing.T) {
	env := setupTestServer(t)
	rec, err := metar.Parse("LFPG 191230Z 09010KT CAVOK 15/10 Q1013")
	require.NoError(t, err)
	env.source.On("Fetch", mock.Anything, "LFPG").Return(rec, nil).Once()

	w := env.do(http.MethodPost, "/api/v1/performance/landing/autofill",
		`{"source": "OFP", "flightPlan": {"arrivingAirport": "LFPG", "arrivingMetar": "garbage"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	st := env.store.Snapshot()
	assert.Equal(t, "LFPG", st.ICAO)
	require.NotNil(t, st.WindDirection)
	assert.Equal(t, 90.0, *st.WindDirection)
	env.source.AssertExpectations(t)
}

func TestRESTHandler_Autofill_Errors(t *testing.T) {
	env := setupTestServer(t)
	env.source.On("Fetch", mock.Anything, "KJFK").
		Return(nil, metar.NewNotice("KJFK", metar.ErrNoMetar))
	env.source.On("Fetch", mock.Anything, "KBOS").
		Return(nil, metar.NewNotice("KBOS", errors.New("connection refused")))

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid icao", `{"source": "METAR", "icao": "ABC"}`, http.StatusBadRequest, "invalid_icao"},
		{"no metar", `{"source": "METAR", "icao": "KJFK"}`, http.StatusNotFound, "metar_not_found"},
		{"source down", `{"source": "METAR", "icao": "KBOS"}`, http.StatusBadGateway, "metar_unavailable"},
		{"default source is ofp", `{"icao": "KBOS"}`, http.StatusBadRequest, "missing_flight_plan"},
		{"unknown source", `{"source": "ATIS", "icao": "KBOS"}`, http.StatusBadRequest, "invalid_source"},
		{"ofp without plan", `{"source": "OFP"}`, http.StatusBadRequest, "missing_flight_plan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.store.Snapshot()
			w := env.do(http.MethodPost, "/api/v1/performance/landing/autofill", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w)["code"])
			assert.Equal(t, before, env.store.Snapshot())
		})
	}
}

func TestRESTHandler_GetMetar(t *testing.T) {
	env := setupTestServer(t)
	rec, err := metar.Parse("LFPG 191230Z 09010KT CAVOK 15/10 Q1013")
	require.NoError(t, err)
	env.source.On("Fetch", mock.Anything, "LFPG").Return(rec, nil)

	w := env.do(http.MethodGet, "/api/v1/metar/lfpg", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "MOCK", body["source"])
	assert.Equal(t, "LFPG", body["metar"].(map[string]interface{})["station"])

	w = env.do(http.MethodGet, "/api/v1/metar/LFP", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRESTHandler_Settings(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(http.MethodGet, "/api/v1/settings/CONFIG_BOARDING_RATE", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "REAL", decode(t, w)["value"])

	w = env.do(http.MethodPut, "/api/v1/settings/CONFIG_BOARDING_RATE", `{"value": "WARP"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_value", decode(t, w)["code"])

	w = env.do(http.MethodPut, "/api/v1/settings/CONFIG_BOARDING_RATE", `{"value": "FAST"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPut, "/api/v1/settings/EFB_BRIGHTNESS", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode(t, w)["settings"].(map[string]interface{})
	assert.Equal(t, "FAST", all["CONFIG_BOARDING_RATE"])
}

func TestRESTHandler_Failures(t *testing.T) {
	env := setupTestServer(t)
	env.writer.On("SetSimVarValue", mock.Anything, failures.ActivateVar, "number", float64(29000)).Return(nil)

	w := env.do(http.MethodGet, "/api/v1/failures?chapter=29&q=green", "")
	require.Equal(t, http.StatusOK, w.Code)
	chapters := decode(t, w)["chapters"].([]interface{})
	require.Len(t, chapters, 1)
	chapter := chapters[0].(map[string]interface{})
	assert.Equal(t, "Hydraulic Power", chapter["title"])
	first := chapter["failures"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Green", first["highlighted"])

	w = env.do(http.MethodPost, "/api/v1/failures/29000/toggle", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "activate", decode(t, w)["action"])

	w = env.do(http.MethodPost, "/api/v1/failures/29000/toggle", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/v1/failures/12345/toggle", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/v1/failures/abc/toggle", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/failures?chapter=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRESTHandler_LandingHistory(t *testing.T) {
	env := setupTestServer(t)
	env.history.On("RecentLandings", mock.Anything, 5).Return([]*models.LandingCalculation{
		{ID: 1, ICAO: "LFPG", Weight: 65000, MaxDistance: 1124, MediumDistance: 1346, LowDistance: 1830},
	}, nil)
	env.history.On("RecentLandings", mock.Anything, defaultHistoryLimit).Return(nil, errors.New("db down"))

	w := env.do(http.MethodGet, "/api/v1/performance/landing/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["landings"], 1)

	w = env.do(http.MethodGet, "/api/v1/performance/landing/history", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = env.do(http.MethodGet, "/api/v1/performance/landing/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRESTHandler_HealthCheck(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["components"].(map[string]interface{})["settings"])

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestNewServer_Validation(t *testing.T) {
	logger := utils.NewLoggerWithOutput("error", "text", io.Discard)

	_, err := NewServer(nil, Dependencies{}, nil, logger)
	assert.Error(t, err)

	_, err = NewServer(testConfig(), Dependencies{}, nil, logger)
	assert.Error(t, err)
}

func TestServer_APIToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := utils.NewLoggerWithOutput("error", "text", io.Discard)

	store, err := performance.NewStore(performance.NewCalculator(), logger)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Server.APIToken = "tablet-secret"

	server, err := NewServer(cfg, Dependencies{
		Landing:  store,
		Metar:    new(MockSource),
		Settings: settings.NewMemoryStore(nil),
	}, nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { server.Shutdown(context.Background()) })

	// Чтение без токена разрешено
	req := httptest.NewRequest(http.MethodGet, "/api/v1/performance/landing", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Изменение без токена запрещено
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/performance/landing", nil)
	w = httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/performance/landing", nil)
	req.Header.Set("Authorization", "Bearer tablet-secret")
	w = httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}
