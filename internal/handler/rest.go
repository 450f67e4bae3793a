package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flybeeper/efb-backend/internal/failures"
	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/internal/models"
	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/flybeeper/efb-backend/internal/settings"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Настройка выбора метрической системы единиц
const (
	settingMetricUnits     = "CONFIG_USING_METRIC_UNIT"
	settingWeightUnit      = "EFB_PREFERRED_WEIGHT_UNIT"
	settingDistanceUnit    = "EFB_PREFERRED_DISTANCE_UNIT"
	settingTemperatureUnit = "EFB_PREFERRED_TEMPERATURE_UNIT"
	settingPressureUnit    = "EFB_PREFERRED_PRESSURE_UNIT"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// HistoryRecorder принимает успешные расчеты для сохранения
type HistoryRecorder interface {
	Record(icao string, in performance.Input, r performance.Result) error
}

// LandingHistory читает сохраненные расчеты
type LandingHistory interface {
	RecentLandings(ctx context.Context, limit int) ([]*models.LandingCalculation, error)
}

// Dependencies компоненты, которые обслуживает REST API.
// History, Landings и Failures могут быть nil.
type Dependencies struct {
	Landing  *performance.Store
	Autofill *performance.Autofiller
	Metar    metar.Source
	Settings settings.Store
	Failures *failures.Orchestrator
	History  HistoryRecorder
	Landings LandingHistory
}

// RESTHandler обработчик REST API endpoints
type RESTHandler struct {
	deps    Dependencies
	logger  *utils.Logger
	timeout time.Duration
}

// NewRESTHandler создает новый REST handler
func NewRESTHandler(deps Dependencies, logger *utils.Logger) *RESTHandler {
	return &RESTHandler{
		deps:    deps,
		logger:  logger.WithField("component", "rest"),
		timeout: 30 * time.Second,
	}
}

// writeError пишет ошибку в формате {"code","message"}
func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// unitPreferences единицы отображения из настроек EFB.
// Выбор пользователя по каждой величине важнее общего флага метрической системы.
func (h *RESTHandler) unitPreferences(ctx context.Context) performance.UnitPreferences {
	value, err := h.deps.Settings.Get(ctx, settingMetricUnits, "1")
	if err != nil {
		h.logger.WithField("error", err).Warn("Failed to read unit preference, using metric")
		value = "1"
	}
	prefs := performance.DefaultUnitPreferences(value != "0")

	read := func(key, def string) string {
		v, err := h.deps.Settings.Get(ctx, key, def)
		if err != nil {
			h.logger.WithField("setting", key).WithField("error", err).Warn("Failed to read unit preference")
			return def
		}
		return v
	}
	return prefs.Override(
		read(settingWeightUnit, prefs.Weight),
		read(settingDistanceUnit, prefs.Distance),
		read(settingTemperatureUnit, prefs.Temperature),
		read(settingPressureUnit, prefs.Pressure),
	)
}

func (h *RESTHandler) landingPayload(ctx context.Context, st performance.LandingState) LandingPayload {
	display := performance.Display(st, h.unitPreferences(ctx))
	return LandingPayload{State: st, Display: &display}
}

// ==================== Landing performance ====================

// GetLanding возвращает состояние формы расчета посадки
// GET /api/v1/performance/landing
func (h *RESTHandler) GetLanding(c *gin.Context) {
	c.JSON(http.StatusOK, h.landingPayload(c.Request.Context(), h.deps.Landing.Snapshot()))
}

// PatchLanding изменяет поля формы, значения передаются строками в единицах пользователя
// PATCH /api/v1/performance/landing
func (h *RESTHandler) PatchLanding(c *gin.Context) {
	values, ok := h.bindFields(c)
	if !ok {
		return
	}

	if err := h.deps.Landing.HandleFields(values, h.unitPreferences(c.Request.Context())); err != nil {
		writeError(c, http.StatusBadRequest, "unknown_field", err.Error())
		return
	}

	c.JSON(http.StatusOK, h.landingPayload(c.Request.Context(), h.deps.Landing.Snapshot()))
}

// DeleteLanding сбрасывает форму в начальное состояние
// DELETE /api/v1/performance/landing
func (h *RESTHandler) DeleteLanding(c *gin.Context) {
	h.deps.Landing.Clear()
	c.JSON(http.StatusOK, h.landingPayload(c.Request.Context(), h.deps.Landing.Snapshot()))
}

// CalculateLanding выполняет расчет посадочных дистанций.
// Тело запроса необязательно и применяется к форме перед расчетом.
// POST /api/v1/performance/landing/calculate
func (h *RESTHandler) CalculateLanding(c *gin.Context) {
	if c.Request.ContentLength != 0 {
		values, ok := h.bindFields(c)
		if !ok {
			return
		}
		if err := h.deps.Landing.HandleFields(values, h.unitPreferences(c.Request.Context())); err != nil {
			writeError(c, http.StatusBadRequest, "unknown_field", err.Error())
			return
		}
	}

	result, in, err := h.deps.Landing.Calculate()
	if err != nil {
		var rangeErr *performance.RangeError
		switch {
		case errors.Is(err, performance.ErrIncompleteInput):
			writeError(c, http.StatusUnprocessableEntity, "incomplete_input", "All landing fields must be filled")
		case errors.As(err, &rangeErr):
			writeError(c, http.StatusBadRequest, "out_of_range", rangeErr.Error())
		default:
			writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		}
		return
	}

	st := h.deps.Landing.Snapshot()
	if h.deps.History != nil {
		if err := h.deps.History.Record(st.ICAO, in, result); err != nil {
			h.logger.WithField("error", err).Warn("Failed to queue landing history")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"input":  in,
	})
}

type autofillRequest struct {
	Source     performance.AutofillSource `json:"source"`
	ICAO       string                     `json:"icao"`
	FlightPlan *performance.FlightPlan    `json:"flightPlan,omitempty"`
}

// Autofill заполняет форму из METAR или плана полета
// POST /api/v1/performance/landing/autofill
func (h *RESTHandler) Autofill(c *gin.Context) {
	if h.deps.Autofill == nil {
		writeError(c, http.StatusServiceUnavailable, "autofill_unavailable", "Autofill is not configured")
		return
	}

	var req autofillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	// по умолчанию форма заполняется из плана полета
	if req.Source == "" {
		req.Source = performance.AutofillOFP
	}

	var rec *metar.Record
	var err error
	switch req.Source {
	case performance.AutofillMetar:
		rec, err = h.deps.Autofill.FromMetar(ctx, req.ICAO)
	case performance.AutofillOFP:
		if req.FlightPlan == nil {
			writeError(c, http.StatusBadRequest, "missing_flight_plan", "Flight plan is required for OFP autofill")
			return
		}
		rec, err = h.deps.Autofill.FromFlightPlan(ctx, *req.FlightPlan)
		if errors.Is(err, performance.ErrFlightPlanMetar) {
			// Сводку из плана разобрать не удалось, запрашиваем METAR аэродрома прибытия
			h.logger.WithField("icao", req.FlightPlan.ArrivingAirport).Info("Falling back to METAR source")
			rec, err = h.deps.Autofill.FromMetar(ctx, req.FlightPlan.ArrivingAirport)
		}
	default:
		writeError(c, http.StatusBadRequest, "invalid_source", "Source must be METAR or OFP")
		return
	}

	if err != nil {
		h.writeMetarError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metar":   rec,
		"landing": h.landingPayload(c.Request.Context(), h.deps.Landing.Snapshot()),
	})
}

func (h *RESTHandler) bindFields(c *gin.Context) (map[performance.Field]string, bool) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", "Body must be an object of string values")
		return nil, false
	}

	values := make(map[performance.Field]string, len(body))
	for k, v := range body {
		values[performance.Field(k)] = v
	}
	return values, true
}

// GetLandingHistory возвращает последние сохраненные расчеты
// GET /api/v1/performance/landing/history?limit=20
func (h *RESTHandler) GetLandingHistory(c *gin.Context) {
	if h.deps.Landings == nil {
		writeError(c, http.StatusServiceUnavailable, "history_unavailable", "Landing history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > maxHistoryLimit {
			writeError(c, http.StatusBadRequest, "invalid_limit", "Limit must be between 1 and 500")
			return
		}
		limit = v
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	records, err := h.deps.Landings.RecentLandings(ctx, limit)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to get landing history")
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to retrieve landing history")
		return
	}
	if records == nil {
		records = []*models.LandingCalculation{}
	}

	c.JSON(http.StatusOK, gin.H{"landings": records})
}

// ==================== METAR ====================

// GetMetar возвращает разобранную сводку METAR
// GET /api/v1/metar/:icao
func (h *RESTHandler) GetMetar(c *gin.Context) {
	icao := strings.ToUpper(strings.TrimSpace(c.Param("icao")))
	if !metar.IsValidICAO(icao) {
		writeError(c, http.StatusBadRequest, "invalid_icao", "ICAO code must have 4 characters")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	rec, err := h.deps.Metar.Fetch(ctx, icao)
	if err != nil {
		h.writeMetarError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source": h.deps.Metar.Name(),
		"metar":  rec,
	})
}

func (h *RESTHandler) writeMetarError(c *gin.Context, err error) {
	var notice *metar.Notice
	switch {
	case errors.Is(err, performance.ErrInvalidICAO):
		writeError(c, http.StatusBadRequest, "invalid_icao", err.Error())
	case errors.Is(err, metar.ErrNoMetar):
		writeError(c, http.StatusNotFound, "metar_not_found", err.Error())
	case errors.As(err, &notice):
		writeError(c, http.StatusBadGateway, "metar_unavailable", notice.Error())
	default:
		h.logger.WithField("error", err).Error("METAR lookup failed")
		writeError(c, http.StatusInternalServerError, "internal_error", "METAR lookup failed")
	}
}

// ==================== Settings ====================

type settingRequest struct {
	Value *string `json:"value"`
}

// ListSettings возвращает все сохраненные настройки
// GET /api/v1/settings
func (h *RESTHandler) ListSettings(c *gin.Context) {
	values, err := h.deps.Settings.All(c.Request.Context())
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list settings")
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to retrieve settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// GetSetting возвращает значение настройки или значение по умолчанию
// GET /api/v1/settings/:key
func (h *RESTHandler) GetSetting(c *gin.Context) {
	key := c.Param("key")
	defaultValue := ""
	if entry, ok := settings.Lookup(key); ok {
		defaultValue = entry.Default
	}

	value, err := h.deps.Settings.Get(c.Request.Context(), key, defaultValue)
	if err != nil {
		h.logger.WithField("key", key).WithField("error", err).Error("Failed to get setting")
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to retrieve setting")
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// PutSetting сохраняет настройку, синхронизация с симулятором идет через подписку
// PUT /api/v1/settings/:key
func (h *RESTHandler) PutSetting(c *gin.Context) {
	key := c.Param("key")

	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		writeError(c, http.StatusBadRequest, "invalid_body", `Body must be {"value": "..."}`)
		return
	}

	if entry, ok := settings.Lookup(key); ok {
		if _, err := settings.Resolve(entry, *req.Value); err != nil {
			writeError(c, http.StatusBadRequest, "invalid_value", err.Error())
			return
		}
	}

	if err := h.deps.Settings.Set(c.Request.Context(), key, *req.Value); err != nil {
		h.logger.WithField("key", key).WithField("error", err).Error("Failed to store setting")
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to store setting")
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": *req.Value})
}

// ==================== Failures ====================

type chapterResponse struct {
	Ata      models.AtaChapter `json:"ata"`
	Title    string            `json:"title"`
	Failures []failures.View   `json:"failures"`
}

// GetFailures возвращает отказы по главам ATA с состоянием и подсветкой запроса
// GET /api/v1/failures?chapter=29&q=leak
func (h *RESTHandler) GetFailures(c *gin.Context) {
	if h.deps.Failures == nil {
		writeError(c, http.StatusServiceUnavailable, "failures_unavailable", "Failures are not configured")
		return
	}

	query := c.Query("q")
	chapters := h.deps.Failures.Catalog().Chapters()

	if s := c.Query("chapter"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(c, http.StatusBadRequest, "invalid_chapter", "Chapter must be a positive ATA number")
			return
		}
		chapters = []models.AtaChapter{models.AtaChapter(v)}
	}

	response := make([]chapterResponse, 0, len(chapters))
	for _, chapter := range chapters {
		response = append(response, chapterResponse{
			Ata:      chapter,
			Title:    chapter.Name(),
			Failures: h.deps.Failures.ChapterView(chapter, query),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"chapters": response,
		"state":    h.deps.Failures.Snapshot(),
	})
}

// ToggleFailure активирует или деактивирует отказ
// POST /api/v1/failures/:id/toggle
func (h *RESTHandler) ToggleFailure(c *gin.Context) {
	if h.deps.Failures == nil {
		writeError(c, http.StatusServiceUnavailable, "failures_unavailable", "Failures are not configured")
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_id", "Failure identifier must be a number")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	action, err := h.deps.Failures.Toggle(ctx, id)
	switch {
	case errors.Is(err, failures.ErrUnknownFailure):
		writeError(c, http.StatusNotFound, "failure_not_found", err.Error())
		return
	case errors.Is(err, failures.ErrChangeInProgress):
		writeError(c, http.StatusConflict, "change_in_progress", err.Error())
		return
	case err != nil:
		writeError(c, http.StatusBadGateway, "simulator_unavailable", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"identifier": id,
		"action":     action,
		"state":      h.deps.Failures.Snapshot(),
	})
}
