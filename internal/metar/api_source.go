package metar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Соответствие значения настройки CONFIG_METAR_SRC параметру source внешнего API
var providerNames = map[string]string{
	"MSFS":      "ms",
	"VATSIM":    "vatsim",
	"PILOTEDGE": "pilotedge",
	"IVAO":      "ivao",
}

// apiResponse ответ внешнего API
type apiResponse struct {
	ICAO   string `json:"icao"`
	Source string `json:"source"`
	Metar  string `json:"metar"`
}

// APISource сводки METAR из внешнего API
type APISource struct {
	baseURL  string
	provider string
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	group    singleflight.Group
	cache    *expirable.LRU[string, *Record]
	logger   *utils.Logger
}

// NewAPISource создает источник METAR внешнего API
func NewAPISource(cfg *config.MetarConfig, httpClient *http.Client, logger *utils.Logger) (*APISource, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("metar API base URL is required")
	}

	provider, ok := providerNames[strings.ToUpper(cfg.Source)]
	if !ok {
		provider = strings.ToLower(cfg.Source)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1
	}

	return &APISource{
		baseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		provider: provider,
		client:   httpClient,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		cache:    expirable.NewLRU[string, *Record](cacheSize, nil, cfg.CacheTTL),
		logger:   logger.WithField("component", "metar_api").WithField("provider", provider),
	}, nil
}

// Name возвращает имя провайдера
func (s *APISource) Name() string {
	return s.provider
}

// Fetch получает сводку по коду аэродрома.
// Параллельные запросы одного аэродрома объединяются в один HTTP запрос.
func (s *APISource) Fetch(ctx context.Context, icao string) (*Record, error) {
	requested := strings.ToUpper(icao)

	if rec, ok := s.cache.Get(requested); ok {
		metrics.MetarFetches.WithLabelValues(s.provider, "cache_hit").Inc()
		return rec, nil
	}

	// общий запрос не зависит от отмены первого вызывающего
	ch := s.group.DoChan(requested, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetch(fetchCtx, requested)
	})

	select {
	case <-ctx.Done():
		return nil, NewNotice(requested, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.WithField("icao", requested).Debug("METAR request coalesced")
		}
		return res.Val.(*Record), nil
	}
}

func (s *APISource) fetch(ctx context.Context, icao string) (*Record, error) {
	start := time.Now()
	defer func() {
		metrics.MetarFetchDuration.WithLabelValues(s.provider).Observe(time.Since(start).Seconds())
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		metrics.MetarFetches.WithLabelValues(s.provider, "error").Inc()
		return nil, NewNotice(icao, fmt.Errorf("rate limit wait: %w", err))
	}

	raw, err := s.request(ctx, icao)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrNoMetar) {
			result = "no_metar"
		}
		metrics.MetarFetches.WithLabelValues(s.provider, result).Inc()
		s.logger.WithField("icao", icao).WithError(err).Warn("METAR API request failed")
		return nil, NewNotice(icao, err)
	}

	rec, err := Parse(raw)
	if err != nil {
		metrics.MetarFetches.WithLabelValues(s.provider, "parse_error").Inc()
		return nil, NewNotice(icao, err)
	}

	s.cache.Add(icao, rec)
	metrics.MetarFetches.WithLabelValues(s.provider, "ok").Inc()
	return rec, nil
}

func (s *APISource) request(ctx context.Context, icao string) (string, error) {
	endpoint := fmt.Sprintf("%s/metar/%s?source=%s", s.baseURL, url.PathEscape(icao), url.QueryEscape(s.provider))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "EFB-API/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request METAR: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoMetar
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("METAR API returned status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode METAR response: %w", err)
	}

	if strings.TrimSpace(payload.Metar) == "" {
		return "", ErrNoMetar
	}

	return payload.Metar, nil
}
