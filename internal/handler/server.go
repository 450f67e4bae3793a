package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/flybeeper/efb-backend/internal/auth"
	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/failures"
	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// HealthCheck проверка зависимости для /health
type HealthCheck func(ctx context.Context) error

// Server HTTP сервер EFB API
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	logger      *utils.Logger
	config      *config.Config
	restHandler *RESTHandler
	wsHandler   *WebSocketHandler
	auth        *auth.Middleware
	checks      map[string]HealthCheck
	unsubscribe []func()
}

// NewServer создает новый HTTP сервер
func NewServer(cfg *config.Config, deps Dependencies, checks map[string]HealthCheck, logger *utils.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if deps.Landing == nil || deps.Metar == nil || deps.Settings == nil {
		return nil, fmt.Errorf("landing store, metar source and settings store are required")
	}

	// Production mode для Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(LoggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateLimitBurst))
	router.Use(SecurityHeadersMiddleware())
	if cfg.Monitoring.MetricsEnabled {
		router.Use(metrics.HTTPMetricsMiddleware())
	}

	authMiddleware, err := auth.NewMiddleware(cfg.Server.APIToken, logger)
	if err != nil {
		return nil, err
	}

	server := &Server{
		router:      router,
		logger:      logger,
		config:      cfg,
		restHandler: NewRESTHandler(deps, logger),
		auth:        authMiddleware,
		checks:      checks,
	}

	server.wsHandler = NewWebSocketHandler(logger, server.initialMessages,
		cfg.Performance.WebSocketPingInterval, cfg.Performance.WebSocketPongTimeout)

	// Изменения состояния рассылаются всем WebSocket клиентам
	server.unsubscribe = append(server.unsubscribe, deps.Landing.Subscribe(func(st performance.LandingState) {
		server.wsHandler.Broadcast(MessageLanding, LandingPayload{State: st})
	}))
	if deps.Failures != nil {
		server.unsubscribe = append(server.unsubscribe, deps.Failures.Subscribe(func(s failures.Snapshot) {
			server.wsHandler.Broadcast(MessageFailures, s)
		}))
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	server.setupRoutes()

	return server, nil
}

// setupRoutes настраивает маршруты
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	// Изменяющие запросы требуют токен, если он задан
	authenticate := s.auth.Authenticate()

	v1 := s.router.Group("/api/v1")
	{
		landing := v1.Group("/performance/landing")
		landing.GET("", s.restHandler.GetLanding)
		landing.PATCH("", authenticate, s.restHandler.PatchLanding)
		landing.DELETE("", authenticate, s.restHandler.DeleteLanding)
		landing.POST("/calculate", authenticate, s.restHandler.CalculateLanding)
		landing.POST("/autofill", authenticate, s.restHandler.Autofill)
		landing.GET("/history", s.restHandler.GetLandingHistory)

		v1.GET("/metar/:icao", s.restHandler.GetMetar)

		v1.GET("/settings", s.restHandler.ListSettings)
		v1.GET("/settings/:key", s.restHandler.GetSetting)
		v1.PUT("/settings/:key", authenticate, s.restHandler.PutSetting)

		v1.GET("/failures", s.restHandler.GetFailures)
		v1.POST("/failures/:id/toggle", authenticate, s.restHandler.ToggleFailure)
	}

	s.router.GET("/ws/v1/updates", s.wsHandler.HandleWebSocket)

	if s.config.Monitoring.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// Router возвращает gin engine (используется в тестах)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// WebSocket возвращает обработчик WebSocket
func (s *Server) WebSocket() *WebSocketHandler {
	return s.wsHandler
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"address": s.config.Server.Address,
		"mode":    gin.Mode(),
	}).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown корректное завершение сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.wsHandler.Close()
	return s.httpServer.Shutdown(ctx)
}

// initialMessages текущее состояние для нового WebSocket клиента
func (s *Server) initialMessages() map[string]interface{} {
	deps := s.restHandler.deps
	out := map[string]interface{}{
		MessageLanding: LandingPayload{State: deps.Landing.Snapshot()},
	}
	if deps.Failures != nil {
		out[MessageFailures] = deps.Failures.Snapshot()
	}
	return out
}

// healthCheck проверяет зависимости сервиса
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":     state,
		"timestamp":  time.Now().Unix(),
		"components": components,
		"websocket":  s.wsHandler.GetStats(),
	})
}

// ==================== Middleware ====================

// LoggerMiddleware логирование запросов
func LoggerMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Обработка запроса
		c.Next()

		logger.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP request completed")
	}
}

// CORSMiddleware настройка CORS
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}

	return cors.New(cfg)
}

// RateLimitMiddleware ограничение частоты запросов
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			writeError(c, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware заголовки безопасности
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}
