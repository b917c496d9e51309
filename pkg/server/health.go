package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	statusUp       = "up"
	statusDown     = "down"
	statusDegraded = "degraded"
	statusUnknown  = "unknown"
)

// DependencyChecker проверяет доступность хранилищ
type DependencyChecker interface {
	IsDatabaseHealthy(ctx context.Context) bool
	IsRedisHealthy(ctx context.Context) bool
}

// HealthResponse ответ эндпоинта /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
}

// HealthCheck отдает состояние сервиса по HTTP.
// Postgres обязателен для готовности; без Redis сервис работает без кэша страниц.
type HealthCheck struct {
	checker  DependencyChecker
	logger   *zap.Logger
	version  string
	interval time.Duration

	server   *http.Server
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	services map[string]string
}

// NewHealthCheck создает сервис проверки здоровья
func NewHealthCheck(checker DependencyChecker, logger *zap.Logger, version string) *HealthCheck {
	return &HealthCheck{
		checker:  checker,
		logger:   logger,
		version:  version,
		interval: 10 * time.Second,
		stop:     make(chan struct{}),
		services: map[string]string{
			"service":  statusUp,
			"postgres": statusUnknown,
			"redis":    statusUnknown,
		},
	}
}

// Handler HTTP-обработчик эндпоинтов здоровья
func (h *HealthCheck) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", h.livenessHandler)
	mux.HandleFunc("/health/ready", h.readinessHandler)
	mux.HandleFunc("/health", h.healthHandler)
	return LoggingMiddleware(h.logger, mux)
}

// StartServer запускает HTTP сервер и фоновую проверку зависимостей
func (h *HealthCheck) StartServer(port int) {
	h.server = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		h.logger.Info("Starting health check server", zap.Int("port", port))
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Health check server failed", zap.Error(err))
		}
	}()

	h.Refresh(context.Background())
	go h.monitor()
}

// Stop останавливает мониторинг и HTTP сервер
func (h *HealthCheck) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stop) })
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthCheck) monitor() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Refresh(context.Background())
		case <-h.stop:
			return
		}
	}
}

// Refresh проверяет зависимости и обновляет статусы
func (h *HealthCheck) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pgStatus := statusUp
	if !h.checker.IsDatabaseHealthy(ctx) {
		pgStatus = statusDown
		h.logger.Warn("PostgreSQL health check failed")
	}

	redisStatus := statusUp
	if !h.checker.IsRedisHealthy(ctx) {
		redisStatus = statusDegraded
		h.logger.Warn("Redis health check failed, page cache disabled")
	}

	h.mu.Lock()
	h.services["postgres"] = pgStatus
	h.services["redis"] = redisStatus
	h.mu.Unlock()
}

func (h *HealthCheck) snapshot() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	services := make(map[string]string, len(h.services))
	for k, v := range h.services {
		services[k] = v
	}
	return services
}

func (h *HealthCheck) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": statusUp})
}

func (h *HealthCheck) readinessHandler(w http.ResponseWriter, _ *http.Request) {
	if h.snapshot()["postgres"] != statusUp {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  statusDown,
			"message": "PostgreSQL is not available",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": statusUp})
}

func (h *HealthCheck) healthHandler(w http.ResponseWriter, _ *http.Request) {
	services := h.snapshot()

	response := HealthResponse{
		Status:    statusUp,
		Services:  services,
		Timestamp: time.Now(),
		Version:   h.version,
	}
	code := http.StatusOK
	if services["postgres"] != statusUp {
		response.Status = statusDown
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, response)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
