package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status представляет статус компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// checkTimeout ограничивает каждую проверку: health endpoint не должен
// виснуть вместе с недоступной зависимостью.
const checkTimeout = 2 * time.Second

// Check — результат одной проверки зависимости.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — агрегированный ответ health endpoint'а.
type Response struct {
	Status        Status  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	Checks        []Check `json:"checks,omitempty"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// CheckFunc проверяет одну зависимость (postgres, redis, kafka, каталог).
type CheckFunc func(ctx context.Context) error

type probe struct {
	name     string
	check    CheckFunc
	critical bool
}

// Handler агрегирует проверки зависимостей сервиса заказов.
type Handler struct {
	mu        sync.RWMutex
	probes    []probe
	version   string
	startTime time.Time
}

// NewHandler создаёт handler с версией сборки.
func NewHandler(version string) *Handler {
	return &Handler{
		version:   version,
		startTime: time.Now(),
	}
}

// Register добавляет критичную проверку: её провал делает сервис not ready.
func (h *Handler) Register(name string, check CheckFunc) {
	h.register(name, check, true)
}

// RegisterOptional добавляет некритичную проверку: её провал даёт degraded,
// но readiness не роняет (например, кеш каталога).
func (h *Handler) RegisterOptional(name string, check CheckFunc) {
	h.register(name, check, false)
}

func (h *Handler) register(name string, check CheckFunc, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, probe{name: name, check: check, critical: critical})
}

func (h *Handler) snapshot() []probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]probe(nil), h.probes...)
}

func runCheck(ctx context.Context, p probe) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p.check(ctx)
	result := Check{
		Name:       p.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Message = err.Error()
		if p.critical {
			result.Status = StatusUnhealthy
		} else {
			result.Status = StatusDegraded
		}
	}
	return result
}

// ServeHTTP отдаёт развёрнутый health-отчёт по всем зависимостям.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	probes := h.snapshot()

	checks := make([]Check, 0, len(probes))
	overall := StatusHealthy
	for _, p := range probes {
		check := runCheck(r.Context(), p)
		checks = append(checks, check)

		switch check.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	response := Response{
		Status:        overall,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler проверяет только критичные зависимости.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.snapshot() {
		if !p.critical {
			continue
		}
		if check := runCheck(r.Context(), p); check.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready: " + check.Name))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler — liveness probe, всегда 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
