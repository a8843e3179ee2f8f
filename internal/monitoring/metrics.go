package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 5 * time.Second

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc reports the internals of a component, such as a connection pool.
type StatsFunc func() map[string]interface{}

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type RequestMetrics struct {
	RequestCount    int64            `json:"request_count"`
	AvgDurationMs   float64          `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ActiveStreams   int64            `json:"active_streams"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	LastRequest     time.Time        `json:"last_request"`
	totalDurationNs int64
}

// Monitor collects request metrics and serves health and metrics endpoints.
type Monitor struct {
	mu        sync.Mutex
	metrics   RequestMetrics
	checks    map[string]HealthCheckFunc
	stats     map[string]StatsFunc
	startTime time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{
		metrics: RequestMetrics{
			StatusCodes: make(map[string]int64),
			Endpoints:   make(map[string]int64),
		},
		checks:    make(map[string]HealthCheckFunc),
		stats:     make(map[string]StatsFunc),
		startTime: time.Now(),
	}
}

// RegisterHealthCheck adds a check run on every health request.
func (m *Monitor) RegisterHealthCheck(name string, check HealthCheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

func (m *Monitor) RegisterStats(name string, stats StatsFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[name] = stats
}

// StreamOpened and StreamClosed track long-lived event stream connections.
func (m *Monitor) StreamOpened() {
	m.mu.Lock()
	m.metrics.ActiveStreams++
	m.mu.Unlock()
}

func (m *Monitor) StreamClosed() {
	m.mu.Lock()
	m.metrics.ActiveStreams--
	m.mu.Unlock()
}

func (m *Monitor) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.mu.Lock()
		m.metrics.ActiveRequests++
		m.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()

		m.mu.Lock()
		defer m.mu.Unlock()
		m.metrics.RequestCount++
		m.metrics.ActiveRequests--
		m.metrics.totalDurationNs += duration.Nanoseconds()
		m.metrics.LastRequest = time.Now()
		if statusCode >= 400 {
			m.metrics.ErrorCount++
		}
		m.metrics.StatusCodes[http.StatusText(statusCode)]++
		m.metrics.Endpoints[endpoint]++
	}
}

func (m *Monitor) Snapshot() RequestMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.metrics
	snapshot.StatusCodes = make(map[string]int64, len(m.metrics.StatusCodes))
	snapshot.Endpoints = make(map[string]int64, len(m.metrics.Endpoints))
	for k, v := range m.metrics.StatusCodes {
		snapshot.StatusCodes[k] = v
	}
	for k, v := range m.metrics.Endpoints {
		snapshot.Endpoints[k] = v
	}
	if m.metrics.RequestCount > 0 {
		snapshot.AvgDurationMs = float64(m.metrics.totalDurationNs) / float64(m.metrics.RequestCount) / 1e6
	}
	return snapshot
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func (m *Monitor) SystemMetrics() SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return SystemMetrics{
		Uptime: time.Since(m.startTime).Round(time.Second).String(),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(ms.Alloc),
			TotalAlloc:   bToMb(ms.TotalAlloc),
			Sys:          bToMb(ms.Sys),
			NumGC:        ms.NumGC,
			GCPauseTotal: time.Duration(ms.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// RunHealthChecks runs every registered check concurrently, each under its
// own timeout derived from ctx.
func (m *Monitor) RunHealthChecks(ctx context.Context) []HealthCheck {
	m.mu.Lock()
	checks := make(map[string]HealthCheckFunc, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.Unlock()

	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		results = make([]HealthCheck, 0, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			result := HealthCheck{Name: name, Status: "healthy", LastRun: time.Now()}
			if err := check(checkCtx); err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}
			resMu.Lock()
			results = append(results, result)
			resMu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func (m *Monitor) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.Lock()
		sources := make(map[string]StatsFunc, len(m.stats))
		for name, fn := range m.stats {
			sources[name] = fn
		}
		m.mu.Unlock()

		components := make(map[string]interface{}, len(sources))
		for name, fn := range sources {
			components[name] = fn()
		}

		c.JSON(http.StatusOK, gin.H{
			"application": m.Snapshot(),
			"system":      m.SystemMetrics(),
			"components":  components,
			"timestamp":   time.Now(),
		})
	}
}

func (m *Monitor) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := m.RunHealthChecks(c.Request.Context())

		overallStatus := "healthy"
		for _, check := range checks {
			if check.Status != "healthy" {
				overallStatus = "unhealthy"
				break
			}
		}

		status := http.StatusOK
		if overallStatus != "healthy" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    time.Since(m.startTime).Round(time.Second).String(),
		})
	}
}
