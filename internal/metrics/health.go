package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Phase is the stage a batch run is in.
type Phase string

const (
	PhaseStarting    Phase = "starting"
	PhaseLoading     Phase = "loading"
	PhaseAggregating Phase = "aggregating"
	PhaseWriting     Phase = "writing"
	PhaseVerifying   Phase = "verifying"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// HealthStatus reports batch progress and sink reachability.
type HealthStatus struct {
	mu sync.RWMutex

	Phase          Phase
	CompaniesTotal int
	CompaniesDone  int
	RecordsWritten int
	LastError      string

	RedisConnected  bool
	RedisLatencyMs  float64
	SQLiteOK        bool
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a status in the starting phase.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		Phase:     PhaseStarting,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetPhase(p Phase) {
	h.mu.Lock()
	h.Phase = p
	h.mu.Unlock()
}

func (h *HealthStatus) SetCompaniesTotal(n int) {
	h.mu.Lock()
	h.CompaniesTotal = n
	h.mu.Unlock()
}

func (h *HealthStatus) CompanyDone() {
	h.mu.Lock()
	h.CompaniesDone++
	h.mu.Unlock()
}

func (h *HealthStatus) AddRecordsWritten(n int) {
	h.mu.Lock()
	h.RecordsWritten += n
	h.mu.Unlock()
}

// Fail moves the status to the failed phase and keeps the error text.
func (h *HealthStatus) Fail(err error) {
	h.mu.Lock()
	h.Phase = PhaseFailed
	if err != nil {
		h.LastError = err.Error()
	}
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic sink checks until ctx is cancelled.
// Nil clients are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if h.Phase == PhaseFailed {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	progress := 0.0
	if h.CompaniesTotal > 0 {
		progress = float64(h.CompaniesDone) / float64(h.CompaniesTotal)
	}

	status := struct {
		Status          string  `json:"status"`
		Phase           Phase   `json:"phase"`
		Uptime          string  `json:"uptime"`
		CompaniesTotal  int     `json:"companies_total"`
		CompaniesDone   int     `json:"companies_done"`
		Progress        float64 `json:"progress"`
		RecordsWritten  int     `json:"records_written"`
		LastError       string  `json:"last_error,omitempty"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at,omitempty"`
	}{
		Status:          overallStatus,
		Phase:           h.Phase,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		CompaniesTotal:  h.CompaniesTotal,
		CompaniesDone:   h.CompaniesDone,
		Progress:        progress,
		RecordsWritten:  h.RecordsWritten,
		LastError:       h.LastError,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}
	if !h.LastCheckAt.IsZero() {
		status.LastCheckAt = h.LastCheckAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
