package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dbPingTimeout bounds the readiness ping so a wedged pool cannot hang the
// health endpoint.
const dbPingTimeout = 2 * time.Second

// HealthReport is the JSON body served by the health endpoint
type HealthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker reports whether the service's hard dependencies are
// reachable. The database is the only one; provider reachability is a
// per-tenant concern and not part of liveness.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker creates a checker over the given pool. A nil pool is
// reported as "not configured" rather than unhealthy.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Check runs the dependency checks and aggregates the result
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    map[string]string{},
	}

	detail, ok := h.checkDatabase(ctx)
	report.Checks["database"] = detail
	if !ok {
		report.Status = "unhealthy"
	}
	return report
}

func (h *HealthChecker) checkDatabase(ctx context.Context) (string, bool) {
	if h.pool == nil {
		return "not configured", true
	}

	ctx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return "unhealthy: " + err.Error(), false
	}
	return "healthy", true
}

// HealthHandler serves the report, answering 503 while unhealthy so the
// deployment layer stops routing traffic here
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
