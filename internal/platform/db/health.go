package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolSnapshot is the saturation view reported by the readiness endpoint.
// A registry build replaces every record of an import in one transaction,
// so acquired-vs-max is the number operators watch during bulk rebuilds.
type poolSnapshot struct {
	Acquired int32 `json:"acquired"`
	Idle     int32 `json:"idle"`
	Max      int32 `json:"max"`
}

// HealthHandler checks the registry database: a liveness ping with its
// round-trip latency, the pool snapshot, and the count of applied schema
// migrations. A reachable but unmigrated database is reported as not ready,
// since the import and record stores cannot work without the schema.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		err := pool.Ping(ctx)
		latency := time.Since(start)

		stat := pool.Stat()
		body := map[string]interface{}{
			"latency_ms": latency.Milliseconds(),
			"pool": poolSnapshot{
				Acquired: stat.AcquiredConns(),
				Idle:     stat.IdleConns(),
				Max:      stat.MaxConns(),
			},
		}

		if err != nil {
			body["status"] = "unreachable"
			body["error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		var applied int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM _migrations`).Scan(&applied); err != nil || applied == 0 {
			body["status"] = "schema missing"
			if err != nil {
				body["error"] = err.Error()
			}
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		body["status"] = "ready"
		body["migrations_applied"] = applied
		return c.JSON(http.StatusOK, body)
	}
}
