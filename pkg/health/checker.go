package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Checker is a health probe that returns an error when unhealthy
type Checker func(ctx context.Context) error

const probeTimeout = 2 * time.Second

// PostgresChecker probes the connection pool.
func PostgresChecker(pool *pgxpool.Pool) Checker {
	return func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("database pool is nil")
		}
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	}
}

// RedisChecker probes the Redis connection.
func RedisChecker(client redis.UniversalClient) Checker {
	return func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// StatusChecker adapts a boolean status function (e.g. a NATS connection's
// IsConnected) into a probe.
func StatusChecker(name string, connected func() bool) Checker {
	return func(ctx context.Context) error {
		if !connected() {
			return fmt.Errorf("%s not connected", name)
		}
		return nil
	}
}

// Handler serves liveness and readiness endpoints over a set of named
// dependency probes. Liveness never consults dependencies.
type Handler struct {
	service  string
	checkers map[string]Checker
}

// NewHandler creates a health handler for a service.
func NewHandler(service string) *Handler {
	return &Handler{service: service, checkers: make(map[string]Checker)}
}

// Register adds a named dependency probe to readiness.
func (h *Handler) Register(name string, checker Checker) {
	h.checkers[name] = checker
}

// RegisterRoutes mounts /healthz, /health/live and /health/ready.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.live)
	r.GET("/health/live", h.live)
	r.GET("/health/ready", h.ready)
}

func (h *Handler) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

func (h *Handler) ready(c *gin.Context) {
	results := make(map[string]string, len(h.checkers))
	healthy := true

	for name, checker := range h.checkers {
		if err := checker(c.Request.Context()); err != nil {
			results[name] = err.Error()
			healthy = false
		} else {
			results[name] = "ok"
		}
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "not ready"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": h.service,
		"checks":  results,
	})
}
