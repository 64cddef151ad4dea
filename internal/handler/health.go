package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the database and Redis answer. Redis is
// optional: "disabled" does not make the service unhealthy.
type HealthHandler struct {
	DB    Pinger
	Redis *redis.Client
}

func NewHealthHandler(db Pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, Redis: rdb}
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	dbState := "ok"
	if h.DB == nil || h.DB.PingContext(ctx) != nil {
		dbState, status, code = "down", "degraded", http.StatusServiceUnavailable
	}
	redisState := "disabled"
	if h.Redis != nil {
		redisState = "ok"
		if h.Redis.Ping(ctx).Err() != nil {
			redisState = "down"
		}
	}
	return c.JSON(code, echo.Map{"status": status, "database": dbState, "redis": redisState})
}
