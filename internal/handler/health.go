package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Dependency is one backing service checked by /readyz.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

func PostgresDependency(pool *pgxpool.Pool) Dependency {
	return Dependency{Name: "postgres", Check: pool.Ping}
}

func RedisDependency(client *redis.Client) Dependency {
	return Dependency{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func RabbitMQDependency(conn *amqp.Connection) Dependency {
	return Dependency{Name: "rabbitmq", Check: func(context.Context) error {
		if conn.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}}
}

type HealthHandler struct {
	deps []Dependency
}

func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	body := gin.H{"status": "ok"}
	code := http.StatusOK
	for _, dep := range h.deps {
		if err := dep.Check(ctx); err != nil {
			body[dep.Name] = "unavailable"
			body["status"] = "error"
			code = http.StatusServiceUnavailable
			continue
		}
		body[dep.Name] = "connected"
	}

	c.JSON(code, body)
}
