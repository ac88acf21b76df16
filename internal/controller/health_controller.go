package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb}
}

// @Summary Health check
// @Description Reports database and redis availability
// @Tags System
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{"database": "up"}

	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		util.ErrorWithData(ctx, http.StatusServiceUnavailable, "Database unavailable", gin.H{"database": "down"})
		return
	}

	if c.Redis == nil {
		components["redis"] = "disabled"
	} else if err := c.Redis.Ping(pingCtx).Err(); err != nil {
		util.ErrorWithData(ctx, http.StatusServiceUnavailable, "Redis unavailable", gin.H{"database": "up", "redis": "down"})
		return
	} else {
		components["redis"] = "up"
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
