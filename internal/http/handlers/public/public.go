package public

import (
	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/models"

	"github.com/gin-gonic/gin"
)

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	dbStatus := "ok"
	if models.DB == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := models.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "unavailable"
	}
	response.Success(c, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"queue":    h.QueueClient.Enabled(),
	})
}
