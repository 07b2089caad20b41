package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Events      string `json:"events"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Storage:     "ok",
		Events:      "ok",
		Environment: h.cfg.Environment,
	}

	if err := h.store.Ping(ctx); err != nil {
		resp.Storage = "error"
		resp.Status = "degraded"
		h.log.Error().Err(err).Msg("content store ping failed")
	}

	if err := h.publisher.Ping(ctx); err != nil {
		resp.Events = "error"
		h.log.Error().Err(err).Msg("event publisher ping failed")
	}

	status := http.StatusOK
	if resp.Storage != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
