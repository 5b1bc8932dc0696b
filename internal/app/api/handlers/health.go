package handlers

import (
	"net/http"

	"github.com/fatflowers/membership/pkg/response"
	"github.com/gin-gonic/gin"
)

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
