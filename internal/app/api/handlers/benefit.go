package handlers

import (
	"context"
	"net/http"

	"github.com/fatflowers/membership/internal/app/service/benefit"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/gin-gonic/gin"
)

type BenefitService interface {
	Summarize(ctx context.Context, userID string) ([]*benefit.Summary, error)
}

// ApiBenefitSummary handles GET /api/v1/benefit/summary.
func ApiBenefitSummary(svc BenefitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := queryUserID(c)
		if !ok {
			return
		}
		items, err := svc.Summarize(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterBenefitRoutes(r gin.IRouter, svc BenefitService) {
	r.GET("/summary", ApiBenefitSummary(svc))
}
