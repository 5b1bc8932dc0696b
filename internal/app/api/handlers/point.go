package handlers

import (
	"context"
	"net/http"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/point"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/gin-gonic/gin"
)

type PointService interface {
	FindUsable(ctx context.Context, userID string) ([]*models.PointRecord, error)
	SumValid(ctx context.Context, userID string) (*dao.PointSum, error)
	Consume(ctx context.Context, userID string, amount int64, remark string) ([]*point.Consumption, error)
}

type ConsumePointsRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Remark string `json:"remark"`
}

// ApiUsablePoints handles GET /api/v1/point/usable.
func ApiUsablePoints(svc PointService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := queryUserID(c)
		if !ok {
			return
		}
		lots, err := svc.FindUsable(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(lots))
	}
}

// ApiPointSummary handles GET /api/v1/point/summary.
func ApiPointSummary(svc PointService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := queryUserID(c)
		if !ok {
			return
		}
		sum, err := svc.SumValid(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sum))
	}
}

// ApiConsumePoints handles POST /api/v1/point/consume.
func ApiConsumePoints(svc PointService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConsumePointsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		out, err := svc.Consume(c.Request.Context(), req.UserID, req.Amount, req.Remark)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func RegisterPointRoutes(r gin.IRouter, svc PointService, mutation ...gin.HandlerFunc) {
	r.GET("/usable", ApiUsablePoints(svc))
	r.GET("/summary", ApiPointSummary(svc))
	r.POST("/consume", append(mutation, ApiConsumePoints(svc))...)
}
