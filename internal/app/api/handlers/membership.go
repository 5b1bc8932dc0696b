package handlers

import (
	"context"
	"net/http"

	"github.com/fatflowers/membership/internal/app/service/membership"
	"github.com/fatflowers/membership/internal/app/service/upgrade"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/gin-gonic/gin"
)

type MembershipService interface {
	GetCurrent(ctx context.Context, userID string) (*membership.Current, error)
}

type UpgradeService interface {
	Quote(ctx context.Context, req *upgrade.QuoteRequest) (*upgrade.Quote, error)
	Execute(ctx context.Context, req *upgrade.Request) *upgrade.Result
}

// ApiGetCurrentMembership handles GET /api/v1/membership/current. Data is null when the user has
// no membership in force.
func ApiGetCurrentMembership(svc MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := queryUserID(c)
		if !ok {
			return
		}
		cur, err := svc.GetCurrent(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(cur))
	}
}

// ApiQuoteUpgrade handles POST /api/v1/membership/upgrade/quote.
func ApiQuoteUpgrade(svc UpgradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req upgrade.QuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		q, err := svc.Quote(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(q))
	}
}

// ApiExecuteUpgrade handles POST /api/v1/membership/upgrade. A refused or failed upgrade answers
// 40900 with the result carrying the reason.
func ApiExecuteUpgrade(svc UpgradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req upgrade.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res := svc.Execute(c.Request.Context(), &req)
		if !res.Success {
			c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeConflict, res))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// RegisterMembershipRoutes mounts the membership routes; mutation handlers run before the upgrade.
func RegisterMembershipRoutes(r gin.IRouter, members MembershipService, upgrades UpgradeService, mutation ...gin.HandlerFunc) {
	r.GET("/current", ApiGetCurrentMembership(members))
	r.POST("/upgrade/quote", ApiQuoteUpgrade(upgrades))
	r.POST("/upgrade", append(mutation, ApiExecuteUpgrade(upgrades))...)
}
