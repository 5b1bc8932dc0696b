package handlers

import (
	"context"
	"net/http"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/membership"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/gin-gonic/gin"
)

type AdminMembershipService interface {
	SendFreeGift(ctx context.Context, userID, levelID string, days int, operatorID string) (*membership.GrantResult, error)
	ActivatePurchase(ctx context.Context, orderID string) (*membership.GrantResult, error)
}

type UpgradeRecordScanner interface {
	ScanUpgradeRecords(ctx context.Context, req *dao.ScanRequest) ([]*models.UpgradeRecord, int64, error)
}

type StatisticService interface {
	GetMembershipStatistic(ctx context.Context, req *statistics.MembershipStatisticRequest) (*statistics.MembershipStatisticResponse, error)
}

type SendFreeGiftRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	LevelID    string `json:"level_id" binding:"required"`
	Days       int    `json:"days" binding:"required,gt=0"`
	OperatorID string `json:"operator_id" binding:"required"`
}

type ActivatePurchaseRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type ListUpgradeRecordsResponse struct {
	Items []*models.UpgradeRecord `json:"items"`
	Total int64                   `json:"total"`
}

// ApiSendFreeGift handles POST /api/v1/admin/send_free_gift
func ApiSendFreeGift(svc AdminMembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendFreeGiftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.SendFreeGift(c.Request.Context(), req.UserID, req.LevelID, req.Days, req.OperatorID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// ApiActivatePurchase handles POST /api/v1/admin/activate_purchase
func ApiActivatePurchase(svc AdminMembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ActivatePurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.ActivatePurchase(c.Request.Context(), req.OrderID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// ApiListUpgradeRecords handles POST /api/v1/admin/list_upgrade_records
func ApiListUpgradeRecords(scanner UpgradeRecordScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dao.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.Validate(dao.UpgradeRecordColumns); err != nil {
			badRequest(c, err)
			return
		}
		items, total, err := scanner.ScanUpgradeRecords(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListUpgradeRecordsResponse{Items: items, Total: total}))
	}
}

// ApiGetMembershipStatistic handles POST /api/v1/admin/get_membership_statistic
func ApiGetMembershipStatistic(svc StatisticService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.MembershipStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.Validate(); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.GetMembershipStatistic(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, members AdminMembershipService, scanner UpgradeRecordScanner, stats StatisticService, mutation ...gin.HandlerFunc) {
	r.POST("/send_free_gift", append(mutation, ApiSendFreeGift(members))...)
	r.POST("/activate_purchase", append(mutation, ApiActivatePurchase(members))...)
	r.POST("/list_upgrade_records", ApiListUpgradeRecords(scanner))
	r.POST("/get_membership_statistic", ApiGetMembershipStatistic(stats))
}
