package handlers

import (
	"errors"
	"net/http"

	"github.com/fatflowers/membership/internal/app/service/membership"
	"github.com/fatflowers/membership/internal/app/service/point"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	"github.com/fatflowers/membership/internal/app/service/upgrade"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/gin-gonic/gin"
)

var errMissingUserID = errors.New("missing user_id")

var badRequests = []error{
	upgrade.ErrInvalidRequest,
	membership.ErrInvalidRequest,
	point.ErrInvalidAmount,
	statistics.ErrInvalidRequest,
	types.ErrInvalidFilter,
	errMissingUserID,
}

var conflicts = []error{
	point.ErrInsufficientPoints,
	membership.ErrLevelNotFound,
	membership.ErrOrderNotFound,
	membership.ErrOrderNotPaid,
	membership.ErrProductNotMembership,
}

func errorCode(err error) response.APIResponseCode {
	for _, e := range badRequests {
		if errors.Is(err, e) {
			return response.APIResponseCodeBadRequest
		}
	}
	if upgrade.IsRejection(err) {
		return response.APIResponseCodeConflict
	}
	for _, e := range conflicts {
		if errors.Is(err, e) {
			return response.APIResponseCodeConflict
		}
	}
	return response.APIResponseCodeError
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusOK, response.ErrorT[any](errorCode(err), err.Error()))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}

func queryUserID(c *gin.Context) (string, bool) {
	uid := c.Query("user_id")
	if uid == "" {
		badRequest(c, errMissingUserID)
		return "", false
	}
	return uid, true
}
