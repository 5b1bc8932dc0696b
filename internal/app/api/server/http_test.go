package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	mw "github.com/fatflowers/membership/internal/app/api/middleware"
	cfgpkg "github.com/fatflowers/membership/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newEngine()
	registerRoutes(r, routeDeps{
		Log: zap.NewNop().Sugar(),
		Cfg: &cfgpkg.Config{MetricsAddr: ":0", RateLimit: cfgpkg.RateLimitConfig{RPS: 5, Burst: 10}},
	})

	routes := map[string]bool{}
	for _, rt := range r.Routes() {
		routes[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /api/v1/membership/current",
		"POST /api/v1/membership/upgrade/quote",
		"POST /api/v1/membership/upgrade",
		"GET /api/v1/benefit/summary",
		"GET /api/v1/point/usable",
		"GET /api/v1/point/summary",
		"POST /api/v1/point/consume",
		"POST /api/v1/admin/send_free_gift",
		"POST /api/v1/admin/activate_purchase",
		"POST /api/v1/admin/list_upgrade_records",
		"POST /api/v1/admin/get_membership_statistic",
	} {
		require.True(t, routes[want], want)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(mw.HeaderRequestID, "trace-1")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "trace-1", w.Header().Get(mw.HeaderRequestID))
}
