package app

import (
	"time"

	"github.com/fatflowers/membership/internal/app/api/server"
	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/benefit"
	"github.com/fatflowers/membership/internal/app/service/job"
	"github.com/fatflowers/membership/internal/app/service/membership"
	"github.com/fatflowers/membership/internal/app/service/point"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	"github.com/fatflowers/membership/internal/app/service/upgrade"
	"github.com/fatflowers/membership/internal/platform/db"
	"github.com/fatflowers/membership/internal/platform/redis"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	redis.Module,
	dao.Module,
	server.Module,
	benefit.Module,
	point.Module,
	membership.Module,
	upgrade.Module,
	statistics.Module,
	job.Module,
)
