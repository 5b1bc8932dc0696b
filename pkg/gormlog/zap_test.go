package gormlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/membership/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestShortCaller(t *testing.T) {
	require.Equal(t, "internal/app/dao/point.go:38", shortCaller("/Users/alex/repo/internal/app/dao/point.go:38"))
	require.Equal(t, "pkg/x/y.go:12", shortCaller(`C:\repo\project\pkg\x\y.go:12`))
	require.Equal(t, "a/b/c.go:1", shortCaller("/root/a/b/c.go:1"))
	require.Equal(t, "", shortCaller(""))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, gormlogger.Silent, ParseLevel("silent"))
	require.Equal(t, gormlogger.Info, ParseLevel(" INFO "))
	require.Equal(t, gormlogger.Warn, ParseLevel("bogus"))
}

func TestTrace_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core).Sugar(), config.DBConfig{SlowThresholdMs: 10, LogLevel: "warn"})

	sql := func() (string, int64) { return "SELECT 1", 1 }
	l.Trace(context.Background(), time.Now(), sql, nil)
	require.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm_slow").Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	require.Equal(t, 1, logs.FilterMessage("gorm_trace").Len())

	l.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	require.Equal(t, 1, logs.FilterMessage("gorm_trace").Len())
}
