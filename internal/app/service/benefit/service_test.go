package benefit

import (
	"context"
	"testing"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/dao/daotest"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const gib = int64(1) << 30

func newTestService(t *testing.T) (*Service, *daotest.Fixtures, *dao.Store) {
	db := daotest.NewDB(t)
	st := dao.New(db)
	svc := NewService(st, zap.NewNop().Sugar())
	svc.now = func() time.Time { return daotest.Day }
	return svc, daotest.NewFixtures(t, db), st
}

func TestGrantAndExpire(t *testing.T) {
	ctx := context.Background()
	svc, f, st := newTestService(t)
	gold := f.Level("gold", 1)
	f.Benefit(types.BenefitIDStorageQuota, types.BenefitConsumptionModeMax, types.BenefitUnitTypeBytes, gib)
	f.Benefit("ai_credits", types.BenefitConsumptionModeSum, types.BenefitUnitTypeCount, 0)
	f.LevelBenefit(gold, types.BenefitIDStorageQuota, 100*gib)
	f.LevelBenefit(gold, "ai_credits", 500)

	start, end := daotest.Day, daotest.Day.AddDate(1, 0, 0)
	grants, err := svc.Grant(ctx, "u1", "m1", gold.ID, start, end)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	for _, g := range grants {
		require.Equal(t, types.UserBenefitSourceMembershipGift, g.SourceType)
		require.Equal(t, "m1", g.SourceID)
		require.True(t, g.EffectiveAt.Equal(start))
		require.True(t, g.ExpiredAt.Equal(end))
	}

	n, err := svc.Expire(ctx, "u1", "m1")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	active, err := st.FindActiveBenefitGrants(ctx, "u1", daotest.Day)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestGrant_NoBenefitsIsNoop(t *testing.T) {
	svc, f, _ := newTestService(t)
	bronze := f.Level("bronze", 3)
	grants, err := svc.Grant(context.Background(), "u1", "m1", bronze.ID, daotest.Day, daotest.Day.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Empty(t, grants)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	svc, f, st := newTestService(t)
	f.Benefit(types.BenefitIDStorageQuota, types.BenefitConsumptionModeMax, types.BenefitUnitTypeBytes, gib)
	f.Benefit("ai_credits", types.BenefitConsumptionModeSum, types.BenefitUnitTypeCount, 10)
	f.Benefit("seats", types.BenefitConsumptionModeSum, types.BenefitUnitTypeCount, 1)

	grant := func(benefitID string, value int64, from, to time.Time, status types.UserBenefitStatus) *models.UserBenefit {
		return &models.UserBenefit{
			UserID: "u1", BenefitID: benefitID, BenefitValue: decimal.NewFromInt(value),
			SourceType: types.UserBenefitSourceCampaign, SourceID: "c",
			EffectiveAt: from, ExpiredAt: to, Status: status,
		}
	}
	past, future := daotest.Day.AddDate(0, -1, 0), daotest.Day.AddDate(0, 1, 0)
	require.NoError(t, st.CreateBenefitGrants(ctx, []*models.UserBenefit{
		grant(types.BenefitIDStorageQuota, 100*gib, past, future, types.UserBenefitStatusActive),
		grant(types.BenefitIDStorageQuota, 200*gib, past, future, types.UserBenefitStatusActive),
		grant(types.BenefitIDStorageQuota, 999*gib, past, future, types.UserBenefitStatusInactive),
		grant("ai_credits", 1000, past, future, types.UserBenefitStatusActive),
		grant("ai_credits", 500, past, future, types.UserBenefitStatusActive),
		grant("ai_credits", 700, future, future.AddDate(0, 1, 0), types.UserBenefitStatusActive),
	}))
	require.NoError(t, st.DB().Create(&models.UserStorageUsage{UserID: "u1", UsedBytes: 250 * gib}).Error)

	out, err := svc.Summarize(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, out, 3)
	byID := map[string]*Summary{}
	for _, s := range out {
		byID[s.BenefitID] = s
	}

	storage := byID[types.BenefitIDStorageQuota]
	require.True(t, storage.Total.Equal(decimal.NewFromInt(200*gib)))
	require.True(t, storage.Used.Equal(decimal.NewFromInt(250*gib)))
	require.True(t, storage.Remaining.IsZero())
	require.Equal(t, "200 GiB", storage.TotalDisplay)
	require.False(t, storage.IsDefault)

	credits := byID["ai_credits"]
	require.True(t, credits.Total.Equal(decimal.NewFromInt(1500)))
	require.True(t, credits.Used.IsZero())
	require.Equal(t, "1,500", credits.RemainingDisplay)

	seats := byID["seats"]
	require.True(t, seats.IsDefault)
	require.True(t, seats.Total.Equal(decimal.NewFromInt(1)))
}

func TestFormat(t *testing.T) {
	require.Equal(t, "1.0 GiB", Format(types.BenefitUnitTypeBytes, decimal.NewFromInt(gib)))
	require.Equal(t, "0 B", Format(types.BenefitUnitTypeBytes, decimal.Zero))
	require.Equal(t, "1,234,567", Format(types.BenefitUnitTypeCount, decimal.NewFromInt(1234567)))
}
