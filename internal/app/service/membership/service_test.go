package membership

import (
	"context"
	"testing"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/dao/daotest"
	"github.com/fatflowers/membership/internal/app/service/benefit"
	"github.com/fatflowers/membership/internal/app/service/point"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *daotest.Fixtures) {
	db := daotest.NewDB(t)
	st := dao.New(db)
	log := zap.NewNop().Sugar()
	svc := NewService(st, benefit.NewService(st, log), point.NewService(st, log), log)
	svc.now = func() time.Time { return daotest.Day }
	return svc, db, daotest.NewFixtures(t, db)
}

func TestGrant_StacksAfterSameLevel(t *testing.T) {
	ctx := context.Background()
	svc, _, f := newTestService(t)
	gold := f.Level("gold", 1)
	f.Benefit(types.BenefitIDStorageQuota, types.BenefitConsumptionModeMax, types.BenefitUnitTypeBytes, 0)
	f.LevelBenefit(gold, types.BenefitIDStorageQuota, 100)

	first, err := svc.SendFreeGift(ctx, "u1", gold.ID, 30, "op")
	require.NoError(t, err)
	require.True(t, first.Created)
	require.True(t, first.Membership.StartDate.Equal(daotest.Day))
	require.True(t, first.Membership.EndDate.Equal(daotest.Day.AddDate(0, 0, 30)))
	require.Equal(t, types.MembershipSourceAdminGift, first.Membership.SourceType)
	require.Len(t, first.Benefits, 1)

	second, err := svc.SendFreeGift(ctx, "u1", gold.ID, 10, "op")
	require.NoError(t, err)
	require.True(t, second.Membership.StartDate.Equal(first.Membership.EndDate))
	require.True(t, second.Membership.EndDate.Equal(first.Membership.EndDate.AddDate(0, 0, 10)))
	require.True(t, second.Benefits[0].EffectiveAt.Equal(second.Membership.StartDate))

	cur, err := svc.GetCurrent(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, first.Membership.ID, cur.Membership.ID)
	require.Equal(t, "gold", cur.Level.Name)
}

func TestGrant_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, _, f := newTestService(t)
	gold := f.Level("gold", 1)

	_, err := svc.SendFreeGift(ctx, "u1", gold.ID, 0, "op")
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.SendFreeGift(ctx, "u1", "missing", 3, "op")
	require.ErrorIs(t, err, ErrLevelNotFound)

	cur, err := svc.GetCurrent(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, cur)
}

func TestActivatePurchase(t *testing.T) {
	ctx := context.Background()
	svc, db, f := newTestService(t)
	gold := f.Level("gold", 1)
	product := f.YearlyProduct(gold, "680")
	require.NoError(t, db.Model(product).Update("gift_points", 200).Error)
	order := f.PaidOrder("u1", product, "680")

	res, err := svc.ActivatePurchase(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, res.Created)
	m := res.Membership
	require.Equal(t, types.MembershipSourceDirectPurchase, m.SourceType)
	require.Equal(t, order.ID, m.SourceID)
	require.True(t, m.EndDate.Equal(daotest.Day.AddDate(0, 0, 365)))

	require.NotNil(t, res.GiftPoints)
	require.Equal(t, int64(200), res.GiftPoints.PointAmount)
	require.Equal(t, types.PointSourcePurchaseGift, res.GiftPoints.SourceType)
	require.Equal(t, m.ID, *res.GiftPoints.UserMembershipID)
	require.True(t, res.GiftPoints.ExpiredAt.Equal(m.EndDate))

	again, err := svc.ActivatePurchase(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, m.ID, again.Membership.ID)

	var n int64
	require.NoError(t, db.Model(&models.UserMembership{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
	require.NoError(t, db.Model(&models.PointRecord{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestActivatePurchase_RejectsUnpaidOrder(t *testing.T) {
	ctx := context.Background()
	svc, db, f := newTestService(t)
	gold := f.Level("gold", 1)
	order := f.PaidOrder("u1", f.YearlyProduct(gold, "680"), "680")
	require.NoError(t, db.Model(order).Update("status", types.OrderStatusPending).Error)

	_, err := svc.ActivatePurchase(ctx, order.ID)
	require.ErrorIs(t, err, ErrOrderNotPaid)
	_, err = svc.ActivatePurchase(ctx, "missing")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	svc, db, f := newTestService(t)
	gold := f.Level("gold", 1)
	f.Benefit(types.BenefitIDStorageQuota, types.BenefitConsumptionModeMax, types.BenefitUnitTypeBytes, 0)
	f.LevelBenefit(gold, types.BenefitIDStorageQuota, 100)

	svc.now = func() time.Time { return daotest.Day.AddDate(0, 0, -40) }
	old, err := svc.SendFreeGift(ctx, "u1", gold.ID, 30, "op")
	require.NoError(t, err)
	svc.now = func() time.Time { return daotest.Day }
	live, err := svc.SendFreeGift(ctx, "u2", gold.ID, 30, "op")
	require.NoError(t, err)

	n, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	expired := daotest.Reload[models.UserMembership](t, db, old.Membership.ID)
	require.Equal(t, types.MembershipStatusInactive, expired.Status)
	grant := daotest.Reload[models.UserBenefit](t, db, old.Benefits[0].ID)
	require.Equal(t, types.UserBenefitStatusInactive, grant.Status)

	still := daotest.Reload[models.UserMembership](t, db, live.Membership.ID)
	require.Equal(t, types.MembershipStatusActive, still.Status)

	n, err = svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	var logs int64
	require.NoError(t, db.Model(&models.MembershipLog{}).Where("reason = ?", types.MembershipChangeReasonExpired).Count(&logs).Error)
	require.Equal(t, int64(1), logs)
}
