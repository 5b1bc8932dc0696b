package upgrade

import (
	"context"
	"testing"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/dao/daotest"
	"github.com/fatflowers/membership/internal/app/service/benefit"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/redis"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const gib = int64(1) << 30

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	st       *dao.Store
	f        *daotest.Fixtures
	benefits *benefit.Service
	locker   *redis.LocalLocker
	platinum *models.MembershipLevel
	gold     *models.MembershipLevel
	silver   *models.MembershipLevel
}

func newTestEnv(t *testing.T) *testEnv {
	db := daotest.NewDB(t)
	st := dao.New(db)
	log := zap.NewNop().Sugar()
	benefits := benefit.NewService(st, log)
	locker := redis.NewLocalLocker()
	svc := NewService(&config.Config{}, st, benefits, locker, log)
	svc.now = func() time.Time { return daotest.Day }

	f := daotest.NewFixtures(t, db)
	e := &testEnv{svc: svc, db: db, st: st, f: f, benefits: benefits, locker: locker}
	e.platinum = f.Level("platinum", 0)
	e.gold = f.Level("gold", 1)
	e.silver = f.Level("silver", 2)
	f.YearlyProduct(e.platinum, "1000")
	f.YearlyProduct(e.gold, "680")
	f.YearlyProduct(e.silver, "365")

	f.Benefit(types.BenefitIDStorageQuota, types.BenefitConsumptionModeMax, types.BenefitUnitTypeBytes, gib)
	f.LevelBenefit(e.gold, types.BenefitIDStorageQuota, 100*gib)
	f.LevelBenefit(e.silver, types.BenefitIDStorageQuota, 10*gib)
	return e
}

// silverMembership is a 365 day silver membership paid 365, with 100 days left at daotest.Day.
func (e *testEnv) silverMembership(t *testing.T, userID string) *models.UserMembership {
	product := e.f.YearlyProduct(e.silver, "365")
	order := e.f.PaidOrder(userID, product, "365")
	end := daotest.Day.AddDate(0, 0, 100)
	m := e.f.Membership(userID, e.silver, order, end.AddDate(0, 0, -365), end)
	_, err := e.benefits.Grant(context.Background(), userID, m.ID, e.silver.ID, m.StartDate, m.EndDate)
	require.NoError(t, err)
	return m
}

func upgradeRequest(userID, levelID, orderID string) *Request {
	return &Request{UserID: userID, TargetLevelID: levelID, OrderID: orderID, OrderNo: "NO-" + orderID}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestUpgrade_NormalSettlement(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	old := e.silverMembership(t, "u1")
	gift := e.f.Points(old, types.PointSourcePurchaseGift, 100, 30, old.EndDate)
	campaign := e.f.Points(old, types.PointSourceCampaign, 50, 0, daotest.Day.AddDate(0, 1, 0))
	spent := e.f.Points(old, types.PointSourceCampaign, 20, 20, old.EndDate)
	expired := e.f.Points(old, types.PointSourceCampaign, 40, 0, daotest.Day.AddDate(0, 0, -1))

	out, err := e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.NoError(t, err)

	// pricing: 100 of 365 days, paid 365, gold 680 a year
	requireDecimal(t, "86.30", out.Pricing.UpgradePrice)
	require.Equal(t, int64(863), out.Pricing.PointCompensation)

	// windows
	settled := daotest.Reload[models.UserMembership](t, e.db, old.ID)
	require.Equal(t, types.MembershipStatusSettled, settled.Status)
	require.True(t, settled.EndDate.Equal(daotest.Day.AddDate(0, 0, -1)))
	require.NotNil(t, settled.SettlementAt)
	require.True(t, settled.SettlementAt.Equal(daotest.Day))

	newM := daotest.Reload[models.UserMembership](t, e.db, out.NewMembership.ID)
	require.Equal(t, e.gold.ID, newM.LevelID)
	require.Equal(t, types.MembershipStatusActive, newM.Status)
	require.Equal(t, types.MembershipSourceUpgrade, newM.SourceType)
	require.Equal(t, "order-1", newM.SourceID)
	require.True(t, newM.StartDate.Equal(daotest.Day))
	require.True(t, newM.EndDate.Equal(old.EndDate))

	// point conservation
	transfer := out.TransferRecord
	require.NotNil(t, transfer)
	require.Equal(t, int64(120), transfer.PointAmount)
	require.Equal(t, int64(120), transfer.Remaining)
	require.Equal(t, types.PointSourceUpgradeTransfer, transfer.SourceType)
	require.True(t, transfer.EffectiveAt.Equal(daotest.Day))
	require.True(t, transfer.ExpiredAt.Equal(old.EndDate))

	var moved int64
	for _, id := range []string{gift.ID, campaign.ID} {
		r := daotest.Reload[models.PointRecord](t, e.db, id)
		require.Equal(t, types.PointRecordStatusUpgradeSettled, r.Status)
		require.Zero(t, r.Remaining)
		require.NotNil(t, r.TransferToRecordID)
		require.Equal(t, transfer.ID, *r.TransferToRecordID)
		moved += r.TransferOut
	}
	require.Equal(t, transfer.PointAmount, moved)
	for _, id := range []string{spent.ID, expired.ID} {
		r := daotest.Reload[models.PointRecord](t, e.db, id)
		require.Equal(t, types.PointRecordStatusValid, r.Status)
		require.Nil(t, r.TransferToRecordID)
	}

	comp := out.CompensationRecord
	require.NotNil(t, comp)
	require.Equal(t, int64(863), comp.PointAmount)
	require.Equal(t, types.PointSourceUpgradeCompensation, comp.SourceType)
	require.Contains(t, comp.Remark, "NO-order-1")

	// audit
	rec, err := e.st.FindUpgradeRecordByToMembership(ctx, newM.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, old.ID, rec.FromMembershipID)
	require.Equal(t, int64(120), rec.TransferPoints)
	require.Equal(t, int64(863), rec.PointCompensation)
	requireDecimal(t, "86.30", rec.UpgradePrice)
	details := rec.Details.Data()
	require.False(t, details.PrePurchase)
	require.True(t, details.OldMembership.EndDate.Equal(old.EndDate))
	require.True(t, details.OldMembershipSettled.EndDate.Equal(daotest.Day.AddDate(0, 0, -1)))
	require.Len(t, details.TransferredPointRecord, 2)
	require.Equal(t, campaign.ID, details.TransferredPointRecord[0].PointRecordID)
	require.Equal(t, transfer.ID, *details.TransferRecordID)
	require.Equal(t, comp.ID, *details.CompensationRecordID)
	require.Equal(t, 365, details.Calculation.OriginalTotalDays)
	require.Equal(t, 100, details.Calculation.RemainingDays)

	// benefits follow the membership
	grants, err := e.st.FindBenefitGrantsBySource(ctx, types.UserBenefitSourceMembershipGift, old.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, types.UserBenefitStatusInactive, grants[0].Status)
	grants, err = e.st.FindBenefitGrantsBySource(ctx, types.UserBenefitSourceMembershipGift, newM.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, types.UserBenefitStatusActive, grants[0].Status)
	require.True(t, grants[0].BenefitValue.Equal(decimal.NewFromInt(100*gib)))
	require.True(t, grants[0].EffectiveAt.Equal(newM.StartDate))
	require.True(t, grants[0].ExpiredAt.Equal(newM.EndDate))

	var logs int64
	require.NoError(t, e.db.Model(&models.MembershipLog{}).Count(&logs).Error)
	require.Equal(t, int64(2), logs)
}

func TestUpgrade_SecondAttemptIsRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	old := e.silverMembership(t, "u1")

	res := e.svc.Execute(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.True(t, res.Success)
	require.NotNil(t, res.NewMembership)

	again := upgradeRequest("u1", e.gold.ID, "order-2")
	again.MembershipID = old.ID
	res = e.svc.Execute(ctx, again)
	require.False(t, res.Success)
	require.Equal(t, "no active membership", res.ErrorMessage)

	res = e.svc.Execute(ctx, upgradeRequest("u1", e.gold.ID, "order-3"))
	require.False(t, res.Success)
	require.Equal(t, "target tier must be higher than current tier", res.ErrorMessage)

	var records int64
	require.NoError(t, e.db.Model(&models.UpgradeRecord{}).Count(&records).Error)
	require.Equal(t, int64(1), records)
}

func TestUpgrade_PrePurchase(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	product := e.f.YearlyProduct(e.silver, "365")
	order := e.f.PaidOrder("u1", product, "365")
	start := daotest.Day.AddDate(0, 0, 10)
	future := e.f.Membership("u1", e.silver, order, start, start.AddDate(0, 0, 365))
	e.f.Points(future, types.PointSourcePurchaseGift, 70, 0, future.EndDate)

	req := upgradeRequest("u1", e.gold.ID, "order-1")
	req.MembershipID = future.ID
	out, err := e.svc.Upgrade(ctx, req)
	require.NoError(t, err)

	settled := daotest.Reload[models.UserMembership](t, e.db, future.ID)
	require.Equal(t, types.MembershipStatusSettled, settled.Status)
	require.True(t, settled.EndDate.Equal(future.EndDate))
	require.True(t, out.NewMembership.StartDate.Equal(start))
	require.True(t, out.NewMembership.EndDate.Equal(future.EndDate))
	require.True(t, out.TransferRecord.EffectiveAt.Equal(start))
	require.True(t, out.UpgradeRecord.Details.Data().PrePurchase)

	// the whole year is repriced: 680 - 365
	requireDecimal(t, "315", out.Pricing.UpgradePrice)
	require.Equal(t, int64(3150), out.Pricing.PointCompensation)
}

func TestUpgrade_ChainedUpgradeKeepsOriginalLot(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.silverMembership(t, "u1")

	first, err := e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.NoError(t, err)

	e.svc.now = func() time.Time { return daotest.Day.AddDate(0, 0, 50) }
	q, err := e.svc.Quote(ctx, &QuoteRequest{UserID: "u1", TargetLevelID: e.platinum.ID})
	require.NoError(t, err)
	require.Equal(t, first.NewMembership.ID, q.MembershipID)
	require.Equal(t, 365, q.Calculation.OriginalTotalDays)
	require.Equal(t, 50, q.Calculation.RemainingDays)
	// paid 365 + 86.30 over the original 365 day lot
	requireDecimal(t, "451.30", q.Calculation.PaidAmount)
	requireDecimal(t, "75.17", q.UpgradePrice)
	require.Equal(t, int64(752), q.PointCompensation)
	require.Equal(t, int64(863), q.TransferPoints)

	second, err := e.svc.Upgrade(ctx, upgradeRequest("u1", e.platinum.ID, "order-2"))
	require.NoError(t, err)
	require.True(t, q.UpgradePrice.Equal(second.Pricing.UpgradePrice))
	require.Equal(t, int64(863), second.TransferRecord.PointAmount)
	require.True(t, second.NewMembership.EndDate.Equal(first.NewMembership.EndDate))
}

func TestUpgrade_NoPointsNoTransfer(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.silverMembership(t, "u1")

	out, err := e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.NoError(t, err)
	require.Nil(t, out.TransferRecord)
	require.NotNil(t, out.CompensationRecord)
	require.Zero(t, out.UpgradeRecord.TransferPoints)
	require.Nil(t, out.UpgradeRecord.Details.Data().TransferRecordID)
}

func TestUpgrade_ZeroBasisMembership(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	end := daotest.Day.AddDate(0, 0, 100)
	e.f.Membership("u1", e.silver, nil, end.AddDate(0, 0, -365), end)

	out, err := e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.NoError(t, err)
	requireDecimal(t, "0", out.Pricing.OriginalRemainingValue)
	requireDecimal(t, "186.30", out.Pricing.UpgradePrice)
}

func TestUpgrade_NoRemainingDays(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.f.Membership("u1", e.silver, nil, daotest.Day.AddDate(0, -1, 0), daotest.Day.Add(12*time.Hour))

	out, err := e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.NoError(t, err)
	require.True(t, out.Pricing.UpgradePrice.IsZero())
	require.Nil(t, out.CompensationRecord)
	require.True(t, out.NewMembership.EndDate.Equal(daotest.Day.Add(12*time.Hour)))
}

func TestUpgrade_Rejections(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	diamond := e.f.Level("diamond", -1)
	e.silverMembership(t, "u1")

	tests := []struct {
		name string
		req  *Request
		want error
	}{
		{name: "missing fields", req: &Request{UserID: "u1"}, want: ErrInvalidRequest},
		{name: "no membership", req: upgradeRequest("nobody", e.gold.ID, "o"), want: ErrNoActiveMembership},
		{name: "unknown membership id", req: &Request{UserID: "u1", TargetLevelID: e.gold.ID, OrderID: "o", MembershipID: "missing"}, want: ErrNoActiveMembership},
		{name: "unknown tier", req: upgradeRequest("u1", "missing", "o"), want: ErrTargetLevelNotFound},
		{name: "same tier", req: upgradeRequest("u1", e.silver.ID, "o"), want: ErrTargetLevelNotHigher},
		{name: "tier without product", req: upgradeRequest("u1", diamond.ID, "o"), want: ErrTargetLevelNoProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Upgrade(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
			require.True(t, IsRejection(err))

			res := e.svc.Execute(ctx, tt.req)
			require.False(t, res.Success)
			require.Equal(t, tt.want.Error(), res.ErrorMessage)
		})
	}

	var n int64
	require.NoError(t, e.db.Model(&models.UpgradeRecord{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestUpgrade_ConcurrentRequestIsRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.silverMembership(t, "u1")

	token, err := e.locker.TryLock(ctx, redis.UserLockKey("u1"), time.Minute)
	require.NoError(t, err)

	_, err = e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.ErrorIs(t, err, ErrConcurrentUpgrade)

	require.NoError(t, e.locker.Unlock(ctx, redis.UserLockKey("u1"), token))
	_, err = e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.NoError(t, err)
}

func TestUpgrade_FailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	old := e.silverMembership(t, "u1")
	lot := e.f.Points(old, types.PointSourcePurchaseGift, 100, 0, old.EndDate)

	// an audit already holding the order makes the final insert fail
	require.NoError(t, e.st.CreateUpgradeRecord(ctx, &models.UpgradeRecord{
		UserID: "other", FromMembershipID: "x", ToMembershipID: "y", OrderID: "order-1",
	}))

	res := e.svc.Execute(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.False(t, res.Success)
	require.NotEmpty(t, res.ErrorMessage)

	still := daotest.Reload[models.UserMembership](t, e.db, old.ID)
	require.Equal(t, types.MembershipStatusActive, still.Status)
	require.True(t, still.EndDate.Equal(old.EndDate))
	require.Nil(t, still.SettlementAt)

	r := daotest.Reload[models.PointRecord](t, e.db, lot.ID)
	require.Equal(t, types.PointRecordStatusValid, r.Status)
	require.Equal(t, int64(100), r.Remaining)

	var memberships, points int64
	require.NoError(t, e.db.Model(&models.UserMembership{}).Count(&memberships).Error)
	require.Equal(t, int64(1), memberships)
	require.NoError(t, e.db.Model(&models.PointRecord{}).Count(&points).Error)
	require.Equal(t, int64(1), points)

	active, err := e.st.FindActiveBenefitGrants(ctx, "u1", daotest.Day)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestQuote_DoesNotMutate(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	old := e.silverMembership(t, "u1")
	e.f.Points(old, types.PointSourcePurchaseGift, 100, 30, old.EndDate)

	q, err := e.svc.Quote(ctx, &QuoteRequest{UserID: "u1", TargetLevelID: e.gold.ID})
	require.NoError(t, err)
	requireDecimal(t, "86.30", q.UpgradePrice)
	require.Equal(t, int64(70), q.TransferPoints)
	require.True(t, q.NewStartDate.Equal(daotest.Day))

	still := daotest.Reload[models.UserMembership](t, e.db, old.ID)
	require.Equal(t, types.MembershipStatusActive, still.Status)
}

// A membership that started less than a day ago still ends the day before settlement, so its
// settled window is inverted. The audit keeps the window it had before settlement.
func TestUpgrade_SettlesMembershipStartedToday(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	start := daotest.Day.Add(-2 * time.Hour)
	old := e.f.Membership("u1", e.silver, nil, start, daotest.Day.AddDate(0, 0, 30))

	out, err := e.svc.Upgrade(ctx, upgradeRequest("u1", e.gold.ID, "order-1"))
	require.NoError(t, err)

	settled := daotest.Reload[models.UserMembership](t, e.db, old.ID)
	require.Equal(t, types.MembershipStatusSettled, settled.Status)
	require.True(t, settled.StartDate.Equal(start))
	require.True(t, settled.EndDate.Equal(daotest.Day.AddDate(0, 0, -1)))

	current, err := e.st.FindCurrentMembership(ctx, "u1", daotest.Day)
	require.NoError(t, err)
	require.Equal(t, out.NewMembership.ID, current.ID)

	rec, err := e.st.FindUpgradeRecordByToMembership(ctx, out.NewMembership.ID)
	require.NoError(t, err)
	details := rec.Details.Data()
	require.True(t, details.OldMembership.StartDate.Equal(start))
	require.True(t, details.OldMembership.EndDate.Equal(old.EndDate))
	require.Equal(t, 30, details.Calculation.RemainingDays)
}
