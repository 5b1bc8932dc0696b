package upgrade

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/pricing"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

// settle performs the mutations of one upgrade through st. Callers run it inside a transaction
// after prepare succeeded.
func (s *Service) settle(ctx context.Context, st *dao.Store, p *plan, req *Request, now time.Time) (*Outcome, error) {
	src := p.source

	paid, totalDays, err := s.resolvePaidAmountAndDays(ctx, st, src)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paid amount: %w", err)
	}
	remainingDays := pricing.DaysBetween(now, src.EndDate)
	cost := pricing.ComputeUpgradeCost(paid, totalDays, remainingDays, p.targetYearlyPrice)

	// A membership bought to start in the future is superseded whole; otherwise it ends the day
	// before settlement and the new one starts at settlement.
	prePurchase := now.Before(src.StartDate)
	oldEnd := src.EndDate
	newStart := now
	if prePurchase {
		newStart = src.StartDate
	} else {
		oldEnd = now.AddDate(0, 0, -1)
	}
	newEnd := src.EndDate

	if err := st.SettleMembership(ctx, src.ID, oldEnd, now); err != nil {
		return nil, err
	}
	settled := *src
	settled.EndDate = oldEnd
	settled.Status = types.MembershipStatusSettled
	settled.SettlementAt = &now

	if _, err := s.benefits.ExpireTx(ctx, st, req.UserID, src.ID); err != nil {
		return nil, err
	}

	newM := &models.UserMembership{
		UserID:     req.UserID,
		LevelID:    p.target.ID,
		StartDate:  newStart,
		EndDate:    newEnd,
		Status:     types.MembershipStatusActive,
		SourceType: types.MembershipSourceUpgrade,
		SourceID:   req.OrderID,
		AutoRenew:  src.AutoRenew,
		Remark:     fmt.Sprintf("upgraded from %s to %s", p.sourceLevel.Name, p.target.Name),
	}
	if err := st.CreateMembership(ctx, newM); err != nil {
		return nil, err
	}

	if _, err := s.benefits.GrantTx(ctx, st, req.UserID, newM.ID, p.target.ID, newStart, newEnd); err != nil {
		return nil, err
	}

	out := &Outcome{SettledMembership: &settled, NewMembership: newM, Pricing: cost}
	if err := s.migratePoints(ctx, st, src, newM, req, now, out); err != nil {
		return nil, err
	}

	if cost.PointCompensation > 0 {
		comp := &models.PointRecord{
			UserID:           req.UserID,
			UserMembershipID: &newM.ID,
			PointAmount:      cost.PointCompensation,
			Remaining:        cost.PointCompensation,
			SourceType:       types.PointSourceUpgradeCompensation,
			SourceID:         req.OrderID,
			EffectiveAt:      newStart,
			ExpiredAt:        newEnd,
			Status:           types.PointRecordStatusValid,
			Remark:           fmt.Sprintf("upgrade compensation for order %s", req.OrderNo),
		}
		if err := st.CreatePointRecord(ctx, comp); err != nil {
			return nil, err
		}
		out.CompensationRecord = comp
	}

	transferPoints := int64(0)
	if out.TransferRecord != nil {
		transferPoints = out.TransferRecord.PointAmount
	}
	details := &models.UpgradeDetails{
		SettlementDate:       now,
		PrePurchase:          prePurchase,
		OldMembership:        window(src.ID, src.LevelID, src.StartDate, src.EndDate),
		OldMembershipSettled: window(src.ID, src.LevelID, src.StartDate, oldEnd),
		NewMembership:        window(newM.ID, newM.LevelID, newStart, newEnd),
		Calculation:          cost.Calculation,
		TransferredPointRecord: lo.Map(out.MigratedRecords, func(r *models.PointRecord, _ int) models.TransferredPointRecord {
			return models.TransferredPointRecord{
				PointRecordID: r.ID,
				SourceType:    string(r.SourceType),
				PointAmount:   r.PointAmount,
				Used:          r.Used,
				TransferOut:   r.TransferOut,
				ExpiredAt:     r.ExpiredAt,
			}
		}),
		OrderNo: req.OrderNo,
	}
	if out.TransferRecord != nil {
		details.TransferRecordID = &out.TransferRecord.ID
	}
	if out.CompensationRecord != nil {
		details.CompensationRecordID = &out.CompensationRecord.ID
	}

	rec := &models.UpgradeRecord{
		UserID:            req.UserID,
		FromMembershipID:  src.ID,
		ToMembershipID:    newM.ID,
		OrderID:           req.OrderID,
		UpgradePrice:      cost.UpgradePrice,
		PointCompensation: cost.PointCompensation,
		TransferPoints:    transferPoints,
		Details:           datatypes.NewJSONType(details),
	}
	if err := st.CreateUpgradeRecord(ctx, rec); err != nil {
		return nil, err
	}
	out.UpgradeRecord = rec

	extra := map[string]any{"order_id": req.OrderID, "upgrade_record_id": rec.ID}
	if err := st.CreateMembershipLog(ctx, types.MembershipChangeReasonUpgradeSettled, src, &settled,
		lo.Assign(extra, map[string]any{"to_membership_id": newM.ID})); err != nil {
		return nil, err
	}
	if err := st.CreateMembershipLog(ctx, types.MembershipChangeReasonUpgrade, nil, newM,
		lo.Assign(extra, map[string]any{"from_membership_id": src.ID, "upgrade_price": cost.UpgradePrice.String()})); err != nil {
		return nil, err
	}
	return out, nil
}

// migratePoints consolidates the usable lots of the old membership into one lot on the new one.
// The consolidated amount always equals the sum moved out of the old lots.
func (s *Service) migratePoints(ctx context.Context, st *dao.Store, src, newM *models.UserMembership, req *Request, now time.Time, out *Outcome) error {
	lots, err := st.FindPointRecordsByMembership(ctx, src.ID, &dao.PointRecordFilter{
		Status:        types.PointRecordStatusValid,
		PositiveOnly:  true,
		UnexpiredAt:   now,
		OrderByExpiry: true,
	})
	if err != nil {
		return err
	}
	total := lo.SumBy(lots, func(r *models.PointRecord) int64 { return r.Remaining })
	if total <= 0 {
		return nil
	}

	transfer := &models.PointRecord{
		UserID:           req.UserID,
		UserMembershipID: &newM.ID,
		PointAmount:      total,
		Remaining:        total,
		SourceType:       types.PointSourceUpgradeTransfer,
		SourceID:         req.OrderID,
		EffectiveAt:      newM.StartDate,
		ExpiredAt:        newM.EndDate,
		Status:           types.PointRecordStatusValid,
		Remark:           fmt.Sprintf("transferred from membership %s", src.ID),
	}
	if err := st.CreatePointRecord(ctx, transfer); err != nil {
		return err
	}
	for _, lot := range lots {
		if err := st.SettlePointRecord(ctx, lot, transfer.ID, now); err != nil {
			return err
		}
	}
	out.TransferRecord = transfer
	out.MigratedRecords = lots
	return nil
}

func window(id, levelID string, start, end time.Time) models.MembershipWindow {
	return models.MembershipWindow{MembershipID: id, LevelID: levelID, StartDate: start, EndDate: end}
}
