package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"
)

// PointRecordFilter narrows FindPointRecordsByMembership. Zero fields are ignored.
type PointRecordFilter struct {
	Status        types.PointRecordStatus
	PositiveOnly  bool
	UnexpiredAt   time.Time
	OrderByExpiry bool
}

// PointSum aggregates a set of point lots.
type PointSum struct {
	PointAmount       int64 `json:"point_amount"`
	Used              int64 `json:"used"`
	Remaining         int64 `json:"remaining"`
	PurchaseRemaining int64 `json:"purchase_remaining"`
	OtherRemaining    int64 `json:"other_remaining"`
}

func (s *Store) CreatePointRecord(ctx context.Context, r *models.PointRecord) error {
	if r.ID == "" {
		r.ID = tool.GenerateUUIDV7()
	}
	if r.PointAmount <= 0 {
		return fmt.Errorf("invalid point amount: %d", r.PointAmount)
	}
	if r.Status == "" {
		r.Status = types.PointRecordStatusValid
	}
	if r.Remaining == 0 && r.Used == 0 {
		r.Remaining = r.PointAmount
	}
	if r.Remaining != r.PointAmount-r.Used {
		return fmt.Errorf("point record remaining %d does not match amount %d minus used %d", r.Remaining, r.PointAmount, r.Used)
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create point record: %w", err)
	}
	return nil
}

// FindValidPointRecords returns the user's usable lots, earliest-expiring first.
func (s *Store) FindValidPointRecords(ctx context.Context, userID string, at time.Time) ([]*models.PointRecord, error) {
	var items []*models.PointRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND remaining > 0 AND expired_at > ?", userID, types.PointRecordStatusValid, at).
		Order("expired_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list valid point records: %w", err)
	}
	return items, nil
}

func (s *Store) FindPointRecordsByMembership(ctx context.Context, membershipID string, filter *PointRecordFilter) ([]*models.PointRecord, error) {
	q := s.db.WithContext(ctx).Where("user_membership_id = ?", membershipID)
	if filter != nil {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.PositiveOnly {
			q = q.Where("remaining > 0")
		}
		if !filter.UnexpiredAt.IsZero() {
			q = q.Where("expired_at > ?", filter.UnexpiredAt)
		}
		if filter.OrderByExpiry {
			q = q.Order("expired_at ASC")
		}
	}
	var items []*models.PointRecord
	if err := q.Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list point records of membership %s: %w", membershipID, err)
	}
	return items, nil
}

func (s *Store) UpdatePointRecord(ctx context.Context, id string, patch map[string]any) (*models.PointRecord, error) {
	if err := s.db.WithContext(ctx).Model(&models.PointRecord{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		return nil, fmt.Errorf("failed to update point record %s: %w", id, err)
	}
	var r models.PointRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, fmt.Errorf("failed to reload point record %s: %w", id, err)
	}
	return &r, nil
}

// ConsumePointRecord moves amount from remaining to used, guarded on the remaining balance the
// caller read.
func (s *Store) ConsumePointRecord(ctx context.Context, r *models.PointRecord, amount int64) error {
	res := s.db.WithContext(ctx).Model(&models.PointRecord{}).
		Where("id = ? AND status = ? AND remaining = ?", r.ID, types.PointRecordStatusValid, r.Remaining).
		Updates(map[string]any{
			"used":      r.Used + amount,
			"remaining": r.Remaining - amount,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to consume point record %s: %w", r.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("consume point record %s: %w", r.ID, ErrConcurrentUpdate)
	}
	r.Used += amount
	r.Remaining -= amount
	return nil
}

// SumValidPoints aggregates the user's VALID lots that have not expired at the given time.
func (s *Store) SumValidPoints(ctx context.Context, userID string, at time.Time) (*PointSum, error) {
	var sum PointSum
	err := s.db.WithContext(ctx).Model(&models.PointRecord{}).
		Select("COALESCE(SUM(point_amount), 0) AS point_amount, "+
			"COALESCE(SUM(used), 0) AS used, "+
			"COALESCE(SUM(remaining), 0) AS remaining, "+
			"COALESCE(SUM(CASE WHEN source_type IN ? THEN remaining ELSE 0 END), 0) AS purchase_remaining",
			types.PurchasePointSources).
		Where("user_id = ? AND status = ? AND expired_at > ?", userID, types.PointRecordStatusValid, at).
		Scan(&sum).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum valid points: %w", err)
	}
	sum.OtherRemaining = sum.Remaining - sum.PurchaseRemaining
	return &sum, nil
}

// SumPointsByMembership aggregates the VALID unexpired lots linked to one membership.
func (s *Store) SumPointsByMembership(ctx context.Context, membershipID string, at time.Time) (*PointSum, error) {
	var sum PointSum
	err := s.db.WithContext(ctx).Model(&models.PointRecord{}).
		Select("COALESCE(SUM(point_amount), 0) AS point_amount, COALESCE(SUM(used), 0) AS used, COALESCE(SUM(remaining), 0) AS remaining").
		Where("user_membership_id = ? AND status = ? AND expired_at > ?", membershipID, types.PointRecordStatusValid, at).
		Scan(&sum).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum points of membership %s: %w", membershipID, err)
	}
	return &sum, nil
}

// SettlePointRecord moves the lot's remaining balance out to the consolidated lot transferToID.
// It is guarded on the remaining balance the caller read.
func (s *Store) SettlePointRecord(ctx context.Context, r *models.PointRecord, transferToID string, settlementAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.PointRecord{}).
		Where("id = ? AND status = ? AND remaining = ?", r.ID, types.PointRecordStatusValid, r.Remaining).
		Updates(map[string]any{
			"status":                types.PointRecordStatusUpgradeSettled,
			"transfer_out":          r.Remaining,
			"transfer_to_record_id": transferToID,
			"remaining":             0,
			"settlement_at":         settlementAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to settle point record %s: %w", r.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("settle point record %s: %w", r.ID, ErrConcurrentUpdate)
	}
	r.TransferOut = r.Remaining
	r.TransferToRecordID = &transferToID
	r.Remaining = 0
	r.Status = types.PointRecordStatusUpgradeSettled
	r.SettlementAt = &settlementAt
	return nil
}

func (s *Store) CreatePointConsumption(ctx context.Context, c *models.PointConsumption) error {
	if c.ID == "" {
		c.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to save point consumption: %w", err)
	}
	return nil
}

// ListPointConsumptions returns the user's consumption entries, oldest first.
func (s *Store) ListPointConsumptions(ctx context.Context, userID string) ([]*models.PointConsumption, error) {
	var items []*models.PointConsumption
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("consumed_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list point consumptions: %w", err)
	}
	return items, nil
}
