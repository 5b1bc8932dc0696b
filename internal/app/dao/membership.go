package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *Store) CreateMembership(ctx context.Context, m *models.UserMembership) error {
	if m.ID == "" {
		m.ID = tool.GenerateUUIDV7()
	}
	if !m.StartDate.Before(m.EndDate) {
		return fmt.Errorf("invalid membership window: start %s is not before end %s", m.StartDate, m.EndDate)
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// FindMembershipByID includes soft-deleted rows so that upgrade chains stay resolvable.
func (s *Store) FindMembershipByID(ctx context.Context, id string) (*models.UserMembership, error) {
	var m models.UserMembership
	err := s.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find membership %s: %w", id, err)
	}
	return &m, nil
}

// FindActiveMembership returns the user's membership with the given id when it is ACTIVE.
func (s *Store) FindActiveMembership(ctx context.Context, userID, id string) (*models.UserMembership, error) {
	var m models.UserMembership
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, types.MembershipStatusActive).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active membership %s: %w", id, err)
	}
	return &m, nil
}

// FindCurrentMembership returns the highest-level ACTIVE membership whose window contains at.
// Among equal levels the one ending last wins.
func (s *Store) FindCurrentMembership(ctx context.Context, userID string, at time.Time) (*models.UserMembership, error) {
	var m models.UserMembership
	err := s.db.WithContext(ctx).Model(&models.UserMembership{}).
		Joins("JOIN membership_level ON membership_level.id = user_membership.level_id").
		Where("user_membership.user_id = ? AND user_membership.status = ?", userID, types.MembershipStatusActive).
		Where("user_membership.start_date <= ? AND user_membership.end_date > ?", at, at).
		Order("membership_level.sort_order ASC").
		Order("user_membership.end_date DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find current membership: %w", err)
	}
	return &m, nil
}

// FindLatestActiveMembershipByLevel returns the ACTIVE membership of the level that ends last.
func (s *Store) FindLatestActiveMembershipByLevel(ctx context.Context, userID, levelID string) (*models.UserMembership, error) {
	var m models.UserMembership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND level_id = ? AND status = ?", userID, levelID, types.MembershipStatusActive).
		Order("end_date DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest membership: %w", err)
	}
	return &m, nil
}

// FindMembershipBySource returns the membership created from the given source, if any.
func (s *Store) FindMembershipBySource(ctx context.Context, sourceType types.MembershipSourceType, sourceID string) (*models.UserMembership, error) {
	var m models.UserMembership
	err := s.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find membership by source: %w", err)
	}
	return &m, nil
}

// FindOverdueMemberships lists ACTIVE memberships whose window ended at or before at.
func (s *Store) FindOverdueMemberships(ctx context.Context, at time.Time, limit int) ([]*models.UserMembership, error) {
	var items []*models.UserMembership
	if err := s.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", types.MembershipStatusActive, at).
		Order("end_date ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list overdue memberships: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateMembership(ctx context.Context, id string, patch map[string]any) (*models.UserMembership, error) {
	if err := s.db.WithContext(ctx).Model(&models.UserMembership{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		return nil, fmt.Errorf("failed to update membership %s: %w", id, err)
	}
	return s.FindMembershipByID(ctx, id)
}

// SettleMembership closes an ACTIVE membership. It fails with ErrConcurrentUpdate when the row
// is no longer ACTIVE.
func (s *Store) SettleMembership(ctx context.Context, id string, endDate, settlementAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.UserMembership{}).
		Where("id = ? AND status = ?", id, types.MembershipStatusActive).
		Updates(map[string]any{
			"status":        types.MembershipStatusSettled,
			"end_date":      endDate,
			"settlement_at": settlementAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to settle membership %s: %w", id, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("settle membership %s: %w", id, ErrConcurrentUpdate)
	}
	return nil
}

// DeactivateMembership moves an ACTIVE membership to INACTIVE. It reports whether a row changed.
func (s *Store) DeactivateMembership(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.UserMembership{}).
		Where("id = ? AND status = ?", id, types.MembershipStatusActive).
		Update("status", types.MembershipStatusInactive)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate membership %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CreateMembershipLog stores a before/after snapshot of a membership change.
func (s *Store) CreateMembershipLog(ctx context.Context, reason types.MembershipChangeReason, before, after *models.UserMembership, extra map[string]any) error {
	ref := after
	if ref == nil {
		ref = before
	}
	if ref == nil {
		return nil
	}
	log := &models.MembershipLog{
		ID:           tool.GenerateUUIDV7(),
		UserID:       ref.UserID,
		MembershipID: ref.ID,
		Reason:       reason,
		Before:       datatypes.NewJSONType(before),
		After:        datatypes.NewJSONType(after),
		Extra:        datatypes.JSONMap(extra),
	}
	if log.Extra == nil {
		log.Extra = datatypes.JSONMap{}
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to save membership log: %w", err)
	}
	return nil
}
