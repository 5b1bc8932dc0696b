package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"
)

// FindBenefitsByLevel returns the benefit links configured for a level, ordered by benefit.
func (s *Store) FindBenefitsByLevel(ctx context.Context, levelID string) ([]*models.LevelBenefit, error) {
	var items []*models.LevelBenefit
	if err := s.db.WithContext(ctx).Where("level_id = ?", levelID).Order("benefit_id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list benefits of level %s: %w", levelID, err)
	}
	return items, nil
}

func (s *Store) FindAllBenefits(ctx context.Context) ([]*models.Benefit, error) {
	var items []*models.Benefit
	if err := s.db.WithContext(ctx).Order("sort_order ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list benefits: %w", err)
	}
	return items, nil
}

func (s *Store) CreateBenefitGrants(ctx context.Context, grants []*models.UserBenefit) error {
	if len(grants) == 0 {
		return nil
	}
	for _, g := range grants {
		if g.ID == "" {
			g.ID = tool.GenerateUUIDV7()
		}
	}
	if err := s.db.WithContext(ctx).Create(grants).Error; err != nil {
		return fmt.Errorf("failed to create benefit grants: %w", err)
	}
	return nil
}

// ExpireBenefitGrantsBySource sets every ACTIVE grant of the source to INACTIVE and returns how
// many changed.
func (s *Store) ExpireBenefitGrantsBySource(ctx context.Context, userID string, sourceType types.UserBenefitSourceType, sourceID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.UserBenefit{}).
		Where("user_id = ? AND source_type = ? AND source_id = ? AND status = ?", userID, sourceType, sourceID, types.UserBenefitStatusActive).
		Update("status", types.UserBenefitStatusInactive)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire benefit grants: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindActiveBenefitGrants returns the user's ACTIVE grants whose window contains at.
func (s *Store) FindActiveBenefitGrants(ctx context.Context, userID string, at time.Time) ([]*models.UserBenefit, error) {
	var items []*models.UserBenefit
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND effective_at <= ? AND expired_at > ?", userID, types.UserBenefitStatusActive, at, at).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list benefit grants: %w", err)
	}
	return items, nil
}

func (s *Store) FindBenefitGrantsBySource(ctx context.Context, sourceType types.UserBenefitSourceType, sourceID string) ([]*models.UserBenefit, error) {
	var items []*models.UserBenefit
	if err := s.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("benefit_id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list benefit grants by source: %w", err)
	}
	return items, nil
}

// FindStorageUsage returns the bytes used by the user, zero when unknown.
func (s *Store) FindStorageUsage(ctx context.Context, userID string) (int64, error) {
	var usage models.UserStorageUsage
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&usage)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to load storage usage: %w", res.Error)
	}
	return usage.UsedBytes, nil
}
