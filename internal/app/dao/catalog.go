package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"
	"gorm.io/gorm"
)

func (s *Store) FindLevelByID(ctx context.Context, id string) (*models.MembershipLevel, error) {
	var l models.MembershipLevel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find level %s: %w", id, err)
	}
	return &l, nil
}

// FindActiveMembershipProducts lists the level's active membership products, yearly-priced first.
func (s *Store) FindActiveMembershipProducts(ctx context.Context, levelID string) ([]*models.Product, error) {
	var items []*models.Product
	if err := s.db.WithContext(ctx).
		Where("level_id = ? AND type = ? AND status = ?", levelID, types.ProductTypeMembership, types.ProductStatusActive).
		Order("duration_days DESC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list products of level %s: %w", levelID, err)
	}
	return items, nil
}

func (s *Store) FindProductByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find product %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find order %s: %w", id, err)
	}
	return &o, nil
}
