package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateUpgradeRecord(ctx context.Context, r *models.UpgradeRecord) error {
	if r.ID == "" {
		r.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create upgrade record: %w", err)
	}
	return nil
}

// FindUpgradeRecordByToMembership returns the audit record that produced the given membership.
func (s *Store) FindUpgradeRecordByToMembership(ctx context.Context, toMembershipID string) (*models.UpgradeRecord, error) {
	var r models.UpgradeRecord
	err := s.db.WithContext(ctx).Where("to_membership_id = ?", toMembershipID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find upgrade record: %w", err)
	}
	return &r, nil
}

// UpgradeRecordColumns are the columns ScanUpgradeRecords filters and sorts on.
var UpgradeRecordColumns = []string{
	"id",
	"user_id",
	"from_membership_id",
	"to_membership_id",
	"order_id",
	"upgrade_price",
	"point_compensation",
	"transfer_points",
	"created_at",
}

// ScanRequest is a filtered, paginated listing request.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// Validate checks filters and sort column against columns.
func (r *ScanRequest) Validate(columns []string) error {
	if r == nil {
		return fmt.Errorf("nil request: %w", types.ErrInvalidFilter)
	}
	if err := types.CommonFilters(r.Filters).Validate(columns...); err != nil {
		return err
	}
	if r.SortBy != "" && !lo.Contains(columns, r.SortBy) {
		return fmt.Errorf("column %q is not sortable: %w", r.SortBy, types.ErrInvalidFilter)
	}
	if r.SortOrder != "" && r.SortOrder != "asc" && r.SortOrder != "desc" {
		return fmt.Errorf("sort order %q: %w", r.SortOrder, types.ErrInvalidFilter)
	}
	return nil
}

// ScanUpgradeRecords implements admin listing of upgrade audits.
func (s *Store) ScanUpgradeRecords(ctx context.Context, req *ScanRequest) ([]*models.UpgradeRecord, int64, error) {
	if err := req.Validate(UpgradeRecordColumns); err != nil {
		return nil, 0, err
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.UpgradeRecord{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.CommonFilters(req.Filters)}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count upgrade records: %w", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.UpgradeRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list upgrade records: %w", err)
	}
	return rows, total, nil
}
