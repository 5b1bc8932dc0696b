package upgrade

import (
	"context"
	"time"

	"github.com/fatflowers/membership/internal/app/service/pricing"
	"github.com/fatflowers/membership/internal/models"
	"github.com/shopspring/decimal"
)

type QuoteRequest struct {
	UserID        string `json:"user_id"`
	TargetLevelID string `json:"target_level_id"`
	MembershipID  string `json:"membership_id,omitempty"`
}

// Quote is the price of an upgrade that has not happened yet.
type Quote struct {
	MembershipID      string                    `json:"membership_id"`
	FromLevelID       string                    `json:"from_level_id"`
	TargetLevelID     string                    `json:"target_level_id"`
	UpgradePrice      decimal.Decimal           `json:"upgrade_price"`
	PointCompensation int64                     `json:"point_compensation"`
	TransferPoints    int64                     `json:"transfer_points"`
	NewStartDate      time.Time                 `json:"new_start_date"`
	NewEndDate        time.Time                 `json:"new_end_date"`
	Calculation       models.UpgradeCalculation `json:"calculation"`
}

// Quote runs the preconditions and the pricing without writing anything.
func (s *Service) Quote(ctx context.Context, req *QuoteRequest) (*Quote, error) {
	if req == nil || req.UserID == "" || req.TargetLevelID == "" {
		return nil, ErrInvalidRequest
	}
	now := s.now()
	p, err := s.prepare(ctx, s.store, req.UserID, req.TargetLevelID, req.MembershipID, now)
	if err != nil {
		return nil, err
	}
	src := p.source
	paid, totalDays, err := s.resolvePaidAmountAndDays(ctx, s.store, src)
	if err != nil {
		return nil, err
	}
	cost := pricing.ComputeUpgradeCost(paid, totalDays, pricing.DaysBetween(now, src.EndDate), p.targetYearlyPrice)

	points, err := s.store.SumPointsByMembership(ctx, src.ID, now)
	if err != nil {
		return nil, err
	}

	newStart := now
	if now.Before(src.StartDate) {
		newStart = src.StartDate
	}
	return &Quote{
		MembershipID:      src.ID,
		FromLevelID:       src.LevelID,
		TargetLevelID:     p.target.ID,
		UpgradePrice:      cost.UpgradePrice,
		PointCompensation: cost.PointCompensation,
		TransferPoints:    points.Remaining,
		NewStartDate:      newStart,
		NewEndDate:        src.EndDate,
		Calculation:       cost.Calculation,
	}, nil
}
