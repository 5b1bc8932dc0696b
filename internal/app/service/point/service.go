// Package point answers balance queries over point lots and consumes them earliest-expiring first.
package point

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidAmount      = errors.New("point amount must be positive")
)

type Service struct {
	store *dao.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(store *dao.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// FindUsable returns the user's usable lots in consumption order.
func (s *Service) FindUsable(ctx context.Context, userID string) ([]*models.PointRecord, error) {
	return s.store.FindValidPointRecords(ctx, userID, s.now())
}

// SumValid aggregates the user's valid unexpired lots with a purchase/other breakdown.
func (s *Service) SumValid(ctx context.Context, userID string) (*dao.PointSum, error) {
	return s.store.SumValidPoints(ctx, userID, s.now())
}

func (s *Service) SumByMembership(ctx context.Context, membershipID string) (*dao.PointSum, error) {
	return s.store.SumPointsByMembership(ctx, membershipID, s.now())
}

type GrantRequest struct {
	UserID       string                `json:"user_id"`
	MembershipID *string               `json:"membership_id"`
	Amount       int64                 `json:"amount"`
	SourceType   types.PointSourceType `json:"source_type"`
	SourceID     string                `json:"source_id"`
	EffectiveAt  time.Time             `json:"effective_at"`
	ExpiredAt    time.Time             `json:"expired_at"`
	Remark       string                `json:"remark"`
}

// Grant creates one lot.
func (s *Service) Grant(ctx context.Context, req *GrantRequest) (*models.PointRecord, error) {
	return s.GrantTx(ctx, s.store, req)
}

func (s *Service) GrantTx(ctx context.Context, st *dao.Store, req *GrantRequest) (*models.PointRecord, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.EffectiveAt.Before(req.ExpiredAt) {
		return nil, fmt.Errorf("invalid point window: %s to %s", req.EffectiveAt, req.ExpiredAt)
	}
	r := &models.PointRecord{
		UserID:           req.UserID,
		UserMembershipID: req.MembershipID,
		PointAmount:      req.Amount,
		Remaining:        req.Amount,
		SourceType:       req.SourceType,
		SourceID:         req.SourceID,
		EffectiveAt:      req.EffectiveAt,
		ExpiredAt:        req.ExpiredAt,
		Status:           types.PointRecordStatusValid,
		Remark:           req.Remark,
	}
	if err := st.CreatePointRecord(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Consumption is one lot's share of a Consume call.
type Consumption struct {
	PointRecordID string `json:"point_record_id"`
	Amount        int64  `json:"amount"`
	Remaining     int64  `json:"remaining"`
}

// Consume takes amount points from the user's usable lots, earliest-expiring first, and records one
// consumption entry per lot touched. Either the full amount is consumed or nothing changes.
func (s *Service) Consume(ctx context.Context, userID string, amount int64, remark string) ([]*Consumption, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	now := s.now()
	var out []*Consumption
	err := s.store.RunInTransaction(ctx, func(st *dao.Store) error {
		if err := st.LockUser(ctx, userID); err != nil {
			return err
		}
		lots, err := st.FindValidPointRecords(ctx, userID, now)
		if err != nil {
			return err
		}
		available := lo.SumBy(lots, func(r *models.PointRecord) int64 { return r.Remaining })
		if available < amount {
			return fmt.Errorf("need %d, have %d: %w", amount, available, ErrInsufficientPoints)
		}

		out = nil
		left := amount
		for _, lot := range lots {
			if left == 0 {
				break
			}
			take := min(left, lot.Remaining)
			if err := st.ConsumePointRecord(ctx, lot, take); err != nil {
				return err
			}
			if err := st.CreatePointConsumption(ctx, &models.PointConsumption{
				UserID:        userID,
				PointRecordID: lot.ID,
				Amount:        take,
				Remark:        remark,
				ConsumedAt:    now,
			}); err != nil {
				return err
			}
			out = append(out, &Consumption{PointRecordID: lot.ID, Amount: take, Remaining: lot.Remaining})
			left -= take
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("points consumed", "user_id", userID, "amount", amount, "lots", len(out), "remark", remark)
	return out, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
