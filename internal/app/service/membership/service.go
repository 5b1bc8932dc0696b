// Package membership creates, stacks and expires user memberships.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/benefit"
	"github.com/fatflowers/membership/internal/app/service/point"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/types"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest       = errors.New("invalid membership request")
	ErrLevelNotFound        = errors.New("membership level not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotPaid         = errors.New("order is not a paid purchase")
	ErrProductNotMembership = errors.New("order product is not a membership product")
)

const expireBatchSize = 100

type Service struct {
	store    *dao.Store
	benefits *benefit.Service
	points   *point.Service
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(store *dao.Store, benefits *benefit.Service, points *point.Service, log *zap.SugaredLogger) *Service {
	return &Service{
		store:    store,
		benefits: benefits,
		points:   points,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Current is the membership in force for a user together with its level.
type Current struct {
	Membership *models.UserMembership  `json:"membership"`
	Level      *models.MembershipLevel `json:"level"`
}

// GetCurrent returns nil when the user has no membership in force.
func (s *Service) GetCurrent(ctx context.Context, userID string) (*Current, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	m, err := s.store.FindCurrentMembership(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	level, err := s.store.FindLevelByID(ctx, m.LevelID)
	if err != nil {
		return nil, err
	}
	return &Current{Membership: m, Level: level}, nil
}

type GrantRequest struct {
	UserID     string                       `json:"user_id"`
	LevelID    string                       `json:"level_id"`
	Days       int                          `json:"days"`
	SourceType types.MembershipSourceType   `json:"source_type"`
	SourceID   string                       `json:"source_id"`
	Reason     types.MembershipChangeReason `json:"reason"`
	// GiftPoints are granted as one lot spanning the new membership.
	GiftPoints      int64                 `json:"gift_points"`
	GiftPointSource types.PointSourceType `json:"gift_point_source"`
	Remark          string                `json:"remark"`
}

// GrantResult reports what Grant wrote. Created is false when an existing membership for the same
// purchase was returned instead.
type GrantResult struct {
	Membership *models.UserMembership `json:"membership"`
	Benefits   []*models.UserBenefit  `json:"benefits,omitempty"`
	GiftPoints *models.PointRecord    `json:"gift_points,omitempty"`
	Created    bool                   `json:"created"`
}

// Grant opens an ACTIVE membership. When the user already holds an ACTIVE membership of the same
// level that ends in the future, the new one starts where that one ends.
func (s *Service) Grant(ctx context.Context, req *GrantRequest) (*GrantResult, error) {
	if req == nil || req.UserID == "" || req.LevelID == "" || req.Days <= 0 || req.SourceType == "" {
		return nil, ErrInvalidRequest
	}
	level, err := s.store.FindLevelByID(ctx, req.LevelID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}

	now := s.now()
	var res *GrantResult
	err = s.store.RunInTransaction(ctx, func(st *dao.Store) error {
		if err := st.LockUser(ctx, req.UserID); err != nil {
			return err
		}
		if req.SourceType == types.MembershipSourceDirectPurchase && req.SourceID != "" {
			existing, err := st.FindMembershipBySource(ctx, req.SourceType, req.SourceID)
			if err != nil {
				return err
			}
			if existing != nil {
				res = &GrantResult{Membership: existing}
				return nil
			}
		}

		start := now
		latest, err := st.FindLatestActiveMembershipByLevel(ctx, req.UserID, req.LevelID)
		if err != nil {
			return err
		}
		if latest != nil && latest.EndDate.After(now) {
			start = latest.EndDate
		}
		m := &models.UserMembership{
			UserID:     req.UserID,
			LevelID:    req.LevelID,
			StartDate:  start,
			EndDate:    start.AddDate(0, 0, req.Days),
			Status:     types.MembershipStatusActive,
			SourceType: req.SourceType,
			SourceID:   req.SourceID,
			Remark:     req.Remark,
		}
		if err := st.CreateMembership(ctx, m); err != nil {
			return err
		}
		grants, err := s.benefits.GrantTx(ctx, st, m.UserID, m.ID, m.LevelID, m.StartDate, m.EndDate)
		if err != nil {
			return fmt.Errorf("failed to grant benefits: %w", err)
		}
		res = &GrantResult{Membership: m, Benefits: grants, Created: true}

		if req.GiftPoints > 0 {
			source := req.GiftPointSource
			if source == "" {
				source = types.PointSourcePurchaseGift
			}
			lot, err := s.points.GrantTx(ctx, st, &point.GrantRequest{
				UserID:       m.UserID,
				MembershipID: &m.ID,
				Amount:       req.GiftPoints,
				SourceType:   source,
				SourceID:     m.SourceID,
				EffectiveAt:  m.StartDate,
				ExpiredAt:    m.EndDate,
				Remark:       fmt.Sprintf("gift points of %s membership", level.Name),
			})
			if err != nil {
				return fmt.Errorf("failed to grant gift points: %w", err)
			}
			res.GiftPoints = lot
		}

		reason := req.Reason
		if reason == "" {
			reason = types.MembershipChangeReasonPurchase
		}
		return st.CreateMembershipLog(ctx, reason, nil, m, map[string]any{
			"source_type": req.SourceType,
			"source_id":   req.SourceID,
			"stacked":     start.After(now),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant membership: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("membership granted",
		"user_id", req.UserID, "level_id", req.LevelID, "membership_id", res.Membership.ID,
		"start", res.Membership.StartDate, "end", res.Membership.EndDate, "created", res.Created)
	return res, nil
}

// ActivatePurchase opens the membership bought by a paid order. Activating the same order twice
// returns the membership created the first time.
func (s *Service) ActivatePurchase(ctx context.Context, orderID string) (*GrantResult, error) {
	start := time.Now()
	defer metrics.ObserveBusinessProcess("membership", "activate_purchase", start)

	if orderID == "" {
		return nil, ErrInvalidRequest
	}
	order, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.IsPaid() || order.Type != types.OrderTypePurchase {
		return nil, ErrOrderNotPaid
	}
	product, err := s.store.FindProductByID(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil || product.Type != types.ProductTypeMembership || product.LevelID == nil || product.DurationDays <= 0 {
		return nil, ErrProductNotMembership
	}

	return s.Grant(ctx, &GrantRequest{
		UserID:          order.UserID,
		LevelID:         *product.LevelID,
		Days:            product.DurationDays,
		SourceType:      types.MembershipSourceDirectPurchase,
		SourceID:        order.ID,
		Reason:          types.MembershipChangeReasonPurchase,
		GiftPoints:      product.GiftPoints,
		GiftPointSource: types.PointSourcePurchaseGift,
		Remark:          "order " + order.OrderNo,
	})
}

// SendFreeGift grants an internal gift membership on behalf of an operator.
func (s *Service) SendFreeGift(ctx context.Context, userID, levelID string, days int, operatorID string) (*GrantResult, error) {
	if userID == "" || levelID == "" || days <= 0 {
		return nil, fmt.Errorf("userID, levelID and positive days required: %w", ErrInvalidRequest)
	}
	return s.Grant(ctx, &GrantRequest{
		UserID:     userID,
		LevelID:    levelID,
		Days:       days,
		SourceType: types.MembershipSourceAdminGift,
		SourceID:   operatorID,
		Reason:     types.MembershipChangeReasonGift,
		Remark:     "gift by " + operatorID,
	})
}

// ExpireOverdue deactivates ACTIVE memberships whose window has ended and expires their benefit
// grants. It returns the number of memberships it deactivated.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	start := time.Now()
	defer metrics.ObserveBusinessProcess("membership", "expire_overdue", start)

	now := s.now()
	total := 0
	for {
		batch, err := s.store.FindOverdueMemberships(ctx, now, expireBatchSize)
		if err != nil {
			return total, err
		}
		changed := 0
		for _, m := range batch {
			ok, err := s.expireOne(ctx, m)
			if err != nil {
				metrics.AddExpiredMemberships(total + changed)
				return total + changed, err
			}
			if ok {
				changed++
			}
		}
		total += changed
		if len(batch) < expireBatchSize || changed == 0 {
			break
		}
	}

	metrics.AddExpiredMemberships(total)
	if total > 0 {
		logctx.FromCtx(ctx, s.log).Infow("overdue memberships expired", "count", total, "at", now)
	}
	return total, nil
}

func (s *Service) expireOne(ctx context.Context, m *models.UserMembership) (bool, error) {
	var changed bool
	err := s.store.RunInTransaction(ctx, func(st *dao.Store) error {
		if err := st.LockUser(ctx, m.UserID); err != nil {
			return err
		}
		ok, err := st.DeactivateMembership(ctx, m.ID)
		if err != nil || !ok {
			return err
		}
		changed = true
		if _, err := s.benefits.ExpireTx(ctx, st, m.UserID, m.ID); err != nil {
			return err
		}
		after := *m
		after.Status = types.MembershipStatusInactive
		return st.CreateMembershipLog(ctx, types.MembershipChangeReasonExpired, m, &after, nil)
	})
	if err != nil {
		return false, fmt.Errorf("failed to expire membership %s: %w", m.ID, err)
	}
	return changed, nil
}
