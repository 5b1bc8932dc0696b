// Package upgrade settles a membership into a higher tier: it prices the remaining value, splits
// the old membership, opens the new one, migrates point lots and writes the audit record in one
// transaction.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/benefit"
	"github.com/fatflowers/membership/internal/app/service/pricing"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/redis"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	cfg      *config.Config
	store    *dao.Store
	benefits *benefit.Service
	locker   redis.Locker
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(cfg *config.Config, store *dao.Store, benefits *benefit.Service, locker redis.Locker, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		benefits: benefits,
		locker:   locker,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type Request struct {
	UserID        string `json:"user_id"`
	TargetLevelID string `json:"target_level_id"`
	OrderID       string `json:"order_id"`
	OrderNo       string `json:"order_no"`
	// MembershipID selects the membership to upgrade. Empty means the current one.
	MembershipID string `json:"membership_id,omitempty"`
}

// Result is the caller-facing shape of an upgrade attempt.
type Result struct {
	Success       bool                   `json:"success"`
	NewMembership *models.UserMembership `json:"new_membership,omitempty"`
	UpgradeRecord *models.UpgradeRecord  `json:"upgrade_record,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
}

// Outcome is everything a successful settlement wrote.
type Outcome struct {
	SettledMembership  *models.UserMembership
	NewMembership      *models.UserMembership
	UpgradeRecord      *models.UpgradeRecord
	TransferRecord     *models.PointRecord
	CompensationRecord *models.PointRecord
	MigratedRecords    []*models.PointRecord
	Pricing            pricing.Result
}

// Execute runs Upgrade and folds any error into the result. It never returns an error.
func (s *Service) Execute(ctx context.Context, req *Request) *Result {
	out, err := s.Upgrade(ctx, req)
	if err != nil {
		return &Result{Success: false, ErrorMessage: err.Error()}
	}
	return &Result{Success: true, NewMembership: out.NewMembership, UpgradeRecord: out.UpgradeRecord}
}

// Upgrade settles the user's membership into the target tier. Rejections are returned as the
// package's sentinel errors and leave no trace; any other error means the transaction rolled back.
func (s *Service) Upgrade(ctx context.Context, req *Request) (out *Outcome, err error) {
	start := time.Now()
	log := logctx.FromCtx(ctx, s.log)
	defer func() {
		metrics.ObserveBusinessProcess("upgrade", "execute", start)
		fields := []interface{}{}
		if req != nil {
			fields = append(fields, "user_id", req.UserID, "target_level_id", req.TargetLevelID, "order_id", req.OrderID)
		}
		switch {
		case err == nil:
			metrics.IncUpgrade("success")
			log.Infow("upgrade settled", append(fields,
				"new_membership_id", out.NewMembership.ID,
				"upgrade_price", out.Pricing.UpgradePrice.String(),
				"transfer_points", out.UpgradeRecord.TransferPoints)...)
		case IsRejection(err):
			metrics.IncUpgrade("rejected")
			log.Warnw("upgrade rejected", append(fields, "reason", err.Error())...)
		default:
			metrics.IncUpgrade("failed")
			log.Errorw("upgrade failed", append(fields, "err", err)...)
		}
	}()

	if req == nil || req.UserID == "" || req.TargetLevelID == "" || req.OrderID == "" {
		return nil, ErrInvalidRequest
	}

	token, err := s.locker.TryLock(ctx, redis.UserLockKey(req.UserID), s.cfg.Upgrade.LockTTL())
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrConcurrentUpgrade
		}
		return nil, err
	}
	defer func() {
		if uerr := s.locker.Unlock(context.WithoutCancel(ctx), redis.UserLockKey(req.UserID), token); uerr != nil {
			log.Warnw("failed to release upgrade lock", "user_id", req.UserID, "err", uerr)
		}
	}()

	now := s.now()
	err = s.store.RunInTransaction(ctx, func(st *dao.Store) error {
		if err := st.LockUser(ctx, req.UserID); err != nil {
			return err
		}
		p, err := s.prepare(ctx, st, req.UserID, req.TargetLevelID, req.MembershipID, now)
		if err != nil {
			return err
		}
		used, err := st.FindMembershipBySource(ctx, types.MembershipSourceUpgrade, req.OrderID)
		if err != nil {
			return err
		}
		if used != nil {
			return ErrOrderAlreadyUsed
		}
		out, err = s.settle(ctx, st, p, req, now)
		return err
	})
	if err != nil {
		if errors.Is(err, dao.ErrConcurrentUpdate) {
			return nil, ErrConcurrentUpgrade
		}
		return nil, err
	}
	return out, nil
}

// plan is the validated input of one settlement.
type plan struct {
	source            *models.UserMembership
	sourceLevel       *models.MembershipLevel
	target            *models.MembershipLevel
	targetYearlyPrice decimal.Decimal
}

// prepare checks every precondition in order and returns the first failing one.
func (s *Service) prepare(ctx context.Context, st *dao.Store, userID, targetLevelID, membershipID string, now time.Time) (*plan, error) {
	var src *models.UserMembership
	var err error
	if membershipID != "" {
		src, err = st.FindActiveMembership(ctx, userID, membershipID)
		if src != nil && !src.EndDate.After(now) {
			src = nil
		}
	} else {
		src, err = st.FindCurrentMembership(ctx, userID, now)
	}
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNoActiveMembership
	}

	target, err := st.FindLevelByID(ctx, targetLevelID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrTargetLevelNotFound
	}
	srcLevel, err := st.FindLevelByID(ctx, src.LevelID)
	if err != nil {
		return nil, err
	}
	if srcLevel == nil {
		return nil, fmt.Errorf("level %s of membership %s not found", src.LevelID, src.ID)
	}
	if !target.IsHigherThan(srcLevel) {
		return nil, ErrTargetLevelNotHigher
	}

	products, err := st.FindActiveMembershipProducts(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	price, ok := pricing.ResolveTargetYearlyPrice(products)
	if !ok {
		return nil, ErrTargetLevelNoProduct
	}
	return &plan{source: src, sourceLevel: srcLevel, target: target, targetYearlyPrice: price}, nil
}
