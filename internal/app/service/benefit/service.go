// Package benefit issues, revokes and summarizes level-linked entitlements.
package benefit

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// UsageCounter reports how much of a byte quota a user has consumed.
type UsageCounter interface {
	UsedBytes(ctx context.Context, userID string) (int64, error)
}

type storageUsage struct{ store *dao.Store }

func (u storageUsage) UsedBytes(ctx context.Context, userID string) (int64, error) {
	return u.store.FindStorageUsage(ctx, userID)
}

type Service struct {
	store *dao.Store
	usage UsageCounter
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(store *dao.Store, log *zap.SugaredLogger) *Service {
	return &Service{
		store: store,
		usage: storageUsage{store: store},
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Grant creates one ACTIVE grant per benefit configured for the level, covering [start, end).
func (s *Service) Grant(ctx context.Context, userID, membershipID, levelID string, start, end time.Time) ([]*models.UserBenefit, error) {
	return s.GrantTx(ctx, s.store, userID, membershipID, levelID, start, end)
}

// GrantTx is Grant through a transaction-scoped store.
func (s *Service) GrantTx(ctx context.Context, st *dao.Store, userID, membershipID, levelID string, start, end time.Time) ([]*models.UserBenefit, error) {
	links, err := st.FindBenefitsByLevel(ctx, levelID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		logctx.FromCtx(ctx, s.log).Infow("level has no benefits configured", "level_id", levelID, "membership_id", membershipID)
		return nil, nil
	}

	grants := lo.Map(links, func(l *models.LevelBenefit, _ int) *models.UserBenefit {
		return &models.UserBenefit{
			UserID:       userID,
			BenefitID:    l.BenefitID,
			BenefitValue: l.BenefitValue,
			SourceType:   types.UserBenefitSourceMembershipGift,
			SourceID:     membershipID,
			EffectiveAt:  start,
			ExpiredAt:    end,
			Status:       types.UserBenefitStatusActive,
		}
	})
	if err := st.CreateBenefitGrants(ctx, grants); err != nil {
		return nil, fmt.Errorf("failed to grant benefits of membership %s: %w", membershipID, err)
	}
	return grants, nil
}

// Expire sets every ACTIVE grant sourced from the membership to INACTIVE.
func (s *Service) Expire(ctx context.Context, userID, membershipID string) (int64, error) {
	return s.ExpireTx(ctx, s.store, userID, membershipID)
}

func (s *Service) ExpireTx(ctx context.Context, st *dao.Store, userID, membershipID string) (int64, error) {
	n, err := st.ExpireBenefitGrantsBySource(ctx, userID, types.UserBenefitSourceMembershipGift, membershipID)
	if err != nil {
		return 0, err
	}
	logctx.FromCtx(ctx, s.log).Infow("benefits expired", "membership_id", membershipID, "count", n)
	return n, nil
}

// Summary is a user's current standing for one benefit.
type Summary struct {
	BenefitID        string                       `json:"benefit_id"`
	Name             string                       `json:"name"`
	ConsumptionMode  types.BenefitConsumptionMode `json:"consumption_mode"`
	UnitType         types.BenefitUnitType        `json:"unit_type"`
	Total            decimal.Decimal              `json:"total"`
	Used             decimal.Decimal              `json:"used"`
	Remaining        decimal.Decimal              `json:"remaining"`
	TotalDisplay     string                       `json:"total_display"`
	UsedDisplay      string                       `json:"used_display"`
	RemainingDisplay string                       `json:"remaining_display"`
	// IsDefault is true when no grant is in effect and Total is the definition default.
	IsDefault bool `json:"is_default"`
}

// Summarize computes, for every benefit definition, the SUM or MAX of the user's grants in effect.
func (s *Service) Summarize(ctx context.Context, userID string) ([]*Summary, error) {
	now := s.now()
	defs, err := s.store.FindAllBenefits(ctx)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.FindActiveBenefitGrants(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	byBenefit := lo.GroupBy(grants, func(g *models.UserBenefit) string { return g.BenefitID })

	out := make([]*Summary, 0, len(defs))
	for _, def := range defs {
		sum := &Summary{
			BenefitID:       def.ID,
			Name:            def.Name,
			ConsumptionMode: def.ConsumptionMode,
			UnitType:        def.UnitType,
		}
		values := lo.Map(byBenefit[def.ID], func(g *models.UserBenefit, _ int) decimal.Decimal { return g.BenefitValue })
		if len(values) == 0 {
			sum.Total = def.DefaultValue
			sum.IsDefault = true
		} else {
			sum.Total = aggregate(def.ConsumptionMode, values)
		}

		sum.Used = decimal.Zero
		if def.ID == types.BenefitIDStorageQuota {
			used, err := s.usage.UsedBytes(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to read usage of %s: %w", def.ID, err)
			}
			sum.Used = decimal.NewFromInt(used)
		}
		sum.Remaining = decimal.Max(decimal.Zero, sum.Total.Sub(sum.Used))

		sum.TotalDisplay = Format(def.UnitType, sum.Total)
		sum.UsedDisplay = Format(def.UnitType, sum.Used)
		sum.RemainingDisplay = Format(def.UnitType, sum.Remaining)
		out = append(out, sum)
	}
	return out, nil
}

func aggregate(mode types.BenefitConsumptionMode, values []decimal.Decimal) decimal.Decimal {
	if mode == types.BenefitConsumptionModeMax {
		return decimal.Max(values[0], values[1:]...)
	}
	return decimal.Sum(values[0], values[1:]...)
}

// Format renders a benefit value for display, IEC sizes for bytes and grouped digits for counts.
func Format(unit types.BenefitUnitType, v decimal.Decimal) string {
	switch unit {
	case types.BenefitUnitTypeBytes:
		return humanize.BigIBytes(v.Truncate(0).BigInt())
	default:
		return humanize.BigComma(v.Truncate(0).BigInt())
	}
}

var Module = fx.Options(
	fx.Provide(NewService),
)
