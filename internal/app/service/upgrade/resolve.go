package upgrade

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/pricing"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
)

// maxChainDepth bounds how many upgrades are followed back to the originating purchase.
const maxChainDepth = 32

// resolvePaidAmountAndDays walks the derived-from chain of m back to the membership that was
// originally bought or granted. Upgrade prices along the way add to the paid amount; the lot size
// is the original window of that first membership.
func (s *Service) resolvePaidAmountAndDays(ctx context.Context, st *dao.Store, m *models.UserMembership) (decimal.Decimal, int, error) {
	extra := decimal.Zero
	cur := m
	start, end := m.StartDate, m.EndDate

	for depth := 0; ; depth++ {
		if depth > maxChainDepth {
			return decimal.Zero, 0, fmt.Errorf("membership %s: %w", m.ID, ErrUpgradeChainTooDeep)
		}
		days := pricing.DaysBetween(start, end)

		switch cur.SourceType {
		case types.MembershipSourceDirectPurchase:
			paid, err := s.orderPaidAmount(ctx, st, cur.SourceID)
			if err != nil {
				return decimal.Zero, 0, err
			}
			return paid.Add(extra), days, nil

		case types.MembershipSourceUpgrade:
			rec, err := st.FindUpgradeRecordByToMembership(ctx, cur.ID)
			if err != nil {
				return decimal.Zero, 0, err
			}
			if rec == nil {
				s.log.Warnw("upgrade audit missing, treating membership as unpaid", "membership_id", cur.ID)
				return extra, days, nil
			}
			origin, err := st.FindMembershipByID(ctx, rec.FromMembershipID)
			if err != nil {
				return decimal.Zero, 0, err
			}
			extra = extra.Add(rec.UpgradePrice)
			if origin == nil {
				s.log.Warnw("upgrade origin missing", "membership_id", cur.ID, "from_membership_id", rec.FromMembershipID)
				return extra, days, nil
			}
			start, end = originWindow(rec, origin)
			cur = origin

		default:
			return extra, days, nil
		}
	}
}

// originWindow prefers the window captured before settlement, since settling truncates end dates.
func originWindow(rec *models.UpgradeRecord, origin *models.UserMembership) (time.Time, time.Time) {
	if w, ok := rec.OriginalFromWindow(); ok {
		return w.StartDate, w.EndDate
	}
	return origin.StartDate, origin.EndDate
}

func (s *Service) orderPaidAmount(ctx context.Context, st *dao.Store, orderID string) (decimal.Decimal, error) {
	if orderID == "" {
		return decimal.Zero, nil
	}
	order, err := st.FindOrderByID(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	if !order.IsPaid() {
		return decimal.Zero, nil
	}
	return order.PaidAmount, nil
}
