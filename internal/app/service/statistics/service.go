// Package statistics reports upgrade and membership activity for the admin console.
package statistics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidRequest reports a statistics request that cannot be run.
var ErrInvalidRequest = errors.New("invalid statistic request")

type StatisticType string

const (
	// Upgrade audits
	StatisticTypeDailyUpgradeCount       StatisticType = "daily_upgrade_count"
	StatisticTypeDailyUpgradeAmount      StatisticType = "daily_upgrade_amount"
	StatisticTypeDailyTransferredPoints  StatisticType = "daily_transferred_points"
	StatisticTypeDailyCompensationPoints StatisticType = "daily_compensation_points"

	// Memberships
	StatisticTypeActiveMembershipCount   StatisticType = "active_membership_count"
	StatisticTypeDailyNewMembershipCount StatisticType = "daily_new_membership_count"
)

var statisticTypes = []StatisticType{
	StatisticTypeDailyUpgradeCount,
	StatisticTypeDailyUpgradeAmount,
	StatisticTypeDailyTransferredPoints,
	StatisticTypeDailyCompensationPoints,
	StatisticTypeActiveMembershipCount,
	StatisticTypeDailyNewMembershipCount,
}

// Filter fields that only make sense for some statistic types.
type MembershipStatisticFilterType string

const (
	MembershipStatisticFilterTypeLevelID    MembershipStatisticFilterType = "level_id"
	MembershipStatisticFilterTypeSourceType MembershipStatisticFilterType = "source_type"
	MembershipStatisticFilterTypeCreatedAt  MembershipStatisticFilterType = "created_at"
)

var validFilters = map[MembershipStatisticFilterType][]StatisticType{
	MembershipStatisticFilterTypeLevelID:    {StatisticTypeActiveMembershipCount, StatisticTypeDailyNewMembershipCount},
	MembershipStatisticFilterTypeSourceType: {StatisticTypeDailyNewMembershipCount},
	MembershipStatisticFilterTypeCreatedAt: {
		StatisticTypeDailyUpgradeCount,
		StatisticTypeDailyUpgradeAmount,
		StatisticTypeDailyTransferredPoints,
		StatisticTypeDailyCompensationPoints,
		StatisticTypeDailyNewMembershipCount,
	},
}

type MembershipStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type MembershipStatisticRequest struct {
	Filters   []*types.CommonFilter          `json:"filters"`
	DataItems []*MembershipStatisticDataItem `json:"data_items"`
}

// Validate rejects null data items, unknown statistic types and filters on fields outside the
// filterable set.
func (f *MembershipStatisticRequest) Validate() error {
	if f == nil || len(f.DataItems) == 0 {
		return fmt.Errorf("no data items requested: %w", ErrInvalidRequest)
	}
	for i, item := range f.DataItems {
		if item == nil {
			return fmt.Errorf("data item %d is null: %w", i, ErrInvalidRequest)
		}
		if !lo.Contains(statisticTypes, item.ID) {
			return fmt.Errorf("invalid data item id %q: %w", item.ID, ErrInvalidRequest)
		}
	}
	fields := lo.Map(lo.Keys(validFilters), func(k MembershipStatisticFilterType, _ int) string { return string(k) })
	if err := types.CommonFilters(f.Filters).Validate(fields...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// GetFilters keeps the filters applicable to statisticType.
func (f *MembershipStatisticRequest) GetFilters(statisticType StatisticType) types.CommonFilters {
	if f == nil {
		return nil
	}
	return lo.Filter(f.Filters, func(filter *types.CommonFilter, _ int) bool {
		if filter == nil {
			return false
		}
		applies, ok := validFilters[MembershipStatisticFilterType(filter.Field)]
		return ok && lo.Contains(applies, statisticType)
	})
}

type MembershipStatisticResponseDataItem struct {
	Date   string           `json:"date,omitempty"`
	Label  string           `json:"label,omitempty"`
	Value  int64            `json:"value"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type MembershipStatisticResponse struct {
	DataItems map[StatisticType][]MembershipStatisticResponseDataItem `json:"data_items"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(store *dao.Store) *Service {
	return &Service{db: store.DB(), now: func() time.Time { return time.Now().UTC() }}
}

// dayOf renders a timestamp column as YYYY-MM-DD.
func (s *Service) dayOf(column string) string {
	if s.db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	}
	return fmt.Sprintf("substr(%s, 1, 10)", column)
}

func where(request *MembershipStatisticRequest, typ StatisticType) clause.Where {
	return clause.Where{Exprs: []clause.Expression{request.GetFilters(typ)}}
}

// dailyUpgradeSum groups upgrade audits by day with the given aggregate as value.
func (s *Service) dailyUpgradeSum(ctx context.Context, request *MembershipStatisticRequest, typ StatisticType, selectValue string) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	day := s.dayOf("created_at")
	q := s.db.WithContext(ctx).Table((models.UpgradeRecord{}).TableName()).
		Select(fmt.Sprintf("%s AS date, %s", day, selectValue)).
		Where(where(request, typ)).
		Group(day).
		Order("date DESC")
	if err := q.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", typ, err)
	}
	return results, nil
}

type levelCount struct {
	LevelID string
	Value   int64
}

func (s *Service) getActiveMembershipCount(ctx context.Context, request *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var rows []levelCount
	now := s.now()
	err := s.db.WithContext(ctx).Model(&models.UserMembership{}).
		Select("level_id, COUNT(DISTINCT user_id) AS value").
		Where(where(request, StatisticTypeActiveMembershipCount)).
		Where("status = ? AND start_date <= ? AND end_date > ?", types.MembershipStatusActive, now, now).
		Group("level_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active memberships: %w", err)
	}

	var levels []*models.MembershipLevel
	if err := s.db.WithContext(ctx).Find(&levels).Error; err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	names := lo.SliceToMap(levels, func(l *models.MembershipLevel) (string, string) { return l.ID, l.Name })

	return lo.Map(rows, func(r levelCount, _ int) MembershipStatisticResponseDataItem {
		label := names[r.LevelID]
		if label == "" {
			label = r.LevelID
		}
		return MembershipStatisticResponseDataItem{Label: label, Value: r.Value}
	}), nil
}

func (s *Service) getDailyNewMembershipCount(ctx context.Context, request *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	day := s.dayOf("created_at")
	q := s.db.WithContext(ctx).Model(&models.UserMembership{}).
		Select(fmt.Sprintf("%s AS date, source_type AS label, COUNT(*) AS value", day)).
		Where(where(request, StatisticTypeDailyNewMembershipCount)).
		Group(day).
		Group("source_type").
		Order("date DESC").
		Order("label ASC")
	if err := q.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count new memberships: %w", err)
	}
	return results, nil
}

func (s *Service) getMembershipStatistic(ctx context.Context, request *MembershipStatisticRequest, dataItem *MembershipStatisticDataItem) ([]MembershipStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyUpgradeCount:
		return s.dailyUpgradeSum(ctx, request, dataItem.ID, "COUNT(*) AS value")
	case StatisticTypeDailyUpgradeAmount:
		return s.dailyUpgradeSum(ctx, request, dataItem.ID, "COUNT(*) AS value, COALESCE(SUM(upgrade_price), 0) AS amount")
	case StatisticTypeDailyTransferredPoints:
		return s.dailyUpgradeSum(ctx, request, dataItem.ID, "COALESCE(SUM(transfer_points), 0) AS value")
	case StatisticTypeDailyCompensationPoints:
		return s.dailyUpgradeSum(ctx, request, dataItem.ID, "COALESCE(SUM(point_compensation), 0) AS value")
	case StatisticTypeActiveMembershipCount:
		return s.getActiveMembershipCount(ctx, request)
	case StatisticTypeDailyNewMembershipCount:
		return s.getDailyNewMembershipCount(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetMembershipStatistic computes every requested data item concurrently.
func (s *Service) GetMembershipStatistic(ctx context.Context, request *MembershipStatisticRequest) (*MembershipStatisticResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []MembershipStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *MembershipStatisticDataItem) {
			defer wg.Done()
			res, err := s.getMembershipStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []MembershipStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	wg.Wait()
	close(errChan)
	close(resChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	results := make(map[StatisticType][]MembershipStatisticResponseDataItem, len(request.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &MembershipStatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
