// Package daotest builds in-memory stores and fixtures for tests.
package daotest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Day is a UTC midnight used as "today" by most fixtures.
var Day = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// NewDB opens a per-test in-memory sqlite database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection serializes transactions the way row locks would
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewStore is NewDB wrapped in a dao.Store.
func NewStore(t *testing.T) *dao.Store {
	t.Helper()
	return dao.New(NewDB(t))
}

// Fixtures seeds catalog and user rows.
type Fixtures struct {
	t  *testing.T
	db *gorm.DB
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) create(v any) {
	f.t.Helper()
	require.NoError(f.t, f.db.WithContext(context.Background()).Create(v).Error)
}

// Level creates an active level. Smaller sortOrder ranks higher.
func (f *Fixtures) Level(name string, sortOrder int) *models.MembershipLevel {
	l := &models.MembershipLevel{
		ID:        tool.GenerateUUIDV7(),
		Name:      name,
		SortOrder: sortOrder,
		Status:    types.MembershipLevelStatusActive,
	}
	f.create(l)
	return l
}

// YearlyProduct creates an active 365-day membership product for the level.
func (f *Fixtures) YearlyProduct(level *models.MembershipLevel, yearly string) *models.Product {
	p := &models.Product{
		ID:           tool.GenerateUUIDV7(),
		Name:         level.Name + " yearly",
		Type:         types.ProductTypeMembership,
		LevelID:      &level.ID,
		DurationDays: 365,
		PriceYearly:  decimal.NewNullDecimal(decimal.RequireFromString(yearly)),
		Status:       types.ProductStatusActive,
	}
	f.create(p)
	return p
}

// PaidOrder creates a paid purchase order for the product.
func (f *Fixtures) PaidOrder(userID string, product *models.Product, amount string) *models.Order {
	paidAt := Day
	o := &models.Order{
		ID:         tool.GenerateUUIDV7(),
		OrderNo:    "NO-" + tool.GenerateUUIDV7(),
		UserID:     userID,
		ProductID:  product.ID,
		Type:       types.OrderTypePurchase,
		Status:     types.OrderStatusPaid,
		PaidAmount: decimal.RequireFromString(amount),
		PaidAt:     &paidAt,
	}
	f.create(o)
	return o
}

// Membership creates an active membership purchased through order.
func (f *Fixtures) Membership(userID string, level *models.MembershipLevel, order *models.Order, start, end time.Time) *models.UserMembership {
	m := &models.UserMembership{
		ID:         tool.GenerateUUIDV7(),
		UserID:     userID,
		LevelID:    level.ID,
		StartDate:  start,
		EndDate:    end,
		Status:     types.MembershipStatusActive,
		SourceType: types.MembershipSourceOther,
	}
	if order != nil {
		m.SourceType = types.MembershipSourceDirectPurchase
		m.SourceID = order.ID
	}
	f.create(m)
	return m
}

// Points creates a valid lot attached to the membership.
func (f *Fixtures) Points(m *models.UserMembership, source types.PointSourceType, amount, used int64, expiredAt time.Time) *models.PointRecord {
	r := &models.PointRecord{
		ID:               tool.GenerateUUIDV7(),
		UserID:           m.UserID,
		UserMembershipID: &m.ID,
		PointAmount:      amount,
		Used:             used,
		Remaining:        amount - used,
		SourceType:       source,
		SourceID:         m.SourceID,
		EffectiveAt:      m.StartDate,
		ExpiredAt:        expiredAt,
		Status:           types.PointRecordStatusValid,
	}
	f.create(r)
	return r
}

// Benefit creates a benefit definition.
func (f *Fixtures) Benefit(id string, mode types.BenefitConsumptionMode, unit types.BenefitUnitType, defaultValue int64) *models.Benefit {
	b := &models.Benefit{
		ID:              id,
		Name:            id,
		ConsumptionMode: mode,
		UnitType:        unit,
		DefaultValue:    decimal.NewFromInt(defaultValue),
	}
	f.create(b)
	return b
}

// LevelBenefit links a benefit value to a level.
func (f *Fixtures) LevelBenefit(level *models.MembershipLevel, benefitID string, value int64) *models.LevelBenefit {
	lb := &models.LevelBenefit{
		ID:           tool.GenerateUUIDV7(),
		LevelID:      level.ID,
		BenefitID:    benefitID,
		BenefitValue: decimal.NewFromInt(value),
	}
	f.create(lb)
	return lb
}

// Reload reads a row back by primary key.
func Reload[T any](t *testing.T, db *gorm.DB, id string) *T {
	t.Helper()
	var v T
	require.NoError(t, db.Unscoped().Where("id = ?", id).First(&v).Error)
	return &v
}
