package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func buildStatement(t *testing.T, fs CommonFilters) *gorm.Statement {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{DryRun: true})
	require.NoError(t, err)
	var rows []map[string]any
	return db.Table("upgrade_record").Where(clause.Where{Exprs: []clause.Expression{fs}}).Find(&rows).Statement
}

func TestCommonFilters_BuildSkipsNull(t *testing.T) {
	stmt := buildStatement(t, CommonFilters{
		nil,
		{Field: "user_id", Operator: CommonFilterOperatorEq, Values: []any{"u1"}},
		nil,
		{Field: "transfer_points", Operator: CommonFilterOperatorGte, Values: []any{10}},
	})
	require.Contains(t, stmt.SQL.String(), "(`user_id` = ?) AND (`transfer_points` >= ?)")
	require.Equal(t, []any{"u1", 10}, stmt.Vars)

	stmt = buildStatement(t, CommonFilters{nil, nil})
	require.Contains(t, stmt.SQL.String(), "1=1")
	require.Empty(t, stmt.Vars)
}

func TestCommonFilters_Validate(t *testing.T) {
	allowed := []string{"user_id", "created_at"}

	require.NoError(t, CommonFilters(nil).Validate(allowed...))
	require.NoError(t, CommonFilters{
		{Field: "user_id", Operator: CommonFilterOperatorEq, Values: []any{"u1"}},
		{Field: "created_at", Operator: CommonFilterOperatorDateRange, Values: []any{"2025-03-01", "2025-03-02"}},
	}.Validate(allowed...))

	for name, fs := range map[string]CommonFilters{
		"null entry":   {nil},
		"unknown":      {{Field: "status", Operator: CommonFilterOperatorEq, Values: []any{"x"}}},
		"json path":    {{Field: "details->>'order_no'", Operator: CommonFilterOperatorEq, Values: []any{"x"}}},
		"sql fragment": {{Field: "user_id = user_id OR 1", Operator: CommonFilterOperatorEq, Values: []any{1}}},
	} {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, fs.Validate(allowed...), ErrInvalidFilter)
		})
	}
}
