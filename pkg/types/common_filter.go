package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// ErrInvalidFilter reports a filter list that cannot be turned into SQL.
var ErrInvalidFilter = errors.New("invalid filter")

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

const filterDateLayout = "2006-01-02"

type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		builder.WriteString("1=1")
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		// JSON operator fields (-> or ->>) cannot be quoted as a column
		if strings.Contains(f.Field, "->") {
			clause.Expr{SQL: fmt.Sprintf("%s = ?", f.Field), Vars: []interface{}{value}}.Build(builder)
		} else {
			clause.Eq{Column: f.Field, Value: value}.Build(builder)
		}
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			builder.WriteString("1=1")
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		// values are inclusive calendar days, UTC
		start, end, ok := parseDateRange(f.Values)
		if !ok {
			builder.WriteString("1=1")
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: start}, clause.Lt{Column: f.Field, Value: end.AddDate(0, 0, 1)}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	default:
		builder.WriteString("1=1")
	}
}

func parseDateRange(values []any) (time.Time, time.Time, bool) {
	if len(values) < 2 {
		return time.Time{}, time.Time{}, false
	}
	s, ok1 := values[0].(string)
	e, ok2 := values[1].(string)
	if !ok1 || !ok2 {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.ParseInLocation(filterDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.ParseInLocation(filterDateLayout, e, time.UTC)
	if err != nil || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// CommonFilters joins a list of filters with AND.
type CommonFilters []*CommonFilter

// Validate rejects null entries and fields outside allowed. Field names reach the SQL text, so
// request-supplied filters must pass through here first.
func (fs CommonFilters) Validate(allowed ...string) error {
	for i, f := range fs {
		if f == nil {
			return fmt.Errorf("filter %d is null: %w", i, ErrInvalidFilter)
		}
		if !lo.Contains(allowed, f.Field) {
			return fmt.Errorf("field %q is not filterable: %w", f.Field, ErrInvalidFilter)
		}
	}
	return nil
}

// Build skips null entries.
func (fs CommonFilters) Build(builder clause.Builder) {
	fs = lo.Compact(fs)
	if len(fs) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range fs {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		builder.WriteByte('(')
		f.Build(builder)
		builder.WriteByte(')')
	}
}
