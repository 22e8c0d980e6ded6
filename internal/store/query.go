package store

import (
	"fmt"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEq Operator = "eq"
	OpIn Operator = "in"
)

// Filter restricts a query to rows where Column compares to Value.
// For OpIn, Value is a []string.
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

// Eq matches rows where column equals value. A nil value matches null columns.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// In matches rows where column is one of values.
func In(column string, values ...string) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Order sorts query results by Column.
type Order struct {
	Column     string
	Descending bool
}

// Query describes a read against a single table.
type Query struct {
	Table   Table
	Columns []string // empty selects all columns
	Filters []Filter
	Order   []Order
	Limit   int // 0 means no limit
}

// From starts a query on table t.
func From(t Table) Query {
	return Query{Table: t}
}

// Select restricts the returned columns.
func (q Query) Select(cols ...string) Query {
	q.Columns = append(q.Columns[:len(q.Columns):len(q.Columns)], cols...)
	return q
}

// Where adds filters.
func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(q.Filters[:len(q.Filters):len(q.Filters)], filters...)
	return q
}

// OrderBy adds a sort key.
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = append(q.Order[:len(q.Order):len(q.Order)], Order{Column: column, Descending: descending})
	return q
}

// WithLimit caps the number of rows returned.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// SelectedColumns returns the explicit column list, or every column of the table.
func (q Query) SelectedColumns() []string {
	if len(q.Columns) == 0 {
		return Columns(q.Table)
	}
	return q.Columns
}

// Validate checks the query against the table schema so backends never see unknown identifiers.
func (q Query) Validate() error {
	if err := q.Table.Validate(); err != nil {
		return err
	}

	for _, col := range q.Columns {
		if !HasColumn(q.Table, col) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Table, col)
		}
	}

	for _, f := range q.Filters {
		if !HasColumn(q.Table, f.Column) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Table, f.Column)
		}
		switch f.Op {
		case OpEq:
		case OpIn:
			if _, ok := f.Value.([]string); !ok {
				return fmt.Errorf("filter %s: in operator requires []string, got %T", f.Column, f.Value)
			}
		default:
			return fmt.Errorf("filter %s: unsupported operator %q", f.Column, f.Op)
		}
	}

	for _, o := range q.Order {
		if !HasColumn(q.Table, o.Column) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Table, o.Column)
		}
	}

	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	return nil
}
