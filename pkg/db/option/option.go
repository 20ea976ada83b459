package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm query before execution.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// Condition expresses a single column comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a comparison condition to the query.
func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
	}
}

// QuerySortBy describes an ORDER BY with an allow-list of sortable columns.
type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders the result set. Columns outside the allow-list are ignored.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.SortBy)
		if column == "" {
			column = "created_at"
		}
		if sort.Allow != nil && !sort.Allow[column] {
			return db
		}
		direction := "ASC"
		if strings.EqualFold(sort.OrderBy, "desc") {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", column, direction))
	}
}

// WithLimit caps the number of returned rows.
func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

// WithLockingUpdate acquires FOR UPDATE row locks for the query.
func WithLockingUpdate() QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return LockingUpdate(db)
	}
}

// LockingUpdate is a gorm scope enabling row-level locking. SQLite serializes
// writers on its own and rejects the FOR UPDATE clause, so it is skipped there.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Apply runs all options against the query.
func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}
