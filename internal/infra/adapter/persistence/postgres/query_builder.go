// Package postgres implements repository.Store over a relational database
// using sqlx and the pgx stdlib driver.
package postgres

import (
	"fmt"
	"strings"
)

// queryBuilder accumulates $N-numbered arguments for SET and WHERE fragments.
// Column names passed in are always package constants, never caller input.
type queryBuilder struct {
	sets  []string
	conds []string
	args  []any
}

func (qb *queryBuilder) arg(v any) string {
	qb.args = append(qb.args, v)
	return fmt.Sprintf("$%d", len(qb.args))
}

func (qb *queryBuilder) set(column string, v any) {
	qb.sets = append(qb.sets, column+" = "+qb.arg(v))
}

func (qb *queryBuilder) where(column, op string, v any) {
	qb.conds = append(qb.conds, column+" "+op+" "+qb.arg(v))
}

func (qb *queryBuilder) setClause() string {
	return strings.Join(qb.sets, ", ")
}

// whereClause returns " WHERE a AND b" or "" when no condition was added.
func (qb *queryBuilder) whereClause() string {
	if len(qb.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(qb.conds, " AND ")
}
