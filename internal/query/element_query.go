// Package query describes element queries independently of the database
// that eventually runs them.
package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/robuust/reverserelations/internal/entities"
)

// Status selects which element statuses a query returns
type Status int

const (
	// StatusLive returns enabled, non-deleted elements only
	StatusLive Status = iota
	// StatusAny returns elements regardless of status, soft-deleted ones included
	StatusAny
)

// Columns selected by every element query, in scan order
var Columns = []string{
	"elements.id",
	"elements.kind",
	"elements.canonical_id",
	"elements.enabled",
	"elements.date_deleted IS NOT NULL AS deleted",
}

// Join is an INNER JOIN against a table or a subquery
type Join struct {
	Table    string     // Table name, ignored when Subquery is set
	Subquery sq.Sqlizer // Optional derived table
	Alias    string     // Optional alias
	On       sq.Sqlizer // Join condition
}

// ToSql renders the join clause
func (j Join) ToSql() (string, []interface{}, error) {
	if j.On == nil {
		return "", nil, fmt.Errorf("join on %s has no condition", j.Name())
	}

	var args []interface{}
	target := j.Table
	if j.Subquery != nil {
		sub, subArgs, err := j.Subquery.ToSql()
		if err != nil {
			return "", nil, fmt.Errorf("failed to render join subquery: %w", err)
		}
		target = "(" + sub + ")"
		args = append(args, subArgs...)
	}
	if j.Alias != "" {
		target += " " + j.Alias
	}

	on, onArgs, err := j.On.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render join condition for %s: %w", j.Name(), err)
	}
	args = append(args, onArgs...)

	return "INNER JOIN " + target + " ON " + on, args, nil
}

// Name returns the alias of the join, or its table
func (j Join) Name() string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Table
}

// ElementQuery selects elements of one kind. It is built up by fields and
// rendered to SQL by the repository that executes it.
type ElementQuery struct {
	Kind       entities.SourceKind
	SiteID     *int64  // Restrict to elements present in this site
	IDs        []int64 // nil = no id filter, empty = matches nothing
	FixedOrder bool    // Order results as listed in IDs
	Joins      []Join
	Where      []sq.Sqlizer
	GroupBy    []string // Collapses rows multiplied by joins
	OrderBy    []string // Must be aggregates when GroupBy is set
	Status     Status
	Limit      uint64
}

// New returns a query for live elements of the given kind
func New(kind entities.SourceKind) *ElementQuery {
	return &ElementQuery{
		Kind:   kind,
		Status: StatusLive,
	}
}

// InnerJoin appends a join
func (q *ElementQuery) InnerJoin(j Join) *ElementQuery {
	q.Joins = append(q.Joins, j)
	return q
}

// ReplaceJoins drops every existing join and installs the given ones
func (q *ElementQuery) ReplaceJoins(joins ...Join) *ElementQuery {
	q.Joins = append([]Join(nil), joins...)
	return q
}

// AnyStatus includes disabled and soft-deleted elements
func (q *ElementQuery) AnyStatus() *ElementQuery {
	q.Status = StatusAny
	return q
}

// Builder returns the query as a squirrel builder with default placeholders
func (q *ElementQuery) Builder() sq.SelectBuilder {
	table := q.Kind.Table
	b := sq.Select(Columns...).
		From("elements").
		InnerJoin(fmt.Sprintf("%s ON %s.id = elements.id", table, table))

	if q.SiteID != nil {
		b = b.InnerJoin("elements_sites ON elements_sites.element_id = elements.id AND elements_sites.site_id = ?", *q.SiteID)
	}

	for _, j := range q.Joins {
		b = b.JoinClause(j)
	}

	// Derivatives never show up as related elements
	b = b.Where(sq.Eq{
		"elements.kind":         q.Kind.Name,
		"elements.canonical_id": nil,
	})

	if q.Status == StatusLive {
		b = b.Where(sq.Eq{
			"elements.enabled":      true,
			"elements.date_deleted": nil,
		})
	}

	if q.IDs != nil {
		b = b.Where(sq.Eq{"elements.id": q.IDs})
	}

	for _, pred := range q.Where {
		b = b.Where(pred)
	}

	if len(q.GroupBy) > 0 {
		b = b.GroupBy(q.GroupBy...)
	}

	switch {
	case q.FixedOrder && len(q.IDs) > 0:
		b = b.OrderByClause(fixedOrder(q.IDs))
	case len(q.OrderBy) > 0:
		b = b.OrderBy(q.OrderBy...)
	default:
		b = b.OrderBy("elements.id")
	}

	if q.Limit > 0 {
		b = b.Limit(q.Limit)
	}

	return b
}

// ToSQL renders the query with the given placeholder format
func (q *ElementQuery) ToSQL(format sq.PlaceholderFormat) (string, []interface{}, error) {
	return q.Builder().PlaceholderFormat(format).ToSql()
}

func fixedOrder(ids []int64) sq.Sqlizer {
	var sb strings.Builder
	args := make([]interface{}, 0, len(ids))
	sb.WriteString("CASE elements.id")
	for i, id := range ids {
		fmt.Fprintf(&sb, " WHEN ? THEN %d", i)
		args = append(args, id)
	}
	fmt.Fprintf(&sb, " ELSE %d END", len(ids))
	return sq.Expr(sb.String(), args...)
}
