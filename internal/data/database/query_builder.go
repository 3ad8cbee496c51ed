// Package database builds parameterized list queries with sanitized identifiers.
package database

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
)

type ConditionType string

const (
	Equal ConditionType = "="
	ILike ConditionType = "ILIKE"
	In    ConditionType = "IN"
	// AnyOf ORs ILIKE matches over several columns with one shared parameter.
	AnyOf ConditionType = "ANY_OF"

	unset = -1
)

// Condition is a single WHERE predicate. Fields is used by AnyOf only.
type Condition struct {
	Field  string
	Fields []string
	Type   ConditionType
	Value  any
}

func WhereCond(field string, condType ConditionType, value any) Condition {
	return Condition{Field: field, Type: condType, Value: value}
}

// WhereAnyILike matches value against any of the given columns. value is a LIKE
// pattern with backslash as the escape character; see ContainsPattern.
func WhereAnyILike(value string, fields ...string) Condition {
	return Condition{Fields: fields, Type: AnyOf, Value: value}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`) //nolint:gochecknoglobals // immutable

// ContainsPattern returns a LIKE pattern matching s literally anywhere in a value.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

type ListQueryOptions struct {
	Table      string
	Columns    []string
	CountOnly  bool
	Conditions []Condition
	OrderBy    string
	OrderDir   string
	// ThenBy is a secondary ascending sort for stable paging.
	ThenBy string
	Limit  int
	Offset int
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{Table: table, Limit: unset, Offset: unset}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns sets the columns to select.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) { o.Columns = cols }
}

// WithCondition adds a single condition.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) { o.Conditions = append(o.Conditions, cond) }
}

// WithOrderBy sets the ordering column and direction, plus an optional tiebreaker column.
func WithOrderBy(column, direction string, thenBy ...string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = column
		o.OrderDir = direction
		if len(thenBy) > 0 {
			o.ThenBy = thenBy[0]
		}
	}
}

// WithLimit sets the limit. Accepts 0.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// WithOffset sets the offset. Accepts 0.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if offset >= 0 {
			o.Offset = offset
		}
	}
}

// WithCountOnly sets the query to count only.
func WithCountOnly() ListQueryOption {
	return func(o *ListQueryOptions) { o.CountOnly = true }
}

func ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// BuildListQuery constructs a SQL query string and arguments from options, sanitizing identifiers.
//
//	query, args := BuildListQuery(NewListQueryOptions("users",
//		WithColumns("id", "email"),
//		WithCondition(WhereCond("role", In, []string{"supervisor", "manager"})),
//		WithOrderBy("email", "ASC"),
//		WithLimit(50),
//	))
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var q strings.Builder
	switch {
	case options.CountOnly:
		q.WriteString("SELECT COUNT(*)")
	case len(options.Columns) == 0:
		q.WriteString("SELECT *")
	default:
		cols := make([]string, len(options.Columns))
		for i, c := range options.Columns {
			cols[i] = ident(c)
		}
		q.WriteString("SELECT " + strings.Join(cols, ", "))
	}
	q.WriteString(" FROM " + ident(options.Table))

	where, args := buildWhereClause(options.Conditions)
	if where != "" {
		q.WriteString(" " + where)
	}
	if options.CountOnly {
		return q.String(), args
	}

	if options.OrderBy != "" {
		q.WriteString(" ORDER BY " + ident(options.OrderBy))
		if dir := strings.ToUpper(options.OrderDir); dir == "ASC" || dir == "DESC" {
			q.WriteString(" " + dir)
		}
		if options.ThenBy != "" && options.ThenBy != options.OrderBy {
			q.WriteString(", " + ident(options.ThenBy) + " ASC")
		}
	}
	if options.Limit != unset {
		args = append(args, options.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}
	if options.Offset != unset {
		args = append(args, options.Offset)
		fmt.Fprintf(&q, " OFFSET $%d", len(args))
	}
	return q.String(), args
}

func buildWhereClause(conds []Condition) (string, []any) {
	parts := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		if s, a := processCondition(c, len(args)+1); s != "" {
			parts = append(parts, s)
			args = append(args, a...)
		}
	}
	if len(parts) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

// processCondition renders one condition starting at parameter index next.
// Conditions with no field or an empty IN list are skipped.
func processCondition(c Condition, next int) (string, []any) {
	switch c.Type {
	case Equal:
		if c.Field == "" {
			return "", nil
		}
		return fmt.Sprintf("%s = $%d", ident(c.Field), next), []any{c.Value}
	case ILike:
		if c.Field == "" {
			return "", nil
		}
		return fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, ident(c.Field), next), []any{c.Value}
	case In:
		rv := reflect.ValueOf(c.Value)
		if c.Field == "" || rv.Kind() != reflect.Slice || rv.Len() == 0 {
			return "", nil
		}
		ph := make([]string, rv.Len())
		args := make([]any, rv.Len())
		for i := range rv.Len() {
			ph[i] = fmt.Sprintf("$%d", next+i)
			args[i] = rv.Index(i).Interface()
		}
		return fmt.Sprintf("%s IN (%s)", ident(c.Field), strings.Join(ph, ", ")), args
	case AnyOf:
		if len(c.Fields) == 0 {
			return "", nil
		}
		ors := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			ors[i] = fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, ident(f), next)
		}
		return "(" + strings.Join(ors, " OR ") + ")", []any{c.Value}
	}
	return "", nil
}
