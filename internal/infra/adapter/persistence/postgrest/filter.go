package postgrest

import (
	"fmt"
	"net/url"
	"strings"
)

// query builds PostgREST query strings: filters are column=op.value pairs.
type query struct {
	v url.Values
}

func newQuery() *query {
	return &query{v: url.Values{}}
}

func (q *query) selectCols(cols string) *query {
	q.v.Set("select", cols)
	return q
}

func (q *query) eq(column string, value any) *query {
	q.v.Add(column, "eq."+fmt.Sprint(value))
	return q
}

func (q *query) lt(column string, value any) *query {
	q.v.Add(column, "lt."+fmt.Sprint(value))
	return q
}

func (q *query) in(column string, values []string) *query {
	q.v.Add(column, "in."+quotedList(values))
	return q
}

func (q *query) notIn(column string, values []string) *query {
	q.v.Add(column, "not.in."+quotedList(values))
	return q
}

func (q *query) order(terms ...string) *query {
	q.v.Set("order", strings.Join(terms, ","))
	return q
}

func (q *query) limit(n int) *query {
	q.v.Set("limit", fmt.Sprint(n))
	return q
}

func (q *query) values() url.Values {
	return q.v
}

// quotedList renders ("a","b") with embedded quotes and backslashes escaped,
// so ids containing commas or parentheses stay intact.
func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = `"` + v + `"`
	}
	return "(" + strings.Join(quoted, ",") + ")"
}
