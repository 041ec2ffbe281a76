package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Filter struct {
	Column string
	Op     string
	Value  string
}

func (f Filter) String() string {
	return f.Op + "." + f.Value
}

func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Op: "eq", Value: formatValue(value)}
}

func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: "ilike", Value: pattern}
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Query is a read against one table of the REST surface.
type Query struct {
	Table   string
	Filters []Filter
	// Order entries are "column" or "column.desc".
	Order  []string
	Limit  int
	Offset int
}

func From(table string) *Query {
	return &Query{Table: table}
}

func (q *Query) Where(filters ...Filter) *Query {
	q.Filters = append(q.Filters, filters...)
	return q
}

func (q *Query) OrderBy(order ...string) *Query {
	q.Order = append(q.Order, order...)
	return q
}

func (q *Query) Page(limit, offset int) *Query {
	q.Limit = limit
	q.Offset = offset
	return q
}

func (q *Query) Values() url.Values {
	v := url.Values{}
	v.Set("select", "*")
	addFilters(v, q.Filters)
	if len(q.Order) > 0 {
		v.Set("order", strings.Join(q.Order, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation is a write against one table of the REST surface.
type Mutation struct {
	Table     string
	Kind      MutationKind
	Filters   []Filter
	Body      interface{}
	Returning bool
}

func Insert(table string, body interface{}) *Mutation {
	return &Mutation{Table: table, Kind: MutationInsert, Body: body, Returning: true}
}

func Update(table string, body interface{}, filters ...Filter) *Mutation {
	return &Mutation{Table: table, Kind: MutationUpdate, Body: body, Filters: filters, Returning: true}
}

func Delete(table string, filters ...Filter) *Mutation {
	return &Mutation{Table: table, Kind: MutationDelete, Filters: filters}
}

func (m *Mutation) Values() url.Values {
	v := url.Values{}
	addFilters(v, m.Filters)
	if m.Returning {
		v.Set("select", "*")
	}
	return v
}

func (m *Mutation) method() (string, error) {
	switch m.Kind {
	case MutationInsert:
		return "POST", nil
	case MutationUpdate:
		return "PATCH", nil
	case MutationDelete:
		return "DELETE", nil
	default:
		return "", fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}

func (m *Mutation) prefer() string {
	if m.Returning {
		return "return=representation"
	}
	return "return=minimal"
}

func addFilters(v url.Values, filters []Filter) {
	for _, f := range filters {
		v.Add(f.Column, f.String())
	}
}
