package store

import (
	"net/url"
	"strconv"
)

// Query narrows a table call. The zero value selects everything.
type Query struct {
	eq    [][2]string
	order string
	desc  bool
	limit int
}

func Q() *Query {
	return &Query{}
}

func (q *Query) Eq(column, value string) *Query {
	q.eq = append(q.eq, [2]string{column, value})
	return q
}

func (q *Query) Order(column string, desc bool) *Query {
	q.order, q.desc = column, desc
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// EqValue returns the value of the eq filter on column.
func (q *Query) EqValue(column string) (string, bool) {
	if q == nil {
		return "", false
	}
	for _, f := range q.eq {
		if f[0] == column {
			return f[1], true
		}
	}
	return "", false
}

func (q *Query) values() url.Values {
	v := url.Values{}
	if q == nil {
		return v
	}
	for _, f := range q.eq {
		v.Add(f[0], "eq."+f[1])
	}
	if q.order != "" {
		dir := "asc"
		if q.desc {
			dir = "desc"
		}
		v.Set("order", q.order+"."+dir)
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	return v
}
