package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate row")
	// ErrUnknownColumn is returned for filters or orderings on columns a table does not expose.
	ErrUnknownColumn = errors.New("unknown column")
)

type Filter struct {
	Column string
	Value  string
}

// ListOptions carries the eq filters, ordering and limit of a table read.
type ListOptions struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// selectBuilder numbers placeholders in order of appearance so the same
// statement runs on both sqlite3 and pgx.
type selectBuilder struct {
	columns string
	from    string
	where   []string
	args    []interface{}
	order   string
	limit   int
}

func newSelect(columns, from string) *selectBuilder {
	return &selectBuilder{columns: columns, from: from}
}

func (b *selectBuilder) placeholder(v interface{}) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *selectBuilder) eq(column string, v interface{}) *selectBuilder {
	b.where = append(b.where, column+" = "+b.placeholder(v))
	return b
}

// cond adds a raw condition whose single %s is replaced by the placeholder for v.
func (b *selectBuilder) cond(format string, v interface{}) *selectBuilder {
	b.where = append(b.where, fmt.Sprintf(format, b.placeholder(v)))
	return b
}

func (b *selectBuilder) apply(opts ListOptions, allowed map[string]bool, defaultOrder string) error {
	for _, f := range opts.Filters {
		if !allowed[f.Column] {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, f.Column)
		}
		b.eq(f.Column, f.Value)
	}
	b.order = defaultOrder
	if opts.OrderBy != "" {
		if !allowed[opts.OrderBy] {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, opts.OrderBy)
		}
		b.order = opts.OrderBy
		if opts.Desc {
			b.order += " DESC"
		} else {
			b.order += " ASC"
		}
	}
	if opts.Limit > 0 {
		b.limit = opts.Limit
	}
	return nil
}

func (b *selectBuilder) build() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.columns)
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if b.order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.order)
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	return sb.String(), b.args
}

// isUniqueViolation recognises unique constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func now() int64 {
	return time.Now().Unix()
}

type scanner interface {
	Scan(dest ...interface{}) error
}
