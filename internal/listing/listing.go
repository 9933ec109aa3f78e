// Package listing parses the query parameters shared by list endpoints.
package listing

import (
	"math"
	"strconv"
	"time"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/config"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

type Params struct {
	Page     int
	PageSize int
}

func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

// Apply adds LIMIT/OFFSET to q.
func (p Params) Apply(q *gorm.DB) *gorm.DB {
	return q.Offset(p.Offset()).Limit(p.PageSize)
}

// ParsePage reads page and page_size. Bad values fall back to the defaults;
// page_size is capped at the configured maximum and page so that Offset
// cannot overflow.
func ParsePage(c *fiber.Ctx, cfg *config.Config) Params {
	p := Params{Page: 1, PageSize: max(cfg.PageSize, 1)}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		p.PageSize = max(min(v, cfg.MaxPageSize), 1)
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = min(v, math.MaxInt/p.PageSize)
	}
	return p
}

// Window returns the bounds of the current page within n in-memory rows.
func (p Params) Window(n int) (from, to int) {
	from = min(max(p.Offset(), 0), n)
	to = min(from+p.PageSize, n)
	return from, to
}

// Range is a half-open time interval; a nil bound is unbounded.
type Range struct {
	From *time.Time
	To   *time.Time // exclusive upper bound (start of the day after end_date)
}

func (r Range) Apply(q *gorm.DB, column string) *gorm.DB {
	if r.From != nil {
		q = q.Where(column+" >= ?", *r.From)
	}
	if r.To != nil {
		q = q.Where(column+" < ?", *r.To)
	}
	return q
}

// ParseDateRange reads start_date and end_date (YYYY-MM-DD). The end date
// is inclusive.
func ParseDateRange(c *fiber.Ctx) (Range, error) {
	return ParseRange(c.Query("start_date"), c.Query("end_date"))
}

func ParseRange(start, end string) (Range, error) {
	var r Range
	if start != "" {
		t, err := time.ParseInLocation(DateLayout, start, time.Local)
		if err != nil {
			return r, apperr.Validation("invalid start_date, expected YYYY-MM-DD")
		}
		r.From = &t
	}
	if end != "" {
		t, err := time.ParseInLocation(DateLayout, end, time.Local)
		if err != nil {
			return r, apperr.Validation("invalid end_date, expected YYYY-MM-DD")
		}
		next := t.AddDate(0, 0, 1)
		r.To = &next
	}
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		return r, apperr.Validation("start_date must not be after end_date")
	}
	return r, nil
}

// Today is the range covering the current local day.
func Today() Range {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, 1)
	return Range{From: &from, To: &to}
}

// IncludeDeleted reports whether the caller asked for soft-deleted rows too.
func IncludeDeleted(c *fiber.Ctx) bool {
	return c.QueryBool("include_deleted", false)
}

type Page[T any] struct {
	Count    int64 `json:"count"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Results  []T   `json:"results"`
}

func NewPage[T any](p Params, count int64, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	return Page[T]{Count: count, Page: p.Page, PageSize: p.PageSize, Results: results}
}

// ParamID parses a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(v), nil
}
