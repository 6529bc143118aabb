package receipts

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/RecoveryLedger/app/repository"
)

const (
	StatusAll       = "all"
	StatusRecovered = "recovered"
	StatusPending   = "pending"

	DefaultPageSize = 50
	MaxPageSize     = 200
	MaxExportRows   = 5000

	// MaxPage keeps (page-1)*page_size within a signed 32-bit offset.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// ErrInvalidFilter is wrapped by every *FilterError.
var ErrInvalidFilter = errors.New("receipts: invalid filter")

// FilterError names the offending query parameter.
type FilterError struct {
	Field   string
	Message string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *FilterError) Unwrap() error {
	return ErrInvalidFilter
}

func invalid(field, format string, args ...any) error {
	return &FilterError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Params are the raw query parameters of a receipts request.
type Params struct {
	OrgID     string `query:"org_id" validate:"required,max=191"`
	Status    string `query:"status" validate:"omitempty,oneof=recovered pending all"`
	Search    string `query:"search" validate:"max=191"`
	From      string `query:"from"`
	To        string `query:"to"`
	Sort      string `query:"sort" validate:"omitempty,oneof=date amount"`
	Direction string `query:"direction" validate:"omitempty,oneof=asc desc"`
	Page      string `query:"page"`
	PageSize  string `query:"page_size"`
}

// Filter is a validated receipts filter.
type Filter struct {
	OrgID     string
	Status    string
	Search    string
	From      *time.Time
	To        *time.Time
	Sort      string
	Direction string
	Page      int
	PageSize  int
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// ParseFilter validates p. Unparsable dates and out-of-range paging are
// errors rather than silently ignored.
func ParseFilter(p Params) (Filter, error) {
	p.OrgID = strings.TrimSpace(p.OrgID)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	p.Sort = strings.ToLower(strings.TrimSpace(p.Sort))
	p.Direction = strings.ToLower(strings.TrimSpace(p.Direction))
	p.Search = strings.TrimSpace(p.Search)

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			switch fe.Tag() {
			case "required":
				return Filter{}, invalid(fe.Field(), "is required")
			case "oneof":
				return Filter{}, invalid(fe.Field(), "must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
			case "max":
				return Filter{}, invalid(fe.Field(), "must be at most %s characters", fe.Param())
			default:
				return Filter{}, invalid(fe.Field(), "failed %s validation", fe.Tag())
			}
		}
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	f := Filter{
		OrgID:     p.OrgID,
		Status:    p.Status,
		Search:    p.Search,
		Sort:      p.Sort,
		Direction: p.Direction,
		Page:      1,
		PageSize:  DefaultPageSize,
	}
	if f.Status == "" {
		f.Status = StatusAll
	}
	if f.Sort == "" {
		f.Sort = repository.SortByDate
	}
	if f.Direction == "" {
		f.Direction = repository.SortDesc
	}

	var err error
	if f.From, err = parseBound(p.From, false); err != nil {
		return Filter{}, invalid("from", "%v", err)
	}
	if f.To, err = parseBound(p.To, true); err != nil {
		return Filter{}, invalid("to", "%v", err)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return Filter{}, invalid("from", "must not be after to")
	}

	if s := strings.TrimSpace(p.Page); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil || n < 1 || n > MaxPage {
			return Filter{}, invalid("page", "must be an integer between 1 and %d", MaxPage)
		}
		f.Page = n
	}
	if s := strings.TrimSpace(p.PageSize); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil || n < 1 || n > MaxPageSize {
			return Filter{}, invalid("page_size", "must be an integer between 1 and %d", MaxPageSize)
		}
		f.PageSize = n
	}
	return f, nil
}

// parseBound accepts YYYY-MM-DD or RFC3339. A date-only upper bound covers
// the whole day.
func parseBound(raw string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%q is not a date (YYYY-MM-DD) or RFC3339 timestamp", raw)
	}
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

// Query converts the filter into a repository query for its page.
func (f Filter) Query() repository.ReceiptQuery {
	q := f.baseQuery()
	q.Offset = (f.Page - 1) * f.PageSize
	q.Limit = f.PageSize
	return q
}

// ExportQuery ignores paging and caps the result at limit rows.
func (f Filter) ExportQuery(limit int) repository.ReceiptQuery {
	q := f.baseQuery()
	q.Limit = limit
	return q
}

func (f Filter) baseQuery() repository.ReceiptQuery {
	q := repository.ReceiptQuery{
		OrgID:     f.OrgID,
		From:      f.From,
		To:        f.To,
		Search:    f.Search,
		Sort:      f.Sort,
		Direction: f.Direction,
	}
	switch f.Status {
	case StatusRecovered:
		v := true
		q.Recovered = &v
	case StatusPending:
		v := false
		q.Recovered = &v
	}
	return q
}
