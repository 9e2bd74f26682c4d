package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidFilter = errors.New("invalid filter")

// TransactionFilter narrows a wallet's local transaction history.
type TransactionFilter struct {
	DateFrom    *time.Time
	DateTo      *time.Time // exclusive
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	Currency    string
	PaymentRail string
}

// FilterParams are the raw query values, as received.
type FilterParams struct {
	DateFrom, DateTo      string
	MinAmount, MaxAmount  string
	Currency, PaymentRail string
}

const dateOnly = "2006-01-02"

// ParseTransactionFilter validates query values. A date-only dateTo covers
// that whole day.
func ParseTransactionFilter(p FilterParams) (TransactionFilter, error) {
	var f TransactionFilter

	if p.DateFrom != "" {
		t, _, err := parseDateParam(p.DateFrom)
		if err != nil {
			return f, fmt.Errorf("%w: dateFrom: %v", ErrInvalidFilter, err)
		}
		f.DateFrom = &t
	}
	if p.DateTo != "" {
		t, dayOnly, err := parseDateParam(p.DateTo)
		if err != nil {
			return f, fmt.Errorf("%w: dateTo: %v", ErrInvalidFilter, err)
		}
		if dayOnly {
			t = t.AddDate(0, 0, 1)
		} else {
			t = t.Add(time.Nanosecond)
		}
		f.DateTo = &t
	}
	if f.DateFrom != nil && f.DateTo != nil && !f.DateFrom.Before(*f.DateTo) {
		return f, fmt.Errorf("%w: dateFrom must be before dateTo", ErrInvalidFilter)
	}

	if p.MinAmount != "" {
		d, err := decimal.NewFromString(p.MinAmount)
		if err != nil {
			return f, fmt.Errorf("%w: minAmount: %v", ErrInvalidFilter, err)
		}
		f.MinAmount = &d
	}
	if p.MaxAmount != "" {
		d, err := decimal.NewFromString(p.MaxAmount)
		if err != nil {
			return f, fmt.Errorf("%w: maxAmount: %v", ErrInvalidFilter, err)
		}
		f.MaxAmount = &d
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MinAmount.GreaterThan(*f.MaxAmount) {
		return f, fmt.Errorf("%w: minAmount is greater than maxAmount", ErrInvalidFilter)
	}

	f.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	f.PaymentRail = strings.ToLower(strings.TrimSpace(p.PaymentRail))
	return f, nil
}

func parseDateParam(v string) (time.Time, bool, error) {
	if t, err := time.Parse(dateOnly, v); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", v)
	}
	return t.UTC(), false, nil
}

// Apply adds the filter's conditions to a transactions query.
func (f TransactionFilter) Apply(db *gorm.DB) *gorm.DB {
	if f.DateFrom != nil {
		db = db.Where("provider_created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		db = db.Where("provider_created_at < ?", *f.DateTo)
	}
	// Amounts are stored as provider strings.
	if f.MinAmount != nil {
		db = db.Where("CAST(amount AS NUMERIC) >= ?", f.MinAmount.String())
	}
	if f.MaxAmount != nil {
		db = db.Where("CAST(amount AS NUMERIC) <= ?", f.MaxAmount.String())
	}
	if f.Currency != "" {
		db = db.Where("(LOWER(source_currency) = ? OR LOWER(destination_currency) = ?)", f.Currency, f.Currency)
	}
	if f.PaymentRail != "" {
		db = db.Where("(LOWER(source_payment_rail) = ? OR LOWER(destination_payment_rail) = ?)", f.PaymentRail, f.PaymentRail)
	}
	return db
}
