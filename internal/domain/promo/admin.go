package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpsertCustomPromo fully replaces the configuration for the given code; no
// field from a prior configuration survives. The code is normalized first
// and must be non-empty. A nil expiresAt means the code never expires.
func (e *Engine) UpsertCustomPromo(s *Store, code string, percent, fixed decimal.Decimal, expiresAt *time.Time, active bool) (*CustomPromo, error) {
	c := NormalizeCode(code)
	if c == "" {
		return nil, ErrEmptyCode
	}

	p := &CustomPromo{
		Active:    active,
		Percent:   percent,
		Fixed:     fixed,
		ExpiresAt: expiresAt,
		UpdatedAt: e.now().UTC(),
	}
	s.Promos.Custom[c] = p
	return p, nil
}

// SetMonthlyPromo fully replaces the monthly promo singleton.
func (e *Engine) SetMonthlyPromo(s *Store, percent, fixed decimal.Decimal, active bool) *MonthlyPromo {
	m := &MonthlyPromo{
		Active:    active,
		Percent:   percent,
		Fixed:     fixed,
		UpdatedAt: e.now().UTC(),
	}
	s.Promos.Monthly = m
	return m
}
