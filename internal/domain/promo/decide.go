package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceTimeZone is the fixed timezone used for monthly promo bucketing.
// Eligibility must not depend on the host's locale, so the month boundary is
// always evaluated in Jakarta local time (WIB, UTC+7).
const ReferenceTimeZone = "Asia/Jakarta"

// MonthKey formats t as a YYYY-MM calendar-month bucket in the given location.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// Decision is the result of evaluating a single request against the store.
type Decision struct {
	// Amount is the final payable amount after the discount.
	Amount decimal.Decimal
	// Discount is the amount subtracted, never negative.
	Discount decimal.Decimal
	// Type records which promo applied.
	Type PromoType
	// Code is the normalized promo code, set only when Type is PromoCustom.
	Code string
	// MonthKey is the month bucket this decision was evaluated in. The
	// caller passes it back to RecordUsage so the stamp matches the check.
	MonthKey string
}

// Engine evaluates promo decisions. The clock and location are injectable so
// month bucketing and expiry checks are testable with fixed times.
type Engine struct {
	now func() time.Time
	loc *time.Location
}

// NewEngine returns an Engine pinned to the reference timezone. When the
// host has no tzdata for Asia/Jakarta it falls back to a fixed UTC+7 zone,
// which is equivalent: WIB has no daylight saving.
func NewEngine() *Engine {
	loc, err := time.LoadLocation(ReferenceTimeZone)
	if err != nil {
		loc = time.FixedZone("WIB", 7*60*60)
	}
	return &Engine{now: time.Now, loc: loc}
}

// WithClock returns a copy of the engine using the given clock. Test helper.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	return &Engine{now: now, loc: e.loc}
}

// Decide evaluates which promo (if any) applies to the proposed amount.
//
// A supplied promo code takes strict priority over the monthly promo and the
// two never stack: when a code is present, only the custom path is tried and
// its failures are returned as sentinel errors (see ReasonCode). When no
// code is supplied, the monthly promo applies if it is active, a device key
// is present, and the device has not consumed it in the current month
// bucket. Otherwise the fallback is a PromoNone decision with the amount
// unchanged; that path never fails.
//
// Decide never mutates the store. Consumption is recorded separately via
// RecordUsage once the surrounding operation has fully succeeded.
func (e *Engine) Decide(s *Store, amount decimal.Decimal, deviceKey, promoCode string) (*Decision, error) {
	now := e.now()
	monthKey := MonthKey(now, e.loc)
	dev := s.lookupDevice(deviceKey)

	if code := NormalizeCode(promoCode); code != "" {
		p, ok := s.Promos.Custom[code]
		if !ok || p == nil || !p.Active {
			return nil, ErrPromoNotFound
		}
		if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
			return nil, ErrPromoExpired
		}
		if deviceKey == "" {
			return nil, ErrDeviceRequired
		}
		if _, used := dev.CustomUsed[code]; used {
			return nil, ErrPromoAlreadyUsed
		}

		discount, finalAmount := Compute(amount, p.Percent, p.Fixed)
		return &Decision{
			Amount:   finalAmount,
			Discount: discount,
			Type:     PromoCustom,
			Code:     code,
			MonthKey: monthKey,
		}, nil
	}

	if m := s.Promos.Monthly; m != nil && m.Active && deviceKey != "" && dev.MonthlyKey != monthKey {
		discount, finalAmount := Compute(amount, m.Percent, m.Fixed)
		return &Decision{
			Amount:   finalAmount,
			Discount: discount,
			Type:     PromoMonthly,
			MonthKey: monthKey,
		}, nil
	}

	return &Decision{
		Amount:   amount,
		Discount: decimal.Zero,
		Type:     PromoNone,
		MonthKey: monthKey,
	}, nil
}
