// Package promo implements the discount decision and usage tracking engine:
// device-scoped promo eligibility, a monthly default promo bucketed by
// calendar month in a fixed reference timezone, and admin-managed custom
// promo codes.
//
// Everything in this package is pure in-memory computation. Loading and
// persisting the Store, and serializing concurrent requests against it, are
// the caller's concern.
package promo

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PromoType identifies which promo (if any) a decision applied.
type PromoType string

const (
	// PromoNone means no discount applied; the amount passes through unchanged.
	PromoNone PromoType = "none"
	// PromoMonthly is the passive once-per-calendar-month default promo.
	PromoMonthly PromoType = "monthly"
	// PromoCustom is an opt-in promo code entered by the caller.
	PromoCustom PromoType = "custom"
)

// Sentinel errors for promo decisions. All are business-rule rejections the
// caller can surface to the user; see ReasonCode for the wire representation.
var (
	ErrPromoNotFound    = errors.New("promo code not found")
	ErrPromoExpired     = errors.New("promo code expired")
	ErrDeviceRequired   = errors.New("promo code requires a device identifier")
	ErrPromoAlreadyUsed = errors.New("promo code already used by this device")
	ErrEmptyCode        = errors.New("promo code required")
)

// ReasonCode maps a decision error to its stable wire reason string.
// Unknown errors map to "PROMO_REJECTED".
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrPromoNotFound):
		return "PROMO_NOT_FOUND"
	case errors.Is(err, ErrPromoExpired):
		return "PROMO_EXPIRED"
	case errors.Is(err, ErrDeviceRequired):
		return "DEVICE_REQUIRED"
	case errors.Is(err, ErrPromoAlreadyUsed):
		return "PROMO_ALREADY_USED"
	default:
		return "PROMO_REJECTED"
	}
}

// MonthlyPromo is the singleton default promo configuration. A nil
// *MonthlyPromo in the Store means "not configured yet" and is replaced by
// DefaultMonthlyPromo on EnsureShape.
type MonthlyPromo struct {
	Active    bool            `json:"active"`
	Percent   decimal.Decimal `json:"percent"`
	Fixed     decimal.Decimal `json:"fixed"`
	UpdatedAt time.Time       `json:"updatedAt,omitzero"`
}

// CustomPromo is an admin-managed promo code configuration. Expiry is
// enforced at decision time; expired configs are never auto-deleted.
type CustomPromo struct {
	Active    bool            `json:"active"`
	Percent   decimal.Decimal `json:"percent"`
	Fixed     decimal.Decimal `json:"fixed"`
	ExpiresAt *time.Time      `json:"expiresAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DeviceRecord tracks per-device promo consumption, keyed by DeviceKey.
// Records are created lazily on first use and never deleted.
type DeviceRecord struct {
	// MonthlyKey is the last month bucket (YYYY-MM, reference timezone) in
	// which this device consumed the monthly promo. Empty means never.
	MonthlyKey string `json:"monthlyKey,omitempty"`
	// CustomUsed maps a normalized promo code to its consumption time.
	CustomUsed map[string]time.Time `json:"customUsed"`
}

// Transaction is the immutable record of one provider-side QR creation.
type Transaction struct {
	DeviceKey      string          `json:"deviceKey"`
	DeviceID       string          `json:"deviceId,omitempty"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	Amount         decimal.Decimal `json:"amount"`
	Discount       decimal.Decimal `json:"discount"`
	PromoType      PromoType       `json:"promoType"`
	PromoCode      string          `json:"promoCode,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Promos groups the monthly singleton and the custom code catalog.
type Promos struct {
	Monthly *MonthlyPromo           `json:"monthly"`
	Custom  map[string]*CustomPromo `json:"custom"`
}

// Store is the complete persisted state of the engine. It is loaded once per
// request, mutated in memory, and written back by the storage collaborator.
type Store struct {
	Devices   map[string]*DeviceRecord `json:"devices"`
	Promos    Promos                   `json:"promos"`
	Tx        map[string]*Transaction  `json:"tx"`
	UpdatedAt time.Time                `json:"updatedAt,omitzero"`
}

// DefaultMonthlyPromo returns the monthly configuration that applies when
// none has ever been set: active, 10 percent, no fixed component.
func DefaultMonthlyPromo() *MonthlyPromo {
	return &MonthlyPromo{
		Active:  true,
		Percent: decimal.NewFromInt(10),
	}
}

// EnsureShape initializes any missing maps and the monthly promo singleton so
// the rest of the engine never has to nil-check collection fields. It is safe
// to call on a zero Store or on one decoded from a partial document.
func (s *Store) EnsureShape() *Store {
	if s.Devices == nil {
		s.Devices = make(map[string]*DeviceRecord)
	}
	if s.Promos.Monthly == nil {
		s.Promos.Monthly = DefaultMonthlyPromo()
	}
	if s.Promos.Custom == nil {
		s.Promos.Custom = make(map[string]*CustomPromo)
	}
	if s.Tx == nil {
		s.Tx = make(map[string]*Transaction)
	}
	return s
}

// Device returns the record for the given device key, creating an empty one
// in the store when absent. Callers that only need to read eligibility should
// use lookupDevice instead so failed decisions leave no trace.
func (s *Store) Device(key string) *DeviceRecord {
	dev, ok := s.Devices[key]
	if !ok {
		dev = &DeviceRecord{CustomUsed: make(map[string]time.Time)}
		s.Devices[key] = dev
	}
	if dev.CustomUsed == nil {
		dev.CustomUsed = make(map[string]time.Time)
	}
	return dev
}

// lookupDevice returns the stored record for key, or an empty detached record
// when the device has no history yet.
func (s *Store) lookupDevice(key string) *DeviceRecord {
	if dev, ok := s.Devices[key]; ok && dev != nil {
		if dev.CustomUsed == nil {
			dev.CustomUsed = make(map[string]time.Time)
		}
		return dev
	}
	return &DeviceRecord{CustomUsed: make(map[string]time.Time)}
}

// NormalizeCode canonicalizes a promo code: whitespace trimmed, uppercased.
// All lookups and usage records key on the normalized form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
