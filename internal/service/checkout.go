// Package service orchestrates the checkout and admin flows: it loads the
// persisted promo store, runs the pure decision engine, talks to the payment
// provider, and writes the mutated store back with its version token.
package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/levpay/qris-promo/internal/domain/promo"
	"github.com/levpay/qris-promo/internal/provider"
)

// DocumentStore loads and saves the promo store with optimistic version
// tokens. Implemented by githubstore.Client.
type DocumentStore interface {
	Load(ctx context.Context) (*promo.Store, string, error)
	Save(ctx context.Context, s *promo.Store, versionToken, message string) (string, error)
}

// QRCreator issues payment QRs. Implemented by provider.Client.
type QRCreator interface {
	CreateQR(ctx context.Context, amount decimal.Decimal, theme string) (*provider.CreateQRResponse, error)
}

// ErrInvalidAmount is returned when the proposed amount is below 1.
var ErrInvalidAmount = errors.New("amount invalid")

// Checkout runs the promo-discounted QR creation flow.
//
// The engine itself is pure and offers no concurrency control; Checkout
// provides the external serialization the engine's contract asks for by
// holding a per-device-key lock around the whole load+decide+record+save
// sequence. Requests without a device key have no usage to race on and skip
// the lock.
type Checkout struct {
	store     DocumentStore
	qr        QRCreator
	engine    *promo.Engine
	pepper    []byte
	locks     *keyedLocks
	now       func() time.Time
	decisions metric.Int64Counter
}

// NewCheckout constructs the checkout service. meter may be nil when
// telemetry is not wired (tests).
func NewCheckout(store DocumentStore, qr QRCreator, engine *promo.Engine, pepper []byte, meter metric.Meter) (*Checkout, error) {
	c := &Checkout{
		store:  store,
		qr:     qr,
		engine: engine,
		pepper: pepper,
		locks:  newKeyedLocks(),
		now:    time.Now,
	}
	if meter != nil {
		var err error
		c.decisions, err = meter.Int64Counter("promo.decisions",
			metric.WithDescription("Promo decisions by applied promo type"))
		if err != nil {
			return nil, errors.Wrap(err, "create decisions counter")
		}
	}
	return c, nil
}

// CreateQRInput is the checkout request.
type CreateQRInput struct {
	Amount    decimal.Decimal
	Theme     string
	DeviceID  string
	PromoCode string
}

// CreateQRResult is the checkout outcome returned to the HTTP layer.
type CreateQRResult struct {
	TransactionID  string
	PNGPath        string
	ProviderRaw    []byte
	OriginalAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	Discount       decimal.Decimal
	PromoType      promo.PromoType
	PromoCode      string
	MonthKey       string
}

// CreateQR applies the promo engine to the proposed amount, creates the QR
// at the provider for the discounted amount, and, once the provider has
// issued a transaction, records promo usage and the transaction before
// persisting the store.
//
// Promo rejections surface as the promo package's sentinel errors so the
// handler can map them to reason codes.
func (c *Checkout) CreateQR(ctx context.Context, in CreateQRInput) (*CreateQRResult, error) {
	if in.Amount.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidAmount
	}

	deviceKey := promo.DeviceKey(in.DeviceID, c.pepper)
	if deviceKey != "" {
		release, err := c.locks.Acquire(ctx, deviceKey)
		if err != nil {
			return nil, errors.Wrap(err, "acquire device lock")
		}
		defer release()
	}

	store, token, err := c.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load store")
	}

	decision, err := c.engine.Decide(store, in.Amount, deviceKey, in.PromoCode)
	if err != nil {
		return nil, err
	}
	c.countDecision(ctx, decision.Type)

	created, err := c.qr.CreateQR(ctx, decision.Amount, in.Theme)
	if err != nil {
		return nil, errors.Wrap(err, "provider createqr")
	}

	result := &CreateQRResult{
		TransactionID:  created.TransactionID(),
		PNGPath:        created.PNGPath(),
		ProviderRaw:    created.Raw,
		OriginalAmount: in.Amount,
		FinalAmount:    decision.Amount,
		Discount:       decision.Discount,
		PromoType:      decision.Type,
		PromoCode:      decision.Code,
		MonthKey:       decision.MonthKey,
	}

	// Without a transaction id there is nothing to record: the promo stays
	// unconsumed and the store untouched.
	if result.TransactionID == "" {
		return result, nil
	}

	c.engine.RecordUsage(store, deviceKey, decision.Type, decision.Code, decision.MonthKey)

	now := c.now().UTC()
	store.Tx[result.TransactionID] = &promo.Transaction{
		DeviceKey:      deviceKey,
		DeviceID:       in.DeviceID,
		OriginalAmount: in.Amount,
		Amount:         decision.Amount,
		Discount:       decision.Discount,
		PromoType:      decision.Type,
		PromoCode:      decision.Code,
		CreatedAt:      now,
	}
	store.UpdatedAt = now

	if _, err := c.store.Save(ctx, store, token, "tx "+result.TransactionID); err != nil {
		return nil, errors.Wrap(err, "save store")
	}

	return result, nil
}

func (c *Checkout) countDecision(ctx context.Context, t promo.PromoType) {
	if c.decisions == nil {
		return
	}
	c.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("promo.type", string(t)),
	))
}
