package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/levpay/qris-promo/internal/domain/promo"
)

// Admin performs promo catalog management against the document store.
type Admin struct {
	store  DocumentStore
	engine *promo.Engine
	now    func() time.Time
}

// NewAdmin constructs the admin service.
func NewAdmin(store DocumentStore, engine *promo.Engine) *Admin {
	return &Admin{store: store, engine: engine, now: time.Now}
}

// UpsertCustomPromoInput carries an admin custom promo definition. Percent
// and Fixed default to zero when absent from the request; Active defaults to
// true unless explicitly false.
type UpsertCustomPromoInput struct {
	Code      string
	Percent   decimal.Decimal
	Fixed     decimal.Decimal
	ExpiresAt *time.Time
	Active    bool
}

// UpsertCustomPromo replaces the configuration for a custom code and
// persists the store.
func (a *Admin) UpsertCustomPromo(ctx context.Context, in UpsertCustomPromoInput) (*promo.CustomPromo, error) {
	store, token, err := a.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load store")
	}

	p, err := a.engine.UpsertCustomPromo(store, in.Code, in.Percent, in.Fixed, in.ExpiresAt, in.Active)
	if err != nil {
		return nil, err
	}
	store.UpdatedAt = a.now().UTC()

	msg := "admin upsert promo " + promo.NormalizeCode(in.Code)
	if _, err := a.store.Save(ctx, store, token, msg); err != nil {
		return nil, errors.Wrap(err, "save store")
	}
	return p, nil
}

// SetMonthlyPromoInput carries the monthly promo replacement.
type SetMonthlyPromoInput struct {
	Percent decimal.Decimal
	Fixed   decimal.Decimal
	Active  bool
}

// SetMonthlyPromo replaces the monthly promo singleton and persists the
// store.
func (a *Admin) SetMonthlyPromo(ctx context.Context, in SetMonthlyPromoInput) (*promo.MonthlyPromo, error) {
	store, token, err := a.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load store")
	}

	m := a.engine.SetMonthlyPromo(store, in.Percent, in.Fixed, in.Active)
	store.UpdatedAt = a.now().UTC()

	if _, err := a.store.Save(ctx, store, token, "admin set monthly promo"); err != nil {
		return nil, errors.Wrap(err, "save store")
	}
	return m, nil
}

// PromoCatalog is the admin view of the configured promos.
type PromoCatalog struct {
	Monthly *promo.MonthlyPromo
	Custom  map[string]*promo.CustomPromo
}

// ListPromos returns the current promo configuration.
func (a *Admin) ListPromos(ctx context.Context) (*PromoCatalog, error) {
	store, _, err := a.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load store")
	}
	return &PromoCatalog{
		Monthly: store.Promos.Monthly,
		Custom:  store.Promos.Custom,
	}, nil
}
