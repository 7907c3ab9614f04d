package promo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertCustomPromo(t *testing.T) {
	fixedNow := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	e := testEngine(fixedNow)

	t.Run("empty code is rejected", func(t *testing.T) {
		s := (&Store{}).EnsureShape()
		_, err := e.UpsertCustomPromo(s, "   ", decimal.NewFromInt(10), decimal.Zero, nil, true)
		require.ErrorIs(t, err, ErrEmptyCode)
		assert.Empty(t, s.Promos.Custom)
	})

	t.Run("code is normalized and stored", func(t *testing.T) {
		s := (&Store{}).EnsureShape()
		p, err := e.UpsertCustomPromo(s, " vip50 ", decimal.NewFromInt(50), decimal.Zero, nil, true)
		require.NoError(t, err)

		stored, ok := s.Promos.Custom["VIP50"]
		require.True(t, ok)
		assert.Same(t, p, stored)
		assert.True(t, stored.Active)
		assert.Equal(t, fixedNow, stored.UpdatedAt)
	})

	t.Run("upsert fully replaces the prior configuration", func(t *testing.T) {
		s := (&Store{}).EnsureShape()
		expiry := fixedNow.Add(24 * time.Hour)

		_, err := e.UpsertCustomPromo(s, "DEAL", decimal.NewFromInt(25), decimal.NewFromInt(500), &expiry, true)
		require.NoError(t, err)

		p, err := e.UpsertCustomPromo(s, "DEAL", decimal.NewFromInt(5), decimal.Zero, nil, false)
		require.NoError(t, err)

		// No field carries over from the first configuration.
		assert.False(t, p.Active)
		assert.True(t, decimal.NewFromInt(5).Equal(p.Percent))
		assert.True(t, p.Fixed.IsZero())
		assert.Nil(t, p.ExpiresAt)
	})
}

func TestSetMonthlyPromo(t *testing.T) {
	fixedNow := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	e := testEngine(fixedNow)

	s := (&Store{}).EnsureShape()
	m := e.SetMonthlyPromo(s, decimal.NewFromInt(15), decimal.NewFromInt(200), false)

	assert.Same(t, m, s.Promos.Monthly)
	assert.False(t, m.Active)
	assert.True(t, decimal.NewFromInt(15).Equal(m.Percent))
	assert.True(t, decimal.NewFromInt(200).Equal(m.Fixed))
	assert.Equal(t, fixedNow, m.UpdatedAt)
}

func TestEnsureShapeDefaults(t *testing.T) {
	s := (&Store{}).EnsureShape()

	require.NotNil(t, s.Promos.Monthly)
	assert.True(t, s.Promos.Monthly.Active)
	assert.True(t, decimal.NewFromInt(10).Equal(s.Promos.Monthly.Percent))
	assert.True(t, s.Promos.Monthly.Fixed.IsZero())
	assert.NotNil(t, s.Devices)
	assert.NotNil(t, s.Promos.Custom)
	assert.NotNil(t, s.Tx)

	// An already-configured monthly promo is left untouched.
	s.Promos.Monthly.Active = false
	s.EnsureShape()
	assert.False(t, s.Promos.Monthly.Active)
}

func TestRecordUsage(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	e := testEngine(fixedNow)

	t.Run("monthly stamps the bucket idempotently", func(t *testing.T) {
		s := (&Store{}).EnsureShape()
		e.RecordUsage(s, testDeviceKey, PromoMonthly, "", "2025-06")
		e.RecordUsage(s, testDeviceKey, PromoMonthly, "", "2025-06")
		assert.Equal(t, "2025-06", s.Device(testDeviceKey).MonthlyKey)
	})

	t.Run("custom stores the consumption time under the normalized code", func(t *testing.T) {
		s := (&Store{}).EnsureShape()
		e.RecordUsage(s, testDeviceKey, PromoCustom, " vip ", "2025-06")

		used, ok := s.Device(testDeviceKey).CustomUsed["VIP"]
		require.True(t, ok)
		assert.Equal(t, fixedNow, used)
	})

	t.Run("none is a no-op", func(t *testing.T) {
		s := (&Store{}).EnsureShape()
		e.RecordUsage(s, testDeviceKey, PromoNone, "", "2025-06")
		assert.Empty(t, s.Devices[testDeviceKey].MonthlyKey)
		assert.Empty(t, s.Devices[testDeviceKey].CustomUsed)
	})

	t.Run("no device key is a no-op", func(t *testing.T) {
		s := (&Store{}).EnsureShape()
		e.RecordUsage(s, "", PromoMonthly, "", "2025-06")
		assert.Empty(t, s.Devices)
	})
}
