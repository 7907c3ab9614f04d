package promo

// RecordUsage marks a decided promo as consumed for the given device.
//
// For PromoMonthly the device's month bucket is stamped to the decision's
// monthKey; re-stamping the same bucket is harmless. For PromoCustom the
// engine's clock time is stored under the normalized code. Nothing stops a
// second call from overwriting that timestamp, so callers must invoke this
// exactly once per successful transaction. With no device key, or for
// PromoNone, this is a no-op.
func (e *Engine) RecordUsage(s *Store, deviceKey string, promoType PromoType, promoCode, monthKey string) {
	if deviceKey == "" {
		return
	}

	dev := s.Device(deviceKey)

	switch promoType {
	case PromoMonthly:
		dev.MonthlyKey = monthKey
	case PromoCustom:
		if code := NormalizeCode(promoCode); code != "" {
			dev.CustomUsed[code] = e.now().UTC()
		}
	}
}
