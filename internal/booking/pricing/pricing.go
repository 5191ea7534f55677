package pricing

// Rates are expressed in basis points (1/100 of a percent).
const (
	DefaultTaxBps               = 800
	DefaultPlatformFeeBps       = 2000
	DefaultCaptureMultiplierBps = 12500
)

// Breakdown is the booking-time price split. All amounts are cents.
type Breakdown struct {
	SubtotalCents       int64 `json:"subtotal_cents"`
	TaxCents            int64 `json:"tax_cents"`
	TotalCents          int64 `json:"total_cents"`
	PlatformFeeCents    int64 `json:"platform_fee_cents"`
	MechanicPayoutCents int64 `json:"mechanic_payout_cents"`
}

// Rates configures the calculator.
type Rates struct {
	TaxBps               int64
	PlatformFeeBps       int64
	CaptureMultiplierBps int64
}

// DefaultRates returns 8% tax, 20% platform fee and a 1.25 capture multiplier.
func DefaultRates() Rates {
	return Rates{
		TaxBps:               DefaultTaxBps,
		PlatformFeeBps:       DefaultPlatformFeeBps,
		CaptureMultiplierBps: DefaultCaptureMultiplierBps,
	}
}

// Calculate builds the breakdown for the selected service prices.
// The payout is derived by subtraction so payout + fee always equals the subtotal.
func (r Rates) Calculate(prices []int64) Breakdown {
	var subtotal int64
	for _, p := range prices {
		if p > 0 {
			subtotal += p
		}
	}
	tax := applyBps(subtotal, r.TaxBps)
	fee := applyBps(subtotal, r.PlatformFeeBps)
	return Breakdown{
		SubtotalCents:       subtotal,
		TaxCents:            tax,
		TotalCents:          subtotal + tax,
		PlatformFeeCents:    fee,
		MechanicPayoutCents: subtotal - fee,
	}
}

// CompletionFee is the platform share of the labor payout shown in the completion summary.
// It is computed independently of the booking-time fee.
func (r Rates) CompletionFee(payoutCents int64) int64 {
	return applyBps(payoutCents, r.PlatformFeeBps)
}

// CaptureAmount is the card amount captured on completion: (payout + parts) x multiplier.
func (r Rates) CaptureAmount(payoutCents, partsCents int64) int64 {
	if partsCents < 0 {
		partsCents = 0
	}
	return applyBps(payoutCents+partsCents, r.CaptureMultiplierBps)
}

// applyBps multiplies by bps/10000 rounding half up.
func applyBps(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + 5000) / 10000
}
