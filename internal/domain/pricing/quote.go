package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteInput carries everything a price preview needs. No field is read from
// ambient configuration; callers thread their rate defaults in explicitly.
type QuoteInput struct {
	Start          time.Time
	End            time.Time
	DailyRate      decimal.Decimal
	Packages       []PackageSelection
	TaxRatePercent decimal.Decimal
}

// Breakdown is an itemized, non-binding price estimate.
type Breakdown struct {
	Days            int             `json:"days"`
	Hours           int64           `json:"hours"`
	DailyRate       decimal.Decimal `json:"daily_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	PackageCharges  decimal.Decimal `json:"package_charges"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
}

// Quote computes an estimate for a planned rental period. The same arithmetic
// runs authoritatively at completion against the actual period; this figure
// is advisory only.
func Quote(in QuoteInput) Breakdown {
	days := RentalDays(in.Start, in.End)
	hours := RentalHours(in.Start, in.End)
	discountPercent := MaxPackageDiscount(in.Packages)
	base := BaseRentalAmount(in.DailyRate, days, discountPercent)
	pkg := PackageCharges(in.Packages, days, hours)
	subtotal := base.Add(pkg)
	tax := TaxAmount(subtotal, in.TaxRatePercent)

	return Breakdown{
		Days:            days,
		Hours:           hours,
		DailyRate:       in.DailyRate,
		DiscountPercent: discountPercent,
		BaseAmount:      base,
		PackageCharges:  pkg,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		Total:           subtotal.Add(tax),
	}
}
