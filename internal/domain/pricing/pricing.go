// Package pricing holds the pure rental price arithmetic. Nothing in here
// touches persistence or clocks; every input is passed explicitly so the
// same functions serve both quote previews and authoritative recalculation
// at completion.
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingMode determines how a package's charge is derived.
type PricingMode string

const (
	ModeFlat   PricingMode = "flat"
	ModePerDay PricingMode = "per_day"
	ModeHourly PricingMode = "hourly"
)

// CustomCost is an itemized package cost. Required costs are always charged;
// optional ones only when the caller selects them.
type CustomCost struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Required bool            `json:"required"`
}

// PackageSelection is the snapshot of an add-on package taken when the
// booking selects it. Prices are nil when the package does not define them.
type PackageSelection struct {
	PackageID       uuid.UUID        `json:"package_id"`
	Name            string           `json:"name"`
	Mode            PricingMode      `json:"mode"`
	BasePrice       *decimal.Decimal `json:"base_price,omitempty"`
	PricePerDay     *decimal.Decimal `json:"price_per_day,omitempty"`
	PricePerHour    *decimal.Decimal `json:"price_per_hour,omitempty"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	CustomCosts     []CustomCost     `json:"custom_costs,omitempty"`
	SelectedCostIDs []uuid.UUID      `json:"selected_cost_ids,omitempty"`
}

// RentalDays counts billable days for a period: ceil(hours/24) with a floor
// of one day, so any positive duration up to 24h bills as a single day.
func RentalDays(start, end time.Time) int {
	if !end.After(start) {
		return 1
	}
	hours := end.Sub(start).Hours()
	days := int(hours / 24)
	if float64(days*24) < hours {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// RentalHours counts billable hours for a period, floored at 1.
func RentalHours(start, end time.Time) int64 {
	if !end.After(start) {
		return 1
	}
	d := end.Sub(start)
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}

// BaseRentalAmount is dailyRate × days less discountPercent. A non-positive
// discount leaves the amount untouched.
func BaseRentalAmount(dailyRate decimal.Decimal, days int, discountPercent decimal.Decimal) decimal.Decimal {
	amount := dailyRate.Mul(decimal.NewFromInt(int64(days)))
	if discountPercent.IsPositive() {
		discount := amount.Mul(discountPercent).Div(decimal.NewFromInt(100))
		amount = amount.Sub(discount)
	}
	return amount
}

// MaxPackageDiscount returns the single highest discount percentage among
// the selected packages. Discounts never stack.
func MaxPackageDiscount(packages []PackageSelection) decimal.Decimal {
	max := decimal.Zero
	for _, p := range packages {
		if p.DiscountPercent.GreaterThan(max) {
			max = p.DiscountPercent
		}
	}
	return max
}

// FreeMileageAllowance is the included distance for the rental: days × the
// per-day allowance.
func FreeMileageAllowance(days int, perDayAllowance int64) int64 {
	return int64(days) * perDayAllowance
}

// ExtraMileageCost charges ratePerUnit for every unit driven beyond the free
// allowance; zero when the total stays within it.
func ExtraMileageCost(totalMileage, freeAllowance int64, ratePerUnit decimal.Decimal) decimal.Decimal {
	extra := ExtraMileage(totalMileage, freeAllowance)
	if extra == 0 {
		return decimal.Zero
	}
	return ratePerUnit.Mul(decimal.NewFromInt(extra))
}

// ExtraMileage is max(0, totalMileage − freeAllowance).
func ExtraMileage(totalMileage, freeAllowance int64) int64 {
	extra := totalMileage - freeAllowance
	if extra < 0 {
		return 0
	}
	return extra
}

// PackageCharges totals the selected packages for the given rental length.
// Each package contributes its flat base price, pricePerDay × days, or an
// hour-based estimate, depending on its mode. A package with no price fields
// contributes zero (it may still carry a discount), and its custom costs are
// added per CustomCostsTotal.
func PackageCharges(packages []PackageSelection, days int, hours int64) decimal.Decimal {
	total := decimal.Zero
	for _, p := range packages {
		total = total.Add(packageCharge(p, days, hours))
		total = total.Add(CustomCostsTotal(p.CustomCosts, p.SelectedCostIDs))
	}
	return total
}

func packageCharge(p PackageSelection, days int, hours int64) decimal.Decimal {
	switch p.Mode {
	case ModeHourly:
		if p.PricePerHour != nil {
			return p.PricePerHour.Mul(decimal.NewFromInt(hours))
		}
	case ModePerDay:
		if p.PricePerDay != nil {
			return p.PricePerDay.Mul(decimal.NewFromInt(int64(days)))
		}
	}
	if p.BasePrice != nil {
		return *p.BasePrice
	}
	if p.PricePerDay != nil {
		return p.PricePerDay.Mul(decimal.NewFromInt(int64(days)))
	}
	return decimal.Zero
}

// CustomCostsTotal sums a package's custom costs: required ones always,
// optional ones only when their ID appears in selectedOptional.
func CustomCostsTotal(costs []CustomCost, selectedOptional []uuid.UUID) decimal.Decimal {
	selected := make(map[uuid.UUID]struct{}, len(selectedOptional))
	for _, id := range selectedOptional {
		selected[id] = struct{}{}
	}
	total := decimal.Zero
	for _, c := range costs {
		if c.Required {
			total = total.Add(c.Amount)
			continue
		}
		if _, ok := selected[c.ID]; ok {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// TaxAmount applies taxRatePercent to the post-discount subtotal; zero for a
// non-positive rate.
func TaxAmount(subtotalAfterDiscount decimal.Decimal, taxRatePercent decimal.Decimal) decimal.Decimal {
	if !taxRatePercent.IsPositive() {
		return decimal.Zero
	}
	return subtotalAfterDiscount.Mul(taxRatePercent).Div(decimal.NewFromInt(100))
}
