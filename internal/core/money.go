package core

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to 2 decimals, which is half-up for money amounts
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns num/den × 100 rounded to 2 decimals, or 0 when den is 0
func Percent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred).Round(2)
}

// Rate converts a percentage such as 15 to the multiplier 0.15
func Rate(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred)
}

// Day truncates t to midnight in loc
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// WeekStart returns the Monday of the ISO week containing day
func WeekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, day.Location())
}

// MonthStart returns the first day of the month containing day
func MonthStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
}

// PricingPolicy holds the tax and service rates applied to an order, as percentages
type PricingPolicy struct {
	TaxRate     decimal.Decimal
	ServiceRate decimal.Decimal
}

// DefaultPricing is 15% tax and 10% service charge
var DefaultPricing = PricingPolicy{
	TaxRate:     decimal.NewFromInt(15),
	ServiceRate: decimal.NewFromInt(10),
}

// For applies a restaurant's overrides to p
func (p PricingPolicy) For(r *Restaurant) PricingPolicy {
	if r == nil {
		return p
	}
	if r.TaxRate != nil {
		p.TaxRate = *r.TaxRate
	}
	if r.ServiceRate != nil {
		p.ServiceRate = *r.ServiceRate
	}
	return p
}

// WasteTiers maps waste cost to priority: below Low is low, below Medium is
// medium, below High is high, anything else is critical.
type WasteTiers struct {
	Low    decimal.Decimal
	Medium decimal.Decimal
	High   decimal.Decimal
}

// DefaultWasteTiers is {low: <20, medium: <50, high: <100, critical: else}
var DefaultWasteTiers = WasteTiers{
	Low:    decimal.NewFromInt(20),
	Medium: decimal.NewFromInt(50),
	High:   decimal.NewFromInt(100),
}

// PriorityFor classifies a waste cost
func (w WasteTiers) PriorityFor(cost decimal.Decimal) WastePriority {
	switch {
	case cost.LessThan(w.Low):
		return PriorityLow
	case cost.LessThan(w.Medium):
		return PriorityMedium
	case cost.LessThan(w.High):
		return PriorityHigh
	}
	return PriorityCritical
}
