/*
Package entitlement computes annual-leave allotments from tenure.

PURPOSE:
  Pure functions that turn a hire date and an "as of" date into:
  - the accrual period (anniversary year) containing "as of"
  - the number of annual-leave days earned for that tenure
  - a textual tenure description for display

  No I/O, no clock reads. Every function is deterministic for fixed inputs.

TENURE TIERS:
  Entitlement grows in discrete steps with completed service:

    After  6 months ............  3 days
    After  1 year  ............   7 days
    After  2 years ............  10 days
    After  3 years ............  14 days
    After  5 years ............  15 days
    From  10 years ............  +1 day per additional year, up to 30

PARTIAL YEARS:
  What an employee gets before the first anniversary depends on
  Policy.PartialYear:
  - statutory: the sub-year tiers of the table apply (3 days at 6 months)
  - none:      nothing until the first anniversary
  - prorated:  first-year days x completed months / 12

EXAMPLE:
  days := entitlement.CalculateAnnualAllotment(hire, asOf)
  period := entitlement.ResolveCurrentPeriod(hire, asOf)

SEE ALSO:
  - generic/period.go: Anniversary arithmetic
  - factory/policy.go: Loading a Policy from JSON
*/
package entitlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// POLICY
// =============================================================================

type PartialYearMode string

const (
	PartialYearStatutory PartialYearMode = "statutory"
	PartialYearNone      PartialYearMode = "none"
	PartialYearProrated  PartialYearMode = "prorated"
)

// Tier grants Days once AfterMonths of service are complete.
type Tier struct {
	AfterMonths int
	Days        decimal.Decimal
}

// Policy is the step table mapping tenure to annual days.
type Policy struct {
	Tiers []Tier

	// From IncrementAfterYears of service, each further completed year adds
	// YearlyIncrement on top of the last tier. Zero disables increments.
	IncrementAfterYears int
	YearlyIncrement     decimal.Decimal

	// MaxDays caps the allotment. Zero means uncapped.
	MaxDays decimal.Decimal

	PartialYear PartialYearMode
}

// StatutoryPolicy returns the default tier table.
func StatutoryPolicy() Policy {
	return Policy{
		Tiers: []Tier{
			{AfterMonths: 6, Days: decimal.NewFromInt(3)},
			{AfterMonths: 12, Days: decimal.NewFromInt(7)},
			{AfterMonths: 24, Days: decimal.NewFromInt(10)},
			{AfterMonths: 36, Days: decimal.NewFromInt(14)},
			{AfterMonths: 60, Days: decimal.NewFromInt(15)},
		},
		IncrementAfterYears: 10,
		YearlyIncrement:     decimal.NewFromInt(1),
		MaxDays:             decimal.NewFromInt(30),
		PartialYear:         PartialYearStatutory,
	}
}

// Validate checks that the table is usable and non-decreasing.
func (p Policy) Validate() error {
	var v generic.ValidationErrors
	if len(p.Tiers) == 0 {
		v = v.Add("tiers", "at least one tier is required")
	}
	for i, t := range p.Tiers {
		if t.AfterMonths < 0 {
			v = v.Add(fmt.Sprintf("tiers[%d].after_months", i), "must not be negative")
		}
		if t.Days.IsNegative() {
			v = v.Add(fmt.Sprintf("tiers[%d].days", i), "must not be negative")
		}
		if i > 0 {
			prev := p.Tiers[i-1]
			if t.AfterMonths <= prev.AfterMonths {
				v = v.Add(fmt.Sprintf("tiers[%d].after_months", i), "must be strictly increasing")
			}
			if t.Days.LessThan(prev.Days) {
				v = v.Add(fmt.Sprintf("tiers[%d].days", i), "must not decrease")
			}
		}
	}
	if p.YearlyIncrement.IsNegative() {
		v = v.Add("yearly_increment", "must not be negative")
	}
	if p.MaxDays.IsNegative() {
		v = v.Add("max_days", "must not be negative")
	}
	switch p.PartialYear {
	case PartialYearStatutory, PartialYearNone, PartialYearProrated:
	default:
		v = v.Add("partial_year", fmt.Sprintf("unknown mode %q", p.PartialYear))
	}
	return v.Err()
}

// =============================================================================
// ALLOTMENT
// =============================================================================

// Allotment returns the annual-leave days earned as of asOf.
func (p Policy) Allotment(hireDate, asOf time.Time) generic.Amount {
	months := completedMonths(hireDate, asOf)
	if months < 12 {
		return generic.NewAmountFromDecimal(p.partialYear(months), generic.UnitDays)
	}

	days := p.tierDays(months)
	if p.IncrementAfterYears > 0 && p.YearlyIncrement.IsPositive() {
		if extra := months/12 - p.IncrementAfterYears + 1; extra > 0 {
			days = days.Add(p.YearlyIncrement.Mul(decimal.NewFromInt(int64(extra))))
		}
	}
	if p.MaxDays.IsPositive() && days.GreaterThan(p.MaxDays) {
		days = p.MaxDays
	}
	return generic.NewAmountFromDecimal(days, generic.UnitDays)
}

func (p Policy) partialYear(months int) decimal.Decimal {
	switch p.PartialYear {
	case PartialYearNone:
		return decimal.Zero
	case PartialYearProrated:
		full := p.tierDays(12)
		return full.Mul(decimal.NewFromInt(int64(months))).Div(decimal.NewFromInt(12)).Round(2)
	default:
		return p.tierDays(months)
	}
}

// tierDays returns the days of the highest tier reached after months.
func (p Policy) tierDays(months int) decimal.Decimal {
	i := sort.Search(len(p.Tiers), func(i int) bool { return p.Tiers[i].AfterMonths > months })
	if i == 0 {
		return decimal.Zero
	}
	return p.Tiers[i-1].Days
}

// ResolvePeriod returns the anniversary year containing asOf.
func (p Policy) ResolvePeriod(hireDate, asOf time.Time) generic.Period {
	return generic.AnniversaryPeriod(hireDate, asOf)
}

// CalculateAnnualAllotment applies StatutoryPolicy.
func CalculateAnnualAllotment(hireDate, asOf time.Time) generic.Amount {
	return StatutoryPolicy().Allotment(hireDate, asOf)
}

// ResolveCurrentPeriod returns [periodStart, periodEnd) containing asOf.
func ResolveCurrentPeriod(hireDate, asOf time.Time) generic.Period {
	return generic.AnniversaryPeriod(hireDate, asOf)
}
