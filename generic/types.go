/*
Package generic provides the primitives shared by the leave engine packages.

PURPOSE:
  Domain-agnostic building blocks: decimal quantities with a unit, anniversary
  periods, and the error taxonomy every engine operation reports through.
  Nothing in here knows what a leave request or an approver is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 16 hours, 2 days)
  - HoursToDays: The fixed 8-hour working day conversion

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for hours and days
  2. Explicit units: an Amount always says what it counts

USAGE:
  hours := generic.NewAmount(16, generic.UnitHours)
  days := generic.HoursToDays(hours) // 2 days

SEE ALSO:
  - period.go: Anniversary periods
  - errors.go: Error taxonomy
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours Unit = "hours"
	UnitDays  Unit = "days"
)

// HoursPerDay is the length of a working day used to convert requested hours.
var HoursPerDay = decimal.NewFromInt(8)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func Zero(unit Unit) Amount { return Amount{Value: decimal.Zero, Unit: unit} }

// HoursToDays converts an hour amount into working days. Day amounts pass
// through unchanged.
func HoursToDays(a Amount) Amount {
	if a.Unit == UnitDays {
		return a
	}
	return Amount{Value: a.Value.Div(HoursPerDay), Unit: UnitDays}
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Round(places int32) Amount { return Amount{Value: a.Value.Round(places), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool       { return a.Unit == b.Unit && a.Value.Equal(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Value.String(), a.Unit)
}
