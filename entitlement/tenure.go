package entitlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-engine/generic"
)

// Tenure is completed service between a hire date and a reference date.
type Tenure struct {
	Years  int
	Months int // 0-11, on top of Years
}

// TenureAt measures completed years and months. A reference date before the
// hire date is zero tenure.
func TenureAt(hireDate, asOf time.Time) Tenure {
	m := completedMonths(hireDate, asOf)
	return Tenure{Years: m / 12, Months: m % 12}
}

// String renders "5 years 5 months", "1 year", "less than a month".
func (t Tenure) String() string {
	if t.Years == 0 && t.Months == 0 {
		return "less than a month"
	}
	var parts []string
	if t.Years > 0 {
		parts = append(parts, plural(t.Years, "year"))
	}
	if t.Months > 0 {
		parts = append(parts, plural(t.Months, "month"))
	}
	return strings.Join(parts, " ")
}

// DescribeTenure is the textual tenure shown next to an entitlement.
func DescribeTenure(hireDate, asOf time.Time) string {
	return TenureAt(hireDate, asOf).String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// completedMonths counts month-anniversaries of hireDate that are <= asOf.
func completedMonths(hireDate, asOf time.Time) int {
	if !asOf.After(hireDate) {
		return 0
	}
	// Estimate from calendar fields, then correct by at most one.
	hy, hm, _ := hireDate.Date()
	ay, am, _ := asOf.Date()
	n := (ay-hy)*12 + int(am-hm)
	for n > 0 && generic.AddMonths(hireDate, n).After(asOf) {
		n--
	}
	for !generic.AddMonths(hireDate, n+1).After(asOf) {
		n++
	}
	return n
}
