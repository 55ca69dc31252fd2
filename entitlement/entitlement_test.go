package entitlement_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/generic"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func days(n float64) generic.Amount {
	return generic.NewAmount(n, generic.UnitDays)
}

// =============================================================================
// ALLOTMENT TABLE
// =============================================================================

func TestCalculateAnnualAllotment_FiveYears(t *testing.T) {
	// GIVEN: Hired 2019-01-01
	// WHEN: Asking as of 2024-06-01 (5 full years)
	// THEN: The five-year tier applies

	got := entitlement.CalculateAnnualAllotment(date(2019, 1, 1), date(2024, 6, 1))

	assert.True(t, got.Equal(days(15)), "got %s", got)
}

func TestCalculateAnnualAllotment_Table(t *testing.T) {
	hire := date(2020, 3, 15)
	tests := []struct {
		name string
		asOf time.Time
		want float64
	}{
		{"before hire", date(2020, 1, 1), 0},
		{"hire day", hire, 0},
		{"five months", date(2020, 8, 15), 0},
		{"day before six months", date(2020, 9, 14), 0},
		{"six months", date(2020, 9, 15), 3},
		{"eleven months", date(2021, 2, 20), 3},
		{"one year", date(2021, 3, 15), 7},
		{"two years", date(2022, 3, 15), 10},
		{"three years", date(2023, 3, 15), 14},
		{"four years", date(2024, 3, 15), 14},
		{"five years", date(2025, 3, 15), 15},
		{"nine years", date(2029, 3, 15), 15},
		{"ten years", date(2030, 3, 15), 16},
		{"eleven years", date(2031, 3, 15), 17},
		{"twenty four years", date(2044, 3, 15), 30},
		{"twenty five years", date(2045, 3, 15), 30},
		{"forty years", date(2060, 3, 15), 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entitlement.CalculateAnnualAllotment(hire, tt.asOf)
			assert.True(t, got.Equal(days(tt.want)), "want %v, got %s", tt.want, got)
			assert.Equal(t, generic.UnitDays, got.Unit)
		})
	}
}

func TestAllotment_MonotonicInTenure(t *testing.T) {
	// GIVEN: A fixed hire date and the statutory table
	// WHEN: Walking forward one week at a time for 35 years
	// THEN: The allotment never decreases

	policy := entitlement.StatutoryPolicy()
	hire := date(2000, 2, 29)
	prev := generic.Zero(generic.UnitDays)

	for asOf := hire.AddDate(0, 0, -30); asOf.Before(hire.AddDate(35, 0, 0)); asOf = asOf.AddDate(0, 0, 7) {
		got := policy.Allotment(hire, asOf)
		require.False(t, got.LessThan(prev), "allotment dropped at %s: %s < %s", asOf.Format(generic.DateLayout), got, prev)
		prev = got
	}
}

// =============================================================================
// PARTIAL YEAR MODES
// =============================================================================

func TestAllotment_PartialYearModes(t *testing.T) {
	hire := date(2024, 1, 10)
	nineMonths := date(2024, 10, 10)

	statutory := entitlement.StatutoryPolicy()

	none := entitlement.StatutoryPolicy()
	none.PartialYear = entitlement.PartialYearNone

	prorated := entitlement.StatutoryPolicy()
	prorated.PartialYear = entitlement.PartialYearProrated

	assert.True(t, statutory.Allotment(hire, nineMonths).Equal(days(3)))
	assert.True(t, none.Allotment(hire, nineMonths).Equal(days(0)))
	// 7 * 9 / 12 = 5.25
	assert.True(t, prorated.Allotment(hire, nineMonths).Equal(days(5.25)))

	// Modes agree from the first anniversary on.
	oneYear := date(2025, 1, 10)
	for _, p := range []entitlement.Policy{statutory, none, prorated} {
		assert.True(t, p.Allotment(hire, oneYear).Equal(days(7)))
	}
}

func TestAllotment_ProratedRoundsToTwoDecimals(t *testing.T) {
	// 7 * 1 / 12 = 0.58333...
	p := entitlement.StatutoryPolicy()
	p.PartialYear = entitlement.PartialYearProrated

	got := p.Allotment(date(2024, 1, 10), date(2024, 2, 10))

	assert.Equal(t, "0.58", got.Value.String())
}

// =============================================================================
// POLICY VALIDATION
// =============================================================================

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, entitlement.StatutoryPolicy().Validate())

	t.Run("empty table", func(t *testing.T) {
		err := entitlement.Policy{PartialYear: entitlement.PartialYearNone}.Validate()
		assert.ErrorIs(t, err, generic.ErrValidation)
	})

	t.Run("unsorted tiers", func(t *testing.T) {
		p := entitlement.StatutoryPolicy()
		p.Tiers[1], p.Tiers[2] = p.Tiers[2], p.Tiers[1]
		err := p.Validate()

		var verr generic.ValidationErrors
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.ToMap(), "tiers[2].after_months")
	})

	t.Run("negative days", func(t *testing.T) {
		p := entitlement.StatutoryPolicy()
		p.Tiers[0].Days = decimal.NewFromInt(-1)
		assert.ErrorIs(t, p.Validate(), generic.ErrValidation)
	})

	t.Run("unknown partial year mode", func(t *testing.T) {
		p := entitlement.StatutoryPolicy()
		p.PartialYear = "weekly"
		var verr generic.ValidationErrors
		require.ErrorAs(t, p.Validate(), &verr)
		assert.Contains(t, verr.ToMap(), "partial_year")
	})
}

// =============================================================================
// PERIOD RESOLUTION
// =============================================================================

func TestResolveCurrentPeriod(t *testing.T) {
	hire := date(2019, 3, 15)

	tests := []struct {
		name       string
		asOf       time.Time
		start, end time.Time
	}{
		{"before hire", date(2019, 1, 1), date(2019, 3, 15), date(2020, 3, 15)},
		{"first year", date(2019, 12, 31), date(2019, 3, 15), date(2020, 3, 15)},
		{"on anniversary", date(2024, 3, 15), date(2024, 3, 15), date(2025, 3, 15)},
		{"day before anniversary", date(2024, 3, 14), date(2023, 3, 15), date(2024, 3, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := entitlement.ResolveCurrentPeriod(hire, tt.asOf)
			assert.Equal(t, tt.start, p.Start)
			assert.Equal(t, tt.end, p.End)
		})
	}
}

func TestResolveCurrentPeriod_ContainsAsOfAndSpansOneYear(t *testing.T) {
	hire := date(2011, 7, 31)
	for asOf := hire; asOf.Before(date(2026, 1, 1)); asOf = asOf.AddDate(0, 0, 13) {
		p := entitlement.ResolveCurrentPeriod(hire, asOf)
		require.True(t, p.Contains(asOf), "%s not in %s", asOf.Format(generic.DateLayout), p)
		require.Equal(t, p.Start.AddDate(1, 0, 0), p.End)
	}
}

func TestResolveCurrentPeriod_LeapDayHire(t *testing.T) {
	// GIVEN: Hired on Feb 29
	// WHEN: Resolving periods in non-leap years
	// THEN: Anniversaries fall on Feb 28 and return to Feb 29 in leap years

	hire := date(2020, 2, 29)

	p := entitlement.ResolveCurrentPeriod(hire, date(2021, 6, 1))
	assert.Equal(t, date(2021, 2, 28), p.Start)
	assert.Equal(t, date(2022, 2, 28), p.End)

	p = entitlement.ResolveCurrentPeriod(hire, date(2024, 3, 1))
	assert.Equal(t, date(2024, 2, 29), p.Start)
	assert.Equal(t, date(2025, 2, 28), p.End)
}

// =============================================================================
// TENURE
// =============================================================================

func TestDescribeTenure(t *testing.T) {
	hire := date(2019, 1, 1)

	assert.Equal(t, "5 years 5 months", entitlement.DescribeTenure(hire, date(2024, 6, 1)))
	assert.Equal(t, "1 year", entitlement.DescribeTenure(hire, date(2020, 1, 1)))
	assert.Equal(t, "1 month", entitlement.DescribeTenure(hire, date(2019, 2, 1)))
	assert.Equal(t, "2 years 1 month", entitlement.DescribeTenure(hire, date(2021, 2, 15)))
	assert.Equal(t, "less than a month", entitlement.DescribeTenure(hire, date(2019, 1, 20)))
	assert.Equal(t, "less than a month", entitlement.DescribeTenure(hire, date(2018, 1, 20)))
}

func TestTenureAt_MonthEndHire(t *testing.T) {
	// Jan 31 + 1 month clamps to Feb 28.
	hire := date(2023, 1, 31)

	assert.Equal(t, entitlement.Tenure{}, entitlement.TenureAt(hire, date(2023, 2, 27)))
	assert.Equal(t, entitlement.Tenure{Months: 1}, entitlement.TenureAt(hire, date(2023, 2, 28)))
	assert.Equal(t, entitlement.Tenure{Months: 2}, entitlement.TenureAt(hire, date(2023, 3, 31)))
	assert.Equal(t, entitlement.Tenure{Months: 1}, entitlement.TenureAt(hire, date(2023, 3, 30)))
}
