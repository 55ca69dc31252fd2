/*
Package factory provides JSON to Go entitlement policy conversion.

PURPOSE:
  Converts a JSON tier table into an entitlement.Policy so HR can adjust
  the allotment schedule without code changes. The server loads it from
  ENTITLEMENT_POLICY_FILE; without one, entitlement.StatutoryPolicy applies.

JSON SCHEMA:
  {
    "name": "statutory",
    "partial_year": "statutory",
    "tiers": [
      {"after_months": 6,  "days": 3},
      {"after_months": 12, "days": 7},
      {"after_months": 24, "days": 10},
      {"after_months": 36, "days": 14},
      {"after_months": 60, "days": 15}
    ],
    "increment_after_years": 10,
    "yearly_increment": 1,
    "max_days": 30
  }

KEY FEATURES:
  - Day counts are decoded as decimals, never float64
  - Missing partial_year defaults to "statutory"
  - The result is validated with entitlement.Policy.Validate

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)
  policy, err := factory.LoadPolicy("./config/entitlement.json")

SEE ALSO:
  - entitlement/entitlement.go: Policy type definition
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/entitlement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of an entitlement policy.
type PolicyJSON struct {
	Name                string           `json:"name,omitempty"`
	PartialYear         string           `json:"partial_year,omitempty"`
	Tiers               []TenureTierJSON `json:"tiers"`
	IncrementAfterYears int              `json:"increment_after_years,omitempty"`
	YearlyIncrement     decimal.Decimal  `json:"yearly_increment"`
	MaxDays             decimal.Decimal  `json:"max_days"`
}

// TenureTierJSON grants Days once AfterMonths of service are complete.
type TenureTierJSON struct {
	AfterMonths int             `json:"after_months"`
	Days        decimal.Decimal `json:"days"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (entitlement.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return entitlement.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// LoadPolicy reads and parses a policy file.
func (f *PolicyFactory) LoadPolicy(path string) (entitlement.Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return entitlement.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return f.ParsePolicy(string(b))
}

// FromJSON converts PolicyJSON to entitlement.Policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (entitlement.Policy, error) {
	policy := entitlement.Policy{
		IncrementAfterYears: pj.IncrementAfterYears,
		YearlyIncrement:     pj.YearlyIncrement,
		MaxDays:             pj.MaxDays,
		PartialYear:         entitlement.PartialYearMode(pj.PartialYear),
	}
	if policy.PartialYear == "" {
		policy.PartialYear = entitlement.PartialYearStatutory
	}
	for _, t := range pj.Tiers {
		policy.Tiers = append(policy.Tiers, entitlement.Tier{AfterMonths: t.AfterMonths, Days: t.Days})
	}

	if err := policy.Validate(); err != nil {
		return entitlement.Policy{}, fmt.Errorf("invalid entitlement policy %q: %w", pj.Name, err)
	}
	return policy, nil
}

// ToJSON converts a Policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(name string, policy entitlement.Policy) PolicyJSON {
	pj := PolicyJSON{
		Name:                name,
		PartialYear:         string(policy.PartialYear),
		IncrementAfterYears: policy.IncrementAfterYears,
		YearlyIncrement:     policy.YearlyIncrement,
		MaxDays:             policy.MaxDays,
	}
	for _, t := range policy.Tiers {
		pj.Tiers = append(pj.Tiers, TenureTierJSON{AfterMonths: t.AfterMonths, Days: t.Days})
	}
	return pj
}
