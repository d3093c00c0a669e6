package quotation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// RateCode identifies a selectable tax rate: the percent as text ("18") or Exempt.
type RateCode string

// Exempt means no tax is applied. It is tracked separately from the 0% tier.
const Exempt RateCode = "EXEMPT"

// DefaultTierPercents are the GST slabs offered when no tiers are configured.
var DefaultTierPercents = []string{"0", "3", "5", "12", "18", "28"}

var hundred = decimal.NewFromInt(100)

// Tier is one selectable tax rate.
type Tier struct {
	Code    RateCode        `json:"code"`
	Percent decimal.Decimal `json:"percent"`
	Label   string          `json:"label"`
}

// IsExempt reports whether the tier is the exempt sentinel.
func (t Tier) IsExempt() bool {
	return t.Code == Exempt
}

// Effective returns the multiplier applied to a taxable amount (0.18 for 18%).
func (t Tier) Effective() decimal.Decimal {
	if t.IsExempt() {
		return decimal.Zero
	}
	return t.Percent.Div(hundred)
}

// RateTable is the immutable set of tiers an Engine accepts.
type RateTable struct {
	tiers  []Tier
	byCode map[RateCode]Tier
}

// NewRateTable builds a table from percent values. The exempt tier is always present.
func NewRateTable(percents ...decimal.Decimal) *RateTable {
	t := &RateTable{byCode: make(map[RateCode]Tier, len(percents)+1)}

	sorted := make([]decimal.Decimal, 0, len(percents))
	for _, p := range percents {
		if p.IsNegative() {
			continue
		}
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	for _, p := range sorted {
		code := RateCode(p.String())
		if _, dup := t.byCode[code]; dup {
			continue
		}
		tier := Tier{Code: code, Percent: p, Label: "GST " + p.String() + "%"}
		t.tiers = append(t.tiers, tier)
		t.byCode[code] = tier
	}

	exempt := Tier{Code: Exempt, Percent: decimal.Zero, Label: "Exempt"}
	t.tiers = append(t.tiers, exempt)
	t.byCode[Exempt] = exempt
	return t
}

// DefaultRates returns the table built from DefaultTierPercents.
func DefaultRates() *RateTable {
	t, _ := ParseTiers(strings.Join(DefaultTierPercents, ","))
	return t
}

// ParseTiers builds a table from a comma separated list such as "0,5,12,18,28".
// An empty list yields the default tiers.
func ParseTiers(csv string) (*RateTable, error) {
	if strings.TrimSpace(csv) == "" {
		csv = strings.Join(DefaultTierPercents, ",")
	}
	parts := strings.Split(csv, ",")
	percents := make([]decimal.Decimal, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSuffix(strings.TrimSpace(part), "%")
		if trimmed == "" || strings.EqualFold(trimmed, string(Exempt)) {
			continue
		}
		p, err := decimal.NewFromString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid tax tier %q: %w", part, err)
		}
		if p.IsNegative() || p.GreaterThan(hundred) {
			return nil, fmt.Errorf("tax tier %q out of range 0-100", part)
		}
		percents = append(percents, p)
	}
	return NewRateTable(percents...), nil
}

// Tiers returns the tiers in ascending percent order, exempt last.
func (t *RateTable) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Lookup finds the tier for a code after normalising it.
func (t *RateTable) Lookup(code RateCode) (Tier, bool) {
	tier, ok := t.byCode[NormalizeRate(code)]
	return tier, ok
}

// Valid reports whether code names a configured tier.
func (t *RateTable) Valid(code RateCode) bool {
	_, ok := t.Lookup(code)
	return ok
}

// Effective returns the multiplier for code. Unknown codes are out of range and yield zero.
func (t *RateTable) Effective(code RateCode) decimal.Decimal {
	tier, ok := t.Lookup(code)
	if !ok {
		return decimal.Zero
	}
	return tier.Effective()
}

// NormalizeRate canonicalises user input: "18%", " 18.0 ", 18 and "exempt" all map to a code.
func NormalizeRate(code RateCode) RateCode {
	s := strings.ToUpper(strings.TrimSpace(string(code)))
	s = strings.TrimSuffix(s, "%")
	if s == string(Exempt) {
		return Exempt
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return RateCode(d.String())
	}
	return RateCode(s)
}

// ParseRate converts raw input (JSON number or string) into a RateCode.
func ParseRate(v any) RateCode {
	if v == nil {
		return ""
	}
	if code, ok := v.(RateCode); ok {
		return NormalizeRate(code)
	}
	return NormalizeRate(RateCode(cast.ToString(v)))
}
