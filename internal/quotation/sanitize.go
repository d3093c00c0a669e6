package quotation

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Digit grouping accepted in typed amounts: 1,250,000.50 and 12,50,000.50.
var (
	thousandsGrouping = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)
	lakhGrouping      = regexp.MustCompile(`^[+-]?\d{1,2}(,\d{2})*,\d{3}(\.\d*)?$`)
)

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// SanitizePrice turns live-edit input into a non-negative amount. Anything that is not a
// finite, non-negative number (including partial input such as "abc" or "-") becomes zero,
// as does a string whose commas are not digit grouping ("1,5").
func SanitizePrice(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil, bool:
		return decimal.Zero
	case decimal.Decimal:
		return nonNegative(x)
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return nonNegative(*x)
	case decimal.NullDecimal:
		if !x.Valid {
			return decimal.Zero
		}
		return nonNegative(x.Decimal)
	case string:
		return parseAmount(x)
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return decimal.Zero
	}
	return fromFloat(f)
}

// SanitizeQuantity turns live-edit input into a non-negative whole number of units.
// Fractions are truncated; values beyond int64 become zero.
func SanitizeQuantity(v any) int64 {
	switch x := v.(type) {
	case int64:
		if x < 0 {
			return 0
		}
		return x
	case int:
		if x < 0 {
			return 0
		}
		return int64(x)
	}
	d := SanitizePrice(v)
	if d.GreaterThan(maxQuantity) {
		return 0
	}
	return d.IntPart()
}

func parseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !thousandsGrouping.MatchString(s) && !lakhGrouping.MatchString(s) {
			return decimal.Zero
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return nonNegative(d)
	}
	// "1." while the user is still typing
	if d, err := decimal.NewFromString(strings.TrimSuffix(s, ".")); err == nil {
		return nonNegative(d)
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return decimal.Zero
	}
	return fromFloat(f)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
