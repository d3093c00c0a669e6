package quotation

import "github.com/shopspring/decimal"

// DefaultEpsilon is the smallest total change, in currency units, treated as a real change.
var DefaultEpsilon = decimal.NewFromFloat(0.01)

// Amounts are the derived values of a single entry.
type Amounts struct {
	Taxable decimal.Decimal `json:"taxable_amount"`
	WithTax decimal.Decimal `json:"total_with_tax"`
}

// Tax is the tax portion of the entry.
func (a Amounts) Tax() decimal.Decimal {
	return a.WithTax.Sub(a.Taxable)
}

// Rounded returns the amounts at 2 decimal places for display.
func (a Amounts) Rounded() Amounts {
	return Amounts{Taxable: a.Taxable.Round(2), WithTax: a.WithTax.Round(2)}
}

// Total is the quotation-level sum of all entries.
type Total struct {
	WithoutTax decimal.Decimal `json:"without_tax"`
	WithTax    decimal.Decimal `json:"with_tax"`
}

// Tax is the tax portion of the total.
func (t Total) Tax() decimal.Decimal {
	return t.WithTax.Sub(t.WithoutTax)
}

// Rounded returns the total at 2 decimal places for display and storage.
func (t Total) Rounded() Total {
	return Total{WithoutTax: t.WithoutTax.Round(2), WithTax: t.WithTax.Round(2)}
}

// Differs reports whether t moved away from prev by more than epsilon on either figure.
// A non-positive epsilon falls back to DefaultEpsilon.
func (t Total) Differs(prev Total, epsilon decimal.Decimal) bool {
	if !epsilon.IsPositive() {
		epsilon = DefaultEpsilon
	}
	return t.WithoutTax.Sub(prev.WithoutTax).Abs().GreaterThan(epsilon) ||
		t.WithTax.Sub(prev.WithTax).Abs().GreaterThan(epsilon)
}

// Engine computes entry amounts and quotation totals against a RateTable.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	rates *RateTable
}

// NewEngine returns an engine over rates, or over DefaultRates when rates is nil.
func NewEngine(rates *RateTable) *Engine {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Engine{rates: rates}
}

// Rates exposes the table the engine was built with.
func (e *Engine) Rates() *RateTable {
	return e.rates
}

// LineAmounts computes taxable = unitPrice × quantity and withTax = taxable × (1 + rate).
// Negative inputs are treated as zero.
func (e *Engine) LineAmounts(unitPrice decimal.Decimal, quantity int64, rate RateCode) Amounts {
	price := nonNegative(unitPrice)
	if quantity < 0 {
		quantity = 0
	}
	taxable := price.Mul(decimal.NewFromInt(quantity))
	return Amounts{
		Taxable: taxable,
		WithTax: taxable.Mul(decimal.NewFromInt(1).Add(e.rates.Effective(rate))),
	}
}

// EntryAmounts computes the amounts of any entry. Charges count as one unit.
func (e *Engine) EntryAmounts(entry Entry) Amounts {
	return e.LineAmounts(entry.Price(), entry.Units(), entry.Rate())
}

// Sum recomputes the total over entries from scratch.
func (e *Engine) Sum(entries []Entry) Total {
	total := Total{WithoutTax: decimal.Zero, WithTax: decimal.Zero}
	for _, entry := range entries {
		a := e.EntryAmounts(entry)
		total.WithoutTax = total.WithoutTax.Add(a.Taxable)
		total.WithTax = total.WithTax.Add(a.WithTax)
	}
	return total
}

// Total computes the quotation total of items and charges. Either may be empty.
func (e *Engine) Total(items []LineItem, charges []Charge) Total {
	return e.Sum(Quotation{Items: items, Charges: charges}.Entries())
}

// QuotationTotal is Total over an aggregate.
func (e *Engine) QuotationTotal(q Quotation) Total {
	return e.Sum(q.Entries())
}

var defaultEngine = NewEngine(nil)

// ComputeLineAmounts uses the default tax tiers.
func ComputeLineAmounts(unitPrice decimal.Decimal, quantity int64, rate RateCode) Amounts {
	return defaultEngine.LineAmounts(unitPrice, quantity, rate)
}

// ComputeQuotationTotal uses the default tax tiers.
func ComputeQuotationTotal(items []LineItem, charges []Charge) Total {
	return defaultEngine.Total(items, charges)
}
