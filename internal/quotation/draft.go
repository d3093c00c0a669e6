package quotation

import "github.com/shopspring/decimal"

// RequestedProduct is the part of an RFP product a quotation is seeded from.
type RequestedProduct struct {
	Ref      string
	Name     string
	Quantity int64
}

// Draft is a quotation being edited together with its last computed total.
// A Draft belongs to one editor; it is not safe for concurrent use.
type Draft struct {
	engine    *Engine
	epsilon   decimal.Decimal
	quotation Quotation
	total     Total
}

// NewDraft wraps q and computes its total.
func NewDraft(engine *Engine, q Quotation, epsilon decimal.Decimal) *Draft {
	if engine == nil {
		engine = defaultEngine
	}
	if !epsilon.IsPositive() {
		epsilon = DefaultEpsilon
	}
	d := &Draft{engine: engine, epsilon: epsilon, quotation: q.Clone()}
	d.total = engine.QuotationTotal(d.quotation)
	return d
}

// Seed starts a quotation from requested products: one line per product, price 0,
// quantity taken from the request. Charges start empty.
func Seed(engine *Engine, products []RequestedProduct, defaultRate RateCode, epsilon decimal.Decimal) *Draft {
	return NewDraft(engine, Quotation{Items: seedItems(products, defaultRate), Charges: []Charge{}}, epsilon)
}

func seedItems(products []RequestedProduct, rate RateCode) []LineItem {
	items := make([]LineItem, 0, len(products))
	for _, p := range products {
		qty := p.Quantity
		if qty < 0 {
			qty = 0
		}
		items = append(items, LineItem{
			ProductRef: p.Ref,
			Name:       p.Name,
			UnitPrice:  decimal.Zero,
			Quantity:   qty,
			TaxRate:    rate,
		})
	}
	return items
}

// Quotation returns a copy of the current rows.
func (d *Draft) Quotation() Quotation {
	return d.quotation.Clone()
}

// Total returns the last computed total.
func (d *Draft) Total() Total {
	return d.total
}

// Update replaces the rows, recomputes the total in full and reports whether it moved
// by more than the draft's epsilon.
func (d *Draft) Update(q Quotation) (Total, bool) {
	d.quotation = q.Clone()
	return d.recompute()
}

// Edit applies fn to the rows and recomputes.
func (d *Draft) Edit(fn func(q *Quotation)) (Total, bool) {
	fn(&d.quotation)
	return d.recompute()
}

// Reseed discards every line item and rebuilds them from products. Charges are kept.
func (d *Draft) Reseed(products []RequestedProduct, defaultRate RateCode) (Total, bool) {
	d.quotation.Items = seedItems(products, defaultRate)
	return d.recompute()
}

func (d *Draft) recompute() (Total, bool) {
	prev := d.total
	d.total = d.engine.QuotationTotal(d.quotation)
	return d.total, d.total.Differs(prev, d.epsilon)
}
