package service

import (
	"procurement/internal/model"
	"procurement/internal/quotation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pricing bundles the shared totals engine with the settings applied around it.
type Pricing struct {
	Engine      *quotation.Engine
	Epsilon     decimal.Decimal
	DefaultRate quotation.RateCode
}

// NewPricing returns pricing settings for engine. A default rate that is not a configured
// tier falls back to the first tier.
func NewPricing(engine *quotation.Engine, defaultRate string, epsilon decimal.Decimal) Pricing {
	if engine == nil {
		engine = quotation.NewEngine(nil)
	}
	if !epsilon.IsPositive() {
		epsilon = quotation.DefaultEpsilon
	}
	rate := quotation.ParseRate(defaultRate)
	if !engine.Rates().Valid(rate) {
		rate = engine.Rates().Tiers()[0].Code
	}
	return Pricing{Engine: engine, Epsilon: epsilon, DefaultRate: rate}
}

// priceScale matches the decimal(18,4) unit price columns.
const priceScale = 4

// unitPrice sanitizes a typed price and rounds it the way the column stores it, so the
// total saved with a quotation equals the total recomputed from its stored rows.
func unitPrice(v any) decimal.Decimal {
	return quotation.SanitizePrice(v).Round(priceScale)
}

// TotalResponse is a quotation total rounded for presentation
type TotalResponse struct {
	WithoutTax string `json:"without_tax"`
	Tax        string `json:"tax"`
	WithTax    string `json:"with_tax"`
}

func toTotalResponse(t quotation.Total) TotalResponse {
	return TotalResponse{
		WithoutTax: t.WithoutTax.StringFixed(2),
		Tax:        t.Tax().StringFixed(2),
		WithTax:    t.WithTax.StringFixed(2),
	}
}

// toEngineQuotation converts persisted rows into engine rows, keeping their order.
func toEngineQuotation(q model.Quotation) quotation.Quotation {
	out := quotation.Quotation{
		Items:   make([]quotation.LineItem, 0, len(q.Items)),
		Charges: make([]quotation.Charge, 0, len(q.Charges)),
	}
	for _, it := range q.Items {
		ref := ""
		if it.RFPProductID != nil {
			ref = it.RFPProductID.String()
		}
		out.Items = append(out.Items, quotation.LineItem{
			ProductRef: ref,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			TaxRate:    quotation.RateCode(it.TaxRate),
		})
	}
	for _, ch := range q.Charges {
		out.Charges = append(out.Charges, quotation.Charge{
			Name:      ch.Name,
			UnitPrice: ch.UnitPrice,
			TaxRate:   quotation.RateCode(ch.TaxRate),
		})
	}
	return out
}

// applyEngineQuotation writes engine rows and the rounded total back onto the model.
func applyEngineQuotation(dst *model.Quotation, q quotation.Quotation, total quotation.Total) {
	items := make([]model.QuotationItem, 0, len(q.Items))
	for _, it := range q.Items {
		row := model.QuotationItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxRate:   string(it.TaxRate),
		}
		if id, err := uuid.Parse(it.ProductRef); err == nil {
			row.RFPProductID = &id
		}
		items = append(items, row)
	}
	charges := make([]model.QuotationCharge, 0, len(q.Charges))
	for _, ch := range q.Charges {
		charges = append(charges, model.QuotationCharge{
			Name:      ch.Name,
			UnitPrice: ch.UnitPrice,
			TaxRate:   string(ch.TaxRate),
		})
	}

	rounded := total.Rounded()
	dst.Items = items
	dst.Charges = charges
	dst.TotalWithoutTax = rounded.WithoutTax
	dst.TotalWithTax = rounded.WithTax
}

func requestedProducts(products []model.RFPProduct) []quotation.RequestedProduct {
	out := make([]quotation.RequestedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, quotation.RequestedProduct{
			Ref:      p.ID.String(),
			Name:     p.Name,
			Quantity: p.Quantity,
		})
	}
	return out
}
