package quotation

import "github.com/shopspring/decimal"

// EntryKind tags the two variants of a quotation row.
type EntryKind string

const (
	KindLineItem EntryKind = "LINE_ITEM"
	KindCharge   EntryKind = "CHARGE"
)

// Entry is any row that contributes to a quotation total.
type Entry interface {
	Kind() EntryKind
	Price() decimal.Decimal
	Units() int64
	Rate() RateCode
	isEntry()
}

// LineItem is a priced product row. Quantity comes from the RFP request.
type LineItem struct {
	ProductRef string          `json:"product_ref,omitempty"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int64           `json:"quantity"`
	TaxRate    RateCode        `json:"tax_rate"`
}

func (LineItem) Kind() EntryKind          { return KindLineItem }
func (l LineItem) Price() decimal.Decimal { return l.UnitPrice }
func (l LineItem) Units() int64           { return l.Quantity }
func (l LineItem) Rate() RateCode         { return l.TaxRate }
func (LineItem) isEntry()                 {}

// Charge is an ad-hoc flat cost such as freight or installation.
type Charge struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   RateCode        `json:"tax_rate"`
}

func (Charge) Kind() EntryKind          { return KindCharge }
func (c Charge) Price() decimal.Decimal { return c.UnitPrice }
func (Charge) Units() int64             { return 1 }
func (c Charge) Rate() RateCode         { return c.TaxRate }
func (Charge) isEntry()                 {}

// Quotation is the typed aggregate of one vendor's priced response.
type Quotation struct {
	Items   []LineItem `json:"items"`
	Charges []Charge   `json:"charges"`
}

// Entries returns items followed by charges.
func (q Quotation) Entries() []Entry {
	out := make([]Entry, 0, len(q.Items)+len(q.Charges))
	for _, it := range q.Items {
		out = append(out, it)
	}
	for _, c := range q.Charges {
		out = append(out, c)
	}
	return out
}

// Clone returns a copy that shares no slices with q.
func (q Quotation) Clone() Quotation {
	out := Quotation{
		Items:   make([]LineItem, len(q.Items)),
		Charges: make([]Charge, len(q.Charges)),
	}
	copy(out.Items, q.Items)
	copy(out.Charges, q.Charges)
	return out
}
