package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus enum constants
const (
	PaymentUnpaid = "UNPAID"
	PaymentPaid   = "PAID"
)

// PurchaseOrder is issued from the awarded quotation of an RFP.
// Vendor fields are copied at issue time so later vendor edits do not rewrite the document.
type PurchaseOrder struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PONumber         string              `gorm:"type:varchar(30);uniqueIndex;not null" json:"po_number"` // PO-YYYYMMDD-00001
	RFPID            uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex" json:"rfp_id"`
	RFP              *RFP                `gorm:"foreignKey:RFPID" json:"rfp,omitempty"`
	QuotationID      uuid.UUID           `gorm:"type:uuid;not null;index" json:"quotation_id"`
	VendorID         uuid.UUID           `gorm:"type:uuid;not null;index" json:"vendor_id"`
	VendorName       string              `gorm:"type:varchar(255)" json:"vendor_name"`
	CompanyName      string              `gorm:"type:varchar(255)" json:"company_name"`
	TaxCode          string              `gorm:"type:varchar(50)" json:"tax_code"`
	BillingAddress   string              `gorm:"type:text" json:"billing_address"`
	Items            []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal         decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	TaxAmount        decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	TotalAmount      decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	PaymentStatus    string              `gorm:"type:varchar(20);not null;default:'UNPAID';index" json:"payment_status"`
	PaidAmount       decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"paid_amount"`
	PaymentReference string              `gorm:"type:varchar(100)" json:"payment_reference"`
	PaidAt           *time.Time          `json:"paid_at"`
	IssuedBy         string              `gorm:"type:varchar(64)" json:"issued_by"`
	Note             string              `gorm:"type:text" json:"note"`
	CreatedAt        time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// PurchaseOrderItem is a frozen copy of a quotation row with its computed amounts
type PurchaseOrderItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	Kind            string          `gorm:"type:varchar(20);not null" json:"kind"` // LINE_ITEM, CHARGE
	Position        int             `gorm:"not null;default:0" json:"position"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity        int64           `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	TaxRate         string          `gorm:"type:varchar(10);not null" json:"tax_rate"`
	TaxableAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"taxable_amount"`
	TotalWithTax    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_with_tax"`
}
