package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuotationStatus enum constants
const (
	QuotationDraft     = "DRAFT"     // seeded, never saved
	QuotationSubmitted = "SUBMITTED" // saved by the vendor or a manager
	QuotationAwarded   = "AWARDED"
	QuotationRejected  = "REJECTED"
)

// Quotation is one vendor's priced response to an RFP. Totals are the last values
// computed by the totals engine and are never edited directly.
type Quotation struct {
	ID              uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RFPID           uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_quotation_rfp_vendor" json:"rfp_id"`
	VendorID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_quotation_rfp_vendor;index" json:"vendor_id"`
	Vendor          *Vendor           `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	Status          string            `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	Items           []QuotationItem   `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items"`
	Charges         []QuotationCharge `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"charges"`
	TotalWithoutTax decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0" json:"total_without_tax"`
	TotalWithTax    decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0" json:"total_with_tax"`
	Note            string            `gorm:"type:text" json:"note"`
	SubmittedAt     *time.Time        `json:"submitted_at"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// QuotationItem is a priced line seeded from an RFP product
type QuotationItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	QuotationID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"quotation_id"`
	RFPProductID *uuid.UUID      `gorm:"type:uuid" json:"rfp_product_id"`
	Position     int             `gorm:"not null;default:0" json:"position"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity     int64           `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
	TaxRate      string          `gorm:"type:varchar(10);not null" json:"tax_rate"` // tier code or EXEMPT
}

// QuotationCharge is an ad-hoc flat cost (freight, installation) with quantity 1
type QuotationCharge struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	QuotationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"quotation_id"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
	TaxRate     string          `gorm:"type:varchar(10);not null" json:"tax_rate"`
}

// IsClosed reports whether the quotation has been decided and can no longer change.
func (q Quotation) IsClosed() bool {
	return q.Status == QuotationAwarded || q.Status == QuotationRejected
}
