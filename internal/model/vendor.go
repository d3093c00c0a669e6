package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddressType enum constants
const (
	AddressTypeBilling  = "BILLING"
	AddressTypeShipping = "SHIPPING"
)

// Vendor is a supplier company that can be invited to quote on RFPs
type Vendor struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	CompanyName   string          `gorm:"type:varchar(255)" json:"company_name"`
	TaxCode       string          `gorm:"type:varchar(50);index" json:"tax_code"` // GSTIN
	ContactPerson string          `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string          `gorm:"type:varchar(50)" json:"phone"`
	Email         string          `gorm:"type:varchar(255)" json:"email"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	Addresses     []VendorAddress `gorm:"foreignKey:VendorID;constraint:OnDelete:CASCADE" json:"addresses"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// VendorAddress is a billing or shipping address of a vendor
type VendorAddress struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VendorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"vendor_id"`
	AddressType string    `gorm:"type:varchar(20);not null" json:"address_type"` // BILLING, SHIPPING
	FullAddress string    `gorm:"type:text;not null" json:"full_address"`
	IsDefault   bool      `gorm:"default:false" json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BillingAddress returns the default billing address, falling back to the first one.
func (v Vendor) BillingAddress() string {
	first := ""
	for _, addr := range v.Addresses {
		if addr.AddressType != AddressTypeBilling {
			continue
		}
		if addr.IsDefault {
			return addr.FullAddress
		}
		if first == "" {
			first = addr.FullAddress
		}
	}
	return first
}
