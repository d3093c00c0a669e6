package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RFPStatus enum constants
const (
	RFPStatusDraft     = "DRAFT"
	RFPStatusSubmitted = "SUBMITTED"
	RFPStatusPOCreated = "PO_CREATED"
	RFPStatusPaid      = "PAID"
	RFPStatusCancelled = "CANCELLED"
)

// rfpTransitions lists the statuses reachable from each status.
var rfpTransitions = map[string][]string{
	RFPStatusDraft:     {RFPStatusSubmitted, RFPStatusCancelled},
	RFPStatusSubmitted: {RFPStatusPOCreated, RFPStatusCancelled},
	RFPStatusPOCreated: {RFPStatusPaid},
}

// CanTransitionRFP reports whether an RFP may move from one status to another.
func CanTransitionRFP(from, to string) bool {
	for _, next := range rfpTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RFP is a buyer's request for proposal listing the products and quantities required
type RFP struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"` // RFP-YYYYMMDD-00001
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	DueDate     *time.Time     `gorm:"type:date" json:"due_date"`
	Status      string         `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	CreatedBy   string         `gorm:"type:varchar(64)" json:"created_by"`
	Products    []RFPProduct   `gorm:"foreignKey:RFPID;constraint:OnDelete:CASCADE" json:"products"`
	Vendors     []RFPVendor    `gorm:"foreignKey:RFPID;constraint:OnDelete:CASCADE" json:"vendors"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// RFPProduct is one requested product line. Quantity is fixed once quotations are seeded.
type RFPProduct struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RFPID       uuid.UUID `gorm:"type:uuid;not null;index" json:"rfp_id"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Unit        string    `gorm:"type:varchar(20)" json:"unit"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

// RFPVendor records a vendor invited to quote on an RFP
type RFPVendor struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RFPID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rfp_vendor" json:"rfp_id"`
	VendorID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rfp_vendor" json:"vendor_id"`
	Vendor    *Vendor   `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	InvitedAt time.Time `json:"invited_at"`
}

// HasVendor reports whether vendorID has been invited.
func (r RFP) HasVendor(vendorID uuid.UUID) bool {
	for _, v := range r.Vendors {
		if v.VendorID == vendorID {
			return true
		}
	}
	return false
}
