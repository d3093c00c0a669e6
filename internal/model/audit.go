package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateVendor = "CREATE_VENDOR"
	ActionUpdateVendor = "UPDATE_VENDOR"
	ActionDeleteVendor = "DELETE_VENDOR"

	ActionCreateRFP         = "CREATE_RFP"
	ActionUpdateRFP         = "UPDATE_RFP"
	ActionReplaceRFPProduct = "REPLACE_RFP_PRODUCTS"
	ActionInviteVendor      = "INVITE_VENDOR"
	ActionSubmitRFP         = "SUBMIT_RFP"
	ActionCancelRFP         = "CANCEL_RFP"

	ActionStartQuotation = "START_QUOTATION"
	ActionSaveQuotation  = "SAVE_QUOTATION"

	ActionCreatePurchaseOrder = "CREATE_PURCHASE_ORDER"
	ActionRecordPayment       = "RECORD_PAYMENT"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID    string    `gorm:"type:varchar(64);index" json:"actor_id"` // token subject, empty for system jobs
	ActorRole  string    `gorm:"type:varchar(20)" json:"actor_role"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string    `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
