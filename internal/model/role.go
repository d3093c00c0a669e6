package model

import "github.com/google/uuid"

// Roles carried in the bearer token's "role" claim
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleVendor  = "vendor"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID       string     // token subject
	Role     string     // admin, manager, vendor
	VendorID *uuid.UUID // set only for vendor users
}

// IsVendor reports whether the actor acts on behalf of a vendor company.
func (a Actor) IsVendor() bool {
	return a.Role == RoleVendor
}

// CanActFor reports whether the actor may read or write data owned by vendorID.
// Buyers (admin, manager) may act for every vendor.
func (a Actor) CanActFor(vendorID uuid.UUID) bool {
	if !a.IsVendor() {
		return true
	}
	return a.VendorID != nil && *a.VendorID == vendorID
}
