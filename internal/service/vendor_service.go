package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
)

// --- Address DTO ---

type AddressPayload struct {
	AddressType string `json:"address_type"`
	FullAddress string `json:"full_address"`
	IsDefault   bool   `json:"is_default"`
}

type AddressResponse struct {
	ID          uuid.UUID `json:"id"`
	AddressType string    `json:"address_type"`
	FullAddress string    `json:"full_address"`
	IsDefault   bool      `json:"is_default"`
}

// --- Vendor DTOs ---

type CreateVendorRequest struct {
	Name          string           `json:"name" binding:"required"`
	CompanyName   string           `json:"company_name"`
	TaxCode       string           `json:"tax_code"`
	ContactPerson string           `json:"contact_person"`
	Phone         string           `json:"phone"`
	Email         string           `json:"email"`
	Addresses     []AddressPayload `json:"addresses"`
}

type UpdateVendorRequest struct {
	Name          *string           `json:"name"`
	CompanyName   *string           `json:"company_name"`
	TaxCode       *string           `json:"tax_code"`
	ContactPerson *string           `json:"contact_person"`
	Phone         *string           `json:"phone"`
	Email         *string           `json:"email"`
	IsActive      *bool             `json:"is_active"`
	Addresses     *[]AddressPayload `json:"addresses"` // nil = not sent, [] = clear all
}

type VendorResponse struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	CompanyName   string            `json:"company_name"`
	TaxCode       string            `json:"tax_code"`
	ContactPerson string            `json:"contact_person"`
	Phone         string            `json:"phone"`
	Email         string            `json:"email"`
	IsActive      bool              `json:"is_active"`
	Addresses     []AddressResponse `json:"addresses"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// --- Interface ---

type VendorService interface {
	CreateVendor(ctx context.Context, actor model.Actor, req CreateVendorRequest) (VendorResponse, error)
	UpdateVendor(ctx context.Context, actor model.Actor, id string, req UpdateVendorRequest) (VendorResponse, error)
	DeleteVendor(ctx context.Context, actor model.Actor, id string) error
	GetVendor(ctx context.Context, actor model.Actor, id string) (VendorResponse, error)
	GetVendors(ctx context.Context, filter repository.VendorListFilter) ([]VendorResponse, int64, error)
}

// --- Implementation ---

type vendorService struct {
	vendorRepo repository.VendorRepository
	txManager  repository.TransactionManager
	audit      AuditService
}

func NewVendorService(vendorRepo repository.VendorRepository, txManager repository.TransactionManager, audit AuditService) VendorService {
	return &vendorService{vendorRepo: vendorRepo, txManager: txManager, audit: audit}
}

var validAddressTypes = map[string]bool{
	model.AddressTypeBilling:  true,
	model.AddressTypeShipping: true,
}

func validateAddresses(addresses []AddressPayload) error {
	for i, addr := range addresses {
		if !validAddressTypes[addr.AddressType] {
			return validationErr("addresses[%d]: address_type must be one of: BILLING, SHIPPING", i)
		}
		if strings.TrimSpace(addr.FullAddress) == "" {
			return validationErr("addresses[%d]: full_address is required", i)
		}
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return validationErr("invalid email format")
	}
	return nil
}

func toAddressModels(vendorID uuid.UUID, payloads []AddressPayload) []model.VendorAddress {
	addresses := make([]model.VendorAddress, 0, len(payloads))
	for _, p := range payloads {
		addresses = append(addresses, model.VendorAddress{
			VendorID:    vendorID,
			AddressType: p.AddressType,
			FullAddress: strings.TrimSpace(p.FullAddress),
			IsDefault:   p.IsDefault,
		})
	}
	return addresses
}

func parseID(entity, id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, validationErr("invalid %s ID", entity)
	}
	return uid, nil
}

func (s *vendorService) CreateVendor(ctx context.Context, actor model.Actor, req CreateVendorRequest) (VendorResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return VendorResponse{}, validationErr("name is required")
	}
	if err := validateEmail(req.Email); err != nil {
		return VendorResponse{}, err
	}
	if err := validateAddresses(req.Addresses); err != nil {
		return VendorResponse{}, err
	}

	vendor := &model.Vendor{
		Name:          req.Name,
		CompanyName:   req.CompanyName,
		TaxCode:       strings.ToUpper(strings.TrimSpace(req.TaxCode)),
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		IsActive:      true,
		Addresses:     toAddressModels(uuid.Nil, req.Addresses),
	}

	if err := s.vendorRepo.Create(ctx, vendor); err != nil {
		return VendorResponse{}, fmt.Errorf("failed to create vendor: %w", err)
	}

	s.audit.Record(ctx, actor, model.ActionCreateVendor, vendor.ID.String(), vendor.Name, req)
	return toVendorResponse(*vendor), nil
}

func (s *vendorService) UpdateVendor(ctx context.Context, actor model.Actor, id string, req UpdateVendorRequest) (VendorResponse, error) {
	uid, err := parseID("vendor", id)
	if err != nil {
		return VendorResponse{}, err
	}

	vendor, err := s.vendorRepo.FindByID(ctx, uid)
	if err != nil {
		return VendorResponse{}, lookupErr("vendor", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return VendorResponse{}, validationErr("name cannot be empty")
		}
		vendor.Name = name
	}
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return VendorResponse{}, err
		}
		vendor.Email = *req.Email
	}
	if req.TaxCode != nil {
		vendor.TaxCode = strings.ToUpper(strings.TrimSpace(*req.TaxCode))
	}
	if req.CompanyName != nil {
		vendor.CompanyName = *req.CompanyName
	}
	if req.ContactPerson != nil {
		vendor.ContactPerson = *req.ContactPerson
	}
	if req.Phone != nil {
		vendor.Phone = *req.Phone
	}
	if req.IsActive != nil {
		vendor.IsActive = *req.IsActive
	}
	if req.Addresses != nil {
		if err := validateAddresses(*req.Addresses); err != nil {
			return VendorResponse{}, err
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.vendorRepo.Update(txCtx, vendor); err != nil {
			return fmt.Errorf("failed to update vendor: %w", err)
		}

		// Replace addresses if provided (delete-all + re-create)
		if req.Addresses != nil {
			if err := s.vendorRepo.DeleteAddressesByVendorID(txCtx, uid); err != nil {
				return fmt.Errorf("failed to delete old addresses: %w", err)
			}
			newAddrs := toAddressModels(uid, *req.Addresses)
			if err := s.vendorRepo.CreateAddresses(txCtx, newAddrs); err != nil {
				return fmt.Errorf("failed to create addresses: %w", err)
			}
			vendor.Addresses = newAddrs
		}
		return nil
	})
	if err != nil {
		return VendorResponse{}, err
	}

	s.audit.Record(ctx, actor, model.ActionUpdateVendor, vendor.ID.String(), vendor.Name, req)
	return toVendorResponse(*vendor), nil
}

func (s *vendorService) DeleteVendor(ctx context.Context, actor model.Actor, id string) error {
	uid, err := parseID("vendor", id)
	if err != nil {
		return err
	}
	if err := s.vendorRepo.Delete(ctx, uid); err != nil {
		return lookupErr("vendor", err)
	}
	s.audit.Record(ctx, actor, model.ActionDeleteVendor, uid.String(), "", nil)
	return nil
}

func (s *vendorService) GetVendor(ctx context.Context, actor model.Actor, id string) (VendorResponse, error) {
	uid, err := parseID("vendor", id)
	if err != nil {
		return VendorResponse{}, err
	}
	if !actor.CanActFor(uid) {
		return VendorResponse{}, fmt.Errorf("%w: vendors may only view their own profile", ErrForbidden)
	}
	vendor, err := s.vendorRepo.FindByID(ctx, uid)
	if err != nil {
		return VendorResponse{}, lookupErr("vendor", err)
	}
	return toVendorResponse(*vendor), nil
}

func (s *vendorService) GetVendors(ctx context.Context, filter repository.VendorListFilter) ([]VendorResponse, int64, error) {
	vendors, total, err := s.vendorRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch vendors: %w", err)
	}

	res := make([]VendorResponse, 0, len(vendors))
	for _, v := range vendors {
		res = append(res, toVendorResponse(v))
	}
	return res, total, nil
}

// --- Response mappers ---

func toVendorResponse(v model.Vendor) VendorResponse {
	addresses := make([]AddressResponse, 0, len(v.Addresses))
	for _, a := range v.Addresses {
		addresses = append(addresses, AddressResponse{
			ID:          a.ID,
			AddressType: a.AddressType,
			FullAddress: a.FullAddress,
			IsDefault:   a.IsDefault,
		})
	}

	return VendorResponse{
		ID:            v.ID,
		Name:          v.Name,
		CompanyName:   v.CompanyName,
		TaxCode:       v.TaxCode,
		ContactPerson: v.ContactPerson,
		Phone:         v.Phone,
		Email:         v.Email,
		IsActive:      v.IsActive,
		Addresses:     addresses,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}
