package service

import (
	"context"
	"testing"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVendor(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	v, err := h.vendors.CreateVendor(ctx, admin, CreateVendorRequest{
		Name:        "  Acme  ",
		CompanyName: "Acme Pvt Ltd",
		TaxCode:     " 27aaacr5055k1zq ",
		Email:       "sales@acme.example",
		Addresses: []AddressPayload{
			{AddressType: model.AddressTypeBilling, FullAddress: " Plot 4, Pune ", IsDefault: true},
			{AddressType: model.AddressTypeShipping, FullAddress: "Dock 2, Mumbai"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", v.Name)
	assert.Equal(t, "27AAACR5055K1ZQ", v.TaxCode)
	assert.True(t, v.IsActive)
	require.Len(t, v.Addresses, 2)
	assert.Equal(t, "Plot 4, Pune", v.Addresses[0].FullAddress)
	assert.Equal(t, "Plot 4, Pune", h.store.vendors[v.ID].BillingAddress())
	assert.Equal(t, []string{model.ActionCreateVendor}, h.store.auditActions())

	tests := []struct {
		name string
		req  CreateVendorRequest
	}{
		{"blank name", CreateVendorRequest{Name: " "}},
		{"bad email", CreateVendorRequest{Name: "Globex", Email: "not-an-email"}},
		{"unknown address type", CreateVendorRequest{Name: "Globex", Addresses: []AddressPayload{{AddressType: "HOME", FullAddress: "x"}}}},
		{"empty address", CreateVendorRequest{Name: "Globex", Addresses: []AddressPayload{{AddressType: model.AddressTypeBilling}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.vendors.CreateVendor(ctx, admin, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateVendor(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	ctx := context.Background()

	inactive := false
	phone := "+91 20 5555 0100"
	addresses := []AddressPayload{{AddressType: model.AddressTypeShipping, FullAddress: "Dock 7, Nashik"}}
	v, err := h.vendors.UpdateVendor(ctx, buyer, acme.ID.String(), UpdateVendorRequest{
		Phone:     &phone,
		IsActive:  &inactive,
		Addresses: &addresses,
	})
	require.NoError(t, err)
	assert.False(t, v.IsActive)
	assert.Equal(t, phone, v.Phone)
	assert.Equal(t, "Acme", v.Name)
	require.Len(t, v.Addresses, 1)
	assert.Equal(t, model.AddressTypeShipping, v.Addresses[0].AddressType)
	assert.Len(t, h.store.vendors[acme.ID].Addresses, 1)

	badEmail := "nope"
	_, err = h.vendors.UpdateVendor(ctx, buyer, acme.ID.String(), UpdateVendorRequest{Email: &badEmail})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.vendors.UpdateVendor(ctx, buyer, uuid.NewString(), UpdateVendorRequest{Phone: &phone})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAndDeleteVendor(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", false)
	ctx := context.Background()

	own, err := h.vendors.GetVendor(ctx, vendorActor(acme.ID), acme.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Acme", own.Name)

	_, err = h.vendors.GetVendor(ctx, vendorActor(acme.ID), globex.ID.String())
	assert.ErrorIs(t, err, ErrForbidden)

	active, total, err := h.vendors.GetVendors(ctx, repository.VendorListFilter{ActiveOnly: true, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Acme", active[0].Name)

	require.NoError(t, h.vendors.DeleteVendor(ctx, admin, globex.ID.String()))
	_, err = h.vendors.GetVendor(ctx, admin, globex.ID.String())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.vendors.DeleteVendor(ctx, admin, globex.ID.String()), ErrNotFound)
	assert.ErrorIs(t, h.vendors.DeleteVendor(ctx, admin, "x"), ErrValidation)
}
