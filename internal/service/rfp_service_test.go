package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"procurement/internal/events"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRFP(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)

	rfp := h.draftRFP(t, acme)

	assert.True(t, strings.HasPrefix(rfp.Code, "RFP-"+time.Now().Format("20060102")+"-"), rfp.Code)
	assert.True(t, strings.HasSuffix(rfp.Code, "-00001"), rfp.Code)
	assert.Equal(t, model.RFPStatusDraft, rfp.Status)
	assert.Equal(t, "2026-12-01", rfp.DueDate)
	assert.Equal(t, buyer.ID, rfp.CreatedBy)
	require.Len(t, rfp.Products, 2)
	assert.Equal(t, "Steel rod", rfp.Products[0].Name)
	require.Len(t, rfp.Vendors, 1)
	assert.Equal(t, "Acme", rfp.Vendors[0].Name)
	assert.Contains(t, h.store.auditActions(), model.ActionCreateRFP)

	second := h.draftRFP(t)
	assert.True(t, strings.HasSuffix(second.Code, "-00002"), second.Code)
}

func TestCreateRFPValidation(t *testing.T) {
	h := newHarness(t, nil)
	inactive := h.store.addVendor("Dormant", false)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRFPRequest
		want error
	}{
		{"blank title", CreateRFPRequest{Title: "  "}, ErrValidation},
		{"bad due date", CreateRFPRequest{Title: "x", DueDate: "01/12/2026"}, ErrValidation},
		{"zero quantity", CreateRFPRequest{Title: "x", Products: []RFPProductPayload{{Name: "Rod", Quantity: 0}}}, ErrValidation},
		{"unnamed product", CreateRFPRequest{Title: "x", Products: []RFPProductPayload{{Quantity: 3}}}, ErrValidation},
		{"fractional quantity", CreateRFPRequest{Title: "x", Products: []RFPProductPayload{{Name: "Sand", Quantity: "2.5"}}}, ErrValidation},
		{"garbage quantity", CreateRFPRequest{Title: "x", Products: []RFPProductPayload{{Name: "Sand", Quantity: "lots"}}}, ErrValidation},
		{"quantity beyond int64", CreateRFPRequest{Title: "x", Products: []RFPProductPayload{{Name: "Sand", Quantity: "18446744073709551617"}}}, ErrValidation},
		{"inactive vendor", CreateRFPRequest{Title: "x", VendorIDs: []string{inactive.ID.String()}}, ErrValidation},
		{"unknown vendor", CreateRFPRequest{Title: "x", VendorIDs: []string{uuid.NewString()}}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.rfps.CreateRFP(ctx, buyer, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRFPLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	ctx := context.Background()

	empty, err := h.rfps.CreateRFP(ctx, buyer, CreateRFPRequest{Title: "Nothing yet"})
	require.NoError(t, err)
	_, err = h.rfps.SubmitRFP(ctx, buyer, empty.ID.String())
	assert.ErrorIs(t, err, ErrValidation, "submission needs products")

	noVendors := h.draftRFP(t)
	_, err = h.rfps.SubmitRFP(ctx, buyer, noVendors.ID.String())
	assert.ErrorIs(t, err, ErrValidation, "submission needs an invited vendor")

	rfp := h.draftRFP(t, acme)
	submitted, err := h.rfps.SubmitRFP(ctx, buyer, rfp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.RFPStatusSubmitted, submitted.Status)
	assert.NotNil(t, submitted.SubmittedAt)

	_, err = h.rfps.SubmitRFP(ctx, buyer, rfp.ID.String())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cancelled, err := h.rfps.CancelRFP(ctx, buyer, rfp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.RFPStatusCancelled, cancelled.Status)

	_, err = h.rfps.CancelRFP(ctx, buyer, rfp.ID.String())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.rfps.UpdateRFP(ctx, buyer, rfp.ID.String(), UpdateRFPRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, []events.Type{events.RFPSubmitted, events.RFPCancelled}, h.events.Types())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RFPTransitions.WithLabelValues(model.RFPStatusSubmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RFPTransitions.WithLabelValues(model.RFPStatusCancelled)))
}

func TestUpdateRFP(t *testing.T) {
	h := newHarness(t, nil)
	rfp := h.draftRFP(t)
	ctx := context.Background()

	title := "Site materials, phase 2"
	due := ""
	updated, err := h.rfps.UpdateRFP(ctx, buyer, rfp.ID.String(), UpdateRFPRequest{Title: &title, DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Empty(t, updated.DueDate)
	assert.Len(t, updated.Products, 2, "header edits keep products")

	blank := " "
	_, err = h.rfps.UpdateRFP(ctx, buyer, rfp.ID.String(), UpdateRFPRequest{Title: &blank})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.rfps.UpdateRFP(ctx, buyer, uuid.NewString(), UpdateRFPRequest{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceProductsReseedsQuotations(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	rfp := h.draftRFP(t, acme)
	ctx := context.Background()

	q, err := h.quotations.StartQuotation(ctx, buyer, rfp.ID.String(), StartQuotationRequest{VendorID: acme.ID.String()})
	require.NoError(t, err)

	// Price the seeded rows and add a charge directly in storage
	stored := h.store.quotations[q.ID]
	stored.Items[0].UnitPrice = decimal.RequireFromString("100")
	stored.Charges = []model.QuotationCharge{{QuotationID: q.ID, Name: "Freight", UnitPrice: decimal.RequireFromString("250"), TaxRate: "EXEMPT"}}
	h.store.quotations[q.ID] = stored

	updated, err := h.rfps.ReplaceProducts(ctx, buyer, rfp.ID.String(), ReplaceProductsRequest{
		Products: []RFPProductPayload{{Name: "Sand", Unit: "ton", Quantity: "4"}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Products, 1)

	reseeded, err := h.quotations.GetQuotation(ctx, buyer, q.ID.String())
	require.NoError(t, err)
	require.Len(t, reseeded.Items, 1)
	assert.Equal(t, "Sand", reseeded.Items[0].Name)
	assert.Equal(t, int64(4), reseeded.Items[0].Quantity)
	assert.Equal(t, "0.00", reseeded.Items[0].UnitPrice)
	assert.Equal(t, "18", reseeded.Items[0].TaxRate)
	assert.Equal(t, updated.Products[0].ID.String(), reseeded.Items[0].RFPProductID)
	require.Len(t, reseeded.Charges, 1, "charges survive a reseed")
	assert.Equal(t, "250.00", reseeded.Total.WithTax)

	_, err = h.rfps.SubmitRFP(ctx, buyer, rfp.ID.String())
	require.NoError(t, err)
	_, err = h.rfps.ReplaceProducts(ctx, buyer, rfp.ID.String(), ReplaceProductsRequest{
		Products: []RFPProductPayload{{Name: "Gravel", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInviteVendors(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	rfp := h.draftRFP(t, acme)
	ctx := context.Background()

	updated, err := h.rfps.InviteVendors(ctx, buyer, rfp.ID.String(), InviteVendorsRequest{
		VendorIDs: []string{globex.ID.String(), globex.ID.String(), acme.ID.String()},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Vendors, 2)

	_, err = h.rfps.InviteVendors(ctx, buyer, rfp.ID.String(), InviteVendorsRequest{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.rfps.InviteVendors(ctx, buyer, rfp.ID.String(), InviteVendorsRequest{VendorIDs: []string{"not-a-uuid"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVendorVisibility(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	ctx := context.Background()

	draft := h.draftRFP(t, acme)
	submitted := h.submittedRFP(t, acme)
	h.submittedRFP(t, globex)

	_, err := h.rfps.GetRFP(ctx, vendorActor(acme.ID), draft.ID.String())
	assert.ErrorIs(t, err, ErrForbidden, "drafts are hidden from vendors")

	got, err := h.rfps.GetRFP(ctx, vendorActor(acme.ID), submitted.ID.String())
	require.NoError(t, err)
	assert.Equal(t, submitted.Code, got.Code)

	_, err = h.rfps.GetRFP(ctx, vendorActor(globex.ID), submitted.ID.String())
	assert.ErrorIs(t, err, ErrForbidden)

	list, total, err := h.rfps.ListRFPs(ctx, vendorActor(acme.ID), repository.RFPListFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, submitted.ID, list[0].ID)

	_, total, err = h.rfps.ListRFPs(ctx, buyer, repository.RFPListFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, _, err = h.rfps.ListRFPs(ctx, model.Actor{Role: model.RoleVendor}, repository.RFPListFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}
