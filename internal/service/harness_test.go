package service

import (
	"context"
	"testing"

	"procurement/internal/cache"
	"procurement/internal/events"
	"procurement/internal/metrics"
	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store    *memStore
	events   *events.Recorder
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	pricing  Pricing
	live     *LiveDrafts

	audit      AuditService
	vendors    VendorService
	rfps       RFPService
	quotations QuotationService
	orders     PurchaseOrderService
}

func newHarness(t *testing.T, c cache.Cache) *harness {
	t.Helper()
	if c == nil {
		c = cache.Nop{}
	}
	st := newMemStore()
	h := &harness{
		store:    st,
		events:   &events.Recorder{},
		notifier: &recordingNotifier{},
		metrics:  metrics.New("test"),
		pricing:  testPricing(),
		live:     NewLiveDrafts(),
	}

	vendorRepo := fakeVendorRepo{st}
	rfpRepo := fakeRFPRepo{st}
	quotationRepo := fakeQuotationRepo{st}
	poRepo := fakePORepo{st}

	h.audit = NewAuditService(&fakeAuditRepo{s: st}, nopLogger())
	h.vendors = NewVendorService(vendorRepo, fakeTx{}, h.audit)
	h.rfps = NewRFPService(RFPServiceDeps{
		RFPRepo:       rfpRepo,
		VendorRepo:    vendorRepo,
		QuotationRepo: quotationRepo,
		TxManager:     fakeTx{},
		Pricing:       h.pricing,
		Cache:         c,
		Publisher:     h.events,
		Metrics:       h.metrics,
		Audit:         h.audit,
		Logger:        nopLogger(),
		Live:          h.live,
	})
	h.quotations = NewQuotationService(QuotationServiceDeps{
		RFPRepo:       rfpRepo,
		QuotationRepo: quotationRepo,
		TxManager:     fakeTx{},
		Pricing:       h.pricing,
		Cache:         c,
		Publisher:     h.events,
		Notifier:      h.notifier,
		Metrics:       h.metrics,
		Audit:         h.audit,
		Logger:        nopLogger(),
		Live:          h.live,
	})
	h.orders = NewPurchaseOrderService(PurchaseOrderServiceDeps{
		PORepo:        poRepo,
		RFPRepo:       rfpRepo,
		QuotationRepo: quotationRepo,
		VendorRepo:    vendorRepo,
		TxManager:     fakeTx{},
		Pricing:       h.pricing,
		Cache:         c,
		Publisher:     h.events,
		Metrics:       h.metrics,
		Audit:         h.audit,
		Logger:        nopLogger(),
		Live:          h.live,
	})
	return h
}

// draftRFP creates an RFP for 10 steel rods and 2 cement bags inviting vendors.
func (h *harness) draftRFP(t *testing.T, vendors ...model.Vendor) RFPResponse {
	t.Helper()
	ids := make([]string, 0, len(vendors))
	for _, v := range vendors {
		ids = append(ids, v.ID.String())
	}
	rfp, err := h.rfps.CreateRFP(context.Background(), buyer, CreateRFPRequest{
		Title:   "Site materials",
		DueDate: "2026-12-01",
		Products: []RFPProductPayload{
			{Name: "Steel rod", Unit: "pcs", Quantity: 10},
			{Name: "Cement bag", Unit: "bag", Quantity: 2},
		},
		VendorIDs: ids,
	})
	require.NoError(t, err)
	return rfp
}

func (h *harness) submittedRFP(t *testing.T, vendors ...model.Vendor) RFPResponse {
	t.Helper()
	rfp := h.draftRFP(t, vendors...)
	rfp, err := h.rfps.SubmitRFP(context.Background(), buyer, rfp.ID.String())
	require.NoError(t, err)
	return rfp
}

// pricedInput prices the steel rods and cement bags of rfp.
func pricedInput(rfp RFPResponse, rod, cement any) QuotationInput {
	return QuotationInput{
		Items: []ItemInput{
			{RFPProductID: rfp.Products[0].ID.String(), UnitPrice: rod, TaxRate: "18"},
			{RFPProductID: rfp.Products[1].ID.String(), UnitPrice: cement, TaxRate: "5%"},
		},
	}
}

// savedQuotation starts and saves a priced quotation for vendor.
func (h *harness) savedQuotation(t *testing.T, rfp RFPResponse, vendor model.Vendor, rod, cement any) QuotationResponse {
	t.Helper()
	actor := vendorActor(vendor.ID)
	q, err := h.quotations.StartQuotation(context.Background(), actor, rfp.ID.String(), StartQuotationRequest{})
	require.NoError(t, err)
	q, err = h.quotations.SaveQuotation(context.Background(), actor, q.ID.String(), pricedInput(rfp, rod, cement))
	require.NoError(t, err)
	return q
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
