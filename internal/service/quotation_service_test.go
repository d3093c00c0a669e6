package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"procurement/internal/cache"
	"procurement/internal/events"
	"procurement/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestStartQuotationSeedsFromProducts(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	rfp := h.submittedRFP(t, acme)
	ctx := context.Background()

	q, err := h.quotations.StartQuotation(ctx, vendorActor(acme.ID), rfp.ID.String(), StartQuotationRequest{})
	require.NoError(t, err)

	assert.Equal(t, model.QuotationDraft, q.Status)
	assert.Equal(t, acme.ID, q.VendorID)
	assert.Equal(t, "Acme", q.VendorName)
	require.Len(t, q.Items, 2)
	for i, it := range q.Items {
		assert.Equal(t, rfp.Products[i].ID.String(), it.RFPProductID)
		assert.Equal(t, rfp.Products[i].Quantity, it.Quantity)
		assert.Equal(t, "0.00", it.UnitPrice)
		assert.Equal(t, "18", it.TaxRate)
		assert.Equal(t, "GST 18%", it.TaxLabel)
	}
	assert.Empty(t, q.Charges)
	assert.Equal(t, TotalResponse{WithoutTax: "0.00", Tax: "0.00", WithTax: "0.00"}, q.Total)

	_, err = h.quotations.StartQuotation(ctx, vendorActor(acme.ID), rfp.ID.String(), StartQuotationRequest{})
	assert.ErrorIs(t, err, ErrValidation, "one quotation per vendor")
}

func TestStartQuotationAccess(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	ctx := context.Background()

	draft := h.draftRFP(t, acme)
	_, err := h.quotations.StartQuotation(ctx, vendorActor(acme.ID), draft.ID.String(), StartQuotationRequest{})
	assert.ErrorIs(t, err, ErrForbidden, "vendors wait for submission")

	_, err = h.quotations.StartQuotation(ctx, buyer, draft.ID.String(), StartQuotationRequest{VendorID: globex.ID.String()})
	assert.ErrorIs(t, err, ErrValidation, "vendor must be invited")

	_, err = h.quotations.StartQuotation(ctx, buyer, draft.ID.String(), StartQuotationRequest{})
	assert.ErrorIs(t, err, ErrValidation, "buyers name the vendor")

	submitted := h.submittedRFP(t, acme)
	_, err = h.quotations.StartQuotation(ctx, vendorActor(globex.ID), submitted.ID.String(), StartQuotationRequest{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.rfps.CancelRFP(ctx, buyer, submitted.ID.String())
	require.NoError(t, err)
	_, err = h.quotations.StartQuotation(ctx, buyer, submitted.ID.String(), StartQuotationRequest{VendorID: acme.ID.String()})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecalculateNotifiesOnlyWhenTotalMoves(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	rfp := h.submittedRFP(t, acme)
	actor := vendorActor(acme.ID)
	ctx := context.Background()
	room := rfp.ID.String()

	q, err := h.quotations.StartQuotation(ctx, actor, rfp.ID.String(), StartQuotationRequest{})
	require.NoError(t, err)

	res, err := h.quotations.Recalculate(ctx, actor, q.ID.String(), pricedInput(rfp, "100", "1,250.50"))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, TotalResponse{WithoutTax: "3501.00", Tax: "305.05", WithTax: "3806.05"}, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "1180.00", res.Items[0].TotalWithTax)
	assert.Equal(t, "5", res.Items[1].TaxRate)
	assert.Equal(t, "2626.05", res.Items[1].TotalWithTax)
	assert.Equal(t, 1, h.notifier.count(room))

	var msg map[string]any
	require.NoError(t, json.Unmarshal(h.notifier.messages[room][0], &msg))
	assert.Equal(t, MessageTotalUpdated, msg["type"])
	assert.Equal(t, q.ID.String(), msg["quotation_id"])
	assert.Equal(t, []uuid.UUID{acme.ID}, h.notifier.owners[room], "updates are addressed to the quoting vendor")

	res, err = h.quotations.Recalculate(ctx, actor, q.ID.String(), pricedInput(rfp, "100", "1,250.50"))
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = h.quotations.Recalculate(ctx, actor, q.ID.String(), pricedInput(rfp, "100.0005", "1250.5"))
	require.NoError(t, err)
	assert.False(t, res.Changed, "moves below the epsilon are not reported")
	assert.Equal(t, 1, h.notifier.count(room))

	res, err = h.quotations.Recalculate(ctx, actor, q.ID.String(), pricedInput(rfp, 90, "1250.50"))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "3688.05", res.Total.WithTax)
	assert.Equal(t, 2, h.notifier.count(room))

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Recalculations.WithLabelValues("changed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Recalculations.WithLabelValues("unchanged")))

	stored, err := h.quotations.GetQuotation(ctx, actor, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "0.00", stored.Total.WithTax, "previews are not persisted")
}

func TestRecalculateInput(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	rfp := h.submittedRFP(t, acme)
	actor := vendorActor(acme.ID)
	ctx := context.Background()

	q, err := h.quotations.StartQuotation(ctx, actor, rfp.ID.String(), StartQuotationRequest{})
	require.NoError(t, err)

	_, err = h.quotations.Recalculate(ctx, actor, q.ID.String(), QuotationInput{
		Items: []ItemInput{{RFPProductID: "not-on-this-quotation", UnitPrice: "1"}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	res, err := h.quotations.Recalculate(ctx, actor, q.ID.String(), QuotationInput{
		Items: []ItemInput{{RFPProductID: rfp.Products[1].ID.String(), UnitPrice: "abc", TaxRate: "7"}},
	})
	require.NoError(t, err, "previews tolerate unparseable input")
	assert.Equal(t, "0.00", res.Items[1].UnitPrice)

	res, err = h.quotations.Recalculate(ctx, actor, q.ID.String(), QuotationInput{
		Charges: []ChargeInput{{Name: "Freight", UnitPrice: 200}},
	})
	require.NoError(t, err)
	require.Len(t, res.Charges, 1)
	assert.Equal(t, "18", res.Charges[0].TaxRate, "charges default to the configured rate")
	assert.Equal(t, int64(1), res.Charges[0].Quantity)
	assert.Equal(t, "236.00", res.Total.WithTax)
}

func TestSaveQuotation(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	rfp := h.submittedRFP(t, acme)
	actor := vendorActor(acme.ID)
	ctx := context.Background()

	q, err := h.quotations.StartQuotation(ctx, actor, rfp.ID.String(), StartQuotationRequest{})
	require.NoError(t, err)

	bad := pricedInput(rfp, "100", "1250.50")
	bad.Items[0].TaxRate = "7"
	_, err = h.quotations.SaveQuotation(ctx, actor, q.ID.String(), bad)
	assert.ErrorIs(t, err, ErrValidation, "unknown tax rates are rejected on save")

	unnamed := pricedInput(rfp, "100", "1250.50")
	unnamed.Charges = []ChargeInput{{UnitPrice: 500}}
	_, err = h.quotations.SaveQuotation(ctx, actor, q.ID.String(), unnamed)
	assert.ErrorIs(t, err, ErrValidation)

	note := "Delivery within 10 days"
	input := pricedInput(rfp, "100", "1,250.50")
	input.Charges = []ChargeInput{{Name: "Freight", UnitPrice: "500", TaxRate: "exempt"}}
	input.Note = &note

	saved, err := h.quotations.SaveQuotation(ctx, actor, q.ID.String(), input)
	require.NoError(t, err)
	assert.Equal(t, model.QuotationSubmitted, saved.Status)
	assert.NotNil(t, saved.SubmittedAt)
	assert.Equal(t, note, saved.Note)
	assert.Equal(t, TotalResponse{WithoutTax: "4001.00", Tax: "305.05", WithTax: "4306.05"}, saved.Total)
	require.Len(t, saved.Charges, 1)
	assert.Equal(t, "EXEMPT", saved.Charges[0].TaxRate)
	assert.Equal(t, "Exempt", saved.Charges[0].TaxLabel)

	stored := h.store.quotations[q.ID]
	assert.Equal(t, "4306.05", stored.TotalWithTax.StringFixed(2))
	assert.Equal(t, 1, h.notifier.count(rfp.ID.String()))

	assert.Equal(t, []events.Type{events.RFPSubmitted, events.QuotationSaved}, h.events.Types())
	assert.Equal(t, rfp.ID.String(), h.events.Events()[1].Key)
	assert.Contains(t, h.store.auditActions(), model.ActionSaveQuotation)

	// The next preview compares against the saved rows.
	res, err := h.quotations.Recalculate(ctx, actor, q.ID.String(), pricedInput(rfp, "100", "1250.50"))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "4306.05", res.Total.WithTax)
}

func TestSaveQuotationRules(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	ctx := context.Background()

	draft := h.draftRFP(t, acme)
	q, err := h.quotations.StartQuotation(ctx, buyer, draft.ID.String(), StartQuotationRequest{VendorID: acme.ID.String()})
	require.NoError(t, err)
	_, err = h.quotations.SaveQuotation(ctx, buyer, q.ID.String(), pricedInput(draft, "100", "10"))
	assert.ErrorIs(t, err, ErrInvalidTransition, "saving waits for submission")

	rfp := h.submittedRFP(t, acme, globex)
	saved := h.savedQuotation(t, rfp, acme, "100", "10")

	_, err = h.quotations.SaveQuotation(ctx, vendorActor(globex.ID), saved.ID.String(), pricedInput(rfp, "1", "1"))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.quotations.Recalculate(ctx, vendorActor(globex.ID), saved.ID.String(), pricedInput(rfp, "1", "1"))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.quotations.GetQuotation(ctx, vendorActor(globex.ID), saved.ID.String())
	assert.ErrorIs(t, err, ErrForbidden)

	// Managers may save on behalf of a vendor.
	updated, err := h.quotations.SaveQuotation(ctx, buyer, saved.ID.String(), pricedInput(rfp, "95", "10"))
	require.NoError(t, err)
	assert.Equal(t, "95.00", updated.Items[0].UnitPrice)

	q2 := h.store.quotations[saved.ID]
	q2.Status = model.QuotationRejected
	h.store.quotations[saved.ID] = q2
	_, err = h.quotations.SaveQuotation(ctx, buyer, saved.ID.String(), pricedInput(rfp, "90", "10"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.quotations.Recalculate(ctx, buyer, saved.ID.String(), pricedInput(rfp, "90", "10"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListQuotationsScopesVendors(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	rfp := h.submittedRFP(t, acme, globex)
	h.savedQuotation(t, rfp, acme, "100", "10")
	h.savedQuotation(t, rfp, globex, "90", "12")
	ctx := context.Background()

	all, err := h.quotations.ListQuotations(ctx, buyer, rfp.ID.String())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := h.quotations.ListQuotations(ctx, vendorActor(globex.ID), rfp.ID.String())
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, globex.ID, own[0].VendorID)
}

func newRedisCache(t *testing.T) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.NewRedisCache(client, time.Minute, nopLogger())
}

func TestCompareQuotations(t *testing.T) {
	mr, c := newRedisCache(t)
	h := newHarness(t, c)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	initech := h.store.addVendor("Initech", true)
	rfp := h.submittedRFP(t, acme, globex, initech)
	ctx := context.Background()

	h.savedQuotation(t, rfp, acme, "100", "1,250.50")
	globexQ := h.savedQuotation(t, rfp, globex, 90, "1300")
	_, err := h.quotations.StartQuotation(ctx, vendorActor(initech.ID), rfp.ID.String(), StartQuotationRequest{})
	require.NoError(t, err)

	cmp, err := h.quotations.CompareQuotations(ctx, buyer, rfp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, rfp.Code, cmp.RFPCode)
	require.Len(t, cmp.Quotations, 2, "draft quotations are not compared")
	assert.Equal(t, 1, cmp.Quotations[0].Rank)
	assert.Equal(t, "Globex", cmp.Quotations[0].VendorName)
	assert.Equal(t, globexQ.ID, cmp.Quotations[0].QuotationID)
	assert.Equal(t, "3792.00", cmp.Quotations[0].Total.WithTax)
	assert.Equal(t, "Acme", cmp.Quotations[1].VendorName)
	assert.Equal(t, "3806.05", cmp.Quotations[1].Total.WithTax)

	require.Len(t, cmp.Products, 2)
	assert.Equal(t, "Globex", cmp.Products[0].BestVendor)
	assert.Equal(t, "90.00", cmp.Products[0].BestUnitPrice)
	assert.Equal(t, "Acme", cmp.Products[1].BestVendor)
	assert.Equal(t, "1250.50", cmp.Products[1].BestUnitPrice)
	assert.Len(t, cmp.Products[1].Offers, 2)

	assert.True(t, mr.Exists(cache.ComparisonKey(rfp.ID.String())))

	// A cached comparison is served until a save invalidates it.
	stored := h.store.rfps[rfp.ID]
	stored.Title = "Renamed"
	h.store.rfps[rfp.ID] = stored

	cached, err := h.quotations.CompareQuotations(ctx, admin, rfp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Site materials", cached.Title)

	h.savedQuotation(t, rfp, initech, "80", "1000")
	assert.False(t, mr.Exists(cache.ComparisonKey(rfp.ID.String())))

	fresh, err := h.quotations.CompareQuotations(ctx, admin, rfp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Title)
	require.Len(t, fresh.Quotations, 3)
	assert.Equal(t, "Initech", fresh.Quotations[0].VendorName)

	_, err = h.quotations.CompareQuotations(ctx, vendorActor(acme.ID), rfp.ID.String())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExportComparison(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	rfp := h.submittedRFP(t, acme, globex)
	h.savedQuotation(t, rfp, acme, "100", "1,250.50")
	h.savedQuotation(t, rfp, globex, 90, "1300")

	buf, filename, err := h.quotations.ExportComparison(context.Background(), buyer, rfp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, rfp.Code+"-comparison.xlsx", filename)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Ranking", "Products"}, f.GetSheetList())

	title, err := f.GetCellValue("Ranking", "A1")
	require.NoError(t, err)
	assert.Equal(t, rfp.Code+" - Site materials", title)

	vendor, err := f.GetCellValue("Ranking", "B4")
	require.NoError(t, err)
	assert.Equal(t, "Globex", vendor)
	total, err := f.GetCellValue("Ranking", "F5")
	require.NoError(t, err)
	assert.Equal(t, "3806.05", total)

	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	assert.Len(t, rows, 5, "header plus two offers per product")
	assert.Equal(t, "Steel rod", rows[1][0])
}

func TestLiveDraftsAreReleased(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	globex := h.store.addVendor("Globex", true)
	ctx := context.Background()

	preview := func(t *testing.T, actor model.Actor, rfp RFPResponse, id string) {
		t.Helper()
		_, err := h.quotations.Recalculate(ctx, actor, id, pricedInput(rfp, "95", "1200"))
		require.NoError(t, err)
	}

	t.Run("save", func(t *testing.T) {
		rfp := h.submittedRFP(t, acme)
		q := h.savedQuotation(t, rfp, acme, "100", "1250.50")
		preview(t, vendorActor(acme.ID), rfp, q.ID.String())
		require.Equal(t, 1, h.live.Len())

		_, err := h.quotations.SaveQuotation(ctx, vendorActor(acme.ID), q.ID.String(), pricedInput(rfp, "95", "1200"))
		require.NoError(t, err)
		assert.Zero(t, h.live.Len())
	})

	t.Run("reseed", func(t *testing.T) {
		rfp := h.draftRFP(t, acme)
		q, err := h.quotations.StartQuotation(ctx, buyer, rfp.ID.String(), StartQuotationRequest{VendorID: acme.ID.String()})
		require.NoError(t, err)
		preview(t, buyer, rfp, q.ID.String())
		require.Equal(t, 1, h.live.Len())

		_, err = h.rfps.ReplaceProducts(ctx, buyer, rfp.ID.String(), ReplaceProductsRequest{
			Products: []RFPProductPayload{{Name: "Sand", Quantity: 3}},
		})
		require.NoError(t, err)
		assert.Zero(t, h.live.Len())
	})

	t.Run("award", func(t *testing.T) {
		rfp := h.submittedRFP(t, acme, globex)
		acmeQ := h.savedQuotation(t, rfp, acme, "100", "1250.50")
		globexQ, err := h.quotations.StartQuotation(ctx, vendorActor(globex.ID), rfp.ID.String(), StartQuotationRequest{})
		require.NoError(t, err)
		preview(t, vendorActor(acme.ID), rfp, acmeQ.ID.String())
		preview(t, vendorActor(globex.ID), rfp, globexQ.ID.String())
		require.Equal(t, 2, h.live.Len())

		_, err = h.orders.CreatePurchaseOrder(ctx, buyer, CreatePurchaseOrderRequest{QuotationID: acmeQ.ID.String()})
		require.NoError(t, err)
		assert.Zero(t, h.live.Len())
	})

	t.Run("cancel", func(t *testing.T) {
		rfp := h.submittedRFP(t, acme, globex)
		q, err := h.quotations.StartQuotation(ctx, vendorActor(globex.ID), rfp.ID.String(), StartQuotationRequest{})
		require.NoError(t, err)
		preview(t, vendorActor(globex.ID), rfp, q.ID.String())

		other := h.submittedRFP(t, acme)
		otherQ, err := h.quotations.StartQuotation(ctx, vendorActor(acme.ID), other.ID.String(), StartQuotationRequest{})
		require.NoError(t, err)
		preview(t, vendorActor(acme.ID), other, otherQ.ID.String())
		require.Equal(t, 2, h.live.Len())

		_, err = h.rfps.CancelRFP(ctx, buyer, rfp.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 1, h.live.Len(), "only the cancelled rfp's drafts are dropped")
	})
}

func TestSaveQuotationRoundsPricesToStoredScale(t *testing.T) {
	h := newHarness(t, nil)
	acme := h.store.addVendor("Acme", true)
	rfp := h.submittedRFP(t, acme)

	// 10 × 0.000425 × 1.18 = 0.005015 would round up to 0.01; the stored 0.0004 gives 0.00472.
	q := h.savedQuotation(t, rfp, acme, "0.000425", "0")

	stored := h.store.quotations[q.ID]
	assert.Equal(t, "0.0004", stored.Items[0].UnitPrice.String())
	assert.Equal(t, "0.00", stored.TotalWithTax.StringFixed(2))
	assert.Equal(t, "0.00", q.Total.WithTax)

	recomputed := h.pricing.Engine.QuotationTotal(toEngineQuotation(stored))
	assert.Equal(t, recomputed.WithTax.StringFixed(2), stored.TotalWithTax.StringFixed(2))

	res, err := h.quotations.Recalculate(context.Background(), vendorActor(acme.ID), q.ID.String(), pricedInput(rfp, "0.000425", "0"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", res.Items[0].TotalWithTax, "previews use the stored scale too")
}
