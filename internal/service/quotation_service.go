package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"procurement/internal/cache"
	"procurement/internal/events"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/quotation"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MessageTotalUpdated is the websocket message type sent when a live total moves.
const MessageTotalUpdated = "quotation.total_updated"

// RFPNotifier pushes a vendor's quotation update to the realtime subscribers of an RFP
// who may see it: buyers and the vendor's own users.
type RFPNotifier interface {
	BroadcastVendorUpdate(rfpID string, vendorID uuid.UUID, message []byte)
}

// --- DTOs ---

// ItemInput edits one seeded line. Quantity comes from the RFP and cannot be changed.
// UnitPrice and TaxRate accept JSON numbers or strings such as "1,250.50" and "18%".
type ItemInput struct {
	RFPProductID string `json:"rfp_product_id" binding:"required"`
	UnitPrice    any    `json:"unit_price" swaggertype:"string"`
	TaxRate      any    `json:"tax_rate" swaggertype:"string"`
}

type ChargeInput struct {
	Name      string `json:"name"`
	UnitPrice any    `json:"unit_price" swaggertype:"string"`
	TaxRate   any    `json:"tax_rate" swaggertype:"string"`
}

// QuotationInput carries edited rows. Omitted items keep their current values;
// Charges replaces the whole charge list.
type QuotationInput struct {
	Items   []ItemInput   `json:"items"`
	Charges []ChargeInput `json:"charges"`
	Note    *string       `json:"note"`
}

type RowResponse struct {
	Kind          string `json:"kind"`
	RFPProductID  string `json:"rfp_product_id,omitempty"`
	Name          string `json:"name"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	TaxRate       string `json:"tax_rate"`
	TaxLabel      string `json:"tax_label"`
	TaxableAmount string `json:"taxable_amount"`
	TotalWithTax  string `json:"total_with_tax"`
}

type QuotationResponse struct {
	ID          uuid.UUID     `json:"id"`
	RFPID       uuid.UUID     `json:"rfp_id"`
	VendorID    uuid.UUID     `json:"vendor_id"`
	VendorName  string        `json:"vendor_name"`
	Status      string        `json:"status"`
	Items       []RowResponse `json:"items"`
	Charges     []RowResponse `json:"charges"`
	Total       TotalResponse `json:"total"`
	Note        string        `json:"note"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type RecalculateResponse struct {
	QuotationID uuid.UUID     `json:"quotation_id"`
	Items       []RowResponse `json:"items"`
	Charges     []RowResponse `json:"charges"`
	Total       TotalResponse `json:"total"`
	Changed     bool          `json:"changed"` // moved by more than the configured epsilon
}

type StartQuotationRequest struct {
	VendorID string `json:"vendor_id"` // required for buyers, ignored for vendor users
}

type RankedQuotation struct {
	Rank        int           `json:"rank"`
	QuotationID uuid.UUID     `json:"quotation_id"`
	VendorID    uuid.UUID     `json:"vendor_id"`
	VendorName  string        `json:"vendor_name"`
	Status      string        `json:"status"`
	Total       TotalResponse `json:"total"`
}

type VendorOffer struct {
	VendorID     uuid.UUID `json:"vendor_id"`
	VendorName   string    `json:"vendor_name"`
	UnitPrice    string    `json:"unit_price"`
	TaxRate      string    `json:"tax_rate"`
	TotalWithTax string    `json:"total_with_tax"`
}

type ProductComparison struct {
	RFPProductID  uuid.UUID     `json:"rfp_product_id"`
	Name          string        `json:"name"`
	Quantity      int64         `json:"quantity"`
	Offers        []VendorOffer `json:"offers"`
	BestVendorID  *uuid.UUID    `json:"best_vendor_id,omitempty"`
	BestVendor    string        `json:"best_vendor,omitempty"`
	BestUnitPrice string        `json:"best_unit_price,omitempty"`
}

type ComparisonResponse struct {
	RFPID      uuid.UUID           `json:"rfp_id"`
	RFPCode    string              `json:"rfp_code"`
	Title      string              `json:"title"`
	Quotations []RankedQuotation   `json:"quotations"`
	Products   []ProductComparison `json:"products"`
}

// --- Interface ---

type QuotationService interface {
	StartQuotation(ctx context.Context, actor model.Actor, rfpID string, req StartQuotationRequest) (QuotationResponse, error)
	Recalculate(ctx context.Context, actor model.Actor, id string, input QuotationInput) (RecalculateResponse, error)
	SaveQuotation(ctx context.Context, actor model.Actor, id string, input QuotationInput) (QuotationResponse, error)
	GetQuotation(ctx context.Context, actor model.Actor, id string) (QuotationResponse, error)
	ListQuotations(ctx context.Context, actor model.Actor, rfpID string) ([]QuotationResponse, error)
	CompareQuotations(ctx context.Context, actor model.Actor, rfpID string) (ComparisonResponse, error)
	ExportComparison(ctx context.Context, actor model.Actor, rfpID string) (*bytes.Buffer, string, error)
}

// --- Implementation ---

type quotationService struct {
	rfpRepo       repository.RFPRepository
	quotationRepo repository.QuotationRepository
	txManager     repository.TransactionManager
	pricing       Pricing
	cache         cache.Cache
	publisher     events.Publisher
	notifier      RFPNotifier
	metrics       *metrics.Metrics
	audit         AuditService
	logger        zerolog.Logger
	live          *LiveDrafts
}

type QuotationServiceDeps struct {
	RFPRepo       repository.RFPRepository
	QuotationRepo repository.QuotationRepository
	TxManager     repository.TransactionManager
	Pricing       Pricing
	Cache         cache.Cache
	Publisher     events.Publisher
	Notifier      RFPNotifier
	Metrics       *metrics.Metrics
	Audit         AuditService
	Logger        zerolog.Logger
	Live          *LiveDrafts
}

type nopNotifier struct{}

func (nopNotifier) BroadcastVendorUpdate(string, uuid.UUID, []byte) {}

func NewQuotationService(deps QuotationServiceDeps) QuotationService {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Live == nil {
		deps.Live = NewLiveDrafts()
	}
	return &quotationService{
		rfpRepo:       deps.RFPRepo,
		quotationRepo: deps.QuotationRepo,
		txManager:     deps.TxManager,
		pricing:       deps.Pricing,
		cache:         deps.Cache,
		publisher:     deps.Publisher,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		audit:         deps.Audit,
		logger:        deps.Logger.With().Str("component", "quotation").Logger(),
		live:          deps.Live,
	}
}

// --- Operations ---

func (s *quotationService) StartQuotation(ctx context.Context, actor model.Actor, rfpID string, req StartQuotationRequest) (QuotationResponse, error) {
	rid, err := parseID("rfp", rfpID)
	if err != nil {
		return QuotationResponse{}, err
	}

	var vendorID uuid.UUID
	if actor.IsVendor() {
		if actor.VendorID == nil {
			return QuotationResponse{}, fmt.Errorf("%w: vendor token carries no vendor_id", ErrForbidden)
		}
		vendorID = *actor.VendorID
	} else {
		vendorID, err = parseID("vendor", req.VendorID)
		if err != nil {
			return QuotationResponse{}, err
		}
	}

	var created *model.Quotation
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rfp, err := s.rfpRepo.FindByIDForUpdate(txCtx, rid)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if err := checkVendorAccess(actor, rfp); err != nil {
			return err
		}
		if rfp.Status != model.RFPStatusDraft && rfp.Status != model.RFPStatusSubmitted {
			return fmt.Errorf("%w: quotations cannot be started on a %s rfp", ErrInvalidTransition, rfp.Status)
		}
		if !rfp.HasVendor(vendorID) {
			return validationErr("vendor %s is not invited to rfp %s", vendorID, rfp.Code)
		}

		if _, err := s.quotationRepo.FindByRFPAndVendor(txCtx, rid, vendorID); err == nil {
			return validationErr("vendor already has a quotation for rfp %s", rfp.Code)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing quotation: %w", err)
		}

		draft := quotation.Seed(s.pricing.Engine, requestedProducts(rfp.Products), s.pricing.DefaultRate, s.pricing.Epsilon)
		q := &model.Quotation{
			RFPID:    rid,
			VendorID: vendorID,
			Status:   model.QuotationDraft,
		}
		applyEngineQuotation(q, draft.Quotation(), draft.Total())
		if err := s.quotationRepo.Create(txCtx, q); err != nil {
			return fmt.Errorf("failed to create quotation: %w", err)
		}
		created = q
		return nil
	})
	if err != nil {
		return QuotationResponse{}, err
	}

	q, err := s.quotationRepo.FindByID(ctx, created.ID)
	if err != nil {
		return QuotationResponse{}, lookupErr("quotation", err)
	}
	s.audit.Record(ctx, actor, model.ActionStartQuotation, q.ID.String(), rid.String(), map[string]any{"vendor_id": vendorID})
	return s.toQuotationResponse(*q), nil
}

// Recalculate previews totals for edited rows without persisting them. Subscribers of
// the RFP are notified only when the total moved by more than the configured epsilon.
func (s *quotationService) Recalculate(ctx context.Context, actor model.Actor, id string, input QuotationInput) (RecalculateResponse, error) {
	stored, _, err := s.loadForEdit(ctx, actor, id)
	if err != nil {
		return RecalculateResponse{}, err
	}

	edited, err := s.applyInput(toEngineQuotation(*stored), input, false)
	if err != nil {
		return RecalculateResponse{}, err
	}

	total, changed, rows := s.live.update(stored, s.pricing, edited)

	s.metrics.Recalculated(changed)
	if changed {
		s.notifyTotal(stored, total)
	}

	items, charges := s.rowResponses(rows)
	return RecalculateResponse{
		QuotationID: stored.ID,
		Items:       items,
		Charges:     charges,
		Total:       toTotalResponse(total),
		Changed:     changed,
	}, nil
}

func (s *quotationService) SaveQuotation(ctx context.Context, actor model.Actor, id string, input QuotationInput) (QuotationResponse, error) {
	qid, err := parseID("quotation", id)
	if err != nil {
		return QuotationResponse{}, err
	}

	var (
		saved   *model.Quotation
		total   quotation.Total
		changed bool
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.quotationRepo.FindByIDForUpdate(txCtx, qid)
		if err != nil {
			return lookupErr("quotation", err)
		}
		rfp, err := s.rfpRepo.FindByID(txCtx, q.RFPID)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if !actor.CanActFor(q.VendorID) {
			return fmt.Errorf("%w: quotation belongs to another vendor", ErrForbidden)
		}
		if rfp.Status != model.RFPStatusSubmitted {
			return fmt.Errorf("%w: quotations can only be saved while the rfp is SUBMITTED", ErrInvalidTransition)
		}
		if q.IsClosed() {
			return fmt.Errorf("%w: quotation is already %s", ErrInvalidTransition, q.Status)
		}

		draft := quotation.NewDraft(s.pricing.Engine, toEngineQuotation(*q), s.pricing.Epsilon)
		edited, err := s.applyInput(draft.Quotation(), input, true)
		if err != nil {
			return err
		}
		total, changed = draft.Update(edited)

		applyEngineQuotation(q, draft.Quotation(), total)
		if input.Note != nil {
			q.Note = *input.Note
		}
		now := time.Now()
		q.Status = model.QuotationSubmitted
		q.SubmittedAt = &now
		if err := s.quotationRepo.SaveWithRows(txCtx, q); err != nil {
			return fmt.Errorf("failed to save quotation: %w", err)
		}
		saved = q
		return nil
	})
	if err != nil {
		return QuotationResponse{}, err
	}

	s.live.Drop(saved.ID)
	s.invalidateComparison(ctx, saved.RFPID)
	if changed {
		s.notifyTotal(saved, total)
	}

	fresh, err := s.quotationRepo.FindByID(ctx, saved.ID)
	if err != nil {
		return QuotationResponse{}, lookupErr("quotation", err)
	}
	res := s.toQuotationResponse(*fresh)

	s.audit.Record(ctx, actor, model.ActionSaveQuotation, fresh.ID.String(), fresh.RFPID.String(), res.Total)
	if err := s.publisher.Publish(ctx, events.QuotationSaved, fresh.RFPID.String(), map[string]any{
		"quotation_id": fresh.ID.String(),
		"rfp_id":       fresh.RFPID.String(),
		"vendor_id":    fresh.VendorID.String(),
		"total":        res.Total,
	}); err != nil {
		s.logger.Warn().Err(err).Str("quotation_id", fresh.ID.String()).Msg("failed to publish event")
	}
	return res, nil
}

func (s *quotationService) GetQuotation(ctx context.Context, actor model.Actor, id string) (QuotationResponse, error) {
	qid, err := parseID("quotation", id)
	if err != nil {
		return QuotationResponse{}, err
	}
	q, err := s.quotationRepo.FindByID(ctx, qid)
	if err != nil {
		return QuotationResponse{}, lookupErr("quotation", err)
	}
	if !actor.CanActFor(q.VendorID) {
		return QuotationResponse{}, fmt.Errorf("%w: quotation belongs to another vendor", ErrForbidden)
	}
	return s.toQuotationResponse(*q), nil
}

func (s *quotationService) ListQuotations(ctx context.Context, actor model.Actor, rfpID string) ([]QuotationResponse, error) {
	rid, err := parseID("rfp", rfpID)
	if err != nil {
		return nil, err
	}
	rfp, err := s.rfpRepo.FindByID(ctx, rid)
	if err != nil {
		return nil, lookupErr("rfp", err)
	}
	if err := checkVendorAccess(actor, rfp); err != nil {
		return nil, err
	}

	quotations, err := s.quotationRepo.ListByRFP(ctx, rid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotations: %w", err)
	}

	res := make([]QuotationResponse, 0, len(quotations))
	for _, q := range quotations {
		if !actor.CanActFor(q.VendorID) {
			continue
		}
		res = append(res, s.toQuotationResponse(q))
	}
	return res, nil
}

// CompareQuotations ranks the saved quotations of an RFP by total with tax and picks the
// cheapest vendor per requested product. Quotations still in DRAFT are left out.
func (s *quotationService) CompareQuotations(ctx context.Context, actor model.Actor, rfpID string) (ComparisonResponse, error) {
	if actor.IsVendor() {
		return ComparisonResponse{}, fmt.Errorf("%w: vendors cannot compare quotations", ErrForbidden)
	}
	rid, err := parseID("rfp", rfpID)
	if err != nil {
		return ComparisonResponse{}, err
	}

	key := cache.ComparisonKey(rid.String())
	var cached ComparisonResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("comparison cache read failed")
	} else if hit {
		return cached, nil
	}

	rfp, err := s.rfpRepo.FindByID(ctx, rid)
	if err != nil {
		return ComparisonResponse{}, lookupErr("rfp", err)
	}
	quotations, err := s.quotationRepo.ListByRFP(ctx, rid)
	if err != nil {
		return ComparisonResponse{}, fmt.Errorf("failed to fetch quotations: %w", err)
	}

	cmp := s.buildComparison(rfp, quotations)
	if err := s.cache.Set(ctx, key, cmp); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("comparison cache write failed")
	}
	return cmp, nil
}

func (s *quotationService) ExportComparison(ctx context.Context, actor model.Actor, rfpID string) (*bytes.Buffer, string, error) {
	cmp, err := s.CompareQuotations(ctx, actor, rfpID)
	if err != nil {
		return nil, "", err
	}
	buf, err := BuildComparisonWorkbook(cmp)
	if err != nil {
		return nil, "", err
	}
	return buf, cmp.RFPCode + "-comparison.xlsx", nil
}

// --- Helpers ---

// loadForEdit returns a quotation the actor may still edit, with its open RFP.
func (s *quotationService) loadForEdit(ctx context.Context, actor model.Actor, id string) (*model.Quotation, *model.RFP, error) {
	qid, err := parseID("quotation", id)
	if err != nil {
		return nil, nil, err
	}
	q, err := s.quotationRepo.FindByID(ctx, qid)
	if err != nil {
		return nil, nil, lookupErr("quotation", err)
	}
	if !actor.CanActFor(q.VendorID) {
		return nil, nil, fmt.Errorf("%w: quotation belongs to another vendor", ErrForbidden)
	}
	if q.IsClosed() {
		return nil, nil, fmt.Errorf("%w: quotation is already %s", ErrInvalidTransition, q.Status)
	}
	rfp, err := s.rfpRepo.FindByID(ctx, q.RFPID)
	if err != nil {
		return nil, nil, lookupErr("rfp", err)
	}
	if err := checkVendorAccess(actor, rfp); err != nil {
		return nil, nil, err
	}
	if rfp.Status != model.RFPStatusDraft && rfp.Status != model.RFPStatusSubmitted {
		return nil, nil, fmt.Errorf("%w: rfp is %s", ErrInvalidTransition, rfp.Status)
	}
	return q, rfp, nil
}

// applyInput merges edited rows into base. With strict set, unknown tax rates and unnamed
// charges are rejected; otherwise they are left to the engine's sanitising.
func (s *quotationService) applyInput(base quotation.Quotation, input QuotationInput, strict bool) (quotation.Quotation, error) {
	out := base.Clone()
	rates := s.pricing.Engine.Rates()

	byRef := make(map[string]int, len(out.Items))
	for i, it := range out.Items {
		byRef[it.ProductRef] = i
	}

	for n, in := range input.Items {
		idx, ok := byRef[strings.TrimSpace(in.RFPProductID)]
		if !ok {
			return quotation.Quotation{}, validationErr("items[%d]: rfp_product_id %q is not part of this quotation", n, in.RFPProductID)
		}
		if in.UnitPrice != nil {
			out.Items[idx].UnitPrice = unitPrice(in.UnitPrice)
		}
		if in.TaxRate != nil {
			rate := quotation.ParseRate(in.TaxRate)
			if strict && !rates.Valid(rate) {
				return quotation.Quotation{}, validationErr("items[%d]: unknown tax rate %q", n, rate)
			}
			out.Items[idx].TaxRate = rate
		}
	}

	if input.Charges != nil {
		charges := make([]quotation.Charge, 0, len(input.Charges))
		for n, in := range input.Charges {
			name := strings.TrimSpace(in.Name)
			if strict && name == "" {
				return quotation.Quotation{}, validationErr("charges[%d]: name is required", n)
			}
			rate := s.pricing.DefaultRate
			if in.TaxRate != nil {
				rate = quotation.ParseRate(in.TaxRate)
			}
			if strict && !rates.Valid(rate) {
				return quotation.Quotation{}, validationErr("charges[%d]: unknown tax rate %q", n, rate)
			}
			charges = append(charges, quotation.Charge{
				Name:      name,
				UnitPrice: unitPrice(in.UnitPrice),
				TaxRate:   rate,
			})
		}
		out.Charges = charges
	}
	return out, nil
}

func (s *quotationService) invalidateComparison(ctx context.Context, rfpID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.ComparisonKey(rfpID.String())); err != nil {
		s.logger.Warn().Err(err).Str("rfp_id", rfpID.String()).Msg("failed to invalidate comparison cache")
	}
}

func (s *quotationService) notifyTotal(q *model.Quotation, total quotation.Total) {
	msg, err := json.Marshal(map[string]any{
		"type":         MessageTotalUpdated,
		"rfp_id":       q.RFPID.String(),
		"quotation_id": q.ID.String(),
		"vendor_id":    q.VendorID.String(),
		"total":        toTotalResponse(total),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode total update")
		return
	}
	s.notifier.BroadcastVendorUpdate(q.RFPID.String(), q.VendorID, msg)
}

func (s *quotationService) rowResponses(q quotation.Quotation) ([]RowResponse, []RowResponse) {
	rates := s.pricing.Engine.Rates()
	label := func(code quotation.RateCode) string {
		if tier, ok := rates.Lookup(code); ok {
			return tier.Label
		}
		return ""
	}

	items := make([]RowResponse, 0, len(q.Items))
	for _, it := range q.Items {
		amounts := s.pricing.Engine.EntryAmounts(it).Rounded()
		items = append(items, RowResponse{
			Kind:          string(quotation.KindLineItem),
			RFPProductID:  it.ProductRef,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice.StringFixed(2),
			TaxRate:       string(it.TaxRate),
			TaxLabel:      label(it.TaxRate),
			TaxableAmount: amounts.Taxable.StringFixed(2),
			TotalWithTax:  amounts.WithTax.StringFixed(2),
		})
	}

	charges := make([]RowResponse, 0, len(q.Charges))
	for _, ch := range q.Charges {
		amounts := s.pricing.Engine.EntryAmounts(ch).Rounded()
		charges = append(charges, RowResponse{
			Kind:          string(quotation.KindCharge),
			Name:          ch.Name,
			Quantity:      ch.Units(),
			UnitPrice:     ch.UnitPrice.StringFixed(2),
			TaxRate:       string(ch.TaxRate),
			TaxLabel:      label(ch.TaxRate),
			TaxableAmount: amounts.Taxable.StringFixed(2),
			TotalWithTax:  amounts.WithTax.StringFixed(2),
		})
	}
	return items, charges
}

func (s *quotationService) toQuotationResponse(q model.Quotation) QuotationResponse {
	rows := toEngineQuotation(q)
	items, charges := s.rowResponses(rows)

	res := QuotationResponse{
		ID:          q.ID,
		RFPID:       q.RFPID,
		VendorID:    q.VendorID,
		Status:      q.Status,
		Items:       items,
		Charges:     charges,
		Total:       toTotalResponse(s.pricing.Engine.QuotationTotal(rows)),
		Note:        q.Note,
		SubmittedAt: q.SubmittedAt,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
	if q.Vendor != nil {
		res.VendorName = q.Vendor.Name
	}
	return res
}

func (s *quotationService) buildComparison(rfp *model.RFP, quotations []model.Quotation) ComparisonResponse {
	type scored struct {
		q     model.Quotation
		rows  quotation.Quotation
		total quotation.Total
	}

	candidates := make([]scored, 0, len(quotations))
	for _, q := range quotations {
		if q.Status == model.QuotationDraft {
			continue
		}
		rows := toEngineQuotation(q)
		candidates = append(candidates, scored{q: q, rows: rows, total: s.pricing.Engine.QuotationTotal(rows)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].total.WithTax.LessThan(candidates[j].total.WithTax)
	})

	cmp := ComparisonResponse{
		RFPID:      rfp.ID,
		RFPCode:    rfp.Code,
		Title:      rfp.Title,
		Quotations: make([]RankedQuotation, 0, len(candidates)),
		Products:   make([]ProductComparison, 0, len(rfp.Products)),
	}
	for i, c := range candidates {
		ranked := RankedQuotation{
			Rank:        i + 1,
			QuotationID: c.q.ID,
			VendorID:    c.q.VendorID,
			Status:      c.q.Status,
			Total:       toTotalResponse(c.total),
		}
		if c.q.Vendor != nil {
			ranked.VendorName = c.q.Vendor.Name
		}
		cmp.Quotations = append(cmp.Quotations, ranked)
	}

	for _, p := range rfp.Products {
		pc := ProductComparison{
			RFPProductID: p.ID,
			Name:         p.Name,
			Quantity:     p.Quantity,
			Offers:       []VendorOffer{},
		}
		var best decimal.Decimal
		for _, c := range candidates {
			for _, it := range c.rows.Items {
				if it.ProductRef != p.ID.String() {
					continue
				}
				vendorName := ""
				if c.q.Vendor != nil {
					vendorName = c.q.Vendor.Name
				}
				pc.Offers = append(pc.Offers, VendorOffer{
					VendorID:     c.q.VendorID,
					VendorName:   vendorName,
					UnitPrice:    it.UnitPrice.StringFixed(2),
					TaxRate:      string(it.TaxRate),
					TotalWithTax: s.pricing.Engine.EntryAmounts(it).WithTax.StringFixed(2),
				})
				// A zero price means the vendor did not quote the line.
				if it.UnitPrice.IsPositive() && (pc.BestVendorID == nil || it.UnitPrice.LessThan(best)) {
					vendorID := c.q.VendorID
					best = it.UnitPrice
					pc.BestVendorID = &vendorID
					pc.BestVendor = vendorName
					pc.BestUnitPrice = it.UnitPrice.StringFixed(2)
				}
			}
		}
		cmp.Products = append(cmp.Products, pc)
	}
	return cmp
}
