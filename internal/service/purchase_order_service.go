package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
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

// paymentTolerance is the largest accepted gap between a payment and the PO total.
var paymentTolerance = decimal.NewFromFloat(0.01)

// --- DTOs ---

type CreatePurchaseOrderRequest struct {
	QuotationID string `json:"quotation_id" binding:"required"`
	Note        string `json:"note"`
}

type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" swaggertype:"string"`
	Reference string          `json:"reference"`
	PaidAt    string          `json:"paid_at"` // YYYY-MM-DD, defaults to today
}

type PurchaseOrderItemResponse struct {
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	TaxRate       string `json:"tax_rate"`
	TaxableAmount string `json:"taxable_amount"`
	TotalWithTax  string `json:"total_with_tax"`
}

type PurchaseOrderResponse struct {
	ID               uuid.UUID                   `json:"id"`
	PONumber         string                      `json:"po_number"`
	RFPID            uuid.UUID                   `json:"rfp_id"`
	RFPCode          string                      `json:"rfp_code,omitempty"`
	RFPTitle         string                      `json:"rfp_title,omitempty"`
	QuotationID      uuid.UUID                   `json:"quotation_id"`
	VendorID         uuid.UUID                   `json:"vendor_id"`
	VendorName       string                      `json:"vendor_name"`
	CompanyName      string                      `json:"company_name"`
	TaxCode          string                      `json:"tax_code"`
	BillingAddress   string                      `json:"billing_address"`
	Items            []PurchaseOrderItemResponse `json:"items"`
	Subtotal         string                      `json:"subtotal"`
	TaxAmount        string                      `json:"tax_amount"`
	TotalAmount      string                      `json:"total_amount"`
	PaymentStatus    string                      `json:"payment_status"`
	PaidAmount       *string                     `json:"paid_amount,omitempty"`
	PaymentReference string                      `json:"payment_reference,omitempty"`
	PaidAt           *time.Time                  `json:"paid_at,omitempty"`
	IssuedBy         string                      `json:"issued_by"`
	Note             string                      `json:"note"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// --- Interface ---

type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, actor model.Actor, req CreatePurchaseOrderRequest) (PurchaseOrderResponse, error)
	RecordPayment(ctx context.Context, actor model.Actor, id string, req RecordPaymentRequest) (PurchaseOrderResponse, error)
	GetPurchaseOrder(ctx context.Context, actor model.Actor, id string) (PurchaseOrderResponse, error)
	ListPurchaseOrders(ctx context.Context, actor model.Actor, filter repository.PurchaseOrderListFilter) ([]PurchaseOrderResponse, int64, error)
	RenderPDF(ctx context.Context, actor model.Actor, id string) (*bytes.Buffer, string, error)
}

// --- Implementation ---

type purchaseOrderService struct {
	poRepo        repository.PurchaseOrderRepository
	rfpRepo       repository.RFPRepository
	quotationRepo repository.QuotationRepository
	vendorRepo    repository.VendorRepository
	txManager     repository.TransactionManager
	pricing       Pricing
	cache         cache.Cache
	publisher     events.Publisher
	metrics       *metrics.Metrics
	audit         AuditService
	logger        zerolog.Logger
	live          *LiveDrafts
}

type PurchaseOrderServiceDeps struct {
	PORepo        repository.PurchaseOrderRepository
	RFPRepo       repository.RFPRepository
	QuotationRepo repository.QuotationRepository
	VendorRepo    repository.VendorRepository
	TxManager     repository.TransactionManager
	Pricing       Pricing
	Cache         cache.Cache
	Publisher     events.Publisher
	Metrics       *metrics.Metrics
	Audit         AuditService
	Logger        zerolog.Logger
	Live          *LiveDrafts
}

func NewPurchaseOrderService(deps PurchaseOrderServiceDeps) PurchaseOrderService {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Live == nil {
		deps.Live = NewLiveDrafts()
	}
	return &purchaseOrderService{
		poRepo:        deps.PORepo,
		rfpRepo:       deps.RFPRepo,
		quotationRepo: deps.QuotationRepo,
		vendorRepo:    deps.VendorRepo,
		txManager:     deps.TxManager,
		pricing:       deps.Pricing,
		cache:         deps.Cache,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		audit:         deps.Audit,
		logger:        deps.Logger.With().Str("component", "purchase_order").Logger(),
		live:          deps.Live,
	}
}

// CreatePurchaseOrder awards a quotation: the PO copies its rows with freshly computed
// amounts, the other quotations of the RFP are rejected and the RFP moves to PO_CREATED.
func (s *purchaseOrderService) CreatePurchaseOrder(ctx context.Context, actor model.Actor, req CreatePurchaseOrderRequest) (PurchaseOrderResponse, error) {
	qid, err := parseID("quotation", req.QuotationID)
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	var poID uuid.UUID
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.quotationRepo.FindByIDForUpdate(txCtx, qid)
		if err != nil {
			return lookupErr("quotation", err)
		}
		rfp, err := s.rfpRepo.FindByIDForUpdate(txCtx, q.RFPID)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if !model.CanTransitionRFP(rfp.Status, model.RFPStatusPOCreated) {
			return transitionErr("rfp", rfp.Status, model.RFPStatusPOCreated)
		}
		if q.Status != model.QuotationSubmitted {
			return validationErr("only a saved quotation can be awarded, this one is %s", q.Status)
		}
		if _, err := s.poRepo.FindByRFPID(txCtx, rfp.ID); err == nil {
			return fmt.Errorf("%w: rfp %s already has a purchase order", ErrInvalidTransition, rfp.Code)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing purchase order: %w", err)
		}

		vendor, err := s.vendorRepo.FindByID(txCtx, q.VendorID)
		if err != nil {
			return lookupErr("vendor", err)
		}

		rows := toEngineQuotation(*q)
		total := s.pricing.Engine.QuotationTotal(rows).Rounded()
		if !total.WithTax.IsPositive() {
			return validationErr("quotation has no priced rows")
		}

		number, err := s.poRepo.NextNumber(txCtx, "PO-"+time.Now().Format("20060102")+"-")
		if err != nil {
			return fmt.Errorf("failed to generate po number: %w", err)
		}

		po := &model.PurchaseOrder{
			PONumber:       number,
			RFPID:          rfp.ID,
			QuotationID:    q.ID,
			VendorID:       vendor.ID,
			VendorName:     vendor.Name,
			CompanyName:    vendor.CompanyName,
			TaxCode:        vendor.TaxCode,
			BillingAddress: vendor.BillingAddress(),
			Items:          s.purchaseOrderItems(rows),
			Subtotal:       total.WithoutTax,
			TaxAmount:      total.Tax(),
			TotalAmount:    total.WithTax,
			PaymentStatus:  model.PaymentUnpaid,
			IssuedBy:       actor.ID,
			Note:           strings.TrimSpace(req.Note),
		}
		if err := s.poRepo.Create(txCtx, po); err != nil {
			return fmt.Errorf("failed to create purchase order: %w", err)
		}

		if err := s.quotationRepo.UpdateStatus(txCtx, q.ID, model.QuotationAwarded); err != nil {
			return fmt.Errorf("failed to award quotation: %w", err)
		}
		if err := s.quotationRepo.UpdateStatusForRFP(txCtx, rfp.ID, q.ID, model.QuotationRejected); err != nil {
			return fmt.Errorf("failed to reject other quotations: %w", err)
		}

		rfp.Status = model.RFPStatusPOCreated
		if err := s.rfpRepo.Update(txCtx, rfp); err != nil {
			return fmt.Errorf("failed to update rfp status: %w", err)
		}
		poID = po.ID
		return nil
	})
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return PurchaseOrderResponse{}, lookupErr("purchase order", err)
	}

	s.live.DropRFP(po.RFPID)
	s.metrics.PurchaseOrderCreated()
	s.metrics.Transitioned(model.RFPStatusPOCreated)
	if err := s.cache.Delete(ctx, cache.ComparisonKey(po.RFPID.String())); err != nil {
		s.logger.Warn().Err(err).Str("rfp_id", po.RFPID.String()).Msg("failed to invalidate comparison cache")
	}
	s.audit.Record(ctx, actor, model.ActionCreatePurchaseOrder, po.ID.String(), po.PONumber, map[string]any{
		"quotation_id": po.QuotationID,
		"total_amount": po.TotalAmount.StringFixed(2),
	})
	s.publish(ctx, events.PurchaseOrderCreated, po)

	return toPurchaseOrderResponse(*po), nil
}

func (s *purchaseOrderService) purchaseOrderItems(rows quotation.Quotation) []model.PurchaseOrderItem {
	entries := rows.Entries()
	items := make([]model.PurchaseOrderItem, 0, len(entries))
	for i, entry := range entries {
		amounts := s.pricing.Engine.EntryAmounts(entry).Rounded()
		name := ""
		switch e := entry.(type) {
		case quotation.LineItem:
			name = e.Name
		case quotation.Charge:
			name = e.Name
		}
		items = append(items, model.PurchaseOrderItem{
			Kind:          string(entry.Kind()),
			Position:      i,
			Name:          name,
			Quantity:      entry.Units(),
			UnitPrice:     entry.Price(),
			TaxRate:       string(entry.Rate()),
			TaxableAmount: amounts.Taxable,
			TotalWithTax:  amounts.WithTax,
		})
	}
	return items
}

func (s *purchaseOrderService) RecordPayment(ctx context.Context, actor model.Actor, id string, req RecordPaymentRequest) (PurchaseOrderResponse, error) {
	pid, err := parseID("purchase order", id)
	if err != nil {
		return PurchaseOrderResponse{}, err
	}
	if !req.Amount.IsPositive() {
		return PurchaseOrderResponse{}, validationErr("amount must be greater than 0")
	}
	paidAt := time.Now()
	if strings.TrimSpace(req.PaidAt) != "" {
		paidAt, err = time.Parse(dateLayout, strings.TrimSpace(req.PaidAt))
		if err != nil {
			return PurchaseOrderResponse{}, validationErr("paid_at must use the YYYY-MM-DD format")
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		po, err := s.poRepo.FindByIDForUpdate(txCtx, pid)
		if err != nil {
			return lookupErr("purchase order", err)
		}
		if po.PaymentStatus != model.PaymentUnpaid {
			return transitionErr("purchase order", po.PaymentStatus, model.PaymentPaid)
		}
		if req.Amount.Sub(po.TotalAmount).Abs().GreaterThan(paymentTolerance) {
			return validationErr("amount %s does not match the purchase order total %s",
				req.Amount.StringFixed(2), po.TotalAmount.StringFixed(2))
		}

		rfp, err := s.rfpRepo.FindByIDForUpdate(txCtx, po.RFPID)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if !model.CanTransitionRFP(rfp.Status, model.RFPStatusPaid) {
			return transitionErr("rfp", rfp.Status, model.RFPStatusPaid)
		}

		po.PaymentStatus = model.PaymentPaid
		po.PaidAmount = decimal.NewNullDecimal(req.Amount)
		po.PaymentReference = strings.TrimSpace(req.Reference)
		po.PaidAt = &paidAt
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}

		rfp.Status = model.RFPStatusPaid
		if err := s.rfpRepo.Update(txCtx, rfp); err != nil {
			return fmt.Errorf("failed to update rfp status: %w", err)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	po, err := s.poRepo.FindByID(ctx, pid)
	if err != nil {
		return PurchaseOrderResponse{}, lookupErr("purchase order", err)
	}

	s.metrics.Transitioned(model.RFPStatusPaid)
	s.audit.Record(ctx, actor, model.ActionRecordPayment, po.ID.String(), po.PONumber, req)
	s.publish(ctx, events.PurchaseOrderPaid, po)
	return toPurchaseOrderResponse(*po), nil
}

func (s *purchaseOrderService) GetPurchaseOrder(ctx context.Context, actor model.Actor, id string) (PurchaseOrderResponse, error) {
	po, err := s.load(ctx, actor, id)
	if err != nil {
		return PurchaseOrderResponse{}, err
	}
	return toPurchaseOrderResponse(*po), nil
}

func (s *purchaseOrderService) ListPurchaseOrders(ctx context.Context, actor model.Actor, filter repository.PurchaseOrderListFilter) ([]PurchaseOrderResponse, int64, error) {
	if actor.IsVendor() {
		if actor.VendorID == nil {
			return nil, 0, fmt.Errorf("%w: vendor token carries no vendor_id", ErrForbidden)
		}
		filter.VendorID = actor.VendorID
	}

	orders, total, err := s.poRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchase orders: %w", err)
	}

	res := make([]PurchaseOrderResponse, 0, len(orders))
	for _, po := range orders {
		res = append(res, toPurchaseOrderResponse(po))
	}
	return res, total, nil
}

func (s *purchaseOrderService) RenderPDF(ctx context.Context, actor model.Actor, id string) (*bytes.Buffer, string, error) {
	po, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	buf, err := BuildPurchaseOrderPDF(toPurchaseOrderResponse(*po))
	if err != nil {
		return nil, "", err
	}
	return buf, po.PONumber + ".pdf", nil
}

func (s *purchaseOrderService) load(ctx context.Context, actor model.Actor, id string) (*model.PurchaseOrder, error) {
	pid, err := parseID("purchase order", id)
	if err != nil {
		return nil, err
	}
	po, err := s.poRepo.FindByID(ctx, pid)
	if err != nil {
		return nil, lookupErr("purchase order", err)
	}
	if !actor.CanActFor(po.VendorID) {
		return nil, fmt.Errorf("%w: purchase order belongs to another vendor", ErrForbidden)
	}
	return po, nil
}

func (s *purchaseOrderService) publish(ctx context.Context, eventType events.Type, po *model.PurchaseOrder) {
	payload := map[string]any{
		"purchase_order_id": po.ID.String(),
		"po_number":         po.PONumber,
		"rfp_id":            po.RFPID.String(),
		"vendor_id":         po.VendorID.String(),
		"total_amount":      po.TotalAmount.StringFixed(2),
		"payment_status":    po.PaymentStatus,
	}
	if err := s.publisher.Publish(ctx, eventType, po.RFPID.String(), payload); err != nil {
		s.logger.Warn().Err(err).Str("event", string(eventType)).Str("po_number", po.PONumber).Msg("failed to publish event")
	}
}

// --- Response mappers ---

func toPurchaseOrderResponse(po model.PurchaseOrder) PurchaseOrderResponse {
	items := make([]PurchaseOrderItemResponse, 0, len(po.Items))
	for _, it := range po.Items {
		items = append(items, PurchaseOrderItemResponse{
			Kind:          it.Kind,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice.StringFixed(2),
			TaxRate:       it.TaxRate,
			TaxableAmount: it.TaxableAmount.StringFixed(2),
			TotalWithTax:  it.TotalWithTax.StringFixed(2),
		})
	}

	res := PurchaseOrderResponse{
		ID:               po.ID,
		PONumber:         po.PONumber,
		RFPID:            po.RFPID,
		QuotationID:      po.QuotationID,
		VendorID:         po.VendorID,
		VendorName:       po.VendorName,
		CompanyName:      po.CompanyName,
		TaxCode:          po.TaxCode,
		BillingAddress:   po.BillingAddress,
		Items:            items,
		Subtotal:         po.Subtotal.StringFixed(2),
		TaxAmount:        po.TaxAmount.StringFixed(2),
		TotalAmount:      po.TotalAmount.StringFixed(2),
		PaymentStatus:    po.PaymentStatus,
		PaymentReference: po.PaymentReference,
		PaidAt:           po.PaidAt,
		IssuedBy:         po.IssuedBy,
		Note:             po.Note,
		CreatedAt:        po.CreatedAt,
	}
	if po.PaidAmount.Valid {
		paid := po.PaidAmount.Decimal.StringFixed(2)
		res.PaidAmount = &paid
	}
	if po.RFP != nil {
		res.RFPCode = po.RFP.Code
		res.RFPTitle = po.RFP.Title
	}
	return res
}
