package service

import (
	"context"
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
)

const dateLayout = "2006-01-02"

// --- DTOs ---

type RFPProductPayload struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Quantity    any    `json:"quantity" binding:"required" swaggertype:"number"` // whole units; "3" and "1,000" accepted
}

type CreateRFPRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	DueDate     string              `json:"due_date"` // YYYY-MM-DD
	Products    []RFPProductPayload `json:"products"`
	VendorIDs   []string            `json:"vendor_ids"`
}

type UpdateRFPRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"` // "" clears the due date
}

type ReplaceProductsRequest struct {
	Products []RFPProductPayload `json:"products" binding:"required"`
}

type InviteVendorsRequest struct {
	VendorIDs []string `json:"vendor_ids" binding:"required"`
}

type RFPProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Position    int       `json:"position"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Unit        string    `json:"unit"`
	Quantity    int64     `json:"quantity"`
}

type RFPVendorResponse struct {
	VendorID  uuid.UUID `json:"vendor_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	InvitedAt time.Time `json:"invited_at"`
}

type RFPResponse struct {
	ID          uuid.UUID            `json:"id"`
	Code        string               `json:"code"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	DueDate     string               `json:"due_date,omitempty"`
	Status      string               `json:"status"`
	CreatedBy   string               `json:"created_by"`
	Products    []RFPProductResponse `json:"products"`
	Vendors     []RFPVendorResponse  `json:"vendors"`
	SubmittedAt *time.Time           `json:"submitted_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// --- Interface ---

type RFPService interface {
	CreateRFP(ctx context.Context, actor model.Actor, req CreateRFPRequest) (RFPResponse, error)
	UpdateRFP(ctx context.Context, actor model.Actor, id string, req UpdateRFPRequest) (RFPResponse, error)
	ReplaceProducts(ctx context.Context, actor model.Actor, id string, req ReplaceProductsRequest) (RFPResponse, error)
	InviteVendors(ctx context.Context, actor model.Actor, id string, req InviteVendorsRequest) (RFPResponse, error)
	SubmitRFP(ctx context.Context, actor model.Actor, id string) (RFPResponse, error)
	CancelRFP(ctx context.Context, actor model.Actor, id string) (RFPResponse, error)
	GetRFP(ctx context.Context, actor model.Actor, id string) (RFPResponse, error)
	ListRFPs(ctx context.Context, actor model.Actor, filter repository.RFPListFilter) ([]RFPResponse, int64, error)
}

// --- Implementation ---

type rfpService struct {
	rfpRepo       repository.RFPRepository
	vendorRepo    repository.VendorRepository
	quotationRepo repository.QuotationRepository
	txManager     repository.TransactionManager
	pricing       Pricing
	cache         cache.Cache
	publisher     events.Publisher
	metrics       *metrics.Metrics
	audit         AuditService
	logger        zerolog.Logger
	live          *LiveDrafts
}

type RFPServiceDeps struct {
	RFPRepo       repository.RFPRepository
	VendorRepo    repository.VendorRepository
	QuotationRepo repository.QuotationRepository
	TxManager     repository.TransactionManager
	Pricing       Pricing
	Cache         cache.Cache
	Publisher     events.Publisher
	Metrics       *metrics.Metrics
	Audit         AuditService
	Logger        zerolog.Logger
	Live          *LiveDrafts
}

func NewRFPService(deps RFPServiceDeps) RFPService {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Live == nil {
		deps.Live = NewLiveDrafts()
	}
	return &rfpService{
		rfpRepo:       deps.RFPRepo,
		vendorRepo:    deps.VendorRepo,
		quotationRepo: deps.QuotationRepo,
		txManager:     deps.TxManager,
		pricing:       deps.Pricing,
		cache:         deps.Cache,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		audit:         deps.Audit,
		logger:        deps.Logger.With().Str("component", "rfp").Logger(),
		live:          deps.Live,
	}
}

// --- Validation helpers ---

func validateProducts(products []RFPProductPayload) ([]model.RFPProduct, error) {
	out := make([]model.RFPProduct, 0, len(products))
	for i, p := range products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, validationErr("products[%d]: name is required", i)
		}
		qty := quotation.SanitizeQuantity(p.Quantity)
		if qty <= 0 {
			return nil, validationErr("products[%d]: quantity must be greater than 0", i)
		}
		if !quotation.SanitizePrice(p.Quantity).Equal(decimal.NewFromInt(qty)) {
			return nil, validationErr("products[%d]: quantity must be a whole number", i)
		}
		out = append(out, model.RFPProduct{
			Position:    i,
			Name:        name,
			Description: p.Description,
			Unit:        strings.TrimSpace(p.Unit),
			Quantity:    qty,
		})
	}
	return out, nil
}

func parseDueDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, validationErr("due_date must use the YYYY-MM-DD format")
	}
	return &t, nil
}

// activeVendorInvites resolves vendor IDs to invites, rejecting unknown or inactive vendors.
func (s *rfpService) activeVendorInvites(ctx context.Context, rfpID uuid.UUID, ids []string) ([]model.RFPVendor, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	uids := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		uid, err := parseID("vendor", raw)
		if err != nil {
			return nil, err
		}
		if !seen[uid] {
			seen[uid] = true
			uids = append(uids, uid)
		}
	}

	vendors, err := s.vendorRepo.FindByIDs(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendors: %w", err)
	}
	active := make(map[uuid.UUID]bool, len(vendors))
	for _, v := range vendors {
		active[v.ID] = v.IsActive
	}

	invites := make([]model.RFPVendor, 0, len(uids))
	for _, uid := range uids {
		isActive, found := active[uid]
		if !found {
			return nil, fmt.Errorf("vendor %s %w", uid, ErrNotFound)
		}
		if !isActive {
			return nil, validationErr("vendor %s is inactive", uid)
		}
		invites = append(invites, model.RFPVendor{RFPID: rfpID, VendorID: uid})
	}
	return invites, nil
}

// --- Operations ---

func (s *rfpService) CreateRFP(ctx context.Context, actor model.Actor, req CreateRFPRequest) (RFPResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return RFPResponse{}, validationErr("title is required")
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return RFPResponse{}, err
	}
	products, err := validateProducts(req.Products)
	if err != nil {
		return RFPResponse{}, err
	}

	var rfpID uuid.UUID
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		code, err := s.rfpRepo.NextCode(txCtx, "RFP-"+time.Now().Format("20060102")+"-")
		if err != nil {
			return fmt.Errorf("failed to generate rfp code: %w", err)
		}

		rfp := &model.RFP{
			Code:        code,
			Title:       title,
			Description: req.Description,
			DueDate:     dueDate,
			Status:      model.RFPStatusDraft,
			CreatedBy:   actor.ID,
			Products:    products,
		}
		if err := s.rfpRepo.Create(txCtx, rfp); err != nil {
			return fmt.Errorf("failed to create rfp: %w", err)
		}
		rfpID = rfp.ID

		if len(req.VendorIDs) > 0 {
			invites, err := s.activeVendorInvites(txCtx, rfp.ID, req.VendorIDs)
			if err != nil {
				return err
			}
			if err := s.rfpRepo.AddVendors(txCtx, invites); err != nil {
				return fmt.Errorf("failed to invite vendors: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return RFPResponse{}, err
	}

	rfp, err := s.rfpRepo.FindByID(ctx, rfpID)
	if err != nil {
		return RFPResponse{}, lookupErr("rfp", err)
	}
	s.audit.Record(ctx, actor, model.ActionCreateRFP, rfp.ID.String(), rfp.Code, req)
	return toRFPResponse(*rfp), nil
}

func (s *rfpService) UpdateRFP(ctx context.Context, actor model.Actor, id string, req UpdateRFPRequest) (RFPResponse, error) {
	uid, err := parseID("rfp", id)
	if err != nil {
		return RFPResponse{}, err
	}

	var rfp *model.RFP
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rfp, err = s.rfpRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if rfp.Status != model.RFPStatusDraft && rfp.Status != model.RFPStatusSubmitted {
			return fmt.Errorf("%w: rfp in status %s cannot be edited", ErrInvalidTransition, rfp.Status)
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return validationErr("title cannot be empty")
			}
			rfp.Title = title
		}
		if req.Description != nil {
			rfp.Description = *req.Description
		}
		if req.DueDate != nil {
			dueDate, err := parseDueDate(*req.DueDate)
			if err != nil {
				return err
			}
			rfp.DueDate = dueDate
		}

		if err := s.rfpRepo.Update(txCtx, rfp); err != nil {
			return fmt.Errorf("failed to update rfp: %w", err)
		}
		return nil
	})
	if err != nil {
		return RFPResponse{}, err
	}

	s.audit.Record(ctx, actor, model.ActionUpdateRFP, rfp.ID.String(), rfp.Code, req)
	return toRFPResponse(*rfp), nil
}

// ReplaceProducts swaps the requested product list and rebuilds the line items of every
// quotation already started for the RFP. Charges survive the rebuild.
func (s *rfpService) ReplaceProducts(ctx context.Context, actor model.Actor, id string, req ReplaceProductsRequest) (RFPResponse, error) {
	uid, err := parseID("rfp", id)
	if err != nil {
		return RFPResponse{}, err
	}
	products, err := validateProducts(req.Products)
	if err != nil {
		return RFPResponse{}, err
	}

	reseeded := 0
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rfp, err := s.rfpRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if rfp.Status != model.RFPStatusDraft {
			return fmt.Errorf("%w: products can only change while the rfp is DRAFT", ErrInvalidTransition)
		}

		if err := s.rfpRepo.ReplaceProducts(txCtx, uid, products); err != nil {
			return fmt.Errorf("failed to replace products: %w", err)
		}

		quotations, err := s.quotationRepo.ListByRFP(txCtx, uid)
		if err != nil {
			return fmt.Errorf("failed to load quotations: %w", err)
		}
		requested := requestedProducts(products)
		for i := range quotations {
			q := &quotations[i]
			draft := quotation.NewDraft(s.pricing.Engine, toEngineQuotation(*q), s.pricing.Epsilon)
			total, _ := draft.Reseed(requested, s.pricing.DefaultRate)
			applyEngineQuotation(q, draft.Quotation(), total)
			if err := s.quotationRepo.SaveWithRows(txCtx, q); err != nil {
				return fmt.Errorf("failed to reseed quotation %s: %w", q.ID, err)
			}
			reseeded++
		}
		return nil
	})
	if err != nil {
		return RFPResponse{}, err
	}

	s.live.DropRFP(uid)
	if err := s.cache.Delete(ctx, cache.ComparisonKey(uid.String())); err != nil {
		s.logger.Warn().Err(err).Str("rfp_id", uid.String()).Msg("failed to invalidate comparison cache")
	}

	rfp, err := s.rfpRepo.FindByID(ctx, uid)
	if err != nil {
		return RFPResponse{}, lookupErr("rfp", err)
	}
	s.audit.Record(ctx, actor, model.ActionReplaceRFPProduct, rfp.ID.String(), rfp.Code, map[string]any{
		"products":            req.Products,
		"quotations_reseeded": reseeded,
	})
	return toRFPResponse(*rfp), nil
}

func (s *rfpService) InviteVendors(ctx context.Context, actor model.Actor, id string, req InviteVendorsRequest) (RFPResponse, error) {
	uid, err := parseID("rfp", id)
	if err != nil {
		return RFPResponse{}, err
	}
	if len(req.VendorIDs) == 0 {
		return RFPResponse{}, validationErr("vendor_ids must not be empty")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rfp, err := s.rfpRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if rfp.Status != model.RFPStatusDraft && rfp.Status != model.RFPStatusSubmitted {
			return fmt.Errorf("%w: vendors cannot be invited to a %s rfp", ErrInvalidTransition, rfp.Status)
		}
		invites, err := s.activeVendorInvites(txCtx, uid, req.VendorIDs)
		if err != nil {
			return err
		}
		if err := s.rfpRepo.AddVendors(txCtx, invites); err != nil {
			return fmt.Errorf("failed to invite vendors: %w", err)
		}
		return nil
	})
	if err != nil {
		return RFPResponse{}, err
	}

	rfp, err := s.rfpRepo.FindByID(ctx, uid)
	if err != nil {
		return RFPResponse{}, lookupErr("rfp", err)
	}
	s.audit.Record(ctx, actor, model.ActionInviteVendor, rfp.ID.String(), rfp.Code, req)
	return toRFPResponse(*rfp), nil
}

func (s *rfpService) SubmitRFP(ctx context.Context, actor model.Actor, id string) (RFPResponse, error) {
	rfp, err := s.transition(ctx, id, model.RFPStatusSubmitted, func(rfp *model.RFP) error {
		if len(rfp.Products) == 0 {
			return validationErr("rfp must request at least one product before submission")
		}
		if len(rfp.Vendors) == 0 {
			return validationErr("rfp must invite at least one vendor before submission")
		}
		now := time.Now()
		rfp.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return RFPResponse{}, err
	}

	s.audit.Record(ctx, actor, model.ActionSubmitRFP, rfp.ID.String(), rfp.Code, nil)
	s.publish(ctx, events.RFPSubmitted, rfp)
	return toRFPResponse(*rfp), nil
}

func (s *rfpService) CancelRFP(ctx context.Context, actor model.Actor, id string) (RFPResponse, error) {
	rfp, err := s.transition(ctx, id, model.RFPStatusCancelled, nil)
	if err != nil {
		return RFPResponse{}, err
	}
	s.live.DropRFP(rfp.ID)

	s.audit.Record(ctx, actor, model.ActionCancelRFP, rfp.ID.String(), rfp.Code, nil)
	s.publish(ctx, events.RFPCancelled, rfp)
	return toRFPResponse(*rfp), nil
}

// transition moves an RFP to status under a row lock. check may veto or amend the row.
func (s *rfpService) transition(ctx context.Context, id, to string, check func(rfp *model.RFP) error) (*model.RFP, error) {
	uid, err := parseID("rfp", id)
	if err != nil {
		return nil, err
	}

	var rfp *model.RFP
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rfp, err = s.rfpRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return lookupErr("rfp", err)
		}
		if !model.CanTransitionRFP(rfp.Status, to) {
			return transitionErr("rfp", rfp.Status, to)
		}
		if check != nil {
			if err := check(rfp); err != nil {
				return err
			}
		}
		rfp.Status = to
		if err := s.rfpRepo.Update(txCtx, rfp); err != nil {
			return fmt.Errorf("failed to update rfp status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitioned(to)
	return rfp, nil
}

func (s *rfpService) publish(ctx context.Context, eventType events.Type, rfp *model.RFP) {
	payload := map[string]any{
		"rfp_id":  rfp.ID.String(),
		"code":    rfp.Code,
		"status":  rfp.Status,
		"vendors": len(rfp.Vendors),
	}
	if err := s.publisher.Publish(ctx, eventType, rfp.ID.String(), payload); err != nil {
		s.logger.Warn().Err(err).Str("event", string(eventType)).Str("rfp_id", rfp.ID.String()).Msg("failed to publish event")
	}
}

func (s *rfpService) GetRFP(ctx context.Context, actor model.Actor, id string) (RFPResponse, error) {
	uid, err := parseID("rfp", id)
	if err != nil {
		return RFPResponse{}, err
	}
	rfp, err := s.rfpRepo.FindByID(ctx, uid)
	if err != nil {
		return RFPResponse{}, lookupErr("rfp", err)
	}
	if err := checkVendorAccess(actor, rfp); err != nil {
		return RFPResponse{}, err
	}
	return toRFPResponse(*rfp), nil
}

func (s *rfpService) ListRFPs(ctx context.Context, actor model.Actor, filter repository.RFPListFilter) ([]RFPResponse, int64, error) {
	if actor.IsVendor() {
		if actor.VendorID == nil {
			return nil, 0, fmt.Errorf("%w: vendor token carries no vendor_id", ErrForbidden)
		}
		filter.VendorID = actor.VendorID
		filter.HideDrafts = true
	}

	rfps, total, err := s.rfpRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch rfps: %w", err)
	}

	res := make([]RFPResponse, 0, len(rfps))
	for _, r := range rfps {
		res = append(res, toRFPResponse(r))
	}
	return res, total, nil
}

// checkVendorAccess restricts vendor users to RFPs they were invited to and that left DRAFT.
func checkVendorAccess(actor model.Actor, rfp *model.RFP) error {
	if !actor.IsVendor() {
		return nil
	}
	if actor.VendorID == nil || !rfp.HasVendor(*actor.VendorID) || rfp.Status == model.RFPStatusDraft {
		return fmt.Errorf("%w: vendor is not invited to this rfp", ErrForbidden)
	}
	return nil
}

// --- Response mappers ---

func toRFPResponse(r model.RFP) RFPResponse {
	products := make([]RFPProductResponse, 0, len(r.Products))
	for _, p := range r.Products {
		products = append(products, RFPProductResponse{
			ID:          p.ID,
			Position:    p.Position,
			Name:        p.Name,
			Description: p.Description,
			Unit:        p.Unit,
			Quantity:    p.Quantity,
		})
	}

	vendors := make([]RFPVendorResponse, 0, len(r.Vendors))
	for _, v := range r.Vendors {
		item := RFPVendorResponse{VendorID: v.VendorID, InvitedAt: v.InvitedAt}
		if v.Vendor != nil {
			item.Name = v.Vendor.Name
			item.Email = v.Vendor.Email
		}
		vendors = append(vendors, item)
	}

	res := RFPResponse{
		ID:          r.ID,
		Code:        r.Code,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		CreatedBy:   r.CreatedBy,
		Products:    products,
		Vendors:     vendors,
		SubmittedAt: r.SubmittedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.DueDate != nil {
		res.DueDate = r.DueDate.Format(dateLayout)
	}
	return res
}
