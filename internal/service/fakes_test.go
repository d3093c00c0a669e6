package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"procurement/internal/model"
	"procurement/internal/quotation"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the Postgres repositories.
type memStore struct {
	mu         sync.Mutex
	vendors    map[uuid.UUID]model.Vendor
	rfps       map[uuid.UUID]model.RFP
	quotations map[uuid.UUID]model.Quotation
	pos        map[uuid.UUID]model.PurchaseOrder
	audits     []model.AuditLog
	seq        map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		vendors:    make(map[uuid.UUID]model.Vendor),
		rfps:       make(map[uuid.UUID]model.RFP),
		quotations: make(map[uuid.UUID]model.Quotation),
		pos:        make(map[uuid.UUID]model.PurchaseOrder),
		seq:        make(map[string]int),
	}
}

func (s *memStore) next(prefix string) string {
	s.seq[prefix]++
	return fmt.Sprintf("%s%05d", prefix, s.seq[prefix])
}

func cloneRFP(r model.RFP) model.RFP {
	r.Products = append([]model.RFPProduct(nil), r.Products...)
	r.Vendors = append([]model.RFPVendor(nil), r.Vendors...)
	return r
}

func cloneQuotation(q model.Quotation) model.Quotation {
	q.Items = append([]model.QuotationItem(nil), q.Items...)
	q.Charges = append([]model.QuotationCharge(nil), q.Charges...)
	return q
}

// fakeTx runs fn inline. Nothing is rolled back on error.
type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- vendors ---

type fakeVendorRepo struct{ s *memStore }

func (r fakeVendorRepo) Create(_ context.Context, v *model.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	for i := range v.Addresses {
		v.Addresses[i].ID = uuid.New()
		v.Addresses[i].VendorID = v.ID
	}
	v.CreatedAt = time.Now()
	stored := *v
	stored.Addresses = append([]model.VendorAddress(nil), v.Addresses...)
	r.s.vendors[v.ID] = stored
	return nil
}

func (r fakeVendorRepo) Update(_ context.Context, v *model.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.vendors[v.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *v
	stored.Addresses = old.Addresses
	r.s.vendors[v.ID] = stored
	return nil
}

func (r fakeVendorRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.vendors[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.vendors, id)
	return nil
}

func (r fakeVendorRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vendors[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	v.Addresses = append([]model.VendorAddress(nil), v.Addresses...)
	return &v, nil
}

func (r fakeVendorRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Vendor, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.s.vendors[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r fakeVendorRepo) List(_ context.Context, filter repository.VendorListFilter) ([]model.Vendor, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Vendor{}
	for _, v := range r.s.vendors {
		if filter.ActiveOnly && !v.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(v.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r fakeVendorRepo) DeleteAddressesByVendorID(_ context.Context, vendorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v := r.s.vendors[vendorID]
	v.Addresses = nil
	r.s.vendors[vendorID] = v
	return nil
}

func (r fakeVendorRepo) CreateAddresses(_ context.Context, addresses []model.VendorAddress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range addresses {
		addresses[i].ID = uuid.New()
		v := r.s.vendors[addresses[i].VendorID]
		v.Addresses = append(v.Addresses, addresses[i])
		r.s.vendors[addresses[i].VendorID] = v
	}
	return nil
}

// --- rfps ---

type fakeRFPRepo struct{ s *memStore }

func (r fakeRFPRepo) Create(_ context.Context, rfp *model.RFP) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rfp.ID == uuid.Nil {
		rfp.ID = uuid.New()
	}
	for i := range rfp.Products {
		rfp.Products[i].ID = uuid.New()
		rfp.Products[i].RFPID = rfp.ID
	}
	rfp.CreatedAt = time.Now()
	r.s.rfps[rfp.ID] = cloneRFP(*rfp)
	return nil
}

func (r fakeRFPRepo) Update(_ context.Context, rfp *model.RFP) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.rfps[rfp.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored := cloneRFP(*rfp)
	stored.Products = old.Products
	stored.Vendors = old.Vendors
	r.s.rfps[rfp.ID] = stored
	return nil
}

func (r fakeRFPRepo) FindByID(_ context.Context, id uuid.UUID) (*model.RFP, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.rfps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	rfp := cloneRFP(stored)
	for i := range rfp.Vendors {
		if v, ok := r.s.vendors[rfp.Vendors[i].VendorID]; ok {
			rfp.Vendors[i].Vendor = &v
		}
	}
	return &rfp, nil
}

func (r fakeRFPRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RFP, error) {
	return r.FindByID(ctx, id)
}

func (r fakeRFPRepo) List(_ context.Context, filter repository.RFPListFilter) ([]model.RFP, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.RFP{}
	for _, rfp := range r.s.rfps {
		if filter.Status != "" && rfp.Status != filter.Status {
			continue
		}
		if filter.HideDrafts && rfp.Status == model.RFPStatusDraft {
			continue
		}
		if filter.VendorID != nil && !rfp.HasVendor(*filter.VendorID) {
			continue
		}
		out = append(out, cloneRFP(rfp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, int64(len(out)), nil
}

func (r fakeRFPRepo) ReplaceProducts(_ context.Context, rfpID uuid.UUID, products []model.RFPProduct) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rfp := r.s.rfps[rfpID]
	for i := range products {
		if products[i].ID == uuid.Nil {
			products[i].ID = uuid.New()
		}
		products[i].RFPID = rfpID
		products[i].Position = i
	}
	rfp.Products = append([]model.RFPProduct(nil), products...)
	r.s.rfps[rfpID] = rfp
	return nil
}

func (r fakeRFPRepo) AddVendors(_ context.Context, invites []model.RFPVendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range invites {
		rfp := r.s.rfps[inv.RFPID]
		if rfp.HasVendor(inv.VendorID) {
			continue
		}
		inv.ID = uuid.New()
		inv.InvitedAt = time.Now()
		rfp.Vendors = append(rfp.Vendors, inv)
		r.s.rfps[inv.RFPID] = rfp
	}
	return nil
}

func (r fakeRFPRepo) NextCode(_ context.Context, prefix string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.next(prefix), nil
}

// --- quotations ---

type fakeQuotationRepo struct{ s *memStore }

func (r fakeQuotationRepo) Create(_ context.Context, q *model.Quotation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	for i := range q.Items {
		q.Items[i].ID = uuid.New()
		q.Items[i].QuotationID = q.ID
		q.Items[i].Position = i
	}
	for i := range q.Charges {
		q.Charges[i].ID = uuid.New()
		q.Charges[i].QuotationID = q.ID
		q.Charges[i].Position = i
	}
	q.CreatedAt = time.Now()
	stored := cloneQuotation(*q)
	stored.Vendor = nil
	r.s.quotations[q.ID] = stored
	return nil
}

func (r fakeQuotationRepo) load(q model.Quotation) *model.Quotation {
	out := cloneQuotation(q)
	if v, ok := r.s.vendors[out.VendorID]; ok {
		out.Vendor = &v
	}
	return &out
}

func (r fakeQuotationRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Quotation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.load(q), nil
}

func (r fakeQuotationRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	return r.FindByID(ctx, id)
}

func (r fakeQuotationRepo) FindByRFPAndVendor(_ context.Context, rfpID, vendorID uuid.UUID) (*model.Quotation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.quotations {
		if q.RFPID == rfpID && q.VendorID == vendorID {
			return r.load(q), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeQuotationRepo) ListByRFP(_ context.Context, rfpID uuid.UUID) ([]model.Quotation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Quotation{}
	for _, q := range r.s.quotations {
		if q.RFPID == rfpID {
			out = append(out, *r.load(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r fakeQuotationRepo) SaveWithRows(_ context.Context, q *model.Quotation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range q.Items {
		q.Items[i].ID = uuid.New()
		q.Items[i].QuotationID = q.ID
		q.Items[i].Position = i
	}
	for i := range q.Charges {
		q.Charges[i].ID = uuid.New()
		q.Charges[i].QuotationID = q.ID
		q.Charges[i].Position = i
	}
	q.UpdatedAt = time.Now()
	stored := cloneQuotation(*q)
	stored.Vendor = nil
	r.s.quotations[q.ID] = stored
	return nil
}

func (r fakeQuotationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := r.s.quotations[id]
	q.Status = status
	r.s.quotations[id] = q
	return nil
}

func (r fakeQuotationRepo) UpdateStatusForRFP(_ context.Context, rfpID, exceptID uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, q := range r.s.quotations {
		if q.RFPID == rfpID && id != exceptID {
			q.Status = status
			r.s.quotations[id] = q
		}
	}
	return nil
}

// --- purchase orders ---

type fakePORepo struct{ s *memStore }

func (r fakePORepo) Create(_ context.Context, po *model.PurchaseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	for i := range po.Items {
		po.Items[i].ID = uuid.New()
		po.Items[i].PurchaseOrderID = po.ID
	}
	po.CreatedAt = time.Now()
	stored := *po
	stored.Items = append([]model.PurchaseOrderItem(nil), po.Items...)
	stored.RFP = nil
	r.s.pos[po.ID] = stored
	return nil
}

func (r fakePORepo) FindByID(_ context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	po, ok := r.s.pos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	po.Items = append([]model.PurchaseOrderItem(nil), po.Items...)
	if rfp, ok := r.s.rfps[po.RFPID]; ok {
		po.RFP = &rfp
	}
	return &po, nil
}

func (r fakePORepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	return r.FindByID(ctx, id)
}

func (r fakePORepo) FindByRFPID(_ context.Context, rfpID uuid.UUID) (*model.PurchaseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, po := range r.s.pos {
		if po.RFPID == rfpID {
			return &po, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakePORepo) List(_ context.Context, filter repository.PurchaseOrderListFilter) ([]model.PurchaseOrder, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.PurchaseOrder{}
	for _, po := range r.s.pos {
		if filter.VendorID != nil && po.VendorID != *filter.VendorID {
			continue
		}
		if filter.PaymentStatus != "" && po.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, po)
	}
	return out, int64(len(out)), nil
}

func (r fakePORepo) Update(_ context.Context, po *model.PurchaseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.pos[po.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *po
	stored.Items = old.Items
	stored.RFP = nil
	r.s.pos[po.ID] = stored
	return nil
}

func (r fakePORepo) NextNumber(_ context.Context, prefix string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.next(prefix), nil
}

// --- audit ---

type fakeAuditRepo struct {
	s   *memStore
	err error
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if r.err != nil {
		return r.err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, filter repository.AuditListFilter) ([]model.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.AuditLog{}
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		a := r.s.audits[i]
		if filter.Action != "" && a.Action != filter.Action {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

// --- notifier ---

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string][][]byte
	owners   map[string][]uuid.UUID
}

func (n *recordingNotifier) BroadcastVendorUpdate(rfpID string, vendorID uuid.UUID, message []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[string][][]byte)
		n.owners = make(map[string][]uuid.UUID)
	}
	n.messages[rfpID] = append(n.messages[rfpID], message)
	n.owners[rfpID] = append(n.owners[rfpID], vendorID)
}

func (n *recordingNotifier) count(rfpID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages[rfpID])
}

// --- fixtures ---

var (
	buyer = model.Actor{ID: "buyer-1", Role: model.RoleManager}
	admin = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
)

func vendorActor(id uuid.UUID) model.Actor {
	return model.Actor{ID: "vendor-user-" + id.String()[:8], Role: model.RoleVendor, VendorID: &id}
}

func testPricing() Pricing {
	return NewPricing(quotation.NewEngine(nil), "18", decimal.RequireFromString("0.01"))
}

func (s *memStore) addVendor(name string, active bool) model.Vendor {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := model.Vendor{
		ID:          uuid.New(),
		Name:        name,
		CompanyName: name + " Pvt Ltd",
		TaxCode:     "27AAACR5055K1Z" + string(rune('A'+len(s.vendors))),
		IsActive:    active,
		Addresses: []model.VendorAddress{
			{ID: uuid.New(), AddressType: model.AddressTypeBilling, FullAddress: name + " House, Pune", IsDefault: true},
		},
	}
	s.vendors[v.ID] = v
	return v
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
