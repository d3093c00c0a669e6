package repository

import (
	"context"

	"procurement/internal/model"
	"procurement/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseOrderListFilter struct {
	PaymentStatus string     // UNPAID, PAID or empty for all
	PONumber      string     // partial match on po_number
	VendorID      *uuid.UUID // restricts to one vendor
	Page          int
	Limit         int
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *model.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	FindByRFPID(ctx context.Context, rfpID uuid.UUID) (*model.PurchaseOrder, error)
	List(ctx context.Context, filter PurchaseOrderListFilter) ([]model.PurchaseOrder, int64, error)
	Update(ctx context.Context, po *model.PurchaseOrder) error
	NextNumber(ctx context.Context, prefix string) (string, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func preloadPurchaseOrder(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") })
}

func (r *purchaseOrderRepository) Create(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Omit("RFP").Create(po).Error
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := preloadPurchaseOrder(GetDB(ctx, r.db)).Preload("RFP").First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := preloadPurchaseOrder(GetDB(ctx, r.db)).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) FindByRFPID(ctx context.Context, rfpID uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := preloadPurchaseOrder(GetDB(ctx, r.db)).First(&po, "rfp_id = ?", rfpID).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, filter PurchaseOrderListFilter) ([]model.PurchaseOrder, int64, error) {
	var orders []model.PurchaseOrder
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.PaymentStatus != "" {
			q = q.Where("payment_status = ?", filter.PaymentStatus)
		}
		if filter.PONumber != "" {
			q = q.Where("po_number ILIKE ?", "%"+filter.PONumber+"%")
		}
		if filter.VendorID != nil {
			q = q.Where("vendor_id = ?", *filter.VendorID)
		}
		return q
	}

	if err := scope(db.Model(&model.PurchaseOrder{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Offset(filter.Page, filter.Limit)
	if err := scope(preloadPurchaseOrder(db.Model(&model.PurchaseOrder{}))).
		Order("created_at DESC").Offset(offset).Limit(filter.Limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *purchaseOrderRepository) Update(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(po).Error
}

func (r *purchaseOrderRepository) NextNumber(ctx context.Context, prefix string) (string, error) {
	return nextNumber(ctx, r.db, &model.PurchaseOrder{}, "po_number", prefix)
}
