package repository

import (
	"context"
	"time"

	"procurement/internal/model"
	"procurement/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RFPListFilter struct {
	Status   string
	Search   string     // partial match on code or title
	VendorID *uuid.UUID // only RFPs this vendor was invited to
	// HideDrafts drops DRAFT rows, used for vendor users.
	HideDrafts bool
	Page       int
	Limit      int
}

type RFPRepository interface {
	Create(ctx context.Context, rfp *model.RFP) error
	Update(ctx context.Context, rfp *model.RFP) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RFP, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RFP, error)
	List(ctx context.Context, filter RFPListFilter) ([]model.RFP, int64, error)
	ReplaceProducts(ctx context.Context, rfpID uuid.UUID, products []model.RFPProduct) error
	AddVendors(ctx context.Context, invites []model.RFPVendor) error
	NextCode(ctx context.Context, prefix string) (string, error)
}

type rfpRepository struct {
	db *gorm.DB
}

func NewRFPRepository(db *gorm.DB) RFPRepository {
	return &rfpRepository{db: db}
}

func preloadRFP(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Products", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Preload("Vendors", func(q *gorm.DB) *gorm.DB { return q.Order("invited_at ASC") }).
		Preload("Vendors.Vendor")
}

func (r *rfpRepository) Create(ctx context.Context, rfp *model.RFP) error {
	return GetDB(ctx, r.db).Create(rfp).Error
}

// Update saves the RFP header only. Products and vendors have their own methods.
func (r *rfpRepository) Update(ctx context.Context, rfp *model.RFP) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(rfp).Error
}

func (r *rfpRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RFP, error) {
	var rfp model.RFP
	if err := preloadRFP(GetDB(ctx, r.db)).First(&rfp, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rfp, nil
}

func (r *rfpRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RFP, error) {
	var rfp model.RFP
	if err := preloadRFP(GetDB(ctx, r.db)).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rfp, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rfp, nil
}

func (r *rfpRepository) List(ctx context.Context, filter RFPListFilter) ([]model.RFP, int64, error) {
	var rfps []model.RFP
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("rfps.status = ?", filter.Status)
		}
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			q = q.Where("rfps.code ILIKE ? OR rfps.title ILIKE ?", like, like)
		}
		if filter.HideDrafts {
			q = q.Where("rfps.status <> ?", model.RFPStatusDraft)
		}
		if filter.VendorID != nil {
			q = q.Where("EXISTS (SELECT 1 FROM rfp_vendors rv WHERE rv.rfp_id = rfps.id AND rv.vendor_id = ?)", *filter.VendorID)
		}
		return q
	}

	if err := scope(db.Model(&model.RFP{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Offset(filter.Page, filter.Limit)
	if err := scope(preloadRFP(db.Model(&model.RFP{}))).
		Order("rfps.created_at DESC").Offset(offset).Limit(filter.Limit).
		Find(&rfps).Error; err != nil {
		return nil, 0, err
	}

	return rfps, total, nil
}

func (r *rfpRepository) ReplaceProducts(ctx context.Context, rfpID uuid.UUID, products []model.RFPProduct) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("rfp_id = ?", rfpID).Delete(&model.RFPProduct{}).Error; err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}
	// IDs are set here because callers reseed quotations from them
	for i := range products {
		if products[i].ID == uuid.Nil {
			products[i].ID = uuid.New()
		}
		products[i].RFPID = rfpID
		products[i].Position = i
	}
	return db.Create(&products).Error
}

func (r *rfpRepository) AddVendors(ctx context.Context, invites []model.RFPVendor) error {
	if len(invites) == 0 {
		return nil
	}
	now := time.Now()
	for i := range invites {
		if invites[i].InvitedAt.IsZero() {
			invites[i].InvitedAt = now
		}
	}
	return GetDB(ctx, r.db).Omit("Vendor").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&invites).Error
}

func (r *rfpRepository) NextCode(ctx context.Context, prefix string) (string, error) {
	return nextNumber(ctx, r.db, &model.RFP{}, "code", prefix)
}
