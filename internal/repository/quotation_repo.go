package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuotationRepository interface {
	Create(ctx context.Context, quotation *model.Quotation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Quotation, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Quotation, error)
	FindByRFPAndVendor(ctx context.Context, rfpID, vendorID uuid.UUID) (*model.Quotation, error)
	ListByRFP(ctx context.Context, rfpID uuid.UUID) ([]model.Quotation, error)
	// SaveWithRows persists the header and replaces every item and charge row.
	SaveWithRows(ctx context.Context, quotation *model.Quotation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// UpdateStatusForRFP sets status on every quotation of the RFP except the given one.
	UpdateStatusForRFP(ctx context.Context, rfpID, exceptID uuid.UUID, status string) error
}

type quotationRepository struct {
	db *gorm.DB
}

func NewQuotationRepository(db *gorm.DB) QuotationRepository {
	return &quotationRepository{db: db}
}

func preloadQuotation(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Preload("Charges", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Preload("Vendor")
}

func (r *quotationRepository) Create(ctx context.Context, quotation *model.Quotation) error {
	return GetDB(ctx, r.db).Omit("Vendor").Create(quotation).Error
}

func (r *quotationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	var q model.Quotation
	if err := preloadQuotation(GetDB(ctx, r.db)).First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quotationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	var q model.Quotation
	if err := preloadQuotation(GetDB(ctx, r.db)).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quotationRepository) FindByRFPAndVendor(ctx context.Context, rfpID, vendorID uuid.UUID) (*model.Quotation, error) {
	var q model.Quotation
	if err := preloadQuotation(GetDB(ctx, r.db)).
		First(&q, "rfp_id = ? AND vendor_id = ?", rfpID, vendorID).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quotationRepository) ListByRFP(ctx context.Context, rfpID uuid.UUID) ([]model.Quotation, error) {
	var quotations []model.Quotation
	if err := preloadQuotation(GetDB(ctx, r.db)).
		Where("rfp_id = ?", rfpID).
		Order("created_at ASC").
		Find(&quotations).Error; err != nil {
		return nil, err
	}
	return quotations, nil
}

func (r *quotationRepository) SaveWithRows(ctx context.Context, quotation *model.Quotation) error {
	db := GetDB(ctx, r.db)

	if err := db.Omit(clause.Associations).Save(quotation).Error; err != nil {
		return err
	}
	if err := db.Where("quotation_id = ?", quotation.ID).Delete(&model.QuotationItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("quotation_id = ?", quotation.ID).Delete(&model.QuotationCharge{}).Error; err != nil {
		return err
	}

	for i := range quotation.Items {
		quotation.Items[i].ID = uuid.Nil
		quotation.Items[i].QuotationID = quotation.ID
		quotation.Items[i].Position = i
	}
	for i := range quotation.Charges {
		quotation.Charges[i].ID = uuid.Nil
		quotation.Charges[i].QuotationID = quotation.ID
		quotation.Charges[i].Position = i
	}

	if len(quotation.Items) > 0 {
		if err := db.Create(&quotation.Items).Error; err != nil {
			return err
		}
	}
	if len(quotation.Charges) > 0 {
		if err := db.Create(&quotation.Charges).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *quotationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Quotation{}).Where("id = ?", id).Update("status", status).Error
}

func (r *quotationRepository) UpdateStatusForRFP(ctx context.Context, rfpID, exceptID uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Quotation{}).
		Where("rfp_id = ? AND id <> ?", rfpID, exceptID).
		Update("status", status).Error
}
