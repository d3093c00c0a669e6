package repository

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"

	"gorm.io/gorm"
)

// PurchaseTotals are aggregate purchase order values as decimal text.
type PurchaseTotals struct {
	Count      int64
	Value      string
	ValueExTax string
	PaidValue  string
}

type StatisticsRepository interface {
	CountRFPsByStatus(ctx context.Context, start, end time.Time) (map[string]int64, error)
	CountQuotations(ctx context.Context, start, end time.Time) (int64, error)
	GetPurchaseTotals(ctx context.Context, start, end time.Time) (PurchaseTotals, error)
	GetTopVendors(ctx context.Context, start, end time.Time, limit int) ([]model.VendorRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountRFPsByStatus(ctx context.Context, start, end time.Time) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := GetDB(ctx, r.db).Model(&model.RFP{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count rfps: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *statisticsRepository) CountQuotations(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Quotation{}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count quotations: %w", err)
	}
	return count, nil
}

func (r *statisticsRepository) GetPurchaseTotals(ctx context.Context, start, end time.Time) (PurchaseTotals, error) {
	var result struct {
		Count      int64
		Value      string
		ValueExTax string
		PaidValue  string
	}
	if err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).
		Select(`COUNT(*) as count,
			COALESCE(CAST(SUM(total_amount) AS TEXT), '0') as value,
			COALESCE(CAST(SUM(subtotal) AS TEXT), '0') as value_ex_tax,
			COALESCE(CAST(SUM(CASE WHEN payment_status = ? THEN paid_amount ELSE 0 END) AS TEXT), '0') as paid_value`, model.PaymentPaid).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Scan(&result).Error; err != nil {
		return PurchaseTotals{}, fmt.Errorf("failed to sum purchase orders: %w", err)
	}
	return PurchaseTotals(result), nil
}

func (r *statisticsRepository) GetTopVendors(ctx context.Context, start, end time.Time, limit int) ([]model.VendorRanking, error) {
	var rankings []model.VendorRanking
	if err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).
		Select(`CAST(vendor_id AS TEXT) as vendor_id, MAX(vendor_name) as vendor_name,
			COUNT(*) as order_count, CAST(SUM(total_amount) AS TEXT) as total_value`).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Group("vendor_id").
		Order("SUM(total_amount) DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top vendors: %w", err)
	}
	return rankings, nil
}
