package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/shopspring/decimal"
)

const topVendorLimit = 5

type StatisticsService interface {
	GetProcurementStatistics(ctx context.Context, startDate, endDate time.Time) (model.ProcurementStatistics, error)
}

type statisticsService struct {
	statsRepo repository.StatisticsRepository
}

func NewStatisticsService(statsRepo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{statsRepo: statsRepo}
}

// GetProcurementStatistics aggregates RFPs, quotations and purchase orders created in the range
func (s *statisticsService) GetProcurementStatistics(ctx context.Context, startDate, endDate time.Time) (model.ProcurementStatistics, error) {
	if endDate.Before(startDate) {
		return model.ProcurementStatistics{}, validationErr("end_date must not be before start_date")
	}

	res := model.ProcurementStatistics{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	byStatus, err := s.statsRepo.CountRFPsByStatus(ctx, startDate, endDate)
	if err != nil {
		return res, err
	}
	res.RFPsByStatus = byStatus
	for _, n := range byStatus {
		res.TotalRFPs += n
	}

	if res.TotalQuotations, err = s.statsRepo.CountQuotations(ctx, startDate, endDate); err != nil {
		return res, err
	}

	totals, err := s.statsRepo.GetPurchaseTotals(ctx, startDate, endDate)
	if err != nil {
		return res, err
	}
	res.TotalPurchaseOrders = totals.Count
	res.PurchaseValue = money(totals.Value)
	res.PurchaseValueExTax = money(totals.ValueExTax)
	res.PaidValue = money(totals.PaidValue)

	top, err := s.statsRepo.GetTopVendors(ctx, startDate, endDate, topVendorLimit)
	if err != nil {
		return res, fmt.Errorf("failed to rank vendors: %w", err)
	}
	for i := range top {
		top[i].TotalValue = money(top[i].TotalValue)
	}
	res.TopVendors = top

	return res, nil
}

// money normalises a decimal aggregate to 2 dp, treating NULL or garbage as zero.
func money(raw string) string {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero.StringFixed(2)
	}
	return d.StringFixed(2)
}
