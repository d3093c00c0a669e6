package model

import (
	"time"
)

// ProcurementStatistics aggregates RFP, quotation and purchase order activity in a time range
type ProcurementStatistics struct {
	RFPsByStatus        map[string]int64 `json:"rfps_by_status"`
	TotalRFPs           int64            `json:"total_rfps"`
	TotalQuotations     int64            `json:"total_quotations"`
	TotalPurchaseOrders int64            `json:"total_purchase_orders"`
	PurchaseValue       string           `json:"purchase_value"`        // with tax
	PurchaseValueExTax  string           `json:"purchase_value_ex_tax"` // without tax
	PaidValue           string           `json:"paid_value"`
	TopVendors          []VendorRanking  `json:"top_vendors"`
	TimeRangeStartDate  time.Time        `json:"time_range_start_date"`
	TimeRangeEndDate    time.Time        `json:"time_range_end_date"`
}

// VendorRanking ranks vendors by awarded purchase order value
type VendorRanking struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	OrderCount int64  `json:"order_count"`
	TotalValue string `json:"total_value"`
}
