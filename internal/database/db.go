package database

import (
	"fmt"

	"procurement/internal/model"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		log.Warn().Err(err).Msg("failed to auto-migrate models")
	}

	return db, nil
}

// Migrate creates or updates the procurement tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Vendor{},
		&model.VendorAddress{},
		&model.RFP{},
		&model.RFPProduct{},
		&model.RFPVendor{},
		&model.Quotation{},
		&model.QuotationItem{},
		&model.QuotationCharge{},
		&model.PurchaseOrder{},
		&model.PurchaseOrderItem{},
		&model.AuditLog{},
	)
}
