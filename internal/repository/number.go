package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// nextNumber returns prefix followed by the next 5 digit sequence for the day.
// It takes a transaction scoped advisory lock on the prefix, so it refuses to run
// outside RunInTx.
func nextNumber(ctx context.Context, rootDB *gorm.DB, model any, column, prefix string) (string, error) {
	if !InTx(ctx) {
		return "", ErrNoTransaction
	}
	db := GetDB(ctx, rootDB)

	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return "", fmt.Errorf("failed to lock number sequence: %w", err)
	}

	var count int64
	if err := db.Unscoped().Model(model).
		Where(column+" LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}
