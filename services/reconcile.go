package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sgp-fichas/fichas-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// legacyCityState matches values packed by older tools as "City - UF"
var legacyCityState = regexp.MustCompile(`^\s*(.*\S)\s+-\s+([A-Za-z]{2})\s*$`)

// ReconcileResult counts the rows rewritten by Reconcile
type ReconcileResult struct {
	CityState int
	Status    int
}

// Reconcile rewrites rows stored by other tools into the canonical form:
// "City - UF" becomes "City||UF" and status spellings become canonical.
// Columns are updated directly so timestamps and hooks are left alone.
func Reconcile(ctx context.Context, db *gorm.DB, logger *zap.Logger) (ReconcileResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	type row struct {
		ID        uint
		CityState string `gorm:"column:cidade_cliente"`
		Status    string
	}

	var rows []row
	err := db.WithContext(ctx).Model(&models.Order{}).
		Select("id", "cidade_cliente", "status").
		Order("id").
		Scan(&rows).Error
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to load orders for reconciliation: %w", err)
	}

	var result ReconcileResult
	for _, r := range rows {
		updates := map[string]any{}
		if packed, ok := reconcileCityState(r.CityState); ok {
			updates["cidade_cliente"] = packed
			result.CityState++
		}
		if canonical := models.NormalizeStatus(r.Status); string(canonical) != r.Status {
			updates["status"] = string(canonical)
			result.Status++
		}
		if len(updates) == 0 {
			continue
		}
		err := db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ?", r.ID).
			UpdateColumns(updates).Error
		if err != nil {
			return result, fmt.Errorf("failed to reconcile order %d: %w", r.ID, err)
		}
	}

	if result.CityState > 0 || result.Status > 0 {
		logger.Info("reconciled legacy order data",
			zap.Int("city_state", result.CityState),
			zap.Int("status", result.Status))
	}
	return result, nil
}

// reconcileCityState converts a legacy value; ok is false when nothing changes
func reconcileCityState(value string) (string, bool) {
	if value == "" || strings.Contains(value, models.StateSeparator) {
		return "", false
	}
	m := legacyCityState.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	return models.EncodeCityState(m[1], strings.ToUpper(m[2])), true
}
