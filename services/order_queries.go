package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sgp-fichas/fichas-api/models"
	"github.com/sgp-fichas/fichas-api/utils"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500

	itemScanBatch = 200
)

var errStopScan = errors.New("stop scan")

// ListFilter narrows an order listing. Zero values mean "no filter".
type ListFilter struct {
	Skip      int
	Limit     int
	Status    string
	Client    string
	StartDate string
	EndDate   string
}

// Get loads one order
func (s *OrderService) Get(ctx context.Context, id uint) (*models.OrderResponse, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	resp := order.Materialize()
	return &resp, nil
}

// List returns orders matching filter, newest first
func (s *OrderService) List(ctx context.Context, filter ListFilter) ([]models.OrderResponse, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})

	if filter.Skip < 0 {
		return nil, &ValidationError{Field: "skip", Reason: "must not be negative"}
	}
	limit := filter.Limit
	switch {
	case limit < 0:
		return nil, &ValidationError{Field: "limit", Reason: "must not be negative"}
	case limit == 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	if filter.Status != "" {
		status, err := models.ParseStatus(filter.Status)
		if err != nil {
			return nil, &ValidationError{Field: "status", Reason: err.Error()}
		}
		query = query.Where("status = ?", status)
	}
	if client := strings.TrimSpace(filter.Client); client != "" {
		query = query.Where("LOWER(cliente) LIKE ?", "%"+strings.ToLower(client)+"%")
	}

	start, end := strings.TrimSpace(filter.StartDate), strings.TrimSpace(filter.EndDate)
	for field, value := range map[string]string{"data_inicio": start, "data_fim": end} {
		if value != "" && !utils.IsISODate(value) {
			return nil, &ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
		}
	}
	if start != "" && end != "" && start > end {
		return nil, &ValidationError{Field: "data_inicio", Reason: "must not be after data_fim"}
	}
	if start != "" {
		query = query.Where("data_entrada >= ?", start)
	}
	if end != "" {
		query = query.Where("data_entrada <= ?", end)
	}

	var orders []models.Order
	err := query.Order("data_criacao DESC").Order("id DESC").
		Offset(filter.Skip).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return materializeAll(orders), nil
}

// ListByStatus returns every order in a status. Unlike the tolerant
// normalization applied to stored data, an unknown status is rejected.
func (s *OrderService) ListByStatus(ctx context.Context, raw string) ([]models.OrderResponse, error) {
	status, err := models.ParseStatus(raw)
	if err != nil {
		return nil, &ValidationError{Field: "status", Reason: err.Error()}
	}

	var orders []models.Order
	err = s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("data_criacao DESC").Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by status: %w", err)
	}
	return materializeAll(orders), nil
}

// FindByItemID locates the order holding an item, matching explicit item ids
// first and otherwise the id synthesized from order id and position.
func (s *OrderService) FindByItemID(ctx context.Context, itemID int) (*models.OrderResponse, *models.Item, error) {
	var (
		batch []models.Order
		found *models.Order
		item  models.Item
	)
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("items IS NOT NULL AND items <> ''").
		FindInBatches(&batch, itemScanBatch, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				for pos, it := range models.DecodeItems(batch[i].Items) {
					if it.EffectiveID(batch[i].ID, pos) == itemID {
						o := batch[i]
						found, item = &o, it
						return errStopScan
					}
				}
			}
			return nil
		}).Error
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, nil, fmt.Errorf("failed to scan order items: %w", err)
	}
	if found == nil {
		return nil, nil, ErrItemNotFound
	}
	resp := found.Materialize()
	return &resp, &item, nil
}

// LatestOrderID returns the highest order id, or 0 when there are no orders
func (s *OrderService) LatestOrderID(ctx context.Context) (uint, error) {
	var latest *uint
	err := s.db.WithContext(ctx).Model(&models.Order{}).Select("MAX(id)").Scan(&latest).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read latest order id: %w", err)
	}
	if latest == nil {
		return 0, nil
	}
	return *latest, nil
}

func materializeAll(orders []models.Order) []models.OrderResponse {
	out := make([]models.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].Materialize())
	}
	return out
}
