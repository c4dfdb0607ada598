package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sgp-fichas/fichas-api/models"
	"github.com/sgp-fichas/fichas-api/realtime"
	"github.com/sgp-fichas/fichas-api/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxNumberAttempts bounds retries when a generated order number collides
const maxNumberAttempts = 5

// productionFields are the columns whose change also emits order_status_updated
var productionFields = []string{
	"status",
	"financeiro",
	"conferencia",
	"sublimacao",
	"costura",
	"expedicao",
	"pronto",
}

// Notifier accepts events for asynchronous delivery. Events passed in one
// call reach clients in order. It reports false when they were dropped.
type Notifier interface {
	Schedule(msgs ...any) bool
}

// Actor is the authenticated user behind a mutation
type Actor struct {
	UserID   int
	Username string
}

// OrderService is the only writer of order rows. It applies defaults, packs
// city and state, encodes items and announces committed changes.
type OrderService struct {
	db       *gorm.DB
	notifier Notifier
	images   ImageService
	logger   *zap.Logger
	now      func() time.Time

	numberMu   sync.Mutex
	lastNumber int64
}

var orderServiceInstance *OrderService

// NewOrderService creates an order service. notifier and images may be nil:
// events are then not published and inline images stay inline.
func NewOrderService(db *gorm.DB, notifier Notifier, images ImageService, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		db:       db,
		notifier: notifier,
		images:   images,
		logger:   logger,
		now:      time.Now,
	}
}

// InitOrderService creates the shared order service instance
func InitOrderService(db *gorm.DB, notifier Notifier, images ImageService, logger *zap.Logger) *OrderService {
	orderServiceInstance = NewOrderService(db, notifier, images, logger)
	return orderServiceInstance
}

// GetOrderService returns the shared order service instance
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService sets the order service instance (primarily for testing)
func SetOrderService(service *OrderService) {
	orderServiceInstance = service
}

// nextNumber issues a timestamp-based order number, strictly increasing within the process
func (s *OrderService) nextNumber() string {
	s.numberMu.Lock()
	defer s.numberMu.Unlock()

	candidate := s.now().Unix()
	if candidate <= s.lastNumber {
		candidate = s.lastNumber + 1
	}
	s.lastNumber = candidate
	return strconv.FormatInt(candidate, 10)
}

// Create persists a new order and publishes order_created
func (s *OrderService) Create(ctx context.Context, in OrderInput, actor Actor) (*models.OrderResponse, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var items []models.Item
	if in.Items != nil {
		items = *in.Items
	}
	items, pending, err := s.prepareItems(items)
	if err != nil {
		return nil, err
	}

	order := s.newOrder(in)
	number := trimmedOr(in.Number, "")
	generated := number == ""

	for attempt := 1; ; attempt++ {
		order.ID = 0
		order.Number = number
		if generated {
			order.Number = s.nextNumber()
		}

		var uploaded []string
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			encoded, err := models.EncodeItems(items)
			if err != nil {
				return err
			}
			order.Items = encoded
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			if len(pending) == 0 {
				return nil
			}

			stored := cloneItems(items)
			uploaded, err = s.storeImages(ctx, order.ID, stored, pending)
			if err != nil {
				return err
			}
			if order.Items, err = models.EncodeItems(stored); err != nil {
				return err
			}
			return tx.Model(&order).UpdateColumn("items", order.Items).Error
		})
		if err == nil {
			break
		}

		s.discardImages(ctx, uploaded)
		if isUniqueViolation(err) {
			if generated && attempt < maxNumberAttempts {
				s.logger.Debug("generated order number collided, retrying", zap.String("numero", order.Number))
				continue
			}
			return nil, ErrOrderNumberConflict
		}
		s.logger.Error("failed to create order", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderSave, err)
	}

	resp := order.Materialize()
	s.logger.Info("order created", zap.Uint("order_id", order.ID), zap.String("numero", order.Number))
	s.publish(actor, realtime.OrderEvent(realtime.EventOrderCreated, resp))
	return &resp, nil
}

// newOrder builds a row from input with defaults for everything absent
func (s *OrderService) newOrder(in OrderInput) models.Order {
	entryDate := trimmedOr(in.EntryDate, utils.Today(s.now()))
	priority, _ := parsePriority(valueOr(in.Priority, ""))

	order := models.Order{
		EntryDate:      entryDate,
		DeliveryDate:   trimmedOr(in.DeliveryDate, entryDate),
		Note:           optional(in.Note),
		Priority:       priority,
		Status:         models.NormalizeStatus(valueOr(in.Status, "")),
		Client:         valueOr(in.Client, ""),
		ClientPhone:    valueOr(in.ClientPhone, ""),
		CityState:      models.EncodeCityState(valueOr(in.City, ""), valueOr(in.State, "")),
		TotalValue:     trimmedOr(in.TotalValue, models.ZeroMoney),
		FreightValue:   trimmedOr(in.FreightValue, models.ZeroMoney),
		ItemsValue:     trimmedOr(in.ItemsValue, models.ZeroMoney),
		PaymentType:    valueOr(in.PaymentType, ""),
		PaymentNote:    optional(in.PaymentNote),
		ShippingMethod: optional(in.ShippingMethod),
		PrintMachine:   optional(in.PrintMachine),
		PrintedAt:      optional(in.PrintedAt),
	}
	if in.ShippingMethodID != nil {
		order.ShippingMethodID = int(*in.ShippingMethodID)
	}
	for dst, src := range map[*bool]*bool{
		&order.Financial: in.Financial,
		&order.Checked:   in.Checked,
		&order.Printing:  in.Printing,
		&order.Sewing:    in.Sewing,
		&order.Shipping:  in.Shipping,
		&order.Ready:     in.Ready,
	} {
		if src != nil {
			*dst = *src
		}
	}
	return order
}

// Update applies the supplied fields of in to order id and publishes
// order_updated, plus order_status_updated when a production field changed.
func (s *OrderService) Update(ctx context.Context, id uint, in OrderInput, actor Actor) (*models.OrderResponse, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		items   []models.Item
		pending []pendingImage
	)
	if in.Items != nil {
		var err error
		if items, pending, err = s.prepareItems(*in.Items); err != nil {
			return nil, err
		}
	}

	var (
		order    models.Order
		changes  changeSet
		previous []string
		uploaded []string
		removed  []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		changes = s.applyUpdate(&order, in)

		if in.Items != nil {
			previous = storedImageKeys(models.DecodeItems(order.Items))
			stored := cloneItems(items)
			var err error
			if uploaded, err = s.storeImages(ctx, order.ID, stored, pending); err != nil {
				return err
			}
			encoded, err := models.EncodeItems(stored)
			if err != nil {
				return err
			}
			changes.setString("items", &order.Items, encoded)
			removed = subtractKeys(previous, storedImageKeys(stored))
		}

		return tx.Save(&order).Error
	})
	if err != nil {
		s.discardImages(ctx, subtractKeys(uploaded, previous))
		switch {
		case errors.Is(err, ErrOrderNotFound):
			return nil, ErrOrderNotFound
		case isUniqueViolation(err):
			return nil, ErrOrderNumberConflict
		}
		s.logger.Error("failed to update order", zap.Uint("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderSave, err)
	}

	s.discardImages(ctx, removed)

	resp := order.Materialize()
	s.logger.Info("order updated", zap.Uint("order_id", id), zap.Strings("changed", changes.fields()))
	events := []realtime.Event{realtime.OrderEvent(realtime.EventOrderUpdated, resp)}
	if changes.any(productionFields...) {
		events = append(events, realtime.OrderEvent(realtime.EventOrderStatusUpdated, resp))
	}
	s.publish(actor, events...)
	return &resp, nil
}

// applyUpdate copies supplied fields onto order and records which columns changed
func (s *OrderService) applyUpdate(order *models.Order, in OrderInput) changeSet {
	changes := changeSet{}

	if in.Number != nil {
		number := trimmedOr(in.Number, order.Number)
		if number == "" {
			number = s.nextNumber()
		}
		changes.setString("numero", &order.Number, number)
	}
	if in.EntryDate != nil {
		changes.setString("data_entrada", &order.EntryDate, trimmedOr(in.EntryDate, order.EntryDate))
	}
	if in.DeliveryDate != nil {
		changes.setString("data_entrega", &order.DeliveryDate, trimmedOr(in.DeliveryDate, order.EntryDate))
	}
	if order.DeliveryDate == "" {
		changes.setString("data_entrega", &order.DeliveryDate, order.EntryDate)
	}
	if in.Priority != nil {
		priority, _ := parsePriority(*in.Priority)
		changes.setString("prioridade", (*string)(&order.Priority), string(priority))
	}
	if in.Status != nil {
		changes.setString("status", (*string)(&order.Status), string(models.NormalizeStatus(*in.Status)))
	}

	if in.City != nil || in.State != nil {
		city, state := models.DecodeCityState(order.CityState)
		if in.City != nil {
			city = *in.City
		}
		newState := ""
		if state != nil {
			newState = *state
		}
		if in.State != nil {
			newState = *in.State
		}
		changes.setString("cidade_cliente", &order.CityState, models.EncodeCityState(city, newState))
	}

	for column, field := range map[string]struct {
		dst *string
		src *string
	}{
		"cliente":          {&order.Client, in.Client},
		"telefone_cliente": {&order.ClientPhone, in.ClientPhone},
		"tipo_pagamento":   {&order.PaymentType, in.PaymentType},
	} {
		if field.src != nil {
			changes.setString(column, field.dst, *field.src)
		}
	}

	for column, field := range map[string]struct {
		dst *string
		src *string
	}{
		"valor_total": {&order.TotalValue, in.TotalValue},
		"valor_frete": {&order.FreightValue, in.FreightValue},
		"valor_itens": {&order.ItemsValue, in.ItemsValue},
	} {
		if field.src != nil {
			changes.setString(column, field.dst, trimmedOr(field.src, models.ZeroMoney))
		}
	}

	for column, field := range map[string]struct {
		dst **string
		src *string
	}{
		"observacao":                {&order.Note, in.Note},
		"obs_pagamento":             {&order.PaymentNote, in.PaymentNote},
		"forma_envio":               {&order.ShippingMethod, in.ShippingMethod},
		"sublimacao_maquina":        {&order.PrintMachine, in.PrintMachine},
		"sublimacao_data_impressao": {&order.PrintedAt, in.PrintedAt},
	} {
		if field.src != nil {
			changes.setOptional(column, field.dst, optional(field.src))
		}
	}

	if in.ShippingMethodID != nil {
		changes.setInt("forma_envio_id", &order.ShippingMethodID, int(*in.ShippingMethodID))
	}

	for column, field := range map[string]struct {
		dst *bool
		src *bool
	}{
		"financeiro":  {&order.Financial, in.Financial},
		"conferencia": {&order.Checked, in.Checked},
		"sublimacao":  {&order.Printing, in.Printing},
		"costura":     {&order.Sewing, in.Sewing},
		"expedicao":   {&order.Shipping, in.Shipping},
		"pronto":      {&order.Ready, in.Ready},
	} {
		if field.src != nil {
			changes.setBool(column, field.dst, *field.src)
		}
	}

	return changes
}

// Delete removes order id and publishes order_deleted with the id only
func (s *OrderService) Delete(ctx context.Context, id uint, actor Actor) error {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		return tx.Delete(&order).Error
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		s.logger.Error("failed to delete order", zap.Uint("order_id", id), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrOrderSave, err)
	}

	s.discardImages(ctx, storedImageKeys(models.DecodeItems(order.Items)))
	s.logger.Info("order deleted", zap.Uint("order_id", id))
	s.publish(actor, realtime.OrderDeletedEvent(id))
	return nil
}

// DeleteAll removes every order and publishes one order_deleted without an id
func (s *OrderService) DeleteAll(ctx context.Context, actor Actor) (int64, error) {
	var (
		orders  []models.Order
		deleted int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "items").Find(&orders).Error; err != nil {
			return err
		}
		result := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Order{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		s.logger.Error("failed to delete all orders", zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrOrderSave, err)
	}

	for _, o := range orders {
		s.discardImages(ctx, storedImageKeys(models.DecodeItems(o.Items)))
	}
	s.logger.Info("all orders deleted", zap.Int64("deleted", deleted))
	s.publish(actor, realtime.OrderDeletedEvent(0))
	return deleted, nil
}

// publish schedules events as one unit so they reach clients in the given order
func (s *OrderService) publish(actor Actor, events ...realtime.Event) {
	if s.notifier == nil {
		return
	}
	msgs := make([]any, len(events))
	for i, ev := range events {
		msgs[i] = ev.WithActor(actor.UserID, actor.Username)
	}
	s.notifier.Schedule(msgs...)
}

// changeSet records the columns an update actually modified
type changeSet map[string]struct{}

func (c changeSet) setString(column string, dst *string, value string) {
	if *dst != value {
		*dst = value
		c[column] = struct{}{}
	}
}

func (c changeSet) setOptional(column string, dst **string, value *string) {
	current, next := "", ""
	if *dst != nil {
		current = **dst
	}
	if value != nil {
		next = *value
	}
	if current != next || (*dst == nil) != (value == nil) {
		*dst = value
		c[column] = struct{}{}
	}
}

func (c changeSet) setInt(column string, dst *int, value int) {
	if *dst != value {
		*dst = value
		c[column] = struct{}{}
	}
}

func (c changeSet) setBool(column string, dst *bool, value bool) {
	if *dst != value {
		*dst = value
		c[column] = struct{}{}
	}
}

func (c changeSet) any(columns ...string) bool {
	for _, column := range columns {
		if _, ok := c[column]; ok {
			return true
		}
	}
	return false
}

func (c changeSet) fields() []string {
	out := make([]string, 0, len(c))
	for column := range c {
		out = append(out, column)
	}
	return out
}
