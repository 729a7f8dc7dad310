package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderdesk/internal/metrics"
	"orderdesk/internal/models"
	"orderdesk/internal/repositories"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// maxOrderNumberAttempts bounds regeneration after an order number clash.
const maxOrderNumberAttempts = 5

// Order event routing keys.
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderDeleted = "order.deleted"
)

// Order sources, recorded on events and metrics.
const (
	SourceAuthenticated = "authenticated"
	SourcePublic        = "public"
)

// EventPublisher delivers order lifecycle events to a broker.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderEvent is the payload published for every order lifecycle change.
type OrderEvent struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	Source      string    `json:"source,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// ItemInput is one requested line item. Its total is always derived from
// quantity and unit price.
type ItemInput struct {
	ProductName  string
	ProductCode  string
	ProductRange string
	Packaging    string
	Quantity     int
	UnitPrice    float64
	Notes        string
}

// OrderInput holds the fields of a new order.
type OrderInput struct {
	CustomerName    string
	CustomerCode    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	OrderDate       time.Time
	DeliveryDate    *time.Time
	Tax             float64
	Discount        float64
	Status          string
	Notes           string
	Items           []ItemInput
}

// OrderPatch holds a partial update. Nil fields keep their stored value; a
// nil Items keeps the stored item set, a non-nil one replaces it entirely.
type OrderPatch struct {
	CustomerName    *string
	CustomerCode    *string
	CustomerEmail   *string
	CustomerPhone   *string
	CustomerAddress *string
	OrderDate       *time.Time
	DeliveryDate    *time.Time
	Tax             *float64
	Discount        *float64
	Status          *string
	Notes           *string
	Items           []ItemInput
}

// ListFilter narrows ListOrders. Month is YYYY-MM.
type ListFilter struct {
	Status string
	Month  string
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo repositories.OrderRepository
	numbers   *OrderNumberGenerator
	publisher EventPublisher
	exchange  string
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are emitted.
func NewOrderService(orderRepo repositories.OrderRepository, numbers *OrderNumberGenerator, publisher EventPublisher, exchange string) *OrderService {
	if numbers == nil {
		numbers = NewOrderNumberGenerator(DefaultOrderPrefix)
	}
	return &OrderService{
		orderRepo: orderRepo,
		numbers:   numbers,
		publisher: publisher,
		exchange:  exchange,
	}
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// buildItems derives each line total and returns the items with their subtotal.
func buildItems(in []ItemInput) ([]models.OrderItem, decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, decimal.Zero, invalidField("items", "at least one item is required")
	}
	items := make([]models.OrderItem, 0, len(in))
	subtotal := decimal.Zero
	for i, it := range in {
		if strings.TrimSpace(it.ProductName) == "" {
			return nil, decimal.Zero, invalidField(fmt.Sprintf("items[%d].productName", i), "is required")
		}
		if it.Quantity <= 0 {
			return nil, decimal.Zero, invalidField(fmt.Sprintf("items[%d].quantity", i), "must be greater than 0")
		}
		if it.UnitPrice < 0 {
			return nil, decimal.Zero, invalidField(fmt.Sprintf("items[%d].unitPrice", i), "must not be negative")
		}
		lineTotal := money(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductName:  strings.TrimSpace(it.ProductName),
			ProductCode:  it.ProductCode,
			ProductRange: it.ProductRange,
			Packaging:    it.Packaging,
			Quantity:     it.Quantity,
			UnitPrice:    money(it.UnitPrice).InexactFloat64(),
			TotalPrice:   lineTotal.InexactFloat64(),
			Notes:        it.Notes,
		})
	}
	return items, subtotal, nil
}

func validateOrderInput(in OrderInput) error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return invalidField("customerName", "is required")
	}
	if in.OrderDate.IsZero() {
		return invalidField("orderDate", "is required")
	}
	_, _, err := buildItems(in.Items)
	return err
}

// applyTotals sets subtotal and total = subtotal + tax - discount.
func applyTotals(order *models.Order, subtotal decimal.Decimal) error {
	if order.Tax < 0 {
		return invalidField("tax", "must not be negative")
	}
	if order.Discount < 0 {
		return invalidField("discount", "must not be negative")
	}
	tax, discount := money(order.Tax), money(order.Discount)
	order.Subtotal = subtotal.InexactFloat64()
	order.Tax = tax.InexactFloat64()
	order.Discount = discount.InexactFloat64()
	order.Total = subtotal.Add(tax).Sub(discount).InexactFloat64()
	return nil
}

// CreateOrder validates the input, computes totals, assigns an order number
// and persists the order with its items as one unit.
func (s *OrderService) CreateOrder(ctx context.Context, caller models.Identity, in OrderInput, source string) (*models.Order, error) {
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}
	items, subtotal, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}

	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = models.StatusSubmitted
	}
	order := &models.Order{
		UserID:          caller.UserID,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerCode:    in.CustomerCode,
		CustomerEmail:   in.CustomerEmail,
		CustomerPhone:   in.CustomerPhone,
		CustomerAddress: in.CustomerAddress,
		OrderDate:       in.OrderDate.UTC(),
		DeliveryDate:    utcPtr(in.DeliveryDate),
		Tax:             in.Tax,
		Discount:        in.Discount,
		Status:          status,
		Notes:           in.Notes,
		Items:           items,
	}
	if err := applyTotals(order, subtotal); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		order.ID = ""
		order.OrderNumber = s.numbers.Next()
		err = s.orderRepo.Create(ctx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, repositories.ErrDuplicate) || attempt == maxOrderNumberAttempts {
			return nil, fmt.Errorf("failed to create order in repository: %w", err)
		}
		log.Warn().Str("order_number", order.OrderNumber).Int("attempt", attempt).Msg("order number collision, regenerating")
	}

	metrics.OrderCreated(source)
	s.publish(EventOrderCreated, order, source)
	return order, nil
}

// GetOrder returns the order if it exists and is visible to the caller.
func (s *OrderService) GetOrder(ctx context.Context, caller models.Identity, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id, caller.OwnerScope())
	if err != nil {
		return nil, notFoundOr(err)
	}
	return order, nil
}

// ListOrders returns the orders visible to the caller, newest first.
func (s *OrderService) ListOrders(ctx context.Context, caller models.Identity, filter ListFilter) ([]models.Order, error) {
	repoFilter := repositories.OrderFilter{
		OwnerID: caller.OwnerScope(),
		Status:  strings.TrimSpace(filter.Status),
	}
	if filter.Month != "" {
		from, to, err := ParseMonth(filter.Month)
		if err != nil {
			return nil, err
		}
		repoFilter.From, repoFilter.To = &from, &to
	}
	return s.orderRepo.List(ctx, repoFilter)
}

// ListAllOrders is the unscoped listing reserved for administrators.
func (s *OrderService) ListAllOrders(ctx context.Context, caller models.Identity, filter ListFilter) ([]models.Order, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.ListOrders(ctx, caller, filter)
}

// UpdateOrder applies a partial update. Supplied items replace the stored set
// and the subtotal is recomputed from them; otherwise the stored subtotal is
// kept and only the total follows the new tax and discount.
func (s *OrderService) UpdateOrder(ctx context.Context, caller models.Identity, id string, patch OrderPatch) (*models.Order, error) {
	var newItems []models.OrderItem
	var newSubtotal decimal.Decimal
	if patch.Items != nil {
		var err error
		newItems, newSubtotal, err = buildItems(patch.Items)
		if err != nil {
			return nil, err
		}
	}
	if patch.CustomerName != nil && strings.TrimSpace(*patch.CustomerName) == "" {
		return nil, invalidField("customerName", "must not be empty")
	}
	if patch.Status != nil && strings.TrimSpace(*patch.Status) == "" {
		return nil, invalidField("status", "must not be empty")
	}
	if patch.Tax != nil && *patch.Tax < 0 {
		return nil, invalidField("tax", "must not be negative")
	}
	if patch.Discount != nil && *patch.Discount < 0 {
		return nil, invalidField("discount", "must not be negative")
	}

	order, err := s.orderRepo.Update(ctx, id, caller.OwnerScope(), func(o *models.Order) (bool, error) {
		setString(&o.CustomerName, patch.CustomerName)
		setString(&o.CustomerCode, patch.CustomerCode)
		setString(&o.CustomerEmail, patch.CustomerEmail)
		setString(&o.CustomerPhone, patch.CustomerPhone)
		setString(&o.CustomerAddress, patch.CustomerAddress)
		setString(&o.Status, patch.Status)
		setString(&o.Notes, patch.Notes)
		if patch.OrderDate != nil {
			o.OrderDate = patch.OrderDate.UTC()
		}
		if patch.DeliveryDate != nil {
			o.DeliveryDate = utcPtr(patch.DeliveryDate)
		}
		if patch.Tax != nil {
			o.Tax = *patch.Tax
		}
		if patch.Discount != nil {
			o.Discount = *patch.Discount
		}

		subtotal := money(o.Subtotal)
		if patch.Items != nil {
			o.Items = newItems
			subtotal = newSubtotal
		}
		return patch.Items != nil, applyTotals(o, subtotal)
	})
	if err != nil {
		return nil, notFoundOr(err)
	}

	s.publish(EventOrderUpdated, order, "")
	return order, nil
}

// DeleteOrder removes the order and its items.
func (s *OrderService) DeleteOrder(ctx context.Context, caller models.Identity, id string) error {
	if err := s.orderRepo.Delete(ctx, id, caller.OwnerScope()); err != nil {
		return notFoundOr(err)
	}
	s.publish(EventOrderDeleted, &models.Order{ID: id}, "")
	return nil
}

// ParseMonth parses YYYY-MM into the half-open UTC range [first day, first day of next month).
func ParseMonth(month string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01", strings.TrimSpace(month))
	if err != nil {
		return time.Time{}, time.Time{}, invalidField("month", "must be formatted as YYYY-MM")
	}
	return from, from.AddDate(0, 1, 0), nil
}

func (s *OrderService) publish(routingKey string, order *models.Order, source string) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		Total:       order.Total,
		Source:      source,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("failed to marshal order event")
		return
	}
	// The order is already committed; a broker failure must not fail the request.
	if err := s.publisher.Publish(s.exchange, routingKey, body); err != nil {
		log.Warn().Err(err).Str("order_id", order.ID).Str("event", routingKey).Msg("failed to publish order event")
	}
}

func notFoundOr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
