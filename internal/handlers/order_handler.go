package handlers

import (
	"strings"
	"time"

	"orderdesk/internal/middleware"
	"orderdesk/internal/models"
	"orderdesk/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orders         *services.OrderService
	provisioning   *services.ProvisioningService
	reconciliation *services.ReconciliationService
	validate       *validator.Validate
	storeTimeout   time.Duration
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *services.OrderService, provisioning *services.ProvisioningService, reconciliation *services.ReconciliationService, storeTimeout time.Duration) *OrderHandler {
	return &OrderHandler{
		orders:         orders,
		provisioning:   provisioning,
		reconciliation: reconciliation,
		validate:       validator.New(),
		storeTimeout:   storeTimeout,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. The public
// submission route is guarded by publicLimiter only; every other route
// requires authRequired.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, authRequired, publicLimiter fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/public", publicLimiter, h.HandlePublicCreateOrder)
	orderRoutes.Post("/", authRequired, h.HandleCreateOrder)
	orderRoutes.Get("/", authRequired, h.HandleGetOrders)
	// Fixed paths go before /:id.
	orderRoutes.Get("/all", authRequired, middleware.RequireRole(models.RoleAdmin), h.HandleGetAllOrders)
	orderRoutes.Get("/reconciliation/:month", authRequired, h.HandleReconciliation)
	orderRoutes.Get("/:id", authRequired, h.HandleGetOrderByID)
	orderRoutes.Put("/:id", authRequired, h.HandleUpdateOrder)
	orderRoutes.Delete("/:id", authRequired, h.HandleDeleteOrder)
}

// OrderItemRequest is one line item of an order request. A totalPrice sent
// by the client is accepted but ignored.
type OrderItemRequest struct {
	ProductName  string  `json:"productName" validate:"required,max=255"`
	ProductCode  string  `json:"productCode" validate:"max=100"`
	ProductRange string  `json:"productRange" validate:"max=100"`
	Packaging    string  `json:"packaging" validate:"max=100"`
	Quantity     int     `json:"quantity" validate:"gt=0"`
	UnitPrice    float64 `json:"unitPrice" validate:"gte=0"`
	TotalPrice   float64 `json:"totalPrice"`
	Notes        string  `json:"notes"`
}

// CreateOrderRequest represents the request body for a new order.
// Dates are YYYY-MM-DD or RFC 3339.
type CreateOrderRequest struct {
	CustomerName    string             `json:"customerName" validate:"required,max=255"`
	CustomerCode    string             `json:"customerCode" validate:"max=100"`
	CustomerEmail   string             `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   string             `json:"customerPhone" validate:"max=50"`
	CustomerAddress string             `json:"customerAddress"`
	OrderDate       string             `json:"orderDate" validate:"required"`
	DeliveryDate    string             `json:"deliveryDate"`
	Tax             float64            `json:"tax" validate:"gte=0"`
	Discount        float64            `json:"discount" validate:"gte=0"`
	Status          string             `json:"status" validate:"max=32"`
	Notes           string             `json:"notes"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// PublicOrderRequest is an unauthenticated submission naming its distributor.
type PublicOrderRequest struct {
	CreateOrderRequest
	DistributorName    string `json:"distributorName" validate:"required,max=255"`
	DistributorEmail   string `json:"distributorEmail" validate:"omitempty,email"`
	DistributorPhone   string `json:"distributorPhone" validate:"max=50"`
	DistributorAddress string `json:"distributorAddress"`
}

// UpdateOrderRequest is a partial update. Omitted fields keep their value;
// items, when present, replace the stored set.
type UpdateOrderRequest struct {
	CustomerName    *string            `json:"customerName" validate:"omitempty,max=255"`
	CustomerCode    *string            `json:"customerCode" validate:"omitempty,max=100"`
	CustomerEmail   *string            `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   *string            `json:"customerPhone" validate:"omitempty,max=50"`
	CustomerAddress *string            `json:"customerAddress"`
	OrderDate       *string            `json:"orderDate"`
	DeliveryDate    *string            `json:"deliveryDate"`
	Tax             *float64           `json:"tax" validate:"omitempty,gte=0"`
	Discount        *float64           `json:"discount" validate:"omitempty,gte=0"`
	Status          *string            `json:"status" validate:"omitempty,max=32"`
	Notes           *string            `json:"notes"`
	Items           []OrderItemRequest `json:"items" validate:"omitempty,dive"`
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, &services.ValidationError{Fields: map[string]string{
		field: "must be a date formatted as YYYY-MM-DD or RFC 3339",
	}}
}

func toItemInputs(items []OrderItemRequest) []services.ItemInput {
	if items == nil {
		return nil
	}
	out := make([]services.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, services.ItemInput{
			ProductName:  it.ProductName,
			ProductCode:  it.ProductCode,
			ProductRange: it.ProductRange,
			Packaging:    it.Packaging,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Notes:        it.Notes,
		})
	}
	return out
}

func (r CreateOrderRequest) toInput() (services.OrderInput, error) {
	orderDate, err := parseDate("orderDate", r.OrderDate)
	if err != nil {
		return services.OrderInput{}, err
	}
	var deliveryDate *time.Time
	if strings.TrimSpace(r.DeliveryDate) != "" {
		d, err := parseDate("deliveryDate", r.DeliveryDate)
		if err != nil {
			return services.OrderInput{}, err
		}
		deliveryDate = &d
	}
	return services.OrderInput{
		CustomerName:    r.CustomerName,
		CustomerCode:    r.CustomerCode,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		CustomerAddress: r.CustomerAddress,
		OrderDate:       orderDate,
		DeliveryDate:    deliveryDate,
		Tax:             r.Tax,
		Discount:        r.Discount,
		Status:          r.Status,
		Notes:           r.Notes,
		Items:           toItemInputs(r.Items),
	}, nil
}

func (r UpdateOrderRequest) toPatch() (services.OrderPatch, error) {
	patch := services.OrderPatch{
		CustomerName:    r.CustomerName,
		CustomerCode:    r.CustomerCode,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		CustomerAddress: r.CustomerAddress,
		Tax:             r.Tax,
		Discount:        r.Discount,
		Status:          r.Status,
		Notes:           r.Notes,
		Items:           toItemInputs(r.Items),
	}
	if r.OrderDate != nil {
		d, err := parseDate("orderDate", *r.OrderDate)
		if err != nil {
			return patch, err
		}
		patch.OrderDate = &d
	}
	if r.DeliveryDate != nil {
		d, err := parseDate("deliveryDate", *r.DeliveryDate)
		if err != nil {
			return patch, err
		}
		patch.DeliveryDate = &d
	}
	return patch, nil
}

func (h *OrderHandler) listFilter(c *fiber.Ctx) services.ListFilter {
	return services.ListFilter{
		Status: c.Query("status"),
		Month:  c.Query("month"),
	}
}

func createdOrder(c *fiber.Ctx, order *models.Order) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order": order,
		"items": order.Items,
	})
}

// HandlePublicCreateOrder records an order for the named distributor,
// provisioning its account on first use.
func (h *OrderHandler) HandlePublicCreateOrder(c *fiber.Ctx) error {
	var req PublicOrderRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}
	in, err := req.toInput()
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	order, err := h.provisioning.SubmitPublicOrder(ctx, services.DistributorContact{
		DistributorName: req.DistributorName,
		Email:           req.DistributorEmail,
		Phone:           req.DistributorPhone,
		Address:         req.DistributorAddress,
	}, in)
	if err != nil {
		return respondError(c, err)
	}
	return createdOrder(c, order)
}

// HandleCreateOrder creates an order owned by the caller.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	var req CreateOrderRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}
	in, err := req.toInput()
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	order, err := h.orders.CreateOrder(ctx, identity, in, services.SourceAuthenticated)
	if err != nil {
		return respondError(c, err)
	}
	return createdOrder(c, order)
}

// HandleGetOrders lists the orders visible to the caller.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, identity, h.listFilter(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetAllOrders lists every distributor's orders.
func (h *OrderHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	orders, err := h.orders.ListAllOrders(ctx, identity, h.listFilter(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, identity, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrder applies a partial update to an order.
func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	var req UpdateOrderRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}
	patch, err := req.toPatch()
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	order, err := h.orders.UpdateOrder(ctx, identity, c.Params("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleDeleteOrder removes an order and its items.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	if err := h.orders.DeleteOrder(ctx, identity, c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order deleted successfully",
	})
}

// HandleReconciliation summarizes one month of the caller's orders.
func (h *OrderHandler) HandleReconciliation(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	summary, err := h.reconciliation.Reconcile(ctx, identity, c.Params("month"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}
