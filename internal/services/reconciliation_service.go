package services

import (
	"context"
	"strings"

	"orderdesk/internal/models"

	"github.com/shopspring/decimal"
)

// ReconciliationSummary aggregates one month of orders visible to the caller.
type ReconciliationSummary struct {
	Month           string         `json:"month"`
	Orders          []models.Order `json:"orders"`
	TotalOrders     int            `json:"totalOrders"`
	TotalAmount     float64        `json:"totalAmount"`
	ProcessedOrders int            `json:"processedOrders"`
	PendingOrders   int            `json:"pendingOrders"`
}

// ReconciliationService derives monthly summaries. Nothing it computes is stored.
type ReconciliationService struct {
	orders *OrderService
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(orders *OrderService) *ReconciliationService {
	return &ReconciliationService{orders: orders}
}

// Reconcile summarizes the caller's orders dated within month (YYYY-MM).
// Admins see every distributor's orders.
func (s *ReconciliationService) Reconcile(ctx context.Context, caller models.Identity, month string) (*ReconciliationSummary, error) {
	month = strings.TrimSpace(month)
	if _, _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrders(ctx, caller, ListFilter{Month: month})
	if err != nil {
		return nil, err
	}
	return Summarize(month, orders), nil
}

// Summarize computes the reconciliation aggregates over orders.
func Summarize(month string, orders []models.Order) *ReconciliationSummary {
	summary := &ReconciliationSummary{
		Month:       month,
		Orders:      orders,
		TotalOrders: len(orders),
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(decimal.NewFromFloat(o.Total))
		switch o.Status {
		case models.StatusProcessed:
			summary.ProcessedOrders++
		case models.StatusSubmitted, models.StatusDraft:
			summary.PendingOrders++
		}
	}
	summary.TotalAmount = total.Round(2).InexactFloat64()
	return summary
}
