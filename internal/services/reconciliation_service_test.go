package services_test

import (
	"context"
	"testing"
	"time"

	"orderdesk/internal/models"
	"orderdesk/internal/repositories"
	"orderdesk/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	orders := []models.Order{
		{Status: models.StatusProcessed, Total: 0.1},
		{Status: models.StatusSubmitted, Total: 0.2},
		{Status: models.StatusDraft, Total: 10},
		{Status: models.StatusCancelled, Total: 5},
	}

	summary := services.Summarize("2024-01", orders)
	assert.Equal(t, "2024-01", summary.Month)
	assert.Equal(t, 4, summary.TotalOrders)
	assert.Equal(t, 15.3, summary.TotalAmount)
	assert.Equal(t, 1, summary.ProcessedOrders)
	assert.Equal(t, 2, summary.PendingOrders)

	empty := services.Summarize("2024-02", nil)
	assert.Zero(t, empty.TotalOrders)
	assert.Zero(t, empty.TotalAmount)
}

func TestReconciliationService_Reconcile(t *testing.T) {
	db := newStore(t)
	orders := services.NewOrderService(repositories.NewGORMOrderRepository(db), fixedNumbers(1, 2, 3, 4), nil, "orders")
	reconciliation := services.NewReconciliationService(orders)
	ctx := context.Background()

	statuses := []string{models.StatusSubmitted, models.StatusProcessed, models.StatusDraft}
	for _, status := range statuses {
		in := sampleOrder("Shop", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
		in.Status = status
		_, err := orders.CreateOrder(ctx, distributorA, in, services.SourceAuthenticated)
		require.NoError(t, err)
	}
	_, err := orders.CreateOrder(ctx, distributorB, sampleOrder("Other", time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)), services.SourceAuthenticated)
	require.NoError(t, err)

	summary, err := reconciliation.Reconcile(ctx, distributorA, "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalOrders)
	assert.Equal(t, 165.0, summary.TotalAmount)
	assert.Equal(t, 1, summary.ProcessedOrders)
	assert.Equal(t, 2, summary.PendingOrders)
	assert.Len(t, summary.Orders, 3)

	adminSummary, err := reconciliation.Reconcile(ctx, admin, "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 4, adminSummary.TotalOrders)

	february, err := reconciliation.Reconcile(ctx, distributorA, "2024-02")
	require.NoError(t, err)
	assert.Zero(t, february.TotalOrders)

	_, err = reconciliation.Reconcile(ctx, distributorA, "January")
	var vErr *services.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
