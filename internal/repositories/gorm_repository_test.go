package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderdesk/internal/database"
	"orderdesk/internal/models"
	"orderdesk/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func newStore(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newOrder(number, owner string, orderDate time.Time, items ...string) *models.Order {
	order := &models.Order{
		OrderNumber:  number,
		UserID:       owner,
		CustomerName: "Corner Shop",
		OrderDate:    orderDate,
		Status:       models.StatusSubmitted,
	}
	for _, name := range items {
		order.Items = append(order.Items, models.OrderItem{ProductName: name, Quantity: 1, UnitPrice: 1, TotalPrice: 1})
	}
	return order
}

func TestGORMUserRepository(t *testing.T) {
	repo := repositories.NewGORMUserRepository(newStore(t))
	ctx := context.Background()

	user := &models.User{Username: "acme", Password: "hash", Role: models.RoleDistributor}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)

	byName, err := repo.GetByUsername(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", byID.Username)

	err = repo.Create(ctx, &models.User{Username: "acme", Password: "hash", Role: models.RoleDistributor})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	n, err := repo.CountByRole(ctx, models.RoleDistributor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repo.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGORMOrderRepository_CreateAndGet(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(newStore(t))
	ctx := context.Background()

	order := newOrder("AT-20240115-0001", "user-a", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "first", "second", "third")
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEmpty(t, order.ID)
	require.Len(t, order.Items, 3)

	got, err := repo.GetByID(ctx, order.ID, "user-a")
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	for i, name := range []string{"first", "second", "third"} {
		assert.Equal(t, name, got.Items[i].ProductName)
		assert.Equal(t, order.ID, got.Items[i].OrderID)
	}

	_, err = repo.GetByID(ctx, order.ID, "user-b")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	unscoped, err := repo.GetByID(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, unscoped.OrderNumber)
}

func TestGORMOrderRepository_DuplicateOrderNumberRollsBack(t *testing.T) {
	db := newStore(t)
	repo := repositories.NewGORMOrderRepository(db)
	ctx := context.Background()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newOrder("AT-20240115-0001", "user-a", date, "one")))
	err := repo.Create(ctx, newOrder("AT-20240115-0001", "user-b", date, "two", "three"))
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	var items int64
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Equal(t, int64(1), items)
}

func TestGORMOrderRepository_List(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(newStore(t))
	ctx := context.Background()

	orders := []*models.Order{
		newOrder("AT-20231231-0001", "user-a", time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), "x"),
		newOrder("AT-20240101-0002", "user-a", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "x"),
		newOrder("AT-20240131-0003", "user-b", time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC), "x"),
		newOrder("AT-20240201-0004", "user-a", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "x"),
	}
	orders[1].Status = models.StatusProcessed
	for _, o := range orders {
		require.NoError(t, repo.Create(ctx, o))
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	january, err := repo.List(ctx, repositories.OrderFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, january, 2)
	assert.Equal(t, "AT-20240131-0003", january[0].OrderNumber)
	assert.Equal(t, "AT-20240101-0002", january[1].OrderNumber)
	assert.Len(t, january[0].Items, 1)

	mine, err := repo.List(ctx, repositories.OrderFilter{OwnerID: "user-a", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	processed, err := repo.List(ctx, repositories.OrderFilter{OwnerID: "user-a", Status: models.StatusProcessed})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "AT-20240101-0002", processed[0].OrderNumber)

	nothing, err := repo.List(ctx, repositories.OrderFilter{OwnerID: "user-c"})
	require.NoError(t, err)
	assert.NotNil(t, nothing)
	assert.Empty(t, nothing)
}

func TestGORMOrderRepository_Update(t *testing.T) {
	db := newStore(t)
	repo := repositories.NewGORMOrderRepository(db)
	ctx := context.Background()

	order := newOrder("AT-20240115-0001", "user-a", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "one", "two")
	require.NoError(t, repo.Create(ctx, order))

	// Scalar update keeps items.
	updated, err := repo.Update(ctx, order.ID, "user-a", func(o *models.Order) (bool, error) {
		o.Notes = "updated"
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Notes)
	assert.Len(t, updated.Items, 2)

	// Replacing items rewrites the whole set.
	_, err = repo.Update(ctx, order.ID, "user-a", func(o *models.Order) (bool, error) {
		o.Items = []models.OrderItem{{ProductName: "three", Quantity: 3, UnitPrice: 1, TotalPrice: 3}}
		return true, nil
	})
	require.NoError(t, err)
	got, err := repo.GetByID(ctx, order.ID, "")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "three", got.Items[0].ProductName)
	assert.Equal(t, "updated", got.Notes)

	// A failing mutation leaves the order untouched.
	_, err = repo.Update(ctx, order.ID, "user-a", func(o *models.Order) (bool, error) {
		o.Notes = "never stored"
		o.Items = nil
		return true, errors.New("rejected")
	})
	require.Error(t, err)
	got, err = repo.GetByID(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Notes)
	assert.Len(t, got.Items, 1)

	_, err = repo.Update(ctx, order.ID, "user-b", func(o *models.Order) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMOrderRepository_UpdateLocksRow(t *testing.T) {
	db := newStore(t)
	repo := repositories.NewGORMOrderRepository(db)
	ctx := context.Background()

	order := newOrder("AT-20240115-0001", "user-a", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "one")
	require.NoError(t, repo.Create(ctx, order))

	var locked []string
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:capture_locking", func(tx *gorm.DB) {
		if c, ok := tx.Statement.Clauses["FOR"]; ok {
			if l, ok := c.Expression.(clause.Locking); ok {
				locked = append(locked, l.Strength)
			}
		}
	}))

	_, err := repo.GetByID(ctx, order.ID, "user-a")
	require.NoError(t, err)
	assert.Empty(t, locked, "plain reads take no lock")

	_, err = repo.Update(ctx, order.ID, "user-a", func(o *models.Order) (bool, error) {
		o.Notes = "locked"
		return false, nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, locked)
	assert.Equal(t, "UPDATE", locked[0])
}

func TestGORMOrderRepository_Delete(t *testing.T) {
	db := newStore(t)
	repo := repositories.NewGORMOrderRepository(db)
	ctx := context.Background()

	order := newOrder("AT-20240115-0001", "user-a", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "one", "two")
	require.NoError(t, repo.Create(ctx, order))

	assert.ErrorIs(t, repo.Delete(ctx, order.ID, "user-b"), repositories.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, order.ID, "user-a"))
	assert.ErrorIs(t, repo.Delete(ctx, order.ID, "user-a"), repositories.ErrNotFound)

	var items int64
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, items)
}
