package repositories

import (
	"context"
	"errors"
	"fmt"

	"orderdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
// Every write that touches both orders and order_items runs in one transaction.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

func ownedBy(db *gorm.DB, ownerID string) *gorm.DB {
	if ownerID == "" {
		return db
	}
	return db.Where("user_id = ?", ownerID)
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// Create inserts the order row and all of its items. If any insert fails the
// whole write is rolled back. A clash on the order number yields ErrDuplicate.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	items := order.Items
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.Items = nil
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		return insertItems(tx, order.ID, items)
	})
	order.Items = items
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func insertItems(tx *gorm.DB, orderID string, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = uuid.New().String()
		items[i].OrderID = orderID
		items[i].Position = i
	}
	if err := tx.Create(&items).Error; err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

// GetByID retrieves an order and its items. An order owned by someone other
// than ownerID is reported exactly like a missing one.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Order, error) {
	return findOrder(r.db.WithContext(ctx), id, ownerID)
}

func findOrder(db *gorm.DB, id, ownerID string) (*models.Order, error) {
	var order models.Order
	q := ownedBy(preloadItems(db), ownerID)
	if err := q.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// List returns matching orders with their items, most recently created first.
func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	q := ownedBy(preloadItems(r.db.WithContext(ctx)), filter.OwnerID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("order_date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("order_date < ?", filter.To.UTC())
	}

	orders := []models.Order{}
	if err := q.Order("created_at DESC").Order("order_number DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Update loads and row-locks the order inside a transaction, applies mutate
// and writes the result back. When mutate replaces the items, the stored set
// is deleted and re-inserted in full.
func (r *GORMOrderRepository) Update(ctx context.Context, id, ownerID string, mutate OrderMutation) (*models.Order, error) {
	var updated *models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the row so a concurrent update cannot save over a stale subtotal.
		order, err := findOrder(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, ownerID)
		if err != nil {
			return err
		}
		replaceItems, err := mutate(order)
		if err != nil {
			return err
		}

		items := order.Items
		order.Items = nil
		if err := tx.Save(order).Error; err != nil {
			return fmt.Errorf("failed to update order %s: %w", id, err)
		}
		if replaceItems {
			if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
				return fmt.Errorf("failed to clear items of order %s: %w", id, err)
			}
			if err := insertItems(tx, id, items); err != nil {
				return err
			}
		}
		order.Items = items
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an order together with all of its items.
func (r *GORMOrderRepository) Delete(ctx context.Context, id, ownerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := ownedBy(tx, ownerID).Where("id = ?", id).Delete(&models.Order{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete items of order %s: %w", id, err)
		}
		return nil
	})
}
