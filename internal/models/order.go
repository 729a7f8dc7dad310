package models

import "time"

// Well-known order statuses. The set is open: any non-empty status is stored as given.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusProcessed = "processed"
	StatusCancelled = "cancelled"
)

// OrderItem represents a single line item within an order.
type OrderItem struct {
	ID           string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID      string  `json:"orderId" gorm:"type:varchar(36);not null;index"`
	Position     int     `json:"-" gorm:"not null;default:0"`
	ProductName  string  `json:"productName" gorm:"type:varchar(255);not null"`
	ProductCode  string  `json:"productCode,omitempty" gorm:"type:varchar(100)"`
	ProductRange string  `json:"productRange,omitempty" gorm:"type:varchar(100)"`
	Packaging    string  `json:"packaging,omitempty" gorm:"type:varchar(100)"`
	Quantity     int     `json:"quantity" gorm:"not null"`
	UnitPrice    float64 `json:"unitPrice" gorm:"not null"`
	TotalPrice   float64 `json:"totalPrice" gorm:"not null"` // quantity * unit price, derived server-side
	Notes        string  `json:"notes,omitempty"`
}

// Order represents a distributor purchase order.
type Order struct {
	ID              string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber     string      `json:"orderNumber" gorm:"uniqueIndex;type:varchar(40);not null"`
	UserID          string      `json:"userId" gorm:"type:varchar(36);not null;index"`
	CustomerName    string      `json:"customerName" gorm:"type:varchar(255);not null"`
	CustomerCode    string      `json:"customerCode,omitempty" gorm:"type:varchar(100)"`
	CustomerEmail   string      `json:"customerEmail,omitempty" gorm:"type:varchar(255)"`
	CustomerPhone   string      `json:"customerPhone,omitempty" gorm:"type:varchar(50)"`
	CustomerAddress string      `json:"customerAddress,omitempty"`
	OrderDate       time.Time   `json:"orderDate" gorm:"not null;index"`
	DeliveryDate    *time.Time  `json:"deliveryDate,omitempty"`
	Subtotal        float64     `json:"subtotal" gorm:"not null"`
	Tax             float64     `json:"tax" gorm:"not null"`
	Discount        float64     `json:"discount" gorm:"not null"`
	Total           float64     `json:"total" gorm:"not null"`
	Status          string      `json:"status" gorm:"type:varchar(32);not null;index"` // e.g. "draft", "submitted", "processed", "cancelled"
	Notes           string      `json:"notes,omitempty"`
	Items           []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time   `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}
