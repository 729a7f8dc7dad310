package models

import "time"

// Account roles. A role is fixed when the account is created.
const (
	RoleAdmin       = "admin"
	RoleDistributor = "distributor"
)

// User represents a distributor or administrator account.
type User struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username        string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Password        string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Role            string    `json:"role" gorm:"type:varchar(20);not null;index"`
	DistributorName string    `json:"distributorName" gorm:"type:varchar(255)"`
	Email           string    `json:"email,omitempty" gorm:"type:varchar(255)"`
	Phone           string    `json:"phone,omitempty" gorm:"type:varchar(50)"`
	Address         string    `json:"address,omitempty"`
	Provisioned     bool      `json:"-" gorm:"not null;default:false"` // created by a public order submission
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Identity is the authenticated caller as carried by a session token.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the caller may see every distributor's orders.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// OwnerScope returns the user id that order queries must be restricted to,
// or "" when the caller is unscoped.
func (i Identity) OwnerScope() string {
	if i.IsAdmin() {
		return ""
	}
	return i.UserID
}
