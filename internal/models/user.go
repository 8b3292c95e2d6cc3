package models

import (
	"strings"
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleCustomer      Role = "customer"
	RoleAdministrator Role = "administrator"
)

// ParseRole maps the role spellings seen upstream onto a Role.
// Anything that is not an administrator alias is a customer.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "administrator", "administrador", "admin":
		return RoleAdministrator
	default:
		return RoleCustomer
	}
}

// User represents a locally registered account.
type User struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100)" validate:"required,min=2,max=100"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string    `json:"password,omitempty" gorm:"type:varchar(255)" validate:"required,min=6"`
	Phone     string    `json:"phone,omitempty" gorm:"type:varchar(30)" validate:"omitempty,max=30"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null;default:customer"`
	Active    bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor is the authenticated caller of an operation. Token is the bearer
// credential forwarded to the upstream service.
type Actor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Token string `json:"-"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdministrator
}

func (a Actor) Owns(ownerID int64) bool {
	return a.ID != 0 && a.ID == ownerID
}

// CanAccess is the owner-or-admin predicate used by every order operation.
func (a Actor) CanAccess(ownerID int64) bool {
	return a.IsAdmin() || a.Owns(ownerID)
}
