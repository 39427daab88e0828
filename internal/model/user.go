package model

import "time"

// Role is the access level assigned to a user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCliente Role = "cliente"
)

// Roles lists every accepted role value.
var Roles = []Role{RoleAdmin, RoleCliente}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleNames returns the accepted role values as strings.
func RoleNames() []string {
	names := make([]string, len(Roles))
	for i, role := range Roles {
		names[i] = string(role)
	}
	return names
}

// User represents a registered user in the system.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         Role      `json:"role" gorm:"size:20;not null;index;check:chk_users_role,role IN ('admin','cliente')"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName pins the table name used by the store.
func (User) TableName() string {
	return "users"
}
