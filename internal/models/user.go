package models

import "time"

// Platform roles carried in the access token.
const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// User represents a dashboard user. Platform admins can act on every tenant;
// everyone else needs a UserTenant assignment.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsPlatformAdmin reports whether the user bypasses tenant assignment checks.
func (u *User) IsPlatformAdmin() bool {
	return u.Role == UserRoleAdmin
}
