package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Token types carried in Claims.Type.
const (
	TokenTypeAccess        = "access"
	TokenTypeRefresh       = "refresh"
	TokenTypePasswordReset = "password_reset"
)

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// UserView is the public representation of a user. It never carries the
// password hash.
type UserView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// View strips the private fields of u.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Claims defines the structure of the session JWT claims. The subject is the
// username.
type Claims struct {
	Role string `json:"role,omitempty"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// ResetClaims binds an email address to a password reset token.
type ResetClaims struct {
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}
