package model

import "time"

// Roles carried in the users table and in access token claims.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User represents a staff account allowed to sign in.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         string    `json:"role" gorm:"size:50;not null;default:'USER'"`
	Name         *string   `json:"name" gorm:"size:255"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
