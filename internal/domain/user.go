package domain

import "time"

// User is an account known to the system: end-users, support agents,
// engineers and admins all share one model, differentiated by Role.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        *string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
