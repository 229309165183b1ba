package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the counting role of a user. Membership of the ADMIN group is carried
// separately by User.Admin.
type Role string

const (
	RoleSupervisor Role = "SUPERVISOR"
	RoleCounter    Role = "COUNTER"
)

func (r Role) Valid() bool {
	return r == RoleSupervisor || r == RoleCounter
}

// User is the owner field of its own record: a user may read and update itself.
type User struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"not null" json:"name"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	Admin        bool      `gorm:"not null;default:false" json:"admin"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) RecordID() uuid.UUID { return u.ID }
