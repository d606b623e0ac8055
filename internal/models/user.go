package models

import (
	"time"

	"github.com/google/uuid"
)

// User role enums. "messenger" is the fulfilling courier; "client" posts gigs.
const (
	RoleClient    = "client"
	RoleMessenger = "messenger"
	RoleAdmin     = "admin"
	RoleSupport   = "support"
)

type User struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	PasswordHash     string     `json:"-"`
	IsVerified       bool       `json:"is_verified"`
	IsOnline         bool       `json:"is_online"`
	IsSuspended      bool       `json:"is_suspended"`
	IsBanned         bool       `json:"is_banned"`
	SuspensionReason *string    `json:"suspension_reason,omitempty"`
	BanReason        *string    `json:"ban_reason,omitempty"`
	Rating           float64    `json:"rating"`
	RatingCount      int        `json:"rating_count"`
	CompletedGigs    int        `json:"completed_gigs"`
	Lat              *float64   `json:"lat,omitempty"`
	Lng              *float64   `json:"lng,omitempty"`
	LastLocationAt   *time.Time `json:"last_location_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CanAct reports whether the user may perform marketplace actions at all.
// Suspended and banned users keep their records (no hard deletes) but lose access.
func (u *User) CanAct() bool {
	return !u.IsSuspended && !u.IsBanned
}
