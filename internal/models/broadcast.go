package models

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast audience enums.
const (
	AudienceAll        = "all"
	AudienceClients    = "clients"
	AudienceMessengers = "messengers"
)

// Broadcast kind enums.
const (
	BroadcastAlert   = "alert"
	BroadcastMessage = "message"
)

// Broadcast is a platform-wide notification with a strictly increasing id.
// Subscribers consume broadcasts at most once by tracking the highest id they
// have already surfaced (their watermark); only ids above the watermark are
// ever delivered, in order.
type Broadcast struct {
	ID        int64     `json:"id"`
	Audience  string    `json:"audience"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// AudienceMatches reports whether a broadcast should reach a subscriber with
// the given role. Admins never receive their own broadcasts; that check is
// done against CreatedBy by the coordinator.
func (b *Broadcast) AudienceMatches(role string) bool {
	switch b.Audience {
	case AudienceAll:
		return true
	case AudienceClients:
		return role == RoleClient
	case AudienceMessengers:
		return role == RoleMessenger
	}
	return false
}
