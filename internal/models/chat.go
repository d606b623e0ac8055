package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatThread is a 1:1 conversation between a client and a messenger,
// optionally bound to a gig. Created lazily on first assignment or first
// message. Unread counters are tracked per participant.
type ChatThread struct {
	ID              uuid.UUID  `json:"id"`
	ParticipantA    uuid.UUID  `json:"participant_a"`
	ParticipantB    uuid.UUID  `json:"participant_b"`
	RelatedGigID    *uuid.UUID `json:"related_gig_id,omitempty"`
	LastMessage     string     `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadA         int        `json:"unread_a"`
	UnreadB         int        `json:"unread_b"`
	CreatedAt       time.Time  `json:"created_at"`
}

// UnreadFor returns the unread count for the given participant.
func (t *ChatThread) UnreadFor(userID uuid.UUID) int {
	if userID == t.ParticipantA {
		return t.UnreadA
	}
	if userID == t.ParticipantB {
		return t.UnreadB
	}
	return 0
}

// HasParticipant reports whether the user is one of the two thread members.
func (t *ChatThread) HasParticipant(userID uuid.UUID) bool {
	return userID == t.ParticipantA || userID == t.ParticipantB
}

// Message rows are append-only and ordered by created_at.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  uuid.UUID `json:"thread_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Text      string    `json:"text"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"created_at"`
}
