package models

import (
	"time"

	"github.com/uptrace/bun"
)

type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "WAITING"
	WaitlistConfirmed WaitlistStatus = "CONFIRMED"
	WaitlistCancelled WaitlistStatus = "CANCELLED"
	WaitlistExpired   WaitlistStatus = "EXPIRED"
	WaitlistRemoved   WaitlistStatus = "REMOVED"
)

// WaitlistEntry is a user's place in a session's FIFO queue. Position is
// dense (1..N) among the session's WAITING entries.
type WaitlistEntry struct {
	bun.BaseModel `bun:"table:waitlist_entries,alias:w"`

	ID         string         `bun:"id,pk" json:"id"`
	SessionID  string         `bun:"session_id,notnull" json:"session_id"`
	UserID     string         `bun:"user_id,notnull" json:"user_id"`
	Position   int            `bun:"position,notnull" json:"position"`
	Status     WaitlistStatus `bun:"status,notnull" json:"status"`
	Notes      string         `bun:"notes,nullzero" json:"notes,omitempty"`
	JoinedAt   time.Time      `bun:"joined_at,notnull" json:"joined_at"`
	NotifiedAt time.Time      `bun:"notified_at,nullzero" json:"notified_at,omitempty"`
	CreatedAt  time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}
