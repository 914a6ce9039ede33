package tree

import "time"

// Conversation is the unit of ownership for one turn tree. The engine holds
// exactly one tree per conversation; the root turn is created alongside it.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	RootID    string    `json:"root_id" db:"root_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
