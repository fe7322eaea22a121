package models

import "time"

// User is owned by the external auth service. This core reads identities and
// only ever writes the presence flags (is_online, last_active).
type User struct {
	ID          int       `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"name"`
	IsAdmin     bool      `db:"is_admin" json:"is_admin"`
	IsOnline    bool      `db:"is_online" json:"is_active"`
	LastActive  time.Time `db:"last_active" json:"last_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is the derived per-thread view for conversation lists.
type ConversationSummary struct {
	PeerID       int       `db:"peer_id" json:"peer_id"`
	PeerName     string    `db:"peer_name" json:"peer_name"`
	PeerOnline   bool      `db:"peer_online" json:"peer_online"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	UnreadCount  int       `db:"unread_count" json:"unread_count"`
}
