package models

import "time"

// MessageKind classifies a message by its payload.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindFile  MessageKind = "file"
)

// Urgency tags a message for client-side prioritisation.
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// TombstoneText replaces the body of a globally deleted message.
const TombstoneText = "This message was deleted"

// Message represents a direct message between two users.
//
// Body is empty for attachment-only sends. Ciphertext and IV are opaque to
// the server; Body is still stored alongside encrypted payloads for admin
// audit.
type Message struct {
	ID                int         `db:"id" json:"id"`
	SenderID          int         `db:"sender_id" json:"sender"`
	ReceiverID        int         `db:"receiver_id" json:"receiver"`
	Body              string      `db:"body" json:"text"`
	Kind              MessageKind `db:"kind" json:"kind"`
	AttachmentURL     *string     `db:"attachment_url" json:"file_url,omitempty"`
	AttachmentMime    *string     `db:"attachment_mime" json:"file_type,omitempty"`
	AttachmentName    *string     `db:"attachment_name" json:"file_name,omitempty"`
	Encrypted         bool        `db:"encrypted" json:"encrypted"`
	Ciphertext        *string     `db:"ciphertext" json:"encrypted_data,omitempty"`
	IV                *string     `db:"iv" json:"iv,omitempty"`
	Urgency           Urgency     `db:"urgency" json:"urgency"`
	Edited            bool        `db:"edited" json:"is_edited"`
	Tombstoned        bool        `db:"tombstoned" json:"is_deleted"`
	DeletedBySender   bool        `db:"deleted_by_sender" json:"-"`
	DeletedByReceiver bool        `db:"deleted_by_receiver" json:"-"`
	CreatedAt         time.Time   `db:"created_at" json:"timestamp"`
}

// GroupMessage has the same shape as Message but is keyed by group id.
// Per-viewer hides live in a separate set table, not on the row.
type GroupMessage struct {
	ID             int         `db:"id" json:"id"`
	GroupID        int         `db:"group_id" json:"group_id"`
	SenderID       int         `db:"sender_id" json:"sender"`
	Body           string      `db:"body" json:"text"`
	Kind           MessageKind `db:"kind" json:"kind"`
	AttachmentURL  *string     `db:"attachment_url" json:"file_url,omitempty"`
	AttachmentMime *string     `db:"attachment_mime" json:"file_type,omitempty"`
	AttachmentName *string     `db:"attachment_name" json:"file_name,omitempty"`
	Encrypted      bool        `db:"encrypted" json:"encrypted"`
	Ciphertext     *string     `db:"ciphertext" json:"encrypted_data,omitempty"`
	IV             *string     `db:"iv" json:"iv,omitempty"`
	Urgency        Urgency     `db:"urgency" json:"urgency"`
	Edited         bool        `db:"edited" json:"is_edited"`
	Tombstoned     bool        `db:"tombstoned" json:"is_deleted"`
	CreatedAt      time.Time   `db:"created_at" json:"timestamp"`
}
