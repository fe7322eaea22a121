package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("requester is not the message sender")
)

const messageColumns = `id, sender_id, receiver_id, body, kind, attachment_url, attachment_mime, attachment_name,
        encrypted, ciphertext, iv, urgency, edited, tombstoned, deleted_by_sender, deleted_by_receiver, created_at`

// MessageRepository is the durable log of direct messages. Ownership rules
// (sender-only edit and tombstone) are enforced here, at the store boundary,
// not just by callers.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	EditByOwner(ctx context.Context, messageID int, senderID int, newBody string) (models.Message, error)
	Tombstone(ctx context.Context, messageID int, senderID int) (models.Message, error)
	HideForViewer(ctx context.Context, messageID int, viewerID int) error
	ListVisible(ctx context.Context, userA int, userB int, viewerID int) ([]models.Message, error)
	Search(ctx context.Context, userA int, userB int, viewerID int, query string) ([]models.Message, error)
	ListRecent(ctx context.Context, limit int) ([]models.Message, error)
	CountCreatedBetween(ctx context.Context, from time.Time, to time.Time) (int, error)
	CountAll(ctx context.Context) (int, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a direct message. The id and the canonical timestamp are
// assigned here, never taken from the client.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	var stored models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages
        (sender_id, receiver_id, body, kind, attachment_url, attachment_mime, attachment_name, encrypted, ciphertext, iv, urgency)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+messageColumns,
		msg.SenderID, msg.ReceiverID, msg.Body, msg.Kind,
		msg.AttachmentURL, msg.AttachmentMime, msg.AttachmentName,
		msg.Encrypted, msg.Ciphertext, msg.IV, msg.Urgency).
		StructScan(&stored)
	return stored, err
}

// GetMessage retrieves a single message regardless of visibility.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// EditByOwner rewrites the body when, and only when, the requester is the
// original sender and the message is not tombstoned.
func (r *MessageRepo) EditByOwner(ctx context.Context, messageID int, senderID int, newBody string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET body=$3, edited=TRUE
        WHERE id=$1 AND sender_id=$2 AND tombstoned=FALSE
        RETURNING `+messageColumns, messageID, senderID, newBody).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrNotSender
	}
	return msg, err
}

// Tombstone irreversibly rewrites the body to the tombstone text and clears
// the attachment and encryption fields. Sender-only, like EditByOwner.
func (r *MessageRepo) Tombstone(ctx context.Context, messageID int, senderID int) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET
            body=$3, tombstoned=TRUE, kind='text',
            attachment_url=NULL, attachment_mime=NULL, attachment_name=NULL,
            encrypted=FALSE, ciphertext=NULL, iv=NULL
        WHERE id=$1 AND sender_id=$2
        RETURNING `+messageColumns, messageID, senderID, models.TombstoneText).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrNotSender
	}
	return msg, err
}

// HideForViewer inserts the viewer into the message's deleted-by set. It is
// additive only and idempotent; re-hiding an already hidden message changes
// nothing, and there is no operation that undoes it.
func (r *MessageRepo) HideForViewer(ctx context.Context, messageID int, viewerID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET
            deleted_by_sender = deleted_by_sender OR (sender_id=$2),
            deleted_by_receiver = deleted_by_receiver OR (receiver_id=$2)
        WHERE id=$1 AND (sender_id=$2 OR receiver_id=$2)`, messageID, viewerID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// visibleClause applies the visibility invariant inside the query so readers
// can never observe messages hidden from them, even under concurrent hides.
const visibleClause = `tombstoned = FALSE
        AND NOT (sender_id=$3 AND deleted_by_sender)
        AND NOT (receiver_id=$3 AND deleted_by_receiver)`

// ListVisible returns the conversation between two users as seen by the
// viewer, oldest first.
func (r *MessageRepo) ListVisible(ctx context.Context, userA int, userB int, viewerID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
        AND `+visibleClause+`
        ORDER BY created_at ASC, id ASC`, userA, userB, viewerID)
	return msgs, err
}

// Search performs a case-insensitive substring match over message bodies.
// Encrypted messages never match: their plaintext is not searchable.
func (r *MessageRepo) Search(ctx context.Context, userA int, userB int, viewerID int, query string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
        AND `+visibleClause+`
        AND encrypted = FALSE
        AND body ILIKE '%' || $4 || '%'
        ORDER BY created_at ASC, id ASC`, userA, userB, viewerID, query)
	return msgs, err
}

// ListRecent returns the newest messages for admin overviews, tombstones
// included.
func (r *MessageRepo) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	return msgs, err
}

// CountCreatedBetween counts messages created in [from, to).
func (r *MessageRepo) CountCreatedBetween(ctx context.Context, from time.Time, to time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE created_at >= $1 AND created_at < $2`, from, to)
	return count, err
}

// CountAll counts every stored direct message.
func (r *MessageRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages`)
	return count, err
}
