package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

const groupMessageColumns = `id, group_id, sender_id, body, kind, attachment_url, attachment_mime, attachment_name,
        encrypted, ciphertext, iv, urgency, edited, tombstoned, created_at`

// GroupMessageRepository mirrors MessageRepository keyed by group id. The
// per-viewer deleted-by set lives in group_message_hides; rows there are only
// ever inserted, never cleared.
type GroupMessageRepository interface {
	Append(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error)
	GetMessage(ctx context.Context, messageID int) (models.GroupMessage, error)
	EditByOwner(ctx context.Context, messageID int, senderID int, newBody string) (models.GroupMessage, error)
	Tombstone(ctx context.Context, messageID int, senderID int) (models.GroupMessage, error)
	HideForViewer(ctx context.Context, messageID int, viewerID int) error
	ListVisible(ctx context.Context, groupID int, viewerID int) ([]models.GroupMessage, error)
	Search(ctx context.Context, groupID int, viewerID int, query string) ([]models.GroupMessage, error)
	ListRecent(ctx context.Context, limit int) ([]models.GroupMessage, error)
	LastMessage(ctx context.Context, groupID int) (*models.GroupMessage, error)
	UnreadCount(ctx context.Context, groupID int, userID int) (int, error)
	Purge(ctx context.Context, groupID int) error
	CountCreatedBetween(ctx context.Context, from time.Time, to time.Time) (int, error)
	CountAll(ctx context.Context) (int, error)
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

// Append persists a group message with a store-assigned id and timestamp.
func (r *GroupMessageRepo) Append(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error) {
	var stored models.GroupMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO group_messages
        (group_id, sender_id, body, kind, attachment_url, attachment_mime, attachment_name, encrypted, ciphertext, iv, urgency)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+groupMessageColumns,
		msg.GroupID, msg.SenderID, msg.Body, msg.Kind,
		msg.AttachmentURL, msg.AttachmentMime, msg.AttachmentName,
		msg.Encrypted, msg.Ciphertext, msg.IV, msg.Urgency).
		StructScan(&stored)
	return stored, err
}

// GetMessage fetches a single group message.
func (r *GroupMessageRepo) GetMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+groupMessageColumns+` FROM group_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// EditByOwner rewrites the body; sender-only, enforced in the statement.
func (r *GroupMessageRepo) EditByOwner(ctx context.Context, messageID int, senderID int, newBody string) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.QueryRowxContext(ctx, `UPDATE group_messages SET body=$3, edited=TRUE
        WHERE id=$1 AND sender_id=$2 AND tombstoned=FALSE
        RETURNING `+groupMessageColumns, messageID, senderID, newBody).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrNotSender
	}
	return msg, err
}

// Tombstone performs the irreversible global delete rewrite; sender-only.
func (r *GroupMessageRepo) Tombstone(ctx context.Context, messageID int, senderID int) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.QueryRowxContext(ctx, `UPDATE group_messages SET
            body=$3, tombstoned=TRUE, kind='text',
            attachment_url=NULL, attachment_mime=NULL, attachment_name=NULL,
            encrypted=FALSE, ciphertext=NULL, iv=NULL
        WHERE id=$1 AND sender_id=$2
        RETURNING `+groupMessageColumns, messageID, senderID, models.TombstoneText).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrNotSender
	}
	return msg, err
}

// HideForViewer adds the viewer to the message's deleted-by set. Idempotent.
func (r *GroupMessageRepo) HideForViewer(ctx context.Context, messageID int, viewerID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO group_message_hides (message_id, user_id)
        VALUES ($1, $2) ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, viewerID)
	return err
}

// ListVisible returns group messages the viewer has not hidden, oldest first.
// Visibility is decided inside the query, not by post-filtering.
func (r *GroupMessageRepo) ListVisible(ctx context.Context, groupID int, viewerID int) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+` FROM group_messages gm
        WHERE gm.group_id=$1
        AND gm.tombstoned = FALSE
        AND NOT EXISTS (SELECT 1 FROM group_message_hides h WHERE h.message_id = gm.id AND h.user_id = $2)
        ORDER BY gm.created_at ASC, gm.id ASC`, groupID, viewerID)
	return msgs, err
}

// Search matches plaintext bodies only; encrypted messages never match.
func (r *GroupMessageRepo) Search(ctx context.Context, groupID int, viewerID int, query string) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+` FROM group_messages gm
        WHERE gm.group_id=$1
        AND gm.tombstoned = FALSE
        AND NOT EXISTS (SELECT 1 FROM group_message_hides h WHERE h.message_id = gm.id AND h.user_id = $2)
        AND gm.encrypted = FALSE
        AND gm.body ILIKE '%' || $3 || '%'
        ORDER BY gm.created_at ASC, gm.id ASC`, groupID, viewerID, query)
	return msgs, err
}

// ListRecent returns the newest group messages for admin overviews.
func (r *GroupMessageRepo) ListRecent(ctx context.Context, limit int) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+` FROM group_messages
        ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	return msgs, err
}

// LastMessage returns the newest message of a group, or nil when empty.
func (r *GroupMessageRepo) LastMessage(ctx context.Context, groupID int) (*models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+groupMessageColumns+` FROM group_messages
        WHERE group_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnreadCount counts messages authored by others after the member's stored
// last-read marker. Recomputed on every call; nothing to invalidate.
func (r *GroupMessageRepo) UnreadCount(ctx context.Context, groupID int, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_messages gm
        INNER JOIN group_members m ON m.group_id = gm.group_id AND m.user_id = $2
        WHERE gm.group_id=$1
        AND gm.sender_id <> $2
        AND gm.created_at > m.last_read_at`, groupID, userID)
	return count, err
}

// Purge hard-deletes every message of a group. Only reached when the group
// itself is deleted.
func (r *GroupMessageRepo) Purge(ctx context.Context, groupID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM group_messages WHERE group_id=$1`, groupID)
	return err
}

// CountCreatedBetween counts group messages created in [from, to).
func (r *GroupMessageRepo) CountCreatedBetween(ctx context.Context, from time.Time, to time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_messages WHERE created_at >= $1 AND created_at < $2`, from, to)
	return count, err
}

// CountAll counts every stored group message.
func (r *GroupMessageRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_messages`)
	return count, err
}
