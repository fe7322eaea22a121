package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// ConversationRepository maintains the derived per-pair recency index and the
// last-read markers that back unread counts. Unread counts are recomputed on
// demand from the markers, never stored.
type ConversationRepository interface {
	Touch(ctx context.Context, userA int, userB int, at time.Time) error
	MarkRead(ctx context.Context, userID int, peerID int, at time.Time) error
	UnreadCount(ctx context.Context, userID int, peerID int) (int, error)
	ListSummaries(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	HideThread(ctx context.Context, userID int, peerID int) error
}

// ConversationRepo is a sqlx-backed implementation.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func orderPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// Touch bumps the pair's last-activity marker and unhides the thread for both
// sides. A new message always resurfaces a hidden conversation.
func (r *ConversationRepo) Touch(ctx context.Context, userA int, userB int, at time.Time) error {
	lo, hi := orderPair(userA, userB)
	if _, err := r.db.ExecContext(ctx, `INSERT INTO conversations (user_lo, user_hi, last_activity)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_lo, user_hi) DO UPDATE SET last_activity = GREATEST(conversations.last_activity, EXCLUDED.last_activity)`,
		lo, hi, at); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversation_hides
        WHERE (user_id=$1 AND peer_id=$2) OR (user_id=$2 AND peer_id=$1)`, userA, userB)
	return err
}

// MarkRead moves the user's last-read marker for a peer forward. Markers never
// move backwards.
func (r *ConversationRepo) MarkRead(ctx context.Context, userID int, peerID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO conversation_reads (user_id, peer_id, last_read_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, peer_id) DO UPDATE SET last_read_at = GREATEST(conversation_reads.last_read_at, EXCLUDED.last_read_at)`,
		userID, peerID, at)
	return err
}

// UnreadCount counts visible peer-authored messages newer than the user's
// last-read marker. Without a marker everything from the peer counts.
func (r *ConversationRepo) UnreadCount(ctx context.Context, userID int, peerID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages m
        WHERE m.sender_id=$2 AND m.receiver_id=$1
        AND m.tombstoned = FALSE
        AND m.deleted_by_receiver = FALSE
        AND m.created_at > COALESCE(
            (SELECT last_read_at FROM conversation_reads WHERE user_id=$1 AND peer_id=$2),
            'epoch'::timestamptz)`, userID, peerID)
	return count, err
}

// ListSummaries returns the user's conversation list, most recent first,
// skipping threads the user has hidden.
func (r *ConversationRepo) ListSummaries(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := r.db.SelectContext(ctx, &summaries, `SELECT
            peer.id AS peer_id,
            peer.display_name AS peer_name,
            peer.is_online AS peer_online,
            c.last_activity,
            (SELECT COUNT(*) FROM messages m
                WHERE m.sender_id = peer.id AND m.receiver_id = $1
                AND m.tombstoned = FALSE
                AND m.deleted_by_receiver = FALSE
                AND m.created_at > COALESCE(
                    (SELECT r.last_read_at FROM conversation_reads r WHERE r.user_id=$1 AND r.peer_id=peer.id),
                    'epoch'::timestamptz)) AS unread_count
        FROM conversations c
        INNER JOIN users peer ON peer.id = CASE WHEN c.user_lo=$1 THEN c.user_hi ELSE c.user_lo END
        WHERE (c.user_lo=$1 OR c.user_hi=$1)
        AND NOT EXISTS (SELECT 1 FROM conversation_hides h WHERE h.user_id=$1 AND h.peer_id=peer.id)
        ORDER BY c.last_activity DESC`, userID)
	return summaries, err
}

// HideThread removes the conversation from the user's list until the next
// message resurfaces it. The other participant's view is unaffected.
func (r *ConversationRepo) HideThread(ctx context.Context, userID int, peerID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO conversation_hides (user_id, peer_id)
        VALUES ($1, $2) ON CONFLICT (user_id, peer_id) DO NOTHING`, userID, peerID)
	return err
}
