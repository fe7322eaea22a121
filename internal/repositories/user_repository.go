package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads identities and mirrors presence flags. Accounts are
// provisioned elsewhere; this core never creates or removes them.
type UserRepository interface {
	Get(ctx context.Context, userID int) (models.User, error)
	SetOnline(ctx context.Context, userID int, online bool) error
	BulkUsers(ctx context.Context, ids []int) (map[int]models.User, error)
	CountUsers(ctx context.Context) (int, error)
	CountUsersCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// UserRepo is a sqlx-backed implementation.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Get fetches a single user.
func (r *UserRepo) Get(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, display_name, is_admin, is_online, last_active, created_at
        FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// SetOnline mirrors a presence transition into the durable flag and refreshes
// the activity timestamp.
func (r *UserRepo) SetOnline(ctx context.Context, userID int, online bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=$2, last_active=NOW() WHERE id=$1`, userID, online)
	return err
}

// BulkUsers resolves a set of ids in one round trip. Unknown ids are simply
// absent from the result.
func (r *UserRepo) BulkUsers(ctx context.Context, ids []int) (map[int]models.User, error) {
	users := make(map[int]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	query, args, err := sqlx.In(`SELECT id, display_name, is_admin, is_online, last_active, created_at
        FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var user models.User
		if err := rows.StructScan(&user); err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}

// CountUsers counts all provisioned users.
func (r *UserRepo) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

// CountUsersCreatedSince counts users provisioned at or after the cutoff.
func (r *UserRepo) CountUsersCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, since)
	return count, err
}
