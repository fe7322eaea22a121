package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("user is not a group member")
	ErrNotCreator    = errors.New("only the group creator may delete the group")
)

// GroupRepository owns groups and their durable membership. Joining the live
// room is a separate, volatile concern handled by the hub.
type GroupRepository interface {
	CreateGroup(ctx context.Context, creatorID int, name string, description string, memberIDs []int) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error)
	IsMember(ctx context.Context, groupID int, userID int) (bool, error)
	Members(ctx context.Context, groupID int) ([]models.GroupMember, error)
	Leave(ctx context.Context, groupID int, userID int) error
	Delete(ctx context.Context, groupID int, requesterID int) error
	TouchLastRead(ctx context.Context, groupID int, userID int, at time.Time) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup creates a group and its membership atomically. The creator is
// always inserted with the admin role, whether or not the caller listed it.
func (r *GroupRepo) CreateGroup(ctx context.Context, creatorID int, name string, description string, memberIDs []int) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.QueryRowxContext(ctx, `INSERT INTO groups (name, description, creator_id)
        VALUES ($1, $2, $3)
        RETURNING id, name, description, creator_id, department_linked, created_at`,
		name, description, creatorID).StructScan(&group); err != nil {
		return models.Group{}, err
	}

	memberSet := map[int]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]int, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		role := models.RoleMember
		if id == creatorID {
			role = models.RoleAdmin
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id, role)
            VALUES ($1, $2, $3)`, group.ID, id, role); err != nil {
			return models.Group{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT id, name, description, creator_id, department_linked, created_at
        FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForUser returns the groups that include the user.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups, `SELECT g.id, g.name, g.description, g.creator_id, g.department_linked, g.created_at
        FROM groups g INNER JOIN group_members gm ON gm.group_id = g.id
        WHERE gm.user_id=$1 ORDER BY g.created_at DESC`, userID)
	return groups, err
}

// IsMember checks current membership. Callers re-check this at send time,
// never relying on membership cached at connect time.
func (r *GroupRepo) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}

// Members lists the full membership of a group.
func (r *GroupRepo) Members(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.SelectContext(ctx, &members, `SELECT group_id, user_id, role, joined_at, last_read_at
        FROM group_members WHERE group_id=$1 ORDER BY joined_at ASC`, groupID)
	return members, err
}

// Leave removes the user from the membership.
func (r *GroupRepo) Leave(ctx context.Context, groupID int, userID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotMember
	}
	return nil
}

// Delete removes the group when, and only when, the requester created it.
// Membership and messages go with it (cascade).
func (r *GroupRepo) Delete(ctx context.Context, groupID int, requesterID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1 AND creator_id=$2`, groupID, requesterID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM groups WHERE id=$1)`, groupID); err != nil {
			return err
		}
		if exists {
			return ErrNotCreator
		}
		return ErrGroupNotFound
	}
	return nil
}

// TouchLastRead moves the member's last-read marker forward.
func (r *GroupRepo) TouchLastRead(ctx context.Context, groupID int, userID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE group_members SET last_read_at=$3
        WHERE group_id=$1 AND user_id=$2 AND last_read_at < $3`, groupID, userID, at)
	return err
}
