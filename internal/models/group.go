package models

import "time"

// GroupRole is a member's role within a group.
type GroupRole string

const (
	RoleAdmin  GroupRole = "admin"
	RoleMember GroupRole = "member"
)

// Group represents a chat group. The creator is always present in the
// membership with the admin role and is the only user allowed to delete
// the group.
type Group struct {
	ID               int       `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	CreatorID        int       `db:"creator_id" json:"created_by"`
	DepartmentLinked bool      `db:"department_linked" json:"department_linked"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// GroupMember is one durable membership entry. LastReadAt drives group
// unread counts; it is moved forward when the member fetches history or
// explicitly marks the group read.
type GroupMember struct {
	GroupID    int       `db:"group_id" json:"group_id"`
	UserID     int       `db:"user_id" json:"user_id"`
	Role       GroupRole `db:"role" json:"role"`
	JoinedAt   time.Time `db:"joined_at" json:"joined_at"`
	LastReadAt time.Time `db:"last_read_at" json:"last_read_at"`
}

// GroupSummary is the API-facing view of a group for one member.
type GroupSummary struct {
	Group
	Members         []GroupMemberInfo `json:"members"`
	MemberCount     int               `json:"member_count"`
	LastMessage     string            `json:"last_message"`
	LastMessageTime *time.Time        `json:"last_message_time,omitempty"`
	UnreadCount     int               `json:"unread_count"`
}

// GroupMemberInfo decorates a membership entry with user info for listings.
type GroupMemberInfo struct {
	UserID   int       `json:"id"`
	Name     string    `json:"name"`
	Role     GroupRole `json:"role"`
	IsActive bool      `json:"is_active"`
}
