package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	groups        repositories.GroupRepository
	groupMessages repositories.GroupMessageRepository
	users         repositories.UserRepository
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(
	groups repositories.GroupRepository,
	groupMessages repositories.GroupMessageRepository,
	users repositories.UserRepository,
	hub *ws.Hub,
	audit *telemetry.AuditEmitter,
) *GroupHandler {
	return &GroupHandler{
		groups:        groups,
		groupMessages: groupMessages,
		users:         users,
		hub:           hub,
		audit:         audit,
	}
}

// CreateGroup handles POST /groups. The creator always ends up in the group
// with the admin role.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := middleware.CallerID(c)

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		MemberIDs   []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid group create payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), userID, req.Name, req.Description, req.MemberIDs)
	if err != nil {
		h.emitAudit(c, "ERROR", "group create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	// Members with a live session hear about the new group on their own topic.
	for _, memberID := range req.MemberIDs {
		if memberID == userID {
			continue
		}
		h.hub.Publish(ws.UserTopic(memberID), models.ServerEvent{
			Type:      models.EventGroupUserJoined,
			GroupID:   group.ID,
			GroupName: group.Name,
			UserID:    memberID,
		})
	}

	h.emitAudit(c, "INFO", fmt.Sprintf("group %d created", group.ID))
	c.JSON(http.StatusCreated, gin.H{"group_id": group.ID})
}

// ListGroups returns the caller's groups with membership, the latest message
// and the caller's unread count per group.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := middleware.CallerID(c)
	ctx := c.Request.Context()

	groups, err := h.groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	summaries := make([]models.GroupSummary, 0, len(groups))
	for _, group := range groups {
		members, err := h.groups.Members(ctx, group.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
			return
		}
		memberIDs := make([]int, 0, len(members))
		for _, m := range members {
			memberIDs = append(memberIDs, m.UserID)
		}
		users, err := h.users.BulkUsers(ctx, memberIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load member names"})
			return
		}

		infos := make([]models.GroupMemberInfo, 0, len(members))
		for _, m := range members {
			infos = append(infos, models.GroupMemberInfo{
				UserID:   m.UserID,
				Name:     users[m.UserID].DisplayName,
				Role:     m.Role,
				IsActive: users[m.UserID].IsOnline,
			})
		}

		summary := models.GroupSummary{
			Group:       group,
			Members:     infos,
			MemberCount: len(members),
		}

		last, err := h.groupMessages.LastMessage(ctx, group.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load last message"})
			return
		}
		if last != nil {
			summary.LastMessage = last.Body
			summary.LastMessageTime = &last.CreatedAt
		}

		unread, err := h.groupMessages.UnreadCount(ctx, group.ID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread"})
			return
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"groups": summaries})
}

// GetGroupMessages returns the caller's view of the group history, oldest
// first, and moves the caller's read marker.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	userID := middleware.CallerID(c)
	ctx := c.Request.Context()

	member, err := h.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}

	msgs, err := h.groupMessages.ListVisible(ctx, groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	_ = h.groups.TouchLastRead(ctx, groupID, userID, time.Now())

	ids := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}
	users, err := h.users.BulkUsers(ctx, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}

	type messageResponse struct {
		models.GroupMessage
		SenderName string `json:"sender_name,omitempty"`
	}
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{GroupMessage: m, SenderName: users[m.SenderID].DisplayName})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// SearchGroupMessages finds plaintext group messages matching the query.
func (h *GroupHandler) SearchGroupMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	userID := middleware.CallerID(c)

	member, err := h.groups.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}

	msgs, err := h.groupMessages.Search(c.Request.Context(), groupID, userID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// LeaveGroup removes the caller's durable membership and tells the room.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	userID := middleware.CallerID(c)

	if err := h.groups.Leave(c.Request.Context(), groupID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotMember) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not leave group"})
		return
	}

	h.hub.Publish(ws.GroupTopic(groupID), models.ServerEvent{
		Type:    models.EventGroupUserLeft,
		GroupID: groupID,
		UserID:  userID,
	})
	h.emitAudit(c, "INFO", fmt.Sprintf("user left group %d", groupID))
	c.Status(http.StatusNoContent)
}

// DeleteGroup purges the group, its messages and its room. Creator only.
// The room hears group_deleted before it closes; after the purge nothing is
// left to notify.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	userID := middleware.CallerID(c)
	ctx := c.Request.Context()

	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "group not found"})
		return
	}

	if group.CreatorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can delete the group"})
		return
	}

	h.hub.Publish(ws.GroupTopic(groupID), models.ServerEvent{
		Type:      models.EventGroupDeleted,
		GroupID:   groupID,
		GroupName: group.Name,
	})

	if err := h.groups.Delete(ctx, groupID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotCreator):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can delete the group"})
		case errors.Is(err, repositories.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete group"})
		}
		return
	}

	if err := h.groupMessages.Purge(ctx, groupID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not purge messages"})
		return
	}
	h.hub.CloseTopic(ws.GroupTopic(groupID))

	h.emitAudit(c, "WARN", fmt.Sprintf("group %d deleted and purged", groupID))
	c.Status(http.StatusNoContent)
}

// MarkGroupRead moves the caller's read marker to now.
func (h *GroupHandler) MarkGroupRead(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	userID := middleware.CallerID(c)

	if err := h.groups.TouchLastRead(c.Request.Context(), groupID, userID, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark read"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseGroupID(c *gin.Context) (int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	return groupID, true
}
