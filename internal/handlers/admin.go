package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

const recentMessagesLimit = 100

// AdminHandler serves the moderation overview. Admin responses include
// tombstoned messages; plaintext bodies are retained for audit and shown
// here as stored.
type AdminHandler struct {
	messages      repositories.MessageRepository
	groupMessages repositories.GroupMessageRepository
	users         repositories.UserRepository
	registry      *presence.Registry
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(
	messages repositories.MessageRepository,
	groupMessages repositories.GroupMessageRepository,
	users repositories.UserRepository,
	registry *presence.Registry,
) *AdminHandler {
	return &AdminHandler{
		messages:      messages,
		groupMessages: groupMessages,
		users:         users,
		registry:      registry,
	}
}

// RecentMessages returns the newest direct messages with participant names.
func (h *AdminHandler) RecentMessages(c *gin.Context) {
	ctx := c.Request.Context()

	msgs, err := h.messages.ListRecent(ctx, recentMessagesLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	ids := map[int]struct{}{}
	for _, m := range msgs {
		ids[m.SenderID] = struct{}{}
		ids[m.ReceiverID] = struct{}{}
	}
	users, err := h.users.BulkUsers(ctx, setToSlice(ids))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	type adminMessage struct {
		models.Message
		SenderName   string `json:"sender_name"`
		ReceiverName string `json:"receiver_name"`
	}
	resp := make([]adminMessage, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, adminMessage{
			Message:      m,
			SenderName:   users[m.SenderID].DisplayName,
			ReceiverName: users[m.ReceiverID].DisplayName,
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// RecentGroupMessages returns the newest group messages with sender names.
func (h *AdminHandler) RecentGroupMessages(c *gin.Context) {
	ctx := c.Request.Context()

	msgs, err := h.groupMessages.ListRecent(ctx, recentMessagesLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group messages"})
		return
	}

	ids := map[int]struct{}{}
	for _, m := range msgs {
		ids[m.SenderID] = struct{}{}
	}
	users, err := h.users.BulkUsers(ctx, setToSlice(ids))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	type adminGroupMessage struct {
		models.GroupMessage
		SenderName string `json:"sender_name"`
	}
	resp := make([]adminGroupMessage, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, adminGroupMessage{GroupMessage: m, SenderName: users[m.SenderID].DisplayName})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// Stats returns service totals and a seven day daily message count series.
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	totalDirect, err := h.messages.CountAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count messages"})
		return
	}
	totalGroup, err := h.groupMessages.CountAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count group messages"})
		return
	}
	totalUsers, err := h.users.CountUsers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count users"})
		return
	}
	newUsers, err := h.users.CountUsersCreatedSince(ctx, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count new users"})
		return
	}

	type dailyCount struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
	}
	daily := make([]dailyCount, 0, 7)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 6; i >= 0; i-- {
		from := today.AddDate(0, 0, -i)
		to := from.AddDate(0, 0, 1)
		direct, err := h.messages.CountCreatedBetween(ctx, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build daily counts"})
			return
		}
		group, err := h.groupMessages.CountCreatedBetween(ctx, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build daily counts"})
			return
		}
		daily = append(daily, dailyCount{Date: from.Format("2006-01-02"), Count: direct + group})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_messages":       totalDirect,
		"total_group_messages": totalGroup,
		"total_users":          totalUsers,
		"new_users":            newUsers,
		"online_users":         h.registry.OnlineCount(),
		"daily_messages":       daily,
	})
}

func setToSlice(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
