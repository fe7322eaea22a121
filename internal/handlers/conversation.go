package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// ConversationHandler serves the direct message surface: thread lists,
// history, search and per-viewer thread hiding.
type ConversationHandler struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(
	messages repositories.MessageRepository,
	conversations repositories.ConversationRepository,
	users repositories.UserRepository,
) *ConversationHandler {
	return &ConversationHandler{
		messages:      messages,
		conversations: conversations,
		users:         users,
	}
}

// ListConversations returns the caller's threads ordered by recency, with
// unread counts computed from the read markers.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := middleware.CallerID(c)

	summaries, err := h.conversations.ListSummaries(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetMessages returns the caller's view of a thread, oldest first. Fetching
// history counts as reading it: the read marker moves to now.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("peer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}
	userID := middleware.CallerID(c)

	msgs, err := h.messages.ListVisible(c.Request.Context(), userID, peerID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	// Reading counts as activity: the marker moves and the thread resurfaces
	// at the top of the recency list.
	now := time.Now()
	_ = h.conversations.Touch(c.Request.Context(), userID, peerID, now)
	_ = h.conversations.MarkRead(c.Request.Context(), userID, peerID, now)

	users, err := h.users.BulkUsers(c.Request.Context(), senderIDs(msgs))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}

	type messageResponse struct {
		models.Message
		SenderName string `json:"sender_name,omitempty"`
	}
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, SenderName: users[m.SenderID].DisplayName})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// SearchMessages finds plaintext messages in one thread matching the query.
func (h *ConversationHandler) SearchMessages(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("peer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	userID := middleware.CallerID(c)

	msgs, err := h.messages.Search(c.Request.Context(), userID, peerID, userID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// HideThread removes the conversation from the caller's list. The next
// message from either side brings it back.
func (h *ConversationHandler) HideThread(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("peer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}
	userID := middleware.CallerID(c)

	if err := h.conversations.HideThread(c.Request.Context(), userID, peerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not hide conversation"})
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteMessageForMe hides one message from the caller's view only.
func (h *ConversationHandler) DeleteMessageForMe(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := middleware.CallerID(c)

	if err := h.messages.HideForViewer(c.Request.Context(), messageID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	c.Status(http.StatusNoContent)
}

func senderIDs(msgs []models.Message) []int {
	seen := map[int]struct{}{}
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}
	return ids
}
