package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:peer_id/messages", handler.GetMessages)
	r.GET("/conversations/:peer_id/search", handler.SearchMessages)
	r.DELETE("/conversations/:peer_id", handler.HideThread)
	r.DELETE("/messages/:message_id/me", handler.DeleteMessageForMe)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(new(mocks.MessageRepositoryMock), conversations, new(mocks.UserRepositoryMock))
	router := setupConversationRouter(handler)

	conversations.On("ListSummaries", mock.Anything, 1).Return([]models.ConversationSummary{
		{PeerID: 2, PeerName: "bob", UnreadCount: 3},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	require.Equal(t, 3, resp.Conversations[0].UnreadCount)
	conversations.AssertExpectations(t)
}

func TestListConversationsRepoError(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(new(mocks.MessageRepositoryMock), conversations, new(mocks.UserRepositoryMock))
	router := setupConversationRouter(handler)

	conversations.On("ListSummaries", mock.Anything, 1).Return(([]models.ConversationSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetMessagesMarksReadAndTouchesRecency(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	conversations := new(mocks.ConversationRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(messages, conversations, users)
	router := setupConversationRouter(handler)

	messages.On("ListVisible", mock.Anything, 1, 2, 1).Return([]models.Message{
		{ID: 10, SenderID: 2, ReceiverID: 1, Body: "hello"},
	}, nil).Once()
	conversations.On("Touch", mock.Anything, 1, 2, mock.Anything).Return(nil).Once()
	conversations.On("MarkRead", mock.Anything, 1, 2, mock.Anything).Return(nil).Once()
	users.On("BulkUsers", mock.Anything, []int{2}).Return(map[int]models.User{
		2: {ID: 2, DisplayName: "bob"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"sender_name":"bob"`)
	messages.AssertExpectations(t)
	conversations.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestGetMessagesInvalidPeer(t *testing.T) {
	handler := NewConversationHandler(new(mocks.MessageRepositoryMock), new(mocks.ConversationRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchMessagesRequiresQuery(t *testing.T) {
	handler := NewConversationHandler(new(mocks.MessageRepositoryMock), new(mocks.ConversationRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchMessagesSuccess(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(messages, new(mocks.ConversationRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupConversationRouter(handler)

	messages.On("Search", mock.Anything, 1, 2, 1, "plan").Return([]models.Message{{ID: 4, Body: "the plan"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/search?q=plan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestHideThread(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(new(mocks.MessageRepositoryMock), conversations, new(mocks.UserRepositoryMock))
	router := setupConversationRouter(handler)

	conversations.On("HideThread", mock.Anything, 1, 2).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	conversations.AssertExpectations(t)
}

func TestDeleteMessageForMeNotFound(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(messages, new(mocks.ConversationRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupConversationRouter(handler)

	messages.On("HideForViewer", mock.Anything, 42, 1).Return(repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/42/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messages.AssertExpectations(t)
}
