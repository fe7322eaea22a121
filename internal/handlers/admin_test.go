package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
)

func setupAdminRouter(handler *AdminHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/admin/messages", handler.RecentMessages)
	r.GET("/admin/group-messages", handler.RecentGroupMessages)
	r.GET("/admin/stats", handler.Stats)
	return r
}

func TestRecentMessagesIncludesTombstones(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewAdminHandler(messages, new(mocks.GroupMessageRepositoryMock), users, presence.NewRegistry(nil))
	router := setupAdminRouter(handler)

	messages.On("ListRecent", mock.Anything, recentMessagesLimit).Return([]models.Message{
		{ID: 2, SenderID: 1, ReceiverID: 2, Body: models.TombstoneText, Tombstoned: true},
	}, nil).Once()
	users.On("BulkUsers", mock.Anything, mock.Anything).Return(map[int]models.User{
		1: {ID: 1, DisplayName: "alice"},
		2: {ID: 2, DisplayName: "bob"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"is_deleted":true`)
	require.Contains(t, rec.Body.String(), `"sender_name":"alice"`)
	messages.AssertExpectations(t)
}

func TestRecentGroupMessages(t *testing.T) {
	groupMessages := new(mocks.GroupMessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewAdminHandler(new(mocks.MessageRepositoryMock), groupMessages, users, presence.NewRegistry(nil))
	router := setupAdminRouter(handler)

	groupMessages.On("ListRecent", mock.Anything, recentMessagesLimit).Return([]models.GroupMessage{
		{ID: 5, GroupID: 3, SenderID: 1, Body: "note"},
	}, nil).Once()
	users.On("BulkUsers", mock.Anything, []int{1}).Return(map[int]models.User{1: {ID: 1, DisplayName: "alice"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/group-messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupMessages.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestStatsAggregates(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	groupMessages := new(mocks.GroupMessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewAdminHandler(messages, groupMessages, users, presence.NewRegistry(nil))
	router := setupAdminRouter(handler)

	messages.On("CountAll", mock.Anything).Return(120, nil).Once()
	groupMessages.On("CountAll", mock.Anything).Return(40, nil).Once()
	users.On("CountUsers", mock.Anything).Return(12, nil).Once()
	users.On("CountUsersCreatedSince", mock.Anything, mock.Anything).Return(2, nil).Once()
	messages.On("CountCreatedBetween", mock.Anything, mock.Anything, mock.Anything).Return(3, nil).Times(7)
	groupMessages.On("CountCreatedBetween", mock.Anything, mock.Anything, mock.Anything).Return(1, nil).Times(7)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total_messages":120`)
	require.Contains(t, rec.Body.String(), `"total_group_messages":40`)
	require.Contains(t, rec.Body.String(), `"new_users":2`)
	require.Contains(t, rec.Body.String(), `"count":4`)
	messages.AssertExpectations(t)
	groupMessages.AssertExpectations(t)
	users.AssertExpectations(t)
}
