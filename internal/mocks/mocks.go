package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) VerifyCredential(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) EditByOwner(ctx context.Context, messageID int, senderID int, newBody string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, newBody)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Tombstone(ctx context.Context, messageID int, senderID int) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) HideForViewer(ctx context.Context, messageID int, viewerID int) error {
	args := m.Called(ctx, messageID, viewerID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListVisible(ctx context.Context, userA int, userB int, viewerID int) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB, viewerID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Search(ctx context.Context, userA int, userB int, viewerID int, query string) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB, viewerID, query)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	args := m.Called(ctx, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountCreatedBetween(ctx context.Context, from time.Time, to time.Time) (int, error) {
	args := m.Called(ctx, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) CountAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) Append(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error) {
	args := m.Called(ctx, msg)
	var stored models.GroupMessage
	if val := args.Get(0); val != nil {
		stored = val.(models.GroupMessage)
	}
	return stored, args.Error(1)
}

func (m *GroupMessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) EditByOwner(ctx context.Context, messageID int, senderID int, newBody string) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID, senderID, newBody)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) Tombstone(ctx context.Context, messageID int, senderID int) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID, senderID)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) HideForViewer(ctx context.Context, messageID int, viewerID int) error {
	args := m.Called(ctx, messageID, viewerID)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) ListVisible(ctx context.Context, groupID int, viewerID int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID, viewerID)
	var msgs []models.GroupMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.GroupMessage)
	}
	return msgs, args.Error(1)
}

func (m *GroupMessageRepositoryMock) Search(ctx context.Context, groupID int, viewerID int, query string) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID, viewerID, query)
	var msgs []models.GroupMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.GroupMessage)
	}
	return msgs, args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListRecent(ctx context.Context, limit int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, limit)
	var msgs []models.GroupMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.GroupMessage)
	}
	return msgs, args.Error(1)
}

func (m *GroupMessageRepositoryMock) LastMessage(ctx context.Context, groupID int) (*models.GroupMessage, error) {
	args := m.Called(ctx, groupID)
	var msg *models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(*models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) UnreadCount(ctx context.Context, groupID int, userID int) (int, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Int(0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) Purge(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) CountCreatedBetween(ctx context.Context, from time.Time, to time.Time) (int, error) {
	args := m.Called(ctx, from, to)
	return args.Int(0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) CountAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, creatorID int, name string, description string, memberIDs []int) (models.Group, error) {
	args := m.Called(ctx, creatorID, name, description, memberIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) Members(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	args := m.Called(ctx, groupID)
	var members []models.GroupMember
	if val := args.Get(0); val != nil {
		members = val.([]models.GroupMember)
	}
	return members, args.Error(1)
}

func (m *GroupRepositoryMock) Leave(ctx context.Context, groupID int, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) Delete(ctx context.Context, groupID int, requesterID int) error {
	args := m.Called(ctx, groupID, requesterID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) TouchLastRead(ctx context.Context, groupID int, userID int, at time.Time) error {
	args := m.Called(ctx, groupID, userID, at)
	return args.Error(0)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) Touch(ctx context.Context, userA int, userB int, at time.Time) error {
	args := m.Called(ctx, userA, userB, at)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) MarkRead(ctx context.Context, userID int, peerID int, at time.Time) error {
	args := m.Called(ctx, userID, peerID, at)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) UnreadCount(ctx context.Context, userID int, peerID int) (int, error) {
	args := m.Called(ctx, userID, peerID)
	return args.Int(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ListSummaries(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var summaries []models.ConversationSummary
	if val := args.Get(0); val != nil {
		summaries = val.([]models.ConversationSummary)
	}
	return summaries, args.Error(1)
}

func (m *ConversationRepositoryMock) HideThread(ctx context.Context, userID int, peerID int) error {
	args := m.Called(ctx, userID, peerID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Get(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, userID int, online bool) error {
	args := m.Called(ctx, userID, online)
	return args.Error(0)
}

func (m *UserRepositoryMock) BulkUsers(ctx context.Context, ids []int) (map[int]models.User, error) {
	args := m.Called(ctx, ids)
	var users map[int]models.User
	if val := args.Get(0); val != nil {
		users = val.(map[int]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) CountUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *UserRepositoryMock) CountUsersCreatedSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

// RouterMock records published events per topic without a live hub.
type RouterMock struct {
	mock.Mock
}

func (m *RouterMock) Publish(topic ws.Topic, event models.ServerEvent) int {
	args := m.Called(topic, event)
	return args.Int(0)
}

func (m *RouterMock) CloseTopic(topic ws.Topic) {
	m.Called(topic)
}

var _ auth.Verifier = (*VerifierMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.GroupMessageRepository = (*GroupMessageRepositoryMock)(nil)
var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
