package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

type pipelineFixture struct {
	verifier      *mocks.VerifierMock
	messages      *mocks.MessageRepositoryMock
	groupMessages *mocks.GroupMessageRepositoryMock
	groups        *mocks.GroupRepositoryMock
	conversations *mocks.ConversationRepositoryMock
	router        *mocks.RouterMock
	pipeline      *Pipeline
}

func newFixture() *pipelineFixture {
	f := &pipelineFixture{
		verifier:      new(mocks.VerifierMock),
		messages:      new(mocks.MessageRepositoryMock),
		groupMessages: new(mocks.GroupMessageRepositoryMock),
		groups:        new(mocks.GroupRepositoryMock),
		conversations: new(mocks.ConversationRepositoryMock),
		router:        new(mocks.RouterMock),
	}
	f.pipeline = NewPipeline(f.verifier, f.messages, f.groupMessages, f.groups, f.conversations, f.router, nil)
	return f
}

func TestSendDirectStoresBeforeRouting(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)
	stored := models.Message{ID: 42, SenderID: 7, ReceiverID: 9, Body: "hi", Kind: models.KindText, Urgency: models.UrgencyNormal, CreatedAt: now}
	f.messages.On("Append", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.SenderID == 7 && m.ReceiverID == 9 && m.Body == "hi" && m.Kind == models.KindText
	})).Return(stored, nil)
	f.conversations.On("Touch", mock.Anything, 7, 9, now).Return(nil)
	f.conversations.On("MarkRead", mock.Anything, 7, 9, now).Return(nil)
	f.router.On("Publish", ws.UserTopic(9), mock.MatchedBy(func(ev models.ServerEvent) bool {
		return ev.Type == models.EventReceiveMessage && ev.Message.ID == 42
	})).Return(1)
	f.router.On("Publish", ws.UserTopic(7), mock.Anything).Return(1)

	got, err := f.pipeline.SendDirect(context.Background(), models.ClientEvent{
		Type: models.ClientSendMessage, Token: "tok", ReceiverID: 9, Text: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, stored, got)
	f.messages.AssertExpectations(t)
	f.router.AssertExpectations(t)
	f.conversations.AssertExpectations(t)
}

func TestSendDirectAuthFailureIsSilentDrop(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "bad").Return(0, auth.ErrInvalidToken)

	_, err := f.pipeline.SendDirect(context.Background(), models.ClientEvent{Token: "bad", ReceiverID: 9, Text: "hi"})
	require.ErrorIs(t, err, ErrDropped)
	f.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.router.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSendDirectRejectsEmptyPayload(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)

	_, err := f.pipeline.SendDirect(context.Background(), models.ClientEvent{Token: "tok", ReceiverID: 9})
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	f.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendDirectRejectsWhitespaceOnlyText(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)

	_, err := f.pipeline.SendDirect(context.Background(), models.ClientEvent{Token: "tok", ReceiverID: 9, Text: "   \t\n"})
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	f.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendDirectRejectsSelfSend(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)

	_, err := f.pipeline.SendDirect(context.Background(), models.ClientEvent{Token: "tok", ReceiverID: 7, Text: "hi"})
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
}

func TestSendDirectClassifiesAttachmentKind(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)
	f.messages.On("Append", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.Kind == models.KindImage && m.AttachmentURL != nil
	})).Return(models.Message{ID: 1, SenderID: 7, ReceiverID: 9, Kind: models.KindImage}, nil)
	f.conversations.On("Touch", mock.Anything, 7, 9, mock.Anything).Return(nil)
	f.conversations.On("MarkRead", mock.Anything, 7, 9, mock.Anything).Return(nil)
	f.router.On("Publish", mock.Anything, mock.Anything).Return(0)

	_, err := f.pipeline.SendDirect(context.Background(), models.ClientEvent{
		Token: "tok", ReceiverID: 9, FileURL: "/api/files/image/7/x_photo.png", FileName: "photo.png",
	})
	require.NoError(t, err)
	f.messages.AssertExpectations(t)
}

func TestSendGroupRechecksMembershipAtSendTime(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)
	f.groups.On("IsMember", mock.Anything, 3, 7).Return(false, nil)

	_, err := f.pipeline.SendGroup(context.Background(), models.ClientEvent{Token: "tok", GroupID: 3, Text: "hi"})
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	f.groupMessages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendGroupPublishesToGroupRoomOnly(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)
	f.groups.On("IsMember", mock.Anything, 3, 7).Return(true, nil)
	stored := models.GroupMessage{ID: 5, GroupID: 3, SenderID: 7, Body: "hi", Kind: models.KindText, CreatedAt: now}
	f.groupMessages.On("Append", mock.Anything, mock.Anything).Return(stored, nil)
	f.groups.On("TouchLastRead", mock.Anything, 3, 7, now).Return(nil)
	f.router.On("Publish", ws.GroupTopic(3), mock.MatchedBy(func(ev models.ServerEvent) bool {
		return ev.Type == models.EventReceiveGroupMessage && ev.GroupMessage.ID == 5
	})).Return(2)

	got, err := f.pipeline.SendGroup(context.Background(), models.ClientEvent{Token: "tok", GroupID: 3, Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, stored, got)
	f.router.AssertExpectations(t)
	f.router.AssertNumberOfCalls(t, "Publish", 1)
}

func TestEditOnlyBySender(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(8, nil)
	f.messages.On("EditByOwner", mock.Anything, 42, 8, "new").Return(models.Message{}, repositories.ErrNotSender)

	err := f.pipeline.Edit(context.Background(), models.ClientEvent{Token: "tok", MessageID: 42, Text: "new"})
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	f.router.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestEditRepublishesToBothParties(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)
	edited := models.Message{ID: 42, SenderID: 7, ReceiverID: 9, Body: "new", Edited: true}
	f.messages.On("EditByOwner", mock.Anything, 42, 7, "new").Return(edited, nil)
	f.router.On("Publish", ws.UserTopic(7), mock.MatchedBy(func(ev models.ServerEvent) bool {
		return ev.Type == models.EventMessageEdited && ev.Message.Edited
	})).Return(1)
	f.router.On("Publish", ws.UserTopic(9), mock.Anything).Return(1)

	require.NoError(t, f.pipeline.Edit(context.Background(), models.ClientEvent{Token: "tok", MessageID: 42, Text: "new"}))
	f.router.AssertExpectations(t)
}

func TestDeleteForAllTombstonesAndRepublishes(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(7, nil)
	tombstoned := models.Message{ID: 42, SenderID: 7, ReceiverID: 9, Body: models.TombstoneText, Tombstoned: true}
	f.messages.On("Tombstone", mock.Anything, 42, 7).Return(tombstoned, nil)
	f.router.On("Publish", ws.UserTopic(7), mock.MatchedBy(func(ev models.ServerEvent) bool {
		return ev.Type == models.EventMessageDeleted && ev.Message.Body == models.TombstoneText
	})).Return(1)
	f.router.On("Publish", ws.UserTopic(9), mock.Anything).Return(1)

	err := f.pipeline.Delete(context.Background(), models.ClientEvent{Token: "tok", MessageID: 42, Scope: models.DeleteScopeAll})
	require.NoError(t, err)
	f.router.AssertExpectations(t)
}

func TestDeleteForMeHidesWithoutRepublish(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(9, nil)
	f.messages.On("HideForViewer", mock.Anything, 42, 9).Return(nil)

	err := f.pipeline.Delete(context.Background(), models.ClientEvent{Token: "tok", MessageID: 42, Scope: models.DeleteScopeMe})
	require.NoError(t, err)
	f.messages.AssertExpectations(t)
	f.router.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDeleteUnknownScopeRejected(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(9, nil)

	err := f.pipeline.Delete(context.Background(), models.ClientEvent{Token: "tok", MessageID: 42, Scope: "later"})
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
}

func TestDeleteGroupForAllBySenderOnly(t *testing.T) {
	f := newFixture()
	f.verifier.On("VerifyCredential", mock.Anything, "tok").Return(8, nil)
	f.groupMessages.On("Tombstone", mock.Anything, 5, 8).Return(models.GroupMessage{}, repositories.ErrNotSender)

	err := f.pipeline.Delete(context.Background(), models.ClientEvent{Token: "tok", MessageID: 5, Group: true, Scope: models.DeleteScopeAll})
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	f.router.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
