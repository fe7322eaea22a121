package ws

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

type refusal struct{ reason string }

func (e refusal) Error() string { return e.reason }
func (e refusal) Rejection()    {}

type discarded struct{}

func (discarded) Error() string { return "submission dropped" }
func (discarded) Dropped()      {}

func drainEvent(t *testing.T, s *Session) (models.ServerEvent, bool) {
	t.Helper()
	select {
	case payload := <-s.send:
		var ev models.ServerEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev, true
	default:
		return models.ServerEvent{}, false
	}
}

func TestReplyOnRejectionCarriesReason(t *testing.T) {
	g := &Gateway{}
	s := NewSession(nil, ConnInfo{ConnID: "c1", UserID: 1})

	g.replyOnRejection(s, refusal{reason: "receiver is required"})

	ev, ok := drainEvent(t, s)
	require.True(t, ok)
	require.Equal(t, models.EventError, ev.Type)
	require.Equal(t, "receiver is required", ev.Reason)
}

func TestReplyOnRejectionSilentOnDrop(t *testing.T) {
	g := &Gateway{}
	s := NewSession(nil, ConnInfo{ConnID: "c2", UserID: 1})

	g.replyOnRejection(s, fmt.Errorf("authenticate: %w", discarded{}))

	_, ok := drainEvent(t, s)
	require.False(t, ok)
}

func TestReplyOnRejectionSurfacesStorageFailure(t *testing.T) {
	g := &Gateway{}
	s := NewSession(nil, ConnInfo{ConnID: "c3", UserID: 1})

	g.replyOnRejection(s, fmt.Errorf("persist message: %w", fmt.Errorf("connection refused")))

	ev, ok := drainEvent(t, s)
	require.True(t, ok)
	require.Equal(t, models.EventError, ev.Type)
	require.Equal(t, "message could not be processed", ev.Reason)
}

func TestReplyOnRejectionNilError(t *testing.T) {
	g := &Gateway{}
	s := NewSession(nil, ConnInfo{ConnID: "c4", UserID: 1})

	g.replyOnRejection(s, nil)

	_, ok := drainEvent(t, s)
	require.False(t, ok)
}
