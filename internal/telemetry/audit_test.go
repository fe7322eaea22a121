package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/telemetry"
)

func TestEmitBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "messaging.audit", "messaging-service", "test")

	publisher.On("Publish", mock.Anything, "messaging.audit", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		return ok &&
			envelope.SchemaVersion == 1 &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "messaging-service" &&
			envelope.Payload.Level == "info" &&
			envelope.Payload.Text == "message 7 deleted for all" &&
			envelope.UserID != nil && *envelope.UserID == "3"
	})).Return(nil).Once()

	emitter.EmitUser(context.Background(), "info", "message 7 deleted for all", "req-1", 3)
	publisher.AssertExpectations(t)
}

func TestEmitNilEmitterIsSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	require.NotPanics(t, func() {
		emitter.EmitUser(context.Background(), "info", "noop", "", 1)
	})
}
