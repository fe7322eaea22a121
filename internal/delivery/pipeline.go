package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"messaging-service/internal/auth"
	"messaging-service/internal/files"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// Stage names the checkpoints a submission passes through. A submission can
// only be rejected before it is persisted; once stored it always proceeds to
// routing, even when every recipient is offline.
type Stage string

const (
	StageReceived      Stage = "received"
	StageAuthenticated Stage = "authenticated"
	StageValidated     Stage = "validated"
	StagePersisted     Stage = "persisted"
	StageIndexed       Stage = "indexed"
	StageRouted        Stage = "routed"
	StageDone          Stage = "done"
	StageRejected      Stage = "rejected"
)

// DropError marks submissions discarded without any reply to the client.
// Authentication failures end here; an unauthenticated caller learns nothing.
type DropError struct{}

func (DropError) Error() string { return "submission dropped" }

// Dropped marks the error as a deliberate silent discard.
func (DropError) Dropped() {}

var ErrDropped error = DropError{}

// RejectionError is a pre-persistence refusal that the caller should be told
// about.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// Rejection marks the error as a client-visible refusal.
func (e *RejectionError) Rejection() {}

func reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// Router is the fan-out side of the pipeline.
type Router interface {
	Publish(topic ws.Topic, event models.ServerEvent) int
	CloseTopic(topic ws.Topic)
}

// Pipeline moves each inbound submission through authentication, validation,
// persistence, index maintenance and fan-out, in that order. Durability comes
// first: an event is never routed before its message is stored.
type Pipeline struct {
	verifier      auth.Verifier
	messages      repositories.MessageRepository
	groupMessages repositories.GroupMessageRepository
	groups        repositories.GroupRepository
	conversations repositories.ConversationRepository
	router        Router
	audit         *telemetry.AuditEmitter
}

// NewPipeline wires a Pipeline.
func NewPipeline(
	verifier auth.Verifier,
	messages repositories.MessageRepository,
	groupMessages repositories.GroupMessageRepository,
	groups repositories.GroupRepository,
	conversations repositories.ConversationRepository,
	router Router,
	audit *telemetry.AuditEmitter,
) *Pipeline {
	return &Pipeline{
		verifier:      verifier,
		messages:      messages,
		groupMessages: groupMessages,
		groups:        groups,
		conversations: conversations,
		router:        router,
		audit:         audit,
	}
}

// authenticate resolves the per-event token. Failures are silent drops.
func (p *Pipeline) authenticate(ctx context.Context, token string) (int, error) {
	userID, err := p.verifier.VerifyCredential(ctx, token)
	if err != nil {
		logrus.WithError(err).Debug("pipeline drop: bad credential")
		return 0, ErrDropped
	}
	return userID, nil
}

func validatePayload(ev models.ClientEvent) error {
	hasText := strings.TrimSpace(ev.Text) != ""
	hasFile := ev.FileURL != ""
	hasCipher := ev.Encrypted && ev.EncryptedData != "" && ev.IV != ""
	if !hasText && !hasFile && !hasCipher {
		return reject("message payload is empty")
	}
	if ev.Encrypted && (ev.EncryptedData == "" || ev.IV == "") {
		return reject("encrypted message missing ciphertext or iv")
	}
	switch ev.Urgency {
	case "", string(models.UrgencyNormal), string(models.UrgencyUrgent):
	default:
		return reject("unknown urgency %q", ev.Urgency)
	}
	return nil
}

func urgencyOf(ev models.ClientEvent) models.Urgency {
	if ev.Urgency == string(models.UrgencyUrgent) {
		return models.UrgencyUrgent
	}
	return models.UrgencyNormal
}

func kindOf(ev models.ClientEvent) models.MessageKind {
	if ev.FileURL == "" {
		return models.KindText
	}
	if ev.FileName != "" {
		return files.Categorize(ev.FileName)
	}
	return files.Categorize(ev.FileURL)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SendDirect runs a direct message submission to completion and returns the
// stored message.
func (p *Pipeline) SendDirect(ctx context.Context, ev models.ClientEvent) (models.Message, error) {
	start := time.Now()

	senderID, err := p.authenticate(ctx, ev.Token)
	if err != nil {
		observability.ObservePipeline("direct", string(StageRejected), time.Since(start))
		return models.Message{}, err
	}

	if ev.ReceiverID == 0 {
		observability.ObservePipeline("direct", string(StageRejected), time.Since(start))
		return models.Message{}, reject("receiver is required")
	}
	if ev.ReceiverID == senderID {
		observability.ObservePipeline("direct", string(StageRejected), time.Since(start))
		return models.Message{}, reject("cannot message yourself")
	}
	if err := validatePayload(ev); err != nil {
		observability.ObservePipeline("direct", string(StageRejected), time.Since(start))
		return models.Message{}, err
	}

	stored, err := p.messages.Append(ctx, models.Message{
		SenderID:       senderID,
		ReceiverID:     ev.ReceiverID,
		Body:           ev.Text,
		Kind:           kindOf(ev),
		AttachmentURL:  optional(ev.FileURL),
		AttachmentMime: optional(ev.FileType),
		AttachmentName: optional(ev.FileName),
		Encrypted:      ev.Encrypted,
		Ciphertext:     optional(ev.EncryptedData),
		IV:             optional(ev.IV),
		Urgency:        urgencyOf(ev),
	})
	if err != nil {
		observability.ObservePipeline("direct", "error", time.Since(start))
		return models.Message{}, fmt.Errorf("persist message: %w", err)
	}

	// Index maintenance failures are logged but do not fail a persisted send.
	if err := p.conversations.Touch(ctx, senderID, ev.ReceiverID, stored.CreatedAt); err != nil {
		logrus.WithError(err).Error("touch conversation")
	}
	if err := p.conversations.MarkRead(ctx, senderID, ev.ReceiverID, stored.CreatedAt); err != nil {
		logrus.WithError(err).Error("mark sender read")
	}

	event := models.ServerEvent{Type: models.EventReceiveMessage, Message: &stored}
	delivered := p.router.Publish(ws.UserTopic(stored.ReceiverID), event)
	delivered += p.router.Publish(ws.UserTopic(senderID), event)
	observability.AddFanoutDeliveries(delivered)

	p.publishDomainEvent(ctx, "message.created", stored)
	observability.ObservePipeline("direct", string(StageDone), time.Since(start))
	return stored, nil
}

// SendGroup runs a group message submission to completion. Membership is
// re-checked here, at send time, never trusted from connect time.
func (p *Pipeline) SendGroup(ctx context.Context, ev models.ClientEvent) (models.GroupMessage, error) {
	start := time.Now()

	senderID, err := p.authenticate(ctx, ev.Token)
	if err != nil {
		observability.ObservePipeline("group", string(StageRejected), time.Since(start))
		return models.GroupMessage{}, err
	}

	if ev.GroupID == 0 {
		observability.ObservePipeline("group", string(StageRejected), time.Since(start))
		return models.GroupMessage{}, reject("group is required")
	}
	if err := validatePayload(ev); err != nil {
		observability.ObservePipeline("group", string(StageRejected), time.Since(start))
		return models.GroupMessage{}, err
	}

	member, err := p.groups.IsMember(ctx, ev.GroupID, senderID)
	if err != nil {
		observability.ObservePipeline("group", "error", time.Since(start))
		return models.GroupMessage{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		p.audit.EmitUser(ctx, "warn", fmt.Sprintf("rejected send to group %d: not a member", ev.GroupID), "", senderID)
		observability.ObservePipeline("group", string(StageRejected), time.Since(start))
		return models.GroupMessage{}, reject("not a member of group %d", ev.GroupID)
	}

	stored, err := p.groupMessages.Append(ctx, models.GroupMessage{
		GroupID:        ev.GroupID,
		SenderID:       senderID,
		Body:           ev.Text,
		Kind:           kindOf(ev),
		AttachmentURL:  optional(ev.FileURL),
		AttachmentMime: optional(ev.FileType),
		AttachmentName: optional(ev.FileName),
		Encrypted:      ev.Encrypted,
		Ciphertext:     optional(ev.EncryptedData),
		IV:             optional(ev.IV),
		Urgency:        urgencyOf(ev),
	})
	if err != nil {
		observability.ObservePipeline("group", "error", time.Since(start))
		return models.GroupMessage{}, fmt.Errorf("persist group message: %w", err)
	}

	if err := p.groups.TouchLastRead(ctx, ev.GroupID, senderID, stored.CreatedAt); err != nil {
		logrus.WithError(err).Error("touch group last read")
	}

	delivered := p.router.Publish(ws.GroupTopic(ev.GroupID), models.ServerEvent{
		Type:         models.EventReceiveGroupMessage,
		GroupMessage: &stored,
		GroupID:      ev.GroupID,
	})
	observability.AddFanoutDeliveries(delivered)

	p.publishDomainEvent(ctx, "group_message.created", stored)
	observability.ObservePipeline("group", string(StageDone), time.Since(start))
	return stored, nil
}

// Edit rewrites a message body. Only the original sender may edit, and the
// store enforces that; a rewritten message is republished to the same rooms
// the original reached.
func (p *Pipeline) Edit(ctx context.Context, ev models.ClientEvent) error {
	userID, err := p.authenticate(ctx, ev.Token)
	if err != nil {
		return err
	}
	if strings.TrimSpace(ev.Text) == "" {
		return reject("edited text is empty")
	}

	if ev.Group {
		msg, err := p.groupMessages.EditByOwner(ctx, ev.MessageID, userID, ev.Text)
		if errors.Is(err, repositories.ErrNotSender) {
			return reject("only the sender can edit this message")
		}
		if err != nil {
			return fmt.Errorf("edit group message: %w", err)
		}
		p.router.Publish(ws.GroupTopic(msg.GroupID), models.ServerEvent{
			Type:         models.EventMessageEdited,
			GroupMessage: &msg,
			MessageID:    msg.ID,
			GroupID:      msg.GroupID,
		})
		return nil
	}

	msg, err := p.messages.EditByOwner(ctx, ev.MessageID, userID, ev.Text)
	if errors.Is(err, repositories.ErrNotSender) {
		return reject("only the sender can edit this message")
	}
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	event := models.ServerEvent{Type: models.EventMessageEdited, Message: &msg, MessageID: msg.ID}
	p.router.Publish(ws.UserTopic(msg.SenderID), event)
	p.router.Publish(ws.UserTopic(msg.ReceiverID), event)
	return nil
}

// Delete handles both scopes. Scope "all" tombstones the message for every
// viewer and republishes; scope "me" hides it for the caller alone and pushes
// nothing to anyone else.
func (p *Pipeline) Delete(ctx context.Context, ev models.ClientEvent) error {
	userID, err := p.authenticate(ctx, ev.Token)
	if err != nil {
		return err
	}

	switch ev.Scope {
	case models.DeleteScopeAll, "":
		return p.deleteGlobal(ctx, ev, userID)
	case models.DeleteScopeMe:
		return p.deleteForMe(ctx, ev, userID)
	default:
		return reject("unknown delete scope %q", ev.Scope)
	}
}

func (p *Pipeline) deleteGlobal(ctx context.Context, ev models.ClientEvent, userID int) error {
	if ev.Group {
		msg, err := p.groupMessages.Tombstone(ctx, ev.MessageID, userID)
		if errors.Is(err, repositories.ErrNotSender) {
			return reject("only the sender can delete this message for everyone")
		}
		if err != nil {
			return fmt.Errorf("tombstone group message: %w", err)
		}
		p.audit.EmitUser(ctx, "info", fmt.Sprintf("group message %d deleted for all", msg.ID), "", userID)
		p.router.Publish(ws.GroupTopic(msg.GroupID), models.ServerEvent{
			Type:         models.EventMessageDeleted,
			GroupMessage: &msg,
			MessageID:    msg.ID,
			GroupID:      msg.GroupID,
		})
		return nil
	}

	msg, err := p.messages.Tombstone(ctx, ev.MessageID, userID)
	if errors.Is(err, repositories.ErrNotSender) {
		return reject("only the sender can delete this message for everyone")
	}
	if err != nil {
		return fmt.Errorf("tombstone message: %w", err)
	}
	p.audit.EmitUser(ctx, "info", fmt.Sprintf("message %d deleted for all", msg.ID), "", userID)
	event := models.ServerEvent{Type: models.EventMessageDeleted, Message: &msg, MessageID: msg.ID}
	p.router.Publish(ws.UserTopic(msg.SenderID), event)
	p.router.Publish(ws.UserTopic(msg.ReceiverID), event)
	return nil
}

func (p *Pipeline) deleteForMe(ctx context.Context, ev models.ClientEvent, userID int) error {
	if ev.Group {
		member, err := p.groups.IsMember(ctx, ev.GroupID, userID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return reject("not a member of group %d", ev.GroupID)
		}
		return p.groupMessages.HideForViewer(ctx, ev.MessageID, userID)
	}

	err := p.messages.HideForViewer(ctx, ev.MessageID, userID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return reject("message not found")
	}
	return err
}

func (p *Pipeline) publishDomainEvent(ctx context.Context, eventName string, payload any) {
	var traceID string
	if span := oteltrace.SpanContextFromContext(ctx); span.HasTraceID() {
		traceID = span.TraceID().String()
	}
	envelope := observability.NewEnvelope(eventName, payload)
	headers := observability.BuildHeaders("", traceID)
	_ = observability.PublishEvent(ctx, "messaging."+eventName, envelope, headers)
}
