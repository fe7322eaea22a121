package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

const maxFrameBytes = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Dispatcher is the inbound side of the delivery pipeline as the gateway
// sees it.
type Dispatcher interface {
	SendDirect(ctx context.Context, ev models.ClientEvent) (models.Message, error)
	SendGroup(ctx context.Context, ev models.ClientEvent) (models.GroupMessage, error)
	Edit(ctx context.Context, ev models.ClientEvent) error
	Delete(ctx context.Context, ev models.ClientEvent) error
}

// Gateway owns the single websocket endpoint: handshake auth, session
// lifecycle, presence registration and per-event dispatch.
type Gateway struct {
	verifier      auth.Verifier
	hub           *Hub
	registry      *presence.Registry
	dispatcher    Dispatcher
	groups        repositories.GroupRepository
	conversations repositories.ConversationRepository
	audit         *telemetry.AuditEmitter

	pingInterval time.Duration
	pongWait     time.Duration
}

// NewGateway wires a Gateway.
func NewGateway(
	verifier auth.Verifier,
	hub *Hub,
	registry *presence.Registry,
	dispatcher Dispatcher,
	groups repositories.GroupRepository,
	conversations repositories.ConversationRepository,
	audit *telemetry.AuditEmitter,
	pingInterval, pongWait time.Duration,
) *Gateway {
	return &Gateway{
		verifier:      verifier,
		hub:           hub,
		registry:      registry,
		dispatcher:    dispatcher,
		groups:        groups,
		conversations: conversations,
		audit:         audit,
		pingInterval:  pingInterval,
		pongWait:      pongWait,
	}
}

// Handle upgrades the request and runs the session until the peer goes away.
func (g *Gateway) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Sec-WebSocket-Protocol")
	}

	userID, err := g.verifier.VerifyCredential(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	tracer := otel.Tracer("messaging-service/ws")
	ctx, span := tracer.Start(c.Request.Context(), "ws.handshake",
		oteltrace.WithAttributes(attribute.Int("user.id", userID)))
	traceID := span.SpanContext().TraceID().String()
	span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	session := NewSession(conn, info)

	g.registry.Register(userID, session)
	g.hub.Join(UserTopic(userID), session)
	observability.IncWSActive("session")
	observability.IncWSEvent("session", "connect")
	g.audit.EmitUser(ctx, "info", "websocket connected", info.RequestID, userID)

	logrus.WithFields(logrus.Fields{
		"conn_id":   info.ConnID,
		"user_id":   userID,
		"device_id": info.DeviceID,
		"ip":        info.IP,
	}).Info("websocket session open")

	go session.WritePump(g.pingInterval, g.pongWait/3)
	g.readLoop(session, conn)

	g.hub.LeaveAll(session)
	g.registry.Unregister(session)
	session.Close()
	observability.DecWSActive("session")
	observability.IncWSEvent("session", "disconnect")
	g.audit.EmitUser(context.Background(), "info", "websocket disconnected", info.RequestID, userID)
}

func (g *Gateway) readLoop(session *Session, conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(g.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(g.pongWait))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("conn_id", session.ConnID()).Debug("websocket read error")
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			session.SendEvent(models.ServerEvent{Type: models.EventError, Reason: "malformed event"})
			continue
		}

		observability.IncWSEvent("session", ev.Type)
		g.dispatch(session, ev)
	}
}

func (g *Gateway) dispatch(session *Session, ev models.ClientEvent) {
	ctx := context.Background()

	switch ev.Type {
	case models.ClientSendMessage:
		if ev.Group {
			_, err := g.dispatcher.SendGroup(ctx, ev)
			g.replyOnRejection(session, err)
			return
		}
		_, err := g.dispatcher.SendDirect(ctx, ev)
		g.replyOnRejection(session, err)

	case models.ClientSendGroupMessage:
		_, err := g.dispatcher.SendGroup(ctx, ev)
		g.replyOnRejection(session, err)

	case models.ClientEditMessage:
		g.replyOnRejection(session, g.dispatcher.Edit(ctx, ev))

	case models.ClientDeleteMessage:
		g.replyOnRejection(session, g.dispatcher.Delete(ctx, ev))

	case models.ClientJoinGroup:
		g.joinGroup(ctx, session, ev)

	case models.ClientLeaveGroup:
		g.hub.Leave(GroupTopic(ev.GroupID), session)

	case models.ClientMarkRead:
		g.markRead(ctx, session, ev)

	case models.ClientTyping:
		g.relayTyping(ctx, session, ev, models.EventUserTyping)

	case models.ClientStopTyping:
		g.relayTyping(ctx, session, ev, models.EventUserStopTyping)

	default:
		session.SendEvent(models.ServerEvent{Type: models.EventError, Reason: "unknown event type"})
	}
}

// joinGroup subscribes the session to a group room after re-checking durable
// membership. Joining twice is harmless.
func (g *Gateway) joinGroup(ctx context.Context, session *Session, ev models.ClientEvent) {
	userID, err := g.verifier.VerifyCredential(ctx, ev.Token)
	if err != nil {
		return
	}
	member, err := g.groups.IsMember(ctx, ev.GroupID, userID)
	if err != nil {
		logrus.WithError(err).Error("join group membership check")
		return
	}
	if !member {
		session.SendEvent(models.ServerEvent{Type: models.EventError, Reason: "not a group member"})
		return
	}
	g.hub.Join(GroupTopic(ev.GroupID), session)
	g.hub.Publish(GroupTopic(ev.GroupID), models.ServerEvent{
		Type:    models.EventGroupUserJoined,
		GroupID: ev.GroupID,
		UserID:  userID,
	})
}

func (g *Gateway) markRead(ctx context.Context, session *Session, ev models.ClientEvent) {
	userID, err := g.verifier.VerifyCredential(ctx, ev.Token)
	if err != nil {
		return
	}
	now := time.Now()
	if ev.Group {
		if err := g.groups.TouchLastRead(ctx, ev.GroupID, userID, now); err != nil {
			logrus.WithError(err).Error("mark group read")
		}
		return
	}
	if err := g.conversations.Touch(ctx, userID, ev.ReceiverID, now); err != nil {
		logrus.WithError(err).Error("touch conversation on read")
	}
	if err := g.conversations.MarkRead(ctx, userID, ev.ReceiverID, now); err != nil {
		logrus.WithError(err).Error("mark conversation read")
	}
}

// relayTyping pushes a transient typing indicator; nothing is persisted.
func (g *Gateway) relayTyping(ctx context.Context, session *Session, ev models.ClientEvent, eventType string) {
	userID, err := g.verifier.VerifyCredential(ctx, ev.Token)
	if err != nil {
		return
	}
	event := models.ServerEvent{Type: eventType, UserID: userID, GroupID: ev.GroupID}
	if ev.Group {
		g.hub.Publish(GroupTopic(ev.GroupID), event)
		return
	}
	g.hub.Publish(UserTopic(ev.ReceiverID), event)
}

// rejectionError matches pre-persistence refusals the client should see.
type rejectionError interface {
	error
	Rejection()
}

// droppedError matches submissions discarded without telling the caller.
type droppedError interface {
	error
	Dropped()
}

func (g *Gateway) replyOnRejection(session *Session, err error) {
	if err == nil {
		return
	}
	var rejection rejectionError
	if errors.As(err, &rejection) {
		session.SendEvent(models.ServerEvent{Type: models.EventError, Reason: rejection.Error()})
		return
	}
	var dropped droppedError
	if errors.As(err, &dropped) {
		logrus.WithError(err).Debug("submission dropped")
		return
	}
	// Storage and other internal failures surface as a generic error so the
	// client knows the message did not land and can resend.
	logrus.WithError(err).WithField("conn_id", session.ConnID()).Error("submission failed")
	session.SendEvent(models.ServerEvent{Type: models.EventError, Reason: "message could not be processed"})
}
