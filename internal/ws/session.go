package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/models"
)

const sendQueueSize = 64

// Session pairs an authenticated user with one websocket connection. All
// outbound frames go through the send queue and a single writer goroutine,
// so fan-out never interleaves writes on the shared connection.
type Session struct {
	info ConnInfo
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps an upgraded connection.
func NewSession(conn *websocket.Conn, info ConnInfo) *Session {
	return &Session{
		info: info,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (s *Session) ConnID() string { return s.info.ConnID }
func (s *Session) UserID() int    { return s.info.UserID }
func (s *Session) Info() ConnInfo { return s.info }

// Enqueue queues a frame for delivery. It never blocks; a full queue means
// the client has stopped draining, so the frame is dropped and the session
// is closed.
func (s *Session) Enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"conn_id": s.info.ConnID,
			"user_id": s.info.UserID,
		}).Warn("send queue full, closing session")
		s.Close()
		return false
	}
}

// SendEvent marshals and queues a server event for this session only.
func (s *Session) SendEvent(event models.ServerEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("marshal server event")
		return
	}
	s.Enqueue(payload)
}

// Close tears the session down once. The write pump notices and closes the
// underlying connection, which in turn unblocks the read loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed when the session is shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// WritePump drains the send queue onto the connection and keeps the liveness
// pings flowing. It owns all writes to the connection.
func (s *Session) WritePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithError(err).WithField("conn_id", s.info.ConnID).Debug("websocket write error")
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
