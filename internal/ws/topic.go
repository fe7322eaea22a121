package ws

import "fmt"

type topicKind uint8

const (
	topicUser topicKind = iota + 1
	topicGroup
)

// Topic names a broadcast channel. User and group topics live in separate
// namespaces, so UserTopic(7) can never collide with GroupTopic(7).
type Topic struct {
	kind topicKind
	id   int
}

// UserTopic is the reserved per-user topic. A user's own sessions always join
// it, so senders receive an echo of their own messages on every device.
func UserTopic(userID int) Topic { return Topic{kind: topicUser, id: userID} }

// GroupTopic is the per-group topic, joined only while a session actively
// participates in the group room.
func GroupTopic(groupID int) Topic { return Topic{kind: topicGroup, id: groupID} }

// Kind returns a short label for metrics and logging.
func (t Topic) Kind() string {
	if t.kind == topicGroup {
		return "group"
	}
	return "user"
}

func (t Topic) String() string {
	return fmt.Sprintf("%s:%d", t.Kind(), t.id)
}
