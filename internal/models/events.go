package models

// Server push event types. Names follow the client wire vocabulary.
const (
	EventReceiveMessage      = "receive_message"
	EventReceiveGroupMessage = "receive_group_message"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventUserStatus          = "user_status"
	EventGroupUserJoined     = "group_user_joined"
	EventGroupUserLeft       = "group_user_left"
	EventGroupDeleted        = "group_deleted"
	EventUserTyping          = "user_typing"
	EventUserStopTyping      = "user_stop_typing"
	EventError               = "error"
)

// Client event types.
const (
	ClientSendMessage      = "send_message"
	ClientSendGroupMessage = "send_group_message"
	ClientEditMessage      = "edit_message"
	ClientDeleteMessage    = "delete_message"
	ClientJoinGroup        = "join_group"
	ClientLeaveGroup       = "leave_group"
	ClientMarkRead         = "mark_read"
	ClientTyping           = "typing"
	ClientStopTyping       = "stop_typing"
)

// Delete scopes for ClientDeleteMessage.
const (
	DeleteScopeAll = "all"
	DeleteScopeMe  = "me"
)

// ServerEvent is the envelope pushed to websocket clients.
type ServerEvent struct {
	Type         string        `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	GroupMessage *GroupMessage `json:"group_message,omitempty"`
	MessageID    int           `json:"message_id,omitempty"`
	GroupID      int           `json:"group_id,omitempty"`
	GroupName    string        `json:"group_name,omitempty"`
	UserID       int           `json:"user_id,omitempty"`
	UserName     string        `json:"user_name,omitempty"`
	Status       string        `json:"status,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// ClientEvent is one inbound websocket frame. Every event carries its own
// token: send authentication is re-resolved per event, never cached from
// connect time.
type ClientEvent struct {
	Type          string `json:"type"`
	Token         string `json:"token"`
	ReceiverID    int    `json:"receiver_id,omitempty"`
	GroupID       int    `json:"group_id,omitempty"`
	MessageID     int    `json:"message_id,omitempty"`
	Group         bool   `json:"group,omitempty"`
	Text          string `json:"text,omitempty"`
	FileURL       string `json:"file_url,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	Encrypted     bool   `json:"encrypted,omitempty"`
	EncryptedData string `json:"encrypted_data,omitempty"`
	IV            string `json:"iv,omitempty"`
	Urgency       string `json:"urgency,omitempty"`
	Scope         string `json:"scope,omitempty"`
}
