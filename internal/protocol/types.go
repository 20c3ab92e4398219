package protocol

import (
	"encoding/json"
	"time"
)

// Status tracks the delivery lifecycle of a notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusRead    Status = "read"
)

// Notification is one service-assigned notification record.
//
// IDs are unique and roughly monotonic but not contiguous. The client
// never deletes notifications during a session; lists grow by prepend.
type Notification struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Status    Status          `json:"status"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Inbound message type discriminators.
const (
	MsgInitialData      = "initial_data"
	MsgNewNotification  = "new_notification"
	MsgNotificationRead = "notification_read"
	MsgBulkRead         = "notifications_bulk_read"
	MsgError            = "error"
)

// Outbound command type discriminators.
const (
	CmdMarkRead    = "mark_read"
	CmdMarkAllRead = "mark_all_read"
)

// Message is one decoded inbound payload.
type Message interface {
	MessageType() string
}

// InitialData is the authoritative resync pushed by the service
// immediately after the socket opens. It replaces client state
// wholesale rather than merging.
type InitialData struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

func (InitialData) MessageType() string { return MsgInitialData }

// NewNotification delivers exactly one freshly created notification.
type NewNotification struct {
	Notification Notification `json:"notification"`
}

func (NewNotification) MessageType() string { return MsgNewNotification }

// NotificationRead confirms a single notification was marked read.
type NotificationRead struct {
	NotificationID int64      `json:"notificationId"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

func (NotificationRead) MessageType() string { return MsgNotificationRead }

// BulkRead confirms every notification was marked read at ReadAt.
type BulkRead struct {
	ReadAt *time.Time `json:"read_at,omitempty"`
}

func (BulkRead) MessageType() string { return MsgBulkRead }

// ServerError carries a service-side error report. It never alters
// connection state; callers log it and move on.
type ServerError struct {
	Message string `json:"message"`
}

func (ServerError) MessageType() string { return MsgError }
