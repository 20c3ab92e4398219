package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type envelope struct {
	Type string `json:"type"`
}

// DecodeMessage parses one inbound payload into its typed message.
// Unknown discriminators return ErrUnknownType wrapped with the raw
// type so callers can log and ignore them.
func DecodeMessage(data []byte) (Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPayload
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	msgType := strings.TrimSpace(env.Type)
	if msgType == "" {
		return nil, ErrMissingType
	}

	switch msgType {
	case MsgInitialData:
		var msg InitialData
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, msgType, err)
		}
		if msg.UnreadCount < 0 {
			return nil, fmt.Errorf("%w: %s: negative unread_count", ErrInvalidMessage, msgType)
		}
		return msg, nil
	case MsgNewNotification:
		var msg NewNotification
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, msgType, err)
		}
		if msg.Notification.ID == 0 {
			return nil, fmt.Errorf("%w: %s: missing notification id", ErrInvalidMessage, msgType)
		}
		return msg, nil
	case MsgNotificationRead:
		var msg NotificationRead
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, msgType, err)
		}
		if msg.NotificationID == 0 {
			return nil, fmt.Errorf("%w: %s: missing notificationId", ErrInvalidMessage, msgType)
		}
		return msg, nil
	case MsgBulkRead:
		var msg BulkRead
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, msgType, err)
		}
		return msg, nil
	case MsgError:
		var msg ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, msgType, err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msgType)
	}
}
