package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is one outbound client command.
type Command interface {
	CommandType() string
	Validate() error
}

// MarkRead asks the service to mark a single notification read. The
// service confirms with a notification_read message; the client never
// mutates local state optimistically.
type MarkRead struct {
	NotificationID int64
}

func (MarkRead) CommandType() string { return CmdMarkRead }

func (c MarkRead) Validate() error {
	if c.NotificationID <= 0 {
		return fmt.Errorf("%w: mark_read requires a positive notificationId", ErrInvalidCommand)
	}
	return nil
}

// MarkAllRead asks the service to mark every notification read.
type MarkAllRead struct{}

func (MarkAllRead) CommandType() string { return CmdMarkAllRead }

func (MarkAllRead) Validate() error { return nil }

type commandEnvelope struct {
	Type           string `json:"type"`
	NotificationID int64  `json:"notificationId,omitempty"`
}

// EncodeCommand serializes a command into its wire envelope.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	env := commandEnvelope{Type: cmd.CommandType()}
	if mr, ok := cmd.(MarkRead); ok {
		env.NotificationID = mr.NotificationID
	}
	return json.Marshal(env)
}
