package protocol

import "errors"

var (
	ErrEmptyPayload   = errors.New("protocol: empty payload")
	ErrMissingType    = errors.New("protocol: missing type discriminator")
	ErrUnknownType    = errors.New("protocol: unknown message type")
	ErrInvalidMessage = errors.New("protocol: invalid message")
	ErrInvalidCommand = errors.New("protocol: invalid command")
)
