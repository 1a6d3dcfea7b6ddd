package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrDisconnected      = fmt.Errorf("channel is not connected")
	ErrRemoteUnavailable = fmt.Errorf("remote store unavailable")
	ErrChannelClosed     = fmt.Errorf("channel closed")
	ErrSessionClosed     = fmt.Errorf("session closed")
	ErrEmptyContent      = fmt.Errorf("message content is empty")
	ErrUnknownBackend    = fmt.Errorf("unknown chat backend")
	ErrInvalidRole       = fmt.Errorf("invalid role")
	ErrUnsupportedSource = fmt.Errorf("source file is not plain text")
	ErrUnknownLanguage   = fmt.Errorf("language cannot be inferred")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
)
