package transport

import (
	"code-mentor/domain/chat"
	"code-mentor/execution"
	"code-mentor/services"
)

const (
	FrameSend    = "send"
	FrameHelp    = "help"
	FrameRun     = "run"
	FrameRead    = "read"
	FrameReadAll = "read-all"

	FrameMessages      = "messages"
	FrameError         = "error"
	FrameOutput        = "output"
	FrameAck           = "ack"
	FrameNotifications = "notifications"
)

// Inbound is a frame sent by a dashboard.
type Inbound struct {
	Type     string             `json:"type"`
	Content  string             `json:"content,omitempty"`
	Source   string             `json:"source,omitempty"`
	Language execution.Language `json:"language,omitempty"`
	ID       string             `json:"id,omitempty"`
}

// Outbound is a frame pushed to a dashboard.
type Outbound struct {
	Type          string                  `json:"type"`
	Room          chat.RoomID             `json:"room,omitempty"`
	Messages      []chat.Message          `json:"messages"`
	Connected     *bool                   `json:"connected,omitempty"`
	Error         string                  `json:"error,omitempty"`
	Output        string                  `json:"output,omitempty"`
	ID            string                  `json:"id,omitempty"`
	Notifications []services.Notification `json:"notifications,omitempty"`
	Unread        *int                    `json:"unread,omitempty"`
}

type ExecuteResponse struct {
	Output   string             `json:"output"`
	Language execution.Language `json:"language"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
}
