package chat

import (
	"code-mentor/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendCommand asks a channel to append a message to a room.
type SendCommand struct {
	Room    RoomID `validate:"required"`
	UserID  string
	Sender  string `validate:"required"`
	Kind    Kind   `validate:"required,oneof=student facilitator system help-request"`
	Content string `validate:"required"`
}

// Validate checks the command before any backend sees it.
func (c SendCommand) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.ErrEmptyContent
	}
	return validate.Struct(c)
}

// ToMessage builds the message carried by the command.
func (c SendCommand) ToMessage(id string) Message {
	return Message{
		ID:      id,
		Kind:    c.Kind,
		Content: c.Content,
		SentAt:  Now(),
		Sender:  c.Sender,
		UserID:  c.UserID,
	}
}
