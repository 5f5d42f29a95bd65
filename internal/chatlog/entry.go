package chatlog

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Sender identifies who produced a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Entry is one chat message as handed over by a session handler. UserID and
// ManualID are the externally visible handles, not database keys.
type Entry struct {
	SessionID string `json:"session_id" validate:"required,max=100"`
	UserID    string `json:"user_id" validate:"max=100"`
	ManualID  string `json:"manual_id" validate:"max=64"`
	Sender    Sender `json:"sender" validate:"required,oneof=user ai"`
	Message   string `json:"message"`
}

// Record is the buffer-resident form of an Entry after identifier
// resolution. Nil keys mean the handle did not resolve.
type Record struct {
	SessionID string `json:"session_id"`
	UserID    *int64 `json:"user_id"`
	ManualID  *int64 `json:"manual_id"`
	Sender    Sender `json:"sender"`
	Message   string `json:"message"`
}

var validate = validator.New()

// Validate reports missing or malformed fields.
func (e Entry) Validate() error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid chat log entry: %s", strings.Join(fields, "; "))
}
