package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ExportRequestMessage asks the export worker to copy a user's expenses
// recorded since Since into the configured sink.
type ExportRequestMessage struct {
	RequestID uuid.UUID `json:"request_id"`
	UserID    int64     `json:"user_id"`
	Since     time.Time `json:"since"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportRequestMessage(userID int64, since time.Time) *ExportRequestMessage {
	return &ExportRequestMessage{
		RequestID: uuid.New(),
		UserID:    userID,
		Since:     since,
		Timestamp: time.Now(),
	}
}

func (m *ExportRequestMessage) Validate() error {
	if m.RequestID == uuid.Nil {
		return errors.New("missing request id")
	}
	if m.UserID == 0 {
		return errors.New("missing user id")
	}
	if m.Since.IsZero() {
		return errors.New("missing since")
	}
	return nil
}

func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
