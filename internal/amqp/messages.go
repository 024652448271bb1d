package amqp

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RoutingDatasetImported is the routing key of dataset replacement notices.
const RoutingDatasetImported = "dataset.imported"

// ErrInvalidMessage marks a message body that can never be processed.
var ErrInvalidMessage = errors.New("invalid message")

// DatasetImportedMessage announces that the stored dataset was replaced.
// It carries no records; consumers reload the whole table from the store.
type DatasetImportedMessage struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetImportedMessage creates a notice for rows written into source.
func NewDatasetImportedMessage(source string, rows int) *DatasetImportedMessage {
	return &DatasetImportedMessage{
		ID:        newMessageID(),
		Source:    source,
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	}
}

func (m *DatasetImportedMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if m.Rows < 0 {
		return fmt.Errorf("%w: negative row count %d", ErrInvalidMessage, m.Rows)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *DatasetImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetImportedMessageFromJSON decodes and validates a message body.
func DatasetImportedMessageFromJSON(data []byte) (*DatasetImportedMessage, error) {
	var msg DatasetImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func newMessageID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
