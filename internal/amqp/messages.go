package amqp

import (
	"encoding/json"
	"time"
)

// Event types carried on the ledger events queue.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
)

// LedgerEvent is a lightweight notification that a group's ledger
// changed. It carries ids only; consumers fetch the full rows from the
// database so a stale message never overwrites newer data.
type LedgerEvent struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id"`
	GroupID       string    `json:"group_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(eventType, transactionID, groupID string) *LedgerEvent {
	return &LedgerEvent{
		Type:          eventType,
		TransactionID: transactionID,
		GroupID:       groupID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON creates an event from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var event LedgerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
