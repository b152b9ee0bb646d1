package amqp

import (
	"testing"
	"time"
)

func TestLedgerEventJSON(t *testing.T) {
	event := NewLedgerEvent(EventTransactionCreated, "t1", "g1")

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.Type != EventTransactionCreated || got.TransactionID != "t1" || got.GroupID != "g1" {
		t.Errorf("round-trip: %+v", got)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Errorf("timestamp not stamped: %v", got.Timestamp)
	}
}

func TestLedgerEventFromJSON_Invalid(t *testing.T) {
	if _, err := LedgerEventFromJSON([]byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
