package amqp

import (
	"encoding/json"
	"time"
)

// Operation is the kind of write a ledger event records.
type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
	OperationDeleted Operation = "deleted"
)

// LedgerEvent announces a successful write to one of the resource tables.
// It carries only identifiers; consumers fetch the row if they need it.
type LedgerEvent struct {
	Resource  string    `json:"resource"`
	Operation Operation `json:"operation"`
	RecordID  int64     `json:"record_id"`
	// ActorID is the authenticated caller, nil for anonymous requests.
	ActorID   *int64    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(resource string, op Operation, recordID int64, actorID *int64) *LedgerEvent {
	return &LedgerEvent{
		Resource:  resource,
		Operation: op,
		RecordID:  recordID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is "<resource>.<operation>", e.g. "gastos.created".
func (e *LedgerEvent) RoutingKey() string {
	return e.Resource + "." + string(e.Operation)
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
