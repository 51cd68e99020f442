package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed ledger mutation.
type EventType string

const (
	EventPurchaseRecorded EventType = "purchase.recorded"
	EventPurchaseDeleted  EventType = "purchase.deleted"
	EventPurchasesSynced  EventType = "purchases.synced"
	EventIncomeRecorded   EventType = "income.recorded"
	EventTransferRecorded EventType = "transfer.recorded"
	EventAccountCreated   EventType = "account.created"
	EventAccountRebased   EventType = "account.rebased"
	EventAccountDeleted   EventType = "account.deleted"
	EventCategoryCreated  EventType = "category.created"
	EventBudgetUpdated    EventType = "category.budget_updated"
	EventPeriodActivated  EventType = "period.activated"
	EventPeriodPopulated  EventType = "period.populated"
)

// LedgerEvent is published after a ledger mutation commits. It carries
// the touched rows only; consumers read current state from the store.
type LedgerEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	EntityID    int64     `json:"entity_id,omitempty"`
	AccountIDs  []int64   `json:"account_ids,omitempty"`
	CategoryIDs []int64   `json:"category_ids,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewLedgerEvent stamps a new event with a random id and the current time.
func NewLedgerEvent(typ EventType, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and checks it carries an id and type.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("ledger event missing id or type")
	}
	return &ev, nil
}
