package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

type EventType string

const (
	EventExpenseCreated  EventType = "expense.created"
	EventExpenseEdited   EventType = "expense.edited"
	EventExpenseDeleted  EventType = "expense.deleted"
	EventPaymentRecorded EventType = "payment.recorded"
	EventPaymentRemoved  EventType = "payment.removed"
)

// ExpenseEvent announces a change to an expense, its variants or payments.
// Consumers treat it as a notification; the store stays the source of truth.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ExpenseID string    `json:"expense_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	Months    []string  `json:"months,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event stamped with the current time.
func NewExpenseEvent(t EventType, expenseID, userID string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      t,
		ExpenseID: expenseID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (e *ExpenseEvent) Validate() error {
	switch e.Type {
	case EventExpenseCreated, EventExpenseEdited, EventExpenseDeleted, EventPaymentRecorded, EventPaymentRemoved:
	default:
		return errors.New("unknown event type: " + string(e.Type))
	}
	if e.ExpenseID == "" {
		return errors.New("event without expense id")
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var evt ExpenseEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return &evt, nil
}
