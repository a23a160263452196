package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExpenseMaterializedMessage announces an expense created by the recurring
// expense processor. Consumers load the expense itself from the database.
type ExpenseMaterializedMessage struct {
	ExpenseID          uuid.UUID `json:"expense_id"`
	RecurringExpenseID uuid.UUID `json:"recurring_expense_id"`
	HouseholdID        uuid.UUID `json:"household_id"`
	Date               string    `json:"date"`
	Timestamp          time.Time `json:"timestamp"`
}

func NewExpenseMaterializedMessage(expenseID, recurringID, householdID uuid.UUID, date string) *ExpenseMaterializedMessage {
	return &ExpenseMaterializedMessage{
		ExpenseID:          expenseID,
		RecurringExpenseID: recurringID,
		HouseholdID:        householdID,
		Date:               date,
		Timestamp:          time.Now(),
	}
}

func (m *ExpenseMaterializedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseMaterializedMessageFromJSON(data []byte) (*ExpenseMaterializedMessage, error) {
	var msg ExpenseMaterializedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// HouseholdInvitedMessage asks a mailer to notify an invited user.
// Placeholder is set when the user was created by the invite itself.
type HouseholdInvitedMessage struct {
	HouseholdID   uuid.UUID `json:"household_id"`
	HouseholdName string    `json:"household_name"`
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	Placeholder   bool      `json:"placeholder"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *HouseholdInvitedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func HouseholdInvitedMessageFromJSON(data []byte) (*HouseholdInvitedMessage, error) {
	var msg HouseholdInvitedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
