package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseWriter appends one expense to the exported ledger and returns a
	// reference to the written row.
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)

// Header is the column layout of an exported ledger sheet.
var Header = []string{"Date", "Description", "Amount", "Household", "Expense", "Recurring expense"}

// Row renders e in Header order. Amounts use a dot decimal separator.
func Row(e core.Expense) []any {
	recurring := ""
	if e.RecurringExpenseID != nil {
		recurring = e.RecurringExpenseID.String()
	}
	return []any{
		e.Date.String(),
		e.Description,
		e.Amount.String(),
		e.HouseholdID.String(),
		e.ID.String(),
		recurring,
	}
}
