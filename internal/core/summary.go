package core

import "github.com/google/uuid"

// BucketSpend is the spend booked against one bucket in a month.
type BucketSpend struct {
	BucketID uuid.UUID `json:"bucket_id"`
	Name     string    `json:"name"`
	Budget   Money     `json:"budget"`
	Spent    Money     `json:"spent"`
}

// MonthSummary is a compact overview of a household's month.
type MonthSummary struct {
	Month             string        `json:"month"`
	ExpensesTotal     Money         `json:"expenses_total"`
	RecurringUpcoming Money         `json:"recurring_upcoming"`
	IncomeTotal       Money         `json:"income_total"`
	Balance           Money         `json:"balance"`
	Buckets           []BucketSpend `json:"buckets"`
	Unbucketed        Money         `json:"unbucketed"`
}
