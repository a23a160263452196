package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

// TxRunner runs fn in a transaction carried by the context it receives.
// Nested calls roll back independently of the enclosing transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DueExpenseStore is what the recurring processor needs from storage.
type DueExpenseStore interface {
	ListDueRecurringExpenses(ctx context.Context, today core.Date, after uuid.UUID, limit int) ([]core.RecurringExpense, error)
	AdvanceRecurringExpense(ctx context.Context, id uuid.UUID, from, to core.Date) error
	CreateExpense(ctx context.Context, e core.Expense) error
}

type HouseholdStore interface {
	CreateHousehold(ctx context.Context, h core.Household) error
	GetHousehold(ctx context.Context, id uuid.UUID) (core.Household, error)
	GetHouseholdByOwner(ctx context.Context, ownerID uuid.UUID) (core.Household, error)
	ListHouseholdsForUser(ctx context.Context, userID uuid.UUID, status core.MemberStatus) ([]core.Household, error)
	AddMember(ctx context.Context, m core.HouseholdMember) error
	GetMember(ctx context.Context, householdID, userID uuid.UUID) (core.HouseholdMember, error)
	TransitionMember(ctx context.Context, householdID, userID uuid.UUID, from, to core.MemberStatus) (bool, error)
	ReopenInvite(ctx context.Context, householdID, userID uuid.UUID, at time.Time) (bool, error)
	RemoveMember(ctx context.Context, householdID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, householdID uuid.UUID) ([]core.HouseholdMember, error)
	ListMembershipsForUser(ctx context.Context, userID uuid.UUID, status core.MemberStatus) ([]core.HouseholdMember, error)
	ExpireInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUser(ctx context.Context, id uuid.UUID) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	CompleteRegistration(ctx context.Context, u core.User) error
}

// UserDirectory resolves invitees by address, creating placeholder accounts
// for addresses nobody has registered yet.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (core.User, error)
	CreateInvitedUser(ctx context.Context, email string) (core.User, error)
}

type LedgerStore interface {
	CreateRecurringExpense(ctx context.Context, e core.RecurringExpense) error
	GetRecurringExpense(ctx context.Context, householdID, id uuid.UUID) (core.RecurringExpense, error)
	UpdateRecurringExpense(ctx context.Context, e core.RecurringExpense) error
	DeleteRecurringExpense(ctx context.Context, householdID, id uuid.UUID) error
	ListRecurringExpenses(ctx context.Context, householdID uuid.UUID) ([]core.RecurringExpense, error)

	CreateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, householdID, id uuid.UUID) error
	ListExpenses(ctx context.Context, householdID uuid.UUID, from, to core.Date) ([]core.Expense, error)

	AddExpenseBuckets(ctx context.Context, buckets []core.ExpenseBucket) error
	GetExpenseBucket(ctx context.Context, householdID, id uuid.UUID) (core.ExpenseBucket, error)
	UpdateExpenseBucket(ctx context.Context, b core.ExpenseBucket) error
	DeleteExpenseBucket(ctx context.Context, householdID, id uuid.UUID) error
	ListExpenseBuckets(ctx context.Context, householdID uuid.UUID) ([]core.ExpenseBucket, error)

	AddRecurringIncomes(ctx context.Context, incomes []core.RecurringIncome) error
	DeleteRecurringIncome(ctx context.Context, householdID, id uuid.UUID) error
	ListRecurringIncomes(ctx context.Context, householdID uuid.UUID) ([]core.RecurringIncome, error)

	AddOneTimeIncomes(ctx context.Context, incomes []core.OneTimeIncome) error
	DeleteOneTimeIncome(ctx context.Context, householdID, id uuid.UUID) error
	ListOneTimeIncomes(ctx context.Context, householdID uuid.UUID, from, to core.Date) ([]core.OneTimeIncome, error)
}

// ExpensePublisher is satisfied by *amqp.Client.
type ExpensePublisher interface {
	PublishExpenseMaterialized(ctx context.Context, msg *amqp.ExpenseMaterializedMessage) error
}

// InvitePublisher is satisfied by *amqp.Client.
type InvitePublisher interface {
	PublishHouseholdInvited(ctx context.Context, msg *amqp.HouseholdInvitedMessage) error
}
