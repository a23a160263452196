package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// LedgerService is the household-scoped CRUD over expenses, incomes and buckets.
type LedgerService struct {
	store  LedgerStore
	logger *slog.Logger
}

func NewLedgerService(store LedgerStore) *LedgerService {
	return &LedgerService{store: store, logger: slog.Default().With("service", "ledger")}
}

func (s *LedgerService) CreateRecurringExpense(ctx context.Context, e core.RecurringExpense) (core.RecurringExpense, error) {
	e.ID = uuid.New()
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	if err := s.checkBucket(ctx, e.HouseholdID, e.BucketID); err != nil {
		return core.RecurringExpense{}, err
	}
	if err := s.store.CreateRecurringExpense(ctx, e); err != nil {
		return core.RecurringExpense{}, err
	}
	s.logger.InfoContext(ctx, "Recurring expense created",
		"recurring_expense_id", e.ID,
		"household_id", e.HouseholdID,
		"recurrence", e.Recurrence,
		"next_date", e.NextDate.String())
	return e, nil
}

// checkBucket rejects a bucket that does not belong to the household.
func (s *LedgerService) checkBucket(ctx context.Context, householdID uuid.UUID, bucketID *uuid.UUID) error {
	if bucketID == nil {
		return nil
	}
	_, err := s.store.GetExpenseBucket(ctx, householdID, *bucketID)
	if errors.Is(err, core.ErrNotFound) {
		return core.NewValidationError("bucket_id", "unknown bucket")
	}
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	return nil
}

func (s *LedgerService) GetRecurringExpense(ctx context.Context, householdID, id uuid.UUID) (core.RecurringExpense, error) {
	return s.store.GetRecurringExpense(ctx, householdID, id)
}

// UpdateRecurringExpense replaces the editable fields of a recurring expense,
// including its next date.
func (s *LedgerService) UpdateRecurringExpense(ctx context.Context, e core.RecurringExpense) (core.RecurringExpense, error) {
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	if err := s.checkBucket(ctx, e.HouseholdID, e.BucketID); err != nil {
		return core.RecurringExpense{}, err
	}
	if err := s.store.UpdateRecurringExpense(ctx, e); err != nil {
		return core.RecurringExpense{}, err
	}
	return e, nil
}

func (s *LedgerService) DeleteRecurringExpense(ctx context.Context, householdID, id uuid.UUID) error {
	return s.store.DeleteRecurringExpense(ctx, householdID, id)
}

func (s *LedgerService) ListRecurringExpenses(ctx context.Context, householdID uuid.UUID) ([]core.RecurringExpense, error) {
	return s.store.ListRecurringExpenses(ctx, householdID)
}

func (s *LedgerService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = uuid.New()
	e.RecurringExpenseID = nil
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.checkBucket(ctx, e.HouseholdID, e.BucketID); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, householdID, id uuid.UUID) error {
	return s.store.DeleteExpense(ctx, householdID, id)
}

func (s *LedgerService) ListExpenses(ctx context.Context, householdID uuid.UUID, month core.Month) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, householdID, month.First(), month.Last())
}

func (s *LedgerService) CreateBucket(ctx context.Context, b core.ExpenseBucket) (core.ExpenseBucket, error) {
	b.ID = uuid.New()
	b.Name = strings.TrimSpace(b.Name)
	if err := b.Validate(); err != nil {
		return core.ExpenseBucket{}, err
	}
	if err := s.store.AddExpenseBuckets(ctx, []core.ExpenseBucket{b}); err != nil {
		return core.ExpenseBucket{}, err
	}
	return b, nil
}

func (s *LedgerService) UpdateBucket(ctx context.Context, b core.ExpenseBucket) (core.ExpenseBucket, error) {
	b.Name = strings.TrimSpace(b.Name)
	if err := b.Validate(); err != nil {
		return core.ExpenseBucket{}, err
	}
	if err := s.store.UpdateExpenseBucket(ctx, b); err != nil {
		return core.ExpenseBucket{}, err
	}
	return b, nil
}

func (s *LedgerService) DeleteBucket(ctx context.Context, householdID, id uuid.UUID) error {
	return s.store.DeleteExpenseBucket(ctx, householdID, id)
}

func (s *LedgerService) ListBuckets(ctx context.Context, householdID uuid.UUID) ([]core.ExpenseBucket, error) {
	return s.store.ListExpenseBuckets(ctx, householdID)
}

func (s *LedgerService) CreateRecurringIncome(ctx context.Context, i core.RecurringIncome) (core.RecurringIncome, error) {
	i.ID = uuid.New()
	if err := i.Validate(); err != nil {
		return core.RecurringIncome{}, err
	}
	if err := s.store.AddRecurringIncomes(ctx, []core.RecurringIncome{i}); err != nil {
		return core.RecurringIncome{}, err
	}
	return i, nil
}

func (s *LedgerService) DeleteRecurringIncome(ctx context.Context, householdID, id uuid.UUID) error {
	return s.store.DeleteRecurringIncome(ctx, householdID, id)
}

func (s *LedgerService) CreateOneTimeIncome(ctx context.Context, i core.OneTimeIncome) (core.OneTimeIncome, error) {
	i.ID = uuid.New()
	if err := i.Validate(); err != nil {
		return core.OneTimeIncome{}, err
	}
	if err := s.store.AddOneTimeIncomes(ctx, []core.OneTimeIncome{i}); err != nil {
		return core.OneTimeIncome{}, err
	}
	return i, nil
}

func (s *LedgerService) DeleteOneTimeIncome(ctx context.Context, householdID, id uuid.UUID) error {
	return s.store.DeleteOneTimeIncome(ctx, householdID, id)
}

// MonthIncomes groups the incomes that land in a month.
type MonthIncomes struct {
	Recurring []core.RecurringIncome `json:"recurring"`
	OneTime   []core.OneTimeIncome   `json:"one_time"`
}

// ListIncomes returns the one-time incomes dated in month and the recurring
// incomes with at least one occurrence in it.
func (s *LedgerService) ListIncomes(ctx context.Context, householdID uuid.UUID, month core.Month) (MonthIncomes, error) {
	once, err := s.store.ListOneTimeIncomes(ctx, householdID, month.First(), month.Last())
	if err != nil {
		return MonthIncomes{}, err
	}
	all, err := s.store.ListRecurringIncomes(ctx, householdID)
	if err != nil {
		return MonthIncomes{}, err
	}
	out := MonthIncomes{OneTime: once, Recurring: []core.RecurringIncome{}}
	for _, inc := range all {
		dates, err := incomeOccurrences(inc, month)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping recurring income with invalid recurrence", "income_id", inc.ID, "error", err)
			continue
		}
		if len(dates) > 0 {
			out.Recurring = append(out.Recurring, inc)
		}
	}
	if out.OneTime == nil {
		out.OneTime = []core.OneTimeIncome{}
	}
	return out, nil
}

func incomeOccurrences(inc core.RecurringIncome, month core.Month) ([]core.Date, error) {
	var until core.Date
	if inc.EndDate != nil {
		until = *inc.EndDate
	}
	return core.OccurrencesBetween(inc.StartDate, inc.Recurrence, until, month.First(), month.Last())
}

// MonthSummary totals a household's month: booked expenses, recurring
// expenses still to be booked this month, incomes and spend per bucket.
// Upcoming recurring expenses are counted from the later of today and the
// record's next date.
func (s *LedgerService) MonthSummary(ctx context.Context, householdID uuid.UUID, month core.Month, today core.Date) (core.MonthSummary, error) {
	expenses, err := s.store.ListExpenses(ctx, householdID, month.First(), month.Last())
	if err != nil {
		return core.MonthSummary{}, err
	}
	recurring, err := s.store.ListRecurringExpenses(ctx, householdID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	buckets, err := s.store.ListExpenseBuckets(ctx, householdID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	incomes, err := s.ListIncomes(ctx, householdID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}

	summary := core.MonthSummary{Month: month.String(), Buckets: make([]core.BucketSpend, 0, len(buckets))}
	spent := make(map[uuid.UUID]core.Money, len(buckets))
	for _, e := range expenses {
		summary.ExpensesTotal = summary.ExpensesTotal.Add(e.Amount)
		if e.BucketID != nil {
			spent[*e.BucketID] = spent[*e.BucketID].Add(e.Amount)
		} else {
			summary.Unbucketed = summary.Unbucketed.Add(e.Amount)
		}
	}
	for _, b := range buckets {
		summary.Buckets = append(summary.Buckets, core.BucketSpend{
			BucketID: b.ID,
			Name:     b.Name,
			Budget:   b.MonthlyAmount,
			Spent:    spent[b.ID],
		})
	}

	from := month.First()
	if today.After(from) {
		from = today
	}
	for _, re := range recurring {
		if from.After(month.Last()) {
			break
		}
		start := re.NextDate
		dates, err := core.OccurrencesBetween(start, re.Recurrence, core.Date{}, from, month.Last())
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping recurring expense with invalid recurrence", "recurring_expense_id", re.ID, "error", err)
			continue
		}
		summary.RecurringUpcoming = summary.RecurringUpcoming.Add(re.Amount.Times(len(dates)))
	}

	for _, inc := range incomes.OneTime {
		summary.IncomeTotal = summary.IncomeTotal.Add(inc.Amount)
	}
	for _, inc := range incomes.Recurring {
		dates, _ := incomeOccurrences(inc, month)
		summary.IncomeTotal = summary.IncomeTotal.Add(inc.Amount.Times(len(dates)))
	}

	summary.Balance = core.Money{Cents: summary.IncomeTotal.Cents - summary.ExpensesTotal.Cents - summary.RecurringUpcoming.Cents}
	return summary, nil
}
