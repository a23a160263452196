package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"fintrack/internal/core"
)

var (
	recurringExpenseCols = []string{"id", "household_id", "amount_cents", "next_date", "recurrence", "bucket_id", "description"}
	expenseCols          = []string{"id", "household_id", "amount_cents", "date", "bucket_id", "description", "recurring_expense_id"}
	bucketCols           = []string{"id", "household_id", "name", "monthly_amount_cents", "description"}
	recurringIncomeCols  = []string{"id", "household_id", "amount_cents", "start_date", "end_date", "recurrence", "description"}
	oneTimeIncomeCols    = []string{"id", "household_id", "amount_cents", "date", "description"}
)

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func scanRecurringExpense(s scanner) (core.RecurringExpense, error) {
	var (
		e      core.RecurringExpense
		bucket uuid.NullUUID
	)
	err := s.Scan(&e.ID, &e.HouseholdID, &e.Amount.Cents, &e.NextDate, &e.Recurrence, &bucket, &e.Description)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	e.BucketID = uuidPtr(bucket)
	return e, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e         core.Expense
		bucket    uuid.NullUUID
		recurring uuid.NullUUID
	)
	err := s.Scan(&e.ID, &e.HouseholdID, &e.Amount.Cents, &e.Date, &bucket, &e.Description, &recurring)
	if err != nil {
		return core.Expense{}, err
	}
	e.BucketID = uuidPtr(bucket)
	e.RecurringExpenseID = uuidPtr(recurring)
	return e, nil
}

func scanBucket(s scanner) (core.ExpenseBucket, error) {
	var b core.ExpenseBucket
	if err := s.Scan(&b.ID, &b.HouseholdID, &b.Name, &b.MonthlyAmount.Cents, &b.Description); err != nil {
		return core.ExpenseBucket{}, err
	}
	return b, nil
}

func scanRecurringIncome(s scanner) (core.RecurringIncome, error) {
	var (
		i   core.RecurringIncome
		end sql.NullString
	)
	if err := s.Scan(&i.ID, &i.HouseholdID, &i.Amount.Cents, &i.StartDate, &end, &i.Recurrence, &i.Description); err != nil {
		return core.RecurringIncome{}, err
	}
	if end.Valid {
		d, err := core.ParseDate(end.String)
		if err != nil {
			return core.RecurringIncome{}, err
		}
		i.EndDate = &d
	}
	return i, nil
}

func scanOneTimeIncome(s scanner) (core.OneTimeIncome, error) {
	var i core.OneTimeIncome
	if err := s.Scan(&i.ID, &i.HouseholdID, &i.Amount.Cents, &i.Date, &i.Description); err != nil {
		return core.OneTimeIncome{}, err
	}
	return i, nil
}

// Recurring expenses

func (r *SQLiteRepository) CreateRecurringExpense(ctx context.Context, e core.RecurringExpense) error {
	_, err := r.exec(ctx, r.sb.Insert("recurring_expenses").
		Columns(recurringExpenseCols...).
		Values(e.ID, e.HouseholdID, e.Amount.Cents, e.NextDate, string(e.Recurrence), e.BucketID, e.Description))
	if err != nil {
		return fmt.Errorf("insert recurring expense: %w", mapConstraint(err, nil, nil))
	}
	return nil
}

func (r *SQLiteRepository) GetRecurringExpense(ctx context.Context, householdID, id uuid.UUID) (core.RecurringExpense, error) {
	row, err := r.queryRow(ctx, r.sb.Select(recurringExpenseCols...).From("recurring_expenses").
		Where(squirrel.Eq{"id": id, "household_id": householdID}))
	if err != nil {
		return core.RecurringExpense{}, err
	}
	e, err := scanRecurringExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringExpense{}, fmt.Errorf("recurring expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("get recurring expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateRecurringExpense(ctx context.Context, e core.RecurringExpense) error {
	res, err := r.exec(ctx, r.sb.Update("recurring_expenses").
		Set("amount_cents", e.Amount.Cents).
		Set("next_date", e.NextDate).
		Set("recurrence", string(e.Recurrence)).
		Set("bucket_id", e.BucketID).
		Set("description", e.Description).
		Where(squirrel.Eq{"id": e.ID, "household_id": e.HouseholdID}))
	if err != nil {
		return fmt.Errorf("update recurring expense: %w", mapConstraint(err, nil, nil))
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("recurring expense %s: %w", e.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRecurringExpense(ctx context.Context, householdID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "recurring_expenses", householdID, id)
}

func (r *SQLiteRepository) ListRecurringExpenses(ctx context.Context, householdID uuid.UUID) ([]core.RecurringExpense, error) {
	out, err := queryAll(ctx, r, r.sb.Select(recurringExpenseCols...).From("recurring_expenses").
		Where(squirrel.Eq{"household_id": householdID}).
		OrderBy("next_date", "id"), scanRecurringExpense)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return out, nil
}

// ListDueRecurringExpenses returns up to limit records due on or before today
// whose id sorts after the cursor, ordered by id.
func (r *SQLiteRepository) ListDueRecurringExpenses(ctx context.Context, today core.Date, after uuid.UUID, limit int) ([]core.RecurringExpense, error) {
	out, err := queryAll(ctx, r, r.sb.Select(recurringExpenseCols...).From("recurring_expenses").
		Where(squirrel.LtOrEq{"next_date": today}).
		Where(squirrel.Gt{"id": after}).
		OrderBy("id").
		Limit(uint64(limit)), scanRecurringExpense)
	if err != nil {
		return nil, fmt.Errorf("list due recurring expenses: %w", err)
	}
	return out, nil
}

// AdvanceRecurringExpense moves next_date from one value to another. It
// fails with core.ErrConcurrentUpdate when the stored date is no longer from.
func (r *SQLiteRepository) AdvanceRecurringExpense(ctx context.Context, id uuid.UUID, from, to core.Date) error {
	res, err := r.exec(ctx, r.sb.Update("recurring_expenses").
		Set("next_date", to).
		Where(squirrel.Eq{"id": id, "next_date": from}))
	if err != nil {
		return fmt.Errorf("advance recurring expense: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("recurring expense %s at %s: %w", id, from, core.ErrConcurrentUpdate)
	}
	return nil
}

// Expenses

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.exec(ctx, r.sb.Insert("expenses").
		Columns(expenseCols...).
		Values(e.ID, e.HouseholdID, e.Amount.Cents, e.Date, e.BucketID, e.Description, e.RecurringExpenseID))
	if err != nil {
		return fmt.Errorf("insert expense: %w", mapConstraint(err, nil, nil))
	}
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	row, err := r.queryRow(ctx, r.sb.Select(expenseCols...).From("expenses").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return core.Expense{}, err
	}
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns a household's expenses dated within [from, to].
func (r *SQLiteRepository) ListExpenses(ctx context.Context, householdID uuid.UUID, from, to core.Date) ([]core.Expense, error) {
	out, err := queryAll(ctx, r, r.sb.Select(expenseCols...).From("expenses").
		Where(squirrel.Eq{"household_id": householdID}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date", "id"), scanExpense)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// ListExpensesByRecurring returns the expenses materialized from one recurring expense.
func (r *SQLiteRepository) ListExpensesByRecurring(ctx context.Context, recurringID uuid.UUID) ([]core.Expense, error) {
	out, err := queryAll(ctx, r, r.sb.Select(expenseCols...).From("expenses").
		Where(squirrel.Eq{"recurring_expense_id": recurringID}).
		OrderBy("date"), scanExpense)
	if err != nil {
		return nil, fmt.Errorf("list expenses by recurring: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, householdID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "expenses", householdID, id)
}

// Buckets

func (r *SQLiteRepository) AddExpenseBuckets(ctx context.Context, buckets []core.ExpenseBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	ins := r.sb.Insert("expense_buckets").Columns(bucketCols...)
	for _, b := range buckets {
		ins = ins.Values(b.ID, b.HouseholdID, b.Name, b.MonthlyAmount.Cents, b.Description)
	}
	if _, err := r.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert expense buckets: %w", mapConstraint(err, nil, core.ErrHouseholdNotFound))
	}
	return nil
}

func (r *SQLiteRepository) GetExpenseBucket(ctx context.Context, householdID, id uuid.UUID) (core.ExpenseBucket, error) {
	row, err := r.queryRow(ctx, r.sb.Select(bucketCols...).From("expense_buckets").
		Where(squirrel.Eq{"id": id, "household_id": householdID}))
	if err != nil {
		return core.ExpenseBucket{}, err
	}
	b, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseBucket{}, fmt.Errorf("expense bucket %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.ExpenseBucket{}, fmt.Errorf("get expense bucket: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateExpenseBucket(ctx context.Context, b core.ExpenseBucket) error {
	res, err := r.exec(ctx, r.sb.Update("expense_buckets").
		Set("name", b.Name).
		Set("monthly_amount_cents", b.MonthlyAmount.Cents).
		Set("description", b.Description).
		Where(squirrel.Eq{"id": b.ID, "household_id": b.HouseholdID}))
	if err != nil {
		return fmt.Errorf("update expense bucket: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("expense bucket %s: %w", b.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpenseBucket(ctx context.Context, householdID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "expense_buckets", householdID, id)
}

func (r *SQLiteRepository) ListExpenseBuckets(ctx context.Context, householdID uuid.UUID) ([]core.ExpenseBucket, error) {
	out, err := queryAll(ctx, r, r.sb.Select(bucketCols...).From("expense_buckets").
		Where(squirrel.Eq{"household_id": householdID}).
		OrderBy("name"), scanBucket)
	if err != nil {
		return nil, fmt.Errorf("list expense buckets: %w", err)
	}
	return out, nil
}

// Incomes

func (r *SQLiteRepository) AddRecurringIncomes(ctx context.Context, incomes []core.RecurringIncome) error {
	if len(incomes) == 0 {
		return nil
	}
	ins := r.sb.Insert("recurring_incomes").Columns(recurringIncomeCols...)
	for _, i := range incomes {
		ins = ins.Values(i.ID, i.HouseholdID, i.Amount.Cents, i.StartDate, i.EndDate, string(i.Recurrence), i.Description)
	}
	if _, err := r.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert recurring incomes: %w", mapConstraint(err, nil, core.ErrHouseholdNotFound))
	}
	return nil
}

func (r *SQLiteRepository) ListRecurringIncomes(ctx context.Context, householdID uuid.UUID) ([]core.RecurringIncome, error) {
	out, err := queryAll(ctx, r, r.sb.Select(recurringIncomeCols...).From("recurring_incomes").
		Where(squirrel.Eq{"household_id": householdID}).
		OrderBy("start_date", "id"), scanRecurringIncome)
	if err != nil {
		return nil, fmt.Errorf("list recurring incomes: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteRecurringIncome(ctx context.Context, householdID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "recurring_incomes", householdID, id)
}

func (r *SQLiteRepository) AddOneTimeIncomes(ctx context.Context, incomes []core.OneTimeIncome) error {
	if len(incomes) == 0 {
		return nil
	}
	ins := r.sb.Insert("one_time_incomes").Columns(oneTimeIncomeCols...)
	for _, i := range incomes {
		ins = ins.Values(i.ID, i.HouseholdID, i.Amount.Cents, i.Date, i.Description)
	}
	if _, err := r.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert one-time incomes: %w", mapConstraint(err, nil, core.ErrHouseholdNotFound))
	}
	return nil
}

func (r *SQLiteRepository) ListOneTimeIncomes(ctx context.Context, householdID uuid.UUID, from, to core.Date) ([]core.OneTimeIncome, error) {
	out, err := queryAll(ctx, r, r.sb.Select(oneTimeIncomeCols...).From("one_time_incomes").
		Where(squirrel.Eq{"household_id": householdID}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date", "id"), scanOneTimeIncome)
	if err != nil {
		return nil, fmt.Errorf("list one-time incomes: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteOneTimeIncome(ctx context.Context, householdID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "one_time_incomes", householdID, id)
}

// deleteScoped deletes a row by id within a household.
func (r *SQLiteRepository) deleteScoped(ctx context.Context, table string, householdID, id uuid.UUID) error {
	res, err := r.exec(ctx, r.sb.Delete(table).Where(squirrel.Eq{"id": id, "household_id": householdID}))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", table, id, core.ErrNotFound)
	}
	return nil
}
