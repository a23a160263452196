package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// ExpenseGetter loads expenses by id.
type ExpenseGetter interface {
	GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error)
}

// Consumer is satisfied by *amqp.Client.
type Consumer interface {
	ConsumeExpenseMaterialized(ctx context.Context, handler func(context.Context, *amqp.ExpenseMaterializedMessage) error) error
	ConsumeHouseholdInvited(ctx context.Context, handler func(context.Context, *amqp.HouseholdInvitedMessage) error) error
}

// ExportWorker copies materialized expenses to the exported ledger.
type ExportWorker struct {
	expenses ExpenseGetter
	writer   sheets.ExpenseWriter
	logger   *slog.Logger
}

func NewExportWorker(expenses ExpenseGetter, writer sheets.ExpenseWriter) *ExportWorker {
	return &ExportWorker{
		expenses: expenses,
		writer:   writer,
		logger:   slog.Default().With("service", "export_worker"),
	}
}

// Run consumes both queues until ctx is cancelled or a consumer fails.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeExpenseMaterialized(ctx, w.HandleExpenseMaterialized)
	})
	g.Go(func() error {
		return consumer.ConsumeHouseholdInvited(ctx, w.HandleHouseholdInvited)
	})
	return g.Wait()
}

// HandleExpenseMaterialized appends the referenced expense. An expense that
// no longer exists is acknowledged and skipped; a failing append is returned
// so the message is requeued.
func (w *ExportWorker) HandleExpenseMaterialized(ctx context.Context, msg *amqp.ExpenseMaterializedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense materialized message",
		"expense_id", msg.ExpenseID,
		"recurring_expense_id", msg.RecurringExpenseID)

	e, err := w.expenses.GetExpense(ctx, msg.ExpenseID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Expense deleted before export, skipping", "expense_id", msg.ExpenseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	ref, err := w.writer.Append(ctx, e)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to export expense", "expense_id", e.ID, "error", err)
		return fmt.Errorf("append expense to sheet: %w", err)
	}

	w.logger.InfoContext(ctx, "Expense exported", "expense_id", e.ID, "ref", ref)
	return nil
}

// HandleHouseholdInvited records the invitation for the mail pipeline.
// Delivery happens outside this service.
func (w *ExportWorker) HandleHouseholdInvited(ctx context.Context, msg *amqp.HouseholdInvitedMessage) error {
	w.logger.InfoContext(ctx, "Household invitation ready for delivery",
		"household_id", msg.HouseholdID,
		"household_name", msg.HouseholdName,
		"user_id", msg.UserID,
		"email", msg.Email,
		"placeholder", msg.Placeholder)
	return nil
}
