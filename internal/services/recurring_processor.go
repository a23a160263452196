package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

const DefaultBatchSize = 100

var (
	recurringTracer      = otel.Tracer("fintrack/recurring")
	recurringMeter       = otel.Meter("fintrack/recurring")
	materializedTotal, _ = recurringMeter.Int64Counter("recurring.expenses.materialized",
		metric.WithDescription("Expenses created from recurring expenses"),
	)
	materializeFailures, _ = recurringMeter.Int64Counter("recurring.expenses.failed",
		metric.WithDescription("Recurring expenses that could not be materialized"),
	)
	runDuration, _ = recurringMeter.Float64Histogram("recurring.run.duration",
		metric.WithDescription("Duration of a recurring expense run in seconds"),
		metric.WithUnit("s"),
	)
)

// ProcessSummary describes one run of the recurring processor.
type ProcessSummary struct {
	Batches   int
	Processed int
	Failed    int
}

// RecurringProcessor turns due recurring expenses into concrete expenses.
//
// Records are read in pages ordered by id using the last id seen as cursor,
// so a record whose date is still due after advancing is not visited twice
// in the same run. Each page is one transaction. Each record inside a page is
// a savepoint: a failing record is logged and skipped without leaving partial
// rows behind.
type RecurringProcessor struct {
	store     DueExpenseStore
	tx        TxRunner
	publisher ExpensePublisher
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewRecurringProcessor creates a processor. publisher may be nil.
func NewRecurringProcessor(store DueExpenseStore, tx TxRunner, publisher ExpensePublisher, batchSize int) *RecurringProcessor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecurringProcessor{
		store:     store,
		tx:        tx,
		publisher: publisher,
		batchSize: batchSize,
		now:       time.Now,
		logger:    slog.Default().With("service", "recurring_processor"),
	}
}

// Execute processes everything due today (UTC). Outcomes are only visible
// as persisted state and logs.
func (p *RecurringProcessor) Execute(ctx context.Context) {
	today := core.DateOf(p.now().UTC())
	start := time.Now()

	summary, err := p.Run(ctx, today)
	runDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.logger.ErrorContext(ctx, "Recurring expense run aborted",
			"date", today.String(),
			"batches", summary.Batches,
			"processed", summary.Processed,
			"failed", summary.Failed,
			"error", err)
		return
	}

	p.logger.InfoContext(ctx, "Recurring expense processing complete",
		"date", today.String(),
		"batches", summary.Batches,
		"processed", summary.Processed,
		"failed", summary.Failed,
		"duration", time.Since(start))
}

// Run materializes every recurring expense due on or before today.
func (p *RecurringProcessor) Run(ctx context.Context, today core.Date) (ProcessSummary, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringProcessor.Run")
	defer span.End()

	var summary ProcessSummary
	after := uuid.Nil

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		var (
			page    []core.RecurringExpense
			created []core.Expense
			failed  int
		)
		err := p.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			page, err = p.store.ListDueRecurringExpenses(ctx, today, after, p.batchSize)
			if err != nil {
				return err
			}
			for _, re := range page {
				exp, err := p.materialize(ctx, re)
				if err != nil {
					failed++
					p.logger.ErrorContext(ctx, "Failed to materialize recurring expense",
						"recurring_expense_id", re.ID,
						"next_date", re.NextDate.String(),
						"error", err)
					continue
				}
				created = append(created, exp)
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			return summary, fmt.Errorf("process batch after %s: %w", after, err)
		}
		if len(page) == 0 {
			break
		}

		summary.Batches++
		summary.Processed += len(created)
		summary.Failed += failed
		materializedTotal.Add(ctx, int64(len(created)))
		materializeFailures.Add(ctx, int64(failed))

		p.logger.InfoContext(ctx, "Processed recurring expense batch",
			"batch", summary.Batches,
			"size", len(page),
			"created", len(created),
			"failed", failed)

		p.publishCreated(ctx, created)

		after = page[len(page)-1].ID
		if len(page) < p.batchSize {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("recurring.processed", summary.Processed),
		attribute.Int("recurring.failed", summary.Failed),
	)
	return summary, nil
}

// materialize books one occurrence of re and advances its date. The date is
// advanced only if nobody else advanced it since it was read.
func (p *RecurringProcessor) materialize(ctx context.Context, re core.RecurringExpense) (core.Expense, error) {
	next, err := core.NextOccurrence(re.NextDate, re.Recurrence)
	if err != nil {
		return core.Expense{}, err
	}

	recurringID := re.ID
	exp := core.Expense{
		ID:                 uuid.New(),
		HouseholdID:        re.HouseholdID,
		Amount:             re.Amount,
		Date:               re.NextDate,
		BucketID:           re.BucketID,
		Description:        re.Description,
		RecurringExpenseID: &recurringID,
	}

	err = p.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := p.store.AdvanceRecurringExpense(ctx, re.ID, re.NextDate, next); err != nil {
			return err
		}
		return p.store.CreateExpense(ctx, exp)
	})
	if err != nil {
		return core.Expense{}, err
	}
	return exp, nil
}

func (p *RecurringProcessor) publishCreated(ctx context.Context, created []core.Expense) {
	if p.publisher == nil || len(created) == 0 {
		return
	}
	for _, e := range created {
		msg := amqp.NewExpenseMaterializedMessage(e.ID, *e.RecurringExpenseID, e.HouseholdID, e.Date.String())
		if err := p.publisher.PublishExpenseMaterialized(ctx, msg); err != nil {
			p.logger.WarnContext(ctx, "Failed to publish expense materialized message",
				"expense_id", e.ID,
				"error", err)
		}
	}
}
