package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// SetupInput is everything needed to onboard a household in one step.
type SetupInput struct {
	HouseholdName    string                 `json:"household_name"`
	RecurringIncomes []core.RecurringIncome `json:"recurring_incomes"`
	OneTimeIncomes   []core.OneTimeIncome   `json:"one_time_incomes"`
	ExpenseBuckets   []core.ExpenseBucket   `json:"expense_buckets"`
	Invites          []string               `json:"invites"`
}

func (in SetupInput) Validate() error {
	var errs []core.FieldError
	if _, err := core.ValidateHouseholdName(in.HouseholdName); err != nil {
		errs = append(errs, core.FieldError{Field: "household_name", Message: "required, max 100 characters"})
	}
	collect := func(prefix string, i int, err error) {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			for _, fe := range ve.Errors {
				errs = append(errs, core.FieldError{Field: fmt.Sprintf("%s[%d].%s", prefix, i, fe.Field), Message: fe.Message})
			}
		}
	}
	for i, inc := range in.RecurringIncomes {
		collect("recurring_incomes", i, inc.Validate())
	}
	for i, inc := range in.OneTimeIncomes {
		collect("one_time_incomes", i, inc.Validate())
	}
	for i, b := range in.ExpenseBuckets {
		collect("expense_buckets", i, b.Validate())
	}
	for i, email := range in.Invites {
		if _, err := core.NormalizeEmail(email); err != nil {
			errs = append(errs, core.FieldError{Field: fmt.Sprintf("invites[%d]", i), Message: "invalid address"})
		}
	}
	if len(errs) > 0 {
		return &core.ValidationError{Errors: errs}
	}
	return nil
}

// SetupResult reports what SetupHousehold created.
type SetupResult struct {
	Household   core.Household `json:"household"`
	Invitations int            `json:"invitations"`
}

// SetupIncomeStore is the part of the ledger store setup writes to.
type SetupIncomeStore interface {
	AddRecurringIncomes(ctx context.Context, incomes []core.RecurringIncome) error
	AddOneTimeIncomes(ctx context.Context, incomes []core.OneTimeIncome) error
	AddExpenseBuckets(ctx context.Context, buckets []core.ExpenseBucket) error
}

// SetupService creates a household with its incomes, buckets and invites as
// one all-or-nothing unit.
type SetupService struct {
	households *HouseholdService
	ledger     SetupIncomeStore
	tx         TxRunner
	logger     *slog.Logger
}

func NewSetupService(households *HouseholdService, ledger SetupIncomeStore, tx TxRunner) *SetupService {
	return &SetupService{
		households: households,
		ledger:     ledger,
		tx:         tx,
		logger:     slog.Default().With("service", "setup"),
	}
}

// SetupHousehold runs the whole onboarding in a single transaction. Any
// failure rolls everything back and is returned unchanged. Invite messages
// are published only after commit.
func (s *SetupService) SetupHousehold(ctx context.Context, ownerID uuid.UUID, in SetupInput) (SetupResult, error) {
	if err := in.Validate(); err != nil {
		return SetupResult{}, err
	}

	var (
		household   core.Household
		invitations []Invitation
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		invitations = nil

		h, err := s.households.CreateHousehold(ctx, in.HouseholdName, ownerID)
		if err != nil {
			return err
		}
		household = h

		recurring := make([]core.RecurringIncome, len(in.RecurringIncomes))
		for i, inc := range in.RecurringIncomes {
			inc.ID = uuid.New()
			inc.HouseholdID = h.ID
			recurring[i] = inc
		}
		if err := s.ledger.AddRecurringIncomes(ctx, recurring); err != nil {
			return err
		}

		once := make([]core.OneTimeIncome, len(in.OneTimeIncomes))
		for i, inc := range in.OneTimeIncomes {
			inc.ID = uuid.New()
			inc.HouseholdID = h.ID
			once[i] = inc
		}
		if err := s.ledger.AddOneTimeIncomes(ctx, once); err != nil {
			return err
		}

		buckets := make([]core.ExpenseBucket, len(in.ExpenseBuckets))
		for i, b := range in.ExpenseBuckets {
			b.ID = uuid.New()
			b.HouseholdID = h.ID
			buckets[i] = b
		}
		if err := s.ledger.AddExpenseBuckets(ctx, buckets); err != nil {
			return err
		}

		for _, email := range in.Invites {
			inv, err := s.households.Invite(ctx, h.ID, email)
			if err != nil {
				return err
			}
			invitations = append(invitations, inv)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Household setup rolled back", "owner_id", ownerID, "error", err)
		return SetupResult{}, err
	}

	for _, inv := range invitations {
		s.households.Notify(ctx, inv)
	}

	s.logger.InfoContext(ctx, "Household setup complete",
		"household_id", household.ID,
		"recurring_incomes", len(in.RecurringIncomes),
		"one_time_incomes", len(in.OneTimeIncomes),
		"buckets", len(in.ExpenseBuckets),
		"invites", len(invitations))
	return SetupResult{Household: household, Invitations: len(invitations)}, nil
}
