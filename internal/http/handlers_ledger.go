package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) handleListRecurringExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Ledger.ListRecurringExpenses(r.Context(), householdID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleCreateRecurringExpense(w http.ResponseWriter, r *http.Request) {
	var in core.RecurringExpense
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.HouseholdID = householdID(r)

	created, err := s.deps.Ledger.CreateRecurringExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRecurringExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	re, err := s.deps.Ledger.GetRecurringExpense(r.Context(), householdID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, re)
}

func (s *Server) handleUpdateRecurringExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in core.RecurringExpense
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.ID = id
	in.HouseholdID = householdID(r)

	updated, err := s.deps.Ledger.UpdateRecurringExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRecurringExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Ledger.DeleteRecurringExpense(r.Context(), householdID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, err := s.queryMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.deps.Ledger.ListExpenses(r.Context(), householdID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in core.Expense
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.HouseholdID = householdID(r)
	// Only the recurring processor links expenses to a recurring expense.
	in.RecurringExpenseID = nil

	created, err := s.deps.Ledger.CreateExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense recorded",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, created.ID,
		"amount", created.Amount.String(),
		"date", created.Date.String())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Ledger.DeleteExpense(r.Context(), householdID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Ledger.ListBuckets(r.Context(), householdID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseBucket
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.HouseholdID = householdID(r)

	created, err := s.deps.Ledger.CreateBucket(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateBucket(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in core.ExpenseBucket
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.ID = id
	in.HouseholdID = householdID(r)

	updated, err := s.deps.Ledger.UpdateBucket(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Ledger.DeleteBucket(r.Context(), householdID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	month, err := s.queryMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	incomes, err := s.deps.Ledger.ListIncomes(r.Context(), householdID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	incomes.Recurring = orEmpty(incomes.Recurring)
	incomes.OneTime = orEmpty(incomes.OneTime)
	writeJSON(w, http.StatusOK, incomes)
}

func (s *Server) handleCreateRecurringIncome(w http.ResponseWriter, r *http.Request) {
	var in core.RecurringIncome
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.HouseholdID = householdID(r)

	created, err := s.deps.Ledger.CreateRecurringIncome(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCreateOneTimeIncome(w http.ResponseWriter, r *http.Request) {
	var in core.OneTimeIncome
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.HouseholdID = householdID(r)

	created, err := s.deps.Ledger.CreateOneTimeIncome(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	hid := householdID(r)
	switch r.PathValue("kind") {
	case "recurring":
		err = s.deps.Ledger.DeleteRecurringIncome(r.Context(), hid, id)
	case "one-time":
		err = s.deps.Ledger.DeleteOneTimeIncome(r.Context(), hid, id)
	default:
		err = core.NewValidationError("kind", "must be recurring or one-time")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := s.queryMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Ledger.MonthSummary(r.Context(), householdID(r), month, core.DateOf(s.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary.Buckets = orEmpty(summary.Buckets)
	writeJSON(w, http.StatusOK, summary)
}
