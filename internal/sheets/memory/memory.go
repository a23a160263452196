package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

var _ sheets.ExpenseWriter = (*Store)(nil)

// Store keeps exported rows in memory. Used in tests and when no spreadsheet
// is configured.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Store {
	return &Store{}
}

// Append stores the expense row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.Row(e))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the appended rows.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
