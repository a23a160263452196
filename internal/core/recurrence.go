package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NextOccurrence returns the date one period after d.
//
// Month-based kinds use time.AddDate, so a day that does not exist in the
// target month rolls over into the following one (Jan 31 + 1 month = Mar 3,
// or Mar 2 in a leap year).
func NextOccurrence(d Date, r Recurrence) (Date, error) {
	switch r {
	case Daily:
		return d.AddDate(0, 0, 1), nil
	case Weekly:
		return d.AddDate(0, 0, 7), nil
	case BiWeekly:
		return d.AddDate(0, 0, 14), nil
	case Monthly:
		return d.AddDate(0, 1, 0), nil
	case Quarterly:
		return d.AddDate(0, 3, 0), nil
	case Yearly:
		return d.AddDate(1, 0, 0), nil
	default:
		return Date{}, fmt.Errorf("%q: %w", r, ErrInvalidRecurrenceKind)
	}
}

// OccurrencesBetween lists the occurrences of a series starting at start that
// fall within [from, to]. A zero until means the series never ends.
func OccurrencesBetween(start Date, r Recurrence, until, from, to Date) ([]Date, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%q: %w", r, ErrInvalidRecurrenceKind)
	}
	var out []Date
	cur := start
	for !cur.After(to) {
		if !until.IsZero() && cur.After(until) {
			break
		}
		if !cur.Before(from) {
			out = append(out, cur)
		}
		next, err := NextOccurrence(cur, r)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return out, nil
}

// OccurrencesInMonth counts how many times a series whose next unprocessed
// occurrence is next lands inside month m.
func OccurrencesInMonth(next Date, r Recurrence, m Month) (int, error) {
	dates, err := OccurrencesBetween(next, r, Date{}, m.First(), m.Last())
	if err != nil {
		return 0, err
	}
	return len(dates), nil
}

var monthlyFactors = map[Recurrence]decimal.Decimal{
	Daily:     decimal.RequireFromString("30.4"),
	Weekly:    decimal.RequireFromString("4.345"),
	BiWeekly:  decimal.RequireFromString("2.1725"),
	Monthly:   decimal.NewFromInt(1),
	Quarterly: decimal.NewFromInt(1).Div(decimal.NewFromInt(3)),
	Yearly:    decimal.NewFromInt(1).Div(decimal.NewFromInt(12)),
}

// MonthlyEquivalent normalizes a per-period amount to an average month,
// rounded half-up to the cent.
func MonthlyEquivalent(amount Money, r Recurrence) (Money, error) {
	f, ok := monthlyFactors[r]
	if !ok {
		return Money{}, fmt.Errorf("%q: %w", r, ErrInvalidRecurrenceKind)
	}
	cents := amount.Decimal().Mul(f).Mul(hundred).Round(0)
	return Money{Cents: cents.IntPart()}, nil
}
