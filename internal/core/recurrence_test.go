package core

import (
	"errors"
	"testing"
)

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		name string
		from Date
		kind Recurrence
		want Date
	}{
		{"daily", NewDate(2025, 3, 10), Daily, NewDate(2025, 3, 11)},
		{"daily year end", NewDate(2024, 12, 31), Daily, NewDate(2025, 1, 1)},
		{"weekly", NewDate(2025, 3, 10), Weekly, NewDate(2025, 3, 17)},
		{"biweekly", NewDate(2025, 3, 10), BiWeekly, NewDate(2025, 3, 24)},
		{"monthly", NewDate(2025, 3, 10), Monthly, NewDate(2025, 4, 10)},
		{"monthly overflow", NewDate(2025, 1, 31), Monthly, NewDate(2025, 3, 3)},
		{"monthly overflow leap", NewDate(2024, 1, 31), Monthly, NewDate(2024, 3, 2)},
		{"quarterly", NewDate(2025, 11, 15), Quarterly, NewDate(2026, 2, 15)},
		{"yearly", NewDate(2025, 3, 10), Yearly, NewDate(2026, 3, 10)},
		{"yearly leap day", NewDate(2024, 2, 29), Yearly, NewDate(2025, 3, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextOccurrence(tc.from, tc.kind)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestNextOccurrenceInvalidKind(t *testing.T) {
	_, err := NextOccurrence(NewDate(2025, 1, 1), Recurrence("hourly"))
	if !errors.Is(err, ErrInvalidRecurrenceKind) {
		t.Fatalf("expected ErrInvalidRecurrenceKind, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected the error to be a validation error")
	}
}

// Day-based kinds compose exactly: n steps equal one n-period offset.
func TestNextOccurrenceRepeated(t *testing.T) {
	cases := []struct {
		kind Recurrence
		days int
	}{
		{Daily, 1},
		{Weekly, 7},
		{BiWeekly, 14},
	}
	start := NewDate(2023, 12, 28)
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			for n := 1; n <= 60; n++ {
				cur := start
				for i := 0; i < n; i++ {
					next, err := NextOccurrence(cur, tc.kind)
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					cur = next
				}
				if want := start.AddDate(0, 0, n*tc.days); !cur.Equal(want) {
					t.Fatalf("n=%d: expected %s, got %s", n, want, cur)
				}
			}
		})
	}
}

// Month-based kinds compose exactly as long as the day exists in every month.
func TestNextOccurrenceRepeatedMonths(t *testing.T) {
	cases := []struct {
		kind   Recurrence
		months int
	}{
		{Monthly, 1},
		{Quarterly, 3},
		{Yearly, 12},
	}
	start := NewDate(2024, 1, 28)
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			cur := start
			for n := 1; n <= 24; n++ {
				next, err := NextOccurrence(cur, tc.kind)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				cur = next
				if want := start.AddDate(0, n*tc.months, 0); !cur.Equal(want) {
					t.Fatalf("n=%d: expected %s, got %s", n, want, cur)
				}
			}
		})
	}
}

func TestOccurrencesInMonth(t *testing.T) {
	march := Month{Year: 2025, Month: 3}
	cases := []struct {
		name string
		next Date
		kind Recurrence
		want int
	}{
		{"daily whole month", NewDate(2025, 3, 1), Daily, 31},
		{"daily from mid month", NewDate(2025, 3, 20), Daily, 12},
		{"weekly", NewDate(2025, 3, 3), Weekly, 5},
		{"weekly fast forward", NewDate(2025, 1, 6), Weekly, 5},
		{"biweekly", NewDate(2025, 3, 10), BiWeekly, 2},
		{"monthly", NewDate(2025, 2, 15), Monthly, 1},
		{"quarterly miss", NewDate(2025, 2, 1), Quarterly, 0},
		{"yearly later", NewDate(2025, 4, 1), Yearly, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := OccurrencesInMonth(tc.next, tc.kind, march)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestOccurrencesBetweenRespectsEnd(t *testing.T) {
	dates, err := OccurrencesBetween(NewDate(2025, 1, 1), Weekly, NewDate(2025, 1, 20), NewDate(2025, 1, 1), NewDate(2025, 1, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 3 {
		t.Fatalf("expected 3 occurrences before the end date, got %v", dates)
	}
}

func TestMonthlyEquivalent(t *testing.T) {
	cases := []struct {
		amount int64
		kind   Recurrence
		want   int64
	}{
		{1000, Daily, 30400},
		{10000, Weekly, 43450},
		{10000, BiWeekly, 21725},
		{12345, Monthly, 12345},
		{30000, Quarterly, 10000},
		{120000, Yearly, 10000},
		{100, Quarterly, 33},
	}
	for _, tc := range cases {
		got, err := MonthlyEquivalent(Cents(tc.amount), tc.kind)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.kind, err)
		}
		if got.Cents != tc.want {
			t.Errorf("%d %s: expected %d, got %d", tc.amount, tc.kind, tc.want, got.Cents)
		}
	}
	if _, err := MonthlyEquivalent(Cents(1), "hourly"); !errors.Is(err, ErrInvalidRecurrenceKind) {
		t.Fatalf("expected ErrInvalidRecurrenceKind, got %v", err)
	}
}
