package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestDateJSONAndScan(t *testing.T) {
	d := NewDate(2024, 2, 29)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-02-29"` {
		t.Fatalf("unexpected json %s", b)
	}

	var back Date
	if err := json.Unmarshal([]byte(`"2024-03-01"`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(NewDate(2024, 3, 1)) {
		t.Fatalf("unexpected date %s", back)
	}
	if err := json.Unmarshal([]byte(`"01/03/2024"`), &back); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	var scanned Date
	if err := scanned.Scan([]byte("2025-06-15")); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if scanned.String() != "2025-06-15" {
		t.Fatalf("unexpected scanned date %s", scanned)
	}
	if err := scanned.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}
}

func TestParseRecurrence(t *testing.T) {
	cases := []struct {
		in   string
		want Recurrence
		ok   bool
	}{
		{"Daily", Daily, true},
		{"BiWeekly", BiWeekly, true},
		{" quarterly ", Quarterly, true},
		{"YEARLY", Yearly, true},
		{"fortnightly", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseRecurrence(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidRecurrenceKind) {
			t.Fatalf("%q expected ErrInvalidRecurrenceKind, got %v", tc.in, err)
		}
	}
}

func TestMonth(t *testing.T) {
	m, err := ParseMonth("2024-02")
	if err != nil {
		t.Fatalf("parse month: %v", err)
	}
	if m.Last().String() != "2024-02-29" {
		t.Fatalf("expected leap day, got %s", m.Last())
	}
	if !m.Contains(NewDate(2024, 2, 1)) || m.Contains(NewDate(2024, 3, 1)) {
		t.Fatalf("contains is wrong")
	}
	if _, err := ParseMonth("2024-13"); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	good := RecurringExpense{
		HouseholdID: uuid.New(),
		Amount:      Cents(1000),
		NextDate:    NewDate(2025, 1, 1),
		Recurrence:  Monthly,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := RecurringExpense{Recurrence: "hourly"}
	err := bad.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Errors) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(ve.Errors), ve)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected errors.Is ErrValidation")
	}
}

func TestRecurringIncomeValidate(t *testing.T) {
	end := NewDate(2024, 12, 31)
	inc := RecurringIncome{
		Amount:     Cents(250000),
		StartDate:  NewDate(2025, 1, 1),
		EndDate:    &end,
		Recurrence: Monthly,
	}
	if err := inc.Validate(); err == nil {
		t.Fatalf("expected end before start to fail")
	}
	inc.EndDate = nil
	if err := inc.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{" Bob@Example.COM ", "bob@example.com", true},
		{"a@b", "a@b", true},
		{"nobody", "", false},
		{"@example.com", "", false},
		{"bob@", "", false},
		{"b ob@example.com", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeEmail(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}
