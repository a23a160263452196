package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Daily     Recurrence = "daily"
	Weekly    Recurrence = "weekly"
	BiWeekly  Recurrence = "biweekly"
	Monthly   Recurrence = "monthly"
	Quarterly Recurrence = "quarterly"
	Yearly    Recurrence = "yearly"
)

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

const (
	StatusPendingResponse MemberStatus = "pending_response"
	StatusExpired         MemberStatus = "expired"
	StatusRejected        MemberStatus = "rejected"
	StatusActive          MemberStatus = "active"
)

const (
	dateLayout     = "2006-01-02"
	maxDescription = 200
	maxName        = 100
)

type (
	Recurrence   string
	Role         string
	MemberStatus string

	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	RecurringExpense struct {
		ID          uuid.UUID  `json:"id"`
		HouseholdID uuid.UUID  `json:"household_id"`
		Amount      Money      `json:"amount"`
		NextDate    Date       `json:"next_date"`
		Recurrence  Recurrence `json:"recurrence"`
		BucketID    *uuid.UUID `json:"bucket_id,omitempty"`
		Description string     `json:"description,omitempty"`
	}

	Expense struct {
		ID                 uuid.UUID  `json:"id"`
		HouseholdID        uuid.UUID  `json:"household_id"`
		Amount             Money      `json:"amount"`
		Date               Date       `json:"date"`
		BucketID           *uuid.UUID `json:"bucket_id,omitempty"`
		Description        string     `json:"description,omitempty"`
		RecurringExpenseID *uuid.UUID `json:"recurring_expense_id,omitempty"`
	}

	ExpenseBucket struct {
		ID            uuid.UUID `json:"id"`
		HouseholdID   uuid.UUID `json:"household_id"`
		Name          string    `json:"name"`
		MonthlyAmount Money     `json:"monthly_amount"`
		Description   string    `json:"description,omitempty"`
	}

	RecurringIncome struct {
		ID          uuid.UUID  `json:"id"`
		HouseholdID uuid.UUID  `json:"household_id"`
		Amount      Money      `json:"amount"`
		StartDate   Date       `json:"start_date"`
		EndDate     *Date      `json:"end_date,omitempty"`
		Recurrence  Recurrence `json:"recurrence"`
		Description string     `json:"description,omitempty"`
	}

	OneTimeIncome struct {
		ID          uuid.UUID `json:"id"`
		HouseholdID uuid.UUID `json:"household_id"`
		Amount      Money     `json:"amount"`
		Date        Date      `json:"date"`
		Description string    `json:"description,omitempty"`
	}

	Household struct {
		ID      uuid.UUID `json:"id"`
		Name    string    `json:"name"`
		OwnerID uuid.UUID `json:"owner_id"`
	}

	HouseholdMember struct {
		HouseholdID uuid.UUID    `json:"household_id"`
		UserID      uuid.UUID    `json:"user_id"`
		Role        Role         `json:"role"`
		Status      MemberStatus `json:"status"`
		CreatedAt   time.Time    `json:"created_at"`
	}

	User struct {
		ID             uuid.UUID `json:"id"`
		Email          string    `json:"email"`
		FirstName      string    `json:"first_name,omitempty"`
		LastName       string    `json:"last_name,omitempty"`
		PasswordHash   string    `json:"-"`
		EmailConfirmed bool      `json:"email_confirmed"`
		CreatedAt      time.Time `json:"created_at"`
	}
)

// ParseRecurrence accepts any casing ("BiWeekly", "biweekly").
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidRecurrenceKind)
	}
	return r, nil
}

func (r Recurrence) Valid() bool {
	switch r {
	case Daily, Weekly, BiWeekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// AddDate mirrors time.Time.AddDate, including its month-end normalization.
func (d Date) AddDate(years, months, days int) Date {
	return Date{Time: d.Time.AddDate(years, months, days)}
}

func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores dates as TEXT so that range comparisons in SQL stay lexical.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = DateOf(v.UTC())
	default:
		return fmt.Errorf("scan date from %T", src)
	}
	return nil
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("month %q: %w", s, ErrInvalidDate)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) First() Date { return NewDate(m.Year, int(m.Month), 1) }

func (m Month) Last() Date { return m.First().AddDate(0, 1, -1) }

func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year && d.Time.Month() == m.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (e RecurringExpense) Validate() error {
	var errs fieldErrors
	if e.HouseholdID == uuid.Nil {
		errs.add("household_id", "required")
	}
	if e.Amount.Validate() != nil {
		errs.add("amount", "must be positive")
	}
	if e.NextDate.Validate() != nil {
		errs.add("next_date", "required")
	}
	if !e.Recurrence.Valid() {
		errs.add("recurrence", "unknown recurrence kind")
	}
	if len(e.Description) > maxDescription {
		errs.add("description", "too long (max 200 characters)")
	}
	return errs.err()
}

func (e Expense) Validate() error {
	var errs fieldErrors
	if e.HouseholdID == uuid.Nil {
		errs.add("household_id", "required")
	}
	if e.Amount.Validate() != nil {
		errs.add("amount", "must be positive")
	}
	if e.Date.Validate() != nil {
		errs.add("date", "required")
	}
	if len(e.Description) > maxDescription {
		errs.add("description", "too long (max 200 characters)")
	}
	return errs.err()
}

func (b ExpenseBucket) Validate() error {
	var errs fieldErrors
	if strings.TrimSpace(b.Name) == "" {
		errs.add("name", "required")
	} else if len(b.Name) > maxName {
		errs.add("name", "too long (max 100 characters)")
	}
	if b.MonthlyAmount.Cents < 0 {
		errs.add("monthly_amount", "must not be negative")
	}
	if len(b.Description) > maxDescription {
		errs.add("description", "too long (max 200 characters)")
	}
	return errs.err()
}

func (i RecurringIncome) Validate() error {
	var errs fieldErrors
	if i.Amount.Validate() != nil {
		errs.add("amount", "must be positive")
	}
	if i.StartDate.Validate() != nil {
		errs.add("start_date", "required")
	}
	if i.EndDate != nil && i.EndDate.Before(i.StartDate) {
		errs.add("end_date", "must not be before start_date")
	}
	if !i.Recurrence.Valid() {
		errs.add("recurrence", "unknown recurrence kind")
	}
	if len(i.Description) > maxDescription {
		errs.add("description", "too long (max 200 characters)")
	}
	return errs.err()
}

func (i OneTimeIncome) Validate() error {
	var errs fieldErrors
	if i.Amount.Validate() != nil {
		errs.add("amount", "must be positive")
	}
	if i.Date.Validate() != nil {
		errs.add("date", "required")
	}
	if len(i.Description) > maxDescription {
		errs.add("description", "too long (max 200 characters)")
	}
	return errs.err()
}

// ValidateHouseholdName trims and checks a household name.
func ValidateHouseholdName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewValidationError("name", "required")
	}
	if len(name) > maxName {
		return "", NewValidationError("name", "too long (max 100 characters)")
	}
	return name, nil
}

// NormalizeEmail lowercases and trims an address and checks its basic shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t\n") {
		return "", NewValidationError("email", "invalid address")
	}
	return email, nil
}
