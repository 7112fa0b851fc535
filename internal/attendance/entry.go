package attendance

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sunnyio/attendanceManager/internal/apperror"
)

// Status is the closed set of attendance states.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusWFH     Status = "WFH"
)

// Statuses lists every valid Status in display order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusWFH}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusWFH:
		return true
	default:
		return false
	}
}

const MaxDepartmentLength = 50

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date is a calendar date without time of day, held as midnight UTC.
type Date struct {
	time.Time
}

// NewDate returns the calendar date of t.
func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD naming a real calendar date.
func ParseDate(s string) (Date, error) {
	if !datePattern.MatchString(s) {
		return Date{}, fmt.Errorf("date must be in YYYY-MM-DD format")
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date")
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner. Drivers hand dates back either as time.Time
// or as ISO text depending on the dialect.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("cannot scan %q into Date: %w", s, err)
	}
	*d = NewDate(t)
	return nil
}

// Entry is a validated attendance submission.
type Entry struct {
	EmployeeID int64  `json:"employee_id"`
	Date       Date   `json:"date"`
	Status     Status `json:"status"`
	Department string `json:"department"`
}

// NewEntry validates raw input and builds an Entry. Every offending field is
// reported in the returned validation error.
func NewEntry(employeeID int64, date, status, department string) (Entry, error) {
	var problems []apperror.FieldError

	if employeeID <= 0 {
		problems = append(problems, apperror.FieldError{Field: "employee_id", Reason: "must be greater than 0"})
	}

	parsed, err := ParseDate(date)
	if err != nil {
		problems = append(problems, apperror.FieldError{Field: "date", Reason: err.Error()})
	}

	if !Status(status).Valid() {
		problems = append(problems, apperror.FieldError{Field: "status", Reason: statusReason()})
	}

	if reason := departmentReason(department); reason != "" {
		problems = append(problems, apperror.FieldError{Field: "department", Reason: reason})
	}

	if len(problems) > 0 {
		return Entry{}, apperror.Validation(problems...)
	}

	return Entry{
		EmployeeID: employeeID,
		Date:       parsed,
		Status:     Status(status),
		Department: department,
	}, nil
}

// Validate re-checks an Entry that may not have come from NewEntry.
func (e Entry) Validate() error {
	var problems []apperror.FieldError

	if e.EmployeeID <= 0 {
		problems = append(problems, apperror.FieldError{Field: "employee_id", Reason: "must be greater than 0"})
	}
	if e.Date.IsZero() {
		problems = append(problems, apperror.FieldError{Field: "date", Reason: "is required"})
	}
	if !e.Status.Valid() {
		problems = append(problems, apperror.FieldError{Field: "status", Reason: statusReason()})
	}
	if reason := departmentReason(e.Department); reason != "" {
		problems = append(problems, apperror.FieldError{Field: "department", Reason: reason})
	}

	if len(problems) > 0 {
		return apperror.Validation(problems...)
	}
	return nil
}

func statusReason() string {
	names := make([]string, 0, len(Statuses))
	for _, s := range Statuses {
		names = append(names, string(s))
	}
	return "must be one of " + strings.Join(names, ", ")
}

func departmentReason(department string) string {
	n := utf8.RuneCountInString(department)
	switch {
	case n == 0:
		return "must not be empty"
	case n > MaxDepartmentLength:
		return fmt.Sprintf("must be at most %d characters", MaxDepartmentLength)
	default:
		return ""
	}
}
