package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority returns the Priority named by s, or false if s names none.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("priority must be a string")
	}
	parsed, ok := ParsePriority(s)
	if !ok {
		return fmt.Errorf("priority must be one of Low, Medium, High")
	}
	*p = parsed
	return nil
}

func (p *Priority) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, ok := ParsePriority(s)
	if !ok {
		return fmt.Errorf("invalid priority %q in database", s)
	}
	*p = parsed
	return nil
}

// TaskStatus is the closed set of task states.
type TaskStatus string

const (
	StatusPending   TaskStatus = "Pending"
	StatusCompleted TaskStatus = "Completed"
)

// ParseTaskStatus returns the TaskStatus named by s, or false if s names none.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch st := TaskStatus(s); st {
	case StatusPending, StatusCompleted:
		return st, true
	}
	return "", false
}

// Toggled returns the opposite status.
func (s TaskStatus) Toggled() TaskStatus {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

func (s *TaskStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("status must be a string")
	}
	parsed, ok := ParseTaskStatus(str)
	if !ok {
		return fmt.Errorf("status must be one of Pending, Completed")
	}
	*s = parsed
	return nil
}

func (s *TaskStatus) Scan(src any) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, ok := ParseTaskStatus(str)
	if !ok {
		return fmt.Errorf("invalid status %q in database", str)
	}
	*s = parsed
	return nil
}

// MaxTitleLength is the longest title accepted, in characters.
const MaxTitleLength = 255

// Task represents a to-do item owned by exactly one user.
type Task struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description" db:"description"`
	Priority    Priority   `json:"priority" db:"priority"`
	DueDate     *Date      `json:"dueDate" db:"due_date"`
	Status      TaskStatus `json:"status" db:"status"`
	UserID      string     `json:"userId" db:"user_id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Priority    *Priority   `json:"priority"`
	DueDate     *Date       `json:"dueDate"`
	Status      *TaskStatus `json:"status"`
}

// TaskPatch carries a partial update. Fields left unset are not touched.
type TaskPatch struct {
	Title       Optional[string]     `json:"title"`
	Description Optional[string]     `json:"description"`
	Priority    Optional[Priority]   `json:"priority"`
	DueDate     Optional[Date]       `json:"dueDate"`
	Status      Optional[TaskStatus] `json:"status"`
}

// TaskSort selects the ordering of a task listing.
type TaskSort string

const (
	SortByCreatedAt TaskSort = "createdAt"
	SortByDueDate   TaskSort = "dueDate"
)

// TaskFilter narrows a task listing. Nil filters match everything.
type TaskFilter struct {
	Status   *TaskStatus
	Priority *Priority
	SortBy   TaskSort
}

// NewTaskFilter builds a filter from raw query values. Values outside the
// enumerations are dropped rather than rejected.
func NewTaskFilter(status, priority, sortBy string) TaskFilter {
	var f TaskFilter
	if st, ok := ParseTaskStatus(status); ok {
		f.Status = &st
	}
	if p, ok := ParsePriority(priority); ok {
		f.Priority = &p
	}
	switch TaskSort(sortBy) {
	case SortByDueDate:
		f.SortBy = SortByDueDate
	default:
		f.SortBy = SortByCreatedAt
	}
	return f
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", fmt.Errorf("cannot scan %T into string enum", src)
}

// Value stores the priority as plain text.
func (p Priority) Value() (driver.Value, error) {
	return string(p), nil
}

// Value stores the status as plain text.
func (s TaskStatus) Value() (driver.Value, error) {
	return string(s), nil
}
