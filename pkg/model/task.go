package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the textual form of a due date, both on the command line and in the tasks file.
const DateLayout = "2006-01-02 15:04"

// Task is a single to-do record. ID is assigned by the store and never changes.
type Task struct {
	ID          int
	Title       string
	Description string
	DueDate     time.Time
	Completed   bool
}

// FormatError reports user input that could not be parsed into a task field.
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ParseDueDate parses text in DateLayout. Due dates carry no zone: the wall
// clock is stored as UTC so every value round-trips, DST gaps included.
func ParseDueDate(text string) (time.Time, error) {
	t, err := time.Parse(DateLayout, text)
	if err != nil {
		return time.Time{}, &FormatError{Field: "due date", Value: text, Err: err}
	}
	return t, nil
}

func FormatDueDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DueIn places the wall-clock due date in loc.
func DueIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// ParseCompleted is lenient: only a case-insensitive "true" yields true, anything else is false.
func ParseCompleted(text string) bool {
	return strings.EqualFold(text, "true")
}

// ParseID parses a task ID given on the command line.
func ParseID(text string) (int, error) {
	id, err := strconv.Atoi(text)
	if err != nil {
		return 0, &FormatError{Field: "id", Value: text, Err: err}
	}
	return id, nil
}
