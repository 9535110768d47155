package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/taskfile/pkg/model"
	"google.golang.org/api/calendar/v3"
)

const (
	// TaskIDProperty is the private extended property linking an event to its task.
	TaskIDProperty = "taskfile_id"

	EventDuration = 30 * time.Minute

	colorPending   = "1"  // Lavender
	colorCompleted = "2"  // Sage
	colorOverdue   = "11" // Tomato
)

// ConvertTaskToCalendarEvent builds the event a task should have in the calendar.
// The event starts at the due date's wall clock in loc and lasts EventDuration.
func ConvertTaskToCalendarEvent(task model.Task, now time.Time, loc *time.Location) *calendar.Event {
	if loc == nil {
		loc = time.Local
	}
	start := model.DueIn(task.DueDate, loc)
	summary := task.Title
	colorID := colorPending
	status := "pending"

	if task.Completed {
		summary = "✓ " + task.Title
		colorID = colorCompleted
		status = "completed"
	} else if start.Before(now) {
		summary = "! " + task.Title
		colorID = colorOverdue
		status = "overdue"
	}

	var desc strings.Builder
	if task.Description != "" {
		desc.WriteString(task.Description)
		desc.WriteString("\n\n")
	}
	desc.WriteString(fmt.Sprintf("Status: %s\n", status))
	desc.WriteString(fmt.Sprintf("Due: %s\n", model.FormatDueDate(task.DueDate)))
	desc.WriteString(fmt.Sprintf("ID: %d\n", task.ID))

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		ColorId:     colorID,
		Start: &calendar.EventDateTime{
			DateTime: start.UTC().Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: start.Add(EventDuration).UTC().Format(time.RFC3339),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				TaskIDProperty: strconv.Itoa(task.ID),
			},
		},
	}
}

// EventNeedsUpdate returns a patch holding only the fields of target that differ
// from existing, or nil when the event is already up to date.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	sameStart, err := sameDateTime(existing.Start, target.Start)
	if err != nil {
		return nil, err
	}
	sameEnd, err := sameDateTime(existing.End, target.End)
	if err != nil {
		return nil, err
	}
	if !sameStart || !sameEnd {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameDateTime(a, b *calendar.EventDateTime) (bool, error) {
	if a == nil || b == nil || a.DateTime == "" || b.DateTime == "" {
		return a != nil && b != nil && a.DateTime == b.DateTime, nil
	}
	at, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return false, err
	}
	bt, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		return false, err
	}
	return at.Equal(bt), nil
}

// TaskIDFromEvent reads the task ID stored on an event, if any.
func TaskIDFromEvent(event *calendar.Event) (int, bool) {
	if event == nil || event.ExtendedProperties == nil {
		return 0, false
	}
	raw, ok := event.ExtendedProperties.Private[TaskIDProperty]
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
