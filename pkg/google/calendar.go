package google

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/harrisonrobin/taskfile/pkg/index"
	"github.com/harrisonrobin/taskfile/pkg/model"
	"github.com/harrisonrobin/taskfile/pkg/util"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

type SyncAction string

const (
	Created   SyncAction = "created"
	Updated   SyncAction = "updated"
	Unchanged SyncAction = "unchanged"
)

// SyncResult counts what a SyncTasks run did.
type SyncResult struct {
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
	Failed    int
}

func (r SyncResult) String() string {
	return fmt.Sprintf("%d created, %d updated, %d unchanged, %d deleted, %d failed",
		r.Created, r.Updated, r.Unchanged, r.Deleted, r.Failed)
}

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	logger     *log.Logger
	loc        *time.Location
}

// NewCalendarClient creates a new Google Calendar client.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, logger *log.Logger) *CalendarClient {
	if logger == nil {
		logger = log.Default()
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, logger: logger, loc: time.Local}
}

// SetLocation sets the zone due dates are placed in. The default is time.Local.
func (c *CalendarClient) SetLocation(loc *time.Location) {
	c.loc = loc
}

// SyncTasks mirrors tasks into the calendar: one event per task, and events
// whose task no longer exists are deleted. Individual failures are logged and
// counted. The index is updated in memory; saving it is up to the caller.
func (c *CalendarClient) SyncTasks(ctx context.Context, tasks []model.Task, now time.Time) SyncResult {
	var result SyncResult
	live := make(map[int]bool, len(tasks))

	for _, task := range tasks {
		live[task.ID] = true
		action, _, err := c.SyncEvent(ctx, task, now)
		if err != nil {
			c.logger.Printf("Error syncing task %d: %v", task.ID, err)
			result.Failed++
			continue
		}
		switch action {
		case Created:
			result.Created++
		case Updated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	if c.index == nil {
		return result
	}
	for _, taskID := range c.index.Stale(live) {
		err := c.DeleteEvent(ctx, c.index.Get(taskID))
		if err != nil && !isGone(err) {
			c.logger.Printf("Error deleting event for task %d: %v", taskID, err)
			result.Failed++
			continue
		}
		c.index.Remove(taskID)
		result.Deleted++
	}
	return result
}

// SyncEvent creates the task's event or patches the existing one.
func (c *CalendarClient) SyncEvent(ctx context.Context, task model.Task, now time.Time) (SyncAction, *calendar.Event, error) {
	event := util.ConvertTaskToCalendarEvent(task, now, c.loc)

	var existingEvent *calendar.Event
	if c.index != nil {
		if eventID := c.index.Get(task.ID); eventID != "" {
			found, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && found.Status != "cancelled" {
				existingEvent = found
			}
		}
	}

	if existingEvent == nil {
		found, err := c.GetEventByTaskID(ctx, task.ID)
		if err != nil {
			return "", nil, fmt.Errorf("error searching for event: %w", err)
		}
		existingEvent = found
	}

	if existingEvent != nil {
		patch, err := util.EventNeedsUpdate(existingEvent, event)
		if err != nil {
			return "", nil, fmt.Errorf("could not compare task with its calendar event: %w", err)
		}
		c.remember(task.ID, existingEvent.Id)
		if patch == nil {
			return Unchanged, existingEvent, nil
		}
		updated, err := c.PatchEvent(ctx, existingEvent.Id, patch)
		if err != nil {
			return "", nil, err
		}
		return Updated, updated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", nil, err
	}
	c.remember(task.ID, created.Id)
	return Created, created, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// GetEventByTaskID finds a live event carrying the task's ID in its private extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID int) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%d", util.TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	for _, item := range events.Items {
		if id, ok := util.TaskIDFromEvent(item); ok && id == taskID && item.Status != "cancelled" {
			return item, nil
		}
	}
	return nil, nil
}

func (c *CalendarClient) remember(taskID int, eventID string) {
	if c.index != nil {
		c.index.Set(taskID, eventID)
	}
}

// isGone reports whether the event was already deleted on the calendar side.
func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
