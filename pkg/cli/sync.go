package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/harrisonrobin/taskfile/pkg/auth"
	"github.com/harrisonrobin/taskfile/pkg/config"
	"github.com/harrisonrobin/taskfile/pkg/google"
	"github.com/harrisonrobin/taskfile/pkg/index"
	"github.com/harrisonrobin/taskfile/pkg/model"
	"github.com/spf13/cobra"
)

var errNoStateDir = errors.New("configuration directory is unknown")

// Syncer mirrors a task list into a calendar.
type Syncer interface {
	SyncTasks(ctx context.Context, tasks []model.Task, now time.Time) google.SyncResult
}

// CalendarOpener connects to the calendar backend.
type CalendarOpener interface {
	Open(ctx context.Context, stateDir, calendarName string, idx *index.EventIndex, logger *log.Logger) (Syncer, error)
	Authenticate(ctx context.Context, stateDir string, logger *log.Logger) error
}

type googleOpener struct{}

func (googleOpener) Open(ctx context.Context, stateDir, calendarName string, idx *index.EventIndex, logger *log.Logger) (Syncer, error) {
	httpClient, err := auth.New(stateDir, logger).Client(ctx)
	if err != nil {
		return nil, err
	}
	client, err := google.NewClient(ctx, httpClient, calendarName, idx, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (googleOpener) Authenticate(ctx context.Context, stateDir string, logger *log.Logger) error {
	a := auth.New(stateDir, logger)
	if err := a.Reset(); err != nil {
		return err
	}
	_, err := a.Client(ctx)
	return err
}

func (a *App) syncCommand() *cobra.Command {
	return positional(&cobra.Command{
		Use:   "sync [calendar]",
		Short: "Mirror tasks into a Google Calendar",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.StateDir == "" {
				return errNoStateDir
			}
			calendarName := a.Config.Calendar
			if len(args) > 0 && args[0] != "" {
				calendarName = args[0]
			}

			idx, err := index.NewEventIndex(a.StateDir)
			if err != nil {
				a.Logger.Printf("Warning: failed to load event index: %v", err)
				idx = nil
			}

			syncer, err := a.Calendar.Open(cmd.Context(), a.StateDir, calendarName, idx, a.Logger)
			if err != nil {
				return fmt.Errorf("could not open calendar '%s': %w", calendarName, err)
			}

			result := syncer.SyncTasks(cmd.Context(), a.Store.List(), time.Now())
			if idx != nil {
				if err := idx.Save(); err != nil {
					a.Logger.Printf("Warning: failed to save event index: %v", err)
				}
			}
			fmt.Fprintf(a.Out, "Synced to calendar '%s': %s\n", calendarName, result)
			return nil
		},
	})
}

func (a *App) authCommand() *cobra.Command {
	return positional(&cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google Calendar",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.StateDir == "" {
				return errNoStateDir
			}
			if err := a.Calendar.Authenticate(cmd.Context(), a.StateDir, a.Logger); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(a.Out, "Authentication successful! Token saved to %s\n", filepath.Join(a.StateDir, auth.TokenFile))
			return nil
		},
	})
}

func (a *App) setCalendarCommand() *cobra.Command {
	return positional(&cobra.Command{
		Use:   "set-calendar <name>",
		Short: "Set the default Google Calendar name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.StateDir == "" {
				return errNoStateDir
			}
			a.Config.Calendar = args[0]
			if err := config.SaveTo(filepath.Join(a.StateDir, config.FileName), a.Config); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(a.Out, "Default calendar set to: %s\n", args[0])
			return nil
		},
	})
}
