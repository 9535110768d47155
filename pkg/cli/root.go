package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/harrisonrobin/taskfile/pkg/config"
	"github.com/harrisonrobin/taskfile/pkg/csvfile"
	"github.com/harrisonrobin/taskfile/pkg/model"
	"github.com/harrisonrobin/taskfile/pkg/store"
	"github.com/spf13/cobra"
)

const (
	ColumnSeparator = " | "
	ColumnHeader    = "ID | Title | Description | Due Date | Completed"
	InvalidCommand  = "Invalid command"
)

// App is the state shared by every command of one invocation.
type App struct {
	Config *config.Config
	Store  *store.Store
	Out    io.Writer
	Logger *log.Logger

	// StateDir holds the config file, OAuth token and event index.
	StateDir string
	// Calendar opens the calendar used by sync and auth. Tests replace it.
	Calendar CalendarOpener
}

// Execute loads the tasks file, then runs the single command named in args.
func Execute(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	encoding, err := csvfile.ParseEncoding(cfg.Encoding)
	if err != nil {
		return err
	}

	logger := log.New(out, "", 0)
	st, err := store.Open(csvfile.New(cfg.File, encoding), logger)
	if err != nil {
		return err
	}

	dir, err := config.Dir()
	if err != nil {
		logger.Printf("Warning: could not find configuration directory: %v", err)
	}

	app := &App{
		Config:   cfg,
		Store:    st,
		Out:      out,
		Logger:   logger,
		StateDir: dir,
		Calendar: googleOpener{},
	}
	return app.Run(ctx, args)
}

func (a *App) Run(ctx context.Context, args []string) error {
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	root := a.rootCommand()
	// cobra adds its own hidden commands (help, __complete) at execute time;
	// only the commands registered here are valid.
	if len(args) == 0 || !hasCommand(root, args[0]) {
		fmt.Fprintln(a.Out, InvalidCommand)
		return nil
	}
	root.SetArgs(args)
	root.SetOut(a.Out)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskfile",
		Short: "Track tasks in a flat file",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.Out, InvalidCommand)
			return nil
		},
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		a.createCommand(),
		a.updateCommand(),
		a.listCommand(),
		a.deleteCommand(),
		a.syncCommand(),
		a.authCommand(),
		a.setCalendarCommand(),
	)
	return root
}

func hasCommand(root *cobra.Command, name string) bool {
	for _, cmd := range root.Commands() {
		if cmd.Name() == name {
			return true
		}
	}
	return false
}

func positional(cmd *cobra.Command) *cobra.Command {
	cmd.DisableFlagParsing = true
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd
}

func (a *App) createCommand() *cobra.Command {
	return positional(&cobra.Command{
		Use:   "create <title> <description> <dueDate>",
		Short: "Add a task due at dueDate (yyyy-MM-dd HH:mm)",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.Store.Create(args[0], args[1], args[2])
			return err
		},
	})
}

func (a *App) updateCommand() *cobra.Command {
	return positional(&cobra.Command{
		Use:   "update <id> <title> <description> <dueDate> <completed>",
		Short: "Replace every field of a task",
		Args:  cobra.MinimumNArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseID(args[0])
			if err != nil {
				return err
			}
			return a.Store.Update(id, args[1], args[2], args[3], args[4])
		},
	})
}

func (a *App) listCommand() *cobra.Command {
	return positional(&cobra.Command{
		Use:   "list",
		Short: "Print all tasks",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.Out, ColumnHeader)
			for _, task := range a.Store.List() {
				fmt.Fprintln(a.Out, FormatRow(task))
			}
			return nil
		},
	})
}

func (a *App) deleteCommand() *cobra.Command {
	return positional(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseID(args[0])
			if err != nil {
				return err
			}
			a.Store.Delete(id)
			return nil
		},
	})
}

// FormatRow renders a task as one line of list output.
func FormatRow(task model.Task) string {
	return strings.Join([]string{
		strconv.Itoa(task.ID),
		task.Title,
		task.Description,
		model.FormatDueDate(task.DueDate),
		strconv.FormatBool(task.Completed),
	}, ColumnSeparator)
}
