package store

import (
	"errors"
	"fmt"
	"log"

	"github.com/harrisonrobin/taskfile/pkg/csvfile"
	"github.com/harrisonrobin/taskfile/pkg/model"
)

// Saver persists the full task list.
type Saver interface {
	Save(tasks []model.Task) error
}

// Store is the in-memory task list plus the ID counter. Every mutation
// rewrites the whole list through the Saver, even when nothing changed.
type Store struct {
	tasks     []model.Task
	currentID int
	saver     Saver
	logger    *log.Logger
}

func New(saver Saver, tasks []model.Task, currentID int, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{tasks: tasks, currentID: currentID, saver: saver, logger: logger}
}

// Open loads the tasks file into a new Store. A malformed file is fatal; I/O
// failures are logged and the store starts from whatever was read.
func Open(file *csvfile.File, logger *log.Logger) (*Store, error) {
	s := New(file, nil, 0, logger)
	tasks, currentID, err := file.Load()
	if err != nil {
		var pe *csvfile.ParseError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("failed to parse %s: %w", file.Path, err)
		}
		s.logger.Printf("An error occurred while getting the file: %v", err)
	}
	s.tasks = tasks
	s.currentID = currentID
	return s, nil
}

// Create appends a new task with the next ID. An unparseable due date returns
// a *model.FormatError and leaves the store and file untouched.
func (s *Store) Create(title, description, dueDate string) (model.Task, error) {
	due, err := model.ParseDueDate(dueDate)
	if err != nil {
		return model.Task{}, err
	}

	task := model.Task{
		ID:          s.nextID(),
		Title:       title,
		Description: description,
		DueDate:     due,
	}
	s.tasks = append(s.tasks, task)
	s.persist()
	return task, nil
}

// Update overwrites every mutable field of the task with the given ID. An
// unknown ID is not an error; the file is rewritten either way.
func (s *Store) Update(id int, title, description, dueDate, completed string) error {
	due, err := model.ParseDueDate(dueDate)
	if err != nil {
		return err
	}
	isCompleted := model.ParseCompleted(completed)

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Title = title
			s.tasks[i].Description = description
			s.tasks[i].DueDate = due
			s.tasks[i].Completed = isCompleted
		}
	}
	s.persist()
	return nil
}

// List returns the tasks in insertion order.
func (s *Store) List() []model.Task {
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Delete removes every task with the given ID and rewrites the file.
func (s *Store) Delete(id int) {
	kept := s.tasks[:0]
	for _, task := range s.tasks {
		if task.ID != id {
			kept = append(kept, task)
		}
	}
	s.tasks = kept
	s.persist()
}

func (s *Store) CurrentID() int {
	return s.currentID
}

func (s *Store) nextID() int {
	s.currentID++
	return s.currentID
}

func (s *Store) persist() {
	if err := s.saver.Save(s.tasks); err != nil {
		s.logger.Printf("An error occurred while updating the file: %v", err)
	}
}
