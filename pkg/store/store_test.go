package store

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/harrisonrobin/taskfile/pkg/csvfile"
	"github.com/harrisonrobin/taskfile/pkg/model"
)

type recordingSaver struct {
	saves [][]model.Task
	err   error
}

func (r *recordingSaver) Save(tasks []model.Task) error {
	snapshot := make([]model.Task, len(tasks))
	copy(snapshot, tasks)
	r.saves = append(r.saves, snapshot)
	return r.err
}

func setupStore(t *testing.T) (*Store, *recordingSaver, *bytes.Buffer) {
	t.Helper()
	saver := &recordingSaver{}
	var buf bytes.Buffer
	return New(saver, nil, 0, log.New(&buf, "", 0)), saver, &buf
}

func openFileStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(csvfile.New(path, csvfile.Plain), log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestCreate_IDsAreSequential(t *testing.T) {
	s, saver, _ := setupStore(t)

	for i := 1; i <= 5; i++ {
		task, err := s.Create("Task", "", "2024-01-01 10:00")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if task.ID != i {
			t.Errorf("expected ID %d, got %d", i, task.ID)
		}
	}

	tasks := s.List()
	for i, task := range tasks {
		if task.ID != i+1 {
			t.Errorf("position %d: expected ID %d, got %d", i, i+1, task.ID)
		}
		if task.Completed {
			t.Errorf("task %d: expected completed=false at creation", task.ID)
		}
	}
	if len(saver.saves) != 5 {
		t.Errorf("expected 5 saves, got %d", len(saver.saves))
	}
}

func TestCreate_InvalidDateDoesNotPersist(t *testing.T) {
	s, saver, _ := setupStore(t)

	_, err := s.Create("Task", "", "next tuesday")
	var fe *model.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if len(saver.saves) != 0 {
		t.Errorf("expected no saves, got %d", len(saver.saves))
	}
	if s.CurrentID() != 0 {
		t.Errorf("expected counter unchanged, got %d", s.CurrentID())
	}
}

func TestUpdate(t *testing.T) {
	s, _, _ := setupStore(t)
	s.Create("A", "B", "2024-01-01 10:00")
	s.Create("C", "D", "2024-01-02 10:00")

	if err := s.Update(2, "E", "F", "2024-03-04 05:06", "TRUE"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	tasks := s.List()
	if tasks[0].Title != "A" || tasks[0].Completed {
		t.Errorf("task 1 should be untouched, got %+v", tasks[0])
	}
	got := tasks[1]
	want := time.Date(2024, 3, 4, 5, 6, 0, 0, time.UTC)
	if got.ID != 2 || got.Title != "E" || got.Description != "F" || !got.DueDate.Equal(want) || !got.Completed {
		t.Errorf("unexpected updated task: %+v", got)
	}
}

func TestUpdate_LenientBoolean(t *testing.T) {
	s, _, _ := setupStore(t)
	s.Create("A", "B", "2024-01-01 10:00")
	s.Update(1, "A", "B", "2024-01-01 10:00", "true")

	if err := s.Update(1, "A", "B", "2024-01-01 10:00", "yes"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if s.List()[0].Completed {
		t.Error("expected completed=false for \"yes\"")
	}
}

func TestUpdate_UnknownIDStillPersists(t *testing.T) {
	s, saver, _ := setupStore(t)
	s.Create("A", "B", "2024-01-01 10:00")
	before := s.List()

	if err := s.Update(99, "X", "Y", "2024-05-05 05:05", "true"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(saver.saves) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(saver.saves))
	}
	after := s.List()
	if len(after) != 1 || after[0] != before[0] {
		t.Errorf("expected tasks unchanged, got %+v", after)
	}
}

func TestUpdate_InvalidDateDoesNotPersist(t *testing.T) {
	s, saver, _ := setupStore(t)
	s.Create("A", "B", "2024-01-01 10:00")

	err := s.Update(1, "X", "Y", "2024/01/01", "true")
	var fe *model.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if len(saver.saves) != 1 {
		t.Errorf("expected only the create to be saved, got %d saves", len(saver.saves))
	}
	if s.List()[0].Title != "A" {
		t.Error("task should not change on a failed update")
	}
}

func TestDelete(t *testing.T) {
	s, saver, _ := setupStore(t)
	s.Create("A", "", "2024-01-01 10:00")
	s.Create("B", "", "2024-01-01 10:00")
	s.Create("C", "", "2024-01-01 10:00")

	s.Delete(2)
	tasks := s.List()
	if len(tasks) != 2 || tasks[0].Title != "A" || tasks[1].Title != "C" {
		t.Errorf("expected A and C to remain, got %+v", tasks)
	}

	s.Delete(42)
	if len(s.List()) != 2 {
		t.Errorf("deleting an unknown ID should not change the list")
	}
	if len(saver.saves) != 5 {
		t.Errorf("expected every delete to save, got %d saves", len(saver.saves))
	}
}

// IDs are never reused after a delete within a run.
func TestDelete_DoesNotReuseIDs(t *testing.T) {
	s, _, _ := setupStore(t)
	s.Create("A", "", "2024-01-01 10:00")
	s.Create("B", "", "2024-01-01 10:00")
	s.Delete(2)

	task, _ := s.Create("C", "", "2024-01-01 10:00")
	if task.ID != 3 {
		t.Errorf("expected ID 3, got %d", task.ID)
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	s, _, _ := setupStore(t)
	s.Create("A", "", "2024-01-01 10:00")

	tasks := s.List()
	tasks[0].Title = "mutated"
	if s.List()[0].Title != "A" {
		t.Error("List should not expose internal state")
	}
}

func TestPersistFailureIsLogged(t *testing.T) {
	s, saver, buf := setupStore(t)
	saver.err = errors.New("disk full")

	if _, err := s.Create("A", "", "2024-01-01 10:00"); err != nil {
		t.Fatalf("Create should not fail on save error: %v", err)
	}
	if !strings.Contains(buf.String(), "An error occurred while updating the file: disk full") {
		t.Errorf("expected save failure to be logged, got %q", buf.String())
	}
	if len(s.List()) != 1 {
		t.Error("in-memory change should survive a failed save")
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	s := openFileStore(t, path)
	if _, err := s.Create("A", "B", "2024-01-01 10:00"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tasks := openFileStore(t, path).List()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if got.ID != 1 || got.Title != "A" || got.Description != "B" || !got.DueDate.Equal(want) || got.Completed {
		t.Errorf("unexpected task after reload: %+v", got)
	}
}

func TestRoundTrip_DSTGapInLocalZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	prev := time.Local
	time.Local = ny
	t.Cleanup(func() { time.Local = prev })

	path := filepath.Join(t.TempDir(), "tasks.csv")
	s := openFileStore(t, path)
	if _, err := s.Create("Night shift", "", "2024-03-10 02:30"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "1,Night shift,,2024-03-10 02:30,false\n"; string(got) != want {
		t.Errorf("expected %q, got %q", want, string(got))
	}
	tasks := openFileStore(t, path).List()
	if len(tasks) != 1 || model.FormatDueDate(tasks[0].DueDate) != "2024-03-10 02:30" {
		t.Errorf("expected due date to survive reload, got %+v", tasks)
	}
}

// The counter is taken from the last line on reload, so an unsorted file
// hands out an ID that already exists.
func TestReload_CounterFromLastLineCollides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	content := "3,C,,2024-01-01 10:00,false\n1,A,,2024-01-01 10:00,false\n2,B,,2024-01-01 10:00,false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s := openFileStore(t, path)
	task, err := s.Create("D", "", "2024-01-01 10:00")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.ID != 3 {
		t.Errorf("expected new ID 3 (last line 2 + 1), got %d", task.ID)
	}

	count := 0
	for _, tk := range s.List() {
		if tk.ID == 3 {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected two tasks with ID 3, got %d", count)
	}
}

func TestUpdate_UnknownIDRewritesIdenticalBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	content := "1,A,B,2024-01-01 10:00,false\n2,C,D,2024-01-02 11:30,true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s := openFileStore(t, path)
	if err := s.Update(7, "X", "Y", "2024-01-01 10:00", "false"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("expected file unchanged, got %q", string(got))
	}
}

// A very long line does not cut the file short, so the next save keeps every task.
func TestOpen_LongLineKeepsLaterTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	title := strings.Repeat("x", 70000)
	content := "1,A,,2024-01-01 10:00,false\n2," + title + ",,2024-01-01 10:00,false\n3,C,,2024-01-01 10:00,false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s := openFileStore(t, path)
	task, err := s.Create("D", "", "2024-01-01 10:00")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.ID != 4 {
		t.Errorf("expected ID 4, got %d", task.ID)
	}

	got, _ := os.ReadFile(path)
	if want := content + "4,D,,2024-01-01 10:00,false\n"; string(got) != want {
		t.Errorf("expected all tasks kept, got %d bytes", len(got))
	}
}

func TestOpen_MalformedFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	if err := os.WriteFile(path, []byte("1,A,B\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(csvfile.New(path, csvfile.Plain), log.New(os.Stderr, "", 0))
	var pe *csvfile.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
