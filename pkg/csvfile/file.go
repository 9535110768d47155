package csvfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/harrisonrobin/taskfile/pkg/model"
)

const (
	// Separator joins the five columns of a line.
	Separator = ","
	numFields = 5
)

// Encoding selects how a line is split into columns.
type Encoding string

const (
	// Plain splits on every comma with no escaping. A comma inside a title or
	// description corrupts the line on the next load.
	Plain Encoding = "plain"
	// Quoted uses RFC 4180 quoting. Lines whose fields need no quoting are
	// identical to Plain. Fields must not contain newlines.
	Quoted Encoding = "quoted"
)

func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(s)) {
	case "", Plain:
		return Plain, nil
	case Quoted:
		return Quoted, nil
	}
	return "", fmt.Errorf("unknown encoding %q (want %q or %q)", s, Plain, Quoted)
}

// ParseError is a malformed line in the tasks file. It aborts the run.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// File is the tasks file on disk.
type File struct {
	Path     string
	Encoding Encoding
}

func New(path string, encoding Encoding) *File {
	if encoding == "" {
		encoding = Plain
	}
	return &File{Path: path, Encoding: encoding}
}

// Load reads every task in the file. The returned counter is the ID on the
// last line read, not the maximum ID. A missing file is created empty.
//
// A *ParseError means the file content is unusable. Any other error is an I/O
// failure, returned alongside the tasks read before it happened.
func (f *File) Load() ([]model.Task, int, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("failed to open %s: %w", f.Path, err)
		}
		created, err := os.OpenFile(f.Path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return nil, 0, fmt.Errorf("file could not be created: %w", err)
		}
		return nil, 0, created.Close()
	}
	defer file.Close()

	var (
		tasks  []model.Task
		lastID int
		lineNo int
	)
	// Lines have no length limit.
	r := bufio.NewReader(file)
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return tasks, lastID, fmt.Errorf("failed to read %s: %w", f.Path, readErr)
		}
		if readErr == io.EOF && line == "" {
			break
		}
		lineNo++
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		task, err := f.decode(line)
		if err != nil {
			return nil, 0, &ParseError{Line: lineNo, Text: line, Err: err}
		}
		tasks = append(tasks, task)
		lastID = task.ID
		if readErr == io.EOF {
			break
		}
	}
	return tasks, lastID, nil
}

// Save truncates the file and writes every task, one per line, in order.
func (f *File) Save(tasks []model.Task) error {
	file, err := os.Create(f.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, task := range tasks {
		line, err := f.encode(task)
		if err != nil {
			return err
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func (f *File) decode(line string) (model.Task, error) {
	var values []string
	if f.Encoding == Quoted {
		r := csv.NewReader(strings.NewReader(line))
		r.FieldsPerRecord = -1
		record, err := r.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return model.Task{}, err
		}
		values = record
	} else {
		values = strings.Split(line, Separator)
	}
	if len(values) != numFields {
		return model.Task{}, fmt.Errorf("expected %d fields, got %d", numFields, len(values))
	}

	id, err := strconv.Atoi(values[0])
	if err != nil {
		return model.Task{}, fmt.Errorf("bad id: %w", err)
	}
	due, err := model.ParseDueDate(values[3])
	if err != nil {
		return model.Task{}, err
	}
	return model.Task{
		ID:          id,
		Title:       values[1],
		Description: values[2],
		DueDate:     due,
		Completed:   model.ParseCompleted(values[4]),
	}, nil
}

func (f *File) encode(task model.Task) (string, error) {
	values := []string{
		strconv.Itoa(task.ID),
		task.Title,
		task.Description,
		model.FormatDueDate(task.DueDate),
		strconv.FormatBool(task.Completed),
	}
	if f.Encoding != Quoted {
		return strings.Join(values, Separator), nil
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(values); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
