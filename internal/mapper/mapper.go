package mapper

import (
	"fmt"
	"time"

	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"
)

// MappingError - запись не удалось превратить в задачу, запись пропускается.
type MappingError struct {
	ID     string
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("маппинг записи: поле %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("маппинг записи %s: поле %s: %s", e.ID, e.Field, e.Reason)
}

var aliases = map[string][]string{
	repository.ColumnID:          {"id"},
	repository.ColumnTitle:       {"title"},
	repository.ColumnDescription: {"description"},
	repository.ColumnSubteam:     {"subteam"},
	repository.ColumnPriority:    {"priority"},
	repository.ColumnAssigneeID:  {"assignee_id", "assigneeId"},
	repository.ColumnDueDate:     {"due_date", "dueDate"},
	repository.ColumnCompleted:   {"completed"},
	repository.ColumnArchived:    {"archived"},
	repository.ColumnCreatedAt:   {"created_at", "createdAt"},
	repository.RelationUser:      {"user", "assignee"},
}

func lookup(rec repository.Record, column string) (any, bool) {
	for _, key := range aliases[column] {
		if v, ok := rec[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ToTask переводит сырую запись в Task. Ошибка всегда *MappingError.
func ToTask(rec repository.Record) (task.Task, error) {
	var t task.Task

	id, err := optionalString(rec, repository.ColumnID)
	if err != nil {
		return t, err
	}
	if id == nil {
		return t, &MappingError{Field: repository.ColumnID, Reason: "отсутствует"}
	}
	t.ID = *id

	fail := func(field, reason string) (task.Task, error) {
		return task.Task{}, &MappingError{ID: t.ID, Field: field, Reason: reason}
	}

	title, err := optionalString(rec, repository.ColumnTitle)
	if err != nil {
		return fail(repository.ColumnTitle, err.Error())
	}
	if title == nil {
		return fail(repository.ColumnTitle, "отсутствует")
	}
	t.Title = *title

	if t.Description, err = optionalString(rec, repository.ColumnDescription); err != nil {
		return fail(repository.ColumnDescription, err.Error())
	}

	subteam, err := optionalString(rec, repository.ColumnSubteam)
	if err != nil {
		return fail(repository.ColumnSubteam, err.Error())
	}
	if subteam == nil || !task.Subteam(*subteam).Valid() {
		return fail(repository.ColumnSubteam, fmt.Sprintf("неизвестное значение %q", task.Deref(subteam)))
	}
	t.Subteam = task.Subteam(*subteam)

	priority, err := optionalString(rec, repository.ColumnPriority)
	if err != nil {
		return fail(repository.ColumnPriority, err.Error())
	}
	t.Priority = task.PriorityLow
	if priority != nil {
		if !task.Priority(*priority).Valid() {
			return fail(repository.ColumnPriority, fmt.Sprintf("неизвестное значение %q", *priority))
		}
		t.Priority = task.Priority(*priority)
	}

	if t.AssigneeID, err = optionalString(rec, repository.ColumnAssigneeID); err != nil {
		return fail(repository.ColumnAssigneeID, err.Error())
	}

	if t.Assignee, err = relationUsername(rec); err != nil {
		return fail(repository.RelationUser, err.Error())
	}

	if t.DueDate, err = optionalDate(rec, repository.ColumnDueDate); err != nil {
		return fail(repository.ColumnDueDate, err.Error())
	}

	if t.Completed, err = optionalBool(rec, repository.ColumnCompleted); err != nil {
		return fail(repository.ColumnCompleted, err.Error())
	}
	if t.Archived, err = optionalBool(rec, repository.ColumnArchived); err != nil {
		return fail(repository.ColumnArchived, err.Error())
	}
	if t.Archived && !t.Completed {
		return fail(repository.ColumnArchived, "архивная задача должна быть выполнена")
	}

	createdAt, ok := lookup(rec, repository.ColumnCreatedAt)
	if !ok {
		return fail(repository.ColumnCreatedAt, "отсутствует")
	}
	if t.CreatedAt, err = toTimestamp(createdAt); err != nil {
		return fail(repository.ColumnCreatedAt, err.Error())
	}

	return t, nil
}

// ToTasks маппит список, битые записи пропускаются и возвращаются отдельно.
func ToTasks(records []repository.Record) ([]task.Task, []error) {
	tasks := make([]task.Task, 0, len(records))
	var errs []error
	for _, rec := range records {
		t, err := ToTask(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, errs
}

func optionalString(rec repository.Record, column string) (*string, error) {
	v, ok := lookup(rec, column)
	if !ok {
		return nil, nil
	}
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil, nil
		}
		return &s, nil
	case *string:
		if s == nil || *s == "" {
			return nil, nil
		}
		out := *s
		return &out, nil
	case fmt.Stringer:
		out := s.String()
		if out == "" {
			return nil, nil
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("ожидалась строка, получено %T", v)
	}
}

func optionalBool(rec repository.Record, column string) (bool, error) {
	v, ok := lookup(rec, column)
	if !ok {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case *bool:
		return b != nil && *b, nil
	default:
		return false, fmt.Errorf("ожидался bool, получено %T", v)
	}
}

func optionalDate(rec repository.Record, column string) (*task.Date, error) {
	v, ok := lookup(rec, column)
	if !ok {
		return nil, nil
	}
	switch d := v.(type) {
	case task.Date:
		return &d, nil
	case *task.Date:
		if d == nil {
			return nil, nil
		}
		out := *d
		return &out, nil
	case time.Time:
		out := task.DateOf(d)
		return &out, nil
	case *time.Time:
		if d == nil {
			return nil, nil
		}
		out := task.DateOf(*d)
		return &out, nil
	case string:
		if d == "" {
			return nil, nil
		}
		if parsed, err := task.ParseDate(d); err == nil {
			return &parsed, nil
		}
		ts, err := time.Parse(time.RFC3339, d)
		if err != nil {
			return nil, fmt.Errorf("неверная дата %q", d)
		}
		out := task.DateOf(ts)
		return &out, nil
	default:
		return nil, fmt.Errorf("ожидалась дата, получено %T", v)
	}
}

func toTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		if ts.IsZero() {
			return time.Time{}, fmt.Errorf("пустая отметка времени")
		}
		return ts, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, fmt.Errorf("неверная отметка времени %q", ts)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("ожидалась отметка времени, получено %T", v)
	}
}

// relationUsername разбирает связь "user": nil, объект или список из одного объекта.
func relationUsername(rec repository.Record) (*string, error) {
	v, ok := lookup(rec, repository.RelationUser)
	if !ok {
		return nil, nil
	}
	switch rel := v.(type) {
	case map[string]any:
		return usernameOf(rel)
	case repository.Record:
		return usernameOf(rel)
	case []map[string]any:
		if len(rel) != 1 {
			return nil, fmt.Errorf("ожидался один пользователь, получено %d", len(rel))
		}
		return usernameOf(rel[0])
	case []any:
		if len(rel) != 1 {
			return nil, fmt.Errorf("ожидался один пользователь, получено %d", len(rel))
		}
		if rel[0] == nil {
			return nil, nil
		}
		obj, ok := rel[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("неожиданный элемент связи %T", rel[0])
		}
		return usernameOf(obj)
	default:
		return nil, fmt.Errorf("неожиданная форма связи %T", v)
	}
}

func usernameOf(obj map[string]any) (*string, error) {
	v, ok := obj[repository.FieldUsername]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("username: ожидалась строка, получено %T", v)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}
