package repository

import (
	"context"
	"errors"

	"taskBoard/internal/models/task"
)

var (
	ErrNotFound = errors.New("запись не найдена")
	ErrConflict = errors.New("конфликт уникальности")
)

// Record - сырая строка хранилища вместе со связью "user".
type Record map[string]any

// WriteSet - набор колонок для записи, ключи из констант Column*.
type WriteSet map[string]any

const (
	ColumnID          = "id"
	ColumnTitle       = "title"
	ColumnDescription = "description"
	ColumnSubteam     = "subteam"
	ColumnPriority    = "priority"
	ColumnAssigneeID  = "assignee_id"
	ColumnDueDate     = "due_date"
	ColumnCompleted   = "completed"
	ColumnArchived    = "archived"
	ColumnCreatedAt   = "created_at"

	RelationUser  = "user"
	FieldUsername = "username"
	TableTasks    = "tasks"
	TableUsers    = "users"
)

// WritableColumns - колонки, которые разрешено передавать в WriteSet.
var WritableColumns = []string{
	ColumnTitle,
	ColumnDescription,
	ColumnSubteam,
	ColumnPriority,
	ColumnAssigneeID,
	ColumnDueDate,
	ColumnCompleted,
	ColumnArchived,
}

func IsWritable(column string) bool {
	for _, c := range WritableColumns {
		if c == column {
			return true
		}
	}
	return false
}

type TaskRepository interface {
	HealthCheck(ctx context.Context) error
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Insert(ctx context.Context, values WriteSet) (Record, error)
	Update(ctx context.Context, id string, values WriteSet) (Record, error)
	UpdateMany(ctx context.Context, ids []string, values WriteSet) error
	Delete(ctx context.Context, id string) error
}

type IdentityRepository interface {
	FindByName(ctx context.Context, username string) (string, error)
	InsertIdentity(ctx context.Context, username string) (string, error)
	ListIdentities(ctx context.Context) ([]task.Identity, error)
}
