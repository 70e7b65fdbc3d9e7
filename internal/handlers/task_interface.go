package handlers

import (
	"context"

	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
	"taskBoard/internal/service"
)

type TaskService interface {
	HealthCheck(ctx context.Context) error
	Tasks(f board.Filter) []task.Task
	Columns(f board.Filter) board.Columns
	GetTask(id string) (task.Task, error)
	ListIdentities(ctx context.Context) ([]task.Identity, error)

	SaveTask(ctx context.Context, d task.Draft) (service.Outcome, error)
	ToggleCompleted(ctx context.Context, id string) (task.Task, error)
	SetArchived(ctx context.Context, id string, archived bool) (task.Task, error)
	DeleteTask(ctx context.Context, id string) (task.Task, error)
	BatchUpdate(ctx context.Context, ids []string, p task.Patch) ([]task.Task, error)
	ClaimTask(ctx context.Context, id, userName string) (service.Outcome, error)
}
