package service

import (
	"context"

	"taskBoard/internal/models/task"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
	List(ctx context.Context) ([]task.Identity, error)
}

// Outcome - результат мутации. Warning не ошибка: задача сохранена, но без исполнителя.
type Outcome struct {
	Task    task.Task
	Warning error
}
