package service

import (
	"strings"

	"taskBoard/internal/models/task"
)

// normalize приводит черновик к каноническому виду: пробелы обрезаны, пустые строки стали nil.
func normalize(d task.Draft) task.Draft {
	d.ID = strings.TrimSpace(d.ID)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = task.StringPtr(task.Deref(d.Description))
	d.Assignee = task.StringPtr(task.Deref(d.Assignee))
	if d.Priority == "" {
		d.Priority = task.PriorityLow
	}
	return d
}

func validateFields(d task.Draft) error {
	if d.Title == "" {
		return NewValidationError("title", "заголовок не может быть пустым")
	}
	if !d.Subteam.Valid() {
		return NewValidationError("subteam", "неизвестная подкоманда")
	}
	if !d.Priority.Valid() {
		return NewValidationError("priority", "неизвестный приоритет")
	}
	return nil
}

func validateDueDate(due *task.Date, today task.Date) error {
	if due != nil && due.Before(today) {
		return NewValidationError("dueDate", "срок не может быть в прошлом")
	}
	return nil
}

func validatePatch(p task.Patch) error {
	if p.IsEmpty() {
		return NewValidationError("patch", "нет полей для обновления")
	}
	if p.Archived != nil {
		return NewValidationError("archived", "архивирование пакетом не поддерживается")
	}
	if p.Subteam != nil && !p.Subteam.Valid() {
		return NewValidationError("subteam", "неизвестная подкоманда")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return NewValidationError("priority", "неизвестный приоритет")
	}
	return nil
}

func validateID(id string) error {
	if id == "" {
		return NewValidationError("id", "пустой идентификатор")
	}
	if task.IsTempID(id) {
		return NewValidationError("id", "задача еще не сохранена")
	}
	return nil
}
