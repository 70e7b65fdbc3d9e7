package dto

import (
	"taskBoard/internal/models/task"
)

// SaveTaskRequest - тело POST /tasks и PUT /tasks/{id}.
type SaveTaskRequest struct {
	Title       string        `json:"title"`
	Description *string       `json:"description,omitempty"`
	Subteam     task.Subteam  `json:"subteam"`
	Priority    task.Priority `json:"priority,omitempty"`
	Assignee    *string       `json:"assignee,omitempty"`
	DueDate     *task.Date    `json:"dueDate,omitempty"`
	Completed   *bool         `json:"completed,omitempty"`
	Archived    *bool         `json:"archived,omitempty"`
}

func (r SaveTaskRequest) ToDraft(id string) task.Draft {
	return task.Draft{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Subteam:     r.Subteam,
		Priority:    r.Priority,
		Assignee:    r.Assignee,
		DueDate:     r.DueDate,
		Completed:   r.Completed,
		Archived:    r.Archived,
	}
}

// BatchUpdateRequest - тело POST /tasks/batch.
type BatchUpdateRequest struct {
	IDs       []string       `json:"ids"`
	Completed *bool          `json:"completed,omitempty"`
	Archived  *bool          `json:"archived,omitempty"`
	Subteam   *task.Subteam  `json:"subteam,omitempty"`
	Priority  *task.Priority `json:"priority,omitempty"`
}

func (r BatchUpdateRequest) ToPatch() task.Patch {
	return task.Patch{
		Completed: r.Completed,
		Archived:  r.Archived,
		Subteam:   r.Subteam,
		Priority:  r.Priority,
	}
}

// TaskResponse - задача и предупреждение, если исполнителя назначить не удалось.
type TaskResponse struct {
	Task    task.Task `json:"task"`
	Warning string    `json:"warning,omitempty"`
}

func FromOutcome(t task.Task, warning error) TaskResponse {
	resp := TaskResponse{Task: t}
	if warning != nil {
		resp.Warning = warning.Error()
	}
	return resp
}

type TaskListResponse struct {
	Tasks []task.Task `json:"tasks"`
	Count int         `json:"count"`
}

func FromTaskList(tasks []task.Task) TaskListResponse {
	if tasks == nil {
		tasks = []task.Task{}
	}
	return TaskListResponse{Tasks: tasks, Count: len(tasks)}
}
