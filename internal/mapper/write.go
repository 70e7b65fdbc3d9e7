package mapper

import (
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"
)

// ToWrite собирает запись для insert/update. Имя исполнителя не пишется, только assignee_id.
// Необязательные поля без значения пишутся как nil, чтобы update их очищал.
func ToWrite(d task.Draft, assigneeID *string) repository.WriteSet {
	values := repository.WriteSet{
		repository.ColumnTitle:       d.Title,
		repository.ColumnDescription: nilIfEmpty(d.Description),
		repository.ColumnSubteam:     string(d.Subteam),
		repository.ColumnPriority:    string(d.Priority),
		repository.ColumnAssigneeID:  nilIfEmpty(assigneeID),
		repository.ColumnDueDate:     nil,
	}
	if d.DueDate != nil {
		values[repository.ColumnDueDate] = d.DueDate.String()
	}
	if d.Completed != nil {
		values[repository.ColumnCompleted] = *d.Completed
	}
	if d.Archived != nil {
		values[repository.ColumnArchived] = *d.Archived
	}
	return values
}

// PatchWrite - частичная запись, только заданные поля.
func PatchWrite(p task.Patch) repository.WriteSet {
	values := repository.WriteSet{}
	if p.Completed != nil {
		values[repository.ColumnCompleted] = *p.Completed
	}
	if p.Archived != nil {
		values[repository.ColumnArchived] = *p.Archived
	}
	if p.Subteam != nil {
		values[repository.ColumnSubteam] = string(*p.Subteam)
	}
	if p.Priority != nil {
		values[repository.ColumnPriority] = string(*p.Priority)
	}
	return values
}

func nilIfEmpty(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
