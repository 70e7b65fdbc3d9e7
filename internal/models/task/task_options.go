package task

type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	if title == "" {
		return nil
	}
	return func(task *Task) {
		task.Title = title
	}
}

// WithDescription с nil очищает описание.
func WithDescription(description *string) TaskOption {
	return func(task *Task) {
		task.Description = cloneString(description)
	}
}

func WithSubteam(subteam Subteam) TaskOption {
	if subteam == "" {
		return nil
	}
	return func(task *Task) {
		task.Subteam = subteam
	}
}

func WithPriority(priority Priority) TaskOption {
	if priority == "" {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

// WithAssignee задает имя и id исполнителя вместе, nil снимает назначение.
func WithAssignee(name, id *string) TaskOption {
	return func(task *Task) {
		task.Assignee = cloneString(name)
		task.AssigneeID = cloneString(id)
	}
}

func WithDueDate(due *Date) TaskOption {
	return func(task *Task) {
		if due == nil {
			task.DueDate = nil
			return
		}
		d := *due
		task.DueDate = &d
	}
}

func WithCompleted(completed bool) TaskOption {
	return func(task *Task) {
		task.Completed = completed
	}
}

func WithArchived(archived bool) TaskOption {
	return func(task *Task) {
		task.Archived = archived
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
