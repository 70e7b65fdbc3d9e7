package task

// Draft - намерение пользователя создать или отредактировать задачу.
// Пустой ID означает создание. Assignee - отображаемое имя, id определяет резолвер.
type Draft struct {
	ID          string
	Title       string
	Description *string
	Subteam     Subteam
	Priority    Priority
	Assignee    *string
	DueDate     *Date
	Completed   *bool
	Archived    *bool
}

func (d Draft) IsCreate() bool {
	return d.ID == ""
}

// Patch - частичное изменение для переключений и пакетных операций.
type Patch struct {
	Completed *bool
	Archived  *bool
	Subteam   *Subteam
	Priority  *Priority
}

func (p Patch) IsEmpty() bool {
	return p.Completed == nil && p.Archived == nil && p.Subteam == nil && p.Priority == nil
}

// Options переводит патч в опции для локального применения.
func (p Patch) Options() []TaskOption {
	var options []TaskOption
	if p.Completed != nil {
		options = append(options, WithCompleted(*p.Completed))
	}
	if p.Archived != nil {
		options = append(options, WithArchived(*p.Archived))
	}
	if p.Subteam != nil {
		options = append(options, WithSubteam(*p.Subteam))
	}
	if p.Priority != nil {
		options = append(options, WithPriority(*p.Priority))
	}
	return options
}

func Bool(b bool) *bool {
	return &b
}

// DraftFrom - черновик полного редактирования с текущими значениями задачи.
func DraftFrom(t Task) Draft {
	return Draft{
		ID:          t.ID,
		Title:       t.Title,
		Description: cloneString(t.Description),
		Subteam:     t.Subteam,
		Priority:    t.Priority,
		Assignee:    cloneString(t.Assignee),
		DueDate:     cloneDate(t.DueDate),
		Completed:   Bool(t.Completed),
		Archived:    Bool(t.Archived),
	}
}

func cloneDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
