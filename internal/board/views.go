package board

import (
	"strings"

	"taskBoard/internal/models/task"
)

type Status string

const (
	StatusAll         Status = "All"
	StatusCompleted   Status = "Completed"
	StatusUncompleted Status = "Uncompleted"
)

type Scope string

const (
	ScopeActive   Scope = "active"
	ScopeArchived Scope = "archived"
	ScopeAll      Scope = "all"
)

// Filter - параметры производного представления. Пустые поля не фильтруют.
type Filter struct {
	Status  Status
	Subteam task.Subteam
	Query   string
	Scope   Scope
}

func (s Status) Valid() bool {
	switch s {
	case "", StatusAll, StatusCompleted, StatusUncompleted:
		return true
	}
	return false
}

// Columns - задачи, разложенные по колонкам доски.
type Columns struct {
	Unassigned []task.Task `json:"unassigned"`
	Assigned   []task.Task `json:"assigned"`
	Completed  []task.Task `json:"completed"`
}

func (s *Store) Active() []task.Task {
	return s.Filter(Filter{Scope: ScopeActive})
}

func (s *Store) Archived() []task.Task {
	return s.Filter(Filter{Scope: ScopeArchived})
}

func (s *Store) Filter(f Filter) []task.Task {
	all := s.All()
	out := make([]task.Task, 0, len(all))
	for _, t := range all {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Columns раскладывает активные задачи под фильтром по колонкам.
func (s *Store) Columns(f Filter) Columns {
	f.Scope = ScopeActive
	cols := Columns{
		Unassigned: []task.Task{},
		Assigned:   []task.Task{},
		Completed:  []task.Task{},
	}
	for _, t := range s.Filter(f) {
		switch {
		case t.Completed:
			cols.Completed = append(cols.Completed, t)
		case t.Assignee == nil:
			cols.Unassigned = append(cols.Unassigned, t)
		default:
			cols.Assigned = append(cols.Assigned, t)
		}
	}
	return cols
}

func (f Filter) Matches(t task.Task) bool {
	switch f.Scope {
	case ScopeArchived:
		if !t.Archived {
			return false
		}
	case ScopeAll:
	default:
		if t.Archived {
			return false
		}
	}

	switch f.Status {
	case StatusCompleted:
		if !t.Completed {
			return false
		}
	case StatusUncompleted:
		if t.Completed {
			return false
		}
	}

	if f.Subteam != "" && t.Subteam != f.Subteam {
		return false
	}

	return MatchesQuery(t, f.Query)
}

// MatchesQuery ищет подстроку без учета регистра по всем текстовым полям задачи.
func MatchesQuery(t task.Task, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(haystack(t), query)
}

func haystack(t task.Task) string {
	parts := []string{
		t.Title,
		task.Deref(t.Description),
		task.Deref(t.Assignee),
		string(t.Subteam),
		string(t.Priority),
	}
	if t.DueDate != nil {
		parts = append(parts, t.DueDate.String())
	}
	if !t.CreatedAt.IsZero() {
		parts = append(parts, t.CreatedAt.Format(task.DateLayout))
	}
	return strings.ToLower(strings.Join(parts, " "))
}
