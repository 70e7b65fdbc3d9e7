package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	"taskBoard/internal/realtime"
	repo "taskBoard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage - хранилище в памяти процесса. Отдает записи в camelCase
// и связь user списком из одного элемента, как это делает внешний бэкенд.
type Storage struct {
	mtx    *sync.RWMutex
	rows   map[string]repo.Record
	ids    []string
	users  map[string]string
	names  map[string]string
	broker *realtime.Broker
	now    func() time.Time
}

type Option func(*Storage)

func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func New(options ...Option) *Storage {
	s := &Storage{
		mtx:    &sync.RWMutex{},
		rows:   make(map[string]repo.Record),
		ids:    []string{},
		users:  make(map[string]string),
		names:  make(map[string]string),
		broker: realtime.NewBroker(0),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

// Subscribe - лента изменений этого хранилища.
func (s *Storage) Subscribe(ctx context.Context) (realtime.Subscription, error) {
	return s.broker.Subscribe(ctx)
}

func (s *Storage) List(ctx context.Context) ([]repo.Record, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	ordered := append([]string(nil), s.ids...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a := s.rows[ordered[i]][repo.ColumnCreatedAt].(time.Time)
		b := s.rows[ordered[j]][repo.ColumnCreatedAt].(time.Time)
		return a.After(b)
	})

	out := make([]repo.Record, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, s.present(s.rows[id]))
	}
	return out, nil
}

func (s *Storage) Get(ctx context.Context, id string) (repo.Record, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return s.present(row), nil
}

func (s *Storage) Insert(ctx context.Context, values repo.WriteSet) (repo.Record, error) {
	s.mtx.Lock()
	if err := s.check(values); err != nil {
		s.mtx.Unlock()
		return nil, fmt.Errorf("добавление задачи: %w", err)
	}

	id := uuid.New().String()
	row := repo.Record{
		repo.ColumnID:        id,
		repo.ColumnCompleted: false,
		repo.ColumnArchived:  false,
		repo.ColumnCreatedAt: s.now().UTC(),
	}
	for k, v := range values {
		row[k] = v
	}
	s.rows[id] = row
	s.ids = append(s.ids, id)
	out := s.present(row)
	s.mtx.Unlock()

	s.publish(realtime.OpInsert, id)
	return out, nil
}

func (s *Storage) Update(ctx context.Context, id string, values repo.WriteSet) (repo.Record, error) {
	s.mtx.Lock()
	row, ok := s.rows[id]
	if !ok {
		s.mtx.Unlock()
		return nil, repo.ErrNotFound
	}
	if err := s.check(values); err != nil {
		s.mtx.Unlock()
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}
	next := repo.Record{}
	for k, v := range row {
		next[k] = v
	}
	for k, v := range values {
		next[k] = v
	}
	s.rows[id] = next
	out := s.present(next)
	s.mtx.Unlock()

	s.publish(realtime.OpUpdate, id)
	return out, nil
}

// UpdateMany обновляет существующие id одной операцией, отсутствующие пропускает.
func (s *Storage) UpdateMany(ctx context.Context, ids []string, values repo.WriteSet) error {
	s.mtx.Lock()
	if err := s.check(values); err != nil {
		s.mtx.Unlock()
		return fmt.Errorf("пакетное обновление: %w", err)
	}
	var touched []string
	for _, id := range ids {
		row, ok := s.rows[id]
		if !ok {
			continue
		}
		next := repo.Record{}
		for k, v := range row {
			next[k] = v
		}
		for k, v := range values {
			next[k] = v
		}
		s.rows[id] = next
		touched = append(touched, id)
	}
	s.mtx.Unlock()

	for _, id := range touched {
		s.publish(realtime.OpUpdate, id)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	s.mtx.Lock()
	if _, ok := s.rows[id]; !ok {
		s.mtx.Unlock()
		return repo.ErrNotFound
	}
	delete(s.rows, id)
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	s.mtx.Unlock()

	s.publish(realtime.OpDelete, id)
	return nil
}

func (s *Storage) FindByName(ctx context.Context, username string) (string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	id, ok := s.users[username]
	if !ok {
		return "", repo.ErrNotFound
	}
	return id, nil
}

func (s *Storage) InsertIdentity(ctx context.Context, username string) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.users[username]; ok {
		return "", repo.ErrConflict
	}
	id := uuid.New().String()
	s.users[username] = id
	s.names[id] = username
	return id, nil
}

func (s *Storage) ListIdentities(ctx context.Context) ([]task.Identity, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]task.Identity, 0, len(s.users))
	for name, id := range s.users {
		out = append(out, task.Identity{ID: id, Username: name})
	}
	return out, nil
}

// Import загружает готовые задачи и пользователей без событий в ленте.
func (s *Storage) Import(identities []task.Identity, tasks []task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, ident := range identities {
		if _, ok := s.users[ident.Username]; ok {
			return fmt.Errorf("импорт пользователя %q: %w", ident.Username, repo.ErrConflict)
		}
		id := ident.ID
		if id == "" {
			id = uuid.New().String()
		}
		s.users[ident.Username] = id
		s.names[id] = ident.Username
	}

	for _, t := range tasks {
		if _, ok := s.rows[t.ID]; ok || t.ID == "" {
			return fmt.Errorf("импорт задачи %q: %w", t.ID, repo.ErrConflict)
		}
		row := repo.Record{
			repo.ColumnID:          t.ID,
			repo.ColumnTitle:       t.Title,
			repo.ColumnDescription: derefOrNil(t.Description),
			repo.ColumnSubteam:     string(t.Subteam),
			repo.ColumnPriority:    string(t.Priority),
			repo.ColumnAssigneeID:  nil,
			repo.ColumnDueDate:     nil,
			repo.ColumnCompleted:   t.Completed,
			repo.ColumnArchived:    t.Archived,
			repo.ColumnCreatedAt:   t.CreatedAt.UTC(),
		}
		if t.Assignee != nil {
			id, ok := s.users[*t.Assignee]
			if !ok {
				return fmt.Errorf("импорт задачи %q: неизвестный исполнитель %q", t.ID, *t.Assignee)
			}
			row[repo.ColumnAssigneeID] = id
		}
		if t.DueDate != nil {
			row[repo.ColumnDueDate] = t.DueDate.String()
		}
		if row[repo.ColumnCreatedAt].(time.Time).IsZero() {
			row[repo.ColumnCreatedAt] = s.now().UTC()
		}
		s.rows[t.ID] = row
		s.ids = append(s.ids, t.ID)
	}

	logger.Info("Repository: Импортированы данные",
		zap.Int("identities", len(identities)),
		zap.Int("tasks", len(tasks)))
	return nil
}

func (s *Storage) check(values repo.WriteSet) error {
	for column, v := range values {
		if !repo.IsWritable(column) {
			return fmt.Errorf("колонка %q недоступна для записи", column)
		}
		if column == repo.ColumnAssigneeID && v != nil {
			id, _ := v.(string)
			if _, ok := s.names[id]; !ok {
				return fmt.Errorf("нарушение внешнего ключа assignee_id %q", id)
			}
		}
	}
	return nil
}

// present отдает копию строки с ключами в camelCase и связью user.
func (s *Storage) present(row repo.Record) repo.Record {
	out := repo.Record{
		"id":          row[repo.ColumnID],
		"title":       row[repo.ColumnTitle],
		"description": row[repo.ColumnDescription],
		"subteam":     row[repo.ColumnSubteam],
		"priority":    row[repo.ColumnPriority],
		"assigneeId":  row[repo.ColumnAssigneeID],
		"dueDate":     row[repo.ColumnDueDate],
		"completed":   row[repo.ColumnCompleted],
		"archived":    row[repo.ColumnArchived],
		"createdAt":   row[repo.ColumnCreatedAt],
		"user":        nil,
	}
	if id, ok := row[repo.ColumnAssigneeID].(string); ok {
		if name, ok := s.names[id]; ok {
			out["user"] = []any{map[string]any{repo.FieldUsername: name}}
		}
	}
	return out
}

func (s *Storage) publish(op realtime.Operation, id string) {
	s.broker.Publish(realtime.ChangeEvent{Operation: op, RecordID: id, Table: repo.TableTasks})
}

func derefOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
