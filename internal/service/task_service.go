package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/mapper"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

// TaskService - оптимистичные мутации доски.
// Каждое намерение сначала меняет Store, затем пишет в хранилище и либо
// подтверждает запись ответом хранилища, либо откатывает затронутые записи.
type TaskService struct {
	repo         repository.TaskRepository
	resolver     IdentityResolver
	store        *board.Store
	now          func() time.Time
	writeTimeout time.Duration
}

func NewTaskService(repo repository.TaskRepository, resolver IdentityResolver, store *board.Store, options ...ServiceOption) *TaskService {
	s := &TaskService{
		repo:         repo,
		resolver:     resolver,
		store:        store,
		now:          time.Now,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// Load заменяет содержимое Store списком из хранилища. Битые записи пропускаются.
func (s *TaskService) Load(ctx context.Context) error {
	start := time.Now()
	records, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("загрузка задач: %w", err)
	}

	tasks, errs := mapper.ToTasks(records)
	for _, mapErr := range errs {
		logger.Warn("Service: Пропущена запись", zap.Error(mapErr))
	}
	s.store.Replace(tasks)

	logger.Info("Service: Задачи загружены",
		zap.Int("count", len(tasks)),
		zap.Int("skipped", len(errs)),
		zap.Duration("ms", time.Since(start)))
	return nil
}

func (s *TaskService) Tasks(f board.Filter) []task.Task {
	return s.store.Filter(f)
}

func (s *TaskService) Columns(f board.Filter) board.Columns {
	return s.store.Columns(f)
}

func (s *TaskService) GetTask(id string) (task.Task, error) {
	t, ok := s.store.Get(id)
	if !ok {
		return task.Task{}, NewNotFound("Задача", id)
	}
	return t, nil
}

func (s *TaskService) ListIdentities(ctx context.Context) ([]task.Identity, error) {
	return s.resolver.List(ctx)
}

// SaveTask создает задачу (пустой ID) или полностью редактирует существующую.
func (s *TaskService) SaveTask(ctx context.Context, d task.Draft) (Outcome, error) {
	d = normalize(d)
	if err := validateFields(d); err != nil {
		return Outcome{}, err
	}
	if d.IsCreate() {
		return s.create(ctx, d)
	}
	return s.update(ctx, d)
}

func (s *TaskService) create(ctx context.Context, d task.Draft) (Outcome, error) {
	if err := validateDueDate(d.DueDate, s.today()); err != nil {
		return Outcome{}, err
	}
	d.Archived = nil
	if d.Completed == nil {
		d.Completed = task.Bool(false)
	}

	tempID := task.NewTempID()
	staged := task.Task{
		ID:        tempID,
		CreatedAt: s.now(),
	}.Apply(
		task.WithTitle(d.Title),
		task.WithDescription(d.Description),
		task.WithSubteam(d.Subteam),
		task.WithPriority(d.Priority),
		task.WithAssignee(d.Assignee, nil),
		task.WithDueDate(d.DueDate),
		task.WithCompleted(*d.Completed),
	)
	s.store.Prepend(staged)

	wctx, cancel := s.commitContext(ctx)
	defer cancel()

	assigneeID, warning := s.resolveAssignee(wctx, d.Assignee)

	rec, err := s.repo.Insert(wctx, mapper.ToWrite(d, assigneeID))
	if err != nil {
		s.store.Remove(tempID)
		logger.Error("Service: Не удалось создать задачу", err, zap.String("title", d.Title))
		return Outcome{}, NewRemoteWriteError("create", "", err)
	}

	confirmed, err := mapper.ToTask(rec)
	if err != nil {
		s.store.Remove(tempID)
		logger.Error("Service: Некорректный ответ хранилища", err)
		return Outcome{}, fmt.Errorf("ответ на создание задачи: %w", err)
	}

	s.store.Confirm(tempID, confirmed)
	logger.Info("Service: Задача создана", zap.String("task_id", confirmed.ID))
	return Outcome{Task: confirmed, Warning: warning}, nil
}

func (s *TaskService) update(ctx context.Context, d task.Draft) (Outcome, error) {
	if err := validateID(d.ID); err != nil {
		return Outcome{}, err
	}
	current, ok := s.store.Get(d.ID)
	if !ok {
		return Outcome{}, NewNotFound("Задача", d.ID)
	}
	if !task.DatePtrEqual(d.DueDate, current.DueDate) {
		if err := validateDueDate(d.DueDate, s.today()); err != nil {
			return Outcome{}, err
		}
	}
	if d.Completed == nil {
		d.Completed = task.Bool(current.Completed)
	}
	if d.Archived == nil {
		d.Archived = task.Bool(current.Archived)
	}
	if *d.Archived && !*d.Completed {
		return Outcome{}, NewValidationError("archived", "архивировать можно только выполненную задачу")
	}

	// id исполнителя остается прежним, пока имя не меняется
	var keptID *string
	if d.Assignee != nil && current.Assignee != nil && *d.Assignee == *current.Assignee {
		keptID = current.AssigneeID
	}

	before, _, ok := s.store.Patch(d.ID,
		task.WithTitle(d.Title),
		task.WithDescription(d.Description),
		task.WithSubteam(d.Subteam),
		task.WithPriority(d.Priority),
		task.WithAssignee(d.Assignee, keptID),
		task.WithDueDate(d.DueDate),
		task.WithCompleted(*d.Completed),
		task.WithArchived(*d.Archived),
	)
	if !ok {
		return Outcome{}, NewNotFound("Задача", d.ID)
	}

	wctx, cancel := s.commitContext(ctx)
	defer cancel()

	assigneeID, warning := s.resolveAssignee(wctx, d.Assignee)

	rec, err := s.repo.Update(wctx, d.ID, mapper.ToWrite(d, assigneeID))
	if err != nil {
		s.store.Restore([]task.Task{before})
		logger.Error("Service: Не удалось обновить задачу", err, zap.String("task_id", d.ID))
		return Outcome{}, NewRemoteWriteError("update", d.ID, err)
	}

	updated, err := s.reconcile(rec)
	if err != nil {
		s.store.Restore([]task.Task{before})
		return Outcome{}, err
	}
	logger.Info("Service: Задача обновлена", zap.String("task_id", d.ID))
	return Outcome{Task: updated, Warning: warning}, nil
}

// ToggleCompleted переключает признак выполнения. Архивные задачи не переключаются.
func (s *TaskService) ToggleCompleted(ctx context.Context, id string) (task.Task, error) {
	if err := validateID(id); err != nil {
		return task.Task{}, err
	}
	current, ok := s.store.Get(id)
	if !ok {
		return task.Task{}, NewNotFound("Задача", id)
	}
	if current.Archived {
		return task.Task{}, NewValidationError("completed", "архивную задачу нельзя переключить")
	}

	completed := !current.Completed
	return s.patchOne(ctx, "toggle", id, task.Patch{Completed: &completed})
}

// SetArchived архивирует или возвращает задачу. Признак выполнения не меняется.
func (s *TaskService) SetArchived(ctx context.Context, id string, archived bool) (task.Task, error) {
	if err := validateID(id); err != nil {
		return task.Task{}, err
	}
	current, ok := s.store.Get(id)
	if !ok {
		return task.Task{}, NewNotFound("Задача", id)
	}
	if archived && !current.Completed {
		return task.Task{}, NewValidationError("archived", "архивировать можно только выполненную задачу")
	}
	if current.Archived == archived {
		return current, nil
	}

	op := "archive"
	if !archived {
		op = "unarchive"
	}
	return s.patchOne(ctx, op, id, task.Patch{Archived: &archived})
}

func (s *TaskService) patchOne(ctx context.Context, op, id string, p task.Patch) (task.Task, error) {
	before, _, ok := s.store.Patch(id, p.Options()...)
	if !ok {
		return task.Task{}, NewNotFound("Задача", id)
	}

	wctx, cancel := s.commitContext(ctx)
	defer cancel()

	rec, err := s.repo.Update(wctx, id, mapper.PatchWrite(p))
	if err != nil {
		s.store.Restore([]task.Task{before})
		logger.Error("Service: Не удалось сохранить изменение", err, zap.String("op", op), zap.String("task_id", id))
		return task.Task{}, NewRemoteWriteError(op, id, err)
	}
	updated, err := s.reconcile(rec)
	if err != nil {
		s.store.Restore([]task.Task{before})
		return task.Task{}, err
	}
	return updated, nil
}

// DeleteTask удаляет задачу сразу. При ошибке хранилища запись не возвращается,
// удаленная копия отдается вызывающему для отмены.
func (s *TaskService) DeleteTask(ctx context.Context, id string) (task.Task, error) {
	if err := validateID(id); err != nil {
		return task.Task{}, err
	}
	removed, ok := s.store.Remove(id)
	if !ok {
		return task.Task{}, NewNotFound("Задача", id)
	}

	wctx, cancel := s.commitContext(ctx)
	defer cancel()

	err := s.repo.Delete(wctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Error("Service: Не удалось удалить задачу", err, zap.String("task_id", id))
		return removed, NewRemoteWriteError("delete", id, err)
	}
	logger.Info("Service: Задача удалена", zap.String("task_id", id))
	return removed, nil
}

// BatchUpdate применяет патч ко всем id одной записью. При ошибке откатываются
// только затронутые записи по снимку до изменения.
func (s *TaskService) BatchUpdate(ctx context.Context, ids []string, p task.Patch) ([]task.Task, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := validateID(id); err != nil {
			return nil, err
		}
	}
	if p.Completed != nil && !*p.Completed {
		for _, t := range s.store.Snapshot(ids) {
			if t.Archived {
				return nil, NewValidationError("completed", fmt.Sprintf("задача %s в архиве", t.ID))
			}
		}
	}

	staged := s.store.PatchMany(ids, p.Options()...)
	if len(staged) == 0 {
		return nil, NewNotFound("Задачи", strings.Join(ids, ","))
	}
	stagedIDs := make([]string, 0, len(staged))
	for _, t := range staged {
		stagedIDs = append(stagedIDs, t.ID)
	}

	wctx, cancel := s.commitContext(ctx)
	defer cancel()

	if err := s.repo.UpdateMany(wctx, stagedIDs, mapper.PatchWrite(p)); err != nil {
		s.store.Restore(staged)
		logger.Error("Service: Не удалось обновить задачи пакетом", err, zap.Int("count", len(stagedIDs)))
		return nil, NewRemoteWriteError("batch", "", err)
	}

	logger.Info("Service: Пакетное обновление", zap.Int("count", len(stagedIDs)))
	return s.store.Snapshot(stagedIDs), nil
}

// ClaimTask назначает текущего пользователя на свободную задачу.
func (s *TaskService) ClaimTask(ctx context.Context, id, userName string) (Outcome, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return Outcome{}, NewValidationError("assignee", "пользователь не определен")
	}
	if err := validateID(id); err != nil {
		return Outcome{}, err
	}
	current, ok := s.store.Get(id)
	if !ok {
		return Outcome{}, NewNotFound("Задача", id)
	}
	if current.Archived {
		return Outcome{}, NewValidationError("archived", "задача в архиве")
	}
	if current.Assignee != nil {
		return Outcome{}, NewValidationError("assignee", "задача уже назначена")
	}

	d := task.DraftFrom(current)
	d.Assignee = &userName
	return s.SaveTask(ctx, d)
}

// reconcile кладет ответ хранилища в Store. Запись, удаленную за время ожидания, не воскрешает.
func (s *TaskService) reconcile(rec repository.Record) (task.Task, error) {
	confirmed, err := mapper.ToTask(rec)
	if err != nil {
		logger.Error("Service: Некорректный ответ хранилища", err)
		return task.Task{}, fmt.Errorf("ответ хранилища: %w", err)
	}
	s.store.Put(confirmed)
	return confirmed, nil
}

func (s *TaskService) resolveAssignee(ctx context.Context, name *string) (*string, error) {
	if name == nil {
		return nil, nil
	}
	id, err := s.resolver.Resolve(ctx, *name)
	if err != nil {
		logger.Warn("Service: Задача будет сохранена без исполнителя", zap.String("assignee", *name), zap.Error(err))
		return nil, err
	}
	return &id, nil
}

// commitContext отвязывает запись от отмены запроса, но ограничивает ее по времени.
func (s *TaskService) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
}

func (s *TaskService) today() task.Date {
	return task.DateOf(s.now())
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
