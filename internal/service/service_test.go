package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/identity"
	"taskBoard/internal/logger"
	"taskBoard/internal/mapper"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository - мок для repository.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) List(ctx context.Context) ([]repository.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.Record), args.Error(1)
}

func (m *MockTaskRepository) Get(ctx context.Context, id string) (repository.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Record), args.Error(1)
}

func (m *MockTaskRepository) Insert(ctx context.Context, values repository.WriteSet) (repository.Record, error) {
	args := m.Called(ctx, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Record), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, id string, values repository.WriteSet) (repository.Record, error) {
	args := m.Called(ctx, id, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Record), args.Error(1)
}

func (m *MockTaskRepository) UpdateMany(ctx context.Context, ids []string, values repository.WriteSet) error {
	args := m.Called(ctx, ids, values)
	return args.Error(0)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockResolver - мок для IdentityResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockResolver) List(ctx context.Context) ([]task.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Identity), args.Error(1)
}

var (
	now        = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	errNetwork = errors.New("соединение сброшено")
)

func existing(id, title string) task.Task {
	return task.Task{
		ID:        id,
		Title:     title,
		Subteam:   task.SubteamElectrical,
		Priority:  task.PriorityMedium,
		CreatedAt: now.Add(-48 * time.Hour),
	}
}

// recordOf - запись в том виде, в каком ее вернет хранилище
func recordOf(t task.Task) repository.Record {
	rec := repository.Record{
		"id":          t.ID,
		"title":       t.Title,
		"description": task.Deref(t.Description),
		"subteam":     string(t.Subteam),
		"priority":    string(t.Priority),
		"completed":   t.Completed,
		"archived":    t.Archived,
		"created_at":  t.CreatedAt,
	}
	if t.AssigneeID != nil {
		rec["assignee_id"] = *t.AssigneeID
	}
	if t.Assignee != nil {
		rec["user"] = map[string]any{"username": *t.Assignee}
	}
	if t.DueDate != nil {
		rec["due_date"] = t.DueDate.String()
	}
	return rec
}

func setup(initial ...task.Task) (*TaskService, *MockTaskRepository, *MockResolver, *board.Store) {
	logger.InitNop()
	repo := new(MockTaskRepository)
	resolver := new(MockResolver)
	store := board.NewStore(initial...)
	svc := NewTaskService(repo, resolver, store, WithClock(func() time.Time { return now }))
	return svc, repo, resolver, store
}

func assertBusinessCode(t *testing.T, err error, code string) {
	t.Helper()
	var busErr *BusinessError
	require.True(t, errors.As(err, &busErr), "Expected BusinessError")
	assert.Equal(t, code, busErr.Code)
}

func TestSaveTask_CreateThenConfirm(t *testing.T) {
	svc, repo, _, store := setup()
	ctx := context.Background()

	confirmed := existing("abc-123", "Build API endpoints")
	confirmed.Subteam = task.SubteamWebDev
	confirmed.Priority = task.PriorityLow
	confirmed.CreatedAt = now

	repo.On("Insert", mock.Anything, mock.MatchedBy(func(v repository.WriteSet) bool {
		return v[repository.ColumnTitle] == "Build API endpoints" && v[repository.ColumnAssigneeID] == nil
	})).Run(func(args mock.Arguments) {
		// до подтверждения в Store одна временная запись
		all := store.All()
		require.Len(t, all, 1)
		assert.True(t, task.IsTempID(all[0].ID))
		assert.Equal(t, "Build API endpoints", all[0].Title)
	}).Return(recordOf(confirmed), nil).Once()

	out, err := svc.SaveTask(ctx, task.Draft{
		Title:   "  Build API endpoints ",
		Subteam: task.SubteamWebDev,
	})

	require.NoError(t, err)
	assert.Nil(t, out.Warning)
	assert.Equal(t, "abc-123", out.Task.ID)
	assert.Equal(t, task.PriorityLow, out.Task.Priority)

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "abc-123", all[0].ID)
	repo.AssertExpectations(t)
}

func TestSaveTask_CreateRacesWithMerger(t *testing.T) {
	svc, repo, _, store := setup()
	confirmed := existing("abc-123", "Гонка")

	repo.On("Insert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		// уведомление INSERT пришло раньше ответа
		store.Prepend(confirmed)
	}).Return(recordOf(confirmed), nil).Once()

	_, err := svc.SaveTask(context.Background(), task.Draft{Title: "Гонка", Subteam: task.SubteamElectrical})
	require.NoError(t, err)

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "abc-123", all[0].ID)
}

func TestSaveTask_CreateFailureRemovesTemp(t *testing.T) {
	svc, repo, _, store := setup(existing("A", "a"))
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil, errNetwork).Once()

	_, err := svc.SaveTask(context.Background(), task.Draft{Title: "Новая", Subteam: task.SubteamFinance})

	assertBusinessCode(t, err, CodeRemoteWrite)
	assert.True(t, IsRemoteWrite(err))
	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, []task.Task{existing("A", "a")}, store.All())
}

func TestSaveTask_AssigneeResolution(t *testing.T) {
	t.Run("исполнитель найден", func(t *testing.T) {
		svc, repo, resolver, _ := setup()
		resolver.On("Resolve", mock.Anything, "alice").Return("u-1", nil).Once()

		created := existing("id-1", "С исполнителем")
		created.Assignee = strPtr("alice")
		created.AssigneeID = strPtr("u-1")
		repo.On("Insert", mock.Anything, mock.MatchedBy(func(v repository.WriteSet) bool {
			_, hasName := v["assignee"]
			return v[repository.ColumnAssigneeID] == "u-1" && !hasName
		})).Return(recordOf(created), nil).Once()

		out, err := svc.SaveTask(context.Background(), task.Draft{
			Title:    "С исполнителем",
			Subteam:  task.SubteamElectrical,
			Assignee: strPtr(" alice "),
		})

		require.NoError(t, err)
		assert.Nil(t, out.Warning)
		assert.Equal(t, "alice", *out.Task.Assignee)
		resolver.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("ошибка резолвера не прерывает сохранение", func(t *testing.T) {
		svc, repo, resolver, _ := setup()
		resErr := &identity.IdentityResolutionError{Name: "bob", Err: errNetwork}
		resolver.On("Resolve", mock.Anything, "bob").Return("", resErr).Once()

		repo.On("Insert", mock.Anything, mock.MatchedBy(func(v repository.WriteSet) bool {
			return v[repository.ColumnAssigneeID] == nil
		})).Return(recordOf(existing("id-2", "Без исполнителя")), nil).Once()

		out, err := svc.SaveTask(context.Background(), task.Draft{
			Title:    "Без исполнителя",
			Subteam:  task.SubteamElectrical,
			Assignee: strPtr("bob"),
		})

		require.NoError(t, err)
		var warn *identity.IdentityResolutionError
		assert.True(t, errors.As(out.Warning, &warn))
		assert.Nil(t, out.Task.Assignee)
	})

	t.Run("пустое имя не доходит до резолвера", func(t *testing.T) {
		svc, repo, resolver, _ := setup()
		repo.On("Insert", mock.Anything, mock.Anything).Return(recordOf(existing("id-3", "x")), nil).Once()

		_, err := svc.SaveTask(context.Background(), task.Draft{
			Title:    "x",
			Subteam:  task.SubteamElectrical,
			Assignee: strPtr("   "),
		})

		require.NoError(t, err)
		resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})
}

func TestSaveTask_ValidationLeavesStoreUntouched(t *testing.T) {
	archived := existing("ARCH", "archived")
	archived.Completed = true
	archived.Archived = true

	yesterday := task.DateOf(now.Add(-24 * time.Hour))
	today := task.DateOf(now)

	tests := []struct {
		name  string
		draft task.Draft
		code  string
	}{
		{name: "пустой заголовок", draft: task.Draft{Title: "   ", Subteam: task.SubteamFinance}, code: CodeValidation},
		{name: "неизвестная подкоманда", draft: task.Draft{Title: "x", Subteam: "Legal"}, code: CodeValidation},
		{name: "неизвестный приоритет", draft: task.Draft{Title: "x", Subteam: task.SubteamFinance, Priority: "Urgent"}, code: CodeValidation},
		{name: "срок в прошлом", draft: task.Draft{Title: "x", Subteam: task.SubteamFinance, DueDate: &yesterday}, code: CodeValidation},
		{name: "редактирование неизвестной", draft: task.Draft{ID: "nope", Title: "x", Subteam: task.SubteamFinance}, code: CodeNotFound},
		{name: "редактирование временной", draft: task.Draft{ID: task.NewTempID(), Title: "x", Subteam: task.SubteamFinance}, code: CodeValidation},
		{name: "разархивировать выполнение", draft: task.Draft{ID: "ARCH", Title: "x", Subteam: task.SubteamFinance, Completed: task.Bool(false)}, code: CodeValidation},
		{name: "срок в прошлом при правке", draft: task.Draft{ID: "A", Title: "x", Subteam: task.SubteamFinance, DueDate: &yesterday}, code: CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, store := setup(existing("A", "a"), archived)
			before := store.All()
			version := store.Version()

			_, err := svc.SaveTask(context.Background(), tt.draft)

			assertBusinessCode(t, err, tt.code)
			assert.Equal(t, before, store.All())
			assert.Equal(t, version, store.Version())
			repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("срок сегодня допустим", func(t *testing.T) {
		svc, repo, _, _ := setup()
		repo.On("Insert", mock.Anything, mock.Anything).Return(recordOf(existing("id", "x")), nil).Once()
		_, err := svc.SaveTask(context.Background(), task.Draft{Title: "x", Subteam: task.SubteamFinance, DueDate: &today})
		assert.NoError(t, err)
	})
}

func TestSaveTask_EditKeepsCreatedAtAndPastDueDate(t *testing.T) {
	past := task.DateOf(now.Add(-72 * time.Hour))
	current := existing("A", "Старое")
	current.DueDate = &past
	current.Completed = true

	svc, repo, _, store := setup(current)

	repo.On("Update", mock.Anything, "A", mock.MatchedBy(func(v repository.WriteSet) bool {
		return v[repository.ColumnTitle] == "Новое" && v[repository.ColumnCompleted] == true
	})).Return(recordOf(current.Apply(task.WithTitle("Новое"))), nil).Once()

	out, err := svc.SaveTask(context.Background(), task.Draft{
		ID:      "A",
		Title:   "Новое",
		Subteam: task.SubteamElectrical,
		DueDate: &past,
	})

	require.NoError(t, err)
	assert.Equal(t, "Новое", out.Task.Title)
	assert.True(t, out.Task.Completed)
	got, _ := store.Get("A")
	assert.Equal(t, current.CreatedAt, got.CreatedAt)
	repo.AssertExpectations(t)
}

func TestSaveTask_EditRollback(t *testing.T) {
	desc := "описание"
	current := existing("A", "a")
	current.Description = &desc
	current.Assignee = strPtr("alice")
	current.AssigneeID = strPtr("u-1")

	svc, repo, resolver, store := setup(current, existing("B", "b"))
	resolver.On("Resolve", mock.Anything, "bob").Return("u-2", nil).Once()
	repo.On("Update", mock.Anything, "A", mock.Anything).Run(func(args mock.Arguments) {
		staged, _ := store.Get("A")
		assert.Equal(t, "изменено", staged.Title)
		assert.Equal(t, "bob", *staged.Assignee)
	}).Return(nil, errNetwork).Once()

	_, err := svc.SaveTask(context.Background(), task.Draft{
		ID:       "A",
		Title:    "изменено",
		Subteam:  task.SubteamMarketing,
		Assignee: strPtr("bob"),
	})

	assertBusinessCode(t, err, CodeRemoteWrite)
	got, _ := store.Get("A")
	assert.Equal(t, current, got)
	b, _ := store.Get("B")
	assert.Equal(t, existing("B", "b"), b)
}

func TestSaveTask_MalformedResponseRestoresStore(t *testing.T) {
	current := existing("A", "a")
	svc, repo, _, store := setup(current, existing("B", "b"))

	malformed := recordOf(existing("A", "изменено"))
	malformed["archived"] = true
	repo.On("Update", mock.Anything, "A", mock.Anything).Return(malformed, nil).Once()

	_, err := svc.SaveTask(context.Background(), task.Draft{
		ID:      "A",
		Title:   "изменено",
		Subteam: task.SubteamMarketing,
	})

	var mapErr *mapper.MappingError
	require.ErrorAs(t, err, &mapErr)
	got, _ := store.Get("A")
	assert.Equal(t, current, got)
	b, _ := store.Get("B")
	assert.Equal(t, existing("B", "b"), b)
}

func TestToggleCompleted_MalformedResponseRestoresStore(t *testing.T) {
	current := existing("A", "a")
	svc, repo, _, store := setup(current)

	repo.On("Update", mock.Anything, "A", mock.Anything).
		Return(repository.Record{"id": "A", "subteam": "Electrical"}, nil).Once()

	_, err := svc.ToggleCompleted(context.Background(), "A")

	var mapErr *mapper.MappingError
	require.ErrorAs(t, err, &mapErr)
	got, _ := store.Get("A")
	assert.Equal(t, current, got)
}

func TestToggleCompleted(t *testing.T) {
	t.Run("успех", func(t *testing.T) {
		svc, repo, _, store := setup(existing("A", "a"))
		done := existing("A", "a")
		done.Completed = true
		repo.On("Update", mock.Anything, "A", repository.WriteSet{repository.ColumnCompleted: true}).
			Return(recordOf(done), nil).Once()

		got, err := svc.ToggleCompleted(context.Background(), "A")

		require.NoError(t, err)
		assert.True(t, got.Completed)
		stored, _ := store.Get("A")
		assert.True(t, stored.Completed)
	})

	t.Run("откат", func(t *testing.T) {
		svc, repo, _, store := setup(existing("A", "a"))
		repo.On("Update", mock.Anything, "A", mock.Anything).Return(nil, errNetwork).Once()

		_, err := svc.ToggleCompleted(context.Background(), "A")

		assertBusinessCode(t, err, CodeRemoteWrite)
		stored, _ := store.Get("A")
		assert.Equal(t, existing("A", "a"), stored)
	})

	t.Run("архивная задача", func(t *testing.T) {
		arch := existing("A", "a")
		arch.Completed = true
		arch.Archived = true
		svc, repo, _, _ := setup(arch)

		_, err := svc.ToggleCompleted(context.Background(), "A")

		assertBusinessCode(t, err, CodeValidation)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("неизвестная задача", func(t *testing.T) {
		svc, _, _, _ := setup()
		_, err := svc.ToggleCompleted(context.Background(), "nope")
		assert.True(t, IsNotFound(err))
	})
}

func TestSetArchived(t *testing.T) {
	t.Run("невыполненную нельзя", func(t *testing.T) {
		svc, _, _, store := setup(existing("A", "a"))
		_, err := svc.SetArchived(context.Background(), "A", true)
		assert.True(t, IsValidation(err))
		stored, _ := store.Get("A")
		assert.False(t, stored.Archived)
	})

	t.Run("откат не трогает completed", func(t *testing.T) {
		done := existing("A", "a")
		done.Completed = true
		svc, repo, _, store := setup(done)
		repo.On("Update", mock.Anything, "A", repository.WriteSet{repository.ColumnArchived: true}).
			Return(nil, errNetwork).Once()

		_, err := svc.SetArchived(context.Background(), "A", true)

		assertBusinessCode(t, err, CodeRemoteWrite)
		stored, _ := store.Get("A")
		assert.Equal(t, done, stored)
	})

	t.Run("разархивирование", func(t *testing.T) {
		arch := existing("A", "a")
		arch.Completed = true
		arch.Archived = true
		restored := arch
		restored.Archived = false

		svc, repo, _, store := setup(arch)
		repo.On("Update", mock.Anything, "A", repository.WriteSet{repository.ColumnArchived: false}).
			Return(recordOf(restored), nil).Once()

		got, err := svc.SetArchived(context.Background(), "A", false)

		require.NoError(t, err)
		assert.False(t, got.Archived)
		assert.True(t, got.Completed)
		stored, _ := store.Get("A")
		assert.False(t, stored.Archived)
	})

	t.Run("без изменений", func(t *testing.T) {
		svc, repo, _, _ := setup(existing("A", "a"))
		_, err := svc.SetArchived(context.Background(), "A", false)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeleteTask(t *testing.T) {
	t.Run("ошибка без восстановления", func(t *testing.T) {
		svc, repo, _, store := setup(existing("A", "a"), existing("B", "b"))
		repo.On("Delete", mock.Anything, "A").Return(errNetwork).Once()

		removed, err := svc.DeleteTask(context.Background(), "A")

		assertBusinessCode(t, err, CodeRemoteWrite)
		assert.Equal(t, existing("A", "a"), removed)
		assert.False(t, store.Has("A"))
		assert.True(t, store.Has("B"))
	})

	t.Run("уже удалена в хранилище", func(t *testing.T) {
		svc, repo, _, store := setup(existing("A", "a"))
		repo.On("Delete", mock.Anything, "A").Return(repository.ErrNotFound).Once()

		_, err := svc.DeleteTask(context.Background(), "A")

		require.NoError(t, err)
		assert.False(t, store.Has("A"))
	})

	t.Run("отмена запроса не отменяет запись", func(t *testing.T) {
		svc, repo, _, _ := setup(existing("A", "a"))
		repo.On("Delete", mock.MatchedBy(func(ctx context.Context) bool {
			return ctx.Err() == nil
		}), "A").Return(nil).Once()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.DeleteTask(ctx, "A")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestBatchUpdate_Rollback(t *testing.T) {
	svc, repo, _, store := setup(existing("A", "a"), existing("B", "b"), existing("C", "c"))
	repo.On("UpdateMany", mock.Anything, []string{"A", "B"}, repository.WriteSet{repository.ColumnCompleted: true}).
		Run(func(args mock.Arguments) {
			a, _ := store.Get("A")
			b, _ := store.Get("B")
			assert.True(t, a.Completed)
			assert.True(t, b.Completed)
		}).
		Return(errNetwork).Once()

	_, err := svc.BatchUpdate(context.Background(), []string{"A", "B"}, task.Patch{Completed: task.Bool(true)})

	assertBusinessCode(t, err, CodeRemoteWrite)
	assert.Equal(t, []task.Task{existing("A", "a"), existing("B", "b"), existing("C", "c")}, store.All())
	repo.AssertExpectations(t)
}

func TestBatchUpdate(t *testing.T) {
	high := task.PriorityHigh
	bad := task.Priority("Urgent")

	t.Run("успех", func(t *testing.T) {
		svc, repo, _, store := setup(existing("A", "a"), existing("B", "b"))
		repo.On("UpdateMany", mock.Anything, []string{"B"}, repository.WriteSet{repository.ColumnPriority: "High"}).
			Return(nil).Once()

		updated, err := svc.BatchUpdate(context.Background(), []string{"B", "B", "missing"}, task.Patch{Priority: &high})

		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, task.PriorityHigh, updated[0].Priority)
		a, _ := store.Get("A")
		assert.Equal(t, task.PriorityMedium, a.Priority)
	})

	t.Run("пустой набор id", func(t *testing.T) {
		svc, repo, _, _ := setup(existing("A", "a"))
		updated, err := svc.BatchUpdate(context.Background(), nil, task.Patch{})
		assert.NoError(t, err)
		assert.Nil(t, updated)
		repo.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
	})

	tests := []struct {
		name  string
		patch task.Patch
	}{
		{name: "пустой патч", patch: task.Patch{}},
		{name: "плохой приоритет", patch: task.Patch{Priority: &bad}},
		{name: "архивирование", patch: task.Patch{Archived: task.Bool(true)}},
		{name: "снять выполнение с архивной", patch: task.Patch{Completed: task.Bool(false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arch := existing("ARCH", "arch")
			arch.Completed = true
			arch.Archived = true
			svc, repo, _, store := setup(existing("A", "a"), arch)
			before := store.All()

			_, err := svc.BatchUpdate(context.Background(), []string{"A", "ARCH"}, tt.patch)

			assert.True(t, IsValidation(err))
			assert.Equal(t, before, store.All())
			repo.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestClaimTask(t *testing.T) {
	t.Run("успех", func(t *testing.T) {
		svc, repo, resolver, store := setup(existing("A", "a"))
		resolver.On("Resolve", mock.Anything, "carol").Return("u-3", nil).Once()

		claimed := existing("A", "a")
		claimed.Assignee = strPtr("carol")
		claimed.AssigneeID = strPtr("u-3")
		repo.On("Update", mock.Anything, "A", mock.MatchedBy(func(v repository.WriteSet) bool {
			return v[repository.ColumnAssigneeID] == "u-3"
		})).Return(recordOf(claimed), nil).Once()

		out, err := svc.ClaimTask(context.Background(), "A", "carol")

		require.NoError(t, err)
		assert.Equal(t, "carol", *out.Task.Assignee)
		stored, _ := store.Get("A")
		assert.Equal(t, "u-3", *stored.AssigneeID)
	})

	t.Run("уже назначена", func(t *testing.T) {
		assigned := existing("A", "a")
		assigned.Assignee = strPtr("alice")
		svc, _, _, _ := setup(assigned)

		_, err := svc.ClaimTask(context.Background(), "A", "carol")
		assert.True(t, IsValidation(err))
	})

	t.Run("без пользователя", func(t *testing.T) {
		svc, _, _, _ := setup(existing("A", "a"))
		_, err := svc.ClaimTask(context.Background(), "A", "  ")
		assert.True(t, IsValidation(err))
	})
}

func TestLoad(t *testing.T) {
	svc, repo, _, store := setup(existing("old", "old"))
	broken := recordOf(existing("bad", "bad"))
	broken["subteam"] = "Legal"

	repo.On("List", mock.Anything).Return([]repository.Record{
		recordOf(existing("A", "a")),
		broken,
		recordOf(existing("B", "b")),
	}, nil).Once()

	require.NoError(t, svc.Load(context.Background()))

	assert.Equal(t, []string{"A", "B"}, idsOf(store.All()))

	repo.On("List", mock.Anything).Return(nil, errNetwork).Once()
	assert.ErrorIs(t, svc.Load(context.Background()), errNetwork)
	assert.Equal(t, []string{"A", "B"}, idsOf(store.All()))
}

func TestReads(t *testing.T) {
	svc, _, resolver, _ := setup(existing("A", "Design landing page"), existing("B", "Motor"))
	resolver.On("List", mock.Anything).Return([]task.Identity{{ID: "1", Username: "alice"}}, nil)

	assert.Len(t, svc.Tasks(board.Filter{Query: "landing"}), 1)
	assert.Len(t, svc.Columns(board.Filter{}).Unassigned, 2)

	_, err := svc.GetTask("nope")
	assert.True(t, IsNotFound(err))

	identities, err := svc.ListIdentities(context.Background())
	require.NoError(t, err)
	assert.Len(t, identities, 1)
}

func idsOf(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
