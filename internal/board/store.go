package board

import (
	"sync"

	"taskBoard/internal/models/task"
)

// Store - каноническая коллекция задач доски.
// Каждое изменение собирает новый срез, старые снимки никто не трогает.
// Менять Store должны только сервис мутаций и мерджер live-событий.
type Store struct {
	mu      sync.RWMutex
	tasks   []task.Task
	version uint64

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

func NewStore(initial ...task.Task) *Store {
	s := &Store{subs: make(map[int]chan struct{})}
	s.tasks = append([]task.Task(nil), initial...)
	return s
}

func (s *Store) All() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]task.Task(nil), s.tasks...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Get(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.tasks, id)
	if i < 0 {
		return task.Task{}, false
	}
	return s.tasks[i], true
}

func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Snapshot возвращает копии записей с указанными id, отсутствующие пропускаются.
func (s *Store) Snapshot(ids []string) []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		if i := indexOf(s.tasks, id); i >= 0 {
			out = append(out, s.tasks[i])
		}
	}
	return out
}

// Replace заменяет коллекцию целиком. Неподтвержденные временные записи остаются в начале.
func (s *Store) Replace(tasks []task.Task) {
	s.mutate(func(current []task.Task) ([]task.Task, bool) {
		next := make([]task.Task, 0, len(tasks)+1)
		for _, t := range current {
			if t.Pending() {
				next = append(next, t)
			}
		}
		for _, t := range tasks {
			if indexOf(next, t.ID) < 0 {
				next = append(next, t)
			}
		}
		return next, true
	})
}

// Prepend добавляет задачу в начало, если записи с таким id еще нет.
func (s *Store) Prepend(t task.Task) bool {
	return s.mutate(func(current []task.Task) ([]task.Task, bool) {
		if indexOf(current, t.ID) >= 0 {
			return nil, false
		}
		next := make([]task.Task, 0, len(current)+1)
		next = append(next, t)
		next = append(next, current...)
		return next, true
	})
}

// Put целиком заменяет существующую запись. Отсутствующая запись не создается.
func (s *Store) Put(t task.Task) bool {
	return s.mutate(func(current []task.Task) ([]task.Task, bool) {
		i := indexOf(current, t.ID)
		if i < 0 {
			return nil, false
		}
		next := append([]task.Task(nil), current...)
		next[i] = t
		return next, true
	})
}

// Patch применяет опции к одной записи и возвращает состояние до и после.
func (s *Store) Patch(id string, options ...task.TaskOption) (before, after task.Task, ok bool) {
	s.mutate(func(current []task.Task) ([]task.Task, bool) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, false
		}
		before = current[i]
		after = before.Apply(options...)
		ok = true
		next := append([]task.Task(nil), current...)
		next[i] = after
		return next, true
	})
	return before, after, ok
}

// PatchMany применяет опции ко всем найденным записям за один проход.
// Возвращает снимок затронутых записей до изменения.
func (s *Store) PatchMany(ids []string, options ...task.TaskOption) []task.Task {
	var staged []task.Task
	s.mutate(func(current []task.Task) ([]task.Task, bool) {
		next := append([]task.Task(nil), current...)
		for _, id := range ids {
			i := indexOf(next, id)
			if i < 0 || containsID(staged, id) {
				continue
			}
			staged = append(staged, next[i])
			next[i] = next[i].Apply(options...)
		}
		return next, len(staged) > 0
	})
	return staged
}

func (s *Store) Remove(id string) (task.Task, bool) {
	var removed task.Task
	ok := s.mutate(func(current []task.Task) ([]task.Task, bool) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, false
		}
		removed = current[i]
		next := make([]task.Task, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		return next, true
	})
	return removed, ok
}

// Restore возвращает записи из снимка. Удаленные за это время записи не воскрешаются.
func (s *Store) Restore(snapshot []task.Task) {
	if len(snapshot) == 0 {
		return
	}
	s.mutate(func(current []task.Task) ([]task.Task, bool) {
		next := append([]task.Task(nil), current...)
		changed := false
		for _, t := range snapshot {
			if i := indexOf(next, t.ID); i >= 0 {
				next[i] = t
				changed = true
			}
		}
		return next, changed
	})
}

// Confirm заменяет временную запись подтвержденной задачей.
// Если мерджер уже добавил запись с настоящим id, временная просто удаляется.
func (s *Store) Confirm(tempID string, confirmed task.Task) {
	s.mutate(func(current []task.Task) ([]task.Task, bool) {
		tempIdx := indexOf(current, tempID)
		realIdx := indexOf(current, confirmed.ID)

		switch {
		case tempIdx >= 0 && realIdx >= 0:
			next := make([]task.Task, 0, len(current)-1)
			next = append(next, current[:tempIdx]...)
			next = append(next, current[tempIdx+1:]...)
			return next, true
		case tempIdx >= 0:
			next := append([]task.Task(nil), current...)
			next[tempIdx] = confirmed
			return next, true
		case realIdx < 0:
			next := make([]task.Task, 0, len(current)+1)
			next = append(next, confirmed)
			next = append(next, current...)
			return next, true
		default:
			return nil, false
		}
	})
}

// Subscribe возвращает канал, в который приходит сигнал после каждого изменения.
// Сигналы схлопываются: подписчик читает актуальный снимок сам.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) mutate(fn func(current []task.Task) ([]task.Task, bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.tasks)
	if changed {
		s.tasks = next
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

func (s *Store) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func indexOf(tasks []task.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func containsID(tasks []task.Task, id string) bool {
	return indexOf(tasks, id) >= 0
}
