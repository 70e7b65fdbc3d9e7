package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/mapper"
	"taskBoard/internal/models/task"
	"taskBoard/internal/realtime"
	"taskBoard/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultConcurrency = 16

// Fetcher дочитывает полную запись по id из уведомления.
type Fetcher interface {
	Get(ctx context.Context, id string) (repository.Record, error)
}

// ResyncFunc перечитывает всю коллекцию после потери событий.
type ResyncFunc func(ctx context.Context) error

// Merger применяет уведомления об изменениях к Store.
// Ошибка одного события логируется и не останавливает обработку следующих.
// События разных задач обрабатываются параллельно. Для одной задачи применяется
// только чтение, начатое позже последнего примененного чтения или удаления.
type Merger struct {
	fetcher     Fetcher
	store       *board.Store
	table       string
	resync      ResyncFunc
	newBackOff  func() backoff.BackOff
	concurrency int
	group       singleflight.Group

	mu      sync.Mutex
	seq     uint64
	floor   uint64            // чтения до последней пересинхронизации не применяются
	applied map[string]uint64 // id -> номер последнего примененного чтения или удаления
}

type fetched struct {
	rec repository.Record
	seq uint64
}

type MergerOption func(*Merger)

func WithTable(table string) MergerOption {
	return func(m *Merger) {
		if table != "" {
			m.table = table
		}
	}
}

func WithResync(fn ResyncFunc) MergerOption {
	return func(m *Merger) {
		m.resync = fn
	}
}

// WithBackOff задает политику повторов дочитывания.
func WithBackOff(factory func() backoff.BackOff) MergerOption {
	return func(m *Merger) {
		if factory != nil {
			m.newBackOff = factory
		}
	}
}

// WithConcurrency ограничивает число одновременно обрабатываемых событий.
func WithConcurrency(n int) MergerOption {
	return func(m *Merger) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

func NewMerger(fetcher Fetcher, store *board.Store, options ...MergerOption) *Merger {
	m := &Merger{
		fetcher:     fetcher,
		store:       store,
		table:       repository.TableTasks,
		newBackOff:  defaultBackOff,
		concurrency: defaultConcurrency,
		applied:     make(map[string]uint64),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Run раздает события обработчикам до закрытия канала или отмены контекста
// и дожидается начатых обработок.
func (m *Merger) Run(ctx context.Context, events <-chan realtime.ChangeEvent) error {
	logger.Info("Merger: Обработка событий запущена",
		zap.String("table", m.table),
		zap.Int("concurrency", m.concurrency))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Merger: Обработка событий остановлена")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				logger.Info("Merger: Лента событий закрыта")
				return nil
			}
			g.Go(func() error {
				if err := m.Apply(ctx, ev); err != nil {
					logger.Warn("Merger: Событие пропущено",
						zap.String("operation", string(ev.Operation)),
						zap.String("record_id", ev.RecordID),
						zap.Error(err))
				}
				return nil
			})
		}
	}
}

// Apply применяет одно событие. Повторная доставка того же события ничего не меняет.
func (m *Merger) Apply(ctx context.Context, ev realtime.ChangeEvent) error {
	if ev.Table != "" && ev.Table != m.table {
		return nil
	}
	if !ev.Valid() {
		return fmt.Errorf("некорректное событие %q для %q", ev.Operation, ev.RecordID)
	}

	switch ev.Operation {
	case realtime.OpInsert:
		if m.store.Has(ev.RecordID) {
			logger.Debug("Merger: Задача уже на доске", zap.String("task_id", ev.RecordID))
			return nil
		}
		t, seq, found, err := m.fetch(ctx, ev.RecordID)
		if err != nil || !found {
			return err
		}
		var added bool
		m.commit(t.ID, seq, func() { added = m.store.Prepend(t) })
		if added {
			logger.Debug("Merger: Задача добавлена", zap.String("task_id", t.ID))
		}

	case realtime.OpUpdate:
		if !m.store.Has(ev.RecordID) {
			return nil
		}
		t, seq, found, err := m.fetch(ctx, ev.RecordID)
		if err != nil || !found {
			return err
		}
		if m.commit(t.ID, seq, func() { m.store.Put(t) }) {
			logger.Debug("Merger: Задача обновлена", zap.String("task_id", t.ID))
		}

	case realtime.OpDelete:
		m.mu.Lock()
		m.seq++
		m.applied[ev.RecordID] = m.seq
		_, ok := m.store.Remove(ev.RecordID)
		m.mu.Unlock()
		if ok {
			logger.Debug("Merger: Задача удалена", zap.String("task_id", ev.RecordID))
		}

	case realtime.OpResync:
		if m.resync == nil {
			return nil
		}
		logger.Info("Merger: Полная пересинхронизация")
		start := m.tick()
		if err := m.resync(ctx); err != nil {
			return fmt.Errorf("пересинхронизация: %w", err)
		}
		m.advanceFloor(start)
	}
	return nil
}

// fetch дочитывает запись. Одновременные запросы одного id схлопываются,
// временные ошибки повторяются, удаленная запись дает found=false.
// seq - номер удачной попытки чтения.
func (m *Merger) fetch(ctx context.Context, id string) (task.Task, uint64, bool, error) {
	v, err, shared := m.group.Do(id, func() (any, error) {
		var out fetched
		op := func() error {
			out.seq = m.tick()
			rec, err := m.fetcher.Get(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				return backoff.Permanent(err)
			}
			out.rec = rec
			return err
		}
		if err := backoff.Retry(op, backoff.WithContext(m.newBackOff(), ctx)); err != nil {
			return nil, err
		}
		return out, nil
	})
	if shared {
		logger.Debug("Merger: Чтение задачи объединено", zap.String("task_id", id))
	}
	if errors.Is(err, repository.ErrNotFound) {
		logger.Debug("Merger: Запись уже удалена", zap.String("task_id", id))
		return task.Task{}, 0, false, nil
	}
	if err != nil {
		return task.Task{}, 0, false, fmt.Errorf("получение задачи %s: %w", id, err)
	}

	res := v.(fetched)
	t, err := mapper.ToTask(res.rec)
	if err != nil {
		return task.Task{}, 0, false, err
	}
	return t, res.seq, true, nil
}

func (m *Merger) tick() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

// commit применяет чтение, если после его начала задачу не удалили и не применили более позднее чтение.
func (m *Merger) commit(id string, seq uint64, apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.floor || seq <= m.applied[id] {
		logger.Debug("Merger: Устаревшее чтение отброшено", zap.String("task_id", id))
		return false
	}
	m.applied[id] = seq
	apply()
	return true
}

// advanceFloor отбрасывает чтения, начатые до пересинхронизации, и забывает перекрытые ими отметки.
func (m *Merger) advanceFloor(start uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if start <= m.floor {
		return
	}
	m.floor = start
	for id, seq := range m.applied {
		if seq < start {
			delete(m.applied, id)
		}
	}
}
