package pgnotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/realtime"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const DefaultChannel = "task_changes"

const (
	minReconnect = 2 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Feed - лента изменений поверх LISTEN/NOTIFY. Триггер в БД шлет json c operation, record_id, table.
type Feed struct {
	connString string
	channel    string
}

func New(connString, channel string) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Feed{connString: connString, channel: channel}
}

func (f *Feed) Subscribe(ctx context.Context) (realtime.Subscription, error) {
	listener := pq.NewListener(f.connString, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("Realtime: Не удалось подключиться к ленте", zap.Error(err))
		case pq.ListenerEventDisconnected:
			logger.Warn("Realtime: Лента отключилась", zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("Realtime: Лента переподключена")
		}
	})

	if err := listener.Listen(f.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("подписка на канал %s: %w", f.channel, err)
	}
	logger.Info("Realtime: Подписка на канал", zap.String("channel", f.channel))

	sub := &subscription{
		listener: listener,
		events:   make(chan realtime.ChangeEvent, 64),
		stop:     make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.run(ctx)
	return sub, nil
}

type subscription struct {
	listener *pq.Listener
	events   chan realtime.ChangeEvent
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func (s *subscription) Events() <-chan realtime.ChangeEvent {
	return s.events
}

func (s *subscription) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			ev, valid := toEvent(n)
			if !valid {
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		case <-ticker.C:
			if err := s.listener.Ping(); err != nil {
				logger.Warn("Realtime: Ping ленты не прошел", zap.Error(err))
			}
		}
	}
}

// toEvent: nil-уведомление pq присылает после переподключения.
func toEvent(n *pq.Notification) (realtime.ChangeEvent, bool) {
	if n == nil {
		return realtime.ChangeEvent{Operation: realtime.OpResync}, true
	}
	ev, err := realtime.ParseEvent(n.Extra)
	if err != nil {
		logger.Warn("Realtime: Пропущено некорректное уведомление", zap.String("payload", n.Extra), zap.Error(err))
		return realtime.ChangeEvent{}, false
	}
	return ev, true
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.listener.Close()
		logger.Info("Realtime: Подписка закрыта")
	})
	return err
}
