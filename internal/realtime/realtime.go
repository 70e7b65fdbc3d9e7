package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	// OpResync приходит после переподключения ленты, часть событий могла потеряться.
	OpResync Operation = "RESYNC"
)

// ChangeEvent - уведомление об изменении записи. Доставка at-least-once.
type ChangeEvent struct {
	Operation Operation `json:"operation"`
	RecordID  string    `json:"record_id"`
	Table     string    `json:"table"`
}

func (e ChangeEvent) Valid() bool {
	switch e.Operation {
	case OpInsert, OpUpdate, OpDelete:
		return e.RecordID != ""
	case OpResync:
		return true
	}
	return false
}

// ParseEvent разбирает payload уведомления из триггера.
func ParseEvent(payload string) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("разбор события: %w", err)
	}
	if !ev.Valid() {
		return ChangeEvent{}, fmt.Errorf("некорректное событие %q", payload)
	}
	return ev, nil
}

type Feed interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// Broker раздает события всем подписчикам в памяти процесса.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*brokerSub]struct{}
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{subs: make(map[*brokerSub]struct{}), buffer: buffer}
}

func (b *Broker) Subscribe(ctx context.Context) (Subscription, error) {
	sub := &brokerSub{
		broker: b,
		ch:     make(chan ChangeEvent, b.buffer),
		stop:   make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.stop:
		}
	}()
	return sub, nil
}

// Publish не блокируется: медленный подписчик теряет событие и получает RESYNC.
func (b *Broker) Publish(ev ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		sub.send(ev)
	}
}

type brokerSub struct {
	broker *Broker
	mu     sync.Mutex
	ch     chan ChangeEvent
	closed bool
	lagged bool
	stop   chan struct{}
}

func (s *brokerSub) send(ev ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.lagged {
		select {
		case s.ch <- ChangeEvent{Operation: OpResync}:
			s.lagged = false
		default:
			return
		}
	}
	select {
	case s.ch <- ev:
	default:
		s.lagged = true
	}
}

func (s *brokerSub) Events() <-chan ChangeEvent {
	return s.ch
}

func (s *brokerSub) Close() error {
	s.broker.mu.Lock()
	delete(s.broker.subs, s)
	s.broker.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	close(s.stop)
	return nil
}
