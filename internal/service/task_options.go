package service

import "time"

const defaultWriteTimeout = 10 * time.Second

type ServiceOption func(*TaskService)

// WithClock подменяет часы, от них считается "сегодня" и время создания черновика.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *TaskService) {
		s.now = now
	}
}

// WithWriteTimeout ограничивает запись в хранилище. Запись не отменяется вместе с запросом.
func WithWriteTimeout(timeout time.Duration) ServiceOption {
	return func(s *TaskService) {
		if timeout > 0 {
			s.writeTimeout = timeout
		}
	}
}
