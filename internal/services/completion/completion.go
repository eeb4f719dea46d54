// Package completion планирует отложенные задачи, привязанные к ID запроса.
// Задача для ID может быть заменена или отменена до запуска.
package completion

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultTaskTimeout = 30 * time.Second

type task struct {
	timer *time.Timer
}

// Scheduler хранит отложенные задачи. Задачи выполняются со своим контекстом,
// не связанным с запросом, который их запланировал.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[int64]*task
	wg      sync.WaitGroup
	base    context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	stopped bool
	log     *slog.Logger
}

// New создаёт Scheduler. timeout ограничивает время выполнения одной задачи.
func New(log *slog.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:   make(map[int64]*task),
		base:    base,
		cancel:  cancel,
		timeout: timeout,
		log:     log,
	}
}

// Schedule запускает fn через delay. Повторный вызов для того же id заменяет
// ранее запланированную задачу. После Stop вызов игнорируется.
func (s *Scheduler) Schedule(id int64, delay time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.log.Warn("scheduler stopped, task dropped", slog.Int64("id", id))
		return
	}
	s.cancelLocked(id)

	t := &task{}
	s.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		if s.tasks[id] != t {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, id)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(s.base, s.timeout)
		defer cancel()
		fn(ctx)
	})
	s.tasks[id] = t
}

// Cancel отменяет задачу, если она ещё не запущена.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(id)
}

func (s *Scheduler) cancelLocked(id int64) bool {
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	delete(s.tasks, id)
	if t.timer.Stop() {
		s.wg.Done()
		return true
	}
	return false
}

// Pending возвращает число ожидающих задач.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop отменяет ожидающие задачи, прерывает контекст выполняющихся и ждёт их завершения.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	dropped := 0
	for id := range s.tasks {
		if s.cancelLocked(id) {
			dropped++
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if dropped > 0 {
		s.log.Info("pending tasks dropped on stop", slog.Int("count", dropped))
	}
}
