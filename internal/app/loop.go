package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/feed"
)

// Loop owns a session on a single goroutine. Operations are queued with Do;
// tasks they return run concurrently and their completions are applied back
// on the loop goroutine.
type Loop struct {
	app     *App
	session *feed.Session
	ops     chan op
	done    chan feed.Completion

	mu      sync.Mutex
	pending int
	idle    *sync.Cond

	// OnError is called on the loop goroutine for every Apply error.
	OnError func(feed.TaskKey, error)
}

type op struct {
	fn    func(*feed.Session) (feed.Task, error)
	reply chan error
}

// NewLoop creates a loop for s. Call Run to start it.
func (a *App) NewLoop(s *feed.Session) *Loop {
	l := &Loop{
		app:     a,
		session: s,
		ops:     make(chan op),
		done:    make(chan feed.Completion),
	}
	l.idle = sync.NewCond(&l.mu)
	return l
}

// Run processes operations and completions until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-l.ops:
			task, err := o.fn(l.session)
			if task != nil {
				l.spawn(ctx, task)
			}
			o.reply <- err
		case c := <-l.done:
			if _, err := l.session.Apply(c); err != nil {
				l.app.log.Debug("fetch not applied", zap.Stringer("key", c.Key), zap.Error(err))
				if l.OnError != nil {
					l.OnError(c.Key, err)
				}
			}
			l.finish()
		}
	}
}

func (l *Loop) spawn(ctx context.Context, t feed.Task) {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()

	go func() {
		c := l.app.RunTask(ctx, t)
		select {
		case l.done <- c:
		case <-ctx.Done():
			l.finish()
		}
	}()
}

func (l *Loop) finish() {
	l.mu.Lock()
	l.pending--
	if l.pending == 0 {
		l.idle.Broadcast()
	}
	l.mu.Unlock()
}

// Do runs fn on the loop goroutine and returns its error. A task returned by
// fn is started before Do returns.
func (l *Loop) Do(ctx context.Context, fn func(*feed.Session) (feed.Task, error)) error {
	reply := make(chan error, 1)
	select {
	case l.ops <- op{fn: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View runs fn on the loop goroutine with no task.
func (l *Loop) View(ctx context.Context, fn func(*feed.Session) error) error {
	return l.Do(ctx, func(s *feed.Session) (feed.Task, error) {
		return nil, fn(s)
	})
}

func (l *Loop) Start(ctx context.Context) error {
	return l.Do(ctx, func(s *feed.Session) (feed.Task, error) {
		t, err := s.Start()
		return pageTask(t), err
	})
}

func (l *Loop) Advance(ctx context.Context) error {
	return l.Do(ctx, func(s *feed.Session) (feed.Task, error) {
		t, err := s.Advance()
		return pageTask(t), err
	})
}

func (l *Loop) Toggle(ctx context.Context, id feed.NodeID) error {
	return l.Do(ctx, func(s *feed.Session) (feed.Task, error) {
		t, err := s.Toggle(id)
		return childTask(t), err
	})
}

func (l *Loop) Retry(ctx context.Context, id feed.NodeID) error {
	return l.Do(ctx, func(s *feed.Session) (feed.Task, error) {
		t, err := s.Retry(id)
		return childTask(t), err
	})
}

// FlushInterests persists interests from the loop goroutine. It is the hook
// handed to App.Start in headless mode.
func (l *Loop) FlushInterests(ctx context.Context) error {
	return l.View(ctx, l.app.FlushInterests)
}

// WaitIdle blocks until no fetch is in flight.
func (l *Loop) WaitIdle() {
	l.mu.Lock()
	for l.pending > 0 {
		l.idle.Wait()
	}
	l.mu.Unlock()
}

// childTask and pageTask keep a nil fetch from becoming a non-nil Task.
func childTask(t *feed.ChildFetch) feed.Task {
	if t == nil {
		return nil
	}
	return t
}

func pageTask(t *feed.PageFetch) feed.Task {
	if t == nil {
		return nil
	}
	return t
}
