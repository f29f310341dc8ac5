package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
)

// Handler processes one item. A returned error counts the item as failed.
type Handler func(ctx context.Context, item string) error

const subscriberBuffer = 64

type result struct {
	item string
	err  error
}

type job struct {
	mu     sync.Mutex
	op     Operation
	cancel context.CancelFunc
	subs   map[int]chan Progress
	nextID int
	done   chan struct{}
}

func (j *job) snapshot() Operation {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.op
}

// publish sends ev to every subscriber without blocking. A full subscriber
// loses its oldest event.
func (j *job) publish(ev Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, ch := range j.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Engine runs bulk operations. Each operation gets its own pool of workers.
type Engine struct {
	repo    Repository
	workers int
	logger  *common.Logger

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

type EngineOption func(*Engine)

func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithLogger(l *common.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(repo Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:    repo,
		workers: constants.DefaultBulkWorkers,
		logger:  common.GetLogger(),
		jobs:    make(map[string]*job),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("bulk")
	return e
}

// Submit persists a pending operation and starts processing items in the
// background. The operation outlives ctx; use Cancel to stop it.
func (e *Engine) Submit(ctx context.Context, opType string, items []string, h Handler) (Operation, error) {
	if len(items) == 0 {
		return Operation{}, ErrNoItems
	}
	if h == nil {
		return Operation{}, errors.New("bulk handler is nil")
	}

	ts := now()
	op := Operation{
		ID:        uuid.NewString(),
		Type:      opType,
		Status:    StatusPending,
		Total:     len(items),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := e.repo.Create(ctx, op); err != nil {
		return Operation{}, err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{op: op, cancel: cancel, subs: make(map[int]chan Progress), done: make(chan struct{})}

	e.mu.Lock()
	e.jobs[op.ID] = j
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(jobCtx, j, append([]string(nil), items...), h)
	}()

	e.logger.WithOperation(op.ID).Info("bulk operation submitted", "type", opType, "total", op.Total)
	return op, nil
}

func (e *Engine) run(ctx context.Context, j *job, items []string, h Handler) {
	defer j.cancel()
	logger := e.logger.WithOperation(j.op.ID)
	persistCtx := context.WithoutCancel(ctx)
	started := time.Now()

	j.mu.Lock()
	j.op.Status = StatusRunning
	j.op.UpdatedAt = now()
	op := j.op
	j.mu.Unlock()
	e.persist(persistCtx, op)
	j.publish(Progress{Operation: op, Percent: op.Percent()})

	workers := e.workers
	if workers > len(items) {
		workers = len(items)
	}
	itemsChan := make(chan string, workers*2)
	resultsChan := make(chan result, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker(ctx, itemsChan, resultsChan, h, &wg)
	}

	go func() {
		defer close(itemsChan)
		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	step := len(items) / 20
	if step < 1 {
		step = 1
	}
	for res := range resultsChan {
		j.mu.Lock()
		j.op.Processed++
		if res.err != nil {
			j.op.Failed++
			if j.op.Error == "" {
				j.op.Error = fmt.Sprintf("%s: %v", res.item, res.err)
			}
		} else {
			j.op.Succeeded++
		}
		j.op.UpdatedAt = now()
		op := j.op
		j.mu.Unlock()

		ev := Progress{Operation: op, Percent: op.Percent(), Item: res.item}
		if res.err != nil {
			ev.Error = res.err.Error()
		}
		j.publish(ev)
		if op.Processed%step == 0 {
			e.persist(persistCtx, op)
		}
	}

	j.mu.Lock()
	switch {
	case ctx.Err() != nil && j.op.Processed < j.op.Total:
		j.op.Status = StatusCancelled
	case j.op.Failed > 0 && j.op.Succeeded == 0:
		j.op.Status = StatusFailed
	default:
		j.op.Status = StatusCompleted
	}
	j.op.UpdatedAt = now()
	op = j.op
	j.mu.Unlock()

	e.persist(persistCtx, op)
	j.publish(Progress{Operation: op, Percent: op.Percent()})

	e.mu.Lock()
	delete(e.jobs, op.ID)
	e.mu.Unlock()

	j.mu.Lock()
	for id, ch := range j.subs {
		close(ch)
		delete(j.subs, id)
	}
	close(j.done)
	j.mu.Unlock()

	logger.Info("bulk operation finished",
		"status", op.Status,
		"succeeded", op.Succeeded,
		"failed", op.Failed,
		"duration", time.Since(started))
}

func worker(ctx context.Context, items <-chan string, results chan<- result, h Handler, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-items:
			if !ok || ctx.Err() != nil {
				return
			}
			results <- result{item: item, err: h(ctx, item)}
		}
	}
}

func (e *Engine) persist(ctx context.Context, op Operation) {
	if err := e.repo.Update(ctx, op); err != nil {
		e.logger.WithOperation(op.ID).Warn("failed to persist bulk operation", "status", op.Status, "error", err)
	}
}

func (e *Engine) active(id string) (*job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	return j, ok
}

// Get returns the live state of a running operation or the stored one.
func (e *Engine) Get(ctx context.Context, id string) (Operation, error) {
	if j, ok := e.active(id); ok {
		return j.snapshot(), nil
	}
	return e.repo.Get(ctx, id)
}

// List returns stored operations with running ones replaced by their live
// state, newest first.
func (e *Engine) List(ctx context.Context) ([]Operation, error) {
	ops, err := e.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]int, len(ops))
	for i, op := range ops {
		seen[op.ID] = i
	}

	e.mu.Lock()
	live := make([]*job, 0, len(e.jobs))
	for _, j := range e.jobs {
		live = append(live, j)
	}
	e.mu.Unlock()

	for _, j := range live {
		op := j.snapshot()
		if i, ok := seen[op.ID]; ok {
			ops[i] = op
		} else {
			ops = append(ops, op)
		}
	}
	sortNewestFirst(ops)
	return ops, nil
}

// Cancel stops a running operation. Items already handed to a worker finish.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	if j, ok := e.active(id); ok {
		j.cancel()
		return nil
	}
	if _, err := e.repo.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotRunning
}

// Subscribe streams progress of operation id. The channel is closed after
// the final event; for a finished operation it carries only that event.
// The returned func unsubscribes early.
func (e *Engine) Subscribe(ctx context.Context, id string) (<-chan Progress, func(), error) {
	if j, ok := e.active(id); ok {
		ch := make(chan Progress, subscriberBuffer)
		j.mu.Lock()
		select {
		case <-j.done:
			j.mu.Unlock()
		default:
			sid := j.nextID
			j.nextID++
			j.subs[sid] = ch
			ch <- Progress{Operation: j.op, Percent: j.op.Percent()}
			j.mu.Unlock()
			return ch, func() {
				j.mu.Lock()
				defer j.mu.Unlock()
				if c, ok := j.subs[sid]; ok {
					delete(j.subs, sid)
					close(c)
				}
			}, nil
		}
	}

	op, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan Progress, 1)
	ch <- Progress{Operation: op, Percent: op.Percent()}
	close(ch)
	return ch, func() {}, nil
}

// Wait blocks until operation id finishes or ctx is done.
func (e *Engine) Wait(ctx context.Context, id string) (Operation, error) {
	if j, ok := e.active(id); ok {
		select {
		case <-j.done:
			return j.snapshot(), nil
		case <-ctx.Done():
			return Operation{}, ctx.Err()
		}
	}
	return e.repo.Get(ctx, id)
}

// Shutdown cancels every running operation and waits for them to stop.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, j := range e.jobs {
		j.cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
