package apiclient

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type result struct {
	body []byte
	err  error
}

// Pending is a call held until the current re-authentication attempt ends.
// It settles exactly once.
type Pending struct {
	ctx  context.Context
	req  Request
	once sync.Once
	done chan result
}

// NewPending wraps req. ctx bounds the eventual replay.
func NewPending(ctx context.Context, req Request) *Pending {
	return &Pending{ctx: ctx, req: req, done: make(chan result, 1)}
}

// settle delivers the outcome. Only the first call has any effect; it
// reports whether this call was the one that settled p.
func (p *Pending) settle(body []byte, err error) bool {
	settled := false
	p.once.Do(func() {
		p.done <- result{body: body, err: err}
		settled = true
	})
	return settled
}

// Wait blocks until p settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) ([]byte, error) {
	select {
	case r := <-p.done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// replayFunc sends req again with token.
type replayFunc func(ctx context.Context, req Request, token string) ([]byte, error)

// Queue holds calls parked during a re-authentication attempt.
type Queue struct {
	mu      sync.Mutex
	items   []*Pending
	replay  replayFunc
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

// NewQueue returns an empty queue. limiter paces replays and may be nil.
func NewQueue(replay replayFunc, limiter *rate.Limiter) *Queue {
	return &Queue{replay: replay, limiter: limiter}
}

// Enqueue appends p. The queue is unbounded.
func (q *Queue) Enqueue(p *Pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, p)
}

// Len returns the number of parked calls.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) take() []*Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// DrainSuccess empties the queue and replays every call with token, each in
// its own goroutine. A replay's outcome settles its own call. It returns the
// number of calls replayed.
func (q *Queue) DrainSuccess(token string) int {
	items := q.take()
	for _, p := range items {
		q.wg.Add(1)
		go func(p *Pending) {
			defer q.wg.Done()
			if q.limiter != nil {
				if err := q.limiter.Wait(p.ctx); err != nil {
					p.settle(nil, err)
					return
				}
			}
			req := p.req
			req.replayed = true
			body, err := q.replay(p.ctx, req, token)
			p.settle(body, err)
		}(p)
	}
	return len(items)
}

// DrainFailure empties the queue and rejects every call with err.
func (q *Queue) DrainFailure(err error) int {
	items := q.take()
	for _, p := range items {
		p.settle(nil, err)
	}
	return len(items)
}

// Wait blocks until every replay started by DrainSuccess has settled.
func (q *Queue) Wait() {
	q.wg.Wait()
}
