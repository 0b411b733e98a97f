package queue

import (
	"context"
	"errors"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity. The
// caller releases its reservation.
var ErrQueueFull = errors.New("queue full")

// Queue is the bounded FIFO between detection and submission. Producer is
// the detection tick, consumer is the single submission task; they share
// nothing else but the ledger.
type Queue struct {
	ch chan *types.SubmissionJob
}

func New(capacity int) *Queue {
	return &Queue{ch: make(chan *types.SubmissionJob, capacity)}
}

// TryEnqueue is non-blocking and fails fast when full.
func (q *Queue) TryEnqueue(job *types.SubmissionJob) error {
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks for the next job or context end.
func (q *Queue) Dequeue(ctx context.Context) (*types.SubmissionJob, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case job := <-q.ch:
		return job, true
	}
}

// Drain empties the queue without blocking, handing each dropped job to fn
// so its reservation can be released. Used on kill-switch trips and
// shutdown.
func (q *Queue) Drain(fn func(job *types.SubmissionJob)) int {
	n := 0
	for {
		select {
		case job := <-q.ch:
			fn(job)
			n++
		default:
			return n
		}
	}
}

// Len is the current depth.
func (q *Queue) Len() int {
	return len(q.ch)
}
