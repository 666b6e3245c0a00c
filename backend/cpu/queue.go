package cpu

import (
	"sync"

	"github.com/gogpu/gpgpu"
)

// command is one recorded operation, executed on the queue goroutine.
type command func() error

type batch struct {
	index uint64
	cmds  []command
}

// queue executes submitted batches in order on its own goroutine and
// tracks completion by submission index.
type queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	submitted uint64
	completed uint64
	err       error

	// sendMu orders sends on work against close.
	sendMu  sync.RWMutex
	stopped bool
	work    chan batch
	done chan struct{}
}

func newQueue() *queue {
	q := &queue{
		work: make(chan batch, 16),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.done)
	for b := range q.work {
		var firstErr error
		for _, cmd := range b.cmds {
			if err := cmd(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil {
			gpgpu.Logger().Warn("cpu: batch failed", "index", b.index, "err", firstErr)
		}

		q.mu.Lock()
		q.completed = b.index
		if q.err == nil {
			q.err = firstErr
		}
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// submit queues cmds and returns the batch index. It does not wait. It
// fails with ErrClosed once the queue is closed.
func (q *queue) submit(cmds []command) (uint64, error) {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.stopped {
		return 0, ErrClosed
	}

	q.mu.Lock()
	q.submitted++
	idx := q.submitted
	q.mu.Unlock()

	q.work <- batch{index: idx, cmds: cmds}
	return idx, nil
}

// lastSubmitted returns the index of the most recent batch.
func (q *queue) lastSubmitted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// wait blocks until batch idx has completed and returns, then clears, the
// first execution error seen since the previous wait.
func (q *queue) wait(idx uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.completed < idx {
		q.cond.Wait()
	}
	err := q.err
	q.err = nil
	return err
}

// waitIdle blocks until every submitted batch has completed.
func (q *queue) waitIdle() error {
	return q.wait(q.lastSubmitted())
}

// close drains the queue and stops the goroutine.
func (q *queue) close() {
	q.sendMu.Lock()
	if q.stopped {
		q.sendMu.Unlock()
		return
	}
	q.stopped = true
	close(q.work)
	q.sendMu.Unlock()
	<-q.done
}
