package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RunnerOptions bound the queue between a producer and its consumer
type RunnerOptions struct {
	QueueSize int
	// PutTimeout is how long one put attempt waits for queue space
	PutTimeout time.Duration
	// MaxRetries is the number of consecutive timed out puts after which
	// the producer gives up on its consumer
	MaxRetries int
}

// DefaultRunnerOptions wait a minute for a consumer in one second steps
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{QueueSize: 1000, PutTimeout: time.Second, MaxRetries: 60}
}

var errQueueFull = errors.New("queue full")

// Runner executes a producer in its own goroutine and hands its results to
// a consumer through a bounded queue. A producer that finds the queue full
// for MaxRetries put timeouts in a row cancels itself. Close is observed by
// the producer at its next put.
type Runner[T any] struct {
	ID   uuid.UUID
	opts RunnerOptions

	queue    chan T
	closed   chan struct{}
	finished chan struct{}
	cancel   context.CancelFunc

	// err is the producer failure, readable once queue is closed
	err error

	closeOnce sync.Once
}

// NewRunner returns a runner that has not started yet
func NewRunner[T any](opts RunnerOptions) *Runner[T] {
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.PutTimeout <= 0 {
		opts.PutTimeout = DefaultRunnerOptions().PutTimeout
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Runner[T]{
		ID:       uuid.New(),
		opts:     opts,
		queue:    make(chan T, opts.QueueSize),
		closed:   make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start runs produce in a new goroutine. produce passes every result to
// put and stops when put fails.
func (r *Runner[T]) Start(ctx context.Context, produce func(ctx context.Context, put func(T) error) error) {
	ctx, r.cancel = context.WithCancel(ctx)
	logger := log.WithField("runner", r.ID)
	logger.Debug("runner started")
	go func() {
		defer close(r.finished)
		defer close(r.queue)
		defer r.cancel()

		err := produce(ctx, func(v T) error { return r.put(ctx, v) })
		switch {
		case err == nil:
			logger.Debug("runner finished")
		case errors.Is(err, ErrRunnerClosed):
			logger.Debug("runner closed by consumer")
		case errors.Is(err, errQueueFull):
			logger.Warn("runner cancelled, nobody is reading its results")
			err = fmt.Errorf("runner %s abandoned after %d put attempts: %w", r.ID, r.opts.MaxRetries, err)
		default:
			logger.WithError(err).Debug("runner failed")
		}
		if !errors.Is(err, ErrRunnerClosed) {
			r.err = err
		}
	}()
}

// put queues one result, retrying while the queue stays full
func (r *Runner[T]) put(ctx context.Context, v T) error {
	// Close closes r.closed before cancelling ctx, so a closed runner
	// wins over the cancellation it causes
	stopped := func() error {
		select {
		case <-r.closed:
			return backoff.Permanent(ErrRunnerClosed)
		default:
		}
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	attempt := func() error {
		if err := stopped(); err != nil {
			return err
		}
		timer := time.NewTimer(r.opts.PutTimeout)
		defer timer.Stop()
		select {
		case r.queue <- v:
			return nil
		case <-r.closed:
			return backoff.Permanent(ErrRunnerClosed)
		case <-ctx.Done():
			return stopped()
		case <-timer.C:
			return errQueueFull
		}
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(0), uint64(r.opts.MaxRetries-1)), ctx)
	return backoff.Retry(attempt, b)
}

// Results yields queued results until the producer is done. Breaking out
// of the loop closes the runner.
func (r *Runner[T]) Results() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer r.Close()
		for v := range r.queue {
			if !yield(v, nil) {
				return
			}
		}
		if r.err != nil {
			var zero T
			yield(zero, r.err)
		}
	}
}

// Close stops the producer and waits for it to release its resources
func (r *Runner[T]) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		if r.cancel != nil {
			r.cancel()
		}
	})
	if r.cancel != nil {
		<-r.finished
	}
}

// Done is closed when the producer has returned
func (r *Runner[T]) Done() <-chan struct{} { return r.finished }
