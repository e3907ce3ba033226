package speech

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"echopath/internal/logger"
)

type Status int32

const (
	StatusWaiting Status = iota
	StatusSpeaking
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusSpeaking:
		return "speaking"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

type WorkerStats struct {
	Status string `json:"status"`
	Spoken int64  `json:"spoken"`
	Failed int64  `json:"failed"`
}

// Worker is the sole consumer of a Queue. It speaks one message at a time in
// enqueue order and exits after the terminal sentinel.
type Worker struct {
	queue   *Queue
	synth   Synthesizer
	timeout time.Duration
	logger  *logger.Logger

	status  atomic.Int32
	started atomic.Bool
	spoken  atomic.Int64
	failed  atomic.Int64
	done    chan struct{}
}

// NewWorker creates a worker. timeout bounds a single utterance; zero means
// no bound.
func NewWorker(queue *Queue, synth Synthesizer, timeout time.Duration, logger *logger.Logger) *Worker {
	return &Worker{
		queue:   queue,
		synth:   synth,
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling it twice has no effect.
func (w *Worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)

	w.logger.Info("[TTS] Worker started using %s, waiting for messages...", w.synth.Name())

	for {
		msg, ok := w.queue.Dequeue()
		if !ok {
			w.logger.Info("[TTS] Received termination signal. Exiting worker.")
			w.status.Store(int32(StatusTerminated))
			return
		}

		w.status.Store(int32(StatusSpeaking))
		w.logger.Info("[TTS] Speaking message: %q (queued %s)", msg.Text, time.Since(msg.EnqueuedAt).Round(time.Millisecond))

		if err := w.speak(msg.Text); err != nil {
			w.failed.Add(1)
			w.logger.Error("[TTS] Error speaking message %q: %v", msg.Text, err)
		} else {
			w.spoken.Add(1)
			w.logger.Info("[TTS] Finished speaking message.")
		}

		w.status.Store(int32(StatusWaiting))
	}
}

// speak runs one utterance, converting a synthesizer panic into an error.
func (w *Worker) speak(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synthesizer panic: %v\n%s", r, debug.Stack())
		}
	}()

	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.synth.Speak(ctx, text)
}

func (w *Worker) Status() Status {
	return Status(w.status.Load())
}

// Done is closed once the worker has terminated.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the worker has terminated or ctx ends.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Status: w.Status().String(),
		Spoken: w.spoken.Load(),
		Failed: w.failed.Load(),
	}
}
