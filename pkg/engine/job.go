package engine

import (
	"context"
	"sync"
)

// Job is a scan running on its own goroutine.
type Job struct {
	progress chan Progress
	done     chan struct{}
	cancel   context.CancelFunc

	once    sync.Once
	summary *Summary
	err     error
}

// ScanInBackground starts Scan on a worker goroutine and, when it succeeds,
// publishes a fresh snapshot. Progress updates are delivered on a channel
// that keeps only the latest value, so a slow reader never stalls the scan.
func (e *Engine) ScanInBackground(ctx context.Context) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		progress: make(chan Progress, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	go func() {
		defer close(j.done)
		defer close(j.progress)
		defer cancel()

		j.summary, j.err = e.Scan(ctx, j.publish)
		if j.err == nil {
			_, j.err = e.Rebuild(ctx)
		}
	}()
	return j
}

func (j *Job) publish(p Progress) {
	for {
		select {
		case j.progress <- p:
			return
		default:
		}
		select {
		case <-j.progress:
		default:
		}
	}
}

// Progress delivers updates until the job ends, then closes.
func (j *Job) Progress() <-chan Progress { return j.progress }

// Done is closed when the job ends.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel asks the scan to stop after the commit in progress.
func (j *Job) Cancel() { j.once.Do(j.cancel) }

// Wait blocks until the job ends and returns the scan summary and error.
func (j *Job) Wait() (*Summary, error) {
	<-j.done
	return j.summary, j.err
}
