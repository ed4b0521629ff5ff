// Package syncwait blocks until staged files become observable on the
// drive side of the mirror. The waiter is a pure observer: it never
// mutates anything, and callers decide whether to retry or abort on
// timeout.
package syncwait

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrTimeout is returned when staged files did not propagate within the
// time budget. The report carries the names not observed.
var ErrTimeout = errors.New("syncwait: timed out waiting for sync")

// Size-based budget scaling: one extra second per this many bytes on top
// of the per-file baseline, bounded by maxWait.
const (
	scaleBytesPerSecond = 10 << 20 // assume ~10 MiB/s agent throughput
	maxWait             = 10 * time.Minute
	defaultInterval     = time.Second
)

// Observer answers whether a name has become visible on the drive side,
// either in the local landing directory or in the cloud listing.
type Observer interface {
	Observed(ctx context.Context, name string) (bool, error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, name string) (bool, error)

// Observed implements Observer.
func (f ObserverFunc) Observed(ctx context.Context, name string) (bool, error) {
	return f(ctx, name)
}

// Report is the outcome of one wait.
type Report struct {
	Success bool
	Elapsed time.Duration
	Missing []string
}

// Waiter polls an Observer for the appearance of staged names.
type Waiter struct {
	obs     Observer
	perFile time.Duration
	logger  *slog.Logger

	// Interval between polls. Tests shorten it.
	Interval time.Duration
	// Hints optionally delivers names observed out-of-band (the mirror
	// watcher); a hinted name skips its next poll.
	Hints <-chan string

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// New creates a Waiter. perFile is the baseline budget per staged file.
func New(obs Observer, perFile time.Duration, logger *slog.Logger) *Waiter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Waiter{
		obs:      obs,
		perFile:  perFile,
		logger:   logger,
		Interval: defaultInterval,
		nowFunc:  time.Now,
	}
}

// Budget computes the total wait budget for a batch: the per-file
// baseline scaled up by total staged size, bounded by maxWait.
func (w *Waiter) Budget(names int, totalSize int64) time.Duration {
	budget := w.perFile * time.Duration(max(names, 1))
	budget += time.Duration(totalSize/scaleBytesPerSecond) * time.Second

	if budget > maxWait {
		budget = maxWait
	}

	return budget
}

// Wait polls until every name is observed or the budget expires. On
// timeout it returns ErrTimeout along with a report listing the missing
// names; the caller surfaces them and decides what to do.
func (w *Waiter) Wait(ctx context.Context, names []string, totalSize int64) (*Report, error) {
	start := w.nowFunc()
	budget := w.Budget(len(names), totalSize)

	pending := make(map[string]bool, len(names))
	for _, n := range names {
		pending[n] = true
	}

	w.logger.Info("waiting for sync",
		slog.Int("files", len(names)),
		slog.Duration("budget", budget),
	)

	waitCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	err := retry.Do(waitCtx, retry.NewConstant(w.Interval), func(ctx context.Context) error {
		w.drainHints(pending)

		for name := range pending {
			ok, obsErr := w.obs.Observed(ctx, name)
			if obsErr != nil {
				// Observation errors are transient by assumption; keep
				// polling until the budget runs out.
				w.logger.Warn("sync observation failed",
					slog.String("name", name),
					slog.String("error", obsErr.Error()),
				)

				continue
			}

			if ok {
				delete(pending, name)
				w.logger.Debug("observed synced file", slog.String("name", name))
			}
		}

		if len(pending) > 0 {
			return retry.RetryableError(ErrTimeout)
		}

		return nil
	})

	elapsed := w.nowFunc().Sub(start)

	if err != nil {
		missing := make([]string, 0, len(pending))
		for name := range pending {
			missing = append(missing, name)
		}

		w.logger.Warn("sync wait failed",
			slog.Duration("elapsed", elapsed),
			slog.Any("missing", missing),
		)

		// Context cancellation surfaces as-is so SIGINT is distinguishable
		// from a genuine propagation timeout.
		if ctx.Err() != nil {
			return &Report{Elapsed: elapsed, Missing: missing}, ctx.Err()
		}

		return &Report{Elapsed: elapsed, Missing: missing}, ErrTimeout
	}

	w.logger.Info("sync complete", slog.Duration("elapsed", elapsed))

	return &Report{Success: true, Elapsed: elapsed}, nil
}

// drainHints consumes any buffered watcher hints, clearing matching
// pending names without an explicit poll.
func (w *Waiter) drainHints(pending map[string]bool) {
	if w.Hints == nil {
		return
	}

	for {
		select {
		case name, ok := <-w.Hints:
			if !ok {
				w.Hints = nil
				return
			}

			if pending[name] {
				delete(pending, name)
			}
		default:
			return
		}
	}
}
