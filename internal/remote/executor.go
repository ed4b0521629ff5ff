package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrResultTimeout is returned when the sentinel result file never
// appeared within the poll budget.
var ErrResultTimeout = errors.New("remote: timed out waiting for result file")

// errResultPending drives the retry loop while the sentinel is absent.
var errResultPending = errors.New("remote: result file not yet observed")

// SentinelStore fetches and deletes sentinel result files. The CLI layer
// implements it over the mirror's REMOTE_ROOT/tmp directory with a cloud
// listing fallback, so the executor tolerates either propagation path.
type SentinelStore interface {
	// Fetch returns the sentinel content if present. ok is false while the
	// file has not propagated yet.
	Fetch(ctx context.Context, filename string) (data []byte, ok bool, err error)
	// Remove deletes the sentinel after a successful read.
	Remove(ctx context.Context, filename string) error
}

// Executor wraps user commands in result-capturing envelopes, presents
// them for out-of-band execution, and collects the results.
type Executor struct {
	presenter Presenter
	store     SentinelStore
	budget    time.Duration
	logger    *slog.Logger

	// Interval between sentinel polls. Tests shorten it.
	Interval time.Duration
}

// NewExecutor creates an executor. budget bounds the sentinel poll.
func NewExecutor(presenter Presenter, store SentinelStore, budget time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		presenter: presenter,
		store:     store,
		budget:    budget,
		logger:    logger,
		Interval:  time.Second,
	}
}

// Run presents the envelope's script and returns the captured result.
// A syntax failure aborts before the dialog opens; a user cancel returns
// ErrCanceled; a missing sentinel after the poll budget returns
// ErrResultTimeout.
func (e *Executor) Run(ctx context.Context, env *Envelope) (*Result, error) {
	script := env.BuildScript()

	if err := CheckSyntax(ctx, script); err != nil {
		return nil, err
	}

	outcome, feedback, err := e.presenter.Present(ctx, script)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case OutcomeExecuted:
		return e.awaitResult(ctx, env.ResultFilename())
	case OutcomeFeedback:
		e.logger.Info("using direct feedback", slog.String("cmd", env.Cmd))
		return ResultFromFeedback(feedback), nil
	default:
		return nil, ErrCanceled
	}
}

// awaitResult polls for the sentinel file, parses it tolerantly, and
// deletes it after a successful read.
func (e *Executor) awaitResult(ctx context.Context, filename string) (*Result, error) {
	e.logger.Info("waiting for result file",
		slog.String("filename", filename),
		slog.Duration("budget", e.budget),
	)

	pollCtx, cancel := context.WithTimeout(ctx, e.budget)
	defer cancel()

	var data []byte

	err := retry.Do(pollCtx, retry.NewConstant(e.Interval), func(ctx context.Context) error {
		d, ok, fetchErr := e.store.Fetch(ctx, filename)
		if fetchErr != nil {
			e.logger.Warn("sentinel fetch failed", slog.String("error", fetchErr.Error()))
			return retry.RetryableError(fetchErr)
		}

		if !ok {
			return retry.RetryableError(errResultPending)
		}

		data = d

		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remote: canceled while waiting for result: %w", ctx.Err())
		}

		return nil, fmt.Errorf("%w: %s", ErrResultTimeout, filename)
	}

	result, err := ParseResult(data)
	if err != nil {
		return nil, err
	}

	// Best effort: the result file is transient by contract.
	if err := e.store.Remove(ctx, filename); err != nil {
		e.logger.Warn("failed to remove result file",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	}

	e.logger.Debug("result collected",
		slog.String("filename", filename),
		slog.Int("exit_code", result.ExitCode),
	)

	return result, nil
}
