package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Outcome is the user's choice after being shown a generated script.
type Outcome int

// Presenter outcomes.
const (
	// OutcomeExecuted means the user ran the script; poll for the sentinel.
	OutcomeExecuted Outcome = iota
	// OutcomeFeedback means the user pasted the output back directly.
	OutcomeFeedback
	// OutcomeCancel means the user aborted.
	OutcomeCancel
)

// ErrCanceled is the structured cancel result for interactive aborts.
var ErrCanceled = errors.New("remote: canceled by user")

// Presenter shows a generated script to the user and reports how the
// execution was concluded. Feedback text accompanies OutcomeFeedback.
type Presenter interface {
	Present(ctx context.Context, script string) (Outcome, string, error)
}

// feedbackTerminator ends direct-feedback paste mode.
const feedbackTerminator = "."

// TTYPresenter prompts on an interactive terminal with the three-way
// choice: executed, direct feedback, or cancel.
type TTYPresenter struct {
	in  io.Reader
	out io.Writer
}

// NewTTYPresenter creates a presenter over the given streams.
func NewTTYPresenter(in io.Reader, out io.Writer) *TTYPresenter {
	return &TTYPresenter{in: in, out: out}
}

// Present implements Presenter.
func (p *TTYPresenter) Present(ctx context.Context, script string) (Outcome, string, error) {
	fmt.Fprintln(p.out, "Run the following on the remote host:")
	fmt.Fprintln(p.out, "----------------------------------------")
	fmt.Fprint(p.out, script)
	fmt.Fprintln(p.out, "----------------------------------------")
	fmt.Fprintln(p.out, "[1] I ran it — wait for the result file")
	fmt.Fprintln(p.out, "[2] Paste the output directly")
	fmt.Fprintln(p.out, "[3] Cancel")

	scanner := bufio.NewScanner(p.in)

	for {
		if ctx.Err() != nil {
			return OutcomeCancel, "", ErrCanceled
		}

		fmt.Fprint(p.out, "> ")

		if !scanner.Scan() {
			// EOF or interrupt while prompting resolves to a structured
			// cancel; partial side files are the remote user's cleanup.
			return OutcomeCancel, "", ErrCanceled
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			return OutcomeExecuted, "", nil
		case "2":
			return p.readFeedback(scanner)
		case "3":
			return OutcomeCancel, "", ErrCanceled
		default:
			fmt.Fprintln(p.out, "enter 1, 2, or 3")
		}
	}
}

// readFeedback collects pasted output until a lone "." line or EOF.
func (p *TTYPresenter) readFeedback(scanner *bufio.Scanner) (Outcome, string, error) {
	fmt.Fprintf(p.out, "Paste the output, end with a lone %q line:\n", feedbackTerminator)

	var lines []string

	for scanner.Scan() {
		line := scanner.Text()
		if line == feedbackTerminator {
			break
		}

		lines = append(lines, line)
	}

	return OutcomeFeedback, strings.Join(lines, "\n"), nil
}

// StreamPresenter writes the script to a stream and reports it as
// executed. Used when stdout is not a terminal: the surrounding
// automation is expected to run the script and let the sentinel poll
// conclude the invocation.
type StreamPresenter struct {
	out io.Writer
}

// NewStreamPresenter creates a non-interactive presenter.
func NewStreamPresenter(out io.Writer) *StreamPresenter {
	return &StreamPresenter{out: out}
}

// Present implements Presenter.
func (p *StreamPresenter) Present(_ context.Context, script string) (Outcome, string, error) {
	fmt.Fprint(p.out, script)
	return OutcomeExecuted, "", nil
}

// DefaultPresenter picks the TTY presenter on interactive terminals and
// the stream presenter otherwise.
func DefaultPresenter() Presenter {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewTTYPresenter(os.Stdin, os.Stderr)
	}

	return NewStreamPresenter(os.Stdout)
}
