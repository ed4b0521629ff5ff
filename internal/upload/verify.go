package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// verifyAttempts bounds the per-file listing retries.
const verifyAttempts = 60

// errNotListed drives the per-file retry loop while the name is absent.
var errNotListed = errors.New("upload: name not yet listed")

// Verification is the outcome of checking expected names against the
// target listing.
type Verification struct {
	Found         []string `json:"found"`
	Missing       []string `json:"missing"`
	TotalFound    int      `json:"total_found"`
	TotalExpected int      `json:"total_expected"`
	SearchPath    string   `json:"search_path"`
}

// Verifier confirms placement by listing the target directory. It is
// authoritative over the move script's exit status: a script can succeed
// while propagation still races the listing.
type Verifier struct {
	lister   Lister
	progress io.Writer
	logger   *slog.Logger

	// Interval between listing attempts. Tests shorten it.
	Interval time.Duration
}

// NewVerifier creates a verifier. progress receives the tick stream.
func NewVerifier(lister Lister, progress io.Writer, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}

	if progress == nil {
		progress = io.Discard
	}

	return &Verifier{
		lister:   lister,
		progress: progress,
		logger:   logger,
		Interval: time.Second,
	}
}

// Verify checks each expected name against the folder listing, retrying
// per file until found or the attempt budget runs out. Ticks: √ found,
// . miss-and-retry, ✗ final miss.
func (v *Verifier) Verify(ctx context.Context, folderID, searchPath string, names []string) *Verification {
	result := &Verification{
		SearchPath:    searchPath,
		TotalExpected: len(names),
	}

	if len(names) == 0 {
		return result
	}

	fmt.Fprintf(v.progress, "⏳ Validating %s ...\n", strings.Join(names, ", "))

	for _, name := range names {
		if v.awaitName(ctx, folderID, name) {
			result.Found = append(result.Found, name)
		} else {
			result.Missing = append(result.Missing, name)
		}
	}

	fmt.Fprintln(v.progress)

	result.TotalFound = len(result.Found)

	v.logger.Info("verification finished",
		slog.String("search_path", searchPath),
		slog.Int("found", result.TotalFound),
		slog.Int("expected", result.TotalExpected),
	)

	return result
}

// awaitName polls the listing for one name within the attempt budget.
func (v *Verifier) awaitName(ctx context.Context, folderID, name string) bool {
	backoff := retry.WithMaxRetries(verifyAttempts-1, retry.NewConstant(v.Interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		entries, listErr := v.lister.List(ctx, folderID)
		if listErr != nil {
			fmt.Fprint(v.progress, ".")
			return retry.RetryableError(listErr)
		}

		for i := range entries {
			if entries[i].Name == name {
				fmt.Fprint(v.progress, "√")
				return nil
			}
		}

		fmt.Fprint(v.progress, ".")

		return retry.RetryableError(errNotListed)
	})
	if err != nil {
		fmt.Fprint(v.progress, "✗")
		return false
	}

	return true
}
