package remote

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrSyntax is returned when a generated script fails the bash syntax
// pre-check. The invocation aborts before any dialog opens.
var ErrSyntax = errors.New("remote: generated script failed syntax check")

// CheckSyntax validates a script with `bash -n`: the script is parsed but
// never executed. A missing bash binary disables the check rather than
// blocking the invocation.
func CheckSyntax(ctx context.Context, script string) error {
	bashPath, err := exec.LookPath("bash")
	if err != nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, bashPath, "-n")
	cmd.Stdin = strings.NewReader(script)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSyntax, strings.TrimSpace(string(out)))
	}

	return nil
}
