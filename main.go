package main

import (
	"errors"
	"os"

	"github.com/gdshell/gdshell/internal/remote"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, remote.ErrCanceled) {
			os.Exit(130)
		}

		exitOnError(err)
	}
}
