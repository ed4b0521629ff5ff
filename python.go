package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/remote"
)

func newPythonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "python [-c code | file [args...]]",
		Short: "Run python on the remote host",
		Long: `Run python remotely, either inline with -c or as a remote script file.
Inline programs travel base64-encoded so arbitrary quoting survives the
shell round trip. An active virtual environment is put on PYTHONPATH.`,
		Args: cobra.ArbitraryArgs,
		RunE: runPython,
	}

	cmd.Flags().StringP("code", "c", "", "inline program to run")

	return cmd
}

func runPython(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	code, err := cmd.Flags().GetString("code")
	if err != nil {
		return err
	}

	if code == "" && len(args) == 0 {
		return fmt.Errorf("python needs -c <code> or a script file")
	}

	prefix, err := s.pythonEnvPrefix(ctx)
	if err != nil {
		return err
	}

	var body string

	if code != "" {
		// Base64 survives every quoting hazard the program text could
		// carry through the generated bash.
		encoded := base64.StdEncoding.EncodeToString([]byte(code))
		body = fmt.Sprintf(`%spython3 -c "$(echo %s | base64 -d)"`, prefix, encoded)
	} else {
		res, resolveErr := s.resolveFile(ctx, args[0])
		if resolveErr != nil {
			return resolveErr
		}

		argv := []string{s.resolver.RemotePath(res.Display)}
		argv = append(argv, args[1:]...)

		body = prefix + remote.BuildCommandLine("python3", argv)
	}

	result, err := s.executor.Run(ctx, s.newEnvelope("bash", []string{"-c", body}))
	if err != nil {
		return err
	}

	return emitRemoteResult(result)
}

// pythonEnvPrefix returns the environment assignment placing the active
// venv on PYTHONPATH, or "" when no environment is active.
func (s *session) pythonEnvPrefix(ctx context.Context) (string, error) {
	if s.shell.Venv.ActiveEnv == "" {
		return "", nil
	}

	state, err := s.venvStore().Current(ctx, s.shell.ID)
	if err != nil {
		return "", err
	}

	if state.EnvPath == "" {
		return "", nil
	}

	return fmt.Sprintf("PYTHONPATH=%s ", remote.Quote(state.EnvPath)), nil
}

// emitRemoteResult relays a captured result to the local streams and
// converts a non-zero exit into an error.
func emitRemoteResult(result *remote.Result) error {
	fmt.Print(result.Stdout)

	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)

		if !strings.HasSuffix(result.Stderr, "\n") {
			fmt.Fprintln(os.Stderr)
		}
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("remote command exited %d", result.ExitCode)
	}

	return nil
}
