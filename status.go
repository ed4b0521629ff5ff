package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/config"
	"github.com/gdshell/gdshell/internal/gateway"
	"github.com/gdshell/gdshell/internal/shellreg"
)

// Token state constants for status reporting.
const (
	tokenStateMissing = "missing"
	tokenStateExpired = "expired"
	tokenStateValid   = "valid"
)

// API state constants for the reachability probe.
const (
	apiStateReachable   = "reachable"
	apiStateUnreachable = "unreachable"
	apiStateUnknown     = "unknown"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show token, mirror, and shell status",
		Long: `Display the health of the local setup: saved token validity, provider
API reachability, the mirror folder's reserved subtrees, and the shell
registry. No remote command dispatch is involved.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusMirror reports which reserved mirror subtrees exist locally.
type statusMirror struct {
	Base       string `json:"base"`
	Staging    bool   `json:"staging"`
	Landing    bool   `json:"landing"`
	RemoteRoot bool   `json:"remote_root"`
	Env        bool   `json:"env"`
}

// statusJSONOutput is the JSON output schema for the status command.
type statusJSONOutput struct {
	Token       string       `json:"token"`
	API         string       `json:"api"`
	Mirror      statusMirror `json:"mirror"`
	Shells      int          `json:"shells"`
	ActiveShell string       `json:"active_shell,omitempty"`
	ActivePath  string       `json:"active_path,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	cfg := resolvedCfg
	dataDir := config.DefaultDataDir()

	out := statusJSONOutput{
		Token: tokenStateValid,
		API:   apiStateUnknown,
		Mirror: statusMirror{
			Base:       cfg.Mirror.Base,
			Staging:    dirExists(cfg.Mirror.StagingPath()),
			Landing:    dirExists(cfg.Mirror.LandingPath()),
			RemoteRoot: dirExists(cfg.Mirror.RemoteRootPath()),
			Env:        dirExists(cfg.Mirror.EnvPath()),
		},
	}

	token, err := gateway.TokenSourceFromPath(ctx, config.TokenPath(dataDir), logger)
	if err != nil {
		if errors.Is(err, gateway.ErrNotLoggedIn) {
			out.Token = tokenStateMissing
		} else {
			out.Token = tokenStateExpired
		}
	}

	// Only a valid token makes the reachability probe meaningful.
	if out.Token == tokenStateValid {
		gw := gateway.NewClient(cfg.Drive.APIBase, defaultHTTPClient(), token, logger)

		out.API = apiStateUnreachable
		if gw.NetworkLive(ctx) {
			out.API = apiStateReachable
		}
	}

	registry := shellreg.New(config.ShellsPath(dataDir), logger)

	shells, activeID, err := registry.List()
	if err != nil {
		return err
	}

	out.Shells = len(shells)

	for _, sh := range shells {
		if sh.ID == activeID {
			out.ActiveShell = sh.DisplayName
			out.ActivePath = sh.CurrentPath
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	printStatusText(&out)

	return nil
}

func printStatusText(out *statusJSONOutput) {
	fmt.Printf("Token:  %s\n", out.Token)
	fmt.Printf("API:    %s\n", out.API)
	fmt.Printf("Mirror: %s (staging %s, landing %s, remote root %s, env %s)\n",
		out.Mirror.Base,
		presence(out.Mirror.Staging), presence(out.Mirror.Landing),
		presence(out.Mirror.RemoteRoot), presence(out.Mirror.Env))

	if out.ActiveShell != "" {
		fmt.Printf("Shells: %d (active: %s at %s)\n", out.Shells, out.ActiveShell, out.ActivePath)
		return
	}

	fmt.Printf("Shells: %d\n", out.Shells)
}

// presence renders a directory check for the text view.
func presence(ok bool) string {
	if ok {
		return "ok"
	}

	return "missing"
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
