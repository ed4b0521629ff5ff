package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Manage persistent shell sessions",
		Long: `Manage the named shell sessions. Each shell carries its own current
directory and virtual environment; commands always run against the active
shell.`,
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new shell at the virtual root",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShellCreate,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List shells",
		Args:  cobra.NoArgs,
		RunE:  runShellList,
	}

	checkout := &cobra.Command{
		Use:   "checkout <id>",
		Short: "Switch the active shell (unique id prefix accepted)",
		Args:  cobra.ExactArgs(1),
		RunE:  runShellCheckout,
	}

	terminate := &cobra.Command{
		Use:   "terminate <id>",
		Short: "Remove a shell",
		Args:  cobra.ExactArgs(1),
		RunE:  runShellTerminate,
	}

	cmd.AddCommand(create, list, checkout, terminate)

	return cmd
}

func runShellCreate(_ *cobra.Command, args []string) error {
	registry, _ := newRegistry()

	name := defaultShellName
	if len(args) > 0 {
		name = args[0]
	}

	shell, err := registry.Create(name, resolvedCfg.Drive.RootFolderID)
	if err != nil {
		return err
	}

	statusf("Created shell %s (%s)\n", shell.ID, shell.DisplayName)

	return nil
}

// shellJSONItem is the JSON output schema for one shell in shell list.
type shellJSONItem struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CurrentPath string `json:"current_path"`
	ActiveEnv   string `json:"active_env,omitempty"`
	Active      bool   `json:"active"`
}

func runShellList(_ *cobra.Command, _ []string) error {
	registry, _ := newRegistry()

	shells, activeID, err := registry.List()
	if err != nil {
		return err
	}

	sort.Slice(shells, func(i, j int) bool {
		return shells[i].CreatedAt.Before(shells[j].CreatedAt)
	})

	if flagJSON {
		out := make([]shellJSONItem, 0, len(shells))
		for _, sh := range shells {
			out = append(out, shellJSONItem{
				ID:          sh.ID,
				DisplayName: sh.DisplayName,
				CurrentPath: sh.CurrentPath,
				ActiveEnv:   sh.Venv.ActiveEnv,
				Active:      sh.ID == activeID,
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	headers := []string{"", "ID", "NAME", "PATH", "VENV", "LAST USED"}
	rows := make([][]string, 0, len(shells))

	for _, sh := range shells {
		marker := " "
		if sh.ID == activeID {
			marker = "*"
		}

		venv := sh.Venv.ActiveEnv
		if venv == "" {
			venv = "-"
		}

		rows = append(rows, []string{marker, sh.ID, sh.DisplayName, sh.CurrentPath, venv, formatTime(sh.LastAccessedAt)})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}

func runShellCheckout(_ *cobra.Command, args []string) error {
	registry, _ := newRegistry()

	shell, err := registry.Checkout(args[0])
	if err != nil {
		return err
	}

	statusf("Switched to shell %s (%s) at %s\n", shell.ID, shell.DisplayName, shell.CurrentPath)

	return nil
}

func runShellTerminate(_ *cobra.Command, args []string) error {
	registry, _ := newRegistry()

	if err := registry.Terminate(args[0]); err != nil {
		return err
	}

	statusf("Terminated shell %s\n", args[0])

	return nil
}
