package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/venvstate"
)

func newVenvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venv",
		Short: "Manage remote virtual environments",
		Long: `Manage the per-shell virtual environment state. The state lives in a
single JSON document on the remote side; mutations run as remote scripts
and are verified by re-reading through the API.`,
		RunE: runVenv,
	}

	cmd.Flags().String("create", "", "create a named environment")
	cmd.Flags().String("delete", "", "delete a named environment")
	cmd.Flags().String("activate", "", "activate a named environment for this shell")
	cmd.Flags().Bool("deactivate", false, "deactivate this shell's environment")
	cmd.Flags().Bool("list", false, "list all environments")
	cmd.Flags().Bool("current", false, "show this shell's active environment")

	return cmd
}

// venvStore wires the state store over the session's components.
func (s *session) venvStore() *venvstate.Store {
	return venvstate.NewStore(s.gw, s.executor, s.cfg.Drive.RootFolderID, &s.cfg.Mirror, s.logger)
}

func runVenv(cmd *cobra.Command, _ []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	store := s.venvStore()

	if name, _ := cmd.Flags().GetString("create"); name != "" {
		if err := store.Create(ctx, name); err != nil {
			return err
		}

		statusf("Created environment %s\n", name)

		return nil
	}

	if name, _ := cmd.Flags().GetString("delete"); name != "" {
		if err := store.Delete(ctx, name); err != nil {
			return err
		}

		if s.shell.Venv.ActiveEnv == name {
			if err := s.registry.UpdateVenv(s.shell.ID, ""); err != nil {
				return err
			}
		}

		statusf("Deleted environment %s\n", name)

		return nil
	}

	if name, _ := cmd.Flags().GetString("activate"); name != "" {
		if err := store.Activate(ctx, s.shell.ID, name); err != nil {
			return err
		}

		if err := s.registry.UpdateVenv(s.shell.ID, name); err != nil {
			return err
		}

		statusf("Activated %s\n", name)

		return nil
	}

	if deactivate, _ := cmd.Flags().GetBool("deactivate"); deactivate {
		if err := store.Deactivate(ctx, s.shell.ID); err != nil {
			return err
		}

		if err := s.registry.UpdateVenv(s.shell.ID, ""); err != nil {
			return err
		}

		statusf("Deactivated\n")

		return nil
	}

	if list, _ := cmd.Flags().GetBool("list"); list {
		return printVenvList(ctx, store)
	}

	if current, _ := cmd.Flags().GetBool("current"); current {
		return printVenvCurrent(ctx, s, store)
	}

	return fmt.Errorf("venv needs one of --create, --delete, --activate, --deactivate, --list, --current")
}

func printVenvList(ctx context.Context, store *venvstate.Store) error {
	doc, err := store.Read(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(doc.Environments)
	}

	names := make([]string, 0, len(doc.Environments))
	for name := range doc.Environments {
		names = append(names, name)
	}

	sort.Strings(names)

	headers := []string{"NAME", "PACKAGES", "CREATED"}
	rows := make([][]string, 0, len(names))

	for _, name := range names {
		env := doc.Environments[name]
		rows = append(rows, []string{name, fmt.Sprintf("%d", len(env.Packages)), env.CreatedAt})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}

func printVenvCurrent(ctx context.Context, s *session, store *venvstate.Store) error {
	// Reads never open the remote dialog; a missing state file just means
	// nothing is active.
	state, err := store.Current(ctx, s.shell.ID)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(state)
	}

	if state.ActiveEnv == "" {
		fmt.Println("no environment active")
		return nil
	}

	fmt.Println(state.ActiveEnv)

	return nil
}
