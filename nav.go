package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/listing"
	"github.com/gdshell/gdshell/internal/shellreg"
)

func newPwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pwd",
		Short: "Print the current virtual directory",
		Args:  cobra.NoArgs,
		RunE:  runPwd,
	}
}

func newCdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cd <path>",
		Short: "Change the current virtual directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runCd,
	}
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List files and folders",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}

	cmd.Flags().BoolP("recursive", "R", false, "list subfolders recursively")
	cmd.Flags().Bool("detailed", false, "show sizes, timestamps, and web URLs")

	return cmd
}

// pwdJSONOutput is the JSON output schema for the pwd command.
type pwdJSONOutput struct {
	Path     string `json:"path"`
	FolderID string `json:"folder_id"`
	ShellID  string `json:"shell_id"`
}

func runPwd(_ *cobra.Command, _ []string) error {
	registry, _ := newRegistry()

	shell, err := registry.Active()
	if err != nil {
		if !errors.Is(err, shellreg.ErrNoActiveShell) {
			return err
		}

		// First use: the default shell starts at the virtual root.
		shell, err = registry.Create(defaultShellName, resolvedCfg.Drive.RootFolderID)
		if err != nil {
			return err
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(pwdJSONOutput{
			Path:     shell.CurrentPath,
			FolderID: shell.CurrentFolder,
			ShellID:  shell.ID,
		})
	}

	fmt.Println(shell.CurrentPath)

	return nil
}

func runCd(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.resolver.Resolve(ctx, args[0], s.cur())
	if err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}

	if res.IsFile {
		return fmt.Errorf("%s is not a directory", res.Display)
	}

	// The path and folder ID commit together; a failed write leaves the
	// shell where it was.
	if err := s.registry.UpdateLocation(s.shell.ID, res.Display, res.FolderID); err != nil {
		return err
	}

	statusf("%s\n", res.Display)

	return nil
}

func runLs(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	input := ""
	if len(args) > 0 {
		input = args[0]
	}

	recursive, err := cmd.Flags().GetBool("recursive")
	if err != nil {
		return err
	}

	detailed, err := cmd.Flags().GetBool("detailed")
	if err != nil {
		return err
	}

	res, err := s.resolver.Resolve(ctx, input, s.cur())
	if err != nil {
		return fmt.Errorf("resolving %q: %w", input, err)
	}

	// A trailing file lists as its single entry.
	if res.IsFile {
		entries, listErr := s.lister.List(ctx, res.FolderID)
		if listErr != nil {
			return listErr
		}

		for i := range entries {
			if entries[i].Name == res.File.Name {
				return printEntries([]listing.Entry{entries[i]}, detailed)
			}
		}

		return fmt.Errorf("listing %s: entry vanished", res.Display)
	}

	if recursive {
		tree, walkErr := s.lister.ListRecursive(ctx, res.FolderID, res.Display, s.cfg.Listing.MaxDepth)
		if walkErr != nil {
			return walkErr
		}

		return printTree(tree, detailed)
	}

	entries, err := s.lister.List(ctx, res.FolderID)
	if err != nil {
		return err
	}

	return printEntries(entries, detailed)
}

func printEntries(entries []listing.Entry, detailed bool) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(entries)
	}

	if !detailed {
		for i := range entries {
			name := entries[i].Name
			if entries[i].IsFolder() {
				name += "/"
			}

			fmt.Println(name)
		}

		return nil
	}

	headers := []string{"NAME", "KIND", "SIZE", "MODIFIED", "URL"}
	rows := make([][]string, 0, len(entries))

	for i := range entries {
		e := &entries[i]

		size := "-"
		if !e.IsFolder() {
			size = formatSize(e.Size)
		}

		rows = append(rows, []string{e.Name, string(e.Kind), size, formatTime(e.ModifiedTime), e.WebURL})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}

func printTree(tree *listing.Tree, detailed bool) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(tree)
	}

	if detailed {
		return printTreeDetailed(tree, "")
	}

	for _, name := range tree.Flatten() {
		fmt.Println(name)
	}

	return nil
}

// printTreeDetailed renders one folder per section, ls -R style.
func printTreeDetailed(tree *listing.Tree, prefix string) error {
	path := prefix + tree.Name

	fmt.Printf("%s:\n", path)

	if err := printEntries(tree.Files, true); err != nil {
		return err
	}

	for _, sub := range tree.Folders {
		fmt.Println()

		if err := printTreeDetailed(sub, path+"/"); err != nil {
			return err
		}
	}

	return nil
}
