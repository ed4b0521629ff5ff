package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/editor"
	"github.com/gdshell/gdshell/internal/vpath"
)

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <file> <replacement-spec>",
		Short: "Apply a structured replacement spec to a remote file",
		Long: `Edit a remote file with a JSON replacement spec: insertions
[[line,null],"content"], range replacements [[start,end],"content"], and
text substitutions ["old","new"]. Line indices refer to the original file.
The modified file is re-uploaded through the mirror; --preview stops after
the diff.`,
		Args: cobra.ExactArgs(2),
		RunE: runEdit,
	}

	cmd.Flags().Bool("preview", false, "show the diff without uploading")
	cmd.Flags().Bool("backup", false, "upload a timestamped backup of the original")

	return cmd
}

// editJSONOutput is the JSON output schema for the edit command.
type editJSONOutput struct {
	Diff       string   `json:"diff"`
	BackupName string   `json:"backup_name,omitempty"`
	Findings   []string `json:"findings,omitempty"`
	Uploaded   []string `json:"uploaded,omitempty"`
	Failed     []string `json:"failed,omitempty"`
}

func runEdit(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	preview, err := cmd.Flags().GetBool("preview")
	if err != nil {
		return err
	}

	backup, err := cmd.Flags().GetBool("backup")
	if err != nil {
		return err
	}

	result, err := s.editPipeline().Edit(ctx, args[0], args[1],
		editor.Options{Preview: preview, Backup: backup}, s.cur())
	if err != nil {
		return err
	}

	// The edited file's cached content is stale the moment the upload
	// verifies.
	if !preview {
		if display, canonErr := vpath.Canonicalize(args[0], s.shell.CurrentPath); canonErr == nil {
			if invErr := s.dl.Invalidate(ctx, display); invErr != nil {
				s.logger.Warn("cache invalidation failed", slog.String("path", display))
			}
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(editJSONOutput{
			Diff:       result.Diff,
			BackupName: result.BackupName,
			Findings:   result.Findings,
			Uploaded:   result.Uploaded,
			Failed:     result.Failed,
		})
	}

	fmt.Print(result.Diff)

	if result.BackupName != "" {
		statusf("Backup uploaded as %s\n", result.BackupName)
	}

	for _, finding := range result.Findings {
		fmt.Fprintf(os.Stderr, "lint: %s\n", finding)
	}

	return nil
}
