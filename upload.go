package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/upload"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <src>... [target]",
		Short: "Upload local files through the mirror",
		Long: `Upload local files by staging them into the vendor-synced folder,
waiting for propagation, and moving them into place with a remote script.
Placement is verified by listing the target; files over 1 GiB are relayed
manually with printed instructions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().Bool("force", false, "overwrite existing target names")
	cmd.Flags().Bool("remove-local", false, "remove local sources after a verified upload")

	return cmd
}

func newUploadFolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload-folder <folder> [target]",
		Short: "Upload a folder as a zip archive and extract it remotely",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runUploadFolder,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing folder of the same name")
	cmd.Flags().Bool("keep-zip", false, "leave the transport archive in the target")

	return cmd
}

// uploadJSONOutput is the JSON output schema shared by both upload forms.
type uploadJSONOutput struct {
	Uploaded []string `json:"uploaded"`
	Failed   []string `json:"failed,omitempty"`
	Target   string   `json:"target"`
}

func runUpload(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	removeLocal, err := cmd.Flags().GetBool("remove-local")
	if err != nil {
		return err
	}

	sources, target := splitSourcesTarget(args)

	// Warn-only: the mirror relay still works offline, sync confirmation
	// just stalls until connectivity returns.
	if !s.gw.NetworkLive(ctx) {
		statusf("Warning: provider API unreachable, sync confirmation may stall\n")
	}

	result, err := s.uploader.Run(ctx, &upload.Request{
		Sources:     sources,
		Target:      target,
		Force:       force,
		RemoveLocal: removeLocal,
	}, s.cur())

	return reportUpload(result, target, err)
}

func runUploadFolder(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	keepZip, err := cmd.Flags().GetBool("keep-zip")
	if err != nil {
		return err
	}

	target := ""
	if len(args) > 1 {
		target = args[1]
	}

	if !s.gw.NetworkLive(ctx) {
		statusf("Warning: provider API unreachable, sync confirmation may stall\n")
	}

	result, err := s.folderUploader().Run(ctx, &upload.Request{
		Sources: args[:1],
		Target:  target,
		Force:   force,
		Folder:  &upload.FolderMode{KeepZip: keepZip},
	}, s.cur())

	return reportUpload(result, target, err)
}

// splitSourcesTarget treats a trailing virtual path ("~..." or "/...") as
// the target when more than one argument is given. A single argument is
// always a source uploaded to the current directory.
func splitSourcesTarget(args []string) (sources []string, target string) {
	if len(args) < 2 {
		return args, ""
	}

	last := args[len(args)-1]
	if last[0] == '~' || last[0] == '/' {
		return args[:len(args)-1], last
	}

	return args, ""
}

// reportUpload renders the upload outcome. A partial result still prints
// so the user sees what landed before the failure.
func reportUpload(result *upload.Result, target string, err error) error {
	if result != nil {
		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			if encErr := enc.Encode(uploadJSONOutput{
				Uploaded: result.Uploaded,
				Failed:   result.Failed,
				Target:   target,
			}); encErr != nil {
				return encErr
			}
		} else {
			for _, name := range result.Uploaded {
				statusf("Uploaded %s\n", name)
			}

			for _, name := range result.Failed {
				fmt.Fprintf(os.Stderr, "Failed: %s\n", name)
			}
		}
	}

	return err
}
