package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/vpath"
)

// mkdirAttempts bounds the post-creation resolution poll.
const mkdirAttempts = 60

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote folder (recursive)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a remote file or folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runRm,
	}

	cmd.Flags().BoolP("recursive", "r", false, "remove folders and their contents")
	cmd.Flags().BoolP("force", "f", false, "ignore nonexistent targets on the remote side")

	return cmd
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Move or rename on the remote side",
		Args:  cobra.ExactArgs(2),
		RunE:  runMv,
	}
}

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find [path]",
		Short: "Search the remote tree",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFind,
	}

	cmd.Flags().String("name", "", "match by name glob")
	cmd.Flags().String("iname", "", "match by case-insensitive name glob")
	cmd.Flags().String("type", "", "match by type (f or d)")

	return cmd
}

func runMkdir(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	display, err := vpath.Canonicalize(args[0], s.shell.CurrentPath)
	if err != nil {
		return err
	}

	if display == vpath.Root {
		return fmt.Errorf("cannot create the root folder")
	}

	remotePath := s.resolver.RemotePath(display)

	result, err := s.executor.Run(ctx, s.newEnvelope("mkdir", []string{"-p", remotePath}))
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("remote mkdir exited %d: %s", result.ExitCode, result.Stderr)
	}

	// The folder counts as created only once the whole path resolves.
	if err := s.awaitResolvable(ctx, display); err != nil {
		return fmt.Errorf("%s did not appear after remote mkdir: %w", display, err)
	}

	statusf("Created %s\n", display)

	return nil
}

// awaitResolvable polls path resolution until the display path exists or
// the attempt budget runs out.
func (s *session) awaitResolvable(ctx context.Context, display string) error {
	backoff := retry.WithMaxRetries(mkdirAttempts-1, retry.NewConstant(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := s.resolver.Resolve(ctx, display, s.cur()); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	recursive, err := cmd.Flags().GetBool("recursive")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	res, err := s.resolver.Resolve(ctx, args[0], s.cur())
	if err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}

	if !res.IsFile && !recursive {
		return fmt.Errorf("cannot remove folder %s without --recursive (-r)", res.Display)
	}

	argv := []string{}
	if recursive {
		argv = append(argv, "-r")
	}

	if force {
		argv = append(argv, "-f")
	}

	argv = append(argv, s.resolver.RemotePath(res.Display))

	result, err := s.executor.Run(ctx, s.newEnvelope("rm", argv))
	if err != nil {
		return err
	}

	// The executor's exit status is trusted here: a vanished name cannot
	// be distinguished from a never-propagated one by listing.
	if result.ExitCode != 0 {
		return fmt.Errorf("remote rm exited %d: %s", result.ExitCode, result.Stderr)
	}

	s.recordRemoval(ctx, res)

	statusf("Removed %s\n", res.Display)

	return nil
}

// recordRemoval updates the delete history and drops stale cache state
// after a remote deletion.
func (s *session) recordRemoval(ctx context.Context, res *vpath.Resolution) {
	_, name, ok := vpath.Parent(res.Display)
	if ok {
		s.mir.RecordDelete(name)
	}

	if err := s.dl.RecordDelete(ctx, res.Display); err != nil {
		s.logger.Warn("cache delete record failed", slog.String("path", res.Display))
		return
	}

	if n, err := s.dl.DeleteCount(ctx, res.Display); err == nil {
		s.logger.Debug("delete recorded",
			slog.String("path", res.Display), slog.Int("count", n))
	}
}

func runMv(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	src, err := s.resolver.Resolve(ctx, args[0], s.cur())
	if err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}

	dstDisplay, err := vpath.Canonicalize(args[1], s.shell.CurrentPath)
	if err != nil {
		return err
	}

	// Moving into an existing folder keeps the source name; otherwise the
	// destination is a rename under an existing parent.
	verifyDisplay := dstDisplay

	if dst, resolveErr := s.resolver.Resolve(ctx, dstDisplay, s.cur()); resolveErr == nil && !dst.IsFile {
		_, srcName, _ := vpath.Parent(src.Display)
		verifyDisplay = dst.Display + "/" + srcName
	}

	parentDisplay, name, ok := vpath.Parent(verifyDisplay)
	if !ok {
		return fmt.Errorf("cannot move onto %s", dstDisplay)
	}

	result, err := s.executor.Run(ctx, s.newEnvelope("mv",
		[]string{s.resolver.RemotePath(src.Display), s.resolver.RemotePath(dstDisplay)}))
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("remote mv exited %d: %s", result.ExitCode, result.Stderr)
	}

	parent, err := s.resolver.Resolve(ctx, parentDisplay, s.cur())
	if err != nil {
		return fmt.Errorf("resolving %q: %w", parentDisplay, err)
	}

	verification := s.verifier.Verify(ctx, parent.FolderID, parent.Display, []string{name})
	if len(verification.Missing) > 0 {
		return fmt.Errorf("%s did not appear after remote mv", verifyDisplay)
	}

	// The source path no longer names this content.
	if err := s.dl.Invalidate(ctx, src.Display); err != nil {
		s.logger.Warn("cache invalidation failed", slog.String("path", src.Display))
	}

	statusf("Moved %s -> %s\n", src.Display, verifyDisplay)

	return nil
}

func runFind(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	input := ""
	if len(args) > 0 {
		input = args[0]
	}

	res, err := s.resolver.Resolve(ctx, input, s.cur())
	if err != nil {
		return fmt.Errorf("resolving %q: %w", input, err)
	}

	if res.IsFile {
		return fmt.Errorf("%s is not a directory", res.Display)
	}

	argv := []string{s.resolver.RemotePath(res.Display)}

	for _, predicate := range []string{"name", "iname", "type"} {
		value, flagErr := cmd.Flags().GetString(predicate)
		if flagErr != nil {
			return flagErr
		}

		if value != "" {
			argv = append(argv, "-"+predicate, value)
		}
	}

	result, err := s.executor.Run(ctx, s.newEnvelope("find", argv))
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("remote find exited %d: %s", result.ExitCode, result.Stderr)
	}

	var paths []string

	for _, line := range splitContentLines(result.Stdout) {
		if line == "" {
			continue
		}

		paths = append(paths, s.virtualFromRemote(line))
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(paths)
	}

	for _, p := range paths {
		fmt.Println(p)
	}

	return nil
}
