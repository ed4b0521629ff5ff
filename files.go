package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/remote"
	"github.com/gdshell/gdshell/internal/vpath"
)

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <file>",
		Short: "Print a file's content",
		Args:  cobra.ExactArgs(1),
		RunE:  runCat,
	}
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <file> [start end | '[[s1,e1],...]']",
		Short: "Print numbered line ranges of a file",
		Long: `Print a file with line numbers, optionally restricted to ranges.
Ranges are 0-based and inclusive, given either as two arguments or as a
JSON list of [start,end] pairs.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: runRead,
	}
}

func newGrepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grep <pattern> <file>...",
		Short: "Search files for a POSIX extended regex",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runGrep,
	}
}

func newEchoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "echo <text>... ['>' file]",
		Short: "Print text, or create a remote file via redirection",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEcho,
	}
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <file> [local-path]",
		Short: "Download a file through the cache",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDownload,
	}

	cmd.Flags().Bool("force", false, "bypass the cache and re-fetch")

	return cmd
}

// resolveFile resolves an argument that must name a file.
func (s *session) resolveFile(ctx context.Context, input string) (*vpath.Resolution, error) {
	res, err := s.resolver.Resolve(ctx, input, s.cur())
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", input, err)
	}

	if !res.IsFile {
		return nil, fmt.Errorf("%s is a directory", res.Display)
	}

	return res, nil
}

func runCat(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.resolveFile(ctx, args[0])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := s.gw.Download(ctx, res.File.ID, &buf); err != nil {
		return err
	}

	// Invalid byte sequences degrade to replacement runes rather than
	// failing the whole print.
	fmt.Print(strings.ToValidUTF8(buf.String(), "�"))

	return nil
}

// lineRange is one 0-based inclusive slice of a file.
type lineRange struct {
	Start int
	End   int
}

// parseReadRanges interprets the optional range arguments of read.
func parseReadRanges(args []string) ([]lineRange, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		var pairs [][2]int
		if err := json.Unmarshal([]byte(args[0]), &pairs); err != nil {
			return nil, fmt.Errorf("parsing ranges %q: %w", args[0], err)
		}

		ranges := make([]lineRange, 0, len(pairs))
		for _, p := range pairs {
			ranges = append(ranges, lineRange{Start: p[0], End: p[1]})
		}

		return ranges, nil
	default:
		start, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("parsing start line %q: %w", args[0], err)
		}

		end, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("parsing end line %q: %w", args[1], err)
		}

		return []lineRange{{Start: start, End: end}}, nil
	}
}

func runRead(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ranges, err := parseReadRanges(args[1:])
	if err != nil {
		return err
	}

	res, err := s.resolveFile(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := s.dl.Get(ctx, res.Display, res.File)
	if err != nil {
		return err
	}

	lines := splitContentLines(string(data))

	if len(ranges) == 0 {
		ranges = []lineRange{{Start: 0, End: len(lines) - 1}}
	}

	return printLineRanges(os.Stdout, lines, ranges)
}

// printLineRanges writes numbered lines for each range. Starts clamp to
// the first line and ends to the last; a range lying entirely past the
// file is an error.
func printLineRanges(w io.Writer, lines []string, ranges []lineRange) error {
	for _, r := range ranges {
		start := max(r.Start, 0)
		if start > r.End || start >= len(lines) {
			return fmt.Errorf("range [%d,%d] out of bounds for %d lines", r.Start, r.End, len(lines))
		}

		end := min(r.End, len(lines)-1)

		for i := start; i <= end; i++ {
			fmt.Fprintf(w, "%6d\t%s\n", i, lines[i])
		}
	}

	return nil
}

// splitContentLines splits without manufacturing a trailing empty line.
func splitContentLines(text string) []string {
	if text == "" {
		return nil
	}

	text = strings.TrimSuffix(text, "\n")

	return strings.Split(text, "\n")
}

// grepMatches maps file display path -> line number -> match start columns.
type grepMatches map[string]map[int][]int

func runGrep(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	re, err := regexp.CompilePOSIX(args[0])
	if err != nil {
		return fmt.Errorf("compiling pattern %q: %w", args[0], err)
	}

	matches := grepMatches{}

	for _, input := range args[1:] {
		res, resolveErr := s.resolveFile(ctx, input)
		if resolveErr != nil {
			return resolveErr
		}

		data, getErr := s.dl.Get(ctx, res.Display, res.File)
		if getErr != nil {
			return getErr
		}

		perFile := map[int][]int{}

		for i, line := range splitContentLines(string(data)) {
			for _, loc := range re.FindAllStringIndex(line, -1) {
				perFile[i] = append(perFile[i], loc[0])
			}

			if !flagJSON && len(perFile[i]) > 0 {
				fmt.Printf("%s:%d:%s\n", res.Display, i, line)
			}
		}

		if len(perFile) > 0 {
			matches[res.Display] = perFile
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(matches)
	}

	return nil
}

func runEcho(cmd *cobra.Command, args []string) error {
	text, target, err := splitRedirect(args)
	if err != nil {
		return err
	}

	if target == "" {
		fmt.Println(text)
		return nil
	}

	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	display, err := vpath.Canonicalize(target, s.shell.CurrentPath)
	if err != nil {
		return err
	}

	parentDisplay, name, ok := vpath.Parent(display)
	if !ok {
		return fmt.Errorf("cannot write to %s", display)
	}

	parent, err := s.resolver.Resolve(ctx, parentDisplay, s.cur())
	if err != nil {
		return fmt.Errorf("resolving %q: %w", parentDisplay, err)
	}

	if parent.IsFile {
		return fmt.Errorf("%s is not a directory", parent.Display)
	}

	// The content travels base64-encoded so no byte of it touches shell
	// quoting on the remote side.
	encoded := base64.StdEncoding.EncodeToString([]byte(text + "\n"))
	remotePath := s.resolver.RemotePath(display)
	body := fmt.Sprintf("echo %s | base64 -d > %s", encoded, remote.Quote(remotePath))

	result, err := s.executor.Run(ctx, s.newEnvelope("bash", []string{"-c", body}))
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("remote write exited %d: %s", result.ExitCode, result.Stderr)
	}

	verification := s.verifier.Verify(ctx, parent.FolderID, parent.Display, []string{name})
	if len(verification.Missing) > 0 {
		return fmt.Errorf("%s did not appear after remote write", display)
	}

	if err := s.dl.Invalidate(ctx, display); err != nil {
		s.logger.Warn("cache invalidation failed", slog.String("path", display))
	}

	statusf("Created %s\n", display)

	return nil
}

// splitRedirect separates echo's text from an optional "> file" suffix.
func splitRedirect(args []string) (text, target string, err error) {
	for i, arg := range args {
		if arg != ">" {
			continue
		}

		if i != len(args)-2 {
			return "", "", fmt.Errorf("redirection expects exactly one target file")
		}

		return strings.Join(args[:i], " "), args[i+1], nil
	}

	return strings.Join(args, " "), "", nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	res, err := s.resolveFile(ctx, args[0])
	if err != nil {
		return err
	}

	if force {
		if err := s.dl.Invalidate(ctx, res.Display); err != nil {
			return err
		}
	}

	cached := false
	if !force {
		if ok, cacheErr := s.dl.IsCached(ctx, res.Display); cacheErr == nil && ok {
			cached, _ = s.dl.IsUpToDate(ctx, res.Display, res.File.ModifiedTime)
		}
	}

	data, err := s.dl.Get(ctx, res.Display, res.File)
	if err != nil {
		return err
	}

	localPath := res.File.Name
	if len(args) > 1 {
		localPath = args[1]

		if fi, statErr := os.Stat(localPath); statErr == nil && fi.IsDir() {
			localPath = filepath.Join(localPath, res.File.Name)
		}
	}

	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", localPath, err)
	}

	source := ""
	if cached {
		source = ", cached"
	}

	statusf("Downloaded %s (%s%s)\n", localPath, formatSize(int64(len(data))), source)

	return nil
}
