package editor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSpecInvalid wraps all validation failures. The message names the
// exact violation; the original file is never modified on failure.
var ErrSpecInvalid = errors.New("editor: replacement spec invalid")

// Placeholders expanded in insertion content.
var placeholders = strings.NewReplacer(
	"_SPACE_", " ",
	"_4SP_", "    ",
	"_SP_", " ",
	"_TAB_", "\t",
	`\n`, "\n",
)

// Validate checks every operation against the ORIGINAL file: line
// positions against its line count, old_text presence against its
// content. Later operations never re-validate against intermediate
// states.
func (s *Spec) Validate(text string) error {
	lineCount := len(splitLines(text))

	for _, ins := range s.Insertions {
		if ins.Line < 0 || ins.Line > lineCount {
			return fmt.Errorf("%w: insertion position %d out of range [0, %d]",
				ErrSpecInvalid, ins.Line, lineCount)
		}
	}

	for _, r := range s.Ranges {
		if r.Start < 0 || r.End < r.Start || r.End >= lineCount {
			return fmt.Errorf("%w: line range [%d, %d] out of range for %d-line file",
				ErrSpecInvalid, r.Start, r.End, lineCount)
		}
	}

	for _, sub := range s.Subs {
		if !strings.Contains(text, sub.Old) {
			return fmt.Errorf("%w: old_text %q not found in file", ErrSpecInvalid, sub.Old)
		}
	}

	return nil
}

// Apply runs the three operation classes in order and returns the
// modified text. The file's final-newline state is preserved through
// line operations; substitutions see the full text and may change it
// deliberately.
func (s *Spec) Apply(text string) (string, error) {
	if err := s.Validate(text); err != nil {
		return "", err
	}

	lines := splitLines(text)
	hasFinalNewline := strings.HasSuffix(text, "\n")

	lines = applyInsertions(lines, s.Insertions)
	lines = applyRanges(lines, s.Ranges)

	out := strings.Join(lines, "\n")
	if hasFinalNewline && out != "" {
		out += "\n"
	}

	for _, sub := range s.Subs {
		out = strings.ReplaceAll(out, sub.Old, sub.New)
	}

	return out, nil
}

// applyInsertions inserts in descending position order so earlier
// positions stay valid against the original numbering.
func applyInsertions(lines []string, insertions []Insertion) []string {
	sorted := append([]Insertion(nil), insertions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line > sorted[j].Line })

	for _, ins := range sorted {
		content := splitLines(placeholders.Replace(ins.Content))
		lines = append(lines[:ins.Line], append(content, lines[ins.Line:]...)...)
	}

	return lines
}

// applyRanges replaces in descending start order for the same reason.
func applyRanges(lines []string, ranges []LineRange) []string {
	sorted := append([]LineRange(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	for _, r := range sorted {
		content := splitLines(r.Content)
		lines = append(lines[:r.Start], append(content, lines[r.End+1:]...)...)
	}

	return lines
}

// splitLines splits text into lines without a trailing-newline artifact.
// An empty file has zero lines.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
