package remote

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the parsed sentinel JSON written by the remote envelope.
// Missing fields are tolerated by the reader with documented defaults.
type Result struct {
	Cmd        string   `json:"cmd"`
	Args       []string `json:"args"`
	WorkingDir string   `json:"working_dir"`
	Timestamp  int64    `json:"timestamp"`
	ExitCode   int      `json:"exit_code"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	RawOutput  string   `json:"raw_output,omitempty"`
	RawError   string   `json:"raw_error,omitempty"`
	DebugInfo  string   `json:"debug_info,omitempty"`
}

// rawResult mirrors Result with a pointer exit code so absence is
// distinguishable from zero.
type rawResult struct {
	Cmd        string   `json:"cmd"`
	Args       []string `json:"args"`
	WorkingDir string   `json:"working_dir"`
	Timestamp  int64    `json:"timestamp"`
	ExitCode   *int     `json:"exit_code"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	RawOutput  string   `json:"raw_output"`
	RawError   string   `json:"raw_error"`
	DebugInfo  string   `json:"debug_info"`
}

// ParseResult reads a sentinel result document tolerantly: surrounding
// whitespace is stripped, bare content is wrapped in braces, and missing
// fields get defaults (exit_code -1, empty stdout/stderr). The files are
// produced by a remote script relayed through an eventually-consistent
// sync pipeline; a strict parser would reject harmless truncation
// artifacts.
func ParseResult(data []byte) (*Result, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("remote: empty result document")
	}

	if !strings.HasPrefix(text, "{") {
		text = "{" + text + "}"
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("remote: parsing result document: %w", err)
	}

	result := &Result{
		Cmd:        raw.Cmd,
		Args:       raw.Args,
		WorkingDir: raw.WorkingDir,
		Timestamp:  raw.Timestamp,
		ExitCode:   -1,
		Stdout:     raw.Stdout,
		Stderr:     raw.Stderr,
		RawOutput:  raw.RawOutput,
		RawError:   raw.RawError,
		DebugInfo:  raw.DebugInfo,
	}

	if raw.ExitCode != nil {
		result.ExitCode = *raw.ExitCode
	}

	return result, nil
}

// failureKeywords are the markers scanned in direct feedback to infer a
// non-zero exit code when no sentinel file is available.
var failureKeywords = []string{
	"error",
	"traceback",
	"exception",
	"not found",
	"no such file",
	"permission denied",
	"command not found",
	"failed",
}

// ResultFromFeedback builds a Result from output the user pasted back.
// The exit code is inferred heuristically from error keywords; this is
// the documented fallback when the sentinel file never propagates.
func ResultFromFeedback(text string) *Result {
	exitCode := 0

	lower := strings.ToLower(text)
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			exitCode = 1
			break
		}
	}

	return &Result{
		ExitCode:  exitCode,
		Stdout:    text,
		RawOutput: text,
	}
}
