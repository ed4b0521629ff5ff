package remote

import (
	"strings"
)

// Script is a minimal builder for the generated bash text. Statements are
// assembled structurally (commands with quoted argv, redirections,
// here-docs) and serialized once, so quoting hazards live in exactly one
// place.
type Script struct {
	lines []string
}

// NewScript starts an empty script with the standard header.
func NewScript() *Script {
	return &Script{lines: []string{"#!/bin/bash"}}
}

// Cmd appends a command with each argument shell-quoted.
func (s *Script) Cmd(argv ...string) *Script {
	s.lines = append(s.lines, QuoteArgv(argv))
	return s
}

// CmdOrFail appends a quoted command that aborts the script on failure.
func (s *Script) CmdOrFail(argv ...string) *Script {
	s.lines = append(s.lines, QuoteArgv(argv)+" || exit 1")
	return s
}

// Raw appends a line verbatim. Reserved for control flow the builder has
// no structured form for (set +e, $? capture, loops).
func (s *Script) Raw(line string) *Script {
	s.lines = append(s.lines, line)
	return s
}

// RawRedirected appends a verbatim command line with stdout and stderr
// redirected. Used for pre-rendered command lines (inline interpreters).
func (s *Script) RawRedirected(line, stdout, stderr string) *Script {
	s.lines = append(s.lines, line+" > "+Quote(stdout)+" 2> "+Quote(stderr))
	return s
}

// HereDoc appends a command fed by a quoted here-document. The delimiter
// is quoted so the body is passed byte-for-byte with no expansion.
func (s *Script) HereDoc(cmdLine, delim, body string) *Script {
	s.lines = append(s.lines, cmdLine+" <<'"+delim+"'")
	s.lines = append(s.lines, body)
	s.lines = append(s.lines, delim)

	return s
}

// String serialises the script.
func (s *Script) String() string {
	return strings.Join(s.lines, "\n") + "\n"
}
