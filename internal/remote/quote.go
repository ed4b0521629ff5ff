// Package remote generates the bash envelopes that run user commands on a
// host the user controls, and reads back the sentinel result files those
// envelopes write under the synced tree. gdsh never executes the remote
// command itself; the user does, out of band.
package remote

import "strings"

// Quote single-quotes a string for safe interpolation into bash. Embedded
// single quotes use the '\'' idiom.
func Quote(s string) string {
	if s == "" {
		return "''"
	}

	if isShellSafe(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuoteArgv quotes every argument and joins with spaces.
func QuoteArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = Quote(a)
	}

	return strings.Join(parts, " ")
}

// QuoteDouble wraps a string in double quotes, escaping the characters
// bash still interprets inside them: backslash, double quote, dollar,
// and backtick.
func QuoteDouble(s string) string {
	var b strings.Builder

	b.WriteByte('"')

	for _, r := range s {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	b.WriteByte('"')

	return b.String()
}

// BuildCommandLine renders a user command for the envelope. The inline
// interpreters get their program body re-quoted as a double-quoted string
// because the body routinely contains single quotes of its own.
func BuildCommandLine(cmd string, argv []string) string {
	if len(argv) >= 2 && argv[0] == "-c" && isInlineInterpreter(cmd) {
		rest := ""
		if len(argv) > 2 {
			rest = " " + QuoteArgv(argv[2:])
		}

		return cmd + " -c " + QuoteDouble(argv[1]) + rest
	}

	if len(argv) == 0 {
		return cmd
	}

	return cmd + " " + QuoteArgv(argv)
}

// isInlineInterpreter reports whether cmd takes an inline program via -c.
func isInlineInterpreter(cmd string) bool {
	switch cmd {
	case "python", "python3", "bash", "sh":
		return true
	default:
		return false
	}
}

// isShellSafe reports whether a string needs no quoting at all.
func isShellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '/' || r == ':' || r == '=' || r == ',' || r == '+' || r == '@' || r == '%' || r == '~':
		default:
			return false
		}
	}

	return len(s) > 0
}
