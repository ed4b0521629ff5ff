package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"/path/to/file.txt", "/path/to/file.txt"},
		{"", "''"},
		{"has space", "'has space'"},
		{"it's", `'it'\''s'`},
		{"a$b", "'a$b'"},
		{"a;rm -rf /", "'a;rm -rf /'"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "Quote(%q)", tt.in)
	}
}

func TestQuoteArgv(t *testing.T) {
	assert.Equal(t, "ls -la 'my dir'", QuoteArgv([]string{"ls", "-la", "my dir"}))
}

func TestQuoteDouble(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`print("hi")`, `"print(\"hi\")"`},
		{`echo $HOME`, `"echo \$HOME"`},
		{`a\b`, `"a\\b"`},
		{"back`tick", "\"back\\`tick\""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteDouble(tt.in), "QuoteDouble(%q)", tt.in)
	}
}

func TestBuildCommandLine_PlainCommand(t *testing.T) {
	line := BuildCommandLine("ls", []string{"-la", "my dir"})
	assert.Equal(t, "ls -la 'my dir'", line)
}

func TestBuildCommandLine_PythonC(t *testing.T) {
	line := BuildCommandLine("python3", []string{"-c", `print("x", 'y')`})
	assert.Equal(t, `python3 -c "print(\"x\", 'y')"`, line)
}

func TestBuildCommandLine_BashC(t *testing.T) {
	line := BuildCommandLine("bash", []string{"-c", `echo "$PWD"`})
	assert.Equal(t, `bash -c "echo \"\$PWD\""`, line)
}

func TestBuildCommandLine_NoArgs(t *testing.T) {
	assert.Equal(t, "pwd", BuildCommandLine("pwd", nil))
}

func TestScriptBuilder(t *testing.T) {
	s := NewScript()
	s.CmdOrFail("cd", "/remote/dir with space")
	s.Cmd("mkdir", "-p", "/remote/tmp")
	s.Raw("set +e")
	s.RawRedirected("echo hi", "/tmp/o", "/tmp/e")

	got := s.String()
	assert.Contains(t, got, "#!/bin/bash\n")
	assert.Contains(t, got, "cd '/remote/dir with space' || exit 1\n")
	assert.Contains(t, got, "mkdir -p /remote/tmp\n")
	assert.Contains(t, got, "echo hi > /tmp/o 2> /tmp/e\n")
}
