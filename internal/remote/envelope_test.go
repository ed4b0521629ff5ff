package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Unix(1756000000, 0)

func testEnvelope() *Envelope {
	return NewEnvelope("ls", []string{"-la"}, "/content/drive/REMOTE_ROOT/tmp/test", "/content/drive/REMOTE_ROOT", testTime)
}

func TestEnvelope_ResultFilename(t *testing.T) {
	env := testEnvelope()

	assert.Len(t, env.Hash, 8)
	assert.Equal(t, "cmd_1756000000_"+env.Hash+".json", env.ResultFilename())
}

func TestEnvelope_Deterministic(t *testing.T) {
	a := testEnvelope()
	b := testEnvelope()

	assert.Equal(t, a.ResultFilename(), b.ResultFilename())
	assert.Equal(t, a.BuildScript(), b.BuildScript())
}

func TestEnvelope_HashVariesWithCommand(t *testing.T) {
	a := NewEnvelope("ls", nil, "/wd", "/root", testTime)
	b := NewEnvelope("pwd", nil, "/wd", "/root", testTime)

	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestBuildScript_Structure(t *testing.T) {
	env := testEnvelope()
	script := env.BuildScript()

	// cd first, failing hard if the working directory is gone.
	assert.Contains(t, script, "cd /content/drive/REMOTE_ROOT/tmp/test || exit 1")
	// tmp dir prepared before any redirection targets it.
	assert.Contains(t, script, "mkdir -p /content/drive/REMOTE_ROOT/tmp")
	// the user command runs under set +e with both streams captured.
	assert.Contains(t, script, "set +e")
	assert.Contains(t, script, "ls -la > ")
	assert.Contains(t, script, "GDSH_EXIT=$?")
	// the sentinel is assembled by python and side files removed.
	assert.Contains(t, script, "python3 - ")
	assert.Contains(t, script, env.ResultFilename())
	assert.Contains(t, script, "rm -f ")
}

func TestBuildScript_PassesSyntaxCheck(t *testing.T) {
	envs := []*Envelope{
		testEnvelope(),
		NewEnvelope("python3", []string{"-c", `print("it's tricky $X")`}, "/wd", "/root", testTime),
		NewEnvelope("bash", []string{"-c", `for f in *; do echo "$f"; done`}, "/wd", "/root", testTime),
		NewEnvelope("grep", []string{"a'b\"c", "file name.txt"}, "/wd", "/root", testTime),
	}

	for _, env := range envs {
		require.NoError(t, CheckSyntax(context.Background(), env.BuildScript()), "cmd %q", env.Cmd)
	}
}

func TestCheckSyntax_RejectsBrokenScript(t *testing.T) {
	err := CheckSyntax(context.Background(), "#!/bin/bash\nif [ -f x ]; then echo\n")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestPyString(t *testing.T) {
	assert.Equal(t, `"plain"`, pyString("plain"))
	assert.Equal(t, `"a\"b"`, pyString(`a"b`))
	assert.Equal(t, `"a\\b"`, pyString(`a\b`))
	assert.Equal(t, `"line\nbreak"`, pyString("line\nbreak"))
}
