package remote

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// hashLen is the hex length of the command hash in result filenames.
const hashLen = 8

// Envelope identifies one remote execution: the user command, its
// timestamp, and the sentinel result filename derived from both. Envelope
// generation is deterministic and idempotent per result filename.
type Envelope struct {
	Cmd        string
	Argv       []string
	Timestamp  time.Time
	Hash       string
	WorkingDir string // absolute remote path, resolved from the active shell
	RemoteRoot string // absolute remote path of the mirror's REMOTE_ROOT
}

// NewEnvelope creates an envelope for a command at the given remote
// working directory.
func NewEnvelope(cmd string, argv []string, workingDir, remoteRoot string, now time.Time) *Envelope {
	e := &Envelope{
		Cmd:        cmd,
		Argv:       argv,
		Timestamp:  now,
		WorkingDir: workingDir,
		RemoteRoot: remoteRoot,
	}
	e.Hash = e.hash()

	return e
}

// hash derives the 8-hex command hash from cmd, argv, and timestamp.
func (e *Envelope) hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d", e.Cmd, strings.Join(e.Argv, "\x00"), e.Timestamp.Unix())

	return hex.EncodeToString(h.Sum(nil))[:hashLen]
}

// ResultFilename returns the sentinel file name for this envelope.
func (e *Envelope) ResultFilename() string {
	return fmt.Sprintf("cmd_%d_%s.json", e.Timestamp.Unix(), e.Hash)
}

// tmpDir returns the remote tmp directory holding side and result files.
func (e *Envelope) tmpDir() string {
	return e.RemoteRoot + "/tmp"
}

// sidePrefix returns the shared prefix of the stdout/stderr side files.
func (e *Envelope) sidePrefix() string {
	return fmt.Sprintf("%s/cmd_%d_%s", e.tmpDir(), e.Timestamp.Unix(), e.Hash)
}

// BuildScript renders the result-capturing bash envelope:
// cd into the working directory, prepare tmp/, run the command with
// stdout/stderr captured to side files, record $?, synthesise the JSON
// result from the side files, and remove them.
func (e *Envelope) BuildScript() string {
	outFile := e.sidePrefix() + ".out"
	errFile := e.sidePrefix() + ".err"
	resultFile := e.tmpDir() + "/" + e.ResultFilename()

	s := NewScript()
	s.CmdOrFail("cd", e.WorkingDir)
	s.Cmd("mkdir", "-p", e.tmpDir())
	s.Raw("set +e")
	s.RawRedirected(BuildCommandLine(e.Cmd, e.Argv), outFile, errFile)
	s.Raw("GDSH_EXIT=$?")
	s.Raw("set -e")
	s.HereDoc(
		fmt.Sprintf("GDSH_EXIT=$GDSH_EXIT python3 - %s %s %s", Quote(outFile), Quote(errFile), Quote(resultFile)),
		"GDSH_RESULT_EOF",
		e.resultProgram(),
	)
	s.Cmd("rm", "-f", outFile, errFile)

	return s.String()
}

// resultProgram is the python3 program that assembles the sentinel JSON.
// Writing JSON from python sidesteps every bash quoting hazard in the
// captured output.
func (e *Envelope) resultProgram() string {
	argvList := make([]string, len(e.Argv))
	for i, a := range e.Argv {
		argvList[i] = pyString(a)
	}

	return fmt.Sprintf(`import json, os, sys
out_path, err_path, result_path = sys.argv[1], sys.argv[2], sys.argv[3]
def slurp(p):
    try:
        with open(p, errors="replace") as f:
            return f.read()
    except OSError:
        return ""
result = {
    "cmd": %s,
    "args": [%s],
    "working_dir": %s,
    "timestamp": %d,
    "exit_code": int(os.environ.get("GDSH_EXIT", "-1")),
    "stdout": slurp(out_path),
    "stderr": slurp(err_path),
}
tmp = result_path + ".tmp"
with open(tmp, "w") as f:
    json.dump(result, f)
os.replace(tmp, result_path)`,
		pyString(e.Cmd),
		strings.Join(argvList, ", "),
		pyString(e.WorkingDir),
		e.Timestamp.Unix(),
	)
}

// pyString renders a Go string as a python string literal.
func pyString(s string) string {
	var b strings.Builder

	b.WriteByte('"')

	for _, r := range s {
		switch r {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}

	b.WriteByte('"')

	return b.String()
}
