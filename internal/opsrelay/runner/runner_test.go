package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/testutil"
)

func writeScript(t *testing.T, name, body string) config.Script {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	content := "#!/bin/sh\n" + body + "\n"
	testutil.AssertNoError(t, os.WriteFile(path, []byte(content), 0700), "writing test script")
	return config.Script{Name: strings.TrimSuffix(name, ".sh"), Path: path}
}

func TestRunOnce_CapturesOutput(t *testing.T) {
	script := writeScript(t, "greet.sh", "echo hello\necho world")

	output, err := RunOnce(script)
	testutil.AssertNoError(t, err, "running script")
	if output != "hello\nworld\n" {
		t.Errorf("Unexpected output: %q", output)
	}
}

func TestRunOnce_PassesArguments(t *testing.T) {
	script := writeScript(t, "args.sh", `echo "$1-$2"`)
	script.Args = []string{"alpha", "beta"}

	output, err := RunOnce(script)
	testutil.AssertNoError(t, err, "running script")
	if output != "alpha-beta\n" {
		t.Errorf("Unexpected output: %q", output)
	}
}

func TestRunOnce_MergesStderr(t *testing.T) {
	script := writeScript(t, "mixed.sh", "echo to-stdout\necho to-stderr 1>&2")

	output, err := RunOnce(script)
	testutil.AssertNoError(t, err, "running script")
	testutil.AssertContains(t, output, "to-stdout")
	testutil.AssertContains(t, output, "to-stderr")
}

func TestRunOnce_NonZeroExitReturnsOutput(t *testing.T) {
	script := writeScript(t, "fail.sh", "echo partial\nexit 3")

	var (
		output string
		err    error
	)
	stderr := testutil.CaptureStderr(t, func() {
		output, err = RunOnce(script)
	})

	testutil.AssertNoError(t, err, "running failing script")
	if output != "partial\n" {
		t.Errorf("Unexpected output: %q", output)
	}
	testutil.AssertContains(t, stderr, "status 3")
}

func TestRunOnce_MissingScript(t *testing.T) {
	script := config.Script{Name: "ghost", Path: filepath.Join(t.TempDir(), "ghost.sh")}

	_, err := RunOnce(script)
	testutil.AssertError(t, err, "running missing script")
	if !errors.Is(err, errors.ErrScriptNotFound) {
		t.Errorf("Expected ErrScriptNotFound, got %v", err)
	}
}

func TestRunOnce_SanitizesInvalidUTF8(t *testing.T) {
	script := writeScript(t, "binary.sh", `printf 'a\377b\n'`)

	output, err := RunOnce(script)
	testutil.AssertNoError(t, err, "running script")
	if !utf8.ValidString(output) {
		t.Errorf("Output is not valid UTF-8: %q", output)
	}
	testutil.AssertContains(t, output, "�")
}

func collectLines(t *testing.T, s *Stream) []string {
	t.Helper()
	var lines []string
	for line := range s.Lines() {
		lines = append(lines, line)
	}
	return lines
}

func TestRunStreaming_DeliversLinesInOrder(t *testing.T) {
	script := writeScript(t, "count.sh", `for i in 1 2 3; do echo "line $i"; done`)

	stream, err := RunStreaming(script)
	testutil.AssertNoError(t, err, "starting stream")

	lines := collectLines(t, stream)
	testutil.AssertNoError(t, stream.Wait(), "waiting for stream")

	want := []string{"line 1", "line 2", "line 3"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("Streamed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStreaming_MergesStderr(t *testing.T) {
	script := writeScript(t, "mixed.sh", "echo first\necho second 1>&2\necho third")

	stream, err := RunStreaming(script)
	testutil.AssertNoError(t, err, "starting stream")

	lines := collectLines(t, stream)
	testutil.AssertNoError(t, stream.Wait(), "waiting for stream")

	want := []string{"first", "second", "third"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("Streamed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStreaming_NonZeroExit(t *testing.T) {
	script := writeScript(t, "fail.sh", "echo before\nexit 2")

	stream, err := RunStreaming(script)
	testutil.AssertNoError(t, err, "starting stream")

	var lines []string
	stderr := testutil.CaptureStderr(t, func() {
		lines = collectLines(t, stream)
		testutil.AssertNoError(t, stream.Wait(), "waiting for failing stream")
	})

	if diff := cmp.Diff([]string{"before"}, lines); diff != "" {
		t.Errorf("Streamed lines mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertContains(t, stderr, "status 2")
}

func TestRunStreaming_MissingScript(t *testing.T) {
	script := config.Script{Name: "ghost", Path: filepath.Join(t.TempDir(), "ghost.sh")}

	_, err := RunStreaming(script)
	testutil.AssertError(t, err, "starting missing script")
	if !errors.Is(err, errors.ErrScriptNotFound) {
		t.Errorf("Expected ErrScriptNotFound, got %v", err)
	}
}
