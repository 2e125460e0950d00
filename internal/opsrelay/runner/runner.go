// Package runner executes configured scripts and collects their output.
package runner

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
)

// maxLineSize caps a single streamed output line at 1 MiB.
const maxLineSize = 1024 * 1024

// RunOnce executes a script to completion and returns its combined
// stdout and stderr. A non-zero exit status is logged as a warning and
// does not produce an error; the collected output is still returned.
// The script runs without a deadline.
func RunOnce(script config.Script) (string, error) {
	if err := checkScript(script); err != nil {
		return "", err
	}

	//nolint:gosec // G204: Executing operator-configured scripts is the intended purpose
	cmd := exec.Command(script.Path, script.Args...)
	out, err := cmd.CombinedOutput()
	output := strings.ToValidUTF8(string(out), "�")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Warn("Script %s exited with status %d", script.Name, exitErr.ExitCode())
			return output, nil
		}
		return "", errors.Wrapf(errors.ErrRunFailed, "running %s (%v)", script.Name, err)
	}
	return output, nil
}

// Stream is a running script whose merged output is consumed line by line.
type Stream struct {
	name    string
	cmd     *exec.Cmd
	lines   chan string
	done    chan struct{}
	scanErr error
}

// RunStreaming starts a script and returns a Stream over its output.
// Stderr is merged into stdout so lines arrive in one ordered feed.
func RunStreaming(script config.Script) (*Stream, error) {
	if err := checkScript(script); err != nil {
		return nil, err
	}

	//nolint:gosec // G204: Executing operator-configured scripts is the intended purpose
	cmd := exec.Command(script.Path, script.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRunFailed, "piping %s (%v)", script.Name, err)
	}
	// StdoutPipe set cmd.Stdout to the pipe's write end.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(errors.ErrRunFailed, "starting %s (%v)", script.Name, err)
	}

	s := &Stream{
		name:  script.Name,
		cmd:   cmd,
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go s.pump(stdout)
	return s, nil
}

// Lines returns the script's output lines without trailing newlines.
// The channel is closed when the script stops producing output.
func (s *Stream) Lines() <-chan string {
	return s.lines
}

// Wait blocks until the script exits and releases its resources.
// Callers must drain Lines first. Like RunOnce, a non-zero exit status
// is logged as a warning and not returned as an error.
func (s *Stream) Wait() error {
	<-s.done
	if s.scanErr != nil {
		log.Warn("Reading output from %s: %v", s.name, s.scanErr)
	}
	if err := s.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Warn("Script %s exited with status %d", s.name, exitErr.ExitCode())
			return nil
		}
		return errors.Wrapf(errors.ErrRunFailed, "waiting for %s (%v)", s.name, err)
	}
	return nil
}

func (s *Stream) pump(r io.Reader) {
	defer close(s.done)
	defer close(s.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		s.lines <- strings.ToValidUTF8(scanner.Text(), "�")
	}
	s.scanErr = scanner.Err()
}

func checkScript(script config.Script) error {
	if _, err := os.Stat(script.Path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrScriptNotFound, "%s", script.Path)
		}
		return errors.Wrap(err, "checking script")
	}
	return nil
}
