package qc

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Runner invokes one external engine and waits for it to finish. The
// pipeline talks to engines only through this interface, so tests can
// substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, stage, program string, args []string) error
}

// execRunner runs engines as subprocesses. Engine output is streamed
// into the run logger; the tail of stderr is kept for error reporting.
type execRunner struct {
	log   *slog.Logger
	debug bool
}

func (r *execRunner) Run(ctx context.Context, stage, program string, args []string) error {
	cmdLine := program + " " + strings.Join(args, " ")
	if r.debug {
		slog.Info("RUN", "PROGRAM", stage, "STATUS", "STARTED", "CMD", cmdLine)
	}
	r.log.Info("RUN", "PROGRAM", stage, "STATUS", "STARTED", "CMD", cmdLine)

	cmd := exec.CommandContext(ctx, program, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &StageError{Stage: stage, ExitCode: -1, Detail: err.Error()}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &StageError{Stage: stage, ExitCode: -1, Detail: err.Error()}
	}

	if err := cmd.Start(); err != nil {
		return &StageError{Stage: stage, ExitCode: -1, Detail: err.Error()}
	}

	tail := newTail(5)
	g := new(errgroup.Group)
	g.Go(func() error {
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			r.log.Info("ENGINE", "PROGRAM", stage, "LINE", sc.Text())
		}
		return sc.Err()
	})
	g.Go(func() error {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			line := sc.Text()
			tail.add(line)
			r.log.Warn("ENGINE", "PROGRAM", stage, "LINE", line)
		}
		return sc.Err()
	})

	pumpErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		r.log.Error("RUN", "PROGRAM", stage, "STATUS", "FAILED", "EXIT", code)
		return &StageError{Stage: stage, ExitCode: code, Detail: tail.String()}
	}
	if pumpErr != nil {
		r.log.Warn("RUN", "PROGRAM", stage, "STATUS", "OUTPUT_TRUNCATED", "ERROR", pumpErr.Error())
	}
	r.log.Info("RUN", "PROGRAM", stage, "STATUS", "COMPLETED")
	return nil
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	lines []string
	n     int
}

func newTail(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, "; ")
}
