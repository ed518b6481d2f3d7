package backend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
)

// Runner executes generator commands.
type Runner interface {
	Run(ctx context.Context, dir string, argv ...string) error
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct {
	Logger *slog.Logger
}

// Run implements Runner. Output is logged; on failure it is folded into the
// returned error.
func (r ExecRunner) Run(ctx context.Context, dir string, argv ...string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(argv) == 0 {
		return derrors.BackendError("empty command").Build()
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return derrors.WrapError(err, derrors.CategoryBackend, "command not found").
			WithContext("command", argv[0]).
			Build()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 -- command comes from configuration
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	logger.Debug("Running generator command", slog.String("command", strings.Join(argv, " ")), slog.String("dir", dir))

	err := cmd.Run()
	if out := stdout.String(); out != "" {
		logger.Debug("command stdout", "output", out)
	}
	if errOut := stderr.String(); errOut != "" {
		logger.Debug("command stderr", "error_output", errOut)
	}
	if err != nil {
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		return derrors.WrapError(fmt.Errorf("%w: %s", err, output), derrors.CategoryBackend, "command failed").
			WithContext("command", strings.Join(argv, " ")).
			Build()
	}
	return nil
}

// Call is one recorded Runner invocation.
type Call struct {
	Dir  string
	Argv []string
}

// RecordingRunner records calls and runs an optional hook instead of a
// subprocess.
type RecordingRunner struct {
	Calls []Call
	Hook  func(dir string, argv []string) error
}

// Run implements Runner.
func (r *RecordingRunner) Run(_ context.Context, dir string, argv ...string) error {
	r.Calls = append(r.Calls, Call{Dir: dir, Argv: append([]string(nil), argv...)})
	if r.Hook != nil {
		return r.Hook(dir, argv)
	}
	return nil
}
