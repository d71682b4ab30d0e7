package runner

import (
	"context"
	"os/exec"
	"time"
)

// KillGrace bounds how long Run waits for the output pipes to close once the
// process tree has been killed.
const KillGrace = 2 * time.Second

// Executor runs one external command in dir and returns its combined output.
type Executor interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecExecutor runs commands with os/exec. When ctx is done the whole
// process group is killed, so children that inherited the output pipes
// cannot keep the call alive.
type ExecExecutor struct {
	// Env, when non-nil, replaces the inherited environment.
	Env []string
}

func (e ExecExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if e.Env != nil {
		cmd.Env = e.Env
	}
	killProcessGroup(cmd)
	cmd.WaitDelay = KillGrace
	return cmd.CombinedOutput()
}
