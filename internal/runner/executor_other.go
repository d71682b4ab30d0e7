//go:build !unix

package runner

import "os/exec"

// killProcessGroup is a no-op; WaitDelay still bounds the call.
func killProcessGroup(*exec.Cmd) {}
