// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runmanager

import (
	"context"
	"time"

	"github.com/tombarlow/storeharvester/internal/lifecycle"
)

// Supervisor is the common interface the two interchangeable execution
// models satisfy: task-based (goroutine + cancel signal + done channel)
// and process-based (subprocess invoking the same binary). Production
// picks one; tests use the task-based supervisor exclusively.
type Supervisor interface {
	// Alive reports whether the underlying task/process is still running.
	Alive() bool

	// PID returns the OS process id, or 0 for a task-based supervisor.
	PID() int

	// RequestStop asks the supervised work to cancel cooperatively.
	RequestStop()

	// Wait blocks until the work finishes or timeout elapses, returning
	// true if it finished within timeout.
	Wait(timeout time.Duration) bool

	// Kill forces termination (subprocess: SIGKILL; task: no-op beyond
	// what RequestStop already asked for, since a goroutine can't be
	// preempted from outside).
	Kill()
}

// TaskSupervisor supervises an in-process goroutine via context
// cancellation and a done channel.
type TaskSupervisor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTaskSupervisor starts fn in a new goroutine with a cancelable context
// derived from parent, and returns a Supervisor for it.
func NewTaskSupervisor(parent context.Context, fn func(ctx context.Context)) *TaskSupervisor {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()
	return &TaskSupervisor{cancel: cancel, done: done}
}

// Alive implements Supervisor.
func (s *TaskSupervisor) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// PID implements Supervisor. Task-based runs have no OS process id.
func (s *TaskSupervisor) PID() int { return 0 }

// RequestStop implements Supervisor.
func (s *TaskSupervisor) RequestStop() { s.cancel() }

// Wait implements Supervisor.
func (s *TaskSupervisor) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}

// Kill implements Supervisor. A goroutine can't be forcibly preempted, so
// Kill does nothing; the run is marked canceled by Start's goroutine once
// the run function returns after its context was canceled.
func (s *TaskSupervisor) Kill() {}

// ProcessSupervisor supervises a subprocess invoking the same binary with
// a single-retailer argument.
type ProcessSupervisor struct {
	pid int
}

// NewProcessSupervisor spawns binary with args as a detached background
// process and returns a Supervisor tracking its pid.
func NewProcessSupervisor(binary string, args []string, logPath string) (*ProcessSupervisor, error) {
	spawner := lifecycle.NewSpawner()
	pid, err := spawner.SpawnDetached(binary, args, logPath)
	if err != nil {
		return nil, err
	}
	return &ProcessSupervisor{pid: pid}, nil
}

// Alive implements Supervisor.
func (s *ProcessSupervisor) Alive() bool {
	return lifecycle.IsProcessRunning(s.pid)
}

// PID implements Supervisor.
func (s *ProcessSupervisor) PID() int { return s.pid }

// RequestStop implements Supervisor: sends SIGTERM.
func (s *ProcessSupervisor) RequestStop() {
	_ = lifecycle.SendSignal(s.pid, sigterm)
}

// Wait implements Supervisor.
func (s *ProcessSupervisor) Wait(timeout time.Duration) bool {
	return lifecycle.WaitForExit(s.pid, timeout) == nil
}

// Kill implements Supervisor: sends SIGKILL.
func (s *ProcessSupervisor) Kill() {
	_ = lifecycle.SendSignal(s.pid, sigkill)
}
