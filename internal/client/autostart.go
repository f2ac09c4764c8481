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

package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// AutoStartConfig configures automatic daemon startup behavior.
type AutoStartConfig struct {
	// Enabled enables automatic daemon startup.
	Enabled bool

	// SocketPath is the socket path to use (empty for default).
	SocketPath string

	// StartTimeout is how long to wait for the daemon to start.
	StartTimeout time.Duration
}

// StartDaemon starts the harvester control daemon in the background.
// Returns nil if the daemon starts successfully within the timeout.
func StartDaemon(cfg AutoStartConfig) error {
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 10 * time.Second
	}

	// Find the control daemon binary (try harvesterd first, then the
	// storeharvester CLI's own "server" subcommand).
	var daemonPath string
	var err error
	daemonPath, err = exec.LookPath("harvesterd")
	if err != nil {
		daemonPath, err = exec.LookPath("storeharvester")
		if err != nil {
			return fmt.Errorf("harvester daemon binary not found in PATH: %w", err)
		}
	}

	// If we found "storeharvester", use its "server" subcommand.
	// If we found "harvesterd", just pass listen args directly.
	var args []string
	baseName := filepath.Base(daemonPath)
	if baseName == "storeharvester" || baseName == "storeharvester.exe" {
		args = []string{"server"}
	}
	if cfg.SocketPath != "" {
		args = append(args, "--listen", cfg.SocketPath)
	}

	// Start daemon in background
	cmd := exec.Command(daemonPath, args...)
	cmd.Stdout = nil // Detach stdout
	cmd.Stderr = nil // Detach stderr
	cmd.Stdin = nil

	// Inherit parent environment and mark this invocation as auto-started.
	cmd.Env = append(os.Environ(), "HARVESTER_AUTO_STARTED=1")

	// Set up process group for proper detachment
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait for daemon to become available
	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartTimeout)
	defer cancel()

	client, err := FromEnvironment()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	// Poll until daemon is ready
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for daemon to start")
		case <-ticker.C:
			if err := client.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureDaemon ensures the daemon is running, starting it if needed and if auto-start is enabled.
// Returns a client connected to the daemon.
func EnsureDaemon(cfg AutoStartConfig) (*Client, error) {
	client, err := FromEnvironment()
	if err != nil {
		return nil, err
	}

	// Try to connect
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err = client.Ping(ctx)
	cancel()

	if err == nil {
		// Daemon is running
		return client, nil
	}

	// Check if daemon is not running
	if !IsDaemonNotRunning(err) {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	// Auto-start if enabled
	if !cfg.Enabled {
		dnr := &DaemonNotRunningError{}
		return nil, dnr
	}

	// Start the daemon
	if err := StartDaemon(cfg); err != nil {
		return nil, fmt.Errorf("auto-start failed: %w", err)
	}

	// Return fresh client
	return FromEnvironment()
}

// setSysProcAttr sets OS-specific process attributes for proper detachment.
// This is defined in separate files for Unix and Windows.
func setSysProcAttr(cmd *exec.Cmd) {
	setSysProcAttrPlatform(cmd)
}
