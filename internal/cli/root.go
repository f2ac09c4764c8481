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

// Package cli wires the harvester's cobra command tree: the root command's
// persistent flags, and the run/status/server/ctl/version subcommands
// described in the external-interfaces section of this project's
// requirements.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// SetVersion records build-time version information for the version
// subcommand.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// Flags are the root command's persistent flags, shared by every
// subcommand via cobra's flag inheritance.
type Flags struct {
	Verbose    bool
	ConfigPath string
	DataDir    string
}

// NewRootCommand builds the harvester's root cobra command. Subcommands
// register themselves onto it via AddCommand, mirroring this codebase's
// per-package NewCommand() factory convention.
func NewRootCommand() (*cobra.Command, *Flags) {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:   "storeharvester",
		Short: "Harvest retail store-locator data across multiple retailers",
		Long: `storeharvester discovers and extracts store location records from
retailer store-locator pages, tracking per-retailer runs and diffing each
run's results against the previous one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug-level logging")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to settings.yaml (default: config/settings.yaml)")
	cmd.PersistentFlags().StringVar(&flags.DataDir, "data-dir", "", "override the data directory (default: $DATA_DIR or ./data)")

	return cmd, flags
}
