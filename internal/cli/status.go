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

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombarlow/storeharvester/internal/retailer"
	"github.com/tombarlow/storeharvester/internal/runtracker"
)

// NewStatusCommand builds the "status" subcommand, printing each
// retailer's most recent run per the --status flag's behavior.
func NewStatusCommand(rootFlags *Flags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the most recent run status for every registered retailer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootFlags, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func runStatus(rootFlags *Flags, format string) error {
	rt, err := bootstrap(rootFlags)
	if err != nil {
		return err
	}

	names := retailer.Names()
	rows := make([]*runtracker.Metadata, 0, len(names))
	for _, name := range names {
		runsDir := filepath.Join(rt.DataDir, name, "runs")
		runs, err := runtracker.ListRuns(runsDir, 1)
		if err != nil {
			return NewConfigError(fmt.Sprintf("listing runs for %q", name), err)
		}
		if len(runs) == 0 {
			rows = append(rows, &runtracker.Metadata{Retailer: name, Status: "never_run"})
			continue
		}
		rows = append(rows, runs[0])
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-25s %-12s %-20s %10s %10s", "RETAILER", "STATUS", "RUN_ID", "STORES", "ERRORS")))
	for _, m := range rows {
		status := string(m.Status)
		if m.Status == runtracker.StatusComplete {
			status = statusOK.Render(status)
		} else if m.Status == runtracker.StatusFailed {
			status = statusFailed.Render(status)
		} else {
			status = mutedStyle.Render(status)
		}
		fmt.Printf("%-25s %-12s %-20s %10d %10d\n", m.Retailer, status, m.RunID, m.Stats.StoresScraped, m.Stats.Errors)
	}
	return nil
}
