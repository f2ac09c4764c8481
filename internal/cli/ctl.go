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

	"github.com/spf13/cobra"

	"github.com/tombarlow/storeharvester/internal/client"
)

// ctlFlags holds the connection options shared by every "ctl" subcommand.
// They override HARVESTER_HOST/HARVESTER_API_KEY when set, matching the
// CLI-flag-over-environment precedence the rest of this command tree uses.
type ctlFlags struct {
	host   string
	apiKey string
}

func (f *ctlFlags) newClient() (*client.Client, error) {
	if f.host == "" && f.apiKey == "" {
		return client.FromEnvironment()
	}

	transport, err := client.ParseHarvesterHost(f.host)
	if err != nil {
		return nil, err
	}
	opts := []client.Option{client.WithTransport(transport)}
	if f.apiKey != "" {
		opts = append(opts, client.WithAPIKey(f.apiKey))
	}
	return client.New(opts...)
}

// NewCtlCommand builds the "ctl" command group: a thin wrapper over
// internal/client that drives a remote control API server the way "run" and
// "status" drive the local filesystem, for operators who run the server
// subcommand on a separate host.
func NewCtlCommand(rootFlags *Flags) *cobra.Command {
	cf := &ctlFlags{}

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a remote storeharvester server over its control API",
	}
	cmd.PersistentFlags().StringVar(&cf.host, "host", "", "control API address, e.g. tcp://host:8080 (default: $HARVESTER_HOST)")
	cmd.PersistentFlags().StringVar(&cf.apiKey, "api-key", "", "bearer token for the control API (default: $HARVESTER_API_KEY)")

	cmd.AddCommand(newCtlStatusCommand(cf))
	cmd.AddCommand(newCtlStartCommand(cf))
	cmd.AddCommand(newCtlStopCommand(cf))
	cmd.AddCommand(newCtlRestartCommand(cf))

	return cmd
}

func newCtlStatusCommand(cf *ctlFlags) *cobra.Command {
	var retailer string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show live run status from a remote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cf.newClient()
			if err != nil {
				return NewConfigError("connecting to control API", err)
			}
			statuses, err := c.GetStatus(cmd.Context(), retailer)
			if err != nil {
				return NewConfigError("fetching status", err)
			}
			if len(statuses) == 0 {
				fmt.Println(mutedStyle.Render("no active runs"))
				return nil
			}
			fmt.Println(headerStyle.Render(fmt.Sprintf("%-25s %-10s %-20s %6s", "RETAILER", "RUNNING", "RUN_ID", "PID")))
			for _, s := range statuses {
				fmt.Printf("%-25s %-10s %-20s %6d\n", s.Retailer, renderBool(s.Running), s.RunID, s.PID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&retailer, "retailer", "", "limit to a single retailer")
	return cmd
}

func newCtlStartCommand(cf *ctlFlags) *cobra.Command {
	var req client.StartScraperRequest
	cmd := &cobra.Command{
		Use:   "start <retailer>",
		Short: "Start a retailer's run on a remote server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Retailer = args[0]
			c, err := cf.newClient()
			if err != nil {
				return NewConfigError("connecting to control API", err)
			}
			result, err := c.StartScraper(cmd.Context(), req)
			if err != nil {
				return NewSomeFailedError("starting remote run", err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().BoolVar(&req.Resume, "resume", false, "load the checkpoint and skip completed identifiers")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "cap the number of identifiers extracted")
	cmd.Flags().BoolVar(&req.Test, "test", false, "equivalent to --limit 10")
	cmd.Flags().StringVar(&req.Proxy, "proxy", "", "transport mode override")
	cmd.Flags().BoolVar(&req.RenderJS, "render-js", false, "render JavaScript; only valid with --proxy web_scraper_api")
	cmd.Flags().StringVar(&req.ProxyCountry, "proxy-country", "", "two-letter country code")
	return cmd
}

func newCtlStopCommand(cf *ctlFlags) *cobra.Command {
	var timeout string
	cmd := &cobra.Command{
		Use:   "stop <retailer>",
		Short: "Stop a retailer's active run on a remote server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cf.newClient()
			if err != nil {
				return NewConfigError("connecting to control API", err)
			}
			result, err := c.StopScraper(cmd.Context(), args[0], timeout)
			if err != nil {
				return NewSomeFailedError("stopping remote run", err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&timeout, "timeout", "30s", "grace period before the server forces termination")
	return cmd
}

func newCtlRestartCommand(cf *ctlFlags) *cobra.Command {
	var proxy, timeout string
	cmd := &cobra.Command{
		Use:   "restart <retailer>",
		Short: "Restart a retailer's run on a remote server with --resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cf.newClient()
			if err != nil {
				return NewConfigError("connecting to control API", err)
			}
			result, err := c.RestartScraper(cmd.Context(), args[0], proxy, timeout)
			if err != nil {
				return NewSomeFailedError("restarting remote run", err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&proxy, "proxy", "", "transport mode override")
	cmd.Flags().StringVar(&timeout, "timeout", "30s", "grace period before the server forces termination")
	return cmd
}

func renderBool(b bool) string {
	if b {
		return statusOK.Render("yes")
	}
	return statusFailed.Render("no")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
