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
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombarlow/storeharvester/internal/harvest"
	"github.com/tombarlow/storeharvester/internal/orchestrator"
	"github.com/tombarlow/storeharvester/internal/runmanager"
)

// runFlags holds the run command's own flags, distinct from the root
// command's persistent ones.
type runFlags struct {
	all          bool
	retailer     string
	group        string
	exclude      string
	resume       bool
	incremental  bool
	limit        int
	test         bool
	proxy        string
	renderJS     bool
	proxyCountry string
	validate     bool
}

// NewRunCommand builds the "run" subcommand, the harvester's primary entry
// point: select a set of retailers, fan their runs out across a bounded
// worker pool, and exit with the code the requirements document's external
// interfaces section specifies.
func NewRunCommand(rootFlags *Flags) *cobra.Command {
	rf := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one or more retailer harvests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), rootFlags, rf)
		},
	}

	cmd.Flags().BoolVar(&rf.all, "all", false, "run every enabled retailer")
	cmd.Flags().StringVar(&rf.retailer, "retailer", "", "run a single retailer by name")
	cmd.Flags().StringVar(&rf.group, "group", "", "run every enabled retailer in a named group")
	cmd.Flags().StringVar(&rf.exclude, "exclude", "", "comma-separated retailer names to exclude from the selection")
	cmd.Flags().BoolVar(&rf.resume, "resume", false, "load the checkpoint before discovery and skip completed identifiers")
	cmd.Flags().BoolVar(&rf.incremental, "incremental", false, "skip stores already present in stores_latest.json")
	cmd.Flags().IntVar(&rf.limit, "limit", 0, "cap the number of identifiers extracted per retailer")
	cmd.Flags().BoolVar(&rf.test, "test", false, "equivalent to --limit 10")
	cmd.Flags().StringVar(&rf.proxy, "proxy", "", "transport mode override: direct, residential, or web_scraper_api")
	cmd.Flags().BoolVar(&rf.renderJS, "render-js", false, "render JavaScript; only valid with --proxy web_scraper_api")
	cmd.Flags().StringVar(&rf.proxyCountry, "proxy-country", "", "two-letter country code for residential/API proxy modes")
	cmd.Flags().BoolVar(&rf.validate, "validate", false, "run with --limit 3 and report required-field coverage instead of committing output")

	return cmd
}

func runRun(ctx context.Context, rootFlags *Flags, rf *runFlags) error {
	if err := validateProxyRenderJS(rf.proxy, rf.renderJS); err != nil {
		return NewInvalidArgsError("invalid flag combination", err)
	}
	if rf.proxy != "" {
		switch rf.proxy {
		case "direct", "residential", "web_scraper_api":
		default:
			return NewInvalidArgsError("invalid --proxy value", fmt.Errorf("%q is not one of direct, residential, web_scraper_api", rf.proxy))
		}
	}

	rt, err := bootstrap(rootFlags)
	if err != nil {
		return err
	}

	sel := orchestrator.Selection{
		All:      rf.all,
		Retailer: rf.retailer,
		Group:    rf.group,
		Exclude:  splitCommaList(rf.exclude),
	}
	names, err := orchestrator.Resolve(sel)
	if err != nil {
		return NewInvalidArgsError("resolving retailer selection", err)
	}
	if len(names) == 0 {
		return NewInvalidArgsError("no retailers selected", fmt.Errorf("selection matched zero enabled retailers"))
	}

	limit := rf.limit
	test := rf.test
	if rf.validate {
		limit = 3
		test = false
	}

	opts := runmanager.Options{
		Resume:       rf.resume,
		Incremental:  rf.incremental,
		Limit:        limit,
		Test:         test,
		ProxyMode:    effectiveProxyMode(rf.proxy),
		RenderJS:     effectiveRenderJS(rf.renderJS),
		ProxyCountry: effectiveProxyCountry(rf.proxyCountry),
		DryRun:       rf.validate,
	}

	driver := harvest.New(rt.DataDir, harvest.Defaults{
		ProxyMode:    os.Getenv("PROXY_MODE"),
		ProxyCountry: os.Getenv("OXY_COUNTRY"),
		RenderJS:     os.Getenv("OXY_RENDER_JS") == "true" || os.Getenv("OXY_RENDER_JS") == "1",
	}, rt.Logger)

	report, err := orchestrator.Run(ctx, rt.DataDir, names, opts, driver.RunFunc(), rt.Settings.Concurrency.MaxRetailers, rt.Logger)
	if err != nil {
		return NewConfigError("running selected retailers", err)
	}

	if rf.validate {
		return reportValidation(report)
	}

	printReport(report)
	if code := report.ExitCode(); code != 0 {
		return NewSomeFailedError(report.String(), nil)
	}
	return nil
}

// validateProxyRenderJS is the CLI-side half of the --render-js/--proxy
// coupling rule; the HTTP control API enforces the same rule independently
// in internal/controlapi/scraper.go's validateProxyRenderJS.
func validateProxyRenderJS(proxy string, renderJS bool) error {
	if renderJS && proxy != "web_scraper_api" {
		return fmt.Errorf("--render-js requires --proxy web_scraper_api")
	}
	return nil
}

func effectiveProxyMode(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("PROXY_MODE")
}

func effectiveRenderJS(flag bool) bool {
	if flag {
		return true
	}
	v := os.Getenv("OXY_RENDER_JS")
	return v == "true" || v == "1"
}

func effectiveProxyCountry(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("OXY_COUNTRY")
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printReport(report orchestrator.Report) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-30s %-10s %s", "RETAILER", "STATUS", "DETAIL")))
	for _, o := range report.Outcomes {
		label := renderStatusLabel(o.Err == nil)
		if o.Err != nil {
			fmt.Printf("%-30s %s %s (%s)\n", o.Retailer, label, o.Err, o.Duration.Round(1e6))
		} else {
			fmt.Printf("%-30s %s %s\n", o.Retailer, label, o.Duration.Round(1e6))
		}
	}
	fmt.Println(mutedStyle.Render(report.String()))
}

// reportValidation implements --validate: pass/fail on whether every
// selected retailer's limited run produced a non-empty store list with no
// run-level failure. It never returns ExitSomeFailed for individual store
// field problems, since scraperkind.Framework already drops invalid stores
// before they reach the report.
func reportValidation(report orchestrator.Report) error {
	var failed []string
	for _, o := range report.Outcomes {
		switch {
		case o.Err != nil:
			failed = append(failed, fmt.Sprintf("%s: %v", o.Retailer, o.Err))
		case o.StoresScraped == 0:
			failed = append(failed, fmt.Sprintf("%s: produced no stores", o.Retailer))
		}
	}
	if len(failed) > 0 {
		return NewSomeFailedError("validation failed", errors.New(strings.Join(failed, "; ")))
	}
	fmt.Println("validation passed: " + strconv.Itoa(len(report.Outcomes)) + " retailer(s)")
	return nil
}
