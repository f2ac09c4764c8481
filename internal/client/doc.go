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

/*
Package client provides an HTTP client for the harvester control API.

This package enables CLI commands and other tools to communicate with the
harvester control daemon over its REST API. It supports both Unix socket and
TCP connections, with automatic daemon startup if configured.

# Basic Usage

Create a client and make requests:

	c, err := client.New()
	if err != nil {
	    log.Fatal(err)
	}

	// Start a retailer's scrape
	_, err = c.StartScraper(ctx, client.StartScraperRequest{Retailer: "verizon"})

	// Get run status
	statuses, err := c.GetStatus(ctx, "verizon")

	// List recent runs
	runs, err := c.GetRuns(ctx, "verizon", 20)

# Connection Options

Configure the client with options:

	// Use API key authentication
	c, _ := client.New(client.WithAPIKey("my-api-key"))

	// Use custom transport (e.g., for testing)
	c, _ := client.New(client.WithTransport(customTransport))

	// Use custom HTTP client
	c, _ := client.New(client.WithHTTPClient(httpClient))

# Transport

The default transport connects via Unix socket:

	$XDG_RUNTIME_DIR/harvester/harvester.sock  (when XDG_RUNTIME_DIR is set)
	~/.harvester/harvester.sock                 (otherwise)

Override with HARVESTER_HOST environment variable (unix://, tcp:// or
https://; plain http:// is rejected):

	export HARVESTER_HOST=tcp://localhost:8080

# Auto-Start

When the daemon isn't running and auto-start is configured, the client
attempts to start it automatically:

	// Ensure the daemon is running (starts it if needed)
	c, err := client.EnsureDaemon(client.AutoStartConfig{
	    Enabled: true,
	})
	if err != nil {
	    log.Fatal(err)
	}

Platform-specific implementations in autostart_*.go handle daemon spawning.

# API Methods

The client provides methods matching the control API's REST surface:

  - GetStatus: global or per-retailer run status
  - StartScraper, StopScraper, RestartScraper: lifecycle control
  - GetRuns: recent run metadata for a retailer
  - GetLogs: tail or byte-offset slice of a run's log
  - GetConfig, SaveConfig: read and atomically replace retailers.yaml
  - Export, ExportMulti: download rendered store data
*/
package client
