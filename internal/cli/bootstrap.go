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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tombarlow/storeharvester/internal/config"
	harvesterlog "github.com/tombarlow/storeharvester/internal/log"
	"github.com/tombarlow/storeharvester/internal/retailer"

	// Registers the harvester's built-in example retailers. A
	// config/retailers.yaml on disk, if present, replaces this set entirely
	// once loaded in bootstrap.
	_ "github.com/tombarlow/storeharvester/internal/retailers"
)

// runtime bundles everything a subcommand needs after bootstrap: the
// resolved settings, the data directory, and a logger already configured
// per settings.log / --verbose.
type runtime struct {
	Settings *config.Config
	DataDir  string
	Logger   *slog.Logger
}

// bootstrap loads settings.yaml (or defaults), applies DATA_DIR/LOG_LEVEL
// env overrides and the --data-dir/--verbose flags, sets up process-wide
// logging, and loads config/retailers.yaml over the built-in registry if
// it exists.
func bootstrap(flags *Flags) (*runtime, error) {
	settingsPath := flags.ConfigPath
	if settingsPath == "" {
		settingsPath = "config/settings.yaml"
	}

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, NewConfigError("loading settings", err)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		settings.Log.Level = v
	}
	if flags.Verbose {
		settings.Log.Level = "debug"
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		settings.DataDir = v
	}
	if flags.DataDir != "" {
		settings.DataDir = flags.DataDir
	}

	if err := settings.Validate(); err != nil {
		return nil, NewConfigError("invalid settings", err)
	}

	logger := harvesterlog.Setup(harvesterlog.SetupOptions{
		Level:        settings.Log.Level,
		Format:       harvesterlog.Format(settings.Log.Format),
		AddSource:    settings.Log.AddSource,
		FilePath:     filepath.Join("logs", "scraper.log"),
		FileMaxBytes: 10 * 1024 * 1024,
		FileMaxBackups: 5,
	})

	retailersPath := "config/retailers.yaml"
	if f, err := retailer.LoadFile(retailersPath); err == nil {
		retailer.ReplaceAll(f.Retailers)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, NewConfigError(fmt.Sprintf("loading %s", retailersPath), err)
	}

	return &runtime{Settings: settings, DataDir: settings.DataDir, Logger: logger}, nil
}
