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
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombarlow/storeharvester/internal/controlapi"
	"github.com/tombarlow/storeharvester/internal/controller/middleware"
	"github.com/tombarlow/storeharvester/internal/harvest"
	"github.com/tombarlow/storeharvester/internal/runmanager"
)

// NewServerCommand builds the "server" subcommand, running the control
// API's HTTP server in the foreground until interrupted.
func NewServerCommand(rootFlags *Flags) *cobra.Command {
	var listen string
	var allowRemote bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), rootFlags, listen, allowRemote)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override control_api.listen from settings.yaml")
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false, "allow connections from outside localhost")
	return cmd
}

func runServer(ctx context.Context, rootFlags *Flags, listenOverride string, allowRemote bool) error {
	rt, err := bootstrap(rootFlags)
	if err != nil {
		return err
	}

	listen := rt.Settings.ControlAPI.Listen
	if listenOverride != "" {
		listen = listenOverride
	}

	driver := harvest.New(rt.DataDir, harvest.Defaults{
		ProxyMode:    rt.Settings.Transport.ProxyMode,
		ProxyCountry: rt.Settings.Transport.ProxyCountry,
		RenderJS:     rt.Settings.Transport.RenderJS,
	}, rt.Logger)

	manager := runmanager.New(rt.DataDir, driver.RunFunc(), rt.Logger)

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return NewConfigError("generating CSRF secret", err)
	}

	server := controlapi.New(controlapi.Config{
		Listen:      listen,
		AllowRemote: allowRemote || rt.Settings.ControlAPI.AllowRemote,
		CSRFSecret:  secret,
		CORS:        middleware.DefaultCORSConfig(),
		RateRPS:     5,
		RateBurst:   10,
		DataDir:     rt.DataDir,
		ConfigPath:  "config/retailers.yaml",
		BackupDir:   "config/backups",
	}, manager, rt.Logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return NewConfigError("control api server", err)
		}
		return nil
	case <-sigCh:
		rt.Logger.Info("shutdown signal received, stopping control api")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down control api: %w", err)
	}
	return nil
}
