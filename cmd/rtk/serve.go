// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heAdz0r/rtk-sub001/internal/daemon"
)

// newServeCmd starts the loopback HTTP daemon (spec §4.8). Shutdown on
// SIGINT/SIGTERM is cooperative via signal.NotifyContext, the modern
// replacement for the teacher's cmd/cie/serve.go signal.Notify + manual
// goroutine/select wiring.
func newServeCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the memory engine as a loopback HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = built.Close() }()

			idleTimeout := time.Duration(flags.idleSecs) * time.Second
			srv, err := daemon.New(built.Engine, daemon.Options{
				Port:        flags.port,
				IdleTimeout: idleTimeout,
				Logger:      slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("build daemon: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "rtk daemon listening on :%d (idle timeout %s)\n", flags.port, idleTimeout)
			return srv.Serve(ctx)
		},
	}
}
