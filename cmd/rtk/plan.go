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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heAdz0r/rtk-sub001/internal/engine"
	"github.com/heAdz0r/rtk-sub001/internal/freshness"
)

func newPlanCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "run the task-conditioned planner over a project (PlanContext)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.task == "" {
				return fmt.Errorf("--task is required")
			}

			built, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = built.Close() }()

			base, err := flags.toEngineRequest(cmd, built.Config)
			if err != nil {
				return err
			}
			mlMode, err := flags.parseMLMode()
			if err != nil {
				return err
			}

			plan, err := built.Engine.PlanContext(cmd.Context(), engine.PlanRequest{
				Request:         base,
				Task:            flags.task,
				TokenBudget:     flags.tokenBudget,
				LatencyBudgetMs: flags.latencyBudgetMs,
				MLMode:          mlMode,
			})
			if err != nil {
				var strictErr *freshness.StrictnessError
				if errors.As(err, &strictErr) {
					return fmt.Errorf("strict mode rejected: %w", err)
				}
				return err
			}

			if flags.format == "json" {
				return printJSON(cmd, plan)
			}
			return printResult(cmd, flags.format, plan.Result)
		},
	}
}
