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

// Package main implements the rtk CLI: a `memory` command tree driving the
// local per-developer memory engine for coding agents (spec §6). Flags and
// the closed verb set are detailed in cmd/rtk/memory.go.
//
// Usage:
//
//	rtk memory explore --project .
//	rtk memory serve --port 8717
package main

import (
	"fmt"
	"os"
)

// exitHardFailure/exitDoctorWarnings mirror spec §6's closed exit-code set:
// 0 success, 1 hard failure (including strict-mode freshness rejection),
// 2 warnings present (doctor only).
const (
	exitOK             = 0
	exitHardFailure    = 1
	exitDoctorWarnings = 2
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rtk:", err)
		os.Exit(exitHardFailure)
	}
}
