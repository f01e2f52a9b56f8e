// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

// Package metrics provides the debugger's Prometheus metrics: thin wrappers
// over client_golang collectors registered in one registry.
package metrics

// MetricName describes the name and description of a single metric
type MetricName struct {
	Name        string
	Description string
}

var (
	// ReplayForwardSteps Number of engine forward steps
	ReplayForwardSteps = MetricName{Name: "avmdbg_replay_forward_steps_total", Description: "Number of engine forward steps"}
	// ReplayBackwardSteps Number of engine backward steps
	ReplayBackwardSteps = MetricName{Name: "avmdbg_replay_backward_steps_total", Description: "Number of engine backward steps"}
	// ReplayUnitsReplayed Number of trace units re-applied while stepping backward
	ReplayUnitsReplayed = MetricName{Name: "avmdbg_replay_units_replayed_total", Description: "Number of trace units re-applied while stepping backward"}
	// ReplayStackDepth Current depth of the frame stack
	ReplayStackDepth = MetricName{Name: "avmdbg_replay_stack_depth", Description: "Current depth of the frame stack"}
	// RuntimeStopEvents Number of stop events by kind
	RuntimeStopEvents = MetricName{Name: "avmdbg_runtime_stop_events_total", Description: "Number of stop events by kind"}
	// DAPRequests Number of debug adapter requests by command
	DAPRequests = MetricName{Name: "avmdbg_dap_requests_total", Description: "Number of debug adapter requests by command"}
	// DAPSessions Number of open debug adapter sessions
	DAPSessions = MetricName{Name: "avmdbg_dap_sessions", Description: "Number of open debug adapter sessions"}
)
