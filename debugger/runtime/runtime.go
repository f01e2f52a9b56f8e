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

// Package runtime drives a replay engine the way a debugger user does:
// continue, step over, step in and step out, stopping at source
// breakpoints.
package runtime

import (
	"fmt"
	goruntime "runtime"

	"github.com/algorand/avm-debugger/debugger/replay"
	"github.com/algorand/avm-debugger/logging"
	"github.com/algorand/avm-debugger/util/metrics"
)

var stopEvents = metrics.NewTagCounter(metrics.RuntimeStopEvents, "kind")

// StopKind is the reason a stepping operation returned control.
type StopKind int

const (
	// StopOnEntry is reported when the replay is at its first position.
	StopOnEntry StopKind = iota
	// StopOnStep is reported when a step completed.
	StopOnStep
	// StopOnBreakpoint is reported when a breakpoint was hit.
	StopOnBreakpoint
	// StopOnException is reported on a failure recorded in the trace.
	StopOnException
	// StopEnd is reported when the replay ran past its last position.
	StopEnd
	// StopError is reported when the engine failed.
	StopError
)

func (k StopKind) String() string {
	switch k {
	case StopOnEntry:
		return "entry"
	case StopOnStep:
		return "step"
	case StopOnBreakpoint:
		return "breakpoint"
	case StopOnException:
		return "exception"
	case StopEnd:
		return "end"
	case StopError:
		return "error"
	}
	return fmt.Sprintf("StopKind(%d)", int(k))
}

// StopEvent is the single outcome of a stepping operation.
type StopEvent struct {
	Kind         StopKind
	BreakpointID int
	Message      string
	Err          error
}

// Runtime holds the breakpoints of a session and steps its engine.
// It is not safe for concurrent use.
type Runtime struct {
	log    logging.Logger
	engine *replay.Engine

	windows               bool
	breakpoints           map[string][]*Breakpoint
	nextBreakpointID      int
	onBreakpointValidated func(Breakpoint)
}

// MakeRuntime returns a Runtime stepping engine.
func MakeRuntime(engine *replay.Engine, log logging.Logger) *Runtime {
	if log == nil {
		log = logging.Base()
	}
	return &Runtime{
		log:              log,
		engine:           engine,
		windows:          goruntime.GOOS == "windows",
		breakpoints:      make(map[string][]*Breakpoint),
		nextBreakpointID: 1,
	}
}

// OnBreakpointValidated registers fn to be called when a breakpoint becomes
// verified after it was set.
func (r *Runtime) OnBreakpointValidated(fn func(Breakpoint)) {
	r.onBreakpointValidated = fn
}

// Engine returns the engine the runtime steps.
func (r *Runtime) Engine() *replay.Engine {
	return r.engine
}

// Reset removes every breakpoint and unloads the engine.
func (r *Runtime) Reset() {
	r.breakpoints = make(map[string][]*Breakpoint)
	r.nextBreakpointID = 1
	r.engine.Reset()
}

// Start begins a session. In debug mode every breakpoint is verified
// against the loaded sources first, and stopOnEntry stops before the first
// step. Otherwise the replay runs until it stops.
func (r *Runtime) Start(stopOnEntry, debug bool) StopEvent {
	if !debug {
		return r.Continue(false)
	}
	for _, d := range r.engine.Descriptors() {
		for _, path := range d.SourcePaths() {
			r.verifyBreakpoints(r.normalizePath(path), false)
		}
	}
	if stopOnEntry {
		return r.stop(StopEvent{Kind: StopOnEntry})
	}
	return r.Continue(false)
}

// step moves the engine once. It returns the stop event when the move
// ended the operation.
func (r *Runtime) step(reverse bool) (StopEvent, bool) {
	var res replay.Result
	var err error
	if reverse {
		res, err = r.engine.Backward()
	} else {
		res, err = r.engine.Forward()
	}
	if err != nil {
		return StopEvent{Kind: StopError, Message: err.Error(), Err: err}, true
	}
	switch res.Kind {
	case replay.ResultEnd:
		if reverse {
			return StopEvent{Kind: StopOnEntry}, true
		}
		return StopEvent{Kind: StopEnd}, true
	case replay.ResultException:
		return StopEvent{Kind: StopOnException, Message: res.Exception.Message}, true
	}
	if bp, ok := r.hitBreakpoint(); ok {
		return StopEvent{Kind: StopOnBreakpoint, BreakpointID: bp.ID}, true
	}
	return StopEvent{}, false
}

// Continue runs until a breakpoint, a recorded failure, or either end of
// the replay.
func (r *Runtime) Continue(reverse bool) StopEvent {
	for {
		if ev, stop := r.step(reverse); stop {
			return r.stop(ev)
		}
	}
}

// Step steps over: it moves until the stack is no deeper than where it
// started.
func (r *Runtime) Step(reverse bool) StopEvent {
	target := r.engine.Depth()
	for {
		if ev, stop := r.step(reverse); stop {
			return r.stop(ev)
		}
		if r.engine.Depth() <= target {
			return r.stop(StopEvent{Kind: StopOnStep})
		}
	}
}

// StepIn moves exactly one step forward.
func (r *Runtime) StepIn() StopEvent {
	if ev, stop := r.step(false); stop {
		return r.stop(ev)
	}
	return r.stop(StopEvent{Kind: StopOnStep})
}

// StepOut moves forward until the current frame has returned. From the
// outermost frame it continues to the end.
func (r *Runtime) StepOut() StopEvent {
	target := r.engine.Depth() - 1
	if target <= 0 {
		return r.Continue(false)
	}
	for r.engine.Depth() > target {
		if ev, stop := r.step(false); stop {
			return r.stop(ev)
		}
	}
	return r.stop(StopEvent{Kind: StopOnStep})
}

func (r *Runtime) stop(ev StopEvent) StopEvent {
	stopEvents.Inc(ev.Kind.String())
	switch ev.Kind {
	case StopError:
		r.log.Errorf("replay stopped on error: %v", ev.Err)
	case StopOnException:
		r.log.Infof("replay stopped on exception: %s", ev.Message)
	default:
		r.log.Debugf("replay stopped: %v (breakpoint %d)", ev.Kind, ev.BreakpointID)
	}
	return ev
}
