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

// Package replay walks a recorded simulate trace forward and backward,
// reconstructing program and application state from the recorded deltas.
package replay

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/algorand/avm-debugger/data/appstate"
	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/data/simulation"
	"github.com/algorand/avm-debugger/logging"
	"github.com/algorand/avm-debugger/util/metrics"
)

var forwardSteps = metrics.MakeCounter(metrics.ReplayForwardSteps)
var backwardSteps = metrics.MakeCounter(metrics.ReplayBackwardSteps)
var unitsReplayed = metrics.MakeCounter(metrics.ReplayUnitsReplayed)
var stackDepth = metrics.MakeGauge(metrics.ReplayStackDepth)

// ResultKind is the outcome of one engine step.
type ResultKind int

const (
	// ResultOK means the step landed on a new position.
	ResultOK ResultKind = iota
	// ResultEnd means the walk left the recorded execution, at either end.
	ResultEnd
	// ResultException means the step reached a failure recorded in the trace.
	ResultException
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultEnd:
		return "end"
	case ResultException:
		return "exception"
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// Result is the outcome of Forward or Backward.
type Result struct {
	Kind      ResultKind
	Exception *ExceptionInfo
}

// AppStates holds the state of every application touched by the trace.
type AppStates map[uint64]*appstate.AppState

// Clone deep copies every application state.
func (s AppStates) Clone() AppStates {
	res := make(AppStates, len(s))
	for id, st := range s {
		res[id] = st.Clone()
	}
	return res
}

// Engine owns the frame stack and the reconstructed application state of
// one trace. It is not safe for concurrent use.
type Engine struct {
	log logging.Logger

	response    *simulation.SimulateResponse
	descriptors basics.ByteMap[*ProgramSourceDescriptor]

	initialAppState AppStates
	currentAppState AppStates

	root  resumable
	stack *Stack
	atEnd bool
}

// MakeEngine creates an engine with nothing loaded.
func MakeEngine(log logging.Logger) *Engine {
	if log == nil {
		log = logging.Base()
	}
	return &Engine{log: log}
}

// LoadResources prepares resp for replay. Program hashes with no entry in
// registry are recorded as unresolved. On error the engine is left unloaded.
func (e *Engine) LoadResources(resp *simulation.SimulateResponse, registry *DescriptorRegistry) error {
	e.reset()
	if len(resp.TxnGroups) == 0 {
		return fmt.Errorf("simulate response has no transaction groups")
	}

	e.initialAppState = make(AppStates)
	if resp.InitialStates != nil {
		for _, initial := range resp.InitialStates.AllAppsInitialStates {
			e.initialAppState[initial.AppID] = appstate.FromInitialState(initial)
		}
	}

	for gi := range resp.TxnGroups {
		group := &resp.TxnGroups[gi]
		for ti := range group.Txns {
			txn := &group.Txns[ti]
			if txn.Trace == nil {
				continue
			}
			err := e.setupTxnTrace(registry, simulation.TxnPath{uint64(gi), uint64(ti)}, txn.Txn, txn.Trace)
			if err != nil {
				e.reset()
				return err
			}
		}
	}

	e.response = resp
	e.setStartingStack()
	e.log.Infof("loaded trace with %d groups, %d apps, %d programs", len(resp.TxnGroups), len(e.initialAppState), e.descriptors.Len())
	return nil
}

func (e *Engine) setupTxnTrace(registry *DescriptorRegistry, path simulation.TxnPath, txn simulation.PendingTransaction, trace *simulation.TransactionTrace) error {
	if trace.HasLogicSig() {
		e.fetchSource(registry, trace.LogicSigHash)
	}
	for _, program := range []struct {
		units []simulation.OpcodeTraceUnit
		hash  []byte
	}{
		{trace.ApprovalProgramTrace, trace.ApprovalProgramHash},
		{trace.ClearStateProgramTrace, trace.ClearStateProgramHash},
	} {
		if len(program.units) == 0 {
			continue
		}
		e.fetchSource(registry, program.hash)
		appID := txn.AppID()
		if appID == 0 {
			return &MalformedTraceError{Path: path, Reason: "application program traced without an app id"}
		}
		initial, ok := e.initialAppState[appID]
		if !ok {
			initial = appstate.New()
			e.initialAppState[appID] = initial
		}
		for _, unit := range program.units {
			for _, change := range unit.StateChanges {
				if change.AppState == simulation.LocalState && change.Account != "" {
					initial.Local(change.Account)
				}
			}
		}
	}
	for i := range trace.InnerTraces {
		if i >= len(txn.InnerTxns) {
			return &MalformedTraceError{Path: path, Reason: fmt.Sprintf("inner trace %d has no inner transaction", i)}
		}
		if err := e.setupTxnTrace(registry, path.Child(uint64(i)), txn.InnerTxns[i], &trace.InnerTraces[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fetchSource(registry *DescriptorRegistry, hash []byte) {
	if e.descriptors.Has(hash) {
		return
	}
	d := registry.FindByHash(hash)
	if d == nil {
		e.log.Warnf("no source map for program %x", hash)
	}
	e.descriptors.Set(hash, d)
}

func (e *Engine) reset() {
	e.response = nil
	e.descriptors = basics.ByteMap[*ProgramSourceDescriptor]{}
	e.initialAppState = nil
	e.currentAppState = nil
	e.root = nil
	e.stack = nil
	e.atEnd = false
}

func (e *Engine) setStartingStack() {
	e.currentAppState = e.initialAppState.Clone()
	e.stack = &Stack{}
	e.atEnd = false
	if len(e.response.TxnGroups) == 1 {
		e.root = newTopLevelTxnGroupFrame(e, 0)
	} else {
		e.root = newTopLevelGroupsFrame(e)
	}
	e.stack.Push(e.root)
	stackDepth.Set(float64(e.stack.Len()))
}

// Loaded reports whether LoadResources succeeded.
func (e *Engine) Loaded() bool {
	return e.stack != nil
}

// Reset unloads the trace. LoadResources must be called again before
// stepping.
func (e *Engine) Reset() {
	e.reset()
	stackDepth.Set(0)
}

// Forward takes one observable step forward.
func (e *Engine) Forward() (Result, error) {
	if e.stack == nil {
		return Result{}, ErrNotLoaded
	}
	forwardSteps.Inc()
	res, err := e.forward()
	stackDepth.Set(float64(e.stack.Len()))
	if err != nil {
		e.log.Errorf("forward step failed: %v", err)
	} else if res.Kind != ResultOK {
		e.log.Debugf("forward step: %v", res.Kind)
	}
	return res, err
}

func (e *Engine) forward() (Result, error) {
	if e.stack.Len() == 0 {
		return Result{Kind: ResultEnd}, nil
	}
	for {
		length := e.stack.Len()
		exc, err := e.stack.Top().forward(e.stack)
		if err != nil {
			return Result{}, err
		}
		if exc != nil {
			return Result{Kind: ResultException, Exception: exc}, nil
		}
		if e.stack.Len() == 0 {
			e.atEnd = true
			return Result{Kind: ResultEnd}, nil
		}
		if e.stack.Len() >= length {
			return Result{Kind: ResultOK}, nil
		}
	}
}

// Backward takes one observable step backward. Stepping back from the first
// position resets the engine to its starting stack and reports the end.
func (e *Engine) Backward() (Result, error) {
	if e.stack == nil {
		return Result{}, ErrNotLoaded
	}
	backwardSteps.Inc()
	res, err := e.backward()
	stackDepth.Set(float64(e.stack.Len()))
	if err != nil {
		e.log.Errorf("backward step failed: %v", err)
	} else if res.Kind != ResultOK {
		e.log.Debugf("backward step: %v", res.Kind)
	}
	return res, err
}

func (e *Engine) backward() (Result, error) {
	if e.stack.Len() == 0 {
		if !e.atEnd {
			e.setStartingStack()
			return Result{Kind: ResultEnd}, nil
		}
		e.atEnd = false
		exc, err := e.root.resume(e.stack)
		if err != nil {
			return Result{}, err
		}
		if exc != nil {
			return Result{Kind: ResultException, Exception: exc}, nil
		}
		return Result{Kind: ResultOK}, nil
	}
	for {
		length := e.stack.Len()
		exc, err := e.stack.Top().backward(e.stack)
		if err != nil {
			return Result{}, err
		}
		if e.stack.Len() == 0 {
			e.setStartingStack()
			if exc != nil {
				return Result{Kind: ResultException, Exception: exc}, nil
			}
			return Result{Kind: ResultEnd}, nil
		}
		if exc != nil {
			return Result{Kind: ResultException, Exception: exc}, nil
		}
		if e.stack.Len() >= length {
			return Result{Kind: ResultOK}, nil
		}
	}
}

// Stack returns the frames of the replay stack, bottom first.
func (e *Engine) Stack() []Frame {
	if e.stack == nil {
		return nil
	}
	return e.stack.Frames()
}

// Depth returns the current stack depth.
func (e *Engine) Depth() int {
	if e.stack == nil {
		return 0
	}
	return e.stack.Len()
}

// CurrentFrame returns the top frame, or nil past the end.
func (e *Engine) CurrentFrame() Frame {
	if e.stack == nil {
		return nil
	}
	return e.stack.Top()
}

// Response returns the loaded trace.
func (e *Engine) Response() *simulation.SimulateResponse {
	return e.response
}

// InitialAppState returns the state of every app before the trace.
func (e *Engine) InitialAppState() AppStates {
	return e.initialAppState
}

// CurrentAppState returns the state of every app at the current step.
// Callers must not modify it.
func (e *Engine) CurrentAppState() AppStates {
	return e.currentAppState
}

// AppIDs returns the ids of every app touched by the trace, sorted.
func (e *Engine) AppIDs() []uint64 {
	ids := make([]uint64, 0, len(e.currentAppState))
	for id := range e.currentAppState {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Descriptor returns the source descriptor of the program with the given
// hash, or nil if it has none.
func (e *Engine) Descriptor(hash []byte) *ProgramSourceDescriptor {
	d, _ := e.descriptors.Get(hash)
	return d
}

// Descriptors returns every resolved source descriptor used by the trace,
// ordered by program hash.
func (e *Engine) Descriptors() []*ProgramSourceDescriptor {
	var res []*ProgramSourceDescriptor
	for _, entry := range e.descriptors.Entries() {
		if entry.Value != nil {
			res = append(res, entry.Value)
		}
	}
	return res
}

// ProgramHashes returns the hash of every program traced, resolved or not.
func (e *Engine) ProgramHashes() [][]byte {
	entries := e.descriptors.Entries()
	res := make([][]byte, len(entries))
	for i, entry := range entries {
		res[i] = entry.Key
	}
	return res
}
