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

package replay

import (
	"encoding/base64"
	"fmt"

	"github.com/algorand/avm-debugger/data/appstate"
	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/data/simulation"
)

// ScratchSlots is the number of scratch slots of a program.
const ScratchSlots = 256

// ProgramKind tells which program of a transaction a frame runs.
type ProgramKind int

const (
	// LogicSigProgram authorizes a transaction.
	LogicSigProgram ProgramKind = iota
	// ApprovalProgram is the approval program of an app call.
	ApprovalProgram
	// ClearStateProgram is the clear state program of an app call.
	ClearStateProgram
)

func (k ProgramKind) String() string {
	switch k {
	case LogicSigProgram:
		return "logic sig"
	case ApprovalProgram:
		return "approval"
	case ClearStateProgram:
		return "clear state"
	}
	return fmt.Sprintf("ProgramKind(%d)", int(k))
}

// ProgramState is the machine state of a program.
type ProgramState struct {
	PC      uint64
	Stack   []basics.AvmValue
	Scratch map[uint64]basics.AvmValue
}

type programFrameArgs struct {
	kind       ProgramKind
	groupIndex int
	path       simulation.TxnPath
	txn        simulation.PendingTransaction
	trace      *simulation.TransactionTrace
	units      []simulation.OpcodeTraceUnit
	hash       []byte
	// program is the logic sig bytecode, if known
	program []byte
	failure *simulation.Failure
	// rollback discards the app state changes of the program when it exits
	rollback bool
}

// ProgramFrame walks the trace units of one program run.
type ProgramFrame struct {
	programFrameArgs
	engine *Engine

	appID       uint64
	lsigAddress *basics.Address

	// index is the next unit to apply
	index int
	// handledInner is set once the unit at index was applied and its inner
	// transaction group pushed
	handledInner      bool
	blockingException *ExceptionInfo
	state             ProgramState

	// snapshot is every app state as of the frame construction
	snapshot    AppStates
	innerFrames []*TxnGroupFrame
}

func newProgramFrame(e *Engine, args programFrameArgs) *ProgramFrame {
	f := &ProgramFrame{
		programFrameArgs: args,
		engine:           e,
		snapshot:         e.currentAppState.Clone(),
		innerFrames:      make([]*TxnGroupFrame, len(args.units)),
	}
	f.state = ProgramState{PC: args.units[0].PC, Scratch: make(map[uint64]basics.AvmValue)}
	if args.kind == LogicSigProgram {
		if args.program != nil {
			addr := basics.LogicSigAddress(args.program)
			f.lsigAddress = &addr
		}
	} else {
		f.appID = args.txn.AppID()
	}
	return f
}

// Name implements Frame.
func (f *ProgramFrame) Name() string {
	if f.appID != 0 {
		return fmt.Sprintf("app %d %s program", f.appID, f.kind)
	}
	if f.lsigAddress != nil {
		return fmt.Sprintf("logic sig %s program", f.lsigAddress.String())
	}
	return fmt.Sprintf("%s program", f.kind)
}

// SourceFile implements Frame. Programs with no source map are shown as a
// placeholder document.
func (f *ProgramFrame) SourceFile() SourceFile {
	d := f.Descriptor()
	if d == nil {
		var name string
		switch {
		case f.appID != 0:
			name = fmt.Sprintf("app %d %s.teal", f.appID, f.kind)
		case f.lsigAddress != nil:
			name = fmt.Sprintf("logic sig %s.teal", f.lsigAddress.String())
		default:
			name = fmt.Sprintf("program %s.teal", base64.RawURLEncoding.EncodeToString(f.hash))
		}
		return SourceFile{Name: name, Content: "// source not available"}
	}
	sourceIndex := 0
	if loc, ok := d.Index().LocationForPC(int(f.state.PC)); ok {
		sourceIndex = loc.SourceIndex
	}
	path := d.FullSourcePath(sourceIndex)
	return SourceFile{Name: path, Path: path}
}

// SourceLocation implements Frame.
func (f *ProgramFrame) SourceLocation() SourceLocation {
	d := f.Descriptor()
	if d == nil {
		return SourceLocation{}
	}
	loc, ok := d.Index().LocationForPC(int(f.state.PC))
	if !ok {
		return SourceLocation{}
	}
	return SourceLocation{Line: loc.Line, Column: loc.Column}
}

// Descriptor returns the source descriptor of the program, or nil.
func (f *ProgramFrame) Descriptor() *ProgramSourceDescriptor {
	return f.engine.Descriptor(f.hash)
}

// Kind returns which program of the transaction the frame runs.
func (f *ProgramFrame) Kind() ProgramKind {
	return f.kind
}

// Hash returns the hash of the program.
func (f *ProgramFrame) Hash() []byte {
	return f.hash
}

// TxnPath returns the path of the transaction within its top-level group.
func (f *ProgramFrame) TxnPath() simulation.TxnPath {
	return f.path
}

// AppID returns the id of the app the program belongs to.
func (f *ProgramFrame) AppID() (uint64, bool) {
	return f.appID, f.appID != 0
}

// LogicSigAddress returns the address of the logic sig account.
func (f *ProgramFrame) LogicSigAddress() (basics.Address, bool) {
	if f.lsigAddress == nil {
		return basics.Address{}, false
	}
	return *f.lsigAddress, true
}

// State returns the machine state at the current step. It must not be modified.
func (f *ProgramFrame) State() ProgramState {
	return f.state
}

// UnitIndex returns the index of the next unit to apply and the unit count.
func (f *ProgramFrame) UnitIndex() (int, int) {
	return f.index, len(f.units)
}

func (f *ProgramFrame) malformed(pc uint64, format string, args ...interface{}) error {
	return &MalformedTraceError{Path: f.path, Program: f.Name(), PC: pc, Reason: fmt.Sprintf(format, args...)}
}

// failsHere reports whether the recorded failure names this program's
// transaction.
func (f *ProgramFrame) failsHere() bool {
	return f.failure != nil && f.failure.Path.Equal(f.path)
}

func (f *ProgramFrame) forward(stack *Stack) (*ExceptionInfo, error) {
	if f.blockingException != nil {
		return f.blockingException, nil
	}
	if f.index == len(f.units) {
		if f.rollback {
			f.rollbackAppState()
		}
		stack.Pop()
		return nil, nil
	}

	unit := f.units[f.index]
	if !f.handledInner {
		if err := f.apply(unit); err != nil {
			return nil, err
		}
		if len(unit.SpawnedInners) != 0 {
			inner := f.innerGroup(unit)
			f.innerFrames[f.index] = inner
			f.handledInner = true
			stack.Push(inner)
			return nil, nil
		}
	}

	f.index++
	f.handledInner = false
	if f.index < len(f.units) {
		f.state.PC = f.units[f.index].PC
	} else if f.failsHere() {
		f.blockingException = &ExceptionInfo{Message: f.failure.Message}
		return f.blockingException, nil
	}
	return nil, nil
}

// apply validates unit against the current state, then applies all of its
// effects. Nothing is modified if validation fails.
func (f *ProgramFrame) apply(unit simulation.OpcodeTraceUnit) error {
	if unit.StackPopCount > uint64(len(f.state.Stack)) {
		return f.malformed(unit.PC, "stack underflow: pop %d of %d values", unit.StackPopCount, len(f.state.Stack))
	}
	for _, change := range unit.ScratchSlotChanges {
		if change.Slot >= ScratchSlots {
			return f.malformed(unit.PC, "invalid scratch slot %d", change.Slot)
		}
	}
	for _, idx := range unit.SpawnedInners {
		if idx >= uint64(len(f.txn.InnerTxns)) {
			return f.malformed(unit.PC, "spawned inner transaction %d of %d", idx, len(f.txn.InnerTxns))
		}
	}
	var app *appstate.AppState
	if len(unit.StateChanges) != 0 {
		if f.appID == 0 {
			return f.malformed(unit.PC, "state change with no app id")
		}
		app = f.engine.currentAppState[f.appID]
		if app == nil {
			return f.malformed(unit.PC, "no state for app %d", f.appID)
		}
		for _, change := range unit.StateChanges {
			if err := appstate.ValidateChange(change); err != nil {
				return f.malformed(unit.PC, "%v", err)
			}
		}
	}

	f.state.PC = unit.PC
	f.state.Stack = f.state.Stack[:len(f.state.Stack)-int(unit.StackPopCount)]
	for _, v := range unit.StackAdded {
		f.state.Stack = append(f.state.Stack, v.Clone())
	}
	for _, change := range unit.ScratchSlotChanges {
		if change.NewValue.IsUintZero() {
			delete(f.state.Scratch, change.Slot)
		} else {
			f.state.Scratch[change.Slot] = change.NewValue.Clone()
		}
	}
	for _, change := range unit.StateChanges {
		if err := app.ApplyChange(change); err != nil {
			return f.malformed(unit.PC, "%v", err)
		}
	}
	return nil
}

// innerGroup builds the group frame for the inners a unit spawned. The
// indices were checked by apply.
func (f *ProgramFrame) innerGroup(unit simulation.OpcodeTraceUnit) *TxnGroupFrame {
	txns := make([]simulation.PendingTransaction, len(unit.SpawnedInners))
	traces := make([]*simulation.TransactionTrace, len(unit.SpawnedInners))
	for i, idx := range unit.SpawnedInners {
		txns[i] = f.txn.InnerTxns[idx]
		if f.trace != nil && idx < uint64(len(f.trace.InnerTraces)) {
			traces[i] = &f.trace.InnerTraces[idx]
		}
	}
	var failure *simulation.Failure
	if f.failure != nil && len(f.failure.Path) > len(f.path) && f.failure.Path.HasPrefix(f.path) {
		failure = f.failure
	}
	indices := append([]uint64(nil), unit.SpawnedInners...)
	return newTxnGroupFrame(f.engine, f.groupIndex, f.path, indices, txns, traces, failure)
}

func (f *ProgramFrame) rollbackAppState() {
	if initial, ok := f.snapshot[f.appID]; ok {
		f.engine.currentAppState[f.appID] = initial.Clone()
	}
}

func (f *ProgramFrame) backward(stack *Stack) (*ExceptionInfo, error) {
	f.blockingException = nil
	if f.handledInner {
		// the inner group stepped back past its start
		if !f.units[f.index].HasDeltas() {
			f.handledInner = false
			return nil, nil
		}
		return nil, f.replayTo(f.index)
	}
	if f.index == 0 {
		stack.Pop()
		return nil, nil
	}
	prev := f.index - 1
	if inner := f.innerFrames[prev]; inner != nil && len(f.units[prev].SpawnedInners) != 0 {
		f.index = prev
		f.handledInner = true
		f.state.PC = f.units[prev].PC
		return inner.resume(stack)
	}
	return nil, f.replayTo(prev)
}

func (f *ProgramFrame) resume(stack *Stack) (*ExceptionInfo, error) {
	stack.Push(f)
	if f.rollback {
		// the app state was rolled back on exit, rebuild the end state
		return nil, f.replayTo(len(f.units))
	}
	return nil, nil
}

func (f *ProgramFrame) reset() {
	f.index = 0
	f.handledInner = false
	f.blockingException = nil
	f.state = ProgramState{PC: f.units[0].PC, Scratch: make(map[uint64]basics.AvmValue)}
	f.engine.currentAppState = f.snapshot.Clone()
}

// replayTo resets the frame to its construction state and steps the engine
// forward until the frame is back on top, about to apply unit target.
func (f *ProgramFrame) replayTo(target int) error {
	f.reset()
	for !f.at(target) {
		res, err := f.engine.forward()
		if err != nil {
			return err
		}
		unitsReplayed.Inc()
		if f.at(target) {
			break
		}
		if res.Kind != ResultOK {
			return fmt.Errorf("replay of %s to unit %d stopped early: %v", f.Name(), target, res.Kind)
		}
	}
	return nil
}

func (f *ProgramFrame) at(target int) bool {
	return f.engine.stack.Top() == Frame(f) && f.index == target && !f.handledInner
}
