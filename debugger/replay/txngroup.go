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
	"fmt"
	"strings"

	"github.com/algorand/avm-debugger/data/simulation"
)

type txnPhase int

const (
	// txnStart highlights the transaction body.
	txnStart txnPhase = iota
	// txnLogicSigPending highlights the lsig field, the logic sig is next.
	txnLogicSigPending
	txnLogicSigRunning
	// txnAppPending highlights the app id, the app program is next.
	txnAppPending
	txnAppRunning
)

// TxnGroupFrame walks the transactions of one group, either a top-level
// group or the inner transactions submitted by one program step. For each
// transaction the logic sig runs first, then the approval or clear state
// program.
type TxnGroupFrame struct {
	engine *Engine

	groupIndex int
	// parentPath is the path of the transaction whose program issued this
	// group, nil for top-level groups.
	parentPath simulation.TxnPath
	indices    []uint64
	txns       []simulation.PendingTransaction
	traces     []*simulation.TransactionTrace
	failure    *simulation.Failure

	index       int
	phase       txnPhase
	onException bool

	// last program frames run for every transaction, kept to re-enter them
	// when stepping backward
	lsigFrames []*ProgramFrame
	appFrames  []*ProgramFrame

	content string
	layouts []txnLayout
}

func newTopLevelTxnGroupFrame(e *Engine, groupIndex int) *TxnGroupFrame {
	group := &e.response.TxnGroups[groupIndex]
	indices := make([]uint64, len(group.Txns))
	txns := make([]simulation.PendingTransaction, len(group.Txns))
	traces := make([]*simulation.TransactionTrace, len(group.Txns))
	for i := range group.Txns {
		indices[i] = uint64(i)
		txns[i] = group.Txns[i].Txn
		traces[i] = group.Txns[i].Trace
	}
	return newTxnGroupFrame(e, groupIndex, nil, indices, txns, traces, group.GroupFailure())
}

func newTxnGroupFrame(e *Engine, groupIndex int, parentPath simulation.TxnPath, indices []uint64, txns []simulation.PendingTransaction, traces []*simulation.TransactionTrace, failure *simulation.Failure) *TxnGroupFrame {
	lines, layouts := renderTxnArray(txns)
	return &TxnGroupFrame{
		engine:     e,
		groupIndex: groupIndex,
		parentPath: parentPath,
		indices:    indices,
		txns:       txns,
		traces:     traces,
		failure:    failure,
		lsigFrames: make([]*ProgramFrame, len(txns)),
		appFrames:  make([]*ProgramFrame, len(txns)),
		content:    strings.Join(lines, "\n"),
		layouts:    layouts,
	}
}

func (f *TxnGroupFrame) inner() bool {
	return f.parentPath != nil
}

// Name implements Frame.
func (f *TxnGroupFrame) Name() string {
	if f.inner() {
		return fmt.Sprintf("inner transaction %d", f.index)
	}
	return fmt.Sprintf("transaction %d", f.index)
}

// SourceFile implements Frame.
func (f *TxnGroupFrame) SourceFile() SourceFile {
	name := fmt.Sprintf("transaction-group-%d.json", f.groupIndex)
	if f.inner() {
		parts := []string{fmt.Sprint(f.groupIndex)}
		for _, i := range f.parentPath {
			parts = append(parts, fmt.Sprint(i))
		}
		if len(f.indices) != 0 {
			parts = append(parts, fmt.Sprint(f.indices[0]))
		}
		name = fmt.Sprintf("inner-transaction-group-%s.json", strings.Join(parts, "-"))
	}
	return SourceFile{Name: name, Content: f.content, ContentMimeType: jsonMimeType}
}

// SourceLocation implements Frame.
func (f *TxnGroupFrame) SourceLocation() SourceLocation {
	if f.index >= len(f.layouts) {
		return SourceLocation{}
	}
	layout := f.layouts[f.index]
	switch f.phase {
	case txnLogicSigPending:
		return SourceLocation{Line: layout.lsigLine}
	case txnAppPending:
		return SourceLocation{Line: layout.appLine}
	}
	return SourceLocation{Line: layout.line, EndLine: layout.endLine}
}

// TxnPath returns the path of the current transaction within its top-level group.
func (f *TxnGroupFrame) TxnPath() simulation.TxnPath {
	return f.parentPath.Child(f.indices[f.index])
}

// Txn returns the current transaction.
func (f *TxnGroupFrame) Txn() simulation.PendingTransaction {
	return f.txns[f.index]
}

// failsHere reports whether the recorded failure names the current
// transaction and no program of it can carry the failure further.
func (f *TxnGroupFrame) failsHere() bool {
	return f.failure != nil && f.failure.Path.Equal(f.TxnPath()) && !f.traces[f.index].HasPrograms()
}

// childFailure returns the failure to hand to a program frame of the current
// transaction. A failure at the transaction level with both programs traced
// belongs to the app program: it only runs once the logic sig passed.
func (f *TxnGroupFrame) childFailure(logicSig bool) *simulation.Failure {
	if f.failure == nil || !f.failure.Path.HasPrefix(f.TxnPath()) {
		return nil
	}
	if logicSig && f.traces[f.index].HasApp() {
		return nil
	}
	return f.failure
}

func (f *TxnGroupFrame) forward(stack *Stack) (*ExceptionInfo, error) {
	if len(f.txns) == 0 {
		stack.Pop()
		return nil, nil
	}
	trace := f.traces[f.index]
	switch f.phase {
	case txnStart:
		if f.failsHere() {
			f.onException = true
			return &ExceptionInfo{Message: f.failure.Message}, nil
		}
		f.advance(stack)
	case txnLogicSigPending:
		program, _ := f.Txn().LogicSigProgram()
		frame := newProgramFrame(f.engine, programFrameArgs{
			kind:       LogicSigProgram,
			groupIndex: f.groupIndex,
			path:       f.TxnPath(),
			txn:        f.Txn(),
			trace:      trace,
			units:      trace.LogicSigTrace,
			hash:       trace.LogicSigHash,
			program:    program,
			failure:    f.childFailure(true),
		})
		f.lsigFrames[f.index] = frame
		f.phase = txnLogicSigRunning
		stack.Push(frame)
	case txnAppPending:
		units, hash, clearState := trace.AppProgram()
		kind := ApprovalProgram
		if clearState {
			kind = ClearStateProgram
		}
		frame := newProgramFrame(f.engine, programFrameArgs{
			kind:       kind,
			groupIndex: f.groupIndex,
			path:       f.TxnPath(),
			txn:        f.Txn(),
			trace:      trace,
			units:      units,
			hash:       hash,
			failure:    f.childFailure(false),
			rollback:   clearState && trace.ClearStateRollback,
		})
		f.appFrames[f.index] = frame
		f.phase = txnAppRunning
		stack.Push(frame)
	case txnLogicSigRunning, txnAppRunning:
		// the program frame popped itself
		f.advance(stack)
	}
	return nil, nil
}

func (f *TxnGroupFrame) advance(stack *Stack) {
	trace := f.traces[f.index]
	switch {
	case f.phase < txnLogicSigPending && trace.HasLogicSig():
		f.phase = txnLogicSigPending
	case f.phase < txnAppPending && trace.HasApp():
		f.phase = txnAppPending
	case f.index+1 < len(f.txns):
		f.index++
		f.phase = txnStart
	default:
		stack.Pop()
	}
}

func (f *TxnGroupFrame) backward(stack *Stack) (*ExceptionInfo, error) {
	if len(f.txns) == 0 {
		stack.Pop()
		return nil, nil
	}
	switch f.phase {
	case txnLogicSigRunning:
		// the logic sig frame stepped back past its first unit
		f.phase = txnLogicSigPending
	case txnAppRunning:
		f.phase = txnAppPending
	case txnAppPending:
		if f.traces[f.index].HasLogicSig() {
			f.phase = txnLogicSigRunning
			return f.lsigFrames[f.index].resume(stack)
		}
		f.phase = txnStart
	case txnLogicSigPending:
		f.phase = txnStart
	case txnStart:
		if f.onException {
			f.onException = false
			return nil, nil
		}
		if f.index == 0 {
			stack.Pop()
			return nil, nil
		}
		f.index--
		return f.enterEnd(stack)
	}
	return nil, nil
}

// enterEnd moves to the last position of the current transaction: inside
// its last program, after its last unit.
func (f *TxnGroupFrame) enterEnd(stack *Stack) (*ExceptionInfo, error) {
	trace := f.traces[f.index]
	switch {
	case trace.HasApp():
		f.phase = txnAppRunning
		return f.appFrames[f.index].resume(stack)
	case trace.HasLogicSig():
		f.phase = txnLogicSigRunning
		return f.lsigFrames[f.index].resume(stack)
	}
	f.phase = txnStart
	return nil, nil
}

func (f *TxnGroupFrame) resume(stack *Stack) (*ExceptionInfo, error) {
	stack.Push(f)
	if len(f.txns) == 0 {
		return nil, nil
	}
	return f.enterEnd(stack)
}
