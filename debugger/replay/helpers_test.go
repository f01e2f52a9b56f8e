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
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/data/simulation"
)

var allowAllUnexported = cmp.Exporter(func(f reflect.Type) bool { return true })

func uintValue(u uint64) *basics.AvmValue {
	v := basics.Uint64Value(u)
	return &v
}

func payTxn() simulation.PendingTransaction {
	return simulation.PendingTransaction{Txn: map[string]interface{}{
		"txn": map[string]interface{}{"type": "pay", "amt": uint64(1000)},
	}}
}

func appCallTxn(appID uint64) simulation.PendingTransaction {
	return simulation.PendingTransaction{Txn: map[string]interface{}{
		"txn": map[string]interface{}{"type": "appl", "apid": appID},
	}}
}

var lsigProgram = []byte{0x06, 0x81, 0x01}

func lsigTxn() simulation.PendingTransaction {
	return simulation.PendingTransaction{Txn: map[string]interface{}{
		"lsig": map[string]interface{}{"l": lsigProgram},
		"txn":  map[string]interface{}{"type": "pay", "amt": uint64(1)},
	}}
}

func pushUnit(pc uint64, values ...basics.AvmValue) simulation.OpcodeTraceUnit {
	return simulation.OpcodeTraceUnit{PC: pc, StackAdded: values}
}

func globalWrite(key string, value uint64) simulation.StateOperation {
	return simulation.StateOperation{AppStateOp: simulation.AppStateWrite, AppState: simulation.GlobalState, Key: []byte(key), NewValue: uintValue(value)}
}

func globalDelete(key string) simulation.StateOperation {
	return simulation.StateOperation{AppStateOp: simulation.AppStateDelete, AppState: simulation.GlobalState, Key: []byte(key)}
}

func singleGroup(txns ...simulation.TxnResult) *simulation.SimulateResponse {
	return &simulation.SimulateResponse{
		Version:         simulation.ResultLatestVersion,
		ExecTraceConfig: simulation.ExecTraceConfig{Enable: true},
		TxnGroups:       []simulation.TxnGroupResult{{Txns: txns}},
	}
}

func loadEngine(t interface {
	Helper()
	Fatalf(string, ...interface{})
}, resp *simulation.SimulateResponse, descs ...*ProgramSourceDescriptor) *Engine {
	t.Helper()
	e := MakeEngine(nil)
	if err := e.LoadResources(resp, NewDescriptorRegistry(descs...)); err != nil {
		t.Fatalf("LoadResources: %v", err)
	}
	return e
}

// position captures everything observable at one step of the replay.
type position struct {
	Frames    []string
	Locations []SourceLocation
	Programs  []ProgramState
	Apps      map[string]string
}

func capture(e *Engine) position {
	var p position
	for _, f := range e.Stack() {
		p.Frames = append(p.Frames, f.Name())
		p.Locations = append(p.Locations, f.SourceLocation())
		if pf, ok := f.(*ProgramFrame); ok {
			st := pf.State()
			scratch := make(map[uint64]basics.AvmValue, len(st.Scratch))
			for k, v := range st.Scratch {
				scratch[k] = v.Clone()
			}
			p.Programs = append(p.Programs, ProgramState{
				PC:      st.PC,
				Stack:   append([]basics.AvmValue(nil), st.Stack...),
				Scratch: scratch,
			})
		}
	}
	p.Apps = flattenApps(e.CurrentAppState())
	return p
}

func flattenApps(apps AppStates) map[string]string {
	res := make(map[string]string)
	for id, app := range apps {
		for _, e := range app.GlobalState.Entries() {
			res[fmt.Sprintf("%d/g/%x", id, e.Key)] = e.Value.String()
		}
		for _, e := range app.BoxState.Entries() {
			res[fmt.Sprintf("%d/b/%x", id, e.Key)] = e.Value.String()
		}
		for _, account := range app.Accounts() {
			res[fmt.Sprintf("%d/l/%s", id, account)] = ""
			for _, e := range app.LocalState[account].Entries() {
				res[fmt.Sprintf("%d/l/%s/%x", id, account, e.Key)] = e.Value.String()
			}
		}
	}
	return res
}

func diffPositions(a, b position) string {
	return cmp.Diff(a, b, allowAllUnexported, cmpopts.EquateEmpty())
}

func globalState(e *Engine, appID uint64) map[string]string {
	res := make(map[string]string)
	for _, entry := range e.CurrentAppState()[appID].GlobalState.Entries() {
		res[string(entry.Key)] = entry.Value.String()
	}
	return res
}
