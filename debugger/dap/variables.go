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
package dap

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/google/go-dap"

	"github.com/algorand/avm-debugger/data/appstate"
	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/debugger/replay"
)

// variableRef is what a variables reference handed to the client points at.
type variableRef interface {
	variableRef()
}

// programStateRef is the machine state of the program frame with id frame.
// slot is empty for the top level pc/stack/scratch listing.
type programStateRef struct {
	frame int
	slot  string
}

// chainRef is the on-chain state root.
type chainRef struct{}

// appsRef lists every app of the trace.
type appsRef struct{}

// appRef lists the state scopes of one app.
type appRef struct {
	appID uint64
}

// appStateRef is one storage scope of an app. For local state, an empty
// account lists the accounts. property selects the key or the value of an
// entry.
type appStateRef struct {
	appID    uint64
	scope    string
	account  string
	property string
}

// valueRef is one value: a stack element or scratch slot of a program
// state, or a storage entry of an app state scope.
type valueRef struct {
	parent variableRef
	index  int
	key    []byte
}

func (programStateRef) variableRef() {}
func (chainRef) variableRef()        {}
func (appsRef) variableRef()         {}
func (appRef) variableRef()          {}
func (appStateRef) variableRef()     {}
func (valueRef) variableRef()        {}

const (
	globalScope = "global"
	localScope  = "local"
	boxScope    = "box"

	keyProperty   = "key"
	valueProperty = "value"
)

func (r programStateRef) evaluateName(index int) string {
	return fmt.Sprintf("%s[%d]", r.slot, index)
}

func (r appStateRef) evaluateName(key string) string {
	if r.scope == localScope {
		if r.account == "" {
			return fmt.Sprintf("app[%d].local[%s]", r.appID, key)
		}
		return fmt.Sprintf("app[%d].local[%s][%s]", r.appID, r.account, key)
	}
	name := fmt.Sprintf("app[%d].%s[%s]", r.appID, r.scope, key)
	if r.property != "" {
		name += "." + r.property
	}
	return name
}

func hexKey(key []byte) string {
	return "0x" + hex.EncodeToString(key)
}

var bytesHint = &dap.VariablePresentationHint{Kind: "data", Attributes: []string{"rawString"}}

func (s *Session) onScopesRequest(request *dap.ScopesRequest) {
	response := &dap.ScopesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Scopes = []dap.Scope{}
	frames := s.runtime.Engine().Stack()
	id := request.Arguments.FrameId
	if id >= 0 && id < len(frames) {
		if pf, ok := frames[id].(*replay.ProgramFrame); ok {
			name := "Program State"
			if appID, ok := pf.AppID(); ok {
				name += fmt.Sprintf(": App %d", appID)
			}
			response.Body.Scopes = append(response.Body.Scopes, dap.Scope{
				Name:               name,
				VariablesReference: s.variableHandles.create(programStateRef{frame: id}),
			})
		}
		response.Body.Scopes = append(response.Body.Scopes, dap.Scope{
			Name:               "On-chain State",
			VariablesReference: s.variableHandles.create(chainRef{}),
		})
	}
	s.send(response)
}

func (s *Session) onVariablesRequest(request *dap.VariablesRequest) {
	args := request.Arguments
	variables, err := s.variables(args.VariablesReference, args.Filter)
	if err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.VariablesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Variables = limitVariables(variables, args.Start, args.Count)
	s.send(response)
}

// limitVariables applies the paging arguments of a variables request.
func limitVariables(variables []dap.Variable, start, count int) []dap.Variable {
	if start > len(variables) {
		start = len(variables)
	}
	if start > 0 {
		variables = variables[start:]
	}
	if count > 0 && count < len(variables) {
		variables = variables[:count]
	}
	return variables
}

func (s *Session) variables(reference int, filter string) ([]dap.Variable, error) {
	v, ok := s.variableHandles.get(reference)
	if !ok {
		return nil, fmt.Errorf("unknown variables reference %d", reference)
	}
	switch v := v.(type) {
	case programStateRef:
		return s.programStateVariables(v, filter)
	case chainRef:
		return []dap.Variable{{
			Name:               "app",
			Type:               "object",
			VariablesReference: s.variableHandles.create(appsRef{}),
			NamedVariables:     len(s.runtime.Engine().AppIDs()),
		}}, nil
	case appsRef:
		ids := s.runtime.Engine().AppIDs()
		res := make([]dap.Variable, len(ids))
		for i, id := range ids {
			res[i] = dap.Variable{
				Name:               strconv.FormatUint(id, 10),
				Type:               "object",
				VariablesReference: s.variableHandles.create(appRef{appID: id}),
				NamedVariables:     3,
			}
		}
		return res, nil
	case appRef:
		state, err := s.appState(v.appID)
		if err != nil {
			return nil, err
		}
		return []dap.Variable{
			{
				Name:               globalScope,
				Type:               "object",
				VariablesReference: s.variableHandles.create(appStateRef{appID: v.appID, scope: globalScope}),
				NamedVariables:     state.GlobalState.Len(),
			},
			{
				Name:               localScope,
				Type:               "object",
				VariablesReference: s.variableHandles.create(appStateRef{appID: v.appID, scope: localScope}),
				NamedVariables:     len(state.LocalState),
			},
			{
				Name:               boxScope,
				Type:               "object",
				VariablesReference: s.variableHandles.create(appStateRef{appID: v.appID, scope: boxScope}),
				NamedVariables:     state.BoxState.Len(),
			},
		}, nil
	case appStateRef:
		return s.appStateVariables(v)
	case valueRef:
		return s.expandValueRef(v, filter)
	}
	return nil, fmt.Errorf("unexpected variables reference %T", v)
}

// programFrame returns the program frame with the given id.
func (s *Session) programFrame(id int) (*replay.ProgramFrame, error) {
	frames := s.runtime.Engine().Stack()
	if id < 0 || id >= len(frames) {
		return nil, fmt.Errorf("frame %d does not exist", id)
	}
	pf, ok := frames[id].(*replay.ProgramFrame)
	if !ok {
		return nil, fmt.Errorf("frame %d is not a program", id)
	}
	return pf, nil
}

func (s *Session) appState(appID uint64) (*appstate.AppState, error) {
	state, ok := s.runtime.Engine().CurrentAppState()[appID]
	if !ok {
		return nil, fmt.Errorf("app %d is not part of the trace", appID)
	}
	return state, nil
}

func scratchValue(state replay.ProgramState, slot int) basics.AvmValue {
	if v, ok := state.Scratch[uint64(slot)]; ok {
		return v
	}
	return basics.Uint64Value(0)
}

func (s *Session) programStateVariables(ref programStateRef, filter string) ([]dap.Variable, error) {
	pf, err := s.programFrame(ref.frame)
	if err != nil {
		return nil, err
	}
	state := pf.State()
	switch ref.slot {
	case "":
		stackValue := "[...]"
		if len(state.Stack) == 0 {
			stackValue = "[]"
		}
		return []dap.Variable{
			{Name: "pc", Value: strconv.FormatUint(state.PC, 10), Type: "uint64", EvaluateName: "pc"},
			{
				Name:               "stack",
				Value:              stackValue,
				Type:               "array",
				VariablesReference: s.variableHandles.create(programStateRef{frame: ref.frame, slot: "stack"}),
				IndexedVariables:   len(state.Stack),
				PresentationHint:   &dap.VariablePresentationHint{Kind: "data"},
			},
			{
				Name:               "scratch",
				Value:              "[...]",
				Type:               "array",
				VariablesReference: s.variableHandles.create(programStateRef{frame: ref.frame, slot: "scratch"}),
				IndexedVariables:   replay.ScratchSlots,
				PresentationHint:   &dap.VariablePresentationHint{Kind: "data"},
			},
		}, nil
	case "stack":
		if filter == "named" {
			return nil, nil
		}
		res := make([]dap.Variable, len(state.Stack))
		for i, value := range state.Stack {
			res[i] = s.programValueVariable(ref, i, value)
		}
		return res, nil
	case "scratch":
		if filter == "named" {
			return nil, nil
		}
		res := make([]dap.Variable, replay.ScratchSlots)
		for i := range res {
			res[i] = s.programValueVariable(ref, i, scratchValue(state, i))
		}
		return res, nil
	}
	return nil, fmt.Errorf("unexpected program state %q", ref.slot)
}

func (s *Session) appStateVariables(ref appStateRef) ([]dap.Variable, error) {
	state, err := s.appState(ref.appID)
	if err != nil {
		return nil, err
	}
	var kv *appstate.KeyValue
	switch ref.scope {
	case globalScope:
		kv = state.GlobalState
	case boxScope:
		kv = state.BoxState
	case localScope:
		if ref.account == "" {
			accounts := state.Accounts()
			res := make([]dap.Variable, len(accounts))
			for i, account := range accounts {
				res[i] = s.accountVariable(ref, account, state.LocalState[account])
			}
			return res, nil
		}
		local, ok := state.LocalState[ref.account]
		if !ok {
			return nil, fmt.Errorf("account %s has no local state for app %d", ref.account, ref.appID)
		}
		kv = local
	default:
		return nil, fmt.Errorf("unexpected app state %q", ref.scope)
	}
	entries := kv.Entries()
	res := make([]dap.Variable, len(entries))
	for i, entry := range entries {
		res[i] = s.keyValueVariable(ref, entry.Key, entry.Value)
	}
	return res, nil
}

func (s *Session) accountVariable(ref appStateRef, account string, kv *appstate.KeyValue) dap.Variable {
	return dap.Variable{
		Name:               account,
		Value:              "local state",
		Type:               "object",
		VariablesReference: s.variableHandles.create(appStateRef{appID: ref.appID, scope: localScope, account: account}),
		NamedVariables:     kv.Len(),
		EvaluateName:       ref.evaluateName(account),
	}
}

// lookupEntry returns the value stored under key in the scope of ref.
func (s *Session) lookupEntry(ref appStateRef, key []byte) (basics.AvmValue, error) {
	state, err := s.appState(ref.appID)
	if err != nil {
		return basics.AvmValue{}, err
	}
	var kv *appstate.KeyValue
	switch ref.scope {
	case globalScope:
		kv = state.GlobalState
	case boxScope:
		kv = state.BoxState
	case localScope:
		local, ok := state.LocalState[ref.account]
		if !ok {
			return basics.AvmValue{}, fmt.Errorf("account %q not found in local state", ref.account)
		}
		if value, ok := local.Get(key); ok {
			return value, nil
		}
		return basics.AvmValue{}, fmt.Errorf("key %q not found in local state for account %q", hexKey(key), ref.account)
	default:
		return basics.AvmValue{}, fmt.Errorf("unexpected app state %q", ref.scope)
	}
	if value, ok := kv.Get(key); ok {
		return value, nil
	}
	return basics.AvmValue{}, fmt.Errorf("key %q not found in %s state", hexKey(key), ref.scope)
}

func valueType(v basics.AvmValue) string {
	if v.Type == basics.AvmBytesType {
		return "byte[]"
	}
	return "uint64"
}

// describeValue fills the fields shared by every variable showing v.
func describeValue(v basics.AvmValue) dap.Variable {
	res := dap.Variable{Value: v.String(), Type: valueType(v)}
	if v.Type == basics.AvmBytesType {
		res.NamedVariables = 2
		if utf8.Valid(v.Bytes) {
			res.NamedVariables++
		}
		res.IndexedVariables = len(v.Bytes)
		res.PresentationHint = bytesHint
	}
	return res
}

func (s *Session) programValueVariable(ref programStateRef, index int, v basics.AvmValue) dap.Variable {
	res := describeValue(v)
	res.Name = strconv.Itoa(index)
	res.EvaluateName = ref.evaluateName(index)
	if v.Type == basics.AvmBytesType {
		res.VariablesReference = s.variableHandles.create(valueRef{parent: ref, index: index})
	}
	return res
}

func (s *Session) keyValueVariable(ref appStateRef, key []byte, v basics.AvmValue) dap.Variable {
	res := describeValue(v)
	res.Name = hexKey(key)
	res.EvaluateName = ref.evaluateName(res.Name)
	res.VariablesReference = s.variableHandles.create(valueRef{parent: ref, key: key})
	res.NamedVariables = 2
	res.IndexedVariables = 0
	return res
}

func (s *Session) expandValueRef(ref valueRef, filter string) ([]dap.Variable, error) {
	switch parent := ref.parent.(type) {
	case programStateRef:
		pf, err := s.programFrame(parent.frame)
		if err != nil {
			return nil, err
		}
		state := pf.State()
		switch parent.slot {
		case "stack":
			if ref.index < 0 || ref.index >= len(state.Stack) {
				return nil, fmt.Errorf("stack[%d] out of range", ref.index)
			}
			return expandValue(state.Stack[ref.index], filter), nil
		case "scratch":
			return expandValue(scratchValue(state, ref.index), filter), nil
		}
		return nil, fmt.Errorf("unexpected program state %q", parent.slot)
	case appStateRef:
		value, err := s.lookupEntry(parent, ref.key)
		if err != nil {
			return nil, err
		}
		switch parent.property {
		case keyProperty:
			return expandValue(basics.BytesValue(ref.key), filter), nil
		case valueProperty:
			return expandValue(value, filter), nil
		}
		if filter == "indexed" {
			return nil, nil
		}
		return s.keyValueChildren(parent, ref.key, value), nil
	}
	return nil, fmt.Errorf("unexpected value reference %T", ref.parent)
}

// keyValueChildren lists the key and the value of a storage entry.
func (s *Session) keyValueChildren(ref appStateRef, key []byte, value basics.AvmValue) []dap.Variable {
	keyScope := ref
	keyScope.property = keyProperty
	valueScope := ref
	valueScope.property = valueProperty

	keyVar := describeValue(basics.BytesValue(key))
	keyVar.Name = keyProperty
	keyVar.VariablesReference = s.variableHandles.create(valueRef{parent: keyScope, key: key})

	valueVar := describeValue(value)
	valueVar.Name = valueProperty
	if value.Type == basics.AvmBytesType {
		valueVar.VariablesReference = s.variableHandles.create(valueRef{parent: valueScope, key: key})
	}
	return []dap.Variable{keyVar, valueVar}
}

// expandValue lists the renderings of a byte value: named encodings first,
// then one indexed entry per byte. Integers have no children.
func expandValue(v basics.AvmValue, filter string) []dap.Variable {
	if v.Type != basics.AvmBytesType {
		return nil
	}
	b := v.Bytes
	var res []dap.Variable
	if filter != "indexed" {
		if len(b) != 0 {
			res = append(res,
				dap.Variable{Name: "hex", Type: "string", Value: hex.EncodeToString(b)},
				dap.Variable{Name: "base64", Type: "string", Value: base64.StdEncoding.EncodeToString(b)},
			)
			if utf8.Valid(b) {
				res = append(res, dap.Variable{Name: "utf-8", Type: "string", Value: string(b)})
			}
		}
		if addr, ok := basics.AddressFromBytes(b); ok {
			res = append(res, dap.Variable{Name: "address", Type: "string", Value: addr.String()})
		}
		res = append(res, dap.Variable{Name: "length", Type: "int", Value: strconv.Itoa(len(b))})
	}
	if filter != "named" {
		for i, c := range b {
			res = append(res, dap.Variable{Name: strconv.Itoa(i), Type: "uint8", Value: strconv.Itoa(int(c))})
		}
	}
	return res
}
