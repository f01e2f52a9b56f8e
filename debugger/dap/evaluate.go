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
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/algorand/avm-abi/apps"
	"github.com/google/go-dap"

	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/debugger/replay"
)

var (
	stackExprRe    = regexp.MustCompile(`^stack\[(-?\d+)\]$`)
	scratchExprRe  = regexp.MustCompile(`^scratch\[(\d+)\]$`)
	appExprRe      = regexp.MustCompile(`^app\[(\d+)\]\.(global|box)\[(.+)\](?:\.(key|value))?$`)
	appLocalExprRe = regexp.MustCompile(`^app\[(\d+)\]\.local\[([A-Z2-7]{58})\](?:\[(.+)\](?:\.(key|value))?)?$`)
)

// expression is a parsed evaluate expression. Program state expressions
// set slot; app state expressions set app.
type expression struct {
	slot  string
	index int

	app *appStateRef
	key []byte
}

// parseExpression parses the expressions accepted by evaluate:
//
//	pc
//	stack[i]            negative i counts from the top
//	scratch[i]
//	app[ID].global[KEY] and app[ID].box[KEY], optionally followed by .key or .value
//	app[ID].local[ADDRESS]
//	app[ID].local[ADDRESS][KEY], optionally followed by .key or .value
//
// KEY is either 0x prefixed hex or an encoded app call argument such as
// str:name or int:1.
func parseExpression(expr string) (expression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "pc" {
		return expression{slot: "pc"}, nil
	}
	if m := stackExprRe.FindStringSubmatch(expr); m != nil {
		i, err := strconv.Atoi(m[1])
		if err != nil {
			return expression{}, fmt.Errorf("invalid stack index %s", m[1])
		}
		return expression{slot: "stack", index: i}, nil
	}
	if m := scratchExprRe.FindStringSubmatch(expr); m != nil {
		i, err := strconv.Atoi(m[1])
		if err != nil || i >= replay.ScratchSlots {
			return expression{}, fmt.Errorf("scratch[%s] out of range", m[1])
		}
		return expression{slot: "scratch", index: i}, nil
	}
	if m := appExprRe.FindStringSubmatch(expr); m != nil {
		appID, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return expression{}, fmt.Errorf("invalid app id %s", m[1])
		}
		key, err := parseStateKey(m[3])
		if err != nil {
			return expression{}, err
		}
		return expression{app: &appStateRef{appID: appID, scope: m[2], property: m[4]}, key: key}, nil
	}
	if m := appLocalExprRe.FindStringSubmatch(expr); m != nil {
		appID, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return expression{}, fmt.Errorf("invalid app id %s", m[1])
		}
		if _, err := basics.UnmarshalChecksumAddress(m[2]); err != nil {
			return expression{}, fmt.Errorf("invalid address %s: %w", m[2], err)
		}
		ref := &appStateRef{appID: appID, scope: localScope, account: m[2], property: m[4]}
		if m[3] == "" {
			// the account itself
			return expression{app: ref}, nil
		}
		key, err := parseStateKey(m[3])
		if err != nil {
			return expression{}, err
		}
		return expression{app: ref, key: key}, nil
	}
	return expression{}, fmt.Errorf("unexpected expression: %s", expr)
}

// parseStateKey decodes a storage key written as 0x prefixed hex or as an
// encoded app call argument.
func parseStateKey(key string) ([]byte, error) {
	if strings.HasPrefix(key, "0x") || strings.HasPrefix(key, "0X") {
		b, err := hex.DecodeString(key[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex key %s: %w", key, err)
		}
		return b, nil
	}
	arg, err := apps.NewAppCallBytes(key)
	if err != nil {
		return nil, fmt.Errorf("invalid key %s: %w", key, err)
	}
	b, err := arg.Raw()
	if err != nil {
		return nil, fmt.Errorf("invalid key %s: %w", key, err)
	}
	return b, nil
}

// evaluate returns the variable an expression designates. frameID selects
// the program frame for program state expressions. The bottom frame is
// never a program, so 0 means the current frame.
func (s *Session) evaluate(expr string, frameID int) (dap.Variable, error) {
	e, err := parseExpression(expr)
	if err != nil {
		return dap.Variable{}, err
	}
	if e.app != nil {
		return s.evaluateAppState(e)
	}

	if frameID == 0 {
		frameID = s.runtime.Engine().Depth() - 1
	}
	pf, err := s.programFrame(frameID)
	if err != nil {
		return dap.Variable{}, err
	}
	state := pf.State()
	ref := programStateRef{frame: frameID, slot: e.slot}
	switch e.slot {
	case "pc":
		return dap.Variable{Name: "pc", Value: strconv.FormatUint(state.PC, 10), Type: "uint64", EvaluateName: "pc"}, nil
	case "stack":
		index := e.index
		if index < 0 {
			index += len(state.Stack)
		}
		if index < 0 || index >= len(state.Stack) {
			return dap.Variable{}, fmt.Errorf("stack[%d] out of range", e.index)
		}
		return s.programValueVariable(ref, index, state.Stack[index]), nil
	case "scratch":
		return s.programValueVariable(ref, e.index, scratchValue(state, e.index)), nil
	}
	return dap.Variable{}, fmt.Errorf("unexpected expression: %s", expr)
}

func (s *Session) evaluateAppState(e expression) (dap.Variable, error) {
	ref := *e.app
	if e.key == nil {
		state, err := s.appState(ref.appID)
		if err != nil {
			return dap.Variable{}, err
		}
		local, ok := state.LocalState[ref.account]
		if !ok {
			return dap.Variable{}, fmt.Errorf("account %q not found in local state", ref.account)
		}
		listing := appStateRef{appID: ref.appID, scope: localScope}
		return s.accountVariable(listing, ref.account, local), nil
	}
	value, err := s.lookupEntry(ref, e.key)
	if err != nil {
		return dap.Variable{}, err
	}
	switch ref.property {
	case keyProperty:
		res := describeValue(basics.BytesValue(e.key))
		res.Name = keyProperty
		res.EvaluateName = ref.evaluateName(hexKey(e.key))
		res.VariablesReference = s.variableHandles.create(valueRef{parent: ref, key: e.key})
		return res, nil
	case valueProperty:
		res := describeValue(value)
		res.Name = valueProperty
		res.EvaluateName = ref.evaluateName(hexKey(e.key))
		if value.Type == basics.AvmBytesType {
			res.VariablesReference = s.variableHandles.create(valueRef{parent: ref, key: e.key})
		}
		return res, nil
	}
	return s.keyValueVariable(ref, e.key, value), nil
}

func (s *Session) onEvaluateRequest(request *dap.EvaluateRequest) {
	response := &dap.EvaluateResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	v, err := s.evaluate(request.Arguments.Expression, request.Arguments.FrameId)
	if err != nil {
		// shown to the user in place of a value
		response.Body.Result = err.Error()
		s.send(response)
		return
	}
	response.Body.Result = v.Value
	response.Body.Type = v.Type
	response.Body.VariablesReference = v.VariablesReference
	response.Body.NamedVariables = v.NamedVariables
	response.Body.IndexedVariables = v.IndexedVariables
	response.Body.PresentationHint = v.PresentationHint
	s.send(response)
}
