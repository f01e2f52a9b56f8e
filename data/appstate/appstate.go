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

// Package appstate models the storage of one application (global, local and
// box state) as it is reconstructed from recorded state changes.
package appstate

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/data/simulation"
)

// KeyValue is the storage map type used for every app state scope.
type KeyValue = basics.ByteMap[basics.AvmValue]

// AppState is the storage of one application.
type AppState struct {
	GlobalState *KeyValue
	LocalState  map[string]*KeyValue
	BoxState    *KeyValue
}

// New returns an empty AppState.
func New() *AppState {
	return &AppState{
		GlobalState: basics.NewByteMap[basics.AvmValue](),
		LocalState:  make(map[string]*KeyValue),
		BoxState:    basics.NewByteMap[basics.AvmValue](),
	}
}

// FromInitialState builds the AppState described by an initial-states entry.
func FromInitialState(initial simulation.ApplicationInitialStates) *AppState {
	state := New()
	if initial.AppGlobals != nil {
		for _, kv := range initial.AppGlobals.Kvs {
			state.GlobalState.Set(kv.Key, kv.Value)
		}
	}
	for _, local := range initial.AppLocals {
		accountState := state.Local(local.Account)
		for _, kv := range local.Kvs {
			accountState.Set(kv.Key, kv.Value)
		}
	}
	if initial.AppBoxes != nil {
		for _, kv := range initial.AppBoxes.Kvs {
			state.BoxState.Set(kv.Key, kv.Value)
		}
	}
	return state
}

// Local returns the local state of account, creating an empty one if the
// account has none yet.
func (s *AppState) Local(account string) *KeyValue {
	kv, ok := s.LocalState[account]
	if !ok {
		kv = basics.NewByteMap[basics.AvmValue]()
		s.LocalState[account] = kv
	}
	return kv
}

// Accounts returns the accounts with a local state entry, sorted.
func (s *AppState) Accounts() []string {
	accounts := make([]string, 0, len(s.LocalState))
	for account := range s.LocalState {
		accounts = append(accounts, account)
	}
	slices.Sort(accounts)
	return accounts
}

// Clone returns a deep copy, including every per-account map.
func (s *AppState) Clone() *AppState {
	res := &AppState{
		GlobalState: s.GlobalState.Clone(),
		LocalState:  make(map[string]*KeyValue, len(s.LocalState)),
		BoxState:    s.BoxState.Clone(),
	}
	for account, kv := range s.LocalState {
		res.LocalState[account] = kv.Clone()
	}
	return res
}

// Equal compares all three scopes.
func (s *AppState) Equal(o *AppState) bool {
	if !s.GlobalState.Equal(o.GlobalState) || !s.BoxState.Equal(o.BoxState) {
		return false
	}
	if len(s.LocalState) != len(o.LocalState) {
		return false
	}
	for account, kv := range s.LocalState {
		okv, ok := o.LocalState[account]
		if !ok || !kv.Equal(okv) {
			return false
		}
	}
	return true
}

// ValidateChange checks that op can be applied, without applying it.
func ValidateChange(op simulation.StateOperation) error {
	switch op.AppState {
	case simulation.GlobalState, simulation.BoxState:
	case simulation.LocalState:
		if op.Account == "" {
			return fmt.Errorf("local state change of key %x has no account", op.Key)
		}
	default:
		return fmt.Errorf("unknown app state type %q", op.AppState)
	}
	switch op.AppStateOp {
	case simulation.AppStateWrite:
		if op.NewValue == nil {
			return fmt.Errorf("write of key %x has no value", op.Key)
		}
	case simulation.AppStateDelete:
	default:
		return fmt.Errorf("unknown app state operation %q", op.AppStateOp)
	}
	return nil
}

// ApplyChange applies one recorded state operation.
func (s *AppState) ApplyChange(op simulation.StateOperation) error {
	if err := ValidateChange(op); err != nil {
		return err
	}
	var target *KeyValue
	switch op.AppState {
	case simulation.GlobalState:
		target = s.GlobalState
	case simulation.LocalState:
		target = s.Local(op.Account)
	case simulation.BoxState:
		target = s.BoxState
	}
	if op.AppStateOp == simulation.AppStateWrite {
		target.Set(op.Key, op.NewValue.Clone())
	} else {
		target.Delete(op.Key)
	}
	return nil
}
