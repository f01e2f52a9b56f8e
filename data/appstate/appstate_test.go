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

package appstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/data/simulation"
	"github.com/algorand/avm-debugger/test/partitiontest"
)

func uintPtr(u uint64) *basics.AvmValue {
	v := basics.Uint64Value(u)
	return &v
}

func TestFromInitialState(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	initial := simulation.ApplicationInitialStates{
		AppID: 1,
		AppGlobals: &simulation.ApplicationKVStorage{Kvs: []simulation.AvmKeyValue{
			{Key: []byte("g"), Value: basics.Uint64Value(1)},
		}},
		AppLocals: []simulation.ApplicationKVStorage{
			{Account: "ALICE", Kvs: []simulation.AvmKeyValue{{Key: []byte("l"), Value: basics.BytesValue([]byte("x"))}}},
			{Account: "BOB"},
		},
		AppBoxes: &simulation.ApplicationKVStorage{Kvs: []simulation.AvmKeyValue{
			{Key: []byte("box"), Value: basics.BytesValue([]byte{0, 0})},
		}},
	}
	state := FromInitialState(initial)
	require.Equal(t, 1, state.GlobalState.Len())
	require.Equal(t, 1, state.BoxState.Len())
	require.Equal(t, []string{"ALICE", "BOB"}, state.Accounts())
	require.Zero(t, state.LocalState["BOB"].Len())
	v, ok := state.LocalState["ALICE"].Get([]byte("l"))
	require.True(t, ok)
	require.Equal(t, []byte("x"), v.Bytes)
}

func TestCloneIsIndependent(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	state := New()
	require.NoError(t, state.ApplyChange(simulation.StateOperation{
		AppState: simulation.LocalState, AppStateOp: simulation.AppStateWrite,
		Account: "ALICE", Key: []byte("k"), NewValue: uintPtr(3),
	}))
	clone := state.Clone()
	require.True(t, state.Equal(clone))

	require.NoError(t, clone.ApplyChange(simulation.StateOperation{
		AppState: simulation.LocalState, AppStateOp: simulation.AppStateDelete,
		Account: "ALICE", Key: []byte("k"),
	}))
	require.True(t, state.LocalState["ALICE"].Has([]byte("k")))
	require.False(t, clone.LocalState["ALICE"].Has([]byte("k")))
	require.False(t, state.Equal(clone))

	clone.Local("CAROL")
	require.NotContains(t, state.LocalState, "CAROL")
}

func TestApplyChange(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	testCases := []struct {
		name  string
		op    simulation.StateOperation
		error string
		check func(*testing.T, *AppState)
	}{
		{
			name: "global write",
			op:   simulation.StateOperation{AppState: simulation.GlobalState, AppStateOp: simulation.AppStateWrite, Key: []byte("k"), NewValue: uintPtr(100)},
			check: func(t *testing.T, s *AppState) {
				v, ok := s.GlobalState.Get([]byte("k"))
				require.True(t, ok)
				require.Equal(t, uint64(100), v.Uint)
			},
		},
		{
			name: "box delete of missing key",
			op:   simulation.StateOperation{AppState: simulation.BoxState, AppStateOp: simulation.AppStateDelete, Key: []byte("nope")},
			check: func(t *testing.T, s *AppState) {
				require.Zero(t, s.BoxState.Len())
			},
		},
		{
			name:  "local without account",
			op:    simulation.StateOperation{AppState: simulation.LocalState, AppStateOp: simulation.AppStateWrite, Key: []byte("k"), NewValue: uintPtr(1)},
			error: "has no account",
		},
		{
			name:  "write without value",
			op:    simulation.StateOperation{AppState: simulation.GlobalState, AppStateOp: simulation.AppStateWrite, Key: []byte("k")},
			error: "has no value",
		},
		{
			name:  "unknown scope",
			op:    simulation.StateOperation{AppState: "x", AppStateOp: simulation.AppStateWrite, Key: []byte("k"), NewValue: uintPtr(1)},
			error: "unknown app state type",
		},
		{
			name:  "unknown operation",
			op:    simulation.StateOperation{AppState: simulation.GlobalState, AppStateOp: "r", Key: []byte("k")},
			error: "unknown app state operation",
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			state := New()
			err := state.ApplyChange(tc.op)
			if tc.error != "" {
				require.ErrorContains(t, err, tc.error)
				require.True(t, state.Equal(New()))
				return
			}
			require.NoError(t, err)
			tc.check(t, state)
		})
	}
}
