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

package simulation

import (
	"github.com/algorand/avm-debugger/data/basics"
)

// ResultLatestVersion is the only simulate response version the debugger replays.
const ResultLatestVersion = uint64(2)

// TxnPath is a "transaction path": e.g. [0, 0, 1] means the second inner txn of the first
// inner txn of the first txn. You can use this transaction path to find the txn info in the
// `TxnResults` list.
type TxnPath []uint64

// SimulateResponse is the body of an algod simulate response with execution
// traces enabled.
type SimulateResponse struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Version         uint64                  `codec:"version"`
	LastRound       uint64                  `codec:"last-round"`
	TxnGroups       []TxnGroupResult        `codec:"txn-groups"`
	ExecTraceConfig ExecTraceConfig         `codec:"exec-trace-config"`
	InitialStates   *ResourcesInitialStates `codec:"initial-states"`
}

// ExecTraceConfig gathers all execution trace related configs for simulation result
type ExecTraceConfig struct {
	_struct struct{} `codec:",omitempty"`

	Enable  bool `codec:"enable"`
	Stack   bool `codec:"stack-change"`
	Scratch bool `codec:"scratch-change"`
	State   bool `codec:"state-change"`
}

// TxnGroupResult contains the simulation result for a single transaction group
type TxnGroupResult struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Txns []TxnResult `codec:"txn-results"`

	// FailureMessage will be the error message for the first transaction in the group which errors.
	// If the group succeeds, this will be empty.
	FailureMessage string `codec:"failure-message"`

	// FailedAt is the path to the txn that failed inside of this group
	FailedAt TxnPath `codec:"failed-at"`

	// AppBudgetAdded is the total opcode budget for this group
	AppBudgetAdded uint64 `codec:"app-budget-added"`

	// AppBudgetConsumed is the total opcode cost used for this group
	AppBudgetConsumed uint64 `codec:"app-budget-consumed"`
}

// TxnResult contains the simulation result for a single transaction
type TxnResult struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Txn                    PendingTransaction `codec:"txn-result"`
	AppBudgetConsumed      uint64             `codec:"app-budget-consumed"`
	LogicSigBudgetConsumed uint64             `codec:"logic-sig-budget-consumed"`
	Trace                  *TransactionTrace  `codec:"exec-trace"`
}

// PendingTransaction is the transaction part of a simulated transaction result.
// The signed transaction is kept as a generic document: it is rendered for
// display and only a few fields are interpreted.
type PendingTransaction struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Txn              map[string]interface{} `codec:"txn"`
	ApplicationIndex uint64                 `codec:"application-index"`
	AssetIndex       uint64                 `codec:"asset-index"`
	ConfirmedRound   uint64                 `codec:"confirmed-round"`
	PoolError        string                 `codec:"pool-error"`
	InnerTxns        []PendingTransaction   `codec:"inner-txns"`
	Logs             [][]byte               `codec:"logs"`
}

// ScratchChange represents a write operation into a scratch slot
type ScratchChange struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	// Slot stands for the scratch slot id get written to
	Slot uint64 `codec:"slot"`

	// NewValue is the stack value written to scratch slot
	NewValue basics.AvmValue `codec:"new-value"`
}

// AppStateEnum names the storage an application state operation touches.
type AppStateEnum string

const (
	// GlobalState is application global storage
	GlobalState AppStateEnum = "g"
	// LocalState is per-account application local storage
	LocalState AppStateEnum = "l"
	// BoxState is application box storage
	BoxState AppStateEnum = "b"
)

// AppStateOpEnum is the kind of an application state operation.
type AppStateOpEnum string

const (
	// AppStateWrite writes NewValue under Key
	AppStateWrite AppStateOpEnum = "w"
	// AppStateDelete removes Key
	AppStateDelete AppStateOpEnum = "d"
)

// StateOperation represents an operation into an app local/global/box state
type StateOperation struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	// AppStateOp stands for either write or delete.
	AppStateOp AppStateOpEnum `codec:"operation"`

	// AppState stands for one of global/local/box.
	AppState AppStateEnum `codec:"app-state-type"`

	// Key is the app state key, for global, local or box state.
	Key []byte `codec:"key"`

	// NewValue is the value write to the app's state, only set for write operations.
	NewValue *basics.AvmValue `codec:"new-value"`

	// Account is the account the local state belongs to, only set for local state.
	Account string `codec:"account"`
}

// OpcodeTraceUnit contains the trace effects of a single opcode evaluation.
type OpcodeTraceUnit struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	// The PC of the opcode being evaluated
	PC uint64 `codec:"pc"`

	// SpawnedInners contains the indexes of traces for inner transactions spawned by this opcode,
	// if any. These indexes refer to the InnerTraces array of the TransactionTrace object containing
	// this OpcodeTraceUnit.
	SpawnedInners []uint64 `codec:"spawned-inners"`

	// what has been added to stack
	StackAdded []basics.AvmValue `codec:"stack-additions"`

	// deleted element number from stack
	StackPopCount uint64 `codec:"stack-pop-count"`

	// ScratchSlotChanges stands for write operations into scratch slots
	ScratchSlotChanges []ScratchChange `codec:"scratch-changes"`

	// StateChanges stands for the creation/reading/writing/deletion operations to app's state
	StateChanges []StateOperation `codec:"state-changes"`
}

// HasDeltas reports whether applying the unit changes anything besides the pc.
func (u OpcodeTraceUnit) HasDeltas() bool {
	return u.StackPopCount != 0 || len(u.StackAdded) != 0 || len(u.ScratchSlotChanges) != 0 || len(u.StateChanges) != 0
}

// TransactionTrace contains the trace effects of a single transaction evaluation (including its inners)
type TransactionTrace struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	// ApprovalProgramTrace stands for a slice of OpcodeTraceUnit over application call on approval program
	ApprovalProgramTrace []OpcodeTraceUnit `codec:"approval-program-trace"`
	// ApprovalProgramHash stands for the hash digest of approval program bytecode executed during simulation
	ApprovalProgramHash []byte `codec:"approval-program-hash"`
	// ClearStateProgramTrace stands for a slice of OpcodeTraceUnit over application call on clear-state program
	ClearStateProgramTrace []OpcodeTraceUnit `codec:"clear-state-program-trace"`
	// ClearStateProgramHash stands for the hash digest of clear state program bytecode executed during simulation
	ClearStateProgramHash []byte `codec:"clear-state-program-hash"`
	// ClearStateRollback is true if the state changes made by the clear state program were rolled back
	ClearStateRollback bool `codec:"clear-state-rollback"`
	// ClearStateRollbackError is the error that caused the rollback, if any
	ClearStateRollbackError string `codec:"clear-state-rollback-error"`
	// LogicSigTrace contains the trace for a logicsig evaluation, if the transaction is approved by a logicsig.
	LogicSigTrace []OpcodeTraceUnit `codec:"logic-sig-trace"`
	// LogicSigHash stands for the hash digest of logic sig bytecode executed during simulation
	LogicSigHash []byte `codec:"logic-sig-hash"`
	// InnerTraces contains the traces for inner transactions, if this transaction spawned any. This
	// object only contains traces for inners that are immediate children of this transaction.
	// Grandchild traces will be present inside the TransactionTrace of their parent.
	InnerTraces []TransactionTrace `codec:"inner-trace"`
}

// ResourcesInitialStates gathers the initial states of resources touched by the simulation.
type ResourcesInitialStates struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	// AllAppsInitialStates has all of the apps' initial states touched in the simulation
	AllAppsInitialStates []ApplicationInitialStates `codec:"app-initial-states"`
}

// ApplicationInitialStates is the app state of an application before the group executes.
type ApplicationInitialStates struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	AppID      uint64                 `codec:"id"`
	AppGlobals *ApplicationKVStorage  `codec:"app-globals"`
	AppLocals  []ApplicationKVStorage `codec:"app-locals"`
	AppBoxes   *ApplicationKVStorage  `codec:"app-boxes"`
}

// ApplicationKVStorage is the key/value content of one app storage, with the
// owning account for local storage.
type ApplicationKVStorage struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Account string        `codec:"account"`
	Kvs     []AvmKeyValue `codec:"kvs"`
}

// AvmKeyValue is one storage entry.
type AvmKeyValue struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Key   []byte          `codec:"key"`
	Value basics.AvmValue `codec:"value"`
}
