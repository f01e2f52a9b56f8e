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
	"encoding/base64"

	"golang.org/x/exp/slices"
)

// HasPrefix reports whether prefix is an ancestor of (or equal to) path.
func (path TxnPath) HasPrefix(prefix TxnPath) bool {
	return len(prefix) <= len(path) && slices.Equal(path[:len(prefix)], prefix)
}

// Equal compares two paths element by element.
func (path TxnPath) Equal(other TxnPath) bool {
	return slices.Equal(path, other)
}

// Child returns a new path extending path with index.
func (path TxnPath) Child(index uint64) TxnPath {
	res := make(TxnPath, len(path), len(path)+1)
	copy(res, path)
	return append(res, index)
}

// Failure is the recorded failure of a transaction group: the path of the
// failing transaction relative to its group and the evaluation error.
type Failure struct {
	Path    TxnPath
	Message string
}

// GroupFailure returns the recorded failure of the group, or nil when the
// group succeeded.
func (g TxnGroupResult) GroupFailure() *Failure {
	if g.FailureMessage == "" && len(g.FailedAt) == 0 {
		return nil
	}
	return &Failure{Path: g.FailedAt, Message: g.FailureMessage}
}

// HasPrograms reports whether any program of the transaction itself was traced.
func (tr *TransactionTrace) HasPrograms() bool {
	return tr != nil && (len(tr.LogicSigTrace) != 0 || len(tr.ApprovalProgramTrace) != 0 || len(tr.ClearStateProgramTrace) != 0)
}

// HasLogicSig reports whether a logic signature evaluation was traced.
func (tr *TransactionTrace) HasLogicSig() bool {
	return tr != nil && len(tr.LogicSigTrace) != 0
}

// HasApp reports whether an approval or clear state evaluation was traced.
func (tr *TransactionTrace) HasApp() bool {
	return tr != nil && (len(tr.ApprovalProgramTrace) != 0 || len(tr.ClearStateProgramTrace) != 0)
}

// AppProgram returns the traced application program: the approval program
// if present, the clear state program otherwise.
func (tr *TransactionTrace) AppProgram() (units []OpcodeTraceUnit, hash []byte, clearState bool) {
	if tr == nil {
		return nil, nil, false
	}
	if len(tr.ApprovalProgramTrace) != 0 {
		return tr.ApprovalProgramTrace, tr.ApprovalProgramHash, false
	}
	return tr.ClearStateProgramTrace, tr.ClearStateProgramHash, true
}

// field walks nested generic documents.
func (t PendingTransaction) field(path ...string) (interface{}, bool) {
	var cur interface{} = t.Txn
	for _, key := range path {
		switch m := cur.(type) {
		case map[string]interface{}:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			cur = v
		case map[interface{}]interface{}:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), n >= 0
	case uint:
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case uint32:
		return uint64(n), true
	case int32:
		return uint64(n), n >= 0
	case uint8:
		return uint64(n), true
	case int8:
		return uint64(n), n >= 0
	case uint16:
		return uint64(n), true
	case int16:
		return uint64(n), n >= 0
	case float64:
		return uint64(n), n >= 0 && n == float64(uint64(n))
	}
	return 0, false
}

func toBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		decoded, err := base64.StdEncoding.DecodeString(b)
		return decoded, err == nil
	}
	return nil, false
}

// AppID returns the application the transaction calls: the explicit
// application id, or the id assigned at creation.
func (t PendingTransaction) AppID() uint64 {
	if v, ok := t.field("txn", "apid"); ok {
		if id, ok := toUint64(v); ok && id != 0 {
			return id
		}
	}
	return t.ApplicationIndex
}

// LogicSigProgram returns the bytecode of the logic signature the
// transaction is signed with.
func (t PendingTransaction) LogicSigProgram() ([]byte, bool) {
	v, ok := t.field("lsig", "l")
	if !ok {
		return nil, false
	}
	return toBytes(v)
}

// Type returns the transaction type, e.g. "appl" or "pay".
func (t PendingTransaction) Type() string {
	v, _ := t.field("txn", "type")
	s, _ := v.(string)
	return s
}
