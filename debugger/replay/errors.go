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
	"errors"
	"fmt"

	"github.com/algorand/avm-debugger/data/simulation"
)

// ErrNotLoaded is returned when stepping an engine that has no resources loaded.
var ErrNotLoaded = errors.New("replay engine has no resources loaded")

// MalformedTraceError reports recorded data that violates an invariant of the
// replay: operand stack underflow, an invalid scratch slot, a state change
// with no owning application, or inner transactions the trace does not carry.
type MalformedTraceError struct {
	Path    simulation.TxnPath
	Program string
	PC      uint64
	Reason  string
}

func (e *MalformedTraceError) Error() string {
	if e.Program == "" {
		return fmt.Sprintf("malformed trace at txn %v: %s", []uint64(e.Path), e.Reason)
	}
	return fmt.Sprintf("malformed trace at txn %v, %s pc %d: %s", []uint64(e.Path), e.Program, e.PC, e.Reason)
}

// ExceptionInfo is a failure recorded in the trace: the simulated execution
// failed at this point.
type ExceptionInfo struct {
	Message string
}

func (e *ExceptionInfo) String() string {
	return e.Message
}
