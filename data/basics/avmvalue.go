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

package basics

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// AvmType is the type of a value on the AVM stack or in storage
type AvmType uint64

const (
	// AvmNoType is the zero value of AvmType, never produced by a valid trace
	AvmNoType AvmType = iota
	// AvmBytesType marks a byte slice value
	AvmBytesType
	// AvmUintType marks a 64-bit unsigned integer value
	AvmUintType
)

func (t AvmType) String() string {
	switch t {
	case AvmBytesType:
		return "[]byte"
	case AvmUintType:
		return "uint64"
	}
	return "unknown"
}

// AvmValue is the value of a stack element, scratch slot or storage entry,
// in the shape algod reports it in simulate traces.
type AvmValue struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Type  AvmType `codec:"type"`
	Bytes []byte  `codec:"bytes"`
	Uint  uint64  `codec:"uint"`
}

// Uint64Value builds an integer AvmValue.
func Uint64Value(u uint64) AvmValue {
	return AvmValue{Type: AvmUintType, Uint: u}
}

// BytesValue builds a byte slice AvmValue.
func BytesValue(b []byte) AvmValue {
	return AvmValue{Type: AvmBytesType, Bytes: b}
}

// IsUintZero reports whether v is the integer 0, the implicit value of an
// unused scratch slot.
func (v AvmValue) IsUintZero() bool {
	return v.Type == AvmUintType && v.Uint == 0
}

// Clone returns a deep copy of v.
func (v AvmValue) Clone() AvmValue {
	res := v
	if v.Bytes != nil {
		res.Bytes = append([]byte{}, v.Bytes...)
	}
	return res
}

// Equal compares type and payload.
func (v AvmValue) Equal(o AvmValue) bool {
	if v.Type != o.Type {
		return false
	}
	if v.Type == AvmUintType {
		return v.Uint == o.Uint
	}
	return bytes.Equal(v.Bytes, o.Bytes)
}

func (v AvmValue) String() string {
	if v.Type == AvmUintType {
		return fmt.Sprintf("%d", v.Uint)
	}
	return "0x" + hex.EncodeToString(v.Bytes)
}
