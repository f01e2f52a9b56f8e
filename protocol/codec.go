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
package protocol

import (
	"reflect"

	"github.com/algorand/go-codec/codec"
)

// JSONHandle is used to instantiate JSON encoders with our settings
// (canonical, indented)
var JSONHandle *codec.JsonHandle

// LenientCodecHandle decodes msgpack documents produced by other software
// (algod simulate responses). Unknown fields are skipped and untyped maps
// decode with string keys.
var LenientCodecHandle *codec.MsgpackHandle

// LenientJSONHandle is the JSON counterpart of LenientCodecHandle.
var LenientJSONHandle *codec.JsonHandle

var mapStrIntfType = reflect.TypeOf(map[string]interface{}(nil))

func init() {
	JSONHandle = new(codec.JsonHandle)
	JSONHandle.ErrorIfNoField = true
	JSONHandle.ErrorIfNoArrayExpand = true
	JSONHandle.Canonical = true
	JSONHandle.RecursiveEmptyCheck = true
	JSONHandle.Indent = 2
	JSONHandle.HTMLCharsAsIs = true

	LenientCodecHandle = new(codec.MsgpackHandle)
	LenientCodecHandle.ErrorIfNoField = false
	LenientCodecHandle.PositiveIntUnsigned = true
	LenientCodecHandle.RawToString = true
	LenientCodecHandle.MapType = mapStrIntfType

	LenientJSONHandle = new(codec.JsonHandle)
	LenientJSONHandle.ErrorIfNoField = false
	LenientJSONHandle.HTMLCharsAsIs = true
	LenientJSONHandle.MapType = mapStrIntfType
}

// EncodeJSON returns a JSON-encoded byte buffer for a given object.
// Output is canonical (sorted map keys) and indented by two spaces.
func EncodeJSON(obj interface{}) []byte {
	var b []byte
	enc := codec.NewEncoderBytes(&b, JSONHandle)
	enc.MustEncode(obj)
	return b
}

// DecodeLenientJSON decodes a JSON document that may carry fields objptr
// does not declare.
func DecodeLenientJSON(b []byte, objptr interface{}) error {
	dec := codec.NewDecoderBytes(b, LenientJSONHandle)
	return dec.Decode(objptr)
}

// DecodeLenientMsgp decodes a msgpack document that may carry fields objptr
// does not declare.
func DecodeLenientMsgp(b []byte, objptr interface{}) error {
	dec := codec.NewDecoderBytes(b, LenientCodecHandle)
	return dec.Decode(objptr)
}
