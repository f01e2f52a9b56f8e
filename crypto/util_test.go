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

package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/avm-debugger/protocol"
	"github.com/algorand/avm-debugger/test/partitiontest"
)

type testHashable []byte

func (h testHashable) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.Program, h
}

func TestHash(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	d := Hash(nil)
	require.Equal(t, "c672b8d1ef56ed28ab87c3622c5114069bdd3ad7b8f9737498d0c01ecef0967a", hex.EncodeToString(d[:]))
	require.False(t, d.IsZero())
	require.True(t, Digest{}.IsZero())
	require.Len(t, d.String(), 52)
}

func TestHashObj(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	program := testHashable{0x06, 0x81, 0x01}
	require.Equal(t, []byte("Program\x06\x81\x01"), HashRep(program))
	require.Equal(t, Hash([]byte("Program\x06\x81\x01")), HashObj(program))
	require.NotEqual(t, Hash(program), HashObj(program))
}
