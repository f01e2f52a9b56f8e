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
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/avm-debugger/crypto"
	"github.com/algorand/avm-debugger/test/partitiontest"
)

func TestChecksumAddress_Unmarshal(t *testing.T) {
	partitiontest.PartitionTest(t)

	address := crypto.Hash([]byte("randomString"))
	shortAddress := Address(address)

	addr, err := UnmarshalChecksumAddress(shortAddress.String())
	require.NoError(t, err)
	require.Equal(t, addr, shortAddress)
	require.Len(t, shortAddress.String(), 58)
}

func TestAddressChecksumMalformed(t *testing.T) {
	partitiontest.PartitionTest(t)

	shortAddress := Address(crypto.Hash([]byte("randomString")))
	other := Address(crypto.Hash([]byte("otherString")))

	testCases := []struct {
		name    string
		address string
	}{
		{"empty", ""},
		{"trailing char", shortAddress.String() + "r"},
		{"trailing space", shortAddress.String() + " "},
		{"leading char", "4" + shortAddress.String()},
		{"leading space", " " + shortAddress.String()},
		{"wrong checksum", shortAddress.String()[:52] + other.String()[52:]},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalChecksumAddress(tc.address)
			require.Error(t, err)
		})
	}
}

func TestAddressText(t *testing.T) {
	partitiontest.PartitionTest(t)

	addr := Address(crypto.Hash([]byte("text")))
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var decoded Address
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, addr, decoded)

	raw, ok := AddressFromBytes(addr[:])
	require.True(t, ok)
	require.Equal(t, addr, raw)
	_, ok = AddressFromBytes(addr[:31])
	require.False(t, ok)
}

func TestLogicSigAddress(t *testing.T) {
	partitiontest.PartitionTest(t)

	program := []byte{0x06, 0x81, 0x01}
	expected := sha512.Sum512_256(append([]byte("Program"), program...))
	require.Equal(t, Address(expected), LogicSigAddress(program))
	require.NotEqual(t, LogicSigAddress(program), LogicSigAddress([]byte{0x06, 0x81, 0x00}))
}
