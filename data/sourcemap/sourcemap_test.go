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

package sourcemap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/algorand/avm-debugger/test/partitiontest"
)

func TestGetSourceMap(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()
	a := require.New(t)

	sourceNames := []string{"test.teal"}
	offsetToLocation := map[int]Location{
		1:  {Line: 1},
		2:  {Line: 2},
		5:  {Line: 3},
		6:  {Line: 3, Column: 1},
		7:  {Line: 4},
		8:  {Line: 5, Column: 5},
		9:  {Line: 5, Column: 6},
		10: {Line: 6},
	}
	actualSourceMap := GetSourceMap(sourceNames, offsetToLocation)

	a.Equal(sourceMapVersion, actualSourceMap.Version)
	a.Equal(sourceNames, actualSourceMap.Sources)
	a.Equal([]string{}, actualSourceMap.Names)
	a.Equal(";AACA;AACA;;;AACA;AAAC;AACD;AACK;AAAC;AACN", actualSourceMap.Mappings)

	idx, err := actualSourceMap.Index()
	a.NoError(err)
	for pc, expected := range offsetToLocation {
		loc, ok := idx.LocationForPC(pc)
		a.True(ok)
		a.Equal(expected, loc)
	}
	_, ok := idx.LocationForPC(0)
	a.False(ok)
	_, ok = idx.LocationForPC(11)
	a.False(ok)

	a.Equal([]PCColumn{{PC: 5, Column: 0}, {PC: 6, Column: 1}}, idx.PCsOnLine(0, 3))
	a.Empty(idx.PCsOnLine(0, 7))
	a.Len(idx.Locations(0), len(offsetToLocation))
}

func TestVLQ(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()
	a := require.New(t)

	a.Equal("AAAA", MakeSourceMapLine(0, 0, 0, 0))
	a.Equal("AACA", MakeSourceMapLine(0, 0, 1, 0))
	a.Equal("AAEA", MakeSourceMapLine(0, 0, 2, 0))
	a.Equal("AAgBA", MakeSourceMapLine(0, 0, 16, 0))
	a.Equal("AAggBA", MakeSourceMapLine(0, 0, 512, 0))
	a.Equal("ADggBD", MakeSourceMapLine(0, -1, 512, -1))

	decoded, err := vlqDecode("ADggBD")
	a.NoError(err)
	a.Equal([]int{0, -1, 512, -1}, decoded)

	_, err = vlqDecode("Ag")
	a.ErrorContains(err, "truncated")
	_, err = vlqDecode("A!")
	a.ErrorContains(err, "invalid base64 character")
}

func TestVLQRoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(t1 *rapid.T) {
		values := rapid.SliceOfN(rapid.IntRange(-1<<20, 1<<20), 1, 8).Draw(t1, "values")
		var buf bytes.Buffer
		for _, v := range values {
			intToVLQ(v, &buf)
		}
		decoded, err := vlqDecode(buf.String())
		require.NoError(t1, err)
		require.Equal(t1, values, decoded)
	})
}

func TestParseAndIndexMultipleSources(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()
	a := require.New(t)

	// pc 0 -> a.py:0:4, pc 1 -> b.py:2:0 and b.py:2:1, pc 3 -> a.py:1:0
	doc := `{"version": 3, "sources": ["a.py", "b.py"], "names": [], "mappings": "AAAI;ACEJ,AAAC;;ADDD"}`
	sm, err := Parse([]byte(doc))
	a.NoError(err)
	idx, err := sm.Index()
	a.NoError(err)

	loc, ok := idx.LocationForPC(0)
	a.True(ok)
	a.Equal(Location{SourceIndex: 0, Line: 0, Column: 4}, loc)
	loc, ok = idx.LocationForPC(1)
	a.True(ok)
	a.Equal(Location{SourceIndex: 1, Line: 2, Column: 0}, loc)
	loc, ok = idx.LocationForPC(3)
	a.True(ok)
	a.Equal(Location{SourceIndex: 0, Line: 1, Column: 0}, loc)

	a.Equal([]Location{{SourceIndex: 1, Line: 2, Column: 0}, {SourceIndex: 1, Line: 2, Column: 1}}, idx.LocationsForPC(1))
	a.Equal([]PCColumn{{PC: 1, Column: 0}, {PC: 1, Column: 1}}, idx.PCsOnLine(1, 2))
	a.Equal([]Location{{SourceIndex: 1, Line: 2, Column: 0}, {SourceIndex: 1, Line: 2, Column: 1}}, idx.Locations(1))
	a.Empty(idx.LocationsForPC(2))
	a.Empty(idx.LocationsForPC(7))

	_, err = Parse([]byte(`{"version": 2, "sources": [], "mappings": ""}`))
	a.ErrorContains(err, "unsupported source map version")

	bad := SourceMap{Version: 3, Sources: []string{"a"}, Mappings: "ACAA"}
	_, err = bad.Index()
	a.ErrorContains(err, "out of range")
}
