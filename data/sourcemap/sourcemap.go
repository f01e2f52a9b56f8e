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
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/algorand/avm-debugger/protocol"
)

// sourceMapVersion is currently 3.
// Refer to the full specs of sourcemap here: https://sourcemaps.info/spec.html
const sourceMapVersion = 3
const b64table string = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// SourceMap is a compiler-produced source map for one program. Generated
// "lines" are program counters: the i-th `;`-separated group of `mappings`
// describes pc i.
type SourceMap struct {
	Version    int      `json:"version"`
	File       string   `json:"file,omitempty"`
	SourceRoot string   `json:"sourceRoot,omitempty"`
	Sources    []string `json:"sources"`
	Names      []string `json:"names"`
	// Mapping field is deprecated. Use `Mappings` field instead.
	Mapping  string `json:"mapping,omitempty"`
	Mappings string `json:"mappings"`
}

// Location is a position in one of the map's sources. Lines and columns
// are zero based.
type Location struct {
	SourceIndex int
	Line        int
	Column      int
}

// PCColumn is a program counter mapped to a column of some source line.
type PCColumn struct {
	PC     int
	Column int
}

type sourceLine struct {
	sourceIndex int
	line        int
}

// Index is a decoded SourceMap with lookups in both directions.
type Index struct {
	Sources []string

	// pcToLocations holds every segment of a pc, in mapping order.
	pcToLocations [][]Location
	lineToPCs     map[sourceLine][]PCColumn
}

// Parse decodes a source map JSON document.
func Parse(data []byte) (*SourceMap, error) {
	var sm SourceMap
	if err := protocol.DecodeLenientJSON(data, &sm); err != nil {
		return nil, err
	}
	if sm.Version != sourceMapVersion {
		return nil, fmt.Errorf("unsupported source map version %d", sm.Version)
	}
	return &sm, nil
}

// Index decodes the VLQ mappings of sm.
func (sm *SourceMap) Index() (*Index, error) {
	mappings := sm.Mappings
	if mappings == "" {
		mappings = sm.Mapping
	}
	idx := &Index{
		Sources:   sm.Sources,
		lineToPCs: make(map[sourceLine][]PCColumn),
	}
	if mappings == "" {
		return idx, nil
	}

	var sourceIndex, line, column int
	groups := strings.Split(mappings, ";")
	idx.pcToLocations = make([][]Location, len(groups))
	for pc, group := range groups {
		if group == "" {
			continue
		}
		for _, segment := range strings.Split(group, ",") {
			fields, err := vlqDecode(segment)
			if err != nil {
				return nil, fmt.Errorf("pc %d: %w", pc, err)
			}
			// a one field segment maps the generated column to nothing
			if len(fields) < 4 {
				continue
			}
			sourceIndex += fields[1]
			line += fields[2]
			column += fields[3]
			if sourceIndex < 0 || sourceIndex >= len(sm.Sources) {
				return nil, fmt.Errorf("pc %d: source index %d out of range", pc, sourceIndex)
			}
			loc := Location{SourceIndex: sourceIndex, Line: line, Column: column}
			if slices.Contains(idx.pcToLocations[pc], loc) {
				continue
			}
			idx.pcToLocations[pc] = append(idx.pcToLocations[pc], loc)
			key := sourceLine{sourceIndex: sourceIndex, line: line}
			idx.lineToPCs[key] = append(idx.lineToPCs[key], PCColumn{PC: pc, Column: column})
		}
	}
	return idx, nil
}

// LocationForPC returns the source location of pc: its first segment.
func (idx *Index) LocationForPC(pc int) (Location, bool) {
	locs := idx.LocationsForPC(pc)
	if len(locs) == 0 {
		return Location{}, false
	}
	return locs[0], true
}

// LocationsForPC returns every source location mapped to pc.
func (idx *Index) LocationsForPC(pc int) []Location {
	if pc < 0 || pc >= len(idx.pcToLocations) {
		return nil
	}
	return idx.pcToLocations[pc]
}

// PCsOnLine returns every pc mapped to line of source sourceIndex, ordered by pc.
func (idx *Index) PCsOnLine(sourceIndex, line int) []PCColumn {
	return idx.lineToPCs[sourceLine{sourceIndex: sourceIndex, line: line}]
}

// Locations returns every mapped location of source sourceIndex, in pc order.
func (idx *Index) Locations(sourceIndex int) []Location {
	var res []Location
	for _, locs := range idx.pcToLocations {
		for _, loc := range locs {
			if loc.SourceIndex == sourceIndex {
				res = append(res, loc)
			}
		}
	}
	return res
}

// GetSourceMap returns a struct containing details about
// the assembled file and encoded mappings to the source file.
func GetSourceMap(sourceNames []string, offsetToLocation map[int]Location) SourceMap {
	maxPC := 0
	for pc := range offsetToLocation {
		if pc > maxPC {
			maxPC = pc
		}
	}

	// Array where index is the PC and value is the line for `mappings` field.
	var prev Location
	pcToLine := make([]string, maxPC+1)
	for pc := range pcToLine {
		if loc, ok := offsetToLocation[pc]; ok {
			pcToLine[pc] = MakeSourceMapLine(0, loc.SourceIndex-prev.SourceIndex, loc.Line-prev.Line, loc.Column-prev.Column)
			prev = loc
		} else {
			pcToLine[pc] = ""
		}
	}

	return SourceMap{
		Version:  sourceMapVersion,
		Sources:  sourceNames,
		Names:    []string{},
		Mappings: strings.Join(pcToLine, ";"),
	}
}

// intToVLQ writes out value to bytes.Buffer
func intToVLQ(v int, buf *bytes.Buffer) {
	v <<= 1
	if v < 0 {
		v = -v
		v |= 1
	}
	for v >= 32 {
		buf.WriteByte(b64table[32|(v&31)])
		v >>= 5
	}
	buf.WriteByte(b64table[v])
}

// vlqDecode is the inverse of a sequence of intToVLQ calls.
func vlqDecode(segment string) ([]int, error) {
	var res []int
	value, shift := 0, 0
	for i := 0; i < len(segment); i++ {
		digit := strings.IndexByte(b64table, segment[i])
		if digit < 0 {
			return nil, fmt.Errorf("invalid base64 character %q in mapping %q", segment[i], segment)
		}
		value += (digit & 31) << shift
		if digit&32 != 0 {
			shift += 5
			continue
		}
		negative := value&1 == 1
		value >>= 1
		if negative {
			value = -value
		}
		res = append(res, value)
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, fmt.Errorf("truncated mapping %q", segment)
	}
	return res, nil
}

// MakeSourceMapLine creates source map mapping's line entry
func MakeSourceMapLine(tcol, sindex, sline, scol int) string {
	buf := bytes.NewBuffer(nil)
	intToVLQ(tcol, buf)
	intToVLQ(sindex, buf)
	intToVLQ(sline, buf)
	intToVLQ(scol, buf)
	return buf.String()
}
