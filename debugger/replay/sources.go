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
	"path/filepath"
	"strings"

	"github.com/algorand/avm-debugger/data/basics"
	"github.com/algorand/avm-debugger/data/sourcemap"
)

// ProgramSourceDescriptor associates a compiled program, by hash, with the
// source map produced for it.
type ProgramSourceDescriptor struct {
	Hash []byte
	// SourceMapLocation is the path of the source map file. Sources of the
	// map are resolved relative to it.
	SourceMapLocation string
	SourceMap         *sourcemap.SourceMap

	index *sourcemap.Index
}

// NewProgramSourceDescriptor decodes the mappings of sm.
func NewProgramSourceDescriptor(hash []byte, sourceMapLocation string, sm *sourcemap.SourceMap) (*ProgramSourceDescriptor, error) {
	idx, err := sm.Index()
	if err != nil {
		return nil, err
	}
	return &ProgramSourceDescriptor{
		Hash:              append([]byte{}, hash...),
		SourceMapLocation: sourceMapLocation,
		SourceMap:         sm,
		index:             idx,
	}, nil
}

// Index returns the decoded source map.
func (d *ProgramSourceDescriptor) Index() *sourcemap.Index {
	return d.index
}

// FullSourcePath returns the path of source i, resolved against the source
// map location.
func (d *ProgramSourceDescriptor) FullSourcePath(i int) string {
	return ResolvePath(d.SourceMapLocation, d.SourceMap.Sources[i])
}

// SourcePaths returns every resolved source path, in source index order.
func (d *ProgramSourceDescriptor) SourcePaths() []string {
	res := make([]string, len(d.SourceMap.Sources))
	for i := range d.SourceMap.Sources {
		res[i] = d.FullSourcePath(i)
	}
	return res
}

// Clone returns d: descriptors are immutable once built.
func (d *ProgramSourceDescriptor) Clone() *ProgramSourceDescriptor {
	return d
}

// Equal compares descriptor identity.
func (d *ProgramSourceDescriptor) Equal(o *ProgramSourceDescriptor) bool {
	return d == o
}

// ResolvePath resolves p relative to the directory holding base.
func ResolvePath(base, p string) string {
	p = strings.TrimPrefix(p, "file://")
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(filepath.Dir(base), p)
}

// DescriptorRegistry finds descriptors by program hash.
type DescriptorRegistry struct {
	byHash basics.ByteMap[*ProgramSourceDescriptor]
}

// NewDescriptorRegistry indexes descs by hash. A later descriptor replaces
// an earlier one with the same hash.
func NewDescriptorRegistry(descs ...*ProgramSourceDescriptor) *DescriptorRegistry {
	r := &DescriptorRegistry{}
	for _, d := range descs {
		r.byHash.Set(d.Hash, d)
	}
	return r
}

// FindByHash returns the descriptor of the program with the given hash, or nil.
func (r *DescriptorRegistry) FindByHash(hash []byte) *ProgramSourceDescriptor {
	if r == nil {
		return nil
	}
	d, _ := r.byHash.Get(hash)
	return d
}

// Len returns the number of registered programs.
func (r *DescriptorRegistry) Len() int {
	return r.byHash.Len()
}
