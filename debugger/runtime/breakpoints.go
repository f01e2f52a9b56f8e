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

package runtime

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/algorand/avm-debugger/debugger/replay"
)

// Breakpoint is a source breakpoint. Lines and columns are zero based.
type Breakpoint struct {
	ID       int
	Path     string
	Line     int
	Column   *int
	Verified bool
}

// Location is a position a breakpoint can be set at.
type Location struct {
	Line   int
	Column int
}

type sourceRef struct {
	descriptor  *replay.ProgramSourceDescriptor
	sourceIndex int
}

// normalizePath makes paths from the client and from source maps
// comparable.
func (r *Runtime) normalizePath(path string) string {
	if r.windows {
		return strings.ToLower(strings.ReplaceAll(path, "/", `\`))
	}
	return strings.ReplaceAll(path, `\`, "/")
}

// SetBreakpoint adds a breakpoint and verifies it against the loaded
// source maps. Without a column, the breakpoint moves to the lowest column
// with code on the line.
func (r *Runtime) SetBreakpoint(path string, line int, column *int) Breakpoint {
	path = r.normalizePath(path)
	bp := &Breakpoint{ID: r.nextBreakpointID, Path: path, Line: line}
	if column != nil {
		c := *column
		bp.Column = &c
	}
	r.nextBreakpointID++
	r.breakpoints[path] = append(r.breakpoints[path], bp)
	r.verifyBreakpoints(path, true)
	return bp.copy()
}

// ClearBreakpoints removes every breakpoint of path.
func (r *Runtime) ClearBreakpoints(path string) {
	delete(r.breakpoints, r.normalizePath(path))
}

// Breakpoints returns the breakpoints of path, in the order they were set.
func (r *Runtime) Breakpoints(path string) []Breakpoint {
	bps := r.breakpoints[r.normalizePath(path)]
	res := make([]Breakpoint, len(bps))
	for i, bp := range bps {
		res[i] = bp.copy()
	}
	return res
}

// BreakpointLocations returns every location of path that some program
// maps a pc to.
func (r *Runtime) BreakpointLocations(path string) []Location {
	var res []Location
	for _, ref := range r.sourcesForPath(path) {
		for _, loc := range ref.descriptor.Index().Locations(ref.sourceIndex) {
			l := Location{Line: loc.Line, Column: loc.Column}
			if !slices.Contains(res, l) {
				res = append(res, l)
			}
		}
	}
	slices.SortFunc(res, func(a, b Location) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Column - b.Column
	})
	return res
}

func (r *Runtime) sourcesForPath(path string) []sourceRef {
	path = r.normalizePath(path)
	var res []sourceRef
	for _, d := range r.engine.Descriptors() {
		for i, p := range d.SourcePaths() {
			if r.normalizePath(p) == path {
				res = append(res, sourceRef{descriptor: d, sourceIndex: i})
			}
		}
	}
	return res
}

func (r *Runtime) verifyBreakpoints(path string, silent bool) {
	bps := r.breakpoints[path]
	if len(bps) == 0 {
		return
	}
	refs := r.sourcesForPath(path)
	for _, bp := range bps {
		if bp.Verified {
			continue
		}
		for _, ref := range refs {
			pcs := ref.descriptor.Index().PCsOnLine(ref.sourceIndex, bp.Line)
			if bp.Column == nil && len(pcs) != 0 {
				lowest := pcs[0].Column
				for _, pc := range pcs[1:] {
					if pc.Column < lowest {
						lowest = pc.Column
					}
				}
				bp.Column = &lowest
			}
			if bp.Column == nil {
				continue
			}
			for _, pc := range pcs {
				if pc.Column == *bp.Column {
					bp.Verified = true
					break
				}
			}
			if bp.Verified {
				if !silent {
					r.notifyValidated(bp)
				}
				break
			}
		}
	}
}

// hitBreakpoint returns the first breakpoint at the current frame location.
// A breakpoint that was never verified is verified on hit.
func (r *Runtime) hitBreakpoint() (*Breakpoint, bool) {
	frame := r.engine.CurrentFrame()
	if frame == nil {
		return nil, false
	}
	for _, loc := range frameLocations(frame) {
		for _, bp := range r.breakpoints[r.normalizePath(loc.path)] {
			if bp.Line != loc.line || (bp.Column != nil && *bp.Column != loc.column) {
				continue
			}
			if !bp.Verified {
				bp.Verified = true
				r.notifyValidated(bp)
			}
			return bp, true
		}
	}
	return nil, false
}

type pathLocation struct {
	path   string
	line   int
	column int
}

// frameLocations lists every source position of the frame's current step.
// A program pc may map to several segments, possibly in different files.
func frameLocations(frame replay.Frame) []pathLocation {
	if pf, ok := frame.(*replay.ProgramFrame); ok {
		if d := pf.Descriptor(); d != nil {
			var res []pathLocation
			for _, loc := range d.Index().LocationsForPC(int(pf.State().PC)) {
				res = append(res, pathLocation{path: d.FullSourcePath(loc.SourceIndex), line: loc.Line, column: loc.Column})
			}
			return res
		}
	}
	file := frame.SourceFile()
	if file.Synthesized() {
		return nil
	}
	loc := frame.SourceLocation()
	return []pathLocation{{path: file.Path, line: loc.Line, column: loc.Column}}
}

func (r *Runtime) notifyValidated(bp *Breakpoint) {
	if r.onBreakpointValidated != nil {
		r.onBreakpointValidated(bp.copy())
	}
}

func (bp *Breakpoint) copy() Breakpoint {
	res := *bp
	if bp.Column != nil {
		c := *bp.Column
		res.Column = &c
	}
	return res
}
