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
	"fmt"
)

// TopLevelGroupsFrame walks the transaction groups of a trace with more
// than one group.
type TopLevelGroupsFrame struct {
	engine *Engine

	index   int
	entered bool
	groups  []*TxnGroupFrame

	content   string
	locations []SourceLocation
}

func newTopLevelGroupsFrame(e *Engine) *TopLevelGroupsFrame {
	content, locations := renderGroups(e.response)
	return &TopLevelGroupsFrame{
		engine:    e,
		groups:    make([]*TxnGroupFrame, len(e.response.TxnGroups)),
		content:   content,
		locations: locations,
	}
}

// Name implements Frame.
func (f *TopLevelGroupsFrame) Name() string {
	return fmt.Sprintf("group %d", f.index)
}

// SourceFile implements Frame.
func (f *TopLevelGroupsFrame) SourceFile() SourceFile {
	return SourceFile{
		Name:            "transaction-groups.json",
		Content:         f.content,
		ContentMimeType: jsonMimeType,
	}
}

// SourceLocation implements Frame.
func (f *TopLevelGroupsFrame) SourceLocation() SourceLocation {
	return f.locations[f.index]
}

// GroupIndex returns the group the frame points at.
func (f *TopLevelGroupsFrame) GroupIndex() int {
	return f.index
}

func (f *TopLevelGroupsFrame) forward(stack *Stack) (*ExceptionInfo, error) {
	if !f.entered {
		group := newTopLevelTxnGroupFrame(f.engine, f.index)
		f.groups[f.index] = group
		f.entered = true
		stack.Push(group)
		return nil, nil
	}
	if f.index+1 < len(f.groups) {
		f.index++
		f.entered = false
		return nil, nil
	}
	stack.Pop()
	return nil, nil
}

func (f *TopLevelGroupsFrame) backward(stack *Stack) (*ExceptionInfo, error) {
	if f.entered {
		f.entered = false
		return nil, nil
	}
	if f.index == 0 {
		stack.Pop()
		return nil, nil
	}
	f.index--
	f.entered = true
	return f.groups[f.index].resume(stack)
}

func (f *TopLevelGroupsFrame) resume(stack *Stack) (*ExceptionInfo, error) {
	stack.Push(f)
	f.entered = true
	return f.groups[f.index].resume(stack)
}
