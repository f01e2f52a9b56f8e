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

// Frame is one node of the replay stack. Top to bottom, the stack mirrors
// the nested execution context of the current step.
type Frame interface {
	// Name is the display label of the frame.
	Name() string
	// SourceFile is the document the frame is displayed in.
	SourceFile() SourceFile
	// SourceLocation is the highlighted range within SourceFile.
	SourceLocation() SourceLocation

	forward(stack *Stack) (*ExceptionInfo, error)
	backward(stack *Stack) (*ExceptionInfo, error)
}

// resumable frames can re-enter the state they had right before they
// popped themselves at the end of a forward walk.
type resumable interface {
	Frame
	resume(stack *Stack) (*ExceptionInfo, error)
}

// SourceFile is either a file on disk (Path set) or a document synthesized
// by the debugger, carried inline in Content.
type SourceFile struct {
	Name            string
	Path            string
	Content         string
	ContentMimeType string
}

// Synthesized reports whether the document only exists in memory.
func (f SourceFile) Synthesized() bool {
	return f.Path == ""
}

// SourceLocation is a zero based position. EndLine and EndColumn are zero
// for single positions.
type SourceLocation struct {
	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

// Stack is the replay frame stack.
type Stack struct {
	frames []Frame
}

// Push adds f on top.
func (s *Stack) Push(f Frame) {
	s.frames = append(s.frames, f)
}

// Pop removes and returns the top frame.
func (s *Stack) Pop() Frame {
	f := s.frames[len(s.frames)-1]
	s.frames[len(s.frames)-1] = nil
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

// Top returns the top frame, or nil for an empty stack.
func (s *Stack) Top() Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Len returns the stack depth.
func (s *Stack) Len() int {
	return len(s.frames)
}

// Frames returns a copy of the stack, bottom first.
func (s *Stack) Frames() []Frame {
	return append([]Frame(nil), s.frames...)
}
