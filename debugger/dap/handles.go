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
package dap

// handleStart is the first id handed out. Ids below it are left to the
// client as "no reference".
const handleStart = 1000

// handles maps integer references sent to the client back to adapter side
// values. References are only valid until the next reset.
type handles[T any] struct {
	next   int
	values map[int]T
}

func makeHandles[T any]() handles[T] {
	return handles[T]{next: handleStart, values: make(map[int]T)}
}

func (h *handles[T]) create(v T) int {
	id := h.next
	h.next++
	h.values[id] = v
	return id
}

func (h *handles[T]) get(id int) (T, bool) {
	v, ok := h.values[id]
	return v, ok
}

func (h *handles[T]) reset() {
	h.next = handleStart
	h.values = make(map[int]T)
}
