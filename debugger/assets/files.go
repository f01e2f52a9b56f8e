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

package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileAccessor reads the files a debugging session refers to.
type FileAccessor interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileAccessor reads from the local file system.
type OSFileAccessor struct{}

// ReadFile implements FileAccessor.
func (OSFileAccessor) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MemoryFileAccessor serves files from memory, keyed by cleaned path.
type MemoryFileAccessor map[string][]byte

// ReadFile implements FileAccessor.
func (m MemoryFileAccessor) ReadFile(path string) ([]byte, error) {
	data, ok := m[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return data, nil
}

// Add stores data under path.
func (m MemoryFileAccessor) Add(path string, data []byte) {
	m[filepath.Clean(path)] = data
}

// ResourceLoadError reports a debugging asset that could not be read or is
// invalid.
type ResourceLoadError struct {
	// What names the failed step, e.g. "Could not read source map file".
	What string
	Path string
	Err  error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("%s from '%s': %v", e.What, e.Path, e.Err)
}

func (e *ResourceLoadError) Unwrap() error {
	return e.Err
}
