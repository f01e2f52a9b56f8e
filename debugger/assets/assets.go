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

// Package assets loads the inputs of a debugging session: a simulate
// response with execution traces and the registry of program source maps.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/DataDog/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/algorand/avm-debugger/data/simulation"
	"github.com/algorand/avm-debugger/data/sourcemap"
	"github.com/algorand/avm-debugger/debugger/replay"
	"github.com/algorand/avm-debugger/logging"
	"github.com/algorand/avm-debugger/protocol"
)

const (
	zstdSuffix = ".zst"
	msgpSuffix = ".msgp"

	// sourceMapLoaders bounds concurrent source map reads.
	sourceMapLoaders = 8
)

// MaxDecompressedTraceSize bounds the size of a decompressed trace file.
const MaxDecompressedTraceSize = 512 * 1024 * 1024

var errInvalidSourcesDescription = errors.New("Invalid program sources description file")

// Assets are the loaded inputs of a debugging session.
type Assets struct {
	Response *simulation.SimulateResponse
	Registry *replay.DescriptorRegistry
}

// Loader reads assets through a FileAccessor.
type Loader struct {
	Files FileAccessor
	Log   logging.Logger
}

// MakeLoader returns a Loader. A nil files reads from the local file system
// and a nil log logs to the base logger.
func MakeLoader(files FileAccessor, log logging.Logger) *Loader {
	if files == nil {
		files = OSFileAccessor{}
	}
	if log == nil {
		log = logging.Base()
	}
	return &Loader{Files: files, Log: log}
}

type sourcesDescription struct {
	TxnGroupSources []sourceEntry `codec:"txn-group-sources"`
}

type sourceEntry struct {
	Hash              *string `codec:"hash"`
	SourceMapLocation *string `codec:"sourcemap-location"`
}

// Load reads the simulate trace at traceFile and the program sources
// description at sourcesFile. An empty sourcesFile loads no source maps.
func (l *Loader) Load(ctx context.Context, traceFile, sourcesFile string) (*Assets, error) {
	resp, err := l.LoadTrace(traceFile)
	if err != nil {
		return nil, err
	}
	registry := replay.NewDescriptorRegistry()
	if sourcesFile != "" {
		registry, err = l.LoadRegistry(ctx, sourcesFile)
		if err != nil {
			return nil, err
		}
	}
	return &Assets{Response: resp, Registry: registry}, nil
}

// LoadTrace reads and validates a simulate response. Files ending in .zst
// are zstd compressed; files ending in .msgp (before any .zst) are msgpack,
// anything else is JSON.
func (l *Loader) LoadTrace(path string) (*simulation.SimulateResponse, error) {
	data, err := l.Files.ReadFile(path)
	if err != nil {
		return nil, &ResourceLoadError{What: "Could not read simulate trace file", Path: path, Err: err}
	}
	resp, err := decodeTrace(path, data)
	if err != nil {
		return nil, &ResourceLoadError{What: "Could not parse simulate trace file", Path: path, Err: err}
	}
	l.Log.Infof("loaded simulate trace %s: %d groups", path, len(resp.TxnGroups))
	return resp, nil
}

func decodeTrace(path string, data []byte) (*simulation.SimulateResponse, error) {
	name := path
	if strings.HasSuffix(name, zstdSuffix) {
		name = strings.TrimSuffix(name, zstdSuffix)
		decompressed, err := zstdDecompress(data)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}

	var resp simulation.SimulateResponse
	if filepath.Ext(name) == msgpSuffix {
		err := protocol.DecodeLenientMsgp(data, &resp)
		if err != nil {
			return nil, err
		}
	} else {
		err := protocol.DecodeLenientJSON(data, &resp)
		if err != nil {
			return nil, err
		}
	}
	if resp.Version != simulation.ResultLatestVersion {
		return nil, fmt.Errorf("Unsupported simulate response version: %d", resp.Version)
	}
	if !resp.ExecTraceConfig.Enable {
		return nil, errors.New("Simulate response does not contain trace data. exec-trace-config.enable is not set")
	}
	return &resp, nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	r := zstd.NewReader(bytes.NewReader(data))
	defer r.Close()
	b := make([]byte, 0, 4096)
	for {
		if len(b) == cap(b) {
			b = append(b, 0)[:len(b)]
		}
		n, err := r.Read(b[len(b):cap(b)])
		b = b[:len(b)+n]
		if err != nil {
			if err == io.EOF {
				return b, nil
			}
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if len(b) > MaxDecompressedTraceSize {
			return nil, fmt.Errorf("decompressed trace is too large: %d", len(b))
		}
	}
}

// LoadRegistry reads a program sources description and every source map it
// names. Source map locations are relative to path. Entries without a
// location leave their program unresolved.
func (l *Loader) LoadRegistry(ctx context.Context, path string) (*replay.DescriptorRegistry, error) {
	data, err := l.Files.ReadFile(path)
	if err != nil {
		return nil, &ResourceLoadError{What: "Could not read program sources description file", Path: path, Err: err}
	}
	var desc sourcesDescription
	err = protocol.DecodeLenientJSON(data, &desc)
	if err == nil && desc.TxnGroupSources == nil {
		err = errInvalidSourcesDescription
	}
	if err != nil {
		return nil, &ResourceLoadError{What: "Could not parse program sources description file", Path: path, Err: err}
	}

	hashes := make([][]byte, len(desc.TxnGroupSources))
	for i, entry := range desc.TxnGroupSources {
		if entry.Hash == nil {
			return nil, &ResourceLoadError{What: "Could not parse program sources description file", Path: path, Err: errInvalidSourcesDescription}
		}
		hashes[i], err = base64.StdEncoding.DecodeString(*entry.Hash)
		if err != nil {
			return nil, &ResourceLoadError{What: "Could not parse program sources description file", Path: path, Err: fmt.Errorf("hash %q: %w", *entry.Hash, err)}
		}
	}

	descs := make([]*replay.ProgramSourceDescriptor, len(desc.TxnGroupSources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sourceMapLoaders)
	for i, entry := range desc.TxnGroupSources {
		if entry.SourceMapLocation == nil || *entry.SourceMapLocation == "" {
			l.Log.Warnf("program %s has no source map location", base64.StdEncoding.EncodeToString(hashes[i]))
			continue
		}
		i := i
		location := replay.ResolvePath(path, *entry.SourceMapLocation)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := l.loadSourceMap(hashes[i], location)
			if err != nil {
				return err
			}
			descs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var loaded []*replay.ProgramSourceDescriptor
	for _, d := range descs {
		if d != nil {
			loaded = append(loaded, d)
		}
	}
	l.Log.Infof("loaded %d of %d program source maps from %s", len(loaded), len(descs), path)
	return replay.NewDescriptorRegistry(loaded...), nil
}

func (l *Loader) loadSourceMap(hash []byte, location string) (*replay.ProgramSourceDescriptor, error) {
	data, err := l.Files.ReadFile(location)
	if err != nil {
		return nil, &ResourceLoadError{What: "Could not read source map file", Path: location, Err: err}
	}
	sm, err := sourcemap.Parse(data)
	if err != nil {
		return nil, &ResourceLoadError{What: "Could not parse source map file", Path: location, Err: err}
	}
	d, err := replay.NewProgramSourceDescriptor(hash, location, sm)
	if err != nil {
		return nil, &ResourceLoadError{What: "Could not parse source map file", Path: location, Err: err}
	}
	return d, nil
}
