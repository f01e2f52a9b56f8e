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
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/DataDog/zstd"
	"github.com/algorand/go-codec/codec"
	"github.com/stretchr/testify/require"

	"github.com/algorand/avm-debugger/data/simulation"
	"github.com/algorand/avm-debugger/protocol"
	"github.com/algorand/avm-debugger/test/partitiontest"
)

const traceJSON = `{
  "version": 2,
  "last-round": 3,
  "exec-trace-config": {"enable": true, "stack-change": true},
  "txn-groups": [
    {
      "txn-results": [
        {
          "txn-result": {"txn": {"txn": {"type": "appl", "apid": 1050}}},
          "exec-trace": {
            "approval-program-hash": "AQID",
            "approval-program-trace": [{"pc": 1}, {"pc": 3, "stack-additions": [{"type": 2, "uint": 1}]}]
          }
        }
      ]
    }
  ]
}`

const sourceMapJSON = `{"version": 3, "sources": ["app.teal"], "names": [], "mappings": ";AAAA;;AACA"}`

var programHash = []byte{1, 2, 3}

func testFiles() MemoryFileAccessor {
	files := MemoryFileAccessor{}
	files.Add("/work/trace.json", []byte(traceJSON))
	files.Add("/work/sources.json", []byte(`{"txn-group-sources": [
		{"hash": "AQID", "sourcemap-location": "maps/app.teal.tok.map"},
		{"hash": "BAUG", "sourcemap-location": null}
	]}`))
	files.Add("/work/maps/app.teal.tok.map", []byte(sourceMapJSON))
	return files
}

func TestLoad(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	loader := MakeLoader(testFiles(), nil)
	a, err := loader.Load(context.Background(), "/work/trace.json", "/work/sources.json")
	require.NoError(t, err)

	require.Len(t, a.Response.TxnGroups, 1)
	txn := a.Response.TxnGroups[0].Txns[0]
	require.Equal(t, uint64(1050), txn.Txn.AppID())
	require.Equal(t, programHash, txn.Trace.ApprovalProgramHash)

	require.Equal(t, 1, a.Registry.Len())
	desc := a.Registry.FindByHash(programHash)
	require.NotNil(t, desc)
	require.Equal(t, "/work/maps/app.teal.tok.map", desc.SourceMapLocation)
	require.Equal(t, []string{"/work/maps/app.teal"}, desc.SourcePaths())
	loc, ok := desc.Index().LocationForPC(3)
	require.True(t, ok)
	require.Equal(t, 1, loc.Line)

	require.Nil(t, a.Registry.FindByHash([]byte{4, 5, 6}))
}

func TestLoadWithoutSources(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	a, err := MakeLoader(testFiles(), nil).Load(context.Background(), "/work/trace.json", "")
	require.NoError(t, err)
	require.Zero(t, a.Registry.Len())
}

func TestLoadCompressedAndMsgpTraces(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	var resp simulation.SimulateResponse
	require.NoError(t, protocol.DecodeLenientJSON([]byte(traceJSON), &resp))
	var msgp []byte
	h := new(codec.MsgpackHandle)
	h.WriteExt = true
	require.NoError(t, codec.NewEncoderBytes(&msgp, h).Encode(&resp))

	compressedJSON, err := zstd.Compress(nil, []byte(traceJSON))
	require.NoError(t, err)
	compressedMsgp, err := zstd.Compress(nil, msgp)
	require.NoError(t, err)

	files := MemoryFileAccessor{}
	files.Add("/t/trace.msgp", msgp)
	files.Add("/t/trace.json.zst", compressedJSON)
	files.Add("/t/trace.msgp.zst", compressedMsgp)

	loader := MakeLoader(files, nil)
	for _, path := range []string{"/t/trace.msgp", "/t/trace.json.zst", "/t/trace.msgp.zst"} {
		got, err := loader.LoadTrace(path)
		require.NoError(t, err, path)
		require.Len(t, got.TxnGroups, 1, path)
		txn := got.TxnGroups[0].Txns[0]
		require.Equal(t, "appl", txn.Txn.Type(), path)
		require.Equal(t, uint64(1050), txn.Txn.AppID(), path)
		require.Len(t, txn.Trace.ApprovalProgramTrace, 2, path)
	}
}

func TestLoadErrors(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	testCases := []struct {
		name    string
		trace   string
		sources string
		files   map[string]string
		message string
	}{
		{
			name:    "missing trace",
			trace:   "/missing.json",
			message: "Could not read simulate trace file from '/missing.json'",
		},
		{
			name:    "trace is not json",
			trace:   "/bad.json",
			files:   map[string]string{"/bad.json": "{"},
			message: "Could not parse simulate trace file from '/bad.json'",
		},
		{
			name:    "unsupported version",
			trace:   "/v1.json",
			files:   map[string]string{"/v1.json": `{"version": 1, "exec-trace-config": {"enable": true}}`},
			message: "Unsupported simulate response version: 1",
		},
		{
			name:    "tracing disabled",
			trace:   "/off.json",
			files:   map[string]string{"/off.json": `{"version": 2}`},
			message: "does not contain trace data",
		},
		{
			name:    "missing sources description",
			sources: "/nope.json",
			message: "Could not read program sources description file from '/nope.json'",
		},
		{
			name:    "sources description without groups",
			sources: "/s.json",
			files:   map[string]string{"/s.json": `{"other": []}`},
			message: "Invalid program sources description file",
		},
		{
			name:    "entry without hash",
			sources: "/s.json",
			files:   map[string]string{"/s.json": `{"txn-group-sources": [{"sourcemap-location": "a.map"}]}`},
			message: "Invalid program sources description file",
		},
		{
			name:    "missing source map",
			sources: "/dir/s.json",
			files:   map[string]string{"/dir/s.json": `{"txn-group-sources": [{"hash": "AQID", "sourcemap-location": "a.map"}]}`},
			message: "Could not read source map file from '/dir/a.map'",
		},
		{
			name:    "bad source map version",
			sources: "/s.json",
			files: map[string]string{
				"/s.json": `{"txn-group-sources": [{"hash": "AQID", "sourcemap-location": "a.map"}]}`,
				"/a.map":  `{"version": 2, "sources": [], "mappings": ""}`,
			},
			message: "Could not parse source map file from '/a.map'",
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			files := MemoryFileAccessor{}
			files.Add("/ok.json", []byte(traceJSON))
			for path, content := range tc.files {
				files.Add(path, []byte(content))
			}
			trace := tc.trace
			if trace == "" {
				trace = "/ok.json"
			}
			_, err := MakeLoader(files, nil).Load(context.Background(), trace, tc.sources)
			require.ErrorContains(t, err, tc.message)

			var loadErr *ResourceLoadError
			require.True(t, errors.As(err, &loadErr))
		})
	}
}

func TestMissingFileIsNotExist(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	_, err := MakeLoader(MemoryFileAccessor{}, nil).LoadTrace("/a/../b.json")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadRegistryCanceled(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files := testFiles()
	_, err := MakeLoader(files, nil).LoadRegistry(ctx, "/work/sources.json")
	require.ErrorIs(t, err, context.Canceled)
}
