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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/algorand/avm-debugger/data/sourcemap"
	"github.com/algorand/avm-debugger/debugger/assets"
	"github.com/algorand/avm-debugger/test/partitiontest"
)

const testTrace = `{
  "version": 2,
  "last-round": 3,
  "exec-trace-config": {"enable": true, "stack-change": true, "scratch-change": true},
  "txn-groups": [{"txn-results": [{
    "txn-result": {"txn": {"txn": {"type": "appl", "apid": 1050}}},
    "exec-trace": {
      "approval-program-hash": "AQID",
      "approval-program-trace": [
        {"pc": 1, "stack-additions": [{"type": 1, "bytes": "aGk="}]},
        {"pc": 3, "stack-additions": [{"type": 2, "uint": 7}]},
        {"pc": 5, "stack-pop-count": 2}
      ]
    }
  }]}]
}`

func testLoader(t *testing.T) *assets.Loader {
	sm := sourcemap.GetSourceMap([]string{"app.teal"}, map[int]sourcemap.Location{
		1: {Line: 0},
		3: {Line: 1},
		5: {Line: 2},
	})
	smJSON, err := json.Marshal(sm)
	require.NoError(t, err)

	files := assets.MemoryFileAccessor{}
	files.Add("/work/trace.json", []byte(testTrace))
	files.Add("/work/sources.json", []byte(`{"txn-group-sources": [{"hash": "AQID", "sourcemap-location": "app.teal.map"}]}`))
	files.Add("/work/app.teal.map", smJSON)
	return assets.MakeLoader(files, nil)
}

func TestParseBreakpoint(t *testing.T) {
	partitiontest.PartitionTest(t)

	testCases := []struct {
		arg  string
		path string
		line int
		err  string
	}{
		{arg: "/work/app.teal:1", path: "/work/app.teal", line: 0},
		{arg: "/work/a:b.teal:12", path: "/work/a:b.teal", line: 11},
		{arg: "/work/app.teal", err: "expected path:line"},
		{arg: ":3", err: "expected path:line"},
		{arg: "/work/app.teal:0", err: "invalid breakpoint line"},
		{arg: "/work/app.teal:x", err: "invalid breakpoint line"},
	}
	for _, tc := range testCases {
		path, line, err := parseBreakpoint(tc.arg)
		if tc.err != "" {
			require.ErrorContains(t, err, tc.err, tc.arg)
			continue
		}
		require.NoError(t, err, tc.arg)
		require.Equal(t, tc.path, path)
		require.Equal(t, tc.line, line)
	}
}

func TestReplayTraceBreakpoint(t *testing.T) {
	partitiontest.PartitionTest(t)
	color.NoColor = true

	var out bytes.Buffer
	opts := replayOptions{
		TraceFile:   "/work/trace.json",
		SourcesFile: "/work/sources.json",
		Breakpoints: []string{"/work/app.teal:2"},
	}
	require.NoError(t, replayTrace(context.Background(), &out, testLoader(t), opts, nil))

	expected := strings.Join([]string{
		"breakpoint 1",
		"  app 1050 approval program at /work/app.teal:2:1",
		"    pc=3 stack=[0x6869]",
		"replay ended",
		"",
	}, "\n")
	require.Equal(t, expected, out.String())
}

func TestReplayTraceStep(t *testing.T) {
	partitiontest.PartitionTest(t)
	color.NoColor = true

	var out bytes.Buffer
	opts := replayOptions{
		TraceFile:   "/work/trace.json",
		SourcesFile: "/work/sources.json",
		Step:        true,
	}
	require.NoError(t, replayTrace(context.Background(), &out, testLoader(t), opts, nil))

	output := out.String()
	require.Contains(t, output, "  transaction 0 at transaction-group-0.json:")
	require.Contains(t, output, "    pc=1 stack=[]")
	require.Contains(t, output, "    pc=5 stack=[0x6869, 7]")
	require.True(t, strings.HasSuffix(output, "replay ended\n"))
	require.NotContains(t, output, "breakpoint")
}

func TestReplayTraceErrors(t *testing.T) {
	partitiontest.PartitionTest(t)
	color.NoColor = true

	var out bytes.Buffer
	opts := replayOptions{TraceFile: "/work/trace.json", Step: true, MaxStops: 2}
	err := replayTrace(context.Background(), &out, testLoader(t), opts, nil)
	require.ErrorContains(t, err, "replay did not end after 2 stops")

	opts = replayOptions{TraceFile: "/work/missing.json"}
	err = replayTrace(context.Background(), &out, testLoader(t), opts, nil)
	require.ErrorContains(t, err, "Could not read simulate trace file")

	opts = replayOptions{TraceFile: "/work/trace.json", Breakpoints: []string{"nope"}}
	err = replayTrace(context.Background(), &out, testLoader(t), opts, nil)
	require.ErrorContains(t, err, "expected path:line")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts = replayOptions{TraceFile: "/work/trace.json"}
	err = replayTrace(ctx, &out, testLoader(t), opts, nil)
	require.ErrorIs(t, err, context.Canceled)
}
