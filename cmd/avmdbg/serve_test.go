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
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"

	"github.com/algorand/avm-debugger/config"
	"github.com/algorand/avm-debugger/logging"
	"github.com/algorand/avm-debugger/test/partitiontest"
	"github.com/algorand/avm-debugger/util/metrics"
)

func TestServeSessions(t *testing.T) {
	partitiontest.PartitionTest(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := makeServer(config.GetDefaultLocal(), testLoader(t), logging.Base())
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.serve(ctx, listener)
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	request := &dap.InitializeRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "request"},
			Command:         "initialize",
		},
		Arguments: dap.InitializeRequestArguments{AdapterID: "avm", LinesStartAt1: true, ColumnsStartAt1: true},
	}
	require.NoError(t, dap.WriteProtocolMessage(conn, request))

	r := bufio.NewReader(conn)
	msg, err := dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	response, ok := msg.(*dap.InitializeResponse)
	require.True(t, ok, "%#v", msg)
	require.True(t, response.Body.SupportsStepBack)
	require.Equal(t, 1, response.RequestSeq)

	msg, err = dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	require.IsType(t, &dap.InitializedEvent{}, msg)
	require.Equal(t, 1, s.activeSessions())

	cancel()
	select {
	case err := <-serveErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "server did not stop")
	}
	require.Zero(t, s.activeSessions())

	// the server closed the connection
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = dap.ReadProtocolMessage(r)
	require.Error(t, err)
}

func TestMetricsRouter(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	reg := metrics.MakeRegistry()
	counter := metrics.MakeCounter(metrics.MetricName{Name: "avmdbg_router_test_total", Description: "router test"})
	counter.Register(reg)
	counter.Inc()
	router := makeMetricsRouter(reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "avmdbg_router_test_total 1")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
