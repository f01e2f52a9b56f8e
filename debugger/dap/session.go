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
// Package dap serves one debugging session over the Debug Adapter Protocol.
//
// A session uses the following goroutines:
//   - the reader goroutine decodes incoming requests and hands them to the
//     session loop.
//   - the session loop (the caller of Run) processes requests one at a
//     time. The replay runtime is only ever touched from it.
//   - the sender goroutine writes responses and events, in the order they
//     were queued, and numbers them.
package dap

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/go-dap"
	"github.com/google/uuid"

	"github.com/algorand/avm-debugger/debugger/assets"
	"github.com/algorand/avm-debugger/debugger/replay"
	"github.com/algorand/avm-debugger/debugger/runtime"
	"github.com/algorand/avm-debugger/logging"
	"github.com/algorand/avm-debugger/util/metrics"
)

// threadID is the only thread reported to the client.
const threadID = 1

// genericErrorID is the id of every error message sent back to the client.
const genericErrorID = 9999

// defaultConfigurationTimeout is how long a launched session waits for the
// configurationDone request before it starts anyway.
const defaultConfigurationTimeout = time.Second

var requestsHandled = metrics.NewTagCounter(metrics.DAPRequests, "command")
var openSessions = metrics.MakeGauge(metrics.DAPSessions)

// startRequest is queued by the configuration timer. It never goes on the
// wire.
type startRequest struct{}

func (startRequest) GetSeq() int { return 0 }

// unsupportedRequest is a request with a command the protocol library
// does not know.
type unsupportedRequest struct {
	seq     int
	command string
}

func (r unsupportedRequest) GetSeq() int { return r.seq }

// Session is one debugging session: one client connection, one replay.
type Session struct {
	log    logging.Logger
	rw     *bufio.ReadWriter
	loader *assets.Loader

	runtime *runtime.Runtime

	// requests carries decoded requests from the reader to the session loop.
	requests  chan dap.Message
	sendQueue chan dap.Message
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	// client settings from the initialize request
	linesStartAt1   bool
	columnsStartAt1 bool

	launched          bool
	configurationDone bool
	disconnected      bool
	pendingStart      *launchArguments
	startTimer        *time.Timer

	configurationTimeout time.Duration

	// DefaultStopOnEntry applies when a launch request leaves stopOnEntry
	// unset.
	DefaultStopOnEntry bool

	variableHandles handles[variableRef]
	sourceHandles   handles[replay.SourceFile]
}

// NewSession creates a session reading requests from and writing messages
// to rw. A nil loader reads assets from the file system.
func NewSession(rw io.ReadWriter, loader *assets.Loader, log logging.Logger) *Session {
	if log == nil {
		log = logging.Base()
	}
	log = log.With("session", uuid.NewString())
	if loader == nil {
		loader = assets.MakeLoader(nil, log)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		log:             log,
		rw:              bufio.NewReadWriter(bufio.NewReader(rw), bufio.NewWriter(rw)),
		loader:          loader,
		requests:        make(chan dap.Message),
		sendQueue:       make(chan dap.Message, 64),
		done:            make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
		linesStartAt1:   true,
		columnsStartAt1: true,

		configurationTimeout: defaultConfigurationTimeout,
		variableHandles:      makeHandles[variableRef](),
		sourceHandles:        makeHandles[replay.SourceFile](),
	}
	s.runtime = runtime.MakeRuntime(replay.MakeEngine(log), log)
	s.runtime.OnBreakpointValidated(s.onBreakpointValidated)
	return s
}

// Run serves requests until the client disconnects or the connection
// fails. It returns nil when the client disconnected or closed the stream.
func (s *Session) Run() error {
	openSessions.Add(1)
	defer openSessions.Add(-1)
	s.log.Info("debug session started")

	senderDone := make(chan struct{})
	go func() {
		s.sendFromQueue()
		close(senderDone)
	}()
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readRequests()
	}()

	var err error
loop:
	for !s.disconnected {
		select {
		case msg := <-s.requests:
			s.dispatchRequest(msg)
		case err = <-readErr:
			break loop
		}
	}

	if s.startTimer != nil {
		s.startTimer.Stop()
	}
	s.cancel()
	close(s.done)
	close(s.sendQueue)
	<-senderDone
	s.runtime.Reset()
	if err != nil {
		s.log.Warnf("debug session ended: %v", err)
	} else {
		s.log.Info("debug session ended")
	}
	return err
}

func (s *Session) readRequests() error {
	for {
		msg, err := dap.ReadProtocolMessage(s.rw.Reader)
		if err != nil {
			var fieldErr *dap.DecodeProtocolMessageFieldError
			switch {
			case errors.As(err, &fieldErr) && fieldErr.FieldName == "command":
				msg = unsupportedRequest{seq: fieldErr.Seq, command: fieldErr.FieldValue}
			case errors.As(err, &fieldErr):
				s.log.Warnf("dropping undecodable message: %v", err)
				continue
			case errors.Is(err, io.EOF):
				return nil
			default:
				return err
			}
		}
		select {
		case s.requests <- msg:
		case <-s.done:
			return nil
		}
	}
}

// enqueue hands an internal message to the session loop.
func (s *Session) enqueue(msg dap.Message) {
	select {
	case s.requests <- msg:
	case <-s.done:
	}
}

// send queues message for the sender goroutine. Only the session loop
// calls it.
func (s *Session) send(message dap.Message) {
	s.sendQueue <- message
}

func (s *Session) sendFromQueue() {
	seq := 0
	for message := range s.sendQueue {
		seq++
		switch m := message.(type) {
		case dap.ResponseMessage:
			m.GetResponse().Seq = seq
		case dap.EventMessage:
			m.GetEvent().Seq = seq
		}
		if err := dap.WriteProtocolMessage(s.rw.Writer, message); err != nil {
			s.log.Warnf("unable to send message: %v", err)
			continue
		}
		if err := s.rw.Flush(); err != nil {
			s.log.Warnf("unable to send message: %v", err)
		}
	}
}

func (s *Session) dispatchRequest(request dap.Message) {
	switch request := request.(type) {
	case startRequest:
		s.start()
		return
	case unsupportedRequest:
		requestsHandled.Inc(request.command)
		s.log.Debugf("unsupported request %s", request.command)
		s.send(newErrorResponse(request.seq, request.command, request.command+" is not supported"))
		return
	case dap.RequestMessage:
		command := request.GetRequest().Command
		requestsHandled.Inc(command)
		s.log.Debugf("received %s request %d", command, request.GetSeq())
	}

	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.AttachRequest:
		s.send(newErrorResponse(request.Seq, request.Command, "attach is not supported, use launch"))
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
	case *dap.TerminateRequest:
		s.onTerminateRequest(request)
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		s.onSetExceptionBreakpointsRequest(request)
	case *dap.BreakpointLocationsRequest:
		s.onBreakpointLocationsRequest(request)
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(request)
	case *dap.ThreadsRequest:
		s.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		s.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		s.onScopesRequest(request)
	case *dap.VariablesRequest:
		s.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		s.onEvaluateRequest(request)
	case *dap.SourceRequest:
		s.onSourceRequest(request)
	case *dap.ContinueRequest:
		s.onContinueRequest(request)
	case *dap.ReverseContinueRequest:
		s.onReverseContinueRequest(request)
	case *dap.NextRequest:
		s.onNextRequest(request)
	case *dap.StepBackRequest:
		s.onStepBackRequest(request)
	case *dap.StepInRequest:
		s.onStepInRequest(request)
	case *dap.StepOutRequest:
		s.onStepOutRequest(request)
	case *dap.PauseRequest:
		// replay runs to completion synchronously, there is nothing to pause
		response := &dap.PauseResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		s.send(response)
	case dap.RequestMessage:
		r := request.GetRequest()
		s.send(newErrorResponse(r.Seq, r.Command, r.Command+" is not supported"))
	default:
		s.log.Warnf("ignoring unexpected message %#v", request)
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

func newErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Message = message
	er.Body.Error = &dap.ErrorMessage{Id: genericErrorID, Format: message}
	return er
}
