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

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/go-dap"

	"github.com/algorand/avm-debugger/debugger/runtime"
	"github.com/algorand/avm-debugger/protocol"
)

// launchArguments are the launch request fields the adapter reads.
type launchArguments struct {
	SimulateTraceFile             string `codec:"simulateTraceFile"`
	ProgramSourcesDescriptionFile string `codec:"programSourcesDescriptionFile"`
	StopOnEntry                   *bool  `codec:"stopOnEntry"`
	NoDebug                       bool   `codec:"noDebug"`
}

func (s *Session) onInitializeRequest(request *dap.InitializeRequest) {
	s.linesStartAt1 = request.Arguments.LinesStartAt1
	s.columnsStartAt1 = request.Arguments.ColumnsStartAt1

	response := &dap.InitializeResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsEvaluateForHovers = false
	response.Body.SupportsStepBack = true
	response.Body.SupportsBreakpointLocationsRequest = true
	response.Body.SupportsDelayedStackTraceLoading = true
	response.Body.SupportsTerminateRequest = true
	response.Body.SupportsCancelRequest = false
	response.Body.SupportsTerminateThreadsRequest = false
	response.Body.ExceptionBreakpointFilters = []dap.ExceptionBreakpointsFilter{}
	s.send(response)
	// configuration requests are accepted at any time from now on
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
}

func (s *Session) onLaunchRequest(request *dap.LaunchRequest) {
	var args launchArguments
	if err := protocol.DecodeLenientJSON(request.Arguments, &args); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, fmt.Sprintf("invalid launch arguments: %v", err)))
		return
	}
	if s.launched {
		s.send(newErrorResponse(request.Seq, request.Command, "session already launched"))
		return
	}
	a, err := s.loader.Load(s.ctx, args.SimulateTraceFile, args.ProgramSourcesDescriptionFile)
	if err != nil {
		s.log.Warnf("launch failed: %v", err)
		s.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	if err := s.runtime.Engine().LoadResources(a.Response, a.Registry); err != nil {
		s.log.Warnf("launch failed: %v", err)
		s.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	s.launched = true
	s.log.Infof("launched %s", args.SimulateTraceFile)

	response := &dap.LaunchResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)

	s.pendingStart = &args
	if s.configurationDone {
		s.start()
		return
	}
	s.startTimer = time.AfterFunc(s.configurationTimeout, func() {
		s.enqueue(startRequest{})
	})
}

// start runs the launched replay once. It is called on configurationDone,
// or when the configuration timer fires first.
func (s *Session) start() {
	args := s.pendingStart
	if args == nil {
		return
	}
	s.pendingStart = nil
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}
	stopOnEntry := s.DefaultStopOnEntry
	if args.StopOnEntry != nil {
		stopOnEntry = *args.StopOnEntry
	}
	s.send(&dap.ThreadEvent{Event: *newEvent("thread"), Body: dap.ThreadEventBody{Reason: "started", ThreadId: threadID}})
	s.reportStop(s.runtime.Start(stopOnEntry, !args.NoDebug))
}

func (s *Session) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	s.configurationDone = true
	response := &dap.ConfigurationDoneResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
	s.start()
}

func (s *Session) onDisconnectRequest(request *dap.DisconnectRequest) {
	s.runtime.Reset()
	s.launched = false
	s.disconnected = true
	response := &dap.DisconnectResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onTerminateRequest(request *dap.TerminateRequest) {
	response := &dap.TerminateResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
	s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
}

func (s *Session) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	response := &dap.SetBreakpointsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Breakpoints = []dap.Breakpoint{}
	path := request.Arguments.Source.Path
	if path != "" {
		s.runtime.ClearBreakpoints(path)
		for _, clientBp := range request.Arguments.Breakpoints {
			var column *int
			// column is optional, 0 means unset
			if clientBp.Column > 0 {
				c := s.columnFromClient(clientBp.Column)
				column = &c
			}
			bp := s.runtime.SetBreakpoint(path, s.lineFromClient(clientBp.Line), column)
			response.Body.Breakpoints = append(response.Body.Breakpoints, s.toClientBreakpoint(bp))
		}
	}
	s.send(response)
}

func (s *Session) toClientBreakpoint(bp runtime.Breakpoint) dap.Breakpoint {
	res := dap.Breakpoint{
		Id:       bp.ID,
		Verified: bp.Verified,
		Line:     s.lineToClient(bp.Line),
	}
	if bp.Column != nil {
		res.Column = s.columnToClient(*bp.Column)
	}
	return res
}

func (s *Session) onBreakpointValidated(bp runtime.Breakpoint) {
	s.send(&dap.BreakpointEvent{
		Event: *newEvent("breakpoint"),
		Body:  dap.BreakpointEventBody{Reason: "changed", Breakpoint: s.toClientBreakpoint(bp)},
	})
}

func (s *Session) onSetExceptionBreakpointsRequest(request *dap.SetExceptionBreakpointsRequest) {
	response := &dap.SetExceptionBreakpointsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onBreakpointLocationsRequest(request *dap.BreakpointLocationsRequest) {
	response := &dap.BreakpointLocationsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Breakpoints = []dap.BreakpointLocation{}
	args := request.Arguments
	if args != nil && args.Source.Path != "" {
		startLine := s.lineFromClient(args.Line)
		endLine := startLine
		if args.EndLine > 0 {
			endLine = s.lineFromClient(args.EndLine)
		}
		startColumn := 0
		if args.Column > 0 {
			startColumn = s.columnFromClient(args.Column)
		}
		endColumn := math.MaxInt
		if args.EndColumn > 0 {
			endColumn = s.columnFromClient(args.EndColumn)
		}
		for _, loc := range s.runtime.BreakpointLocations(args.Source.Path) {
			if loc.Line < startLine || loc.Line > endLine || loc.Column < startColumn || loc.Column > endColumn {
				continue
			}
			response.Body.Breakpoints = append(response.Body.Breakpoints, dap.BreakpointLocation{
				Line:   s.lineToClient(loc.Line),
				Column: s.columnToClient(loc.Column),
			})
		}
	}
	s.send(response)
}

func (s *Session) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: threadID, Name: "thread 1"}}}
	s.send(response)
}

func (s *Session) onStackTraceRequest(request *dap.StackTraceRequest) {
	frames := s.runtime.Engine().Stack()
	startFrame := request.Arguments.StartFrame
	levels := request.Arguments.Levels
	if levels <= 0 {
		levels = len(frames)
	}
	// frame ids are bottom first, the response is most recent first
	end := len(frames) - startFrame
	if end < 0 {
		end = 0
	}
	begin := end - levels
	if begin < 0 {
		begin = 0
	}

	response := &dap.StackTraceResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.StackFrames = make([]dap.StackFrame, 0, end-begin)
	for id := end - 1; id >= begin; id-- {
		frame := frames[id]
		file := frame.SourceFile()
		loc := frame.SourceLocation()
		sf := dap.StackFrame{
			Id:     id,
			Name:   frame.Name(),
			Line:   s.lineToClient(loc.Line),
			Column: s.columnToClient(loc.Column),
		}
		if loc.EndLine != 0 {
			sf.EndLine = s.lineToClient(loc.EndLine)
			sf.EndColumn = s.columnToClient(loc.EndColumn)
		}
		if file.Synthesized() {
			sf.Source = &dap.Source{Name: file.Name, SourceReference: s.sourceHandles.create(file)}
		} else {
			sf.Source = &dap.Source{Name: filepath.Base(file.Path), Path: file.Path}
		}
		response.Body.StackFrames = append(response.Body.StackFrames, sf)
	}
	response.Body.TotalFrames = len(frames)
	s.send(response)
}

func (s *Session) onSourceRequest(request *dap.SourceRequest) {
	response := &dap.SourceResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	ref := request.Arguments.SourceReference
	if request.Arguments.Source != nil && request.Arguments.Source.SourceReference != 0 {
		ref = request.Arguments.Source.SourceReference
	}
	if file, ok := s.sourceHandles.get(ref); ok {
		response.Body.Content = file.Content
		response.Body.MimeType = file.ContentMimeType
	} else {
		response.Body.Content = "source not available"
	}
	s.send(response)
}

// resume is the common prologue of every stepping request. Handles from
// the previous stop become invalid.
func (s *Session) resume(seq int, command string) bool {
	if !s.launched {
		s.send(newErrorResponse(seq, command, "no trace has been launched"))
		return false
	}
	s.variableHandles.reset()
	s.sourceHandles.reset()
	return true
}

func (s *Session) onContinueRequest(request *dap.ContinueRequest) {
	if !s.resume(request.Seq, request.Command) {
		return
	}
	response := &dap.ContinueResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.AllThreadsContinued = true
	s.send(response)
	s.reportStop(s.runtime.Continue(false))
}

func (s *Session) onReverseContinueRequest(request *dap.ReverseContinueRequest) {
	if !s.resume(request.Seq, request.Command) {
		return
	}
	response := &dap.ReverseContinueResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
	s.reportStop(s.runtime.Continue(true))
}

func (s *Session) onNextRequest(request *dap.NextRequest) {
	if !s.resume(request.Seq, request.Command) {
		return
	}
	response := &dap.NextResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
	s.reportStop(s.runtime.Step(false))
}

func (s *Session) onStepBackRequest(request *dap.StepBackRequest) {
	if !s.resume(request.Seq, request.Command) {
		return
	}
	response := &dap.StepBackResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
	s.reportStop(s.runtime.Step(true))
}

func (s *Session) onStepInRequest(request *dap.StepInRequest) {
	if !s.resume(request.Seq, request.Command) {
		return
	}
	response := &dap.StepInResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
	s.reportStop(s.runtime.StepIn())
}

func (s *Session) onStepOutRequest(request *dap.StepOutRequest) {
	if !s.resume(request.Seq, request.Command) {
		return
	}
	response := &dap.StepOutResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
	s.reportStop(s.runtime.StepOut())
}

// reportStop sends the event matching the outcome of a runtime operation.
func (s *Session) reportStop(ev runtime.StopEvent) {
	stopped := func(reason string) *dap.StoppedEvent {
		return &dap.StoppedEvent{
			Event: *newEvent("stopped"),
			Body:  dap.StoppedEventBody{Reason: reason, ThreadId: threadID, AllThreadsStopped: true},
		}
	}
	switch ev.Kind {
	case runtime.StopOnEntry:
		s.send(stopped("entry"))
	case runtime.StopOnStep:
		s.send(stopped("step"))
	case runtime.StopOnBreakpoint:
		e := stopped("breakpoint")
		e.Body.HitBreakpointIds = []int{ev.BreakpointID}
		s.send(e)
	case runtime.StopOnException:
		e := stopped("exception")
		e.Body.Text = ev.Message
		s.send(e)
	case runtime.StopEnd:
		s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	case runtime.StopError:
		s.send(&dap.OutputEvent{
			Event: *newEvent("output"),
			Body:  dap.OutputEventBody{Category: "stderr", Output: ev.Message + "\n"},
		})
	}
}

func (s *Session) lineToClient(line int) int {
	if s.linesStartAt1 {
		return line + 1
	}
	return line
}

func (s *Session) lineFromClient(line int) int {
	if s.linesStartAt1 {
		return line - 1
	}
	return line
}

func (s *Session) columnToClient(column int) int {
	if s.columnsStartAt1 {
		return column + 1
	}
	return column
}

func (s *Session) columnFromClient(column int) int {
	if s.columnsStartAt1 {
		return column - 1
	}
	return column
}
