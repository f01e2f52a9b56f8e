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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/algorand/avm-debugger/debugger/assets"
	"github.com/algorand/avm-debugger/debugger/replay"
	"github.com/algorand/avm-debugger/debugger/runtime"
	"github.com/algorand/avm-debugger/logging"
)

// replayOptions are the settings of a headless replay.
type replayOptions struct {
	TraceFile   string
	SourcesFile string
	Breakpoints []string
	Step        bool
	MaxStops    int
}

var replayOpts replayOptions
var noColor bool

func init() {
	replayCmd.Flags().StringVarP(&replayOpts.SourcesFile, "sources", "s", "", "Program sources description file")
	replayCmd.Flags().StringSliceVarP(&replayOpts.Breakpoints, "break", "b", nil, "Breakpoint as path:line, lines start at 1")
	replayCmd.Flags().BoolVar(&replayOpts.Step, "step", false, "Print every step instead of only breakpoints and exceptions")
	replayCmd.Flags().IntVar(&replayOpts.MaxStops, "max-stops", 100000, "Give up after this many stops")
	replayCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

var replayCmd = &cobra.Command{
	Use:   "replay trace.json",
	Short: "Replay a simulate trace without a client",
	Long:  `Replay a simulate trace to its end, printing every stop. Useful to inspect failures in CI`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := setupLogging(cfg)
		if noColor {
			color.NoColor = true
		}
		opts := replayOpts
		opts.TraceFile = args[0]
		return replayTrace(cmd.Context(), os.Stdout, assets.MakeLoader(nil, log), opts, log)
	},
}

var (
	frameColor     = color.New(color.FgCyan)
	breakColor     = color.New(color.FgYellow, color.Bold)
	exceptionColor = color.New(color.FgRed, color.Bold)
	endColor       = color.New(color.FgGreen)
)

// parseBreakpoint parses path:line with a 1 based line.
func parseBreakpoint(s string) (string, int, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid breakpoint %q, expected path:line", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("invalid breakpoint line in %q", s)
	}
	path, err := filepath.Abs(s[:i])
	if err != nil {
		return "", 0, err
	}
	return path, line - 1, nil
}

// replayTrace walks the trace forward to its end and writes every stop to out.
func replayTrace(ctx context.Context, out io.Writer, loader *assets.Loader, opts replayOptions, log logging.Logger) error {
	a, err := loader.Load(ctx, opts.TraceFile, opts.SourcesFile)
	if err != nil {
		return err
	}
	engine := replay.MakeEngine(log)
	if err := engine.LoadResources(a.Response, a.Registry); err != nil {
		return err
	}
	rt := runtime.MakeRuntime(engine, log)
	for _, b := range opts.Breakpoints {
		path, line, err := parseBreakpoint(b)
		if err != nil {
			return err
		}
		rt.SetBreakpoint(path, line, nil)
	}

	ev := rt.Start(opts.Step, true)
	for stops := 1; ; stops++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ev.Kind == runtime.StopError {
			exceptionColor.Fprintf(out, "error: %s\n", ev.Message)
			return ev.Err
		}
		printStop(out, engine, ev)
		if ev.Kind == runtime.StopEnd {
			return nil
		}
		if opts.MaxStops > 0 && stops >= opts.MaxStops {
			return fmt.Errorf("replay did not end after %d stops", stops)
		}
		if opts.Step {
			ev = rt.StepIn()
		} else {
			ev = rt.Continue(false)
		}
	}
}

func printStop(out io.Writer, engine *replay.Engine, ev runtime.StopEvent) {
	switch ev.Kind {
	case runtime.StopEnd:
		endColor.Fprintln(out, "replay ended")
		return
	case runtime.StopOnBreakpoint:
		breakColor.Fprintf(out, "breakpoint %d\n", ev.BreakpointID)
	case runtime.StopOnException:
		exceptionColor.Fprintf(out, "exception: %s\n", ev.Message)
	}
	frame := engine.CurrentFrame()
	if frame == nil {
		return
	}
	frameColor.Fprintf(out, "  %s", frame.Name())
	fmt.Fprintf(out, " at %s\n", describeLocation(frame))
	if pf, ok := frame.(*replay.ProgramFrame); ok {
		state := pf.State()
		stack := make([]string, len(state.Stack))
		for i, v := range state.Stack {
			stack[i] = v.String()
		}
		fmt.Fprintf(out, "    pc=%d stack=[%s]\n", state.PC, strings.Join(stack, ", "))
	}
}

// describeLocation prints a 1 based file position.
func describeLocation(frame replay.Frame) string {
	file := frame.SourceFile()
	loc := frame.SourceLocation()
	name := file.Path
	if file.Synthesized() {
		name = file.Name
	}
	return fmt.Sprintf("%s:%d:%d", name, loc.Line+1, loc.Column+1)
}
