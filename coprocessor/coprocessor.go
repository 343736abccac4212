// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package coprocessor defines the external interfaces a host program uses to
// observe and control a Core: yield reasons, the developer hook used for
// memory fault reporting and profiling, and the disassembler hook used to
// stream decoded instructions out of the pipeline as they retire.
package coprocessor

import (
	"fmt"
	"os"
	"strings"

	"github.com/jetsetilly/cm3pipeline/coprocessor/faults"
)

// YieldHookResponse is returned by the CoreYieldHook implementation to
// instruct the Core in how to proceed after a yield.
type YieldHookResponse int

// List of valid YieldHookResponse values
const (
	YieldHookContinue YieldHookResponse = iota
	YieldHookEnd
)

// CoreYieldHook allows a host to halt execution when the Core reaches a
// breakpoint or some other yield point (eg. undefined behaviour).
type CoreYieldHook interface {
	CoreYield(CoProcYield) YieldHookResponse
}

// StubCoreYieldHook is a stub implementation of CoreYieldHook. A host that
// doesn't care about yields beyond "keep running while normal" can embed it.
type StubCoreYieldHook struct{}

// CoreYield implements the CoreYieldHook interface.
func (_ StubCoreYieldHook) CoreYield(yld CoProcYield) YieldHookResponse {
	if yld.Type.Normal() {
		return YieldHookContinue
	}
	return YieldHookEnd
}

// ExtendedRegisterGroup specifies the numeric range for a register group
// beyond the sixteen core ARM registers (eg. the APSR/IPSR/EPSR fields
// packed into the xPSR).
type ExtendedRegisterGroup struct {
	Name  string
	Start int
	End   int
	Label func(register int) string
}

// ExtendedRegisterSpec is the specification returned by CoreRegisters.RegisterSpec().
type ExtendedRegisterSpec []ExtendedRegisterGroup

// Group returns the ExtendedRegisterGroup from the specification if it
// exists. Group names are not case-sensitive.
func (spec ExtendedRegisterSpec) Group(name string) (ExtendedRegisterGroup, bool) {
	for _, grp := range spec {
		if strings.EqualFold(grp.Name, name) {
			return grp, true
		}
	}
	return ExtendedRegisterGroup{}, false
}

// ExtendedRegisterCoreGroup is the name of the group containing the sixteen
// core ARM registers plus the xPSR. Every implementation reports this group.
const ExtendedRegisterCoreGroup = "Core"

// CoreRegisters is implemented by a pipeline's register bank so that a host
// can inspect and modify architectural state without reaching into the
// pipeline's internals.
type CoreRegisters interface {
	RegisterSpec() ExtendedRegisterSpec
	Register(register int) (uint32, bool)
	RegisterSet(register int, value uint32) bool
}

// CoreYield describes why a Core stopped ticking.
type CoreYield struct {
	Type  CoProcYieldType
	Error error
}

// CoProcYield is an alias retained for symmetry with CoreYield; some callers
// prefer the historical name when matching against faults package output.
type CoProcYield = CoreYield

// CoProcYieldType specifies the type of yield.
type CoProcYieldType string

// List of CoProcYieldType values
const (
	// the core has yielded because the program has run to completion (an
	// EXC_RETURN was recognised). the core is not considered to be in a
	// "stuck" state.
	YieldProgramEnded CoProcYieldType = ""

	// a user supplied breakpoint has been encountered
	YieldBreakpoint CoProcYieldType = "Breakpoint"

	// the instruction stream has triggered undefined or unpredictable
	// behaviour as defined by the architecture reference manual
	YieldUndefinedBehaviour CoProcYieldType = "Undefined Behaviour"

	// the instruction stream has triggered a feature this core does not
	// implement (DSP/FP extensions, an ISA outside Cortex-M3 class)
	YieldUnimplementedFeature CoProcYieldType = "Unimplemented Feature"

	// a memory access could not be completed. details will have been
	// communicated via the CoreDeveloper.MemoryFault function
	YieldMemoryAccessError CoProcYieldType = "Memory Error"

	// something has gone wrong with the stack
	YieldStackError CoProcYieldType = "Stack Error"

	// execution error indicates that something has gone very wrong inside
	// the pipeline itself, rather than in the program it is running
	YieldExecutionError CoProcYieldType = "Execution Error"

	// the number of cycles ticked in a single call to Core.Run() has
	// exceeded the host-supplied limit
	YieldCycleLimit CoProcYieldType = "Exceeded Cycle Limit"

	// the core has not yet yielded and is still running
	YieldRunning CoProcYieldType = "Running"
)

// Normal returns true if the yield type is expected during normal operation.
func (t CoProcYieldType) Normal() bool {
	return t == YieldRunning || t == YieldProgramEnded
}

// Bug returns true if the yield type indicates a likely bug in the program
// being executed (or, for YieldExecutionError, in the core itself).
func (t CoProcYieldType) Bug() bool {
	return t == YieldUndefinedBehaviour || t == YieldUnimplementedFeature ||
		t == YieldExecutionError || t == YieldMemoryAccessError || t == YieldStackError
}

// CoreProfileEntry records the number of cycles spent executing the
// instruction at the given address.
type CoreProfileEntry struct {
	Addr   uint32
	Cycles float32
}

// CoreProfiler accumulates CoreProfileEntry values across a run.
type CoreProfiler struct {
	Entries []CoreProfileEntry
}

// CoreDeveloper is implemented by a host that wants detailed feedback beyond
// a bare yield: fault classification, breakpoints, and profiling.
type CoreDeveloper interface {
	// a memory fault has occurred
	MemoryFault(event string, explanation faults.Category, instructionAddr uint32, accessAddr uint32)

	// returns the highest address used by the program, used by the core to
	// detect stack collisions
	HighAddress() uint32

	// checks if address has a breakpoint assigned to it
	CheckBreakpoint(addr uint32) bool

	// returns the profiler the core should accumulate cycle counts into
	Profiling() *CoreProfiler

	// notifies the developer that a new profiling session is about to begin
	StartProfiling()

	// instructs the developer implementation to accumulate profiling data.
	// there can be many calls to ProcessProfiling for every StartProfiling
	ProcessProfiling()

	// called whenever the core yields. communicates the address of the
	// most recently retired instruction and the reason for the yield
	OnYield(addr uint32, reason CoreYield)
}

// CoreDisasmSummary represents a summary of a core's execution.
type CoreDisasmSummary interface {
	String() string
}

// CoreDisasmEntry represents a single decoded instruction as it retires from
// the pipeline.
type CoreDisasmEntry interface {
	String() string
	Key() string
	Size() int
}

// CoreDisassembler defines the functions a disassembler hook must implement
// to attach to a Core.
type CoreDisassembler interface {
	// Start is called at the beginning of program execution.
	Start()

	// Step is called after every instruction retires.
	Step(CoreDisasmEntry)

	// End is called when execution stops, for whatever reason.
	End(CoreDisasmSummary)
}

// CoreDisassemblerStderr is a minimal CoreDisassembler that writes entries
// to stderr as they arrive.
type CoreDisassemblerStderr struct{}

// Start implements the CoreDisassembler interface.
func (c *CoreDisassemblerStderr) Start() {}

// Step implements the CoreDisassembler interface.
func (c *CoreDisassemblerStderr) Step(e CoreDisasmEntry) {
	fmt.Fprintln(os.Stderr, e)
}

// End implements the CoreDisassembler interface.
func (c *CoreDisassemblerStderr) End(s CoreDisasmSummary) {
	fmt.Fprintln(os.Stderr, s)
}
