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

// Package core implements a cycle-accurate Fetch/Decode/Execute pipeline
// for a Cortex-M3 class ARMv7-M processor. It has no opinion on what sits
// behind its LSU interface or on how a host schedules calls to Tick: there
// is no bus fabric, no NVIC, no top level simulator loop here, only the
// three pipeline stages and the state that flows between them.
package core

import (
	"github.com/jetsetilly/cm3pipeline/coprocessor"
	"github.com/jetsetilly/cm3pipeline/coprocessor/faults"
	"github.com/jetsetilly/cm3pipeline/errors"
	"github.com/jetsetilly/cm3pipeline/hardware/preferences"
	"github.com/jetsetilly/cm3pipeline/logger"
)

// Core wires together the register bank, xPSR, Fetch, Decode and Execute
// stages into a single-threaded, cooperatively ticked pipeline. There are no
// goroutines here: Tick is meant to be called repeatedly from whatever loop
// the host drives (a test harness, a larger SoC simulator, or a debugger's
// step command).
type Core struct {
	bank   Bank
	status xPSR

	fetch   *Fetch
	decode  *Decode
	execute *Execute

	faults faults.Faults
	dev    coprocessor.CoreDeveloper
	yield  coprocessor.CoreYield

	prefs *preferences.ARMPreferences
	log   *logger.Logger

	cycleCount uint64

	// sleeping is set once a WFI has retired; Tick still counts cycles but
	// performs no pipeline work until Wake is called
	sleeping bool
}

// NewCore creates a Core whose Fetch stage reads from lsu starting at
// resetPC, using decoder to turn fetched words into Instructions.
func NewCore(lsu LSU, resetPC uint32, decoder DecodeFunction, prefs *preferences.ARMPreferences) *Core {
	if decoder == nil {
		decoder = DefaultDecoder
	}
	if prefs == nil {
		prefs = preferences.NewARMPreferences()
	}

	c := &Core{
		faults: faults.NewFaults(),
		prefs:  prefs,
		log:    logger.NewLogger(256),
	}

	c.bank.Set(PC, resetPC)
	c.fetch = NewFetch(lsu, resetPC)
	c.decode = NewDecode(c.fetch, &c.bank, decoder, prefs.BLSetsWritesLR.Get().(bool), c.log)
	c.execute = NewExecute(&c.bank, lsu, &c.status, &c.faults, c.log)
	c.execute.multiplierFlavor = prefs.MultiplierFlavor.Get().(int)
	c.execute.trapUnalignedAccess = prefs.TrapUnalignedAccess.Get().(bool)

	c.yield.Type = coprocessor.YieldRunning

	return c
}

// SetDeveloper attaches a developer hook. Passing nil detaches it.
func (c *Core) SetDeveloper(dev coprocessor.CoreDeveloper) {
	c.dev = dev
}

// Faults returns the fault log accumulated so far.
func (c *Core) Faults() *faults.Faults {
	return &c.faults
}

// Yield returns the reason the core most recently stopped ticking.
func (c *Core) Yield() coprocessor.CoreYield {
	return c.yield
}

// APSR returns the current condition flags. Hosts use this for tracing and
// for seeding processor state before a run.
func (c *Core) APSR() (negative, zero, carry, overflow bool) {
	return c.status.negative, c.status.zero, c.status.carry, c.status.overflow
}

// SetAPSR installs condition flags directly, the way a reset handler or a
// test harness seeds processor state.
func (c *Core) SetAPSR(negative, zero, carry, overflow bool) {
	c.status.negative = negative
	c.status.zero = zero
	c.status.carry = carry
	c.status.overflow = overflow
}

// Register implements coprocessor.CoreRegisters.
func (c *Core) Register(register int) (uint32, bool) {
	if register < 0 || register >= NumRegisters {
		return 0, false
	}
	return c.bank.Get(register), true
}

// RegisterSet implements coprocessor.CoreRegisters.
func (c *Core) RegisterSet(register int, value uint32) bool {
	if register < 0 || register >= NumRegisters {
		return false
	}
	c.bank.Set(register, value)
	return true
}

// RegisterSpec implements coprocessor.CoreRegisters.
func (c *Core) RegisterSpec() coprocessor.ExtendedRegisterSpec {
	return coprocessor.ExtendedRegisterSpec{
		{
			Name:  coprocessor.ExtendedRegisterCoreGroup,
			Start: 0,
			End:   NumRegisters - 1,
			Label: func(r int) string {
				switch r {
				case SP:
					return "sp"
				case LR:
					return "lr"
				case PC:
					return "pc"
				default:
					return registerName(r)
				}
			},
		},
	}
}

func registerName(r int) string {
	names := [...]string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10", "r11", "r12"}
	if r >= 0 && r < len(names) {
		return names[r]
	}
	return "?"
}

// Tick advances the pipeline by exactly one cycle: Decode is given the
// opportunity to move its own state forward, then Execute is given the
// opportunity to retire (or keep working on) whatever Decode has already
// handed it. A single call to Tick always costs exactly one core clock
// cycle, which is what makes cycle counts accumulated across many Tick
// calls meaningful.
func (c *Core) Tick() (coprocessor.CoreYield, error) {
	c.cycleCount++

	if c.sleeping {
		return c.yield, nil
	}

	// decode phase: while Execute is busy with a multi-cycle instruction,
	// Decode keeps working ahead on the next one (and may park in
	// AGUWaitingForData if that instruction reads a register the in-flight
	// instruction is still due to write)
	if !c.decode.IsReady() {
		trigger := TriggerData{
			Kind:           DecodeCurrent,
			DirtyRegisters: c.bank.DirtyRegisters(),
			Status:         c.execute.ForwardedStatus(),
		}
		if err := c.decode.Step(trigger); err != nil {
			return c.yieldWith(coprocessor.YieldMemoryAccessError, err), err
		}
	}

	// execute phase
	var pack PipelineStepPack
	if c.execute.InFlight() {
		pack = c.execute.main.pack
	} else {
		if !c.decode.IsReady() {
			return c.yield, nil
		}
		pack = c.decode.Result()
		c.decode.Consume()
		c.execute.Begin(pack)

		// the bank's PC tracks the executing instruction so an operand
		// read of PC observes the architectural address-plus-four value;
		// branch instructions overwrite it with their target
		c.bank.Set(PC, pack.Address)

		// everything this instruction will write is dirty until it
		// retires; the AGU consults this to decide whether a following
		// instruction must stall
		dirty := destinationRegisters(pack.Instruction)
		for r := R0; r < NumRegisters; r++ {
			if dirty.Has(r) {
				c.bank.MarkDirty(r)
			}
		}
	}

	result, err := c.execute.Step()
	if err != nil {
		return c.yieldWith(classifyExecuteError(err), err), err
	}

	switch result {
	case NextInstruction, Skipped:
		// pipeline moves; Decode is already working on the next
		// instruction

	case DecodeTimeBranch:
		// Fetch was informed when Decode resolved the branch; nothing to
		// correct now that Execute has confirmed it

	case BranchNotTaken:
		// mispredicted speculative branch: Fetch went down the target
		// path and must be pulled back to the fall-through, and anything
		// Decode picked up from the wrong path is abandoned
		c.fetch.Redirect(pack.FollowingInstructionAddress(), false)
		c.flushDecode()

	case ExecuteTimeBranch, LateBranch:
		c.fetch.Redirect(c.bank.Get(PC), false)
		c.flushDecode()

	case ExceptionReturn:
		c.flushDecode()
		c.yield = coprocessor.CoreYield{Type: coprocessor.YieldProgramEnded}
		if c.dev != nil {
			c.dev.OnYield(pack.Address, c.yield)
		}

	case PreSleep:
		// one more cycle of bus activity before the WFI takes hold

	case Sleep:
		c.sleeping = true
		c.log.Logf(logger.Allow, "core", "WFI at %08x: sleeping", pack.Address)

	case Continue:
		// instruction still in flight; nothing to advance yet
	}

	return c.yield, nil
}

// flushDecode abandons whatever Decode has picked up beyond a branch that
// has just been taken, including the program-order flags that must not leak
// across a flush.
func (c *Core) flushDecode() {
	_ = c.decode.Step(TriggerData{Kind: IgnoreCurrent})
}

// Sleeping reports whether the core is in the low power state a WFI put it
// in.
func (c *Core) Sleeping() bool {
	return c.sleeping
}

// Wake brings the core out of a WFI sleep: the interrupt collaborator calls
// this when a wake event becomes pending. The WFI instruction retires and
// the pipeline resumes from the following instruction.
func (c *Core) Wake() {
	if !c.sleeping {
		return
	}
	c.sleeping = false
	// the WFI itself retires; anything Decode picked up behind it is
	// already waiting and resumes untouched
	c.execute.main.inFlight = false
	c.bank.MarkClean()
}

// destinationRegisters returns every register a decoded instruction will
// write once it retires, so Core can mark all of them dirty for the AGU --
// not just a single Rd, since LDM/STM/PUSH/POP and the long multiplies each
// write more than one register.
func destinationRegisters(instr Instruction) RegisterBitmap {
	switch instr.Kind {
	case KindALU:
		if instr.Compare {
			return 0
		}
		return RegisterBitmap(0).Set(int(instr.Rd))

	case KindMoveToPC, KindMultiply, KindDivide, KindSystemRegisterRead:
		return RegisterBitmap(0).Set(int(instr.Rd))

	case KindMemory:
		if instr.Multiple {
			var regs RegisterBitmap
			if instr.IsLoad {
				regs = RegisterBitmap(instr.Imm)
			}
			if instr.Wback {
				regs = regs.Set(int(instr.Rn))
			}
			return regs
		}
		var regs RegisterBitmap
		if instr.IsLoad {
			regs = regs.Set(int(instr.Rd))
			if instr.Dual {
				regs = regs.Set(int(instr.Rd2))
			}
		} else if instr.Exclusive {
			// STREX writes its status register
			regs = regs.Set(int(instr.Rd2))
		}
		if instr.Wback {
			regs = regs.Set(int(instr.Rn))
		}
		return regs

	case KindLongMultiply:
		return RegisterBitmap(0).Set(int(instr.RdLo)).Set(int(instr.RdHi))

	case KindBranchWithLinkImmediate, KindBranchWithLinkAndExchangeRegister:
		return RegisterBitmap(0).Set(LR)
	}
	return 0
}

func (c *Core) yieldWith(t coprocessor.CoProcYieldType, err error) coprocessor.CoreYield {
	c.yield = coprocessor.CoreYield{Type: t, Error: err}
	if c.dev != nil {
		c.dev.OnYield(c.bank.Get(PC), c.yield)
	}
	return c.yield
}

func classifyExecuteError(err error) coprocessor.CoProcYieldType {
	switch {
	case errors.Is(err, errors.BusError):
		return coprocessor.YieldMemoryAccessError
	case errors.Is(err, errors.ReservedEncoding), errors.Is(err, errors.UnpredictableEncoding):
		return coprocessor.YieldUndefinedBehaviour
	case errors.Is(err, errors.UnsupportedEncoding):
		return coprocessor.YieldUnimplementedFeature
	}
	return coprocessor.YieldExecutionError
}

// Run ticks the core until it yields for any reason other than
// YieldRunning, or until maxCycles ticks have elapsed (0 means unlimited).
// This is a convenience for hosts that don't need fine-grained control over
// scheduling; it is not itself a scheduler and makes no decisions about
// bus arbitration or interrupts.
func (c *Core) Run(maxCycles uint64) (coprocessor.CoreYield, error) {
	var ticked uint64
	for maxCycles == 0 || ticked < maxCycles {
		y, err := c.Tick()
		if err != nil {
			return y, err
		}
		if !y.Type.Normal() || y.Type == coprocessor.YieldProgramEnded {
			return y, nil
		}
		ticked++
	}
	return c.yield, nil
}

// CycleCount returns the number of Tick calls the core has serviced since
// construction.
func (c *Core) CycleCount() uint64 {
	return c.cycleCount
}
