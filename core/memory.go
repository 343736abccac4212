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

package core

import (
	"github.com/jetsetilly/cm3pipeline/coprocessor/faults"
	"github.com/jetsetilly/cm3pipeline/errors"
	"github.com/jetsetilly/cm3pipeline/logger"
)

// memoryFault records a failed bus access in the fault log and wraps it as
// a curated BusError, the shape every Step method in this file reports a
// failed LSU call with.
func (e *Execute) memoryFault(event string, instrAddr uint32, accessAddr uint32, fault error) error {
	e.faults.NewEntry(event, faults.IllegalAddress, instrAddr, accessAddr)
	return errors.Errorf(errors.BusError, fault, accessAddr, instrAddr)
}

// checkAlignment diagnoses an address that is not naturally aligned for the
// transfer width. With TrapUnalignedAccess clear the access still proceeds
// and the misalignment is only recorded (this core diagnoses the UsageFault
// candidate but does not raise the exception; the NVIC is out of scope).
// With it set the access fails with a UsageFaultCandidate error.
func (e *Execute) checkAlignment(event string, instrAddr uint32, addr uint32, width uint8) error {
	aligned := true
	switch width {
	case 2:
		aligned = IsAlignedTo16bits(addr)
	case 4:
		aligned = IsAlignedTo32bits(addr)
	}
	if aligned {
		return nil
	}

	e.faults.NewEntry(event, faults.MisalignedAccess, instrAddr, addr)
	e.log.Logf(logger.Allow, "lsu", "misaligned %s: %08x (PC: %08x)", event, addr, instrAddr)

	if e.trapUnalignedAccess {
		return errors.Errorf(errors.UsageFaultCandidate, event, instrAddr)
	}
	return nil
}

// read issues a load of the given width and sign through the LSU.
func (e *Execute) read(addr uint32, width uint8, signExtending bool) (uint32, bool, error) {
	var value uint32
	var ready bool
	var fault error

	switch width {
	case 1:
		value, ready, fault = e.lsu.Read8(addr)
		if signExtending {
			value = signExtend(value&0xff, 8)
		}
	case 2:
		value, ready, fault = e.lsu.Read16(addr)
		if signExtending {
			value = signExtend(value&0xffff, 16)
		}
	default:
		value, ready, fault = e.lsu.Read32(addr)
	}

	return value, ready, fault
}

// write issues a store of the given width through the LSU.
func (e *Execute) write(addr uint32, width uint8, value uint32) (bool, error) {
	switch width {
	case 1:
		return e.lsu.Write8(addr, value)
	case 2:
		return e.lsu.Write16(addr, value)
	}
	return e.lsu.Write32(addr, value)
}

// transferAddress resolves the effective address of a single-register
// load/store from its addressing-mode fields: literal (PC-relative,
// word-aligned base), immediate or register offset, pre- or post-indexed,
// adding or subtracting.
func (e *Execute) transferAddress(instr Instruction, instrAddr uint32) (accessAddr uint32, wbackValue uint32) {
	var base uint32
	if instr.Literal {
		base = AlignTo32bits(instrAddr + 4)
	} else {
		base = e.bank.GetOperand(int(instr.Rn))
	}

	var offset uint32
	if instr.RegisterOffset {
		offset = e.bank.GetOperand(int(instr.Rm)) << instr.ShiftAmount
	} else {
		offset = instr.Imm
	}

	offsetAddr := base + offset
	if !instr.Add {
		offsetAddr = base - offset
	}

	if instr.Index {
		return offsetAddr, offsetAddr
	}
	return base, offsetAddr
}

// stepSingleMemory advances a single-register load/store (including the
// LDRD/STRD pair forms and LDREX/STREX) by one cycle.
func (e *Execute) stepSingleMemory(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	instr := ctx.pack.Instruction
	pending := &ctx.pending

	if !pending.active {
		addr, wback := e.transferAddress(instr, ctx.pack.Address)
		if latched, ok := e.bank.TakeAGU(); ok {
			addr = latched
		}

		pending.active = true
		pending.addr = addr
		pending.width = instr.Width
		pending.isLoad = instr.IsLoad
		pending.isSigned = instr.SignExtend
		pending.destReg = int(instr.Rd)

		if err := e.checkAlignment(memoryEvent(instr), ctx.pack.Address, addr, instr.Width); err != nil {
			return Continue, err
		}

		// single-register writeback commits at the address phase, which is
		// what lets a following instruction's AGU fast-forward from the
		// updated base without a stall
		if instr.Wback {
			e.bank.Set(int(instr.Rn), wback)
		}

		// the address phase costs a cycle of its own; the data moves from
		// the next cycle onward
		return Continue, nil
	}

	if pending.isLoad {
		value, ready, fault := e.read(pending.addr, pending.width, pending.isSigned)
		if fault != nil {
			return Continue, e.memoryFault(memoryEvent(instr), ctx.pack.Address, pending.addr, fault)
		}
		if !ready {
			return Continue, nil
		}

		if instr.Dual && pending.phase == 0 {
			// first word of an LDRD: latch and come back for the second
			e.bank.Set(pending.destReg, value)
			pending.phase = 1
			pending.addr += 4
			pending.destReg = int(instr.Rd2)
			return Continue, nil
		}

		if pending.destReg == PC {
			// load_write_pc: an EXC_RETURN value hands control to the
			// exception collaborator, anything else is an exchange branch
			if isExceptionReturn(value) {
				pending.active = false
				e.status.advanceIT()
				return ExceptionReturn, nil
			}
			value &^= 1
		}
		e.bank.Set(pending.destReg, value)
	} else {
		if pending.phase == 0 {
			pending.value = e.bank.GetOperand(pending.destReg)
		}
		ready, fault := e.write(pending.addr, pending.width, pending.value)
		if fault != nil {
			return Continue, e.memoryFault(memoryEvent(instr), ctx.pack.Address, pending.addr, fault)
		}
		if !ready {
			return Continue, nil
		}

		if instr.Dual && !instr.Exclusive && pending.phase == 0 {
			pending.phase = 1
			pending.addr += 4
			pending.value = e.bank.GetOperand(int(instr.Rd2))
			// re-poll next cycle with the second word already resolved
			pending.destReg = int(instr.Rd2)
			return Continue, nil
		}

		if instr.Exclusive {
			// STREX status register: this bus has a single master, so the
			// exclusive store always succeeds
			e.bank.Set(int(instr.Rd2), 0)
		}
	}

	pending.active = false
	pending.phase = 0
	e.status.advanceIT()
	e.applyFoldedIT(ctx.pack)
	e.bank.MarkClean()

	if pending.isLoad && pending.destReg == PC {
		return e.branchResult(ctx)
	}
	return NextInstruction, nil
}

// memoryEvent names a load/store for the fault log.
func memoryEvent(instr Instruction) string {
	switch {
	case instr.Dual && instr.IsLoad:
		return "LDRD"
	case instr.Dual:
		return "STRD"
	case instr.Exclusive && instr.IsLoad:
		return "LDREX"
	case instr.Exclusive:
		return "STREX"
	case instr.IsLoad:
		return "LDR"
	}
	return "STR"
}

// registerListState tracks an LDM/STM/PUSH/POP in progress: the address of
// the next register still to transfer and the set of registers not yet
// moved. Registers transfer in ascending order, one per cycle, mirroring
// the way the bus can only service one word at a time; PC, when present, is
// always the highest bit and so is always transferred last.
type registerListState struct {
	active  bool
	addr    uint32
	pending RegisterBitmap
}

// stepRegisterList advances an LDM/STM/PUSH/POP by one cycle. Base register
// writeback happens in place, at the start of the sequence, rather than
// once every register has moved; the decoder already decided whether Wback
// applies (LDM never writes back when Rn is in the register list, A7.7.159),
// so Execute only has to apply it.
func (e *Execute) stepRegisterList(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	instr := ctx.pack.Instruction
	state := &ctx.registerList

	if !state.active {
		regs := RegisterBitmap(instr.Imm)
		count := regs.Count()

		if instr.IsLoad && instr.Wback && regs.Has(int(instr.Rn)) {
			if lowest, _ := regs.Lowest(); lowest != int(instr.Rn) {
				// the hardware stores an UNKNOWN value in this case; refuse
				// rather than invent one
				return Continue, errors.Errorf(errors.UnpredictableEncoding, instr.Opcode, ctx.pack.Address,
					"LDM writeback with the base register present but not the lowest register in the list")
			}
		}

		base := e.bank.GetOperand(int(instr.Rn))
		addr := base
		if instr.Decrement {
			addr = base - uint32(count)*4
		}
		if latched, ok := e.bank.TakeAGU(); ok {
			addr = latched
		}

		if err := e.checkAlignment(registerListEvent(instr), ctx.pack.Address, addr, 4); err != nil {
			return Continue, err
		}

		if instr.Wback {
			if instr.Decrement {
				e.bank.Set(int(instr.Rn), base-uint32(count)*4)
			} else {
				e.bank.Set(int(instr.Rn), base+uint32(count)*4)
			}
		}

		state.active = true
		state.addr = addr
		state.pending = regs

		// address phase: the first register moves next cycle
		return Continue, nil
	}

	reg, ok := state.pending.Lowest()
	if !ok {
		state.active = false
		e.status.advanceIT()
		e.applyFoldedIT(ctx.pack)
		e.bank.MarkClean()
		return NextInstruction, nil
	}

	if instr.IsLoad {
		value, ready, fault := e.lsu.Read32(state.addr)
		if fault != nil {
			return Continue, e.memoryFault(registerListEvent(instr), ctx.pack.Address, state.addr, fault)
		}
		if !ready {
			return Continue, nil
		}
		if reg == PC {
			if isExceptionReturn(value) {
				state.active = false
				e.status.advanceIT()
				return ExceptionReturn, nil
			}
			value &^= 1
		}
		e.bank.Set(reg, value)
	} else {
		ready, fault := e.lsu.Write32(state.addr, e.bank.GetOperand(reg))
		if fault != nil {
			return Continue, e.memoryFault(registerListEvent(instr), ctx.pack.Address, state.addr, fault)
		}
		if !ready {
			return Continue, nil
		}
	}

	state.pending = state.pending.Without(reg)
	state.addr += 4

	if !state.pending.IsEmpty() {
		return Continue, nil
	}

	state.active = false
	e.status.advanceIT()
	e.applyFoldedIT(ctx.pack)
	e.bank.MarkClean()

	if instr.IsLoad && reg == PC {
		return e.branchResult(ctx)
	}
	return NextInstruction, nil
}

// registerListEvent names a multiple load/store for the fault log.
func registerListEvent(instr Instruction) string {
	switch {
	case instr.IsLoad && int(instr.Rn) == SP && instr.Wback && !instr.Decrement:
		return "POP"
	case !instr.IsLoad && int(instr.Rn) == SP && instr.Wback && instr.Decrement:
		return "PUSH"
	case instr.IsLoad:
		return "LDM"
	}
	return "STM"
}

// tableBranchState tracks a TBB/TBH in progress across the four cycles the
// staged pipeline spends on it: computing the table address, reading the
// offset byte/halfword from memory, folding it into a destination address,
// and finally writing PC. Only the second of these needs the LSU; the other
// three are bookkeeping Execute performs in a single cycle each so that a
// following instruction's AGU stall accounting sees the same
// one-cycle-per-state granularity as every other multi-cycle instruction.
type tableBranchState struct {
	active bool
	cycle  int
	addr   uint32
	offset uint32
}

// stepTableBranch advances a TBB/TBH by one cycle.
func (e *Execute) stepTableBranch(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	instr := ctx.pack.Instruction
	state := &ctx.tableBranch

	if !state.active {
		base := e.bank.GetOperand(int(instr.Rn))
		index := e.bank.GetOperand(int(instr.Rm))

		state.active = true
		if latched, ok := e.bank.TakeAGU(); ok {
			base, index = latched, 0
		}
		if instr.Imm != 0 {
			state.addr = base + index<<1 // TBH: table of halfwords
			if err := e.checkAlignment("TBH", ctx.pack.Address, state.addr, 2); err != nil {
				return Continue, err
			}
		} else {
			state.addr = base + index // TBB: table of bytes
		}
		return Continue, nil
	}

	switch state.cycle {
	case 0:
		var value uint32
		var ready bool
		var fault error
		if instr.Imm != 0 {
			value, ready, fault = e.lsu.Read16(state.addr)
		} else {
			value, ready, fault = e.lsu.Read8(state.addr)
		}
		if fault != nil {
			return Continue, e.memoryFault("table branch", ctx.pack.Address, state.addr, fault)
		}
		if !ready {
			return Continue, nil
		}
		state.offset = value
		state.cycle++
		return Continue, nil

	case 1:
		// the offset read last cycle is folded into a destination address
		// here, one cycle ahead of the write to PC, keeping the staged
		// address-then-branch timing distinct from a plain load into PC
		state.cycle++
		return Continue, nil

	default:
		target := ctx.pack.Address + 4 + state.offset*2
		e.bank.Set(PC, target)
		state.active = false
		e.status.advanceIT()
		e.bank.MarkClean()
		return e.branchResult(ctx)
	}
}
