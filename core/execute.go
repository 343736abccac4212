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
	"math/bits"

	"github.com/jetsetilly/cm3pipeline/coprocessor/faults"
	"github.com/jetsetilly/cm3pipeline/core/bitstring"
	"github.com/jetsetilly/cm3pipeline/errors"
	"github.com/jetsetilly/cm3pipeline/logger"
)

// ExecutionStepResult describes what happened in a single call to
// Execute.Step, which Core uses to decide what to tell Decode and Fetch
// next.
type ExecutionStepResult int

const (
	// the instruction needs more cycles before it retires (a multi-cycle
	// multiply/divide, or a load/store still waiting on the LSU)
	Continue ExecutionStepResult = iota

	// the instruction retired normally; Decode should advance
	NextInstruction

	// the instruction was inside a failed IT condition and was skipped
	// rather than executed
	Skipped

	// a speculative decode-time conditional branch turned out not to be
	// taken; Fetch must be redirected back to the fall-through path
	BranchNotTaken

	// an execute-time branch has now resolved; Fetch must be redirected
	ExecuteTimeBranch

	// a decode-time branch retired exactly as predicted; Fetch was already
	// told when Decode resolved it
	DecodeTimeBranch

	// a branch whose target was computed late in the cycle (ALU write to
	// PC); Fetch suppresses its current-cycle fetch and accepts the target
	// for the next
	LateBranch

	// the instruction stream executed an exception return (a BX LR or a
	// POP/LDR that loaded an EXC_RETURN value into PC)
	ExceptionReturn

	// the core is about to enter a low power state (WFI) but has one more
	// cycle of bus activity to settle first
	PreSleep

	// the core has entered a low power state and is not retiring
	// instructions until an event wakes it
	Sleep
)

// InstructionExecutionContext holds the state Execute needs to retire one
// instruction, potentially across several Step calls. A folded IT (see
// PipelineStepPack.FoldedInstruction) does not get a context of its own: its
// only effect, installing a fresh ITSTATE, is applied directly by
// applyFoldedIT the same cycle its host instruction retires or is skipped.
type InstructionExecutionContext struct {
	pack PipelineStepPack

	// inFlight is true from Begin until the instruction produces a
	// retiring step result, so Core knows not to load the next pack over
	// an instruction that is still working.
	inFlight bool

	// cyclesRemaining counts down the extra cycles a multi-cycle
	// instruction (divide, multiply-accumulate, CPS/MSR serialisation)
	// still needs once its result is already computed, modelling the
	// pipeline stall without needing a separate state machine per
	// instruction family.
	cyclesRemaining int

	pending pendingAccess

	// multiplyLong tracks a UMULL/SMULL/UMLAL/SMLAL in progress: the
	// computed 64 bit result, the table-driven cycle on which each half is
	// due, and which half(ves) have been committed to the register bank
	// already.
	multiplyLong multiplyLongState

	// registerList and tableBranch track a Multiple KindMemory instruction
	// or a KindTableBranch instruction in progress; see memory.go.
	registerList registerListState
	tableBranch  tableBranchState

	// sleeping is set once a WFI has produced its PreSleep cycle
	sleeping bool
}

// Execute is the Execute pipeline stage.
type Execute struct {
	bank   *Bank
	lsu    LSU
	status *xPSR
	faults *faults.Faults
	log    *logger.Logger

	multiplierFlavor    int
	trapUnalignedAccess bool

	main InstructionExecutionContext
}

// NewExecute creates an Execute stage.
func NewExecute(bank *Bank, lsu LSU, status *xPSR, flt *faults.Faults, log *logger.Logger) *Execute {
	return &Execute{bank: bank, lsu: lsu, status: status, faults: flt, log: log}
}

// Begin loads pack as the instruction Execute will retire, replacing
// whatever the main slot previously held.
func (e *Execute) Begin(pack PipelineStepPack) {
	e.main = InstructionExecutionContext{pack: pack, inFlight: true}
}

// InFlight reports whether the main slot holds an instruction that has
// started but not yet retired.
func (e *Execute) InFlight() bool {
	return e.main.inFlight
}

// ForwardedStatus returns the xPSR a following instruction will observe:
// the live value, fast-forwarded past the ITSTATE advance (and any folded
// IT install) the in-flight instruction will perform when it retires.
// Decode uses this so an instruction decoded in the shadow of a multi-cycle
// predecessor still resolves its ITSTATE-dependent decisions correctly.
func (e *Execute) ForwardedStatus() xPSR {
	s := *e.status
	if e.main.inFlight {
		s.advanceIT()
		if folded := e.main.pack.FoldedInstruction; folded != nil {
			s.setIT(folded.Cond, uint8(folded.Imm))
		}
	}
	return s
}

// Step advances execution of the instruction currently loaded into the main
// slot by one cycle.
func (e *Execute) Step() (ExecutionStepResult, error) {
	result, err := e.step()
	if result != Continue && result != PreSleep && result != Sleep {
		e.main.inFlight = false
	}
	return result, err
}

func (e *Execute) step() (ExecutionStepResult, error) {
	ctx := &e.main
	instr := ctx.pack.Instruction

	if ctx.pack.BranchKind.IsConditional() && !ctx.pack.BranchKind.EvaluateCondition(instr, *e.status) &&
		instr.Kind != KindCompareBranch {
		if ctx.pack.BranchKind.IsSpeculative() {
			return BranchNotTaken, nil
		}
		e.status.advanceIT()
		e.applyFoldedIT(ctx.pack)
		return Skipped, nil
	}

	// an ordinary (non-branch) instruction sitting inside an IT block is
	// predicated on ITSTATE rather than on a condition field of its own;
	// Brchstat has nothing to say about it since it never changes PC, so
	// Execute checks ITSTATE directly instead.
	if ctx.pack.BranchKind == NoBranch && instr.Kind != KindIT && e.status.InITBlock() &&
		!e.status.condition(e.status.currentITCondition()) {
		e.status.advanceIT()
		e.applyFoldedIT(ctx.pack)
		return Skipped, nil
	}

	if ctx.cyclesRemaining > 0 {
		ctx.cyclesRemaining--
		if ctx.cyclesRemaining > 0 {
			return Continue, nil
		}
		return e.retire(ctx)
	}

	switch instr.Kind {
	case KindALU:
		e.executeALU(instr, ctx.pack.Address)
		if instr.RdIsPC() {
			// the result is only ready late in the cycle; alu_write_pc
			e.bank.Set(PC, e.bank.Get(PC)&^1)
			e.status.advanceIT()
			e.bank.MarkClean()
			return LateBranch, nil
		}
		return e.retire(ctx)

	case KindMemory:
		if instr.Multiple {
			return e.stepRegisterList(ctx)
		}
		return e.stepSingleMemory(ctx)

	case KindTableBranch:
		return e.stepTableBranch(ctx)

	case KindMultiply:
		ctx.cyclesRemaining = multiplyCycles(instr, e.multiplierFlavor)
		return e.stepOrRetire(ctx)

	case KindLongMultiply:
		return e.stepLongMultiply(ctx)

	case KindDivide:
		dividend := e.bank.GetOperand(int(instr.Rn))
		divisor := e.bank.GetOperand(int(instr.Rm))
		ctx.cyclesRemaining = divideCycles(dividend, divisor, instr.Signed, e.multiplierFlavor)
		return e.stepOrRetire(ctx)

	case KindPrioritySerializing:
		return e.executePrioritySerializing(ctx)

	case KindSystemRegisterRead:
		e.bank.Set(int(instr.Rd), e.readSpecialRegister(instr.SYSm))
		return e.retire(ctx)

	case KindIT:
		// IT installs a fresh ITSTATE directly; unlike every other
		// instruction it must not also advance it -- the first predicated
		// instruction in the block is what consumes the first slot.
		e.status.setIT(instr.Cond, uint8(instr.Imm))
		e.bank.MarkClean()
		return NextInstruction, nil

	case KindHint:
		if instr.Hint == HintWFI {
			if !ctx.sleeping {
				ctx.sleeping = true
				return PreSleep, nil
			}
			return Sleep, nil
		}
		e.status.advanceIT()
		return e.retire(ctx)

	case KindBarrier:
		e.status.advanceIT()
		if instr.ISB {
			// an ISB flushes the pipeline: it behaves as a branch to the
			// instruction after itself
			e.bank.Set(PC, ctx.pack.FollowingInstructionAddress())
			e.bank.MarkClean()
			return ExecuteTimeBranch, nil
		}
		return e.retire(ctx)

	case KindCompareBranch:
		// CBZ/CBNZ: the condition is a register's value, so resolution
		// always waits for execute. never inside an IT block.
		value := e.bank.GetOperand(int(instr.Rn))
		taken := (value == 0) != instr.BranchIfNonzero
		if !taken {
			e.bank.MarkClean()
			return NextInstruction, nil
		}
		e.bank.Set(PC, ctx.pack.Address+4+instr.Imm)
		e.bank.MarkClean()
		return ExecuteTimeBranch, nil

	case KindBranchImmediate:
		e.bank.Set(PC, ctx.pack.Address+4+instr.Imm)
		e.status.advanceIT()
		if ctx.pack.BranchMispredicted {
			// decode predicted not-taken and left Fetch on the
			// fall-through path; the condition has since come true, so
			// the redirect happens here instead
			e.bank.MarkClean()
			return ExecuteTimeBranch, nil
		}
		return e.branchResult(ctx)

	case KindBranchWithLinkImmediate:
		e.bank.Set(LR, (ctx.pack.Address+uint32(ctx.pack.Length))|1)
		e.bank.Set(PC, ctx.pack.Address+4+instr.Imm)
		e.status.advanceIT()
		return e.branchResult(ctx)

	case KindBranchWithLinkAndExchangeRegister:
		target := e.bank.GetOperand(int(instr.Rm))
		e.bank.Set(LR, (ctx.pack.Address+uint32(ctx.pack.Length))|1)
		e.bank.Set(PC, target&^1)
		e.status.advanceIT()
		return e.branchResult(ctx)

	case KindBranchAndExchange:
		target := e.bank.GetOperand(int(instr.Rm))
		if isExceptionReturn(target) {
			e.status.advanceIT()
			return ExceptionReturn, nil
		}
		e.bank.Set(PC, target&^1)
		e.status.advanceIT()
		return e.branchResult(ctx)

	case KindMoveToPC:
		target := e.bank.GetOperand(int(instr.Rm))
		e.bank.Set(PC, target&^1)
		e.status.advanceIT()
		return e.branchResult(ctx)

	case KindReserved:
		return Continue, errors.Errorf(errors.ReservedEncoding, instr.Opcode, ctx.pack.Address)

	case KindUnsupported:
		return Continue, errors.Errorf(errors.UnsupportedEncoding, instr.Opcode, ctx.pack.Address, "unimplemented encoding family")

	case KindUnpredictable:
		return Continue, errors.Errorf(errors.UnpredictableEncoding, instr.Opcode, ctx.pack.Address, "operand combination is architecturally unpredictable")
	}

	return Continue, errors.Errorf(errors.ExecuteError, "no execute handler for instruction kind")
}

// stepOrRetire either retires the instruction immediately (no extra cycles
// owed) or parks it for the countdown at the top of step to drain.
func (e *Execute) stepOrRetire(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	if ctx.cyclesRemaining <= 0 {
		return e.retire(ctx)
	}
	return Continue, nil
}

func (e *Execute) retire(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	instr := ctx.pack.Instruction

	switch instr.Kind {
	case KindMultiply:
		e.executeMultiply(instr)
	case KindDivide:
		e.executeDivide(instr)
	}

	e.status.advanceIT()
	e.applyFoldedIT(ctx.pack)
	e.bank.MarkClean()

	return NextInstruction, nil
}

// applyFoldedIT installs the ITSTATE of pack's folded IT instruction, if it
// has one, the same cycle the main instruction retires -- the "zero cost"
// pipelining the GLOSSARY's "Folded IT" entry describes. A folded IT never
// itself costs a cycle or advances ITSTATE; it simply replaces it.
func (e *Execute) applyFoldedIT(pack PipelineStepPack) {
	if pack.FoldedInstruction == nil {
		return
	}
	folded := pack.FoldedInstruction
	e.status.setIT(folded.Cond, uint8(folded.Imm))
}

func (e *Execute) branchResult(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	e.bank.MarkClean()
	switch {
	case ctx.pack.BranchKind.IsDecodeTime():
		return DecodeTimeBranch, nil
	default:
		return ExecuteTimeBranch, nil
	}
}

// isExceptionReturn reports whether value is one of the EXC_RETURN encodings
// defined by the architecture (the top byte is 0xff).
func isExceptionReturn(value uint32) bool {
	return value&0xff000000 == 0xff000000
}

// executeALU performs the data-processing operation described by instr and
// commits the result (and flags, when the instruction sets them) to the
// bank.
func (e *Execute) executeALU(instr Instruction, addr uint32) {
	carryIn := e.status.carry

	// resolve the final operand and the shifter's carry-out
	var op2 uint32
	shifterCarry := carryIn
	switch {
	case instr.ImmOperand:
		op2 = instr.Imm
		if instr.CarryValid {
			shifterCarry = instr.Carry
		}
	case instr.ShiftRegister:
		// the amount lives in the bottom byte of Rm; the value being
		// shifted is Rn. op2 is not used by the shift operations below.
		op2 = e.bank.GetOperand(int(instr.Rm))
	default:
		op2, shifterCarry = shiftC(e.bank.GetOperand(int(instr.Rm)),
			instr.ShiftType, uint32(instr.ShiftAmount), carryIn)
	}

	var rn uint32
	if !instr.NoRn {
		rn = e.bank.GetOperand(int(instr.Rn))
	}

	var cin uint32
	if carryIn {
		cin = 1
	}

	var result uint32
	var carry, overflow bool
	adder := false

	switch instr.Op {
	case OpADD, OpCMN:
		result, carry, overflow = bitstring.AddWithCarry(rn, op2, 0)
		adder = true
	case OpADC:
		result, carry, overflow = bitstring.AddWithCarry(rn, op2, cin)
		adder = true
	case OpSUB, OpCMP:
		result, carry, overflow = bitstring.AddWithCarry(rn, ^op2, 1)
		adder = true
	case OpSBC:
		result, carry, overflow = bitstring.AddWithCarry(rn, ^op2, cin)
		adder = true
	case OpRSB:
		result, carry, overflow = bitstring.AddWithCarry(^rn, op2, 1)
		adder = true

	case OpAND, OpTST:
		result = rn & op2
	case OpBIC:
		result = rn &^ op2
	case OpORR:
		result = rn | op2
	case OpORN:
		result = rn | ^op2
	case OpEOR, OpTEQ:
		result = rn ^ op2
	case OpMOV:
		result = op2
	case OpMVN:
		result = ^op2

	case OpLSL, OpLSR, OpASR, OpROR:
		amount := uint32(instr.ShiftAmount)
		if instr.ShiftRegister {
			amount = op2 & 0xff
		}
		var typ SRType
		switch instr.Op {
		case OpLSL:
			typ = SRTypeLSL
		case OpLSR:
			typ = SRTypeLSR
		case OpASR:
			typ = SRTypeASR
		default:
			typ = SRTypeROR
		}
		result, shifterCarry = shiftC(rn, typ, amount, carryIn)
	case OpRRX:
		result, shifterCarry = bitstring.RRX_C(rn, carryIn)

	case OpSXTB:
		result = signExtend(rotateRight(op2, uint32(instr.ShiftAmount))&0xff, 8)
	case OpSXTH:
		result = signExtend(rotateRight(op2, uint32(instr.ShiftAmount))&0xffff, 16)
	case OpUXTB:
		result = rotateRight(op2, uint32(instr.ShiftAmount)) & 0xff
	case OpUXTH:
		result = rotateRight(op2, uint32(instr.ShiftAmount)) & 0xffff

	case OpREV:
		result = bits.ReverseBytes32(op2)
	case OpREV16:
		result = op2>>8&0x00ff00ff | op2<<8&0xff00ff00
	case OpREVSH:
		result = signExtend(uint32(bits.ReverseBytes16(uint16(op2))), 16)
	case OpRBIT:
		result = bits.Reverse32(op2)
	case OpCLZ:
		result = uint32(bits.LeadingZeros32(op2))

	case OpMOVT:
		result = e.bank.Get(int(instr.Rd))&0xffff | instr.Imm<<16

	case OpBFI:
		lsb := instr.Imm & 0x1f
		msb := (instr.Imm >> 8) & 0x1f
		mask := (uint32(0xffffffff) >> (31 - msb)) &^ (1<<lsb - 1)
		result = e.bank.Get(int(instr.Rd))&^mask | rn<<lsb&mask
	case OpBFC:
		lsb := instr.Imm & 0x1f
		msb := (instr.Imm >> 8) & 0x1f
		mask := (uint32(0xffffffff) >> (31 - msb)) &^ (1<<lsb - 1)
		result = e.bank.Get(int(instr.Rd)) &^ mask
	case OpUBFX:
		lsb := instr.Imm & 0x1f
		widthm1 := (instr.Imm >> 8) & 0x1f
		result = rn >> lsb & (uint32(0xffffffff) >> (31 - widthm1))
	case OpSBFX:
		lsb := instr.Imm & 0x1f
		widthm1 := (instr.Imm >> 8) & 0x1f
		result = signExtend(rn>>lsb&(uint32(0xffffffff)>>(31-widthm1)), uint(widthm1+1))

	case OpADR:
		base := AlignTo32bits(addr + 4)
		if instr.Add {
			result = base + instr.Imm
		} else {
			result = base - instr.Imm
		}
	}

	if !instr.Compare {
		e.bank.Set(int(instr.Rd), result)
	}

	if instr.SetFlags {
		e.status.setNZ(result)
		if adder {
			e.status.setCV(carry, overflow)
		} else {
			// logical and shift operations take carry from the shifter
			// and leave overflow alone
			e.status.carry = shifterCarry
		}
	}
}

func rotateRight(v uint32, amount uint32) uint32 {
	amount &= 31
	if amount == 0 {
		return v
	}
	return v>>amount | v<<(32-amount)
}

func (e *Execute) executeMultiply(instr Instruction) {
	rn := e.bank.GetOperand(int(instr.Rn))
	rm := e.bank.GetOperand(int(instr.Rm))
	result := rn * rm
	if instr.Accumulate {
		acc := e.bank.Get(int(instr.Ra))
		if instr.AccumulateSubtract {
			result = acc - result
		} else {
			result = acc + result
		}
	}
	e.bank.Set(int(instr.Rd), result)
	if instr.SetFlags {
		// MULS only touches N and Z
		e.status.setNZ(result)
	}
}

// stepLongMultiply advances a UMULL/SMULL/UMLAL/SMLAL by one cycle. The
// product (and, for the accumulating forms, the fold-in of the existing
// RdHi:RdLo pair) is computed once the instruction begins; the two table-
// driven cycles (the write-cycle tables in multiply_table.go) then gate when
// RdLo and RdHi are each committed to the register bank, reproducing the
// single write-port constraint instead of writing both halves in the same
// cycle.
func (e *Execute) stepLongMultiply(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	instr := ctx.pack.Instruction
	state := &ctx.multiplyLong

	if !state.begun {
		rn := e.bank.GetOperand(int(instr.Rn))
		rm := e.bank.GetOperand(int(instr.Rm))
		accHi := e.bank.Get(int(instr.RdHi))
		accLo := e.bank.Get(int(instr.RdLo))
		product := longMultiplyProduct(instr, rn, rm, accHi, accLo)

		state.begun = true
		state.hi = uint32(product >> 32)
		state.lo = uint32(product)
		state.writeHiCycle, state.writeLoCycle = longMultiplyWriteCycles(instr, rn, rm, e.multiplierFlavor)
	} else {
		state.cycle++
	}

	if !state.loWritten && state.cycle == state.writeLoCycle {
		e.bank.Set(int(instr.RdLo), state.lo)
		state.loWritten = true
	}

	if state.cycle < state.writeHiCycle {
		return Continue, nil
	}

	if !state.loWritten {
		e.bank.Set(int(instr.RdLo), state.lo)
	}
	e.bank.Set(int(instr.RdHi), state.hi)

	e.status.advanceIT()
	e.applyFoldedIT(ctx.pack)
	e.bank.MarkClean()
	return NextInstruction, nil
}

func (e *Execute) executeDivide(instr Instruction) {
	rn := e.bank.GetOperand(int(instr.Rn))
	rm := e.bank.GetOperand(int(instr.Rm))

	if rm == 0 {
		// divide by zero produces zero with DIV_0_TRP clear; raising the
		// UsageFault belongs to the exception collaborator
		e.bank.Set(int(instr.Rd), 0)
		return
	}

	if instr.Signed {
		if rn == 0x80000000 && rm == 0xffffffff {
			// the one overflowing quotient: result truncates to the
			// dividend
			e.bank.Set(int(instr.Rd), 0x80000000)
			return
		}
		e.bank.Set(int(instr.Rd), uint32(int32(rn)/int32(rm)))
		return
	}

	e.bank.Set(int(instr.Rd), rn/rm)
}

// executePrioritySerializing performs a CPS or an MSR to a special
// register. The write costs one extra cycle if and only if it strictly
// raises the execution priority (the core must serialise so the new
// masking is in force before the next instruction); lowering or leaving
// priority unchanged retires in the base cycle.
func (e *Execute) executePrioritySerializing(ctx *InstructionExecutionContext) (ExecutionStepResult, error) {
	instr := ctx.pack.Instruction

	raised := false

	if instr.SYSm == 0 {
		// CPS: unprivileged execution leaves the masks untouched
		if !e.bank.Privileged() {
			return e.retire(ctx)
		}
		if instr.AffectPRIMASK {
			v := uint8(0)
			if instr.CPSDisable {
				v = 1
			}
			raised = raised || (v == 1 && e.bank.PRIMASK() == 0)
			e.bank.SetPRIMASK(v)
		}
		if instr.AffectFAULTMASK {
			v := uint8(0)
			if instr.CPSDisable {
				v = 1
			}
			raised = raised || (v == 1 && e.bank.FAULTMASK() == 0)
			e.bank.SetFAULTMASK(v)
		}
	} else {
		value := e.bank.GetOperand(int(instr.Rn))
		if instr.SYSm >= 8 && !e.bank.Privileged() {
			// MSR to the stack pointers and masking registers is
			// silently ignored when unprivileged; only the APSR views
			// are writable from unprivileged code
			return e.retire(ctx)
		}
		switch instr.SYSm {
		case 0, 1, 2, 3:
			// APSR write: N/Z/C/V from the top nibble
			e.status.negative = value&0x80000000 != 0
			e.status.zero = value&0x40000000 != 0
			e.status.carry = value&0x20000000 != 0
			e.status.overflow = value&0x10000000 != 0
		case 8: // MSP
			e.bank.SetMSP(value)
		case 9: // PSP
			e.bank.SetPSP(value)
		case 16: // PRIMASK
			v := uint8(value & 0x1)
			raised = v == 1 && e.bank.PRIMASK() == 0
			e.bank.SetPRIMASK(v)
		case 17: // BASEPRI
			v := uint8(value)
			old := e.bank.BASEPRI()
			raised = v != 0 && (old == 0 || v < old)
			e.bank.SetBASEPRI(v)
		case 18: // BASEPRI_MAX: only ever raises
			v := uint8(value)
			old := e.bank.BASEPRI()
			if v != 0 && (old == 0 || v < old) {
				raised = true
				e.bank.SetBASEPRI(v)
			}
		case 19: // FAULTMASK
			v := uint8(value & 0x1)
			raised = v == 1 && e.bank.FAULTMASK() == 0
			e.bank.SetFAULTMASK(v)
		case 20: // CONTROL: never a priority change
			e.bank.SetCONTROL(uint8(value & 0x3))
		}
	}

	if raised {
		ctx.cyclesRemaining = 1
		return Continue, nil
	}
	return e.retire(ctx)
}

// readSpecialRegister implements MRS's view of the system register space.
// Unprivileged reads of the banked and masking registers (and of the
// exception number) return zero rather than faulting.
func (e *Execute) readSpecialRegister(sysm uint8) uint32 {
	privileged := e.bank.Privileged()

	switch sysm {
	case 0, 1, 2, 3:
		// APSR/IAPSR/EAPSR/XPSR views: flags in the top nibble, the
		// exception number folded in for the I variants
		var v uint32
		if e.status.negative {
			v |= 0x80000000
		}
		if e.status.zero {
			v |= 0x40000000
		}
		if e.status.carry {
			v |= 0x20000000
		}
		if e.status.overflow {
			v |= 0x10000000
		}
		if (sysm == 1 || sysm == 3) && privileged {
			v |= uint32(e.status.exceptionNumber)
		}
		return v
	case 5: // IPSR
		if !privileged {
			return 0
		}
		return uint32(e.status.exceptionNumber)
	case 8: // MSP
		if !privileged {
			return 0
		}
		return e.bank.MSP()
	case 9: // PSP
		if !privileged {
			return 0
		}
		return e.bank.PSP()
	case 16:
		if !privileged {
			return 0
		}
		return uint32(e.bank.PRIMASK())
	case 17, 18:
		if !privileged {
			return 0
		}
		return uint32(e.bank.BASEPRI())
	case 19:
		if !privileged {
			return 0
		}
		return uint32(e.bank.FAULTMASK())
	case 20:
		return uint32(e.bank.CONTROL())
	}
	return 0
}
