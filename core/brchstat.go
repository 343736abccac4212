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

// Brchstat ("branch status") classifies how and when an instruction's
// effect on the program counter will be known, which is what drives whether
// Fetch can keep speculatively reading down the current stream or must wait
// for Execute to resolve the branch. The bit layout matches the
// classification the reference model uses: bit 3 marks a resolved-taken
// conditional branch and bit 2 an unconditional one. Without bit 2, bits 1:0
// distinguish decode-time-backwards / decode-time-forwards / execute-time
// conditional branches; with it, bit 0 marks execute-time.
type Brchstat uint8

const (
	// the instruction does not affect the program counter at all
	NoBranch Brchstat = 0b0000

	// a conditional branch whose target is behind the current PC and whose
	// outcome is known at decode time (its condition only depends on
	// ITSTATE/APSR bits that are already settled)
	DecodeTimeConditionalBackwards Brchstat = 0b0001

	// a conditional branch whose target is ahead of the current PC and
	// whose outcome is known at decode time
	DecodeTimeConditional Brchstat = 0b0010

	// a conditional branch whose outcome cannot be known until the
	// instruction executes (its condition depends on a register value, eg.
	// CBZ/CBNZ-style forms, or its target depends on register state)
	ExecuteTimeConditional Brchstat = 0b0011

	// an unconditional branch whose target is known at decode time
	DecodeTimeUnconditional Brchstat = 0b0100

	// an unconditional branch whose target is known only once the
	// instruction executes (BX/BLX through a register, MOV PC,Rm)
	ExecuteTimeUnconditional Brchstat = 0b0101

	// a conditional branch that decode predicted taken and that execute
	// has now confirmed was taken
	ConditionalTaken Brchstat = 0b1000
)

// IsSpeculative reports whether Fetch had to guess this branch's outcome
// before Execute confirmed it.
func (b Brchstat) IsSpeculative() bool {
	return b == DecodeTimeConditionalBackwards || b == DecodeTimeConditional
}

// IsDecodeTime reports whether the branch's target and outcome are both
// known as soon as Decode sees the instruction.
func (b Brchstat) IsDecodeTime() bool {
	switch b {
	case DecodeTimeConditionalBackwards, DecodeTimeConditional, DecodeTimeUnconditional:
		return true
	}
	return false
}

// IsExecuteTime reports whether the branch cannot be resolved until Execute
// runs the instruction.
func (b Brchstat) IsExecuteTime() bool {
	return b == ExecuteTimeConditional || b == ExecuteTimeUnconditional
}

// IsConditional reports whether the branch's outcome depends on a
// condition, as opposed to being taken unconditionally.
func (b Brchstat) IsConditional() bool {
	switch b {
	case DecodeTimeConditionalBackwards, DecodeTimeConditional, ExecuteTimeConditional, ConditionalTaken:
		return true
	}
	return false
}

// ChangesPC reports whether this classification represents any kind of
// branch at all.
func (b Brchstat) ChangesPC() bool {
	return b != NoBranch
}

// EvaluateCondition evaluates instr's condition field against the supplied
// xPSR, for the Brchstat variants whose condition is knowable without
// executing the instruction. A CBZ/CBNZ's condition is a register value,
// not a flag; its outcome is only knowable by executing it, so it always
// reports as passing here.
func (b Brchstat) EvaluateCondition(instr Instruction, status xPSR) bool {
	if !b.IsConditional() || instr.Kind == KindCompareBranch {
		return true
	}
	if instr.Kind != KindBranchImmediate && !status.InITBlock() {
		return true
	}
	if instr.Kind == KindBranchImmediate {
		return status.condition(instr.Cond)
	}
	return status.condition(status.currentITCondition())
}

// speculativeWithCondition builds the DecodeTimeConditional(Backwards)
// variant appropriate for a conditional branch whose target sign (as
// decoded from the immediate's sign bit) is known.
func speculativeWithCondition(isBackwards bool) Brchstat {
	if isBackwards {
		return DecodeTimeConditionalBackwards
	}
	return DecodeTimeConditional
}

// FromInstruction classifies instr the way the reference model's
// Brchstat::from_instruction does. lrIsDirty reports whether LR may still be
// written by an instruction that has not yet retired (Decode passes whether
// the previously decoded instruction writes LR); inITBlock reports whether instr sits
// inside an IT block and is therefore conditional on ITSTATE rather than on
// its own condition field.
func FromInstruction(instr Instruction, lrIsDirty bool, inITBlock bool) Brchstat {
	conditional := inITBlock || isExplicitlyConditional(instr)

	if !instructionWritesPC(instr) {
		return NoBranch
	}

	// whether the branch's target/outcome can only be known once Execute
	// actually runs the instruction
	var executeTime bool

	switch instr.Kind {
	case KindBranchImmediate:
		// B<c> <label>: target is an immediate offset from PC, always
		// resolvable at decode time regardless of condition.
		executeTime = false

	case KindCompareBranch:
		// CBZ/CBNZ: the condition is a register's value, which only the
		// execute stage can observe.
		return ExecuteTimeConditional

	case KindBarrier:
		// ISB flushes the pipeline, which behaves as a branch to the
		// following instruction, resolved at execute time. DSB/DMB never
		// reach here (instructionWritesPC filters them).
		if conditional {
			return ExecuteTimeConditional
		}
		return ExecuteTimeUnconditional

	case KindBranchWithLinkAndExchangeRegister, KindBranchAndExchange:
		// BLX Rm / BX Rm: a return through LR is resolved at decode time
		// unless LR may still be written by an instruction in flight (eg.
		// immediately following a BL), the same lr-dirty carve-out the
		// reference model uses for bx_write_pc. Any other register is only
		// known once Execute reads it.
		if int(instr.Rm) == LR {
			executeTime = lrIsDirty
		} else {
			executeTime = true
		}

	case KindMoveToPC:
		// MOV PC, Rm (or any ALU form whose Rd is PC) with Rm==LR behaves
		// like a function return and is subject to the same LR-dirty rule;
		// any other source register requires waiting for execute.
		if int(instr.Rm) == LR {
			executeTime = lrIsDirty
		} else {
			executeTime = true
		}

	case KindBranchWithLinkImmediate:
		// BL <label>: despite writing LR (a register write, which might
		// suggest "wait and see"), the branch target itself is a plain PC-
		// relative immediate and is always resolvable at decode time. This
		// is a deliberate departure from a literal reading of the manual,
		// which real hardware exploits to avoid stalling on every call.
		executeTime = false

	default:
		// every other PC-writing form (LDR/POP/LDM into PC, long multiply
		// whose result lands in PC, table branches) needs the actual
		// computed/loaded value before the target is known.
		executeTime = true
	}

	if executeTime {
		if conditional {
			return ExecuteTimeConditional
		}
		return ExecuteTimeUnconditional
	}

	if conditional {
		return speculativeWithCondition(isBackwardsBranch(instr))
	}
	return DecodeTimeUnconditional
}

// instructionWritesPC reports whether instr's encoding writes PC (and is
// therefore some form of branch), covering both instructions explicitly
// classified as branches and ALU/Memory instructions whose destination
// register happens to be PC.
func instructionWritesPC(instr Instruction) bool {
	switch instr.Kind {
	case KindBranchImmediate, KindBranchWithLinkImmediate,
		KindBranchWithLinkAndExchangeRegister, KindBranchAndExchange,
		KindMoveToPC, KindTableBranch, KindCompareBranch:
		return true
	case KindBarrier:
		// only an ISB behaves as a branch; DSB/DMB retire in place
		return instr.ISB
	}
	return instr.RdIsPC()
}

// isExplicitlyConditional reports whether instr carries its own condition
// field (as opposed to being made conditional purely by virtue of sitting
// inside an IT block). AL (0b1110) and the unconditional T32 encodings both
// count as not-conditional here.
func isExplicitlyConditional(instr Instruction) bool {
	return instr.Kind == KindBranchImmediate && instr.Cond != 0b1110 && instr.Cond != 0b1111
}

// isBackwardsBranch reports whether instr's immediate offset is negative,
// ie. the encoded sign bit of the branch displacement is set. A
// decode-time-resolvable conditional branch that targets a lower address is
// distinguished from a forward one because the timing of notifying Fetch
// differs: a backwards branch can be acted on before the rest of the
// current fetch group is even read.
func isBackwardsBranch(instr Instruction) bool {
	switch instr.Kind {
	case KindBranchImmediate, KindBranchWithLinkImmediate:
		return instr.Imm&0x80000000 != 0
	}
	return false
}
