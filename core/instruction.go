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

// Kind identifies the instruction class Decode resolved an opcode to. It is
// deliberately coarser than a full opcode table: Brchstat classification and
// Execute's dispatch only need to distinguish the shapes below, not every
// individual mnemonic, so Operation (along with the Instruction's operand
// fields) carries the rest of what Execute needs to know.
type Kind int

const (
	KindUnknown Kind = iota

	// data-processing, shift, and other ALU-shaped instructions that write
	// a general purpose register (which may be PC)
	KindALU

	// single register load/store, LDM/STM/PUSH/POP, LDRD/STRD
	KindMemory

	// table-branch (TBB/TBH), which reads memory and behaves like a branch
	KindTableBranch

	// B<c> <label> (encoding T1/T2/T3/T4), conditional or unconditional
	KindBranchImmediate

	// CBZ/CBNZ: a conditional branch whose condition is a register value,
	// not an APSR flag, so it can never resolve at decode time
	KindCompareBranch

	// BL <label>
	KindBranchWithLinkImmediate

	// BLX Rm
	KindBranchWithLinkAndExchangeRegister

	// BX Rm
	KindBranchAndExchange

	// MOV PC, Rm and any other ALU form whose Rd is PC
	KindMoveToPC

	// UMULL/SMULL/UMLAL/SMLAL
	KindLongMultiply

	// MUL/MLA/MLS
	KindMultiply

	// UDIV/SDIV
	KindDivide

	// IT
	KindIT

	// CPS, MSR (writing PRIMASK/FAULTMASK/BASEPRI/CONTROL)
	KindPrioritySerializing

	// MRS (reading a special register into Rd)
	KindSystemRegisterRead

	// DSB/DMB/ISB. ISB is the one with pipeline consequences: it flushes,
	// which the Brchstat classifier expresses as a branch to the following
	// instruction.
	KindBarrier

	// NOP and the hint-space encodings (WFI/WFE/SEV/YIELD)
	KindHint

	// an encoding this core recognises as reserved by the architecture
	KindReserved

	// an encoding that is architecturally unpredictable for the operand
	// combination decoded (eg. Rd==Rm==PC on certain forms)
	KindUnpredictable

	// a recognised but unimplemented encoding (DSP/FP extensions, ISA
	// outside Cortex-M3 class)
	KindUnsupported
)

// Operation refines KindALU (and KindMoveToPC) down to the individual
// data-processing behaviour Execute must perform. The decoder resolves every
// encoding to one of these; Execute never re-inspects opcode bits.
type Operation int

const (
	OpNone Operation = iota

	// adder-based, carry/overflow from AddWithCarry
	OpADD
	OpADC
	OpSUB
	OpSBC
	OpRSB

	// logical, carry from the shifter, overflow preserved
	OpAND
	OpORR
	OpEOR
	OpBIC
	OpORN
	OpMOV
	OpMVN

	// shifts as an operation in their own right (the 16 bit encodings where
	// the shift is the instruction, and the T32 register-amount forms)
	OpLSL
	OpLSR
	OpASR
	OpROR
	OpRRX

	// comparisons: flags always set, Rd never written
	OpTST
	OpTEQ
	OpCMP
	OpCMN

	// extends and byte-reversals
	OpSXTB
	OpSXTH
	OpUXTB
	OpUXTH
	OpREV
	OpREV16
	OpREVSH

	// miscellaneous T32 data-processing
	OpCLZ
	OpRBIT
	OpMOVT

	// bitfield group. the operand layout is packed into Imm: bits [4:0]
	// hold lsb, bits [12:8] hold the msb (BFI/BFC) or widthminus1
	// (UBFX/SBFX).
	OpBFI
	OpBFC
	OpUBFX
	OpSBFX

	// ADR: Rd = Align(PC,4) +/- imm
	OpADR
)

// SRType enumerates the shift/rotate applied to a data-processing
// instruction's final operand, matching the architecture's SRType
// pseudocode enumeration.
type SRType int

const (
	SRTypeLSL SRType = iota
	SRTypeLSR
	SRTypeASR
	SRTypeROR
	SRTypeRRX
)

// Hint identifies which of the allocated hint encodings a KindHint
// instruction is. Everything except WFI retires as a NOP in this core.
type Hint int

const (
	HintNOP Hint = iota
	HintYIELD
	HintWFE
	HintWFI
	HintSEV
)

// Instruction is the decoded, but not yet executed, representation of one
// instruction. Decode produces it; Execute and Brchstat both consume it.
type Instruction struct {
	Kind Kind
	Op   Operation

	// the raw encoding, kept for disassembly and fault reporting
	Opcode uint32

	// byte length of the encoding: 2 for a 16 bit Thumb instruction, 4 for
	// a 32 bit Thumb-2 instruction
	Length uint8

	// operand fields. not every field is meaningful for every Kind; Execute
	// knows which fields its Kind populates.
	Rd, Rn, Rm, Ra uint8
	RdHi, RdLo     uint8
	Imm            uint32
	Cond           uint8
	SetFlags       bool

	// the final-operand shift for KindALU. ShiftRegister means the amount
	// comes from the bottom byte of Rm's value (the T1 LSL/LSR/ASR/ROR
	// register forms and their T32 siblings) rather than ShiftAmount.
	ShiftType     SRType
	ShiftAmount   uint8
	ShiftRegister bool

	// ImmOperand selects Imm over Rm as the final operand. necessary as an
	// explicit flag because both a zero immediate and R0 are legitimate
	// operands.
	ImmOperand bool

	// carry-out of the immediate's decode-time expansion
	// (ThumbExpandImm_C, or the shifter for the 16 bit shift-by-immediate
	// forms). when CarryValid, a flag-setting logical operation takes its
	// carry from here instead of recomputing it at execute time.
	Carry      bool
	CarryValid bool

	// meaningful only for KindALU: true for TST/TEQ/CMP/CMN -- flags are
	// set (always, even inside an IT block) but Rd is not written.
	Compare bool

	// meaningful only for KindALU with OpMOV/OpMVN and the extend/reverse
	// group: the operation has no first operand, only the shifter operand.
	NoRn bool

	// true for a Multiply whose SetFlags bit is only meaningful outside an
	// IT block (MULS, T1 encoding) -- this is the "muls_bcond_stall" case
	// the decode pipeline must stall one cycle for.
	SetFlagsDependsOnIT bool

	// true if this is BL (T32 encoding) or BLX Rm -- both write LR, which
	// Decode tracks for the bx_write_pc lr-is-dirty rule.
	WritesLR bool

	// --- KindMemory description (spec's MemorierDescription) ---

	// true for a load, false for a store
	IsLoad bool

	// transfer width in bytes: 1, 2 or 4. register-list and dual forms
	// always transfer words.
	Width uint8

	// sign-extend the loaded value to 32 bits (LDRSB/LDRSH)
	SignExtend bool

	// true for LDM/STM/PUSH/POP, whose register set is Imm interpreted as
	// a RegisterBitmap rather than a single Rd. false means a single
	// register transfer through Rd.
	Multiple bool

	// LDRD/STRD: two destination/source registers, Rd then Rd2, at
	// consecutive word addresses
	Dual bool
	Rd2  uint8

	// whether the base register Rn is updated with the transfer's final
	// address once the access completes
	Wback bool

	// index/add describe the addressing mode: index means the offset is
	// applied before the access (pre-indexed or plain offset addressing),
	// add means the offset is added rather than subtracted.
	Index bool
	Add   bool

	// the offset is Rm (optionally shifted left by ShiftAmount) rather
	// than Imm
	RegisterOffset bool

	// PC-relative literal form: the base is Align(PC,4), never Rn
	Literal bool

	// meaningful only for a Multiple instruction: true for the
	// full-descending (PUSH-style) addressing mode, whose effective
	// address is Rn minus the transfer size before the first register is
	// moved, as opposed to the increment-after (POP/LDM/STM-style) mode.
	Decrement bool

	// LDREX/STREX. this core's bus has no other masters, so an exclusive
	// access always succeeds, but the flag is kept so STREX knows to write
	// its status register.
	Exclusive bool

	// LDRT/STRT and friends: the access is made with unprivileged
	// permissions regardless of current mode
	Unprivileged bool

	// --- KindDivide / KindLongMultiply / KindMultiply ---

	// true for SDIV/SMULL/SMLAL, false for UDIV/UMULL/UMLAL -- selects
	// which of udiv_cycles/sdiv_cycles, or which signed/unsigned
	// write-cycle table, governs the instruction's multi-cycle latency.
	Signed bool

	// true for MLA/MLS/UMLAL/SMLAL, false for MUL/UMULL/SMULL. Kept as an
	// explicit flag rather than inferred from an operand register being
	// nonzero, since R0 is a legitimate accumulate/destination register.
	Accumulate bool

	// true for MLS: the product is subtracted from Ra instead of added
	AccumulateSubtract bool

	// --- KindCompareBranch ---

	// CBNZ rather than CBZ
	BranchIfNonzero bool

	// --- KindBarrier ---

	// the barrier is an ISB, whose retirement flushes the pipeline
	ISB bool

	// --- KindHint ---

	Hint Hint

	// --- KindPrioritySerializing / KindSystemRegisterRead ---

	// the SYSm special-register number of an MSR/MRS (A7.7.82): 16 is
	// PRIMASK, 17 BASEPRI, 18 BASEPRI_MAX, 19 FAULTMASK, 20 CONTROL.
	// 0..3 address the APSR views.
	SYSm uint8

	// CPS fields: interrupt disable (CPSID) vs enable (CPSIE), and which
	// mask registers the instruction names
	CPSDisable      bool
	AffectPRIMASK   bool
	AffectFAULTMASK bool
}

// RdIsPC reports whether the instruction's destination register is PC,
// which several Kinds (ALU, Memory, LongMultiply results) use to detect an
// implicit branch.
func (i Instruction) RdIsPC() bool {
	switch i.Kind {
	case KindALU:
		return !i.Compare && int(i.Rd) == PC
	case KindMemory:
		if i.Multiple {
			return RegisterBitmap(i.Imm).Has(PC)
		}
		if i.Dual {
			return int(i.Rd) == PC || int(i.Rd2) == PC
		}
		return i.IsLoad && int(i.Rd) == PC
	}
	return false
}

// SourceRegisters returns the set of registers whose current values the
// instruction reads before it can begin executing: the operands the AGU (or
// the ALU's first cycle) needs settled. Decode intersects this with the
// bank's dirty set to decide whether to stall.
func (i Instruction) SourceRegisters() RegisterBitmap {
	var b RegisterBitmap

	switch i.Kind {
	case KindALU:
		if !i.NoRn {
			b = b.Set(int(i.Rn))
		}
		if !i.ImmOperand {
			b = b.Set(int(i.Rm))
		}
		if i.Op == OpBFI || i.Op == OpMOVT {
			// read-modify-write of the destination
			b = b.Set(int(i.Rd))
		}

	case KindMemory:
		if i.Literal {
			break
		}
		b = b.Set(int(i.Rn))
		if i.RegisterOffset {
			b = b.Set(int(i.Rm))
		}
		if !i.IsLoad {
			if i.Multiple {
				b = b.Union(RegisterBitmap(i.Imm))
			} else {
				b = b.Set(int(i.Rd))
				if i.Dual {
					b = b.Set(int(i.Rd2))
				}
			}
		}

	case KindTableBranch:
		b = b.Set(int(i.Rn)).Set(int(i.Rm))

	case KindBranchAndExchange, KindBranchWithLinkAndExchangeRegister,
		KindMoveToPC:
		b = b.Set(int(i.Rm))

	case KindCompareBranch:
		b = b.Set(int(i.Rn))

	case KindMultiply:
		b = b.Set(int(i.Rn)).Set(int(i.Rm))
		if i.Accumulate {
			b = b.Set(int(i.Ra))
		}

	case KindLongMultiply:
		b = b.Set(int(i.Rn)).Set(int(i.Rm))
		if i.Accumulate {
			b = b.Set(int(i.RdLo)).Set(int(i.RdHi))
		}

	case KindDivide:
		b = b.Set(int(i.Rn)).Set(int(i.Rm))

	case KindPrioritySerializing:
		// MSR reads its source register; CPS (SYSm zero) reads nothing
		if i.SYSm != 0 {
			b = b.Set(int(i.Rn))
		}
	}

	return b
}
