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

// IsLongInstruction reports whether a halfword is the first half of a 32 bit
// Thumb-2 encoding: bits [15:11] are 0b11101, 0b11110 or 0b11111 (A5.1).
func IsLongInstruction(halfword uint32) bool {
	return halfword&0xe000 == 0xe000 && halfword&0x1800 != 0x0000
}

// LooksLikeIT reports whether a halfword has the bit pattern of an IT
// instruction with a non-zero mask. Decode uses this both to find a fold
// candidate and to detect the tainted-instruction condition, where stale
// fetch-queue bits happen to match the pattern.
func LooksLikeIT(halfword uint32) bool {
	return halfword&0xff00 == 0xbf00 && halfword&0x000f != 0
}

// DefaultDecoder decodes the ARMv7-M Thumb instruction set as implemented by
// a Cortex-M3 class core. first is the halfword at addr; second is called to
// fetch the trailing halfword when first indicates a 32 bit encoding. status
// supplies the ITSTATE bits the handful of ITSTATE-sensitive decode
// decisions need (whether the form sets flags, whether an IT is allowed
// here).
//
// Reserved encodings decode to KindReserved, architecturally unpredictable
// operand combinations to KindUnpredictable, and the coprocessor/DSP/FP
// spaces this core does not implement to KindUnsupported. None of these
// panic here; the policy decision belongs to Execute.
func DefaultDecoder(first uint32, second func() (uint32, error), addr uint32, status xPSR) (Instruction, error) {
	first &= 0xffff

	if IsLongInstruction(first) {
		return decode32bit(first, second, addr, status)
	}

	// flag-setting for the 16 bit data-processing encodings follows the
	// InITBlock rule: the same encoding sets flags outside an IT block and
	// leaves them alone inside one (A5.2.1, "S" column)
	setflags := !status.InITBlock()

	switch {
	case first&0xf800 == 0x0000 || first&0xf800 == 0x0800 || first&0xf800 == 0x1000:
		// LSL/LSR/ASR (immediate): MOV (shifted register) in all but name
		op := (first >> 11) & 0x3
		imm5 := (first >> 6) & 0x1f
		rm := uint8((first >> 3) & 0x7)
		rd := uint8(first & 0x7)
		if op == 0b00 && imm5 == 0 {
			// MOV (register) T2
			return Instruction{Kind: KindALU, Op: OpMOV, Opcode: first, Length: 2,
				Rd: rd, Rm: rm, NoRn: true, SetFlags: setflags}, nil
		}
		typ, amount := decodeImmShift(op, imm5)
		return Instruction{Kind: KindALU, Op: OpMOV, Opcode: first, Length: 2,
			Rd: rd, Rm: rm, NoRn: true, SetFlags: setflags,
			ShiftType: typ, ShiftAmount: amount}, nil

	case first&0xf800 == 0x1800:
		// ADD/SUB (three low registers): bit 10 selects the register or 3
		// bit immediate operand form, bit 9 selects ADD/SUB.
		rd := uint8(first & 0x7)
		rn := uint8((first >> 3) & 0x7)
		op := OpADD
		if first&0x0200 != 0 {
			op = OpSUB
		}
		instr := Instruction{Kind: KindALU, Op: op, Opcode: first, Length: 2,
			Rd: rd, Rn: rn, SetFlags: setflags}
		if first&0x0400 != 0 {
			instr.ImmOperand = true
			instr.Imm = (first >> 6) & 0x7
		} else {
			instr.Rm = uint8((first >> 6) & 0x7)
		}
		return instr, nil

	case first&0xe000 == 0x2000:
		// MOV/CMP/ADD/SUB immediate (8 bit, low register): bits [12:11]
		// select the operation (00 MOV, 01 CMP, 10 ADD, 11 SUB).
		rdn := uint8((first >> 8) & 0x7)
		imm8 := first & 0xff
		switch (first >> 11) & 0x3 {
		case 0b00:
			return Instruction{Kind: KindALU, Op: OpMOV, Opcode: first, Length: 2,
				Rd: rdn, Imm: imm8, ImmOperand: true, NoRn: true, SetFlags: setflags}, nil
		case 0b01:
			return Instruction{Kind: KindALU, Op: OpCMP, Opcode: first, Length: 2,
				Rn: rdn, Imm: imm8, ImmOperand: true, SetFlags: true, Compare: true}, nil
		case 0b10:
			return Instruction{Kind: KindALU, Op: OpADD, Opcode: first, Length: 2,
				Rd: rdn, Rn: rdn, Imm: imm8, ImmOperand: true, SetFlags: setflags}, nil
		default:
			return Instruction{Kind: KindALU, Op: OpSUB, Opcode: first, Length: 2,
				Rd: rdn, Rn: rdn, Imm: imm8, ImmOperand: true, SetFlags: setflags}, nil
		}

	case first&0xfc00 == 0x4000:
		return decodeDataProcessingRegister(first, setflags)

	case first&0xfc00 == 0x4400:
		// special data processing: ADD/CMP/MOV with high registers
		rdn := uint8((first>>7)&1)<<3 | uint8(first&0x7)
		rm := uint8((first >> 3) & 0xf)
		switch (first >> 8) & 0x3 {
		case 0b00:
			// ADD (register) T2, no flags. Rd of PC is an ALU-write-PC
			// branch, resolved as such by Execute.
			if int(rdn) == PC && int(rm) == PC {
				return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
			}
			return Instruction{Kind: KindALU, Op: OpADD, Opcode: first, Length: 2,
				Rd: rdn, Rn: rdn, Rm: rm}, nil
		case 0b01:
			// CMP (register) T2
			if int(rdn) == PC || int(rm) == PC || (rdn < 8 && rm < 8) {
				return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
			}
			return Instruction{Kind: KindALU, Op: OpCMP, Opcode: first, Length: 2,
				Rn: rdn, Rm: rm, SetFlags: true, Compare: true}, nil
		case 0b10:
			// MOV (register) T1, no flags
			if int(rdn) == PC {
				return Instruction{Kind: KindMoveToPC, Op: OpMOV, Opcode: first, Length: 2,
					Rd: rdn, Rm: rm}, nil
			}
			return Instruction{Kind: KindALU, Op: OpMOV, Opcode: first, Length: 2,
				Rd: rdn, Rm: rm, NoRn: true}, nil
		default:
			// BX / BLX (register)
			if first&0x7 != 0 {
				return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
			}
			if first&0x80 != 0 {
				return Instruction{Kind: KindBranchWithLinkAndExchangeRegister,
					Opcode: first, Length: 2, Rm: rm, WritesLR: true}, nil
			}
			return Instruction{Kind: KindBranchAndExchange, Opcode: first, Length: 2, Rm: rm}, nil
		}

	case first&0xf800 == 0x4800:
		// LDR (literal)
		rt := uint8((first >> 8) & 0x7)
		return Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rd: rt, Imm: (first & 0xff) << 2, IsLoad: true, Width: 4,
			Literal: true, Index: true, Add: true}, nil

	case first&0xf000 == 0x5000:
		// load/store (register offset)
		rm := uint8((first >> 6) & 0x7)
		rn := uint8((first >> 3) & 0x7)
		rt := uint8(first & 0x7)
		instr := Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rd: rt, Rn: rn, Rm: rm, RegisterOffset: true, Index: true, Add: true}
		switch (first >> 9) & 0x7 {
		case 0b000: // STR
			instr.Width = 4
		case 0b001: // STRH
			instr.Width = 2
		case 0b010: // STRB
			instr.Width = 1
		case 0b011: // LDRSB
			instr.IsLoad, instr.Width, instr.SignExtend = true, 1, true
		case 0b100: // LDR
			instr.IsLoad, instr.Width = true, 4
		case 0b101: // LDRH
			instr.IsLoad, instr.Width = true, 2
		case 0b110: // LDRB
			instr.IsLoad, instr.Width = true, 1
		default: // LDRSH
			instr.IsLoad, instr.Width, instr.SignExtend = true, 2, true
		}
		return instr, nil

	case first&0xe000 == 0x6000:
		// STR/LDR/STRB/LDRB (immediate offset). bit 12 selects byte width,
		// bit 11 selects load. the word form's imm5 scales by four.
		rn := uint8((first >> 3) & 0x7)
		rt := uint8(first & 0x7)
		imm5 := (first >> 6) & 0x1f
		instr := Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rd: rt, Rn: rn, Index: true, Add: true,
			IsLoad: first&0x0800 != 0}
		if first&0x1000 != 0 {
			instr.Width = 1
			instr.Imm = imm5
		} else {
			instr.Width = 4
			instr.Imm = imm5 << 2
		}
		return instr, nil

	case first&0xf000 == 0x8000:
		// STRH/LDRH (immediate offset), imm5 scaled by two
		rn := uint8((first >> 3) & 0x7)
		rt := uint8(first & 0x7)
		return Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rd: rt, Rn: rn, Width: 2, Imm: ((first >> 6) & 0x1f) << 1,
			Index: true, Add: true, IsLoad: first&0x0800 != 0}, nil

	case first&0xf000 == 0x9000:
		// STR/LDR (SP relative), imm8 scaled by four
		rt := uint8((first >> 8) & 0x7)
		return Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rd: rt, Rn: SP, Width: 4, Imm: (first & 0xff) << 2,
			Index: true, Add: true, IsLoad: first&0x0800 != 0}, nil

	case first&0xf800 == 0xa000:
		// ADR: Rd = Align(PC,4) + imm8<<2
		rd := uint8((first >> 8) & 0x7)
		return Instruction{Kind: KindALU, Op: OpADR, Opcode: first, Length: 2,
			Rd: rd, Imm: (first & 0xff) << 2, ImmOperand: true, NoRn: true, Add: true}, nil

	case first&0xf800 == 0xa800:
		// ADD Rd, SP, imm8<<2
		rd := uint8((first >> 8) & 0x7)
		return Instruction{Kind: KindALU, Op: OpADD, Opcode: first, Length: 2,
			Rd: rd, Rn: SP, Imm: (first & 0xff) << 2, ImmOperand: true}, nil

	default:
		return decodeMisc16bit(first, second, addr, status)
	}
}

// decodeDataProcessingRegister decodes the sixteen-entry 16 bit
// data-processing group (A5.2.2), opcode bits [9:6].
func decodeDataProcessingRegister(first uint32, setflags bool) (Instruction, error) {
	rdn := uint8(first & 0x7)
	rm := uint8((first >> 3) & 0x7)

	instr := Instruction{Kind: KindALU, Opcode: first, Length: 2,
		Rd: rdn, Rn: rdn, Rm: rm, SetFlags: setflags}

	switch (first >> 6) & 0xf {
	case 0b0000:
		instr.Op = OpAND
	case 0b0001:
		instr.Op = OpEOR
	case 0b0010:
		instr.Op, instr.ShiftRegister = OpLSL, true
	case 0b0011:
		instr.Op, instr.ShiftRegister = OpLSR, true
	case 0b0100:
		instr.Op, instr.ShiftRegister = OpASR, true
	case 0b0101:
		instr.Op = OpADC
	case 0b0110:
		instr.Op = OpSBC
	case 0b0111:
		instr.Op, instr.ShiftRegister = OpROR, true
	case 0b1000:
		instr.Op, instr.Compare, instr.SetFlags = OpTST, true, true
		instr.Rd = 0
	case 0b1001:
		// RSB (immediate) with a fixed immediate of zero: NEG
		instr.Op, instr.Rn = OpRSB, rm
		instr.Rm, instr.ImmOperand, instr.Imm = 0, true, 0
	case 0b1010:
		instr.Op, instr.Compare, instr.SetFlags = OpCMP, true, true
		instr.Rd = 0
	case 0b1011:
		instr.Op, instr.Compare, instr.SetFlags = OpCMN, true, true
		instr.Rd = 0
	case 0b1100:
		instr.Op = OpORR
	case 0b1101:
		// MUL: two-register multiply, flags only outside an IT block
		return Instruction{Kind: KindMultiply, Opcode: first, Length: 2,
			Rd: rdn, Rn: rdn, Rm: rm, SetFlags: setflags,
			SetFlagsDependsOnIT: true}, nil
	case 0b1110:
		instr.Op = OpBIC
	default: // 0b1111
		instr.Op, instr.NoRn = OpMVN, true
	}

	return instr, nil
}

// decodeMisc16bit decodes the 0b1011xx miscellaneous group plus the trailing
// STM/LDM, conditional branch and unconditional branch rows of the 16 bit
// map.
func decodeMisc16bit(first uint32, second func() (uint32, error), addr uint32, status xPSR) (Instruction, error) {
	switch {
	case first&0xff80 == 0xb000:
		// ADD SP, imm7<<2
		return Instruction{Kind: KindALU, Op: OpADD, Opcode: first, Length: 2,
			Rd: SP, Rn: SP, Imm: (first & 0x7f) << 2, ImmOperand: true}, nil

	case first&0xff80 == 0xb080:
		// SUB SP, imm7<<2
		return Instruction{Kind: KindALU, Op: OpSUB, Opcode: first, Length: 2,
			Rd: SP, Rn: SP, Imm: (first & 0x7f) << 2, ImmOperand: true}, nil

	case first&0xf500 == 0xb100:
		// CBZ/CBNZ: always a forward branch, condition is a register value
		if status.InITBlock() {
			return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
		}
		rn := uint8(first & 0x7)
		imm := ((first>>9)&0x1)<<6 | ((first>>3)&0x1f)<<1
		return Instruction{Kind: KindCompareBranch, Opcode: first, Length: 2,
			Rn: rn, Imm: imm, BranchIfNonzero: first&0x0800 != 0}, nil

	case first&0xff00 == 0xb200:
		// SXTH/SXTB/UXTH/UXTB
		rm := uint8((first >> 3) & 0x7)
		rd := uint8(first & 0x7)
		instr := Instruction{Kind: KindALU, Opcode: first, Length: 2,
			Rd: rd, Rm: rm, NoRn: true}
		switch (first >> 6) & 0x3 {
		case 0b00:
			instr.Op = OpSXTH
		case 0b01:
			instr.Op = OpSXTB
		case 0b10:
			instr.Op = OpUXTH
		default:
			instr.Op = OpUXTB
		}
		return instr, nil

	case first&0xfe00 == 0xb400:
		// PUSH: full-descending store of the low registers plus
		// (optionally) LR, writing SP back to the lowered address.
		regs := first & 0xff
		if first&0x100 != 0 {
			regs |= 1 << LR
		}
		if regs == 0 {
			return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
		}
		return Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rn: SP, Imm: regs, Width: 4,
			Multiple: true, Wback: true, Decrement: true}, nil

	case first&0xffe8 == 0xb660:
		// CPS: bit 4 selects ID (disable) over IE, bits 1:0 name
		// PRIMASK (I) and FAULTMASK (F)
		if status.InITBlock() {
			return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
		}
		return Instruction{Kind: KindPrioritySerializing, Opcode: first, Length: 2,
			CPSDisable:      first&0x0010 != 0,
			AffectPRIMASK:   first&0x0002 != 0,
			AffectFAULTMASK: first&0x0001 != 0}, nil

	case first&0xff00 == 0xba00:
		// REV/REV16/REVSH
		rm := uint8((first >> 3) & 0x7)
		rd := uint8(first & 0x7)
		instr := Instruction{Kind: KindALU, Opcode: first, Length: 2,
			Rd: rd, Rm: rm, NoRn: true}
		switch (first >> 6) & 0x3 {
		case 0b00:
			instr.Op = OpREV
		case 0b01:
			instr.Op = OpREV16
		case 0b11:
			instr.Op = OpREVSH
		default:
			return Instruction{Kind: KindReserved, Opcode: first, Length: 2}, nil
		}
		return instr, nil

	case first&0xfe00 == 0xbc00:
		// POP: increment-after load of the low registers plus (optionally)
		// PC, which this core resolves as an implicit branch the same as
		// any other load into the program counter.
		regs := first & 0xff
		if first&0x100 != 0 {
			regs |= 1 << PC
		}
		if regs == 0 {
			return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
		}
		return Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rn: SP, Imm: regs, Width: 4,
			IsLoad: true, Multiple: true, Wback: true}, nil

	case first&0xff00 == 0xbe00:
		// BKPT: unconditional even inside an IT block. this core has no
		// debug monitor, so it surfaces as an unsupported encoding with the
		// breakpoint number preserved for the host.
		return Instruction{Kind: KindUnsupported, Opcode: first, Length: 2,
			Imm: first & 0xff}, nil

	case first&0xff00 == 0xbf00:
		mask := uint8(first & 0xf)
		firstcond := uint8((first >> 4) & 0xf)
		if mask != 0 {
			if firstcond == 0b1111 || (firstcond == 0b1110 && popCount4(mask) != 1) ||
				status.InITBlock() {
				return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
			}
			return Instruction{Kind: KindIT, Opcode: first, Length: 2,
				Cond: firstcond, Imm: uint32(mask)}, nil
		}
		// hint space: NOP, YIELD, WFE, WFI, SEV; anything else in the
		// mask-zero row is an allocated-to-NOP hint
		instr := Instruction{Kind: KindHint, Opcode: first, Length: 2}
		switch firstcond {
		case 0b0001:
			instr.Hint = HintYIELD
		case 0b0010:
			instr.Hint = HintWFE
		case 0b0011:
			instr.Hint = HintWFI
		case 0b0100:
			instr.Hint = HintSEV
		}
		return instr, nil

	case first&0xf000 == 0xc000:
		// STM/LDM (low registers, T1 encoding). bit 11 set selects LDM.
		// STM always writes back; LDM writes back unless Rn is itself in
		// the register list (A7.7.159), since the loaded value would
		// otherwise race with the writeback value for the same register.
		rn := uint8((first >> 8) & 0x7)
		regs := first & 0xff
		if regs == 0 {
			return Instruction{Kind: KindUnpredictable, Opcode: first, Length: 2}, nil
		}
		isLoad := first&0x0800 != 0
		wback := !isLoad || !RegisterBitmap(regs).Has(int(rn))
		return Instruction{Kind: KindMemory, Opcode: first, Length: 2,
			Rn: rn, Imm: regs, Width: 4,
			IsLoad: isLoad, Multiple: true, Wback: wback}, nil

	case first&0xf000 == 0xd000:
		cond := uint8((first >> 8) & 0xf)
		if cond == 0b1110 {
			// permanently undefined (UDF T1)
			return Instruction{Kind: KindReserved, Opcode: first, Length: 2}, nil
		}
		if cond == 0b1111 {
			// SVC: supervisor calls belong to the exception collaborator,
			// which this core does not implement
			return Instruction{Kind: KindUnsupported, Opcode: first, Length: 2,
				Imm: first & 0xff}, nil
		}
		imm := signExtend((first&0xff)<<1, 9)
		return Instruction{Kind: KindBranchImmediate, Opcode: first, Length: 2,
			Cond: cond, Imm: imm}, nil

	case first&0xf800 == 0xe000:
		// B T2 unconditional
		imm := signExtend((first&0x7ff)<<1, 12)
		return Instruction{Kind: KindBranchImmediate, Opcode: first, Length: 2,
			Cond: 0b1110, Imm: imm}, nil
	}

	return Instruction{Kind: KindReserved, Opcode: first, Length: 2}, nil
}

// popCount4 counts the set bits of a 4 bit mask.
func popCount4(v uint8) int {
	n := 0
	for m := v & 0xf; m != 0; m &= m - 1 {
		n++
	}
	return n
}

// signExtend sign-extends the low bits-many bits of v.
func signExtend(v uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}
