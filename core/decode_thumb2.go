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

import "github.com/jetsetilly/cm3pipeline/core/bitstring"

// decode32bit handles the 32 bit Thumb-2 space (first halfword with bits
// [15:11] of 0b11101, 0b11110 or 0b11111), following the A5.3 encoding map.
func decode32bit(first uint32, second func() (uint32, error), addr uint32, status xPSR) (Instruction, error) {
	low, err := second()
	if err != nil {
		return Instruction{}, err
	}
	low &= 0xffff
	opcode := first<<16 | low

	switch {
	case first&0xfe40 == 0xe840:
		return decodeDualExclusive(first, low, opcode)

	case first&0xfe00 == 0xe800:
		return decodeLoadStoreMultiple32(first, low, opcode)

	case first&0xfe00 == 0xea00:
		return decodeShiftedRegister32(first, low, opcode)

	case first&0xec00 == 0xec00:
		// the whole coprocessor space: CDP/LDC/MCR/MRC and the FP/SIMD
		// extensions that live there on larger cores
		return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil

	case first&0xf800 == 0xf000 && low&0x8000 == 0:
		if first&0x0200 == 0 {
			return decodeModifiedImmediate32(first, low, opcode)
		}
		return decodePlainImmediate32(first, low, opcode)

	case first&0xf800 == 0xf000:
		return decodeBranchAndControl32(first, low, opcode)

	case first&0xfe00 == 0xf800 || first&0xfe00 == 0xf900:
		return decodeLoadStoreSingle32(first, low, opcode)

	case first&0xff00 == 0xfa00:
		return decodeDataRegister32(first, low, opcode)

	case first&0xff80 == 0xfb00:
		return decodeMultiply32(first, low, opcode)

	case first&0xff80 == 0xfb80:
		return decodeLongMultiplyDivide32(first, low, opcode)
	}

	return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
}

// decodeDualExclusive covers LDRD/STRD, LDREX/STREX and the table branches,
// the 0b1110100xx1xx row of the map.
func decodeDualExclusive(first uint32, low uint32, opcode uint32) (Instruction, error) {
	rn := uint8(first & 0xf)
	preIndexed := first&0x0100 != 0
	add := first&0x0080 != 0
	wback := first&0x0020 != 0
	isLoad := first&0x0010 != 0

	if preIndexed || wback {
		// LDRD/STRD (immediate)
		rt := uint8((low >> 12) & 0xf)
		rt2 := uint8((low >> 8) & 0xf)
		if rt == rt2 || int(rt) >= SP || int(rt2) >= SP ||
			(wback && (rn == rt || rn == rt2)) {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindMemory, Opcode: opcode, Length: 4,
			Rd: rt, Rd2: rt2, Rn: rn, Imm: (low & 0xff) << 2, Width: 4,
			IsLoad: isLoad, Dual: true,
			Index: preIndexed, Add: add, Wback: wback,
			Literal: rn == uint8(PC) && isLoad}, nil
	}

	switch first & 0xfff0 {
	case 0xe840:
		// STREX: Rd receives the exclusive status
		rt := uint8((low >> 12) & 0xf)
		rd := uint8((low >> 8) & 0xf)
		return Instruction{Kind: KindMemory, Opcode: opcode, Length: 4,
			Rd: rt, Rd2: rd, Rn: rn, Imm: (low & 0xff) << 2, Width: 4,
			Index: true, Add: true, Exclusive: true}, nil
	case 0xe850:
		// LDREX
		rt := uint8((low >> 12) & 0xf)
		return Instruction{Kind: KindMemory, Opcode: opcode, Length: 4,
			Rd: rt, Rn: rn, Imm: (low & 0xff) << 2, Width: 4,
			IsLoad: true, Index: true, Add: true, Exclusive: true}, nil
	case 0xe8d0:
		if low&0xffe0 == 0xf000 {
			// TBB (low bit 4 clear) / TBH (low bit 4 set): reads a byte or
			// halfword offset table at Rn+Rm(<<1 for TBH) and branches to
			// PC + 2*offset.
			rm := uint8(low & 0xf)
			instr := Instruction{Kind: KindTableBranch, Opcode: opcode, Length: 4,
				Rn: rn, Rm: rm}
			if low&0x10 != 0 {
				instr.Imm = 1
			}
			return instr, nil
		}
		// LDREXB/LDREXH
		return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
	case 0xe8c0:
		// STREXB/STREXH
		return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
	}

	return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
}

// decodeLoadStoreMultiple32 covers LDM.W/STM.W/LDMDB/STMDB (and therefore
// PUSH.W/POP.W, which are the SP-based aliases).
func decodeLoadStoreMultiple32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	rn := uint8(first & 0xf)
	isLoad := first&0x0010 != 0
	wback := first&0x0020 != 0
	decrement := first&0x0100 != 0
	incrementAfter := first&0x0080 != 0

	if decrement == incrementAfter {
		// the 00 and 11 rows hold SRS/RFE on A/R profile cores; reserved
		// here
		return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
	}

	regs := low & 0xdfff // bit 13 (SP) is never a valid list member
	if !isLoad {
		regs &= 0x5fff // nor is PC for a store
	}
	if regs == 0 || RegisterBitmap(regs).Count() < 2 && !RegisterBitmap(regs).Has(PC) {
		// fewer than two registers is unpredictable for the T2 encodings
		return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
	}
	if isLoad && wback && RegisterBitmap(regs).Has(int(rn)) {
		return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
	}

	return Instruction{Kind: KindMemory, Opcode: opcode, Length: 4,
		Rn: rn, Imm: regs, Width: 4,
		IsLoad: isLoad, Multiple: true, Wback: wback, Decrement: decrement}, nil
}

// dataProcessingOperation resolves the shared T32 data-processing op field
// (bits [8:5] of the first halfword) used by both the shifted-register and
// modified-immediate encodings, including the TST/TEQ/CMN/CMP and MOV/MVN
// aliases selected by an all-ones Rd or Rn.
func dataProcessingOperation(op uint32, rn uint8, rd uint8, setflags bool) (Operation, bool, bool, bool) {
	// returns (operation, compare, noRn, ok)
	switch op {
	case 0b0000:
		if rd == 0xf {
			if !setflags {
				return OpNone, false, false, false
			}
			return OpTST, true, false, true
		}
		return OpAND, false, false, true
	case 0b0001:
		return OpBIC, false, false, true
	case 0b0010:
		if rn == 0xf {
			return OpMOV, false, true, true
		}
		return OpORR, false, false, true
	case 0b0011:
		if rn == 0xf {
			return OpMVN, false, true, true
		}
		return OpORN, false, false, true
	case 0b0100:
		if rd == 0xf {
			if !setflags {
				return OpNone, false, false, false
			}
			return OpTEQ, true, false, true
		}
		return OpEOR, false, false, true
	case 0b1000:
		if rd == 0xf {
			if !setflags {
				return OpNone, false, false, false
			}
			return OpCMN, true, false, true
		}
		return OpADD, false, false, true
	case 0b1010:
		return OpADC, false, false, true
	case 0b1011:
		return OpSBC, false, false, true
	case 0b1101:
		if rd == 0xf {
			if !setflags {
				return OpNone, false, false, false
			}
			return OpCMP, true, false, true
		}
		return OpSUB, false, false, true
	case 0b1110:
		return OpRSB, false, false, true
	}
	return OpNone, false, false, false
}

// decodeShiftedRegister32 covers the 0b1110101 data-processing (shifted
// register) space.
func decodeShiftedRegister32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	op := (first >> 5) & 0xf
	setflags := first&0x0010 != 0
	rn := uint8(first & 0xf)
	rd := uint8((low >> 8) & 0xf)
	rm := uint8(low & 0xf)

	operation, compare, noRn, ok := dataProcessingOperation(op, rn, rd, setflags)
	if !ok {
		return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
	}

	imm5 := ((low>>12)&0x7)<<2 | (low>>6)&0x3
	typ, amount := decodeImmShift((low>>4)&0x3, imm5)

	if !compare && (int(rd) == PC ||
		(int(rd) == SP && !((operation == OpADD || operation == OpSUB) && rn == uint8(SP)))) {
		return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
	}

	instr := Instruction{Kind: KindALU, Op: operation, Opcode: opcode, Length: 4,
		Rd: rd, Rn: rn, Rm: rm, SetFlags: setflags, Compare: compare, NoRn: noRn,
		ShiftType: typ, ShiftAmount: amount}
	if compare {
		instr.Rd = 0
	}
	return instr, nil
}

// decodeModifiedImmediate32 covers data processing with a ThumbExpandImm_C
// modified immediate. The carry the expansion produces is latched into the
// Instruction so Execute never re-derives it.
func decodeModifiedImmediate32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	op := (first >> 5) & 0xf
	setflags := first&0x0010 != 0
	rn := uint8(first & 0xf)
	rd := uint8((low >> 8) & 0xf)

	operation, compare, noRn, ok := dataProcessingOperation(op, rn, rd, setflags)
	if !ok {
		return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
	}

	imm12 := ((first>>10)&0x1)<<11 | ((low>>12)&0x7)<<8 | low&0xff
	// the carry-in only matters when the expansion doesn't produce one of
	// its own; the decoder stores the carry-out and whether it is
	// meaningful, and Execute substitutes the live APSR.C when it is not
	imm32, carry, expandOK := bitstring.ThumbExpandImm_C(imm12, false)
	if !expandOK {
		return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
	}

	if !compare && (int(rd) == PC ||
		(int(rd) == SP && !((operation == OpADD || operation == OpSUB) && rn == uint8(SP)))) {
		return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
	}

	instr := Instruction{Kind: KindALU, Op: operation, Opcode: opcode, Length: 4,
		Rd: rd, Rn: rn, Imm: imm32, ImmOperand: true,
		SetFlags: setflags, Compare: compare, NoRn: noRn,
		Carry: carry, CarryValid: imm12&0xc00 != 0}
	if compare {
		instr.Rd = 0
	}
	return instr, nil
}

// decodePlainImmediate32 covers ADDW/SUBW/ADR, MOVW/MOVT and the bitfield
// group (the data-processing, plain binary immediate space).
func decodePlainImmediate32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	rn := uint8(first & 0xf)
	rd := uint8((low >> 8) & 0xf)
	imm12 := ((first>>10)&0x1)<<11 | ((low>>12)&0x7)<<8 | low&0xff

	if int(rd) == PC || int(rd) == SP {
		return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
	}

	switch (first >> 4) & 0x1f {
	case 0b00000: // ADDW, or ADR (T3) when Rn is PC
		if rn == uint8(PC) {
			return Instruction{Kind: KindALU, Op: OpADR, Opcode: opcode, Length: 4,
				Rd: rd, Imm: imm12, ImmOperand: true, NoRn: true, Add: true}, nil
		}
		return Instruction{Kind: KindALU, Op: OpADD, Opcode: opcode, Length: 4,
			Rd: rd, Rn: rn, Imm: imm12, ImmOperand: true}, nil

	case 0b01010: // SUBW, or ADR (T2) when Rn is PC
		if rn == uint8(PC) {
			return Instruction{Kind: KindALU, Op: OpADR, Opcode: opcode, Length: 4,
				Rd: rd, Imm: imm12, ImmOperand: true, NoRn: true}, nil
		}
		return Instruction{Kind: KindALU, Op: OpSUB, Opcode: opcode, Length: 4,
			Rd: rd, Rn: rn, Imm: imm12, ImmOperand: true}, nil

	case 0b00100: // MOVW: 16 bit immediate, zero extended
		imm16 := (first&0xf)<<12 | imm12
		return Instruction{Kind: KindALU, Op: OpMOV, Opcode: opcode, Length: 4,
			Rd: rd, Imm: imm16, ImmOperand: true, NoRn: true}, nil

	case 0b01100: // MOVT: 16 bit immediate into the top half, bottom kept
		imm16 := (first&0xf)<<12 | imm12
		return Instruction{Kind: KindALU, Op: OpMOVT, Opcode: opcode, Length: 4,
			Rd: rd, Imm: imm16, ImmOperand: true, NoRn: true}, nil

	case 0b10100, 0b11100: // SBFX / UBFX
		operation := OpUBFX
		if first&0x0080 == 0 {
			operation = OpSBFX
		}
		lsb := ((low>>12)&0x7)<<2 | (low>>6)&0x3
		widthm1 := low & 0x1f
		if lsb+widthm1 > 31 {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindALU, Op: operation, Opcode: opcode, Length: 4,
			Rd: rd, Rn: rn, Imm: widthm1<<8 | lsb, ImmOperand: true}, nil

	case 0b10110: // BFI, or BFC when Rn is PC
		lsb := ((low>>12)&0x7)<<2 | (low>>6)&0x3
		msb := low & 0x1f
		if msb < lsb {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		operation := OpBFI
		noRn := false
		if rn == uint8(PC) {
			operation = OpBFC
			noRn = true
		}
		return Instruction{Kind: KindALU, Op: operation, Opcode: opcode, Length: 4,
			Rd: rd, Rn: rn, Imm: msb<<8 | lsb, ImmOperand: true, NoRn: noRn}, nil

	case 0b10000, 0b10010, 0b11000, 0b11010:
		// SSAT/USAT and their 16 bit variants: DSP-adjacent saturation
		return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
	}

	return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
}

// decodeBranchAndControl32 covers B (T3/T4), BL, MSR/MRS, the hint space and
// the barriers.
func decodeBranchAndControl32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	switch {
	case low&0x5000 == 0x0000:
		// not a branch: MSR/MRS, hints, misc control
		cond := (first >> 6) & 0xf
		if cond&0b1110 != 0b1110 {
			// B conditional, T3: cond is a real condition
			s := (first >> 10) & 0x1
			j1 := (low >> 13) & 0x1
			j2 := (low >> 11) & 0x1
			imm := s<<20 | j2<<19 | j1<<18 | (first&0x3f)<<12 | (low&0x7ff)<<1
			return Instruction{Kind: KindBranchImmediate, Opcode: opcode, Length: 4,
				Cond: uint8(cond), Imm: signExtend(imm, 21)}, nil
		}

		switch {
		case first&0xffe0 == 0xf380 && low&0xd000 == 0x8000:
			// MSR (register): writes a special register by SYSm number
			rn := uint8(first & 0xf)
			sysm := uint8(low & 0xff)
			switch sysm {
			case 0, 1, 2, 3, 8, 9, 16, 17, 18, 19, 20:
				return Instruction{Kind: KindPrioritySerializing, Opcode: opcode, Length: 4,
					Rn: rn, SYSm: sysm}, nil
			}
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil

		case first&0xfff0 == 0xf3e0 && low&0xd000 == 0x8000:
			// MRS: reads a special register by SYSm number
			rd := uint8((low >> 8) & 0xf)
			return Instruction{Kind: KindSystemRegisterRead, Opcode: opcode, Length: 4,
				Rd: rd, SYSm: uint8(low & 0xff)}, nil

		case first&0xfff0 == 0xf3a0 && low&0xd700 == 0x8000:
			// hint space, wide encodings
			instr := Instruction{Kind: KindHint, Opcode: opcode, Length: 4}
			switch low & 0xff {
			case 0x01:
				instr.Hint = HintYIELD
			case 0x02:
				instr.Hint = HintWFE
			case 0x03:
				instr.Hint = HintWFI
			case 0x04:
				instr.Hint = HintSEV
			}
			return instr, nil

		case first&0xfff0 == 0xf3b0 && low&0xd000 == 0x8000:
			// barriers: DSB/DMB order memory, which a core with a strongly
			// ordered single-master bus gets for free; ISB flushes the
			// pipeline, which Brchstat expresses as a branch to the next
			// instruction
			switch (low >> 4) & 0xf {
			case 0b0100, 0b0101: // DSB, DMB
				return Instruction{Kind: KindBarrier, Opcode: opcode, Length: 4}, nil
			case 0b0110: // ISB
				return Instruction{Kind: KindBarrier, Opcode: opcode, Length: 4, ISB: true}, nil
			}
			return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
		}

		return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil

	case low&0x5000 == 0x1000:
		// B unconditional, T4
		if first&0xfff0 == 0xf7f0 && low&0xd000 == 0x9000 {
			// UDF.W shares the row
			return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
		}
		imm := branchT4Immediate(first, low)
		return Instruction{Kind: KindBranchImmediate, Opcode: opcode, Length: 4,
			Cond: 0b1110, Imm: imm}, nil

	case low&0x5000 == 0x5000:
		// BL
		imm := branchT4Immediate(first, low)
		return Instruction{Kind: KindBranchWithLinkImmediate, Opcode: opcode, Length: 4,
			Imm: imm, WritesLR: true}, nil
	}

	// low&0x5000 == 0x4000: BLX (immediate) exchanges to ARM state, which
	// does not exist on an M profile core
	return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
}

// branchT4Immediate assembles the 25 bit S:I1:I2:imm10:imm11:0 displacement
// shared by B.W (T4) and BL.
func branchT4Immediate(first uint32, low uint32) uint32 {
	s := (first >> 10) & 0x1
	imm10 := first & 0x3ff
	j1 := (low >> 13) & 0x1
	j2 := (low >> 11) & 0x1
	imm11 := low & 0x7ff
	i1 := (j1 ^ s) ^ 1
	i2 := (j2 ^ s) ^ 1
	imm := s<<24 | i1<<23 | i2<<22 | imm10<<12 | imm11<<1
	return signExtend(imm, 25)
}

// decodeLoadStoreSingle32 covers the wide single-register load/store space:
// imm12, imm8 with index/add/writeback bits, register offset, literal and
// unprivileged forms, across byte/halfword/word widths.
func decodeLoadStoreSingle32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	isLoad := first&0x0010 != 0
	signExtending := first&0x0100 != 0
	rn := uint8(first & 0xf)
	rt := uint8((low >> 12) & 0xf)

	var width uint8
	switch (first >> 5) & 0x3 {
	case 0b00:
		width = 1
	case 0b01:
		width = 2
	case 0b10:
		width = 4
	default:
		return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
	}

	if signExtending && (!isLoad || width == 4) {
		return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
	}

	if isLoad && rt == uint8(PC) && width != 4 {
		// "memory hints": PLD/PLI shapes. allocated to NOP on this core.
		return Instruction{Kind: KindHint, Opcode: opcode, Length: 4}, nil
	}

	instr := Instruction{Kind: KindMemory, Opcode: opcode, Length: 4,
		Rd: rt, Rn: rn, Width: width,
		IsLoad: isLoad, SignExtend: signExtending && isLoad}

	if rn == uint8(PC) {
		// literal form: imm12, direction from the U bit
		if !isLoad {
			return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
		}
		instr.Literal = true
		instr.Index = true
		instr.Add = first&0x0080 != 0
		instr.Imm = low & 0xfff
		return instr, nil
	}

	if first&0x0080 != 0 {
		// imm12, positive offset
		instr.Index = true
		instr.Add = true
		instr.Imm = low & 0xfff
		return instr, nil
	}

	switch {
	case low&0x0800 != 0:
		// imm8 with P/U/W control bits
		instr.Index = low&0x0400 != 0
		instr.Add = low&0x0200 != 0
		instr.Wback = low&0x0100 != 0
		instr.Imm = low & 0xff
		if low&0x0f00 == 0x0e00 {
			// LDRT/STRT: offset addressing with unprivileged access
			instr.Index = true
			instr.Add = true
			instr.Wback = false
			instr.Unprivileged = true
		}
		if !instr.Index && !instr.Wback {
			return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
		}
		if instr.Wback && rn == rt && isLoad {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return instr, nil

	case low&0x0fc0 == 0x0000:
		// register offset, Rm shifted left by imm2
		instr.RegisterOffset = true
		instr.Index = true
		instr.Add = true
		instr.Rm = uint8(low & 0xf)
		instr.ShiftAmount = uint8((low >> 4) & 0x3)
		return instr, nil
	}

	return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
}

// decodeDataRegister32 covers the wide register-amount shifts, the extend
// group and the miscellaneous CLZ/REV/RBIT operations.
func decodeDataRegister32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	if low&0xf000 != 0xf000 {
		return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
	}

	rn := uint8(first & 0xf)
	rd := uint8((low >> 8) & 0xf)
	rm := uint8(low & 0xf)

	if first&0x0080 == 0 && low&0x00f0 == 0x0000 {
		// LSL.W/LSR.W/ASR.W/ROR.W (register)
		setflags := first&0x0010 != 0
		var operation Operation
		switch (first >> 5) & 0x3 {
		case 0b00:
			operation = OpLSL
		case 0b01:
			operation = OpLSR
		case 0b10:
			operation = OpASR
		default:
			operation = OpROR
		}
		if int(rd) >= SP || int(rn) >= SP || int(rm) >= SP {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindALU, Op: operation, Opcode: opcode, Length: 4,
			Rd: rd, Rn: rn, Rm: rm, SetFlags: setflags, ShiftRegister: true}, nil
	}

	if first&0x0080 == 0 && low&0x0080 == 0x0080 {
		// extend group. Rn of all-ones selects the plain extend; anything
		// else is the extend-and-add (SXTAH etc) DSP form.
		if rn != 0xf {
			return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
		}
		rotation := uint8(((low >> 4) & 0x3) << 3)
		var operation Operation
		switch (first >> 4) & 0x7 {
		case 0b000:
			operation = OpSXTH
		case 0b001:
			operation = OpUXTH
		case 0b100:
			operation = OpSXTB
		case 0b101:
			operation = OpUXTB
		default:
			return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindALU, Op: operation, Opcode: opcode, Length: 4,
			Rd: rd, Rm: rm, NoRn: true, ShiftAmount: rotation}, nil
	}

	if first&0x00f0 == 0x0090 {
		// REV.W/REV16.W/RBIT/REVSH.W. both register fields must name Rm.
		if rn != rm {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		var operation Operation
		switch (low >> 4) & 0xf {
		case 0b1000:
			operation = OpREV
		case 0b1001:
			operation = OpREV16
		case 0b1010:
			operation = OpRBIT
		case 0b1011:
			operation = OpREVSH
		default:
			return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindALU, Op: operation, Opcode: opcode, Length: 4,
			Rd: rd, Rm: rm, NoRn: true}, nil
	}

	if first&0x00f0 == 0x00b0 && low&0x00f0 == 0x0080 {
		// CLZ. like the REV group, Rn must mirror Rm.
		if rn != rm {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindALU, Op: OpCLZ, Opcode: opcode, Length: 4,
			Rd: rd, Rm: rm, NoRn: true}, nil
	}

	// the remaining rows are the saturating/parallel DSP additions
	return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
}

// decodeMultiply32 covers MUL.W, MLA and MLS.
func decodeMultiply32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	if first&0xfff0 != 0xfb00 {
		// SMLABB and the other halfword-multiply DSP forms
		return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
	}

	rn := uint8(first & 0xf)
	ra := uint8((low >> 12) & 0xf)
	rd := uint8((low >> 8) & 0xf)
	rm := uint8(low & 0xf)

	switch (low >> 4) & 0xf {
	case 0b0000:
		if ra == 0xf {
			// MUL.W: no accumulator, never sets flags
			return Instruction{Kind: KindMultiply, Opcode: opcode, Length: 4,
				Rd: rd, Rn: rn, Rm: rm}, nil
		}
		return Instruction{Kind: KindMultiply, Opcode: opcode, Length: 4,
			Rd: rd, Rn: rn, Rm: rm, Ra: ra, Accumulate: true}, nil
	case 0b0001:
		// MLS: Rd = Ra - Rn*Rm
		if ra == 0xf {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindMultiply, Opcode: opcode, Length: 4,
			Rd: rd, Rn: rn, Rm: rm, Ra: ra,
			Accumulate: true, AccumulateSubtract: true}, nil
	}

	return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
}

// decodeLongMultiplyDivide32 covers SMULL/UMULL/SMLAL/UMLAL and SDIV/UDIV.
func decodeLongMultiplyDivide32(first uint32, low uint32, opcode uint32) (Instruction, error) {
	rn := uint8(first & 0xf)
	rdLo := uint8((low >> 12) & 0xf)
	rdHi := uint8((low >> 8) & 0xf)
	rm := uint8(low & 0xf)

	switch first & 0xfff0 {
	case 0xfb80, 0xfba0, 0xfbc0, 0xfbe0:
		// SMULL (0xfb8x) / UMULL (0xfbax) / SMLAL (0xfbcx) / UMLAL
		// (0xfbex). signedness is bit 5 of the major opcode, accumulate is
		// bit 6.
		if low&0x00f0 != 0x0000 {
			return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
		}
		if rdLo == rdHi || int(rdLo) >= SP || int(rdHi) >= SP ||
			int(rn) >= SP || int(rm) >= SP {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindLongMultiply, Opcode: opcode, Length: 4,
			RdLo: rdLo, RdHi: rdHi, Rn: rn, Rm: rm,
			Signed: first&0x0020 == 0, Accumulate: first&0x0040 != 0}, nil

	case 0xfb90, 0xfbb0:
		// SDIV (0xfb9x) / UDIV (0xfbbx)
		if low&0x00f0 != 0x00f0 {
			return Instruction{Kind: KindReserved, Opcode: opcode, Length: 4}, nil
		}
		if int(rdHi) >= SP || int(rn) >= SP || int(rm) >= SP {
			return Instruction{Kind: KindUnpredictable, Opcode: opcode, Length: 4}, nil
		}
		return Instruction{Kind: KindDivide, Opcode: opcode, Length: 4,
			Rd: rdHi, Rn: rn, Rm: rm, Signed: first&0xfff0 == 0xfb90}, nil
	}

	return Instruction{Kind: KindUnsupported, Opcode: opcode, Length: 4}, nil
}
