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

// decodeImmShift implements the DecodeImmShift pseudocode (A7.4.2): the
// (type, imm5) fields of an encoding become the effective shift operation
// and amount. imm5 of zero selects the special cases: LSL keeps amount zero
// (no shift), LSR/ASR mean a shift of 32, and ROR zero becomes RRX with an
// amount of one.
func decodeImmShift(typ uint32, imm5 uint32) (SRType, uint8) {
	switch typ & 0x3 {
	case 0b00:
		return SRTypeLSL, uint8(imm5)
	case 0b01:
		if imm5 == 0 {
			return SRTypeLSR, 32
		}
		return SRTypeLSR, uint8(imm5)
	case 0b10:
		if imm5 == 0 {
			return SRTypeASR, 32
		}
		return SRTypeASR, uint8(imm5)
	default:
		if imm5 == 0 {
			return SRTypeRRX, 1
		}
		return SRTypeROR, uint8(imm5)
	}
}

// shiftC implements the Shift_C pseudocode (A7.4.2): apply a shift of the
// given type and amount to value, returning the result and the final
// shifted-out carry. An amount of zero returns value and carryIn unchanged
// (except RRX, whose amount is always one).
func shiftC(value uint32, typ SRType, amount uint32, carryIn bool) (uint32, bool) {
	if typ == SRTypeRRX {
		return bitstring.RRX_C(value, carryIn)
	}
	if amount == 0 {
		return value, carryIn
	}
	switch typ {
	case SRTypeLSL:
		return bitstring.LSL_C(value, amount)
	case SRTypeLSR:
		return bitstring.LSR_C(value, amount)
	case SRTypeASR:
		return bitstring.ASR_C(value, amount)
	default: // SRTypeROR
		return bitstring.ROR_C(value, amount)
	}
}
