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
	"testing"

	"github.com/jetsetilly/cm3pipeline/test"
)

// operand samples covering every half-population class the tables index on,
// in both signs.
var multiplyOperandSamples = []uint32{
	0x00000000,
	0x00000001, 0x0000ffff, // low half only
	0x00010000, 0x7fff0000, // high half only
	0x00010001, 0x12345678, // both halves
	0x80000000, 0xffff0000, // negative, high only
	0xffffffff, 0x8000ffff, // negative, both
	0xffff0001,
}

// TestLongMultiplyWriteCycleOrdering pins the structural property of every
// slow-multiplier table: the high half is never ready before the low half,
// and the low half always costs at least one cycle.
func TestLongMultiplyWriteCycleOrdering(t *testing.T) {
	variants := []Instruction{
		{Kind: KindLongMultiply},                                 // UMULL
		{Kind: KindLongMultiply, Accumulate: true},               // UMLAL
		{Kind: KindLongMultiply, Signed: true},                   // SMULL
		{Kind: KindLongMultiply, Signed: true, Accumulate: true}, // SMLAL
	}

	for _, instr := range variants {
		for _, rn := range multiplyOperandSamples {
			for _, rm := range multiplyOperandSamples {
				hi, lo := longMultiplyWriteCycles(instr, rn, rm, multiplierFlavorSlow)
				if hi < lo || lo < 1 {
					t.Fatalf("write cycles out of order: hi=%d lo=%d rn=%08x rm=%08x signed=%v acc=%v",
						hi, lo, rn, rm, instr.Signed, instr.Accumulate)
				}

				hi, lo = longMultiplyWriteCycles(instr, rn, rm, multiplierFlavorFast)
				test.ExpectEquality(t, hi, 0)
				test.ExpectEquality(t, lo, 0)
			}
		}
	}
}

func TestUMULLWriteCycles(t *testing.T) {
	// either operand entirely zero is the fastest case
	hi, lo := umullWriteCycles(0, 4)
	test.ExpectEquality(t, hi, 2)
	test.ExpectEquality(t, lo, 1)

	// both operands low-half-only stays fast
	hi, lo = umullWriteCycles(0xffff, 0x1234)
	test.ExpectEquality(t, hi, 2)
	test.ExpectEquality(t, lo, 1)

	// mixed halves cost a middle row
	hi, lo = umullWriteCycles(0xffff0000, 0x1234)
	test.ExpectEquality(t, hi, 3)
	test.ExpectEquality(t, lo, 2)

	// fully populated operands are the slowest
	hi, lo = umullWriteCycles(0x12345678, 0x9abcdef0)
	test.ExpectEquality(t, hi, 4)
	test.ExpectEquality(t, lo, 3)
}

func TestUMLALCostsMoreThanUMULL(t *testing.T) {
	// the accumulating form is never faster than the plain multiply for
	// the same operands
	for _, rn := range multiplyOperandSamples {
		for _, rm := range multiplyOperandSamples {
			mulHi, _ := umullWriteCycles(rn, rm)
			accHi, _ := umlalWriteCycles(rn, rm)
			if accHi < mulHi {
				t.Fatalf("UMLAL faster than UMULL: rn=%08x rm=%08x (%d < %d)", rn, rm, accHi, mulHi)
			}
		}
	}
}

// TestLongMultiplyProductParity pins the cross-flavour contract: the final
// RdHi:RdLo value never depends on the write-cycle table, only the timing
// does.
func TestLongMultiplyProductParity(t *testing.T) {
	for _, rn := range multiplyOperandSamples {
		for _, rm := range multiplyOperandSamples {
			signed := Instruction{Kind: KindLongMultiply, Signed: true}
			unsigned := Instruction{Kind: KindLongMultiply}

			test.ExpectEquality(t,
				longMultiplyProduct(unsigned, rn, rm, 0, 0),
				uint64(rn)*uint64(rm))
			test.ExpectEquality(t,
				longMultiplyProduct(signed, rn, rm, 0, 0),
				uint64(int64(int32(rn))*int64(int32(rm))))
		}
	}

	// the accumulating forms fold in the existing register pair
	acc := Instruction{Kind: KindLongMultiply, Accumulate: true}
	test.ExpectEquality(t, longMultiplyProduct(acc, 2, 3, 0x1, 0xffffffff),
		uint64(6)+0x1ffffffff)
}

func TestSMULLSignCosts(t *testing.T) {
	// low-half-only positive operands are the fast case
	hi, lo := smullWriteCycles(0x1234, 0x5678)
	test.ExpectEquality(t, hi, 2)
	test.ExpectEquality(t, lo, 1)

	// a negative operand is never cheaper than its positive counterpart:
	// the sign extension feeds partial products the unsigned form skips
	hiNeg, _ := smullWriteCycles(-5, 3)
	hiPos, _ := smullWriteCycles(5, 3)
	if hiNeg < hiPos {
		t.Fatalf("negative operand cheaper than positive: %d < %d", hiNeg, hiPos)
	}
}
