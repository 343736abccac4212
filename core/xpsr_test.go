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

// TestITStateDiscipline pins the ITSTATE invariants: InITBlock is true iff
// the mask is non-zero; every advance before the last leaves the mask
// non-zero; the final advance clears it; and a block of length n takes
// exactly n advances to drain, for every length the encoding allows.
func TestITStateDiscipline(t *testing.T) {
	for _, tc := range []struct {
		mask   uint8
		length int
	}{
		{0b1000, 1}, // IT
		{0b0100, 2}, // ITx
		{0b0010, 3}, // ITxy
		{0b0001, 4}, // ITxyz
	} {
		var status xPSR
		test.ExpectedFailure(t, status.InITBlock())

		status.setIT(0b0000, tc.mask)
		for i := 0; i < tc.length; i++ {
			test.ExpectedSuccess(t, status.InITBlock())
			test.ExpectEquality(t, status.InLastITBlockSlot(), i == tc.length-1)
			status.advanceIT()
		}
		test.ExpectedFailure(t, status.InITBlock())
		test.ExpectEquality(t, status.itstate, uint8(0))

		// advancing outside a block is a no-op
		status.advanceIT()
		test.ExpectEquality(t, status.itstate, uint8(0))
	}
}

// TestITStateConditionPolarity walks an ITETE block and checks the then/else
// polarity the mask encodes.
func TestITStateConditionPolarity(t *testing.T) {
	var status xPSR
	status.zero = true

	// ITETE EQ: mask 0b1011 yields EQ, NE, EQ, NE on successive slots
	status.setIT(0b0000, 0b1011)

	for _, cond := range []uint8{0b0000, 0b0001, 0b0000, 0b0001} {
		test.ExpectedSuccess(t, status.InITBlock())
		test.ExpectEquality(t, status.currentITCondition(), cond)
		status.advanceIT()
	}
	test.ExpectedFailure(t, status.InITBlock())
}

func TestConditionCodes(t *testing.T) {
	var status xPSR

	// EQ/NE
	status.zero = true
	test.ExpectedSuccess(t, status.condition(0b0000))
	test.ExpectedFailure(t, status.condition(0b0001))

	// CS/CC
	status.carry = true
	test.ExpectedSuccess(t, status.condition(0b0010))
	test.ExpectedFailure(t, status.condition(0b0011))

	// MI/PL
	status.negative = true
	test.ExpectedSuccess(t, status.condition(0b0100))
	test.ExpectedFailure(t, status.condition(0b0101))

	// VS/VC
	status.overflow = true
	test.ExpectedSuccess(t, status.condition(0b0110))
	test.ExpectedFailure(t, status.condition(0b0111))

	// HI: C && !Z
	status = xPSR{carry: true}
	test.ExpectedSuccess(t, status.condition(0b1000))
	status.zero = true
	test.ExpectedFailure(t, status.condition(0b1000))
	test.ExpectedSuccess(t, status.condition(0b1001)) // LS

	// GE/LT
	status = xPSR{negative: true, overflow: true}
	test.ExpectedSuccess(t, status.condition(0b1010))
	status.overflow = false
	test.ExpectedFailure(t, status.condition(0b1010))
	test.ExpectedSuccess(t, status.condition(0b1011))

	// GT/LE
	status = xPSR{}
	test.ExpectedSuccess(t, status.condition(0b1100))
	status.zero = true
	test.ExpectedFailure(t, status.condition(0b1100))
	test.ExpectedSuccess(t, status.condition(0b1101))

	// AL always passes
	test.ExpectedSuccess(t, status.condition(0b1110))
}

func TestSetNZ(t *testing.T) {
	var status xPSR
	status.setNZ(0)
	test.ExpectedSuccess(t, status.zero)
	test.ExpectedFailure(t, status.negative)

	status.setNZ(0x80000000)
	test.ExpectedFailure(t, status.zero)
	test.ExpectedSuccess(t, status.negative)
}
