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

package bitstring_test

import (
	"testing"

	"github.com/jetsetilly/cm3pipeline/core/bitstring"
	"github.com/jetsetilly/cm3pipeline/test"
)

func TestAddWithCarry(t *testing.T) {
	result, carry, overflow := bitstring.AddWithCarry(0xffffffff, 1, 0)
	test.ExpectEquality(t, result, uint32(0))
	test.ExpectedSuccess(t, carry)
	test.ExpectedFailure(t, overflow)

	result, carry, overflow = bitstring.AddWithCarry(0x7fffffff, 1, 0)
	test.ExpectEquality(t, result, uint32(0x80000000))
	test.ExpectedFailure(t, carry)
	test.ExpectedSuccess(t, overflow)

	result, carry, overflow = bitstring.AddWithCarry(10, 20, 1)
	test.ExpectEquality(t, result, uint32(31))
	test.ExpectedFailure(t, carry)
	test.ExpectedFailure(t, overflow)
}

func TestShiftWithCarry(t *testing.T) {
	result, carry := bitstring.LSL_C(0x80000001, 1)
	test.ExpectEquality(t, result, uint32(0x2))
	test.ExpectedSuccess(t, carry)

	result, carry = bitstring.LSR_C(0x3, 1)
	test.ExpectEquality(t, result, uint32(0x1))
	test.ExpectedSuccess(t, carry)

	result, carry = bitstring.LSR_C(0x80000000, 32)
	test.ExpectEquality(t, result, uint32(0))
	test.ExpectedSuccess(t, carry)

	result, carry = bitstring.ASR_C(0x80000000, 4)
	test.ExpectEquality(t, result, uint32(0xf8000000))
	test.ExpectedFailure(t, carry)

	result, carry = bitstring.ASR_C(0x80000000, 40)
	test.ExpectEquality(t, result, uint32(0xffffffff))
	test.ExpectedSuccess(t, carry)

	result, carry = bitstring.RRX_C(0x2, true)
	test.ExpectEquality(t, result, uint32(0x80000001))
	test.ExpectedFailure(t, carry)
}

func TestROR_C(t *testing.T) {
	result, carry := bitstring.ROR_C(0x1, 1)
	test.ExpectEquality(t, result, uint32(0x80000000))
	test.ExpectedSuccess(t, carry)

	result, carry = bitstring.ROR_C(0x80000000, 1)
	test.ExpectEquality(t, result, uint32(0x40000000))
	test.ExpectedFailure(t, carry)
}

func TestThumbExpandImm_C(t *testing.T) {
	// control pattern 00: plain byte value, carry passed through unchanged
	v, carry, ok := bitstring.ThumbExpandImm_C(0x0ff, true)
	test.ExpectedSuccess(t, ok)
	test.ExpectEquality(t, v, uint32(0xff))
	test.ExpectedSuccess(t, carry)

	v, carry, ok = bitstring.ThumbExpandImm_C(0x0ff, false)
	test.ExpectedSuccess(t, ok)
	test.ExpectEquality(t, v, uint32(0xff))
	test.ExpectedFailure(t, carry)

	// control pattern 01: 00XY00XY
	v, _, ok = bitstring.ThumbExpandImm_C(0x1ab, false)
	test.ExpectedSuccess(t, ok)
	test.ExpectEquality(t, v, uint32(0x00ab00ab))

	// control pattern 10: XY00XY00
	v, _, ok = bitstring.ThumbExpandImm_C(0x2ab, false)
	test.ExpectedSuccess(t, ok)
	test.ExpectEquality(t, v, uint32(0xab00ab00))

	// control pattern 11: XYXYXYXY
	v, _, ok = bitstring.ThumbExpandImm_C(0x3ab, false)
	test.ExpectedSuccess(t, ok)
	test.ExpectEquality(t, v, uint32(0xabababab))

	// a zero byte under a repeating control pattern is unpredictable
	_, _, ok = bitstring.ThumbExpandImm_C(0x100, false)
	test.ExpectedFailure(t, ok)

	// rotated form: top two bits of imm12 non-zero selects the rotate path
	v, carry, ok = bitstring.ThumbExpandImm_C(0x480, false)
	test.ExpectedSuccess(t, ok)
	test.ExpectEquality(t, v, uint32(0x40000000))
	test.ExpectedFailure(t, carry)
}
