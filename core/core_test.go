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

package core_test

import (
	"testing"

	"github.com/jetsetilly/cm3pipeline/core"
	"github.com/jetsetilly/cm3pipeline/test"
)

// fakeLSU is a flat little-endian memory used only to exercise the
// pipeline in tests. dataWait inserts that many not-ready cycles before
// each data access completes; instruction fetches (Read16) are always
// ready, matching the always-ready program memory the pipeline expects.
type fakeLSU struct {
	mem      []byte
	dataWait int
	waiting  int
}

func newFakeLSU(size int) *fakeLSU {
	return &fakeLSU{mem: make([]byte, size)}
}

func (m *fakeLSU) putHalfword(addr uint32, v uint16) {
	m.mem[addr] = byte(v)
	m.mem[addr+1] = byte(v >> 8)
}

func (m *fakeLSU) putWord(addr uint32, v uint32) {
	m.mem[addr] = byte(v)
	m.mem[addr+1] = byte(v >> 8)
	m.mem[addr+2] = byte(v >> 16)
	m.mem[addr+3] = byte(v >> 24)
}

// program lays down a sequence of halfwords from addr.
func (m *fakeLSU) program(addr uint32, halfwords ...uint16) {
	for _, h := range halfwords {
		m.putHalfword(addr, h)
		addr += 2
	}
}

func (m *fakeLSU) wait() bool {
	if m.waiting < m.dataWait {
		m.waiting++
		return true
	}
	m.waiting = 0
	return false
}

func (m *fakeLSU) Read8(addr uint32) (uint32, bool, error) {
	if m.wait() {
		return 0, false, nil
	}
	return uint32(m.mem[addr]), true, nil
}

func (m *fakeLSU) Read16(addr uint32) (uint32, bool, error) {
	return uint32(m.mem[addr]) | uint32(m.mem[addr+1])<<8, true, nil
}

func (m *fakeLSU) Read32(addr uint32) (uint32, bool, error) {
	if m.wait() {
		return 0, false, nil
	}
	v := uint32(m.mem[addr]) | uint32(m.mem[addr+1])<<8 | uint32(m.mem[addr+2])<<16 | uint32(m.mem[addr+3])<<24
	return v, true, nil
}

func (m *fakeLSU) Write8(addr uint32, value uint32) (bool, error) {
	if m.wait() {
		return false, nil
	}
	m.mem[addr] = byte(value)
	return true, nil
}

func (m *fakeLSU) Write16(addr uint32, value uint32) (bool, error) {
	if m.wait() {
		return false, nil
	}
	m.putHalfword(addr, uint16(value))
	return true, nil
}

func (m *fakeLSU) Write32(addr uint32, value uint32) (bool, error) {
	if m.wait() {
		return false, nil
	}
	m.putWord(addr, value)
	return true, nil
}

func (m *fakeLSU) IsExecutable(addr uint32) bool {
	return addr < uint32(len(m.mem))
}

func tick(t *testing.T, c *core.Core, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := c.Tick()
		test.ExpectSuccess(t, err)
	}
}

func reg(t *testing.T, c *core.Core, r int) uint32 {
	t.Helper()
	v, ok := c.Register(r)
	test.ExpectedSuccess(t, ok)
	return v
}

// TestCoreAddAndUnconditionalBranch runs ADDS r0, r1, r2 followed by an
// unconditional forward branch over a filler halfword, checking that the
// ALU result is committed and that the branch redirects Fetch past the
// halfwords it skips.
func TestCoreAddAndUnconditionalBranch(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x1888, // ADDS r0, r1, r2
		0xe000, // B +0 (target 0x6)
		0xffff, // filler, never decoded
		0x2307, // MOVS r3, #7 at the branch target
	)

	c := core.NewCore(lsu, 0, nil, nil)
	c.RegisterSet(core.R1, 10)
	c.RegisterSet(core.R2, 7)

	tick(t, c, 3)

	test.ExpectEquality(t, reg(t, c, core.R0), uint32(17))
	test.ExpectEquality(t, reg(t, c, core.R3), uint32(7))
}

// TestCoreConditionalBranchFallsThroughWhenNotTaken checks that a
// conditional branch whose condition fails does not redirect Fetch.
func TestCoreConditionalBranchFallsThroughWhenNotTaken(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0xd101, // BNE +2 (would branch to 0x6)
		0x2101, // MOVS r1, #1: the fall-through instruction
		0x2202, // MOVS r2, #2
	)

	c := core.NewCore(lsu, 0, nil, nil)
	c.SetAPSR(false, true, false, false) // Z=1, so NE fails

	tick(t, c, 2)

	test.ExpectEquality(t, reg(t, c, core.R1), uint32(1))
}

// TestCoreFlagsVisibleToFollowingBranch pins the xPSR delta visibility
// ordering: flags produced by instruction i steer instruction i+1.
func TestCoreFlagsVisibleToFollowingBranch(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x1a40, // SUBS r0, r0, r1 (r0 == r1, so Z=1)
		0xd000, // BEQ +0 (target 0x6)
		0x2101, // MOVS r1, #1: must be skipped
		0x2202, // MOVS r2, #2 at the branch target
	)

	c := core.NewCore(lsu, 0, nil, nil)
	c.RegisterSet(core.R0, 5)
	c.RegisterSet(core.R1, 5)

	tick(t, c, 3)

	test.ExpectEquality(t, reg(t, c, core.R1), uint32(5))
	test.ExpectEquality(t, reg(t, c, core.R2), uint32(2))
}

// TestCoreLoadLiteral checks the PC-relative load: base is the aligned
// architectural PC, and the load costs an address cycle plus a data cycle.
func TestCoreLoadLiteral(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x4801, // LDR r0, [pc, #4]: Align(0+4,4)+4 = 8
		0xbf00, // NOP
	)
	lsu.putWord(8, 0xdeadbeef)

	c := core.NewCore(lsu, 0, nil, nil)

	tick(t, c, 2)
	test.ExpectEquality(t, reg(t, c, core.R0), uint32(0xdeadbeef))
}

// TestCoreStoreAndLoadBack runs a STR/LDR pair through a base register.
func TestCoreStoreAndLoadBack(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x6001, // STR r1, [r0]
		0x6802, // LDR r2, [r0]
	)

	c := core.NewCore(lsu, 0, nil, nil)
	c.RegisterSet(core.R0, 0x20)
	c.RegisterSet(core.R1, 0x12345678)

	tick(t, c, 5)
	test.ExpectEquality(t, reg(t, c, core.R2), uint32(0x12345678))
}

// TestCorePushPop round-trips two registers through the stack.
func TestCorePushPop(t *testing.T) {
	lsu := newFakeLSU(128)

	lsu.program(0,
		0xb406, // PUSH {r1, r2}
		0x2100, // MOVS r1, #0
		0x2200, // MOVS r2, #0
		0xbc06, // POP {r1, r2}
	)

	c := core.NewCore(lsu, 0, nil, nil)
	c.RegisterSet(core.SP, 0x60)
	c.RegisterSet(core.R1, 0xaa)
	c.RegisterSet(core.R2, 0xbb)

	tick(t, c, 12)

	test.ExpectEquality(t, reg(t, c, core.R1), uint32(0xaa))
	test.ExpectEquality(t, reg(t, c, core.R2), uint32(0xbb))
	test.ExpectEquality(t, reg(t, c, core.SP), uint32(0x60))
}

// TestCoreITBlockSkips checks IT predication: the else slot of an ITE
// writes only when the condition fails.
func TestCoreITBlockSkips(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x1a40, // SUBS r0, r0, r1: Z=1 since both start zero
		0xbf0c, // ITE EQ
		0x2201, // MOVEQ r2, #1: executes
		0x2302, // MOVNE r3, #2: skipped
		0x2404, // MOVS r4, #4
	)

	c := core.NewCore(lsu, 0, nil, nil)

	tick(t, c, 5)

	test.ExpectEquality(t, reg(t, c, core.R2), uint32(1))
	test.ExpectEquality(t, reg(t, c, core.R3), uint32(0))
	test.ExpectEquality(t, reg(t, c, core.R4), uint32(4))
}

// TestCoreWFISleepsUntilWoken checks WFI sequencing: the core goes quiet
// after the PreSleep cycle and resumes at the following instruction once
// the interrupt collaborator wakes it.
func TestCoreWFISleepsUntilWoken(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0xbf30, // WFI
		0x2505, // MOVS r5, #5
	)

	c := core.NewCore(lsu, 0, nil, nil)

	tick(t, c, 6)
	test.ExpectedSuccess(t, c.Sleeping())
	test.ExpectEquality(t, reg(t, c, core.R5), uint32(0))

	c.Wake()
	test.ExpectedFailure(t, c.Sleeping())

	tick(t, c, 2)
	test.ExpectEquality(t, reg(t, c, core.R5), uint32(5))
}

// TestCoreCompareBranch checks CBZ against both register states.
func TestCoreCompareBranch(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0xb100, // CBZ r0, +0 (target 0x4)
		0x2101, // MOVS r1, #1: skipped when r0 == 0
		0x2202, // MOVS r2, #2 at the target
	)

	c := core.NewCore(lsu, 0, nil, nil)

	tick(t, c, 3)
	test.ExpectEquality(t, reg(t, c, core.R1), uint32(0))
	test.ExpectEquality(t, reg(t, c, core.R2), uint32(2))

	// and again with a non-zero r0: the CBZ falls through
	lsu2 := newFakeLSU(64)
	lsu2.program(0,
		0xb100, // CBZ r0, +0
		0x2101, // MOVS r1, #1: executes this time
	)
	c2 := core.NewCore(lsu2, 0, nil, nil)
	c2.RegisterSet(core.R0, 3)

	tick(t, c2, 2)
	test.ExpectEquality(t, reg(t, c2, core.R1), uint32(1))
}

// TestCoreBXRegisterBranches checks BX through a register holding a Thumb
// address: the branch lands on the address with bit zero cleared.
func TestCoreBXRegisterBranches(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x4800, // LDR r0, [pc, #0]: loads handler|1 from address 4
		0x4700, // BX r0
	)
	lsu.putWord(4, 0x11) // handler = 0x10, bit 0 set for Thumb
	lsu.program(0x10,
		0x2607) // MOVS r6, #7: the handler body

	c := core.NewCore(lsu, 0, nil, nil)

	tick(t, c, 5)
	test.ExpectEquality(t, reg(t, c, core.R6), uint32(7))
}

// TestCoreBXExceptionReturnYields checks that branching to an EXC_RETURN
// token hands off to the exception collaborator instead of fetching from
// the token address.
func TestCoreBXExceptionReturnYields(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x4800, // LDR r0, [pc, #0]
		0x4700, // BX r0
	)
	lsu.putWord(4, 0xfffffff9)

	c := core.NewCore(lsu, 0, nil, nil)

	y, err := c.Run(32)
	test.ExpectSuccess(t, err)
	test.ExpectedSuccess(t, y.Type.Normal())
}

// TestCoreUnprivilegedSpecialRegisterAccess drops to unprivileged thread
// mode through CONTROL.nPRIV and checks that a following MSR to PRIMASK is
// silently ignored and that MRS of it reads back zero.
func TestCoreUnprivilegedSpecialRegisterAccess(t *testing.T) {
	lsu := newFakeLSU(64)

	lsu.program(0,
		0x2001,         // MOVS r0, #1
		0xf380, 0x8814, // MSR CONTROL, r0: nPRIV set, now unprivileged
		0x2101,         // MOVS r1, #1
		0xf381, 0x8810, // MSR PRIMASK, r1: ignored without privilege
		0xf3ef, 0x8210, // MRS r2, PRIMASK: reads zero without privilege
		0xf3ef, 0x8314, // MRS r3, CONTROL: readable regardless
	)

	c := core.NewCore(lsu, 0, nil, nil)

	tick(t, c, 6)

	test.ExpectEquality(t, reg(t, c, core.R2), uint32(0))
	test.ExpectEquality(t, reg(t, c, core.R3), uint32(1))
}

// TestCoreMSRRaisingPriorityCostsACycle pins the serialisation rule: an MSR
// that raises execution priority spends one extra cycle, one that leaves it
// alone does not.
func TestCoreMSRRaisingPriorityCostsACycle(t *testing.T) {
	program := func(primaskValue uint16) *core.Core {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x2000|primaskValue, // MOVS r0, #v
			0xf380, 0x8810, // MSR PRIMASK, r0
			0x2409, // MOVS r4, #9
		)
		return core.NewCore(lsu, 0, nil, nil)
	}

	// PRIMASK 0 -> 1 raises priority: sentinel lands a cycle later
	c := program(1)
	var raised uint64
	for i := 0; i < 8; i++ {
		tick(t, c, 1)
		if v := reg(t, c, core.R4); v == 9 {
			raised = c.CycleCount()
			break
		}
	}

	// PRIMASK 0 -> 0 leaves it unchanged: no serialisation cycle
	c = program(0)
	var unchanged uint64
	for i := 0; i < 8; i++ {
		tick(t, c, 1)
		if v := reg(t, c, core.R4); v == 9 {
			unchanged = c.CycleCount()
			break
		}
	}

	test.ExpectEquality(t, raised, unchanged+1)
}

// TestCoreCycleMonotonicity pins the cycle-count contract: the counter
// advances by exactly one per Tick, through branches and loops alike.
func TestCoreCycleMonotonicity(t *testing.T) {
	lsu := newFakeLSU(64)
	lsu.program(0,
		0x2001, // MOVS r0, #1
		0xe7fd, // B back to 0
	)

	c := core.NewCore(lsu, 0, nil, nil)
	for i := uint64(1); i <= 20; i++ {
		_, err := c.Tick()
		test.ExpectSuccess(t, err)
		test.ExpectEquality(t, c.CycleCount(), i)
	}
}
