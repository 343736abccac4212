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

// The scenario corpus: short assembled programs with pinned final register
// state and cycle counts, run against the cycle-accurate pipeline the way a
// captured hardware trace would be. Structured as a Ginkgo suite so each
// trace reads as one entry.

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jetsetilly/cm3pipeline/core"
	"github.com/jetsetilly/cm3pipeline/hardware/preferences"
)

func TestScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "pipeline scenario corpus")
}

// runUntil ticks the core until pred is satisfied, returning the cycle
// count at which it first held. Fails the spec if maxTicks elapse first.
func runUntil(c *core.Core, maxTicks int, pred func() bool) uint64 {
	for i := 0; i < maxTicks; i++ {
		_, err := c.Tick()
		Expect(err).NotTo(HaveOccurred())
		if pred() {
			return c.CycleCount()
		}
	}
	Fail("predicate never satisfied")
	return 0
}

func mustReg(c *core.Core, r int) uint32 {
	v, ok := c.Register(r)
	Expect(ok).To(BeTrue())
	return v
}

var _ = Describe("hardware trace scenarios", func() {
	It("sets flags across an 8 bit boundary: movs/adds", func() {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x207f, // MOVS r0, #0x7f
			0x3001, // ADDS r0, #1
		)

		c := core.NewCore(lsu, 0, nil, nil)
		cycles := runUntil(c, 8, func() bool { return mustReg(c, core.R0) == 0x80 })

		Expect(cycles).To(Equal(uint64(2)))
		n, z, carry, v := c.APSR()
		Expect(n).To(BeFalse())
		Expect(z).To(BeFalse())
		Expect(carry).To(BeFalse())
		Expect(v).To(BeFalse())
	})

	It("wraps to zero with carry out: adds on 0xffffffff", func() {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x2000, // MOVS r0, #0
			0x43c0, // MVNS r0, r0: 0xffffffff
			0x3001, // ADDS r0, #1
		)

		c := core.NewCore(lsu, 0, nil, nil)
		cycles := runUntil(c, 8, func() bool {
			_, z, carry, _ := c.APSR()
			return z && carry
		})

		Expect(cycles).To(Equal(uint64(3)))
		Expect(mustReg(c, core.R0)).To(Equal(uint32(0)))
		n, z, carry, v := c.APSR()
		Expect(n).To(BeFalse())
		Expect(z).To(BeTrue())
		Expect(carry).To(BeTrue())
		Expect(v).To(BeFalse())
	})

	It("folds an IT into the preceding instruction: ittt block", func() {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x1bff, // SUBS r7, r7, r7: Z=1, and the slot the IT folds into
			0xbf02, // ITTT EQ
			0x3001, // ADDEQ r0, #1
			0x3102, // ADDEQ r1, #2
			0x3203, // ADDEQ r2, #3
		)

		c := core.NewCore(lsu, 0, nil, nil)
		cycles := runUntil(c, 10, func() bool { return mustReg(c, core.R2) == 3 })

		// four cycles: the IT is architecturally free, pipelined with the
		// SUBS that precedes it
		Expect(cycles).To(Equal(uint64(4)))
		Expect(mustReg(c, core.R0)).To(Equal(uint32(1)))
		Expect(mustReg(c, core.R1)).To(Equal(uint32(2)))
	})

	It("skips the whole block when the predicate fails", func() {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x1c7f, // ADDS r7, r7, #1: Z=0
			0xbf02, // ITTT EQ
			0x3001, // ADDEQ r0, #1: skipped
			0x3102, // ADDEQ r1, #2: skipped
			0x3203, // ADDEQ r2, #3: skipped
			0x2609, // MOVS r6, #9
		)

		c := core.NewCore(lsu, 0, nil, nil)
		runUntil(c, 10, func() bool { return mustReg(c, core.R6) == 9 })

		Expect(mustReg(c, core.R0)).To(Equal(uint32(0)))
		Expect(mustReg(c, core.R1)).To(Equal(uint32(0)))
		Expect(mustReg(c, core.R2)).To(Equal(uint32(0)))
	})

	It("drives UMULL timing from the operand-zero table", func() {
		program := func(flavor int) (*core.Core, *fakeLSU) {
			lsu := newFakeLSU(64)
			lsu.program(0,
				0x2000, // MOVS r0, #0
				0x2104, // MOVS r1, #4
				0xfba0, 0x2301, // UMULL r2, r3, r0, r1
				0x2409, // MOVS r4, #9: retires the cycle after the UMULL
			)
			prefs := preferences.NewARMPreferences()
			prefs.MultiplierFlavor.Set(flavor)
			return core.NewCore(lsu, 0, nil, prefs), lsu
		}

		// slow multiplier: the zero operand row is (2, 1), so the UMULL
		// costs three cycles and the sentinel lands on cycle six
		c, _ := program(preferences.MultiplierFlavorSlow)
		cycles := runUntil(c, 12, func() bool { return mustReg(c, core.R4) == 9 })
		Expect(cycles).To(Equal(uint64(6)))
		Expect(mustReg(c, core.R2)).To(Equal(uint32(0)))
		Expect(mustReg(c, core.R3)).To(Equal(uint32(0)))

		// fast multiplier: same registers, one cycle for the multiply
		c, _ = program(preferences.MultiplierFlavorFast)
		cycles = runUntil(c, 12, func() bool { return mustReg(c, core.R4) == 9 })
		Expect(cycles).To(Equal(uint64(4)))
		Expect(mustReg(c, core.R2)).To(Equal(uint32(0)))
		Expect(mustReg(c, core.R3)).To(Equal(uint32(0)))
	})

	It("produces identical results on both multiplier flavours", func() {
		// cross-SoC parity: only the cycle counts may differ
		run := func(flavor int) (uint32, uint32, uint64) {
			lsu := newFakeLSU(64)
			lsu.program(0,
				0x4802, // LDR r0, [pc, #8]
				0x4903, // LDR r1, [pc, #12]
				0xfbc0, 0x2301, // SMLAL r2, r3, r0, r1
				0x2409, // MOVS r4, #9
			)
			lsu.putWord(12, 0x89abcdef)
			lsu.putWord(16, 0x7654321f)

			prefs := preferences.NewARMPreferences()
			prefs.MultiplierFlavor.Set(flavor)
			c := core.NewCore(lsu, 0, nil, prefs)
			cycles := runUntil(c, 32, func() bool { return mustReg(c, core.R4) == 9 })
			return mustReg(c, core.R2), mustReg(c, core.R3), cycles
		}

		slowLo, slowHi, slowCycles := run(preferences.MultiplierFlavorSlow)
		fastLo, fastHi, fastCycles := run(preferences.MultiplierFlavorFast)

		Expect(fastLo).To(Equal(slowLo))
		Expect(fastHi).To(Equal(slowHi))
		Expect(fastCycles).To(BeNumerically("<", slowCycles))
	})

	It("charges a wait state against a literal load", func() {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x4802, // LDR r0, [pc, #8]
		)
		lsu.putWord(12, 0xdeadbeef)
		lsu.dataWait = 1

		c := core.NewCore(lsu, 0, nil, nil)
		cycles := runUntil(c, 8, func() bool { return mustReg(c, core.R0) == 0xdeadbeef })

		// two cycles for the load plus one memory wait state
		Expect(cycles).To(Equal(uint64(3)))
	})

	It("clears bit zero when branching through a register", func() {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x4800, // LDR r0, [pc, #0]: handler|1
			0x4700, // BX r0
		)
		lsu.putWord(4, 0x21) // handler at 0x20, Thumb bit set
		lsu.program(0x20,
			0x2607) // MOVS r6, #7

		c := core.NewCore(lsu, 0, nil, nil)
		runUntil(c, 12, func() bool { return mustReg(c, core.R6) == 7 })
	})

	It("recognises an EXC_RETURN token instead of branching", func() {
		lsu := newFakeLSU(64)
		lsu.program(0,
			0x4800, // LDR r0, [pc, #0]
			0x4700, // BX r0
		)
		lsu.putWord(4, 0xfffffff9)

		c := core.NewCore(lsu, 0, nil, nil)
		y, err := c.Run(32)
		Expect(err).NotTo(HaveOccurred())
		Expect(y.Type.Normal()).To(BeTrue())
	})

	It("counts divider latency by operand magnitude", func() {
		run := func(dividend uint32) uint64 {
			lsu := newFakeLSU(64)
			lsu.program(0,
				0x4802, // LDR r0, [pc, #8]: dividend
				0x2103, // MOVS r1, #3
				0xfbb0, 0xf2f1, // UDIV r2, r0, r1
				0x2409, // MOVS r4, #9
			)
			lsu.putWord(12, dividend)

			c := core.NewCore(lsu, 0, nil, nil)
			return runUntil(c, 32, func() bool { return mustReg(c, core.R4) == 9 })
		}

		// a wide dividend costs more cycles than a narrow one
		Expect(run(0xffffffff)).To(BeNumerically(">", run(9)))
	})
})
