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

// register indices, named the way the architecture reference manual names
// them. r13/r14/r15 have architectural aliases that the decoder and
// disassembler both need.
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP // r13, whichever of MSP/PSP CONTROL.SPSEL currently selects
	LR // r14, link register
	PC // r15, program counter

	NumRegisters
)

// RegisterBitmap is a bitmap over the sixteen core registers, used to track
// which registers a not-yet-retired instruction will write (the AGU uses
// this to detect a read of a register whose value is still "in flight").
type RegisterBitmap uint16

// Set marks register r as present in the bitmap.
func (b RegisterBitmap) Set(r int) RegisterBitmap {
	return b | (1 << uint(r))
}

// Has reports whether register r is present in the bitmap.
func (b RegisterBitmap) Has(r int) bool {
	return b&(1<<uint(r)) != 0
}

// Union returns the bitmap containing every register present in b or other.
func (b RegisterBitmap) Union(other RegisterBitmap) RegisterBitmap {
	return b | other
}

// IsEmpty reports whether the bitmap has no registers set.
func (b RegisterBitmap) IsEmpty() bool {
	return b == 0
}

// Without returns the bitmap with register r cleared.
func (b RegisterBitmap) Without(r int) RegisterBitmap {
	return b &^ (1 << uint(r))
}

// Count returns the number of registers present in the bitmap, the
// transfer size (in registers) an LDM/STM/PUSH/POP needs to know to compute
// its effective address.
func (b RegisterBitmap) Count() int {
	n := 0
	for v := b; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Lowest returns the lowest-numbered register present in the bitmap, and
// false if the bitmap is empty. LDM/STM/PUSH/POP transfer registers in
// ascending order, so this is also the next register a multi-register
// transfer in progress should move.
func (b RegisterBitmap) Lowest() (int, bool) {
	if b == 0 {
		return 0, false
	}
	for r := 0; r < NumRegisters; r++ {
		if b.Has(r) {
			return r, true
		}
	}
	return 0, false
}

// Bank is the sixteen-entry register file shared by Decode (for computing
// AGU addresses and reading branch operands) and Execute (for reading and
// writing general purpose state). The architecture permits only one write
// per cycle; Bank does not enforce that itself; Core's tick ordering is what
// guarantees it, matching the teacher's single write-port register file.
type Bank struct {
	regs [NumRegisters]uint32

	// dirty records which registers are the destination of an
	// in-flight, not-yet-retired instruction. Decode consults this to
	// decide whether it must stall behind the AGU.
	dirty RegisterBitmap

	// primask, faultmask, basepri and control back the special
	// registers MRS/MSR address by name rather than register number.
	// This core does not model exception priority arbitration (the
	// NVIC is explicitly out of scope), so these are latched verbatim
	// and read back verbatim; only the priority-escalation check that
	// drives KindPrioritySerializing's serialisation cycle consults
	// them.
	primask   uint8
	faultmask uint8
	basepri   uint8
	control   uint8

	// regs[SP] is always the stack pointer CONTROL.SPSEL selects;
	// spBanked holds the other one. SetCONTROL swaps them when SPSEL
	// changes, so r13 reads and writes never need to know which pointer
	// is live.
	spBanked uint32

	// handlerMode mirrors xPSR.IPSR being non-zero. The exception
	// collaborator sets it on entry/return; this core's instruction path
	// only ever reads it, through Privileged.
	handlerMode bool

	// the AGU result latch: a single-slot resource holding the effective
	// address Decode computed for the memory instruction it just handed
	// over. one producer (Decode) and one consumer (Execute's address
	// phase) per cycle.
	aguResult uint32
	aguValid  bool
}

// Get returns the current value of register r exactly as stored -- for PC
// this is the address of the instruction currently executing, not
// the architectural "address + 4" value an instruction operand read of PC
// observes. Fetch-redirect call sites want this raw value; instruction
// semantics that read PC as an operand must use GetOperand instead.
func (b *Bank) Get(r int) uint32 {
	return b.regs[r]
}

// GetOperand returns the value instruction semantics observe when PC is
// read as a source operand: the current instruction's address plus 4 (the
// architectural pipeline offset), per spec 4.2. Every other register reads
// back exactly as stored.
func (b *Bank) GetOperand(r int) uint32 {
	if r == PC {
		return b.regs[PC] + 4
	}
	return b.regs[r]
}

// Set writes value into register r. Writing SP force-aligns the value to a
// 4 byte boundary, the architectural behaviour for every SP update
// regardless of instruction (A2.3).
func (b *Bank) Set(r int, value uint32) {
	if r == SP {
		value = AlignTo32bits(value)
	}
	b.regs[r] = value
}

// PRIMASK, FAULTMASK, BASEPRI and CONTROL accessors. Exposed alongside the
// sixteen core registers per spec 4.2; without an NVIC to arbitrate
// priorities these are mostly inert storage, consulted only by the
// priority-escalation check and, for CONTROL, the SP banking below.
func (b *Bank) PRIMASK() uint8   { return b.primask }
func (b *Bank) FAULTMASK() uint8 { return b.faultmask }
func (b *Bank) BASEPRI() uint8   { return b.basepri }
func (b *Bank) CONTROL() uint8   { return b.control }

func (b *Bank) SetPRIMASK(v uint8)   { b.primask = v }
func (b *Bank) SetFAULTMASK(v uint8) { b.faultmask = v }
func (b *Bank) SetBASEPRI(v uint8)   { b.basepri = v }

// SetCONTROL installs CONTROL.nPRIV and CONTROL.SPSEL. A change of SPSEL
// swaps the live stack pointer with the banked one, which is the whole of
// what SP banking means to the register file; in handler mode SPSEL writes
// are ignored (B1.4.4), the stack in force there is always MSP.
func (b *Bank) SetCONTROL(v uint8) {
	v &= 0x3
	if b.handlerMode {
		v = v&0x1 | b.control&0x2
	}
	if (v^b.control)&0x2 != 0 {
		b.regs[SP], b.spBanked = b.spBanked, b.regs[SP]
	}
	b.control = v
}

// Privileged reports whether execution is currently privileged: always in
// handler mode, and in thread mode while CONTROL.nPRIV is clear.
// Unprivileged MSR/MRS/CPS access to the masking registers is silently
// ignored (writes) or reads back zero, per the architectural pseudocode.
func (b *Bank) Privileged() bool {
	return b.handlerMode || b.control&0x1 == 0
}

// SetHandlerMode records whether the core is executing an exception
// handler. The exception collaborator owns this transition; nothing in the
// instruction path changes it.
func (b *Bank) SetHandlerMode(handler bool) {
	b.handlerMode = handler
}

// MSP and PSP read the main and process stack pointers by name, whichever
// of the two SPSEL has live in r13.
func (b *Bank) MSP() uint32 {
	if b.control&0x2 == 0 {
		return b.regs[SP]
	}
	return b.spBanked
}

func (b *Bank) PSP() uint32 {
	if b.control&0x2 != 0 {
		return b.regs[SP]
	}
	return b.spBanked
}

// SetMSP and SetPSP write the main and process stack pointers by name,
// force-aligning the same way any SP write does.
func (b *Bank) SetMSP(v uint32) {
	if b.control&0x2 == 0 {
		b.regs[SP] = AlignTo32bits(v)
	} else {
		b.spBanked = AlignTo32bits(v)
	}
}

func (b *Bank) SetPSP(v uint32) {
	if b.control&0x2 != 0 {
		b.regs[SP] = AlignTo32bits(v)
	} else {
		b.spBanked = AlignTo32bits(v)
	}
}

// LatchAGU stores an effective address computed by the Decode stage's AGU
// phase. The latch holds one value; a second producer in the same cycle
// would be a pipeline bug, not something the bank defends against.
func (b *Bank) LatchAGU(addr uint32) {
	b.aguResult = addr
	b.aguValid = true
}

// TakeAGU consumes the AGU latch, returning false if nothing was latched
// since the last take (the no-index addressing forms bypass the AGU and
// read their base register directly).
func (b *Bank) TakeAGU() (uint32, bool) {
	v, ok := b.aguResult, b.aguValid
	b.aguValid = false
	return v, ok
}

// MarkDirty records that register r's value is about to be overwritten by
// an instruction that has not yet retired.
func (b *Bank) MarkDirty(r int) {
	b.dirty = b.dirty.Set(r)
}

// MarkClean clears every dirty bit. Called once the writing instruction has
// retired and its result has been committed to the bank.
func (b *Bank) MarkClean() {
	b.dirty = 0
}

// IsDirty reports whether register r's value is still in flight.
func (b *Bank) IsDirty(r int) bool {
	return b.dirty.Has(r)
}

// DirtyRegisters returns the current dirty bitmap, used by Decode when it
// builds an AGUWaitingForData state to remember which registers it was
// waiting on.
func (b *Bank) DirtyRegisters() RegisterBitmap {
	return b.dirty
}
