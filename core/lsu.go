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

// LSU is the callback-driven interface Execute uses to talk to whatever bus
// fabric the host has wired up. The core has no opinion on the memory map
// behind it; it only needs to know, each cycle, whether a pending access has
// completed.
//
// A host's first Read/Write call for a given access may return ready=false,
// in which case Execute parks the instruction and calls the same method
// again on the following cycle until ready becomes true. This mirrors the
// way a real AHB-Lite bus can insert wait states.
type LSU interface {
	// Read8/Read16/Read32 request a load of the given width from addr.
	// ready is false while the bus has not yet produced a value.
	Read8(addr uint32) (value uint32, ready bool, fault error)
	Read16(addr uint32) (value uint32, ready bool, fault error)
	Read32(addr uint32) (value uint32, ready bool, fault error)

	// Write8/Write16/Write32 request a store of the given width to addr.
	// ready is false while the bus has not yet accepted the value.
	Write8(addr uint32, value uint32) (ready bool, fault error)
	Write16(addr uint32, value uint32) (ready bool, fault error)
	Write32(addr uint32, value uint32) (ready bool, fault error)

	// IsExecutable reports whether addr may be fetched as an instruction.
	// Fetch consults this before handing a word to Decode.
	IsExecutable(addr uint32) bool
}

// pendingAccess records an in-flight load/store that Execute is waiting on
// the LSU to complete. The AGU considers the destination register of a
// pending load dirty until the access completes, which is what forces
// Decode to stall a following instruction that reads it.
type pendingAccess struct {
	active   bool
	addr     uint32
	width    uint8 // 1, 2 or 4
	isLoad   bool
	isSigned bool
	value    uint32 // store value for the current beat
	destReg  int

	// dual transfers (LDRD/STRD) move two words through the same slot;
	// phase records which of the pair the slot currently holds
	phase int
}
