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

// Fetch keeps a speculative read pointer running ahead of Decode. It knows
// nothing about instruction semantics; it only knows how to keep handing
// Decode the next halfword, and how to snap back to a new address once
// Execute (or Decode, for decode-time branches) tells it to.
type Fetch struct {
	lsu LSU

	// head is the address Fetch will read next
	head uint32

	// speculating is true while Fetch is reading down a path that a
	// not-yet-resolved branch might invalidate
	speculating bool
}

// NewFetch creates a Fetch unit reading from lsu, starting at resetPC.
func NewFetch(lsu LSU, resetPC uint32) *Fetch {
	return &Fetch{lsu: lsu, head: resetPC}
}

// Head returns the address Fetch will read next.
func (f *Fetch) Head() uint32 {
	return f.head
}

// Redirect moves the fetch head to addr, used both for a decode-time branch
// (where Fetch never had to speculate past the branch in the first place)
// and for correcting a misprediction once Execute resolves a speculative
// branch the other way.
func (f *Fetch) Redirect(addr uint32, speculative bool) {
	f.head = addr
	f.speculating = speculative
}

// ReadHalfword reads the 16 bit halfword at the current fetch head and
// advances head by 2. The caller (Decode) is responsible for reading a
// second halfword itself when the first indicates a 32 bit Thumb-2
// encoding.
func (f *Fetch) ReadHalfword() (uint32, error) {
	if !f.lsu.IsExecutable(f.head) {
		return 0, programMemoryFault(f.head)
	}

	value, ready, fault := f.lsu.Read16(f.head)
	if fault != nil {
		return 0, fault
	}
	if !ready {
		// instruction memory is modelled as always-ready in this core;
		// a host whose LSU stalls fetches should treat this the same as a
		// bus error, since the pipeline design this core implements always
		// has the next word available by the time Decode wants it.
		return 0, programMemoryFault(f.head)
	}

	f.head += 2
	return value, nil
}

// PeekShadowHead reads the halfword at the given position beyond the
// current fetch head without advancing it: position 0 is the halfword the
// next ReadHalfword would return, position 1 the one after. Decode uses
// this both to find an IT fold candidate and to detect the tainted
// ("cursed") pattern, where the slot past a narrow halfword happens to show
// IT-shaped bits.
func (f *Fetch) PeekShadowHead(position int) (uint32, error) {
	addr := f.head + uint32(position)*2
	if !f.lsu.IsExecutable(addr) {
		return 0, programMemoryFault(addr)
	}
	value, ready, fault := f.lsu.Read16(addr)
	if fault != nil {
		return 0, fault
	}
	if !ready {
		return 0, programMemoryFault(addr)
	}
	return value, nil
}
