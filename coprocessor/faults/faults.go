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

// Package faults accumulates the memory accesses a running program makes
// that the core considers suspect: misaligned transfers, reads through a
// null base register, fetches from non-executable memory. The log
// deduplicates on (instruction, access) address pairs so a fault inside a
// loop appears once with a count, not once per iteration.
package faults

import (
	"fmt"
	"io"
)

// Category classifies the approximate reason for a memory fault.
type Category string

// List of valid Category values.
const (
	NullDereference  Category = "null dereference"
	MisalignedAccess Category = "misaligned access"
	StackCollision   Category = "stack collision"
	IllegalAddress   Category = "illegal address"
	ProgramMemory    Category = "program memory"
)

// Entry is a single entry in the fault log.
type Entry struct {
	Category Category

	// description of the event that triggered the memory fault. for this
	// core that is the mnemonic of the access ("LDR", "PUSH", "TBH", ...)
	Event string

	// the address of the instruction making the access and the address
	// being accessed
	InstructionAddr uint32
	AccessAddr      uint32

	// number of times this specific access has been seen
	Count int
}

func (e Entry) String() string {
	return fmt.Sprintf("%s: %s: %08x (PC: %08x)", e.Category, e.Event, e.AccessAddr, e.InstructionAddr)
}

// Faults records the suspect memory accesses made by a core.
type Faults struct {
	// entries are keyed on the (instruction, access) address pair so the
	// same fault site is counted rather than re-logged
	entries map[uint64]*Entry

	// every distinct fault in order of first appearance. the Count field
	// of an Entry says whether it recurred after that
	Log []*Entry

	// set once a stack collision has been seen. after a collision the
	// guest's memory accesses cannot be trusted and further faults are of
	// limited diagnostic value
	HasStackCollision bool
}

func NewFaults() Faults {
	return Faults{
		entries: make(map[uint64]*Entry),
	}
}

// Clear all entries from the fault log. Does not clear HasStackCollision.
func (flt *Faults) Clear() {
	clear(flt.entries)
	flt.Log = flt.Log[:0]
}

// WriteLog writes the list of faults in the order they were first seen.
func (flt Faults) WriteLog(w io.Writer) {
	for _, e := range flt.Log {
		w.Write([]byte(e.String()))
	}
}

// NewEntry adds a fault to the log, or bumps the count of the entry already
// recorded for the same instruction/access pair.
func (flt *Faults) NewEntry(event string, category Category, instructionAddr uint32, accessAddr uint32) {
	key := uint64(instructionAddr)<<32 | uint64(accessAddr)

	e, found := flt.entries[key]
	if !found {
		e = &Entry{
			Category:        category,
			Event:           event,
			InstructionAddr: instructionAddr,
			AccessAddr:      accessAddr,
		}
		flt.entries[key] = e
		flt.Log = append(flt.Log, e)
	}

	e.Count++

	if category == StackCollision {
		flt.HasStackCollision = true
	}
}
