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
	"github.com/jetsetilly/cm3pipeline/coprocessor/faults"
	"github.com/jetsetilly/cm3pipeline/errors"
)

// programMemoryFault is raised by Fetch when the fetch head points at an
// address the LSU has declared non-executable.
func programMemoryFault(addr uint32) error {
	return errors.Errorf(errors.BusError, faults.ProgramMemory, addr, addr)
}

// memoryFault records a fault against the Core's fault log and, if a
// developer hook is attached, notifies it. event is a short human readable
// description of what the core was trying to do (eg. "LDR", "STR", "fetch").
func (c *Core) memoryFault(event string, category faults.Category, instructionAddr uint32, accessAddr uint32) {
	c.faults.NewEntry(event, category, instructionAddr, accessAddr)

	if c.dev != nil {
		c.dev.MemoryFault(event, category, instructionAddr, accessAddr)
	}
}

func (c *Core) nullAccess(event string, instructionAddr uint32, addr uint32) {
	c.memoryFault(event, faults.NullDereference, instructionAddr, addr)
}

func (c *Core) misalignedAccess(event string, instructionAddr uint32, addr uint32) {
	c.memoryFault(event, faults.MisalignedAccess, instructionAddr, addr)
}

func (c *Core) illegalAccess(event string, instructionAddr uint32, addr uint32) {
	c.memoryFault(event, faults.IllegalAddress, instructionAddr, addr)
}

func (c *Core) stackCollision(event string, instructionAddr uint32, addr uint32) {
	c.memoryFault(event, faults.StackCollision, instructionAddr, addr)
}
