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

// Package preferences exposes the few knobs a host can set on a Core before
// it starts ticking: which multiplier/divider latency table to use, whether
// an unaligned memory access should be treated as a trap, and which of the
// two documented "BL sets prev_instruction_writes_lr" conventions to follow.
// Unlike the dotfile-backed preferences package a full emulator build uses,
// these values are never read from or written to disk -- there is nothing
// here a standalone pipeline core would want to persist between runs.
package preferences

import "sync"

// Value is a small Get/Set wrapper around an arbitrary preference value,
// mirroring the interface{}-typed accessor pattern the wider preferences
// tree uses so a host can enumerate and edit values generically (a GUI
// preferences panel, a config file loader) without this package knowing
// about either.
type Value struct {
	crit sync.Mutex
	v    interface{}
}

// NewValue creates a Value initialised to v.
func NewValue(v interface{}) *Value {
	return &Value{v: v}
}

// Get returns the current value.
func (v *Value) Get() interface{} {
	v.crit.Lock()
	defer v.crit.Unlock()
	return v.v
}

// Set replaces the current value.
func (v *Value) Set(value interface{}) {
	v.crit.Lock()
	defer v.crit.Unlock()
	v.v = value
}

// Multiplier flavour constants, mirrored from core.multiplierFlavorSlow/Fast
// so a host can select a value without importing the core package.
const (
	MultiplierFlavorSlow = 0
	MultiplierFlavorFast = 1
)

// ARMPreferences holds the construction-time configuration for a Core. A
// nil *ARMPreferences passed to NewCore is replaced with NewARMPreferences's
// defaults, the same "nil means use SetDefaults" convention the wider
// preferences tree follows.
type ARMPreferences struct {
	// MultiplierFlavor selects the UMULL/SMULL/UMLAL/SMLAL and UDIV/SDIV
	// latency table: MultiplierFlavorSlow (Cortex-M3 class, the default)
	// or MultiplierFlavorFast (Cortex-M4 class).
	MultiplierFlavor *Value

	// TrapUnalignedAccess selects whether a misaligned LDRH/STRH/LDRSH/TBH
	// (or a word access under LDRD/LDM/STM/PUSH/POP) raises a UsageFault
	// candidate rather than only being logged as a diagnostic.
	TrapUnalignedAccess *Value

	// BLSetsWritesLR mirrors the source's cm_hyp::bx_lr::BL_SET_FLAG
	// toggle: whether BL/BLX immediate set the "previous instruction
	// writes LR" flag the bx_write_pc decode-time rule consults. The
	// open question in the reference material leaves this a toggle
	// rather than a ruling; this core defaults it true, matching rule 4
	// of the Brchstat classifier (BL is always decode-time) and the more
	// conservative reading of the hardware quirk.
	BLSetsWritesLR *Value
}

// NewARMPreferences returns an ARMPreferences with this core's defaults.
func NewARMPreferences() *ARMPreferences {
	p := &ARMPreferences{}
	p.SetDefaults()
	return p
}

// SetDefaults resets every value in p to this core's defaults, following
// the SetDefaults() convention the wider preferences tree uses on every
// leaf preferences struct.
func (p *ARMPreferences) SetDefaults() {
	p.MultiplierFlavor = NewValue(MultiplierFlavorSlow)
	p.TrapUnalignedAccess = NewValue(false)
	p.BLSetsWritesLR = NewValue(true)
}
