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

package errors

// error messages used by the core pipeline. each message is a curated error
// head: Is()/Has() match against these strings, so changing one changes the
// classification a caller sees, not just the printed text.
const (
	// decode-time encoding problems. these correspond to the classification
	// defined in the ARMv7-M architecture reference manual for encodings
	// that a conformant decoder must reject or flag before execution.
	ReservedEncoding     = "reserved encoding: %#04x at %#08x"
	UnpredictableEncoding = "unpredictable encoding: %#04x at %#08x (%v)"
	UnsupportedEncoding   = "unsupported encoding: %#04x at %#08x (%v)"

	// a hint instruction (NOP-compatible space) that this core treats as a
	// plain NOP rather than implementing its hinted behaviour
	HintUnmappedAsNop = "hint instruction mapped to nop: %#04x at %#08x (%v)"

	// an encoding that decodes cleanly but whose execute-time behaviour
	// would raise a UsageFault on real hardware (divide by zero with DIV0
	// trapping enabled, unaligned access to a strictly-aligned instruction
	// form, and so on)
	UsageFaultCandidate = "usage fault candidate: %v at %#08x"

	// the LSU reported that the memory system could not complete an access
	BusError = "bus error: %v: %#08x (PC: %#08x)"

	// internal consistency failures that indicate a core bug rather than a
	// property of the instruction stream being executed
	PipelineError = "pipeline error: %v"
	DecodeError   = "decode error: %v"
	ExecuteError  = "execute error: %v"
)
