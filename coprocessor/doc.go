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

// Package coprocessor contains the interfaces a host program uses to embed
// and observe a Core: register inspection, yield reasons, developer hooks
// for fault reporting and profiling, and a disassembler hook for streaming
// decoded instructions as they retire. The subpackage faults classifies the
// memory faults a CoreDeveloper is told about.
package coprocessor
